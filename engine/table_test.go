package engine

import "testing"

func TestAddPluginAllocatesLowestFreeSlot(t *testing.T) {
	e := newTestEngine(t, newStubDriver(512, 44100), DefaultOptions())

	p0 := newGainPlugin(t, 0, 1)
	p1 := newGainPlugin(t, 1, 1)

	id0, err := e.AddPlugin(p0)
	if err != nil || id0 != 0 {
		t.Fatalf("AddPlugin(p0) = %d, %v; want 0, nil", id0, err)
	}
	id1, err := e.AddPlugin(p1)
	if err != nil || id1 != 1 {
		t.Fatalf("AddPlugin(p1) = %d, %v; want 1, nil", id1, err)
	}

	if !e.RemovePlugin(id0) {
		t.Fatal("RemovePlugin(id0) = false, want true")
	}

	p2 := newGainPlugin(t, 0, 1)
	id2, err := e.AddPlugin(p2)
	if err != nil || id2 != 0 {
		t.Fatalf("AddPlugin after removing slot 0 = %d, %v; want 0, nil (slot reuse)", id2, err)
	}
}

func TestRemovePluginAlreadyRemovedOrOutOfRange(t *testing.T) {
	e := newTestEngine(t, newStubDriver(512, 44100), DefaultOptions())

	p := newGainPlugin(t, 0, 1)
	id, err := e.AddPlugin(p)
	if err != nil {
		t.Fatalf("AddPlugin: %v", err)
	}

	if !e.RemovePlugin(id) {
		t.Fatal("first RemovePlugin should succeed")
	}
	if e.RemovePlugin(id) {
		t.Error("RemovePlugin on an already-removed slot should return false")
	}
	if e.RemovePlugin(id + 100) {
		t.Error("RemovePlugin on an out-of-range id should return false")
	}
}

func TestPluginLookup(t *testing.T) {
	e := newTestEngine(t, newStubDriver(512, 44100), DefaultOptions())

	p := newGainPlugin(t, 0, 1)
	id, err := e.AddPlugin(p)
	if err != nil {
		t.Fatalf("AddPlugin: %v", err)
	}

	got, ok := e.Plugin(id)
	if !ok || got != p {
		t.Errorf("Plugin(%d) = %v, %v; want the added plugin, true", id, got, ok)
	}

	if _, ok := e.Plugin(id + 1); ok {
		t.Error("Plugin on an out-of-range id should report false")
	}

	e.RemovePlugin(id)
	if _, ok := e.Plugin(id); ok {
		t.Error("Plugin on a removed slot should report false")
	}
}

func TestGetNewUniquePluginName(t *testing.T) {
	e := newTestEngine(t, newStubDriver(512, 44100), DefaultOptions())

	if got := e.GetNewUniquePluginName("Gain"); got != "Gain" {
		t.Errorf("first use of a name should be returned unchanged, got %q", got)
	}

	p0 := newNamedGainPlugin(t, 0, "Gain", 1)
	if _, err := e.AddPlugin(p0); err != nil {
		t.Fatalf("AddPlugin: %v", err)
	}

	if got := e.GetNewUniquePluginName("Gain"); got != "Gain (2)" {
		t.Errorf("colliding name should get the smallest free suffix, got %q, want %q", got, "Gain (2)")
	}

	p1 := newNamedGainPlugin(t, 1, "Gain (2)", 1)
	if _, err := e.AddPlugin(p1); err != nil {
		t.Fatalf("AddPlugin: %v", err)
	}

	if got := e.GetNewUniquePluginName("Gain"); got != "Gain (3)" {
		t.Errorf("second collision should skip to the next free suffix, got %q, want %q", got, "Gain (3)")
	}
}
