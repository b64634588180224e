package bridge

import (
	"bytes"
	"testing"
)

func TestAudioRingRoundTrip(t *testing.T) {
	ring, err := NewAudioRing(t.TempDir(), 4, 2)
	if err != nil {
		t.Fatalf("NewAudioRing: %v", err)
	}
	defer ring.Close()

	block := []float32{0.25, -0.5}
	if !ring.WriteBlock(block) {
		t.Fatal("WriteBlock on empty ring returned false")
	}

	dst := make([]float32, 2)
	if !ring.ReadBlock(dst) {
		t.Fatal("ReadBlock after one write returned false")
	}
	if dst[0] != block[0] || dst[1] != block[1] {
		t.Errorf("ReadBlock = %v, want %v", dst, block)
	}

	if ring.ReadBlock(dst) {
		t.Error("ReadBlock on drained ring returned true")
	}
}

func TestAudioRingFullWhenConsumerLags(t *testing.T) {
	ring, err := NewAudioRing(t.TempDir(), 2, 1)
	if err != nil {
		t.Fatalf("NewAudioRing: %v", err)
	}
	defer ring.Close()

	if !ring.WriteBlock([]float32{1}) {
		t.Fatal("first WriteBlock should succeed")
	}
	if !ring.WriteBlock([]float32{2}) {
		t.Fatal("second WriteBlock should succeed (capacity 2)")
	}
	if ring.WriteBlock([]float32{3}) {
		t.Fatal("third WriteBlock should fail, ring is full")
	}

	dst := make([]float32, 1)
	ring.ReadBlock(dst)
	if !ring.WriteBlock([]float32{3}) {
		t.Error("WriteBlock should succeed once a slot has been consumed")
	}
}

func TestControlRingRoundTrip(t *testing.T) {
	ring, err := NewControlRing(t.TempDir(), 4)
	if err != nil {
		t.Fatalf("NewControlRing: %v", err)
	}
	defer ring.Close()

	msg := []byte("set_parameter_value 0 0.75")
	if !ring.WriteMessage(msg) {
		t.Fatal("WriteMessage on empty ring returned false")
	}

	got, ok := ring.ReadMessage()
	if !ok {
		t.Fatal("ReadMessage after one write returned false")
	}
	if !bytes.Equal(got, msg) {
		t.Errorf("ReadMessage = %q, want %q", got, msg)
	}

	if _, ok := ring.ReadMessage(); ok {
		t.Error("ReadMessage on drained ring returned true")
	}
}

func TestControlRingRejectsOversizeMessage(t *testing.T) {
	ring, err := NewControlRing(t.TempDir(), 1)
	if err != nil {
		t.Fatalf("NewControlRing: %v", err)
	}
	defer ring.Close()

	oversize := bytes.Repeat([]byte{0x41}, controlRingSlotBytes)
	if ring.WriteMessage(oversize) {
		t.Error("WriteMessage should reject a payload exceeding one slot")
	}
}

func TestControlRingFullWhenConsumerLags(t *testing.T) {
	ring, err := NewControlRing(t.TempDir(), 2)
	if err != nil {
		t.Fatalf("NewControlRing: %v", err)
	}
	defer ring.Close()

	if !ring.WriteMessage([]byte("a")) {
		t.Fatal("first WriteMessage should succeed")
	}
	if !ring.WriteMessage([]byte("b")) {
		t.Fatal("second WriteMessage should succeed (capacity 2)")
	}
	if ring.WriteMessage([]byte("c")) {
		t.Fatal("third WriteMessage should fail, ring is full")
	}

	if _, ok := ring.ReadMessage(); !ok {
		t.Fatal("ReadMessage should drain the first queued message")
	}
	if !ring.WriteMessage([]byte("c")) {
		t.Error("WriteMessage should succeed once a slot has been consumed")
	}
}

func TestControlRingMessageOrderIsFIFO(t *testing.T) {
	ring, err := NewControlRing(t.TempDir(), 4)
	if err != nil {
		t.Fatalf("NewControlRing: %v", err)
	}
	defer ring.Close()

	msgs := [][]byte{[]byte("first"), []byte("second"), []byte("third")}
	for _, m := range msgs {
		if !ring.WriteMessage(m) {
			t.Fatalf("WriteMessage(%q) failed", m)
		}
	}
	for _, want := range msgs {
		got, ok := ring.ReadMessage()
		if !ok {
			t.Fatalf("ReadMessage: expected %q, ring empty", want)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("ReadMessage = %q, want %q", got, want)
		}
	}
}
