// Package nativeloader implements the dlopen-style dynamic loader every
// C-ABI format adapter (LADSPA, DSSI, VST2) uses to open a plugin's shared
// library and resolve its entry symbol.
//
// Grounded on Carla's own loading strategy (original_source's plugin
// adapters all dlopen the plugin binary and dlsym a single well-known
// entry point — e.g. "ladspa_descriptor", "dssi_descriptor",
// "VSTPluginMain") rather than linking against the plugin at build time,
// since the whole point of a plugin host is to load arbitrary binaries
// discovered at runtime.
package nativeloader

/*
#cgo linux LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// Library is an open native plugin binary.
type Library struct {
	path   string
	handle unsafe.Pointer
}

// Open dlopen's path with RTLD_NOW|RTLD_LOCAL, matching Carla's own
// loading flags (a plugin's symbols must not leak into the host or other
// plugins loaded in the same process).
func Open(path string) (*Library, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	handle := C.dlopen(cpath, C.RTLD_NOW|C.RTLD_LOCAL)
	if handle == nil {
		return nil, fmt.Errorf("nativeloader: dlopen %s: %s", path, C.GoString(C.dlerror()))
	}
	return &Library{path: path, handle: handle}, nil
}

// Symbol resolves a named exported symbol, returning its address. Callers
// cast the unsafe.Pointer to the function-pointer shape their format
// expects.
func (l *Library) Symbol(name string) (unsafe.Pointer, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	C.dlerror() // clear any pending error
	sym := C.dlsym(l.handle, cname)
	if errmsg := C.dlerror(); errmsg != nil {
		return nil, fmt.Errorf("nativeloader: dlsym %s in %s: %s", name, l.path, C.GoString(errmsg))
	}
	return sym, nil
}

// Path returns the filesystem path this library was opened from.
func (l *Library) Path() string { return l.path }

// Close unloads the library. Safe to call once; a plugin adapter calls
// this from its Unload/destruction path (spec.md §4.4 "Destruction
// deactivates, cleans the native state, frees the library.").
func (l *Library) Close() error {
	if l.handle == nil {
		return nil
	}
	if C.dlclose(l.handle) != 0 {
		return fmt.Errorf("nativeloader: dlclose %s: %s", l.path, C.GoString(C.dlerror()))
	}
	l.handle = nil
	return nil
}
