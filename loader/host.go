// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package loader

// ModuleHandle identifies a module resolved by Host.LoadModule. Its concrete
// meaning (an HMODULE on Windows, an offset into a fake address space in
// tests) is entirely up to the Host implementation.
type ModuleHandle uintptr

// Host is the set of OS primitives the loader needs but never calls
// directly, so the pipeline in this package can run against any GOOS during
// `go test` with a stub, and against real Windows syscalls in production via
// internal/winhost. Grounded on original_source/src/lib.rs's direct
// kernel32 calls (VirtualAlloc/VirtualFree/VirtualProtect/LoadLibraryA/
// GetProcAddress) and memmod_windows.go's equivalent golang.org/x/sys/windows
// calls, both collapsed behind one seam here.
type Host interface {
	// Allocate reserves and commits size bytes of read-write memory. A
	// non-zero preferred requests that specific base; the loader falls back
	// to preferred == 0 (host's choice) per the PreferredBase policy.
	Allocate(preferred uint64, size uintptr) (uintptr, error)

	// LoadModule resolves a module by name, coalescing with the host's own
	// module table the way the real OS loader does for repeated imports of
	// the same DLL.
	LoadModule(name string) (ModuleHandle, error)

	// ResolveByName resolves an exported function by name within mod.
	ResolveByName(mod ModuleHandle, name string) (uintptr, error)

	// ResolveByOrdinal resolves an exported function by ordinal within mod.
	ResolveByOrdinal(mod ModuleHandle, ordinal uint16) (uintptr, error)

	// Reprotect changes the page protection of [addr, addr+size).
	Reprotect(addr uintptr, size uintptr, protect uint32) error

	// Release frees [addr, addr+size), the inverse of Allocate.
	Release(addr uintptr, size uintptr) error

	// NativePageSize reports the host's page size, used to round arena
	// sizes up the way memmod_windows.go's alignUp does.
	NativePageSize() uintptr
}

// PreferredBase selects how the Arena picks its base address. The original
// source only ever sketches this as a commented-out enum in
// original_source/src/lib.rs; this module wires it up for real.
type PreferredBase int

const (
	// PreferredDefault tries the image's own OptionalHeader.ImageBase first,
	// falling back to whatever address the host chooses if that fails.
	PreferredDefault PreferredBase = iota

	// PreferredExact requires Loader.PreferredAddr; fails with OutOfMemory
	// if that exact address is unavailable, with no fallback.
	PreferredExact

	// PreferredDefaultExact requires the image's own ImageBase; fails with
	// OutOfMemory if unavailable, with no fallback.
	PreferredDefaultExact

	// PreferredAny skips the preferred-address attempt entirely and always
	// lets the host choose.
	PreferredAny
)
