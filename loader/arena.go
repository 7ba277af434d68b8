// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package loader

// Arena is a scoped, owning handle to a contiguous range of committed
// process memory backing one mapped image. It is the sole owner of those
// pages: every pointer derived from it (RVAs resolved against Base, typed
// reads via Deref) is lifetime-bounded by it. Grounded on
// original_source/src/lib.rs's WindowsBox<T>, a RAII wrapper around
// VirtualAlloc/VirtualFree; Go has no destructors, so Release must be called
// explicitly, either by LoadedImage.Release or by the Loader on a failed
// pipeline stage.
type Arena struct {
	host     Host
	base     uintptr
	size     uintptr
	released bool
}

// Base returns the arena's actual mapped base address.
func (a *Arena) Base() uintptr { return a.base }

// Size returns the arena's committed size in bytes.
func (a *Arena) Size() uintptr { return a.size }

// Resolve returns a Pointer to byte offset off within the arena.
func (a *Arena) Resolve(off uint32) Pointer {
	return Pointer(a.base + uintptr(off))
}

// Reprotect changes the page protection of the sub-range
// [a.base+offset, a.base+offset+length).
func (a *Arena) Reprotect(offset, length uintptr, protect uint32) error {
	if err := a.host.Reprotect(a.base+offset, length, protect); err != nil {
		return ProtectFailed{Offset: offset, Length: length}
	}
	return nil
}

// Release frees the arena's pages via the host. Idempotent: a second call
// is a no-op, so Release is safe to reach from both a failure-unwind path
// and an explicit caller Release.
func (a *Arena) Release() error {
	if a.released {
		return nil
	}
	a.released = true
	return a.host.Release(a.base, a.size)
}

// allocateArena reserves and commits size bytes (rounded up to the host's
// native page size) according to pref/preferredAddr, and returns the owning
// Arena. Grounded on WindowsBox::alloc plus Loader::load's base-selection in
// original_source/src/lib.rs, and on memmod_windows.go's LoadLibrary, which
// tries VirtualAlloc at the image's own ImageBase first and falls back to
// letting the OS choose.
func allocateArena(host Host, pref PreferredBase, preferredAddr uint64, size uintptr) (*Arena, error) {
	page := host.NativePageSize()
	if page == 0 {
		page = 1
	}
	size = (size + page - 1) &^ (page - 1)

	tryAt := func(addr uint64) (uintptr, error) {
		return host.Allocate(addr, size)
	}

	var base uintptr
	var err error

	switch pref {
	case PreferredAny:
		base, err = tryAt(0)
	case PreferredExact, PreferredDefaultExact:
		base, err = tryAt(preferredAddr)
	default: // PreferredDefault
		base, err = tryAt(preferredAddr)
		if err != nil {
			base, err = tryAt(0)
		}
	}

	if err != nil {
		return nil, OutOfMemory{Size: size}
	}

	return &Arena{host: host, base: base, size: size}, nil
}
