// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package loader maps a Windows PE image supplied as an in-memory byte
// buffer into the current process's address space and runs every fix-up
// needed to make it executable: section copying, base relocation, import
// resolution, page protection, and TLS callback initialization. It is a
// user-space re-implementation of the pieces of the OS loader that matter
// for images the OS never loaded itself.
//
// Grounded throughout on original_source/src/lib.rs (the reference this
// package was distilled from) for control flow, and on
// DarkiT-wireguard/tun/wintun/memmod/memmod_windows.go for idiomatic Go
// implementation of the same algorithms against real Windows syscalls.
package loader

import (
	"fmt"

	"github.com/th0rex/pe-load/internal/log"
)

// Loader maps one PE image per Load call. It is not safe to reuse across
// concurrent loads that might race on Host state; a fresh Loader per load,
// or external synchronization, is expected.
type Loader struct {
	Host Host

	// Preferred selects the base-address policy. Zero value is
	// PreferredDefault: try the image's own ImageBase, fall back to
	// whatever the host picks.
	Preferred PreferredBase

	// PreferredAddr is consulted only when Preferred is PreferredExact.
	PreferredAddr uint64

	logger *log.Helper
}

// New constructs a Loader over the given Host. Pass internal/winhost.New()
// for real Windows execution, or a loadertest.Stub for tests.
func New(host Host) *Loader {
	return &Loader{Host: host}
}

// WithLogger attaches a logger, matching the pe package's nil-safe
// *log.Helper convention.
func (l *Loader) WithLogger(logger *log.Helper) *Loader {
	l.logger = logger
	return l
}

// LoadedImage is the result of a successful Load: it owns the Arena and
// exposes the entry point the caller invokes (directly for an EXE, through
// WrapDLLEntry for a DLL).
type LoadedImage struct {
	// EntryPoint is the absolute address of the image's entry point, or 0
	// if the optional header declares none.
	EntryPoint uintptr

	IsDLL bool

	arena *Arena
}

// Release frees the Arena. Idempotent.
func (img *LoadedImage) Release() error {
	return img.arena.Release()
}

// BaseAddress returns the image's actual mapped base.
func (img *LoadedImage) BaseAddress() uintptr {
	return img.arena.Base()
}

// Load runs the full pipeline over buf: parse headers, allocate an Arena,
// map sections, relocate, resolve imports, apply page protections, run TLS
// callbacks, and compute the entry point. Any failure at or after section
// mapping releases the Arena before returning; no partial LoadedImage is
// ever returned on error.
func (l *Loader) Load(buf []byte) (*LoadedImage, error) {
	view, err := newImageView(buf)
	if err != nil {
		return nil, fmt.Errorf("loader: parsing image: %w", err)
	}

	preferredAddr := view.imageBase()
	if l.Preferred == PreferredExact {
		preferredAddr = l.PreferredAddr
	}
	arena, err := allocateArena(l.Host, l.Preferred, preferredAddr, uintptr(view.neededSize()))
	if err != nil {
		return nil, err
	}

	if err := mapSections(arena, view); err != nil {
		_ = arena.Release()
		return nil, fmt.Errorf("loader: mapping sections: %w", err)
	}

	if err := relocate(arena, view); err != nil {
		_ = arena.Release()
		return nil, err
	}

	if err := resolveImports(l.Host, arena, view); err != nil {
		_ = arena.Release()
		return nil, err
	}

	if err := applyProtections(arena, view); err != nil {
		_ = arena.Release()
		return nil, err
	}

	if err := runTLSCallbacks(arena, view); err != nil {
		_ = arena.Release()
		return nil, err
	}

	var entry uintptr
	if ep := view.addressOfEntryPoint(); ep != 0 {
		entry = uintptr(arena.Resolve(ep))
	}

	return &LoadedImage{
		EntryPoint: entry,
		IsDLL:      view.isDLL(),
		arena:      arena,
	}, nil
}

// WrapDLLEntry binds a DLL's entry point to a nullary callable that invokes
// it as entry(moduleHandle, DLL_PROCESS_ATTACH, 0), where moduleHandle is
// the image's own actual mapped base. Returns the boolean result of the DLL
// entry point (nonzero means success, per DllMain's contract).
//
// original_source/src/lib.rs's wrapped_dll_main passes a null HMODULE
// here, with a TODO comment acknowledging the bug directly above the call;
// this fixes it by threading through the image's real mapped base.
func WrapDLLEntry(img *LoadedImage) func() bool {
	return func() bool {
		r := invokeCallback(img.EntryPoint, img.BaseAddress(), dllProcessAttach, 0)
		return r != 0
	}
}
