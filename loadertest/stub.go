// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package loadertest provides a loader.Host backed by an ordinary Go byte
// slice instead of real VirtualAlloc/LoadLibrary calls, so the pipeline in
// package loader can be exercised on any GOOS without touching the OS
// loader at all.
package loadertest

import (
	"fmt"
	"unsafe"

	"github.com/th0rex/pe-load/loader"
)

// Export is one resolvable symbol within a fake module: either Name or
// Ordinal (or both) identify it, and Addr is the value the pipeline will
// patch into the importer's IAT.
type Export struct {
	Name    string
	Ordinal uint16
	Addr    uintptr
}

// Module is a fake DLL the Stub can hand out to LoadModule.
type Module struct {
	Name    string
	Exports []Export
}

// ReprotectCall records one Stub.Reprotect invocation for assertions.
type ReprotectCall struct {
	Addr    uintptr
	Size    uintptr
	Protect uint32
}

// Stub is an in-memory loader.Host. Its backing store is a single pinned
// byte slice sized at construction; Allocate always returns (a slice into)
// that same backing store, since the pipeline under test never needs more
// than one concurrent arena.
type Stub struct {
	mem      []byte
	pageSize uintptr

	modules map[string]*Module
	handles map[loader.ModuleHandle]*Module
	nextH   loader.ModuleHandle

	Released   bool
	ReleasedAt uintptr
	Reprotects []ReprotectCall
}

// New returns a Stub whose backing store is size bytes, with the given
// native page size (pass a real value like 4096 to exercise rounding, or 1
// to disable it).
func New(size int, pageSize uintptr) *Stub {
	return &Stub{
		mem:      make([]byte, size),
		pageSize: pageSize,
		modules:  map[string]*Module{},
		handles:  map[loader.ModuleHandle]*Module{},
		nextH:    1,
	}
}

// AddModule registers a fake module the next LoadModule("name") call will
// resolve to.
func (s *Stub) AddModule(m *Module) {
	s.modules[m.Name] = m
}

// Base returns the address of the Stub's backing store, for tests that need
// to compute expected RVA-relative addresses.
func (s *Stub) Base() uintptr {
	return uintptr(unsafe.Pointer(&s.mem[0]))
}

func (s *Stub) Allocate(preferred uint64, size uintptr) (uintptr, error) {
	if int(size) > len(s.mem) {
		return 0, fmt.Errorf("loadertest: backing store too small: need %d, have %d", size, len(s.mem))
	}
	return s.Base(), nil
}

func (s *Stub) LoadModule(name string) (loader.ModuleHandle, error) {
	m, ok := s.modules[name]
	if !ok {
		return 0, fmt.Errorf("loadertest: unknown module %q", name)
	}
	h := s.nextH
	s.nextH++
	s.handles[h] = m
	return h, nil
}

func (s *Stub) ResolveByName(mod loader.ModuleHandle, name string) (uintptr, error) {
	m, ok := s.handles[mod]
	if !ok {
		return 0, fmt.Errorf("loadertest: unknown module handle %d", mod)
	}
	for _, e := range m.Exports {
		if e.Name == name {
			return e.Addr, nil
		}
	}
	return 0, fmt.Errorf("loadertest: %s: unresolved export %q", m.Name, name)
}

func (s *Stub) ResolveByOrdinal(mod loader.ModuleHandle, ordinal uint16) (uintptr, error) {
	m, ok := s.handles[mod]
	if !ok {
		return 0, fmt.Errorf("loadertest: unknown module handle %d", mod)
	}
	for _, e := range m.Exports {
		if e.Ordinal == ordinal {
			return e.Addr, nil
		}
	}
	return 0, fmt.Errorf("loadertest: %s: unresolved ordinal %d", m.Name, ordinal)
}

func (s *Stub) Reprotect(addr uintptr, size uintptr, protect uint32) error {
	s.Reprotects = append(s.Reprotects, ReprotectCall{Addr: addr, Size: size, Protect: protect})
	return nil
}

func (s *Stub) Release(addr uintptr, size uintptr) error {
	s.Released = true
	s.ReleasedAt = addr
	return nil
}

func (s *Stub) NativePageSize() uintptr {
	return s.pageSize
}
