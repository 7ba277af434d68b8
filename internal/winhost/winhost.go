// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

//go:build windows

// Package winhost implements loader.Host against real Windows syscalls via
// golang.org/x/sys/windows, the same package memmod_windows.go builds on.
package winhost

import (
	"fmt"

	"golang.org/x/sys/windows"

	"github.com/th0rex/pe-load/loader"
)

// Host is a loader.Host backed by kernel32's virtual memory and module
// loader APIs.
type Host struct {
	modules map[loader.ModuleHandle]windows.Handle
	next    loader.ModuleHandle
}

// New returns a ready-to-use Windows Host.
func New() *Host {
	return &Host{modules: map[loader.ModuleHandle]windows.Handle{}, next: 1}
}

// Allocate reserves and commits size bytes of read-write memory at preferred
// when non-zero, or wherever the OS chooses when preferred is 0. A failed
// attempt at a specific address is returned as an error; any retry at an
// OS-chosen address is made by the loader according to its PreferredBase.
func (h *Host) Allocate(preferred uint64, size uintptr) (uintptr, error) {
	addr, err := windows.VirtualAlloc(uintptr(preferred), size, windows.MEM_RESERVE|windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil {
		return 0, fmt.Errorf("winhost: VirtualAlloc: %w", err)
	}
	if addr == 0 {
		return 0, fmt.Errorf("winhost: VirtualAlloc returned no address")
	}
	return addr, nil
}

// LoadModule resolves name via LoadLibraryEx, restricted to the system
// library search path the way memmod_windows.go's buildImportTable does.
func (h *Host) LoadModule(name string) (loader.ModuleHandle, error) {
	handle, err := windows.LoadLibraryEx(name, 0, windows.LOAD_LIBRARY_SEARCH_SYSTEM32)
	if err != nil {
		return 0, fmt.Errorf("winhost: LoadLibraryEx %q: %w", name, err)
	}
	id := h.next
	h.next++
	h.modules[id] = handle
	return id, nil
}

func (h *Host) ResolveByName(mod loader.ModuleHandle, name string) (uintptr, error) {
	handle, ok := h.modules[mod]
	if !ok {
		return 0, fmt.Errorf("winhost: unknown module handle %d", mod)
	}
	addr, err := windows.GetProcAddress(handle, name)
	if err != nil {
		return 0, fmt.Errorf("winhost: GetProcAddress %q: %w", name, err)
	}
	return addr, nil
}

func (h *Host) ResolveByOrdinal(mod loader.ModuleHandle, ordinal uint16) (uintptr, error) {
	handle, ok := h.modules[mod]
	if !ok {
		return 0, fmt.Errorf("winhost: unknown module handle %d", mod)
	}
	addr, err := windows.GetProcAddressByOrdinal(handle, uintptr(ordinal))
	if err != nil {
		return 0, fmt.Errorf("winhost: GetProcAddressByOrdinal %d: %w", ordinal, err)
	}
	return addr, nil
}

func (h *Host) Reprotect(addr uintptr, size uintptr, protect uint32) error {
	var old uint32
	return windows.VirtualProtect(addr, size, protect, &old)
}

func (h *Host) Release(addr uintptr, size uintptr) error {
	for id, handle := range h.modules {
		windows.FreeLibrary(handle)
		delete(h.modules, id)
	}
	return windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
}

func (h *Host) NativePageSize() uintptr {
	var info windows.SystemInfo
	windows.GetSystemInfo(&info)
	return uintptr(info.PageSize)
}
