// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package loader

// Win32 page-protection constants. Kept local to the loader rather than
// imported from golang.org/x/sys/windows so the table below (and its tests,
// run against loadertest.Stub) compile and run on any GOOS; internal/winhost
// passes these values to VirtualProtect unchanged, since the real
// windows.PAGE_* constants carry the same numeric values.
const (
	pageNoAccess         = 0x01
	pageReadOnly         = 0x02
	pageReadWrite        = 0x04
	pageWriteCopy        = 0x08
	pageExecute          = 0x10
	pageExecuteRead      = 0x20
	pageExecuteReadWrite = 0x40
	pageExecuteWriteCopy = 0x80
	pageNoCache          = 0x200
)

// protectionFlags is the 8-row (executable, readable, writable) -> Win32
// page-protection table, indexed as [execute][read][write]. Identical to
// memmod_windows.go's ProtectionFlags array and to original_source/src/lib.rs's
// mem_protect match expression.
var protectionFlags = [2][2][2]uint32{
	{ // not executable
		{pageNoAccess, pageWriteCopy},  // not readable: not writable, writable
		{pageReadOnly, pageReadWrite},  // readable: not writable, writable
	},
	{ // executable
		{pageExecute, pageExecuteWriteCopy},
		{pageExecuteRead, pageExecuteReadWrite},
	},
}

// sectionProtection returns the page-protection flags for a section's
// (executable, readable, writable, notCached) characteristics.
func sectionProtection(executable, readable, writable, notCached bool) uint32 {
	flags := protectionFlags[b2i(executable)][b2i(readable)][b2i(writable)]
	if notCached {
		flags |= pageNoCache
	}
	return flags
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

const (
	scnMemExecute     = 0x20000000
	scnMemRead        = 0x40000000
	scnMemWrite       = 0x80000000
	scnMemNotCached   = 0x04000000
)

// applyProtections runs strictly after relocation (which writes into pages
// about to become read-only) and strictly before TLS callbacks (which may
// run against fully-protected code).
func applyProtections(arena *Arena, view *imageView) error {
	for _, s := range view.sections() {
		h := s.Header
		if h.VirtualAddress == 0 || h.SizeOfRawData == 0 {
			continue
		}

		flags := sectionProtection(
			h.Characteristics&scnMemExecute != 0,
			h.Characteristics&scnMemRead != 0,
			h.Characteristics&scnMemWrite != 0,
			h.Characteristics&scnMemNotCached != 0,
		)

		if err := arena.Reprotect(uintptr(h.VirtualAddress), uintptr(h.SizeOfRawData), flags); err != nil {
			return err
		}
	}
	return nil
}
