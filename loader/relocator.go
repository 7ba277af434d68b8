// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package loader

import pe "github.com/th0rex/pe-load"

// Base relocation entry type tags the loader actually understands. The pe
// package defines no relocation type enum of its own; the loader only
// targets 64-bit images, where types other than these three never appear in
// practice. Any other tag halts the load with UnsupportedRelocationType.
const (
	relocAbsolute = 0
	relocHighLow  = 3
	relocDir64    = 10
)

type relocBlockHeader struct {
	VirtualAddress uint32
	SizeOfBlock    uint32
}

// relocate walks the base-relocation directory and patches every fix-up
// using delta = actual mapped base - preferred base. A no-op when the image
// landed at its preferred base (no relocation block is even read) or when
// the directory is empty. Grounded on original_source/src/lib.rs's relocate
// and memmod_windows.go's performBaseRelocation.
func relocate(arena *Arena, view *imageView) error {
	preferred := view.imageBase()
	actual := uint64(arena.Base())

	if actual == preferred {
		return nil
	}

	dir := view.dataDirectory(pe.ImageDirectoryEntryBaseReloc)
	if dir.VirtualAddress == 0 {
		return nil
	}

	delta := actual - preferred
	block := arena.Resolve(dir.VirtualAddress)
	end := uint32(0)

	for end < dir.Size {
		hdr := Deref[relocBlockHeader](block)
		if hdr.VirtualAddress == 0 && hdr.SizeOfBlock == 0 {
			break
		}
		if hdr.SizeOfBlock < 8 {
			break
		}

		count := (hdr.SizeOfBlock - 8) / 2
		pageBase := arena.Resolve(hdr.VirtualAddress)
		for i := uint32(0); i < count; i++ {
			entry := Deref[uint16](block.Add(8 + uintptr(i)*2))
			tag := entry >> 12
			offset := uintptr(entry & 0x0FFF)
			target := pageBase.Add(offset)

			switch tag {
			case relocAbsolute:
				// Padding entry, no-op.
			case relocHighLow:
				Store[uint32](target, Deref[uint32](target)+uint32(delta))
			case relocDir64:
				Store[uint64](target, Deref[uint64](target)+delta)
			default:
				return UnsupportedRelocationType{Tag: tag}
			}
		}

		block = block.Add(uintptr(hdr.SizeOfBlock))
		end += hdr.SizeOfBlock
	}

	return nil
}
