// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package loader

// mapSections copies the header region and every section's raw bytes into
// the arena at their declared virtual offsets, zero-filling bss-style
// sections (SizeOfRawData == 0) and the tail of any section whose raw data
// is shorter than its virtual size. Sections with VirtualAddress == 0 are
// table entries describing no mapped content and are skipped.
//
// Grounded on memmod_windows.go's copySections/realSectionSize and
// original_source/src/lib.rs's map_module.
func mapSections(arena *Arena, view *imageView) error {
	hdrSize := uintptr(view.sizeOfHeaders())
	if hdrSize > arena.Size() {
		hdrSize = arena.Size()
	}
	copy(Bytes(arena.Resolve(0), hdrSize), view.buf[:hdrSize])

	for _, s := range view.sections() {
		h := s.Header
		if h.VirtualAddress == 0 {
			continue
		}

		dst := arena.Resolve(h.VirtualAddress)

		if h.SizeOfRawData == 0 {
			zeroFill(dst, uintptr(view.sectionAlignment()))
			continue
		}

		n := uintptr(h.SizeOfRawData)
		if uintptr(h.VirtualSize) != 0 && uintptr(h.VirtualSize) < n {
			n = uintptr(h.VirtualSize)
		}

		raw := h.PointerToRawData
		if uint64(raw)+uint64(n) > uint64(len(view.buf)) {
			n = uintptr(len(view.buf)) - uintptr(raw)
		}
		copy(Bytes(dst, n), view.buf[raw:uint32(raw)+uint32(n)])

		if uintptr(h.VirtualSize) > n {
			zeroFill(dst.Add(n), uintptr(h.VirtualSize)-n)
		}
	}

	return nil
}

func zeroFill(dst Pointer, n uintptr) {
	b := Bytes(dst, n)
	for i := range b {
		b[i] = 0
	}
}
