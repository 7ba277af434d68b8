// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package loader

import (
	"errors"
	"testing"

	pe "github.com/th0rex/pe-load"
	"github.com/th0rex/pe-load/loadertest"
)

func newTestArena(stub *loadertest.Stub, size uintptr) *Arena {
	return &Arena{host: stub, base: stub.Base(), size: size}
}

// relocBlock builds one IMAGE_BASE_RELOCATION block: a 4-byte page RVA, a
// 4-byte block size, then a sequence of (type<<12 | offset) uint16 entries.
func relocBlock(pageRVA uint32, entries ...uint16) []byte {
	size := uint32(8 + 2*len(entries))
	b := make([]byte, 0, size)
	b = append(b, u32le(pageRVA)...)
	b = append(b, u32le(size)...)
	for _, e := range entries {
		b = append(b, u16le(e)...)
	}
	return b
}

func u32le(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func u16le(v uint16) []byte {
	return []byte{byte(v), byte(v >> 8)}
}

func TestRelocateHighLowAndDir64(t *testing.T) {
	const imageBase = uint64(0x140000000)
	const textRVA = 0x1000

	// Two fixups inside .text: a 4-byte HIGHLOW at offset 0x10 and an
	// 8-byte DIR64 at offset 0x20, plus one padding ABSOLUTE entry.
	text := make([]byte, 0x100)
	putU32(text, 0x10, uint32(imageBase+0x9999))
	putU64(text, 0x20, imageBase+0x8888)

	block := relocBlock(textRVA,
		uint16(relocHighLow)<<12|0x10,
		uint16(relocDir64)<<12|0x20,
		uint16(relocAbsolute)<<12|0x00,
	)

	sections := []sectionSpec{
		{name: ".text", rva: textRVA, data: text, characteristics: 0x60000020},
		{name: ".reloc", rva: 0x2000, data: block, characteristics: 0x42000040},
	}
	dataDirs := [16]pe.DataDirectory{}
	dataDirs[pe.ImageDirectoryEntryBaseReloc] = pe.DataDirectory{VirtualAddress: 0x2000, Size: uint32(len(block))}

	buf := buildPE64(t, imageBase, textRVA, dataDirs, sections, false)
	view, err := newImageView(buf)
	if err != nil {
		t.Fatalf("newImageView: %v", err)
	}

	stub := loadertest.New(int(view.sizeOfImage())+0x10000, 1)
	arena := newTestArena(stub, uintptr(view.sizeOfImage()))
	if err := mapSections(arena, view); err != nil {
		t.Fatalf("mapSections: %v", err)
	}

	if err := relocate(arena, view); err != nil {
		t.Fatalf("relocate: %v", err)
	}

	delta := uint64(arena.Base()) - imageBase

	got32 := Deref[uint32](arena.Resolve(textRVA + 0x10))
	want32 := uint32(imageBase+0x9999) + uint32(delta)
	if got32 != want32 {
		t.Errorf("HIGHLOW fixup = %#x, want %#x", got32, want32)
	}

	got64 := Deref[uint64](arena.Resolve(textRVA + 0x20))
	want64 := imageBase + 0x8888 + delta
	if got64 != want64 {
		t.Errorf("DIR64 fixup = %#x, want %#x", got64, want64)
	}
}

func TestRelocateUnsupportedType(t *testing.T) {
	const imageBase = uint64(0x140000000)
	const textRVA = 0x1000

	text := make([]byte, 0x100)
	// type 1 (HIGHLOW's lesser-used cousin, HIGH-only) isn't in the
	// supported set.
	block := relocBlock(textRVA, uint16(1)<<12|0x10)

	sections := []sectionSpec{
		{name: ".text", rva: textRVA, data: text, characteristics: 0x60000020},
		{name: ".reloc", rva: 0x2000, data: block, characteristics: 0x42000040},
	}
	dataDirs := [16]pe.DataDirectory{}
	dataDirs[pe.ImageDirectoryEntryBaseReloc] = pe.DataDirectory{VirtualAddress: 0x2000, Size: uint32(len(block))}

	buf := buildPE64(t, imageBase, textRVA, dataDirs, sections, false)
	view, err := newImageView(buf)
	if err != nil {
		t.Fatalf("newImageView: %v", err)
	}

	stub := loadertest.New(int(view.sizeOfImage())+0x10000, 1)
	arena := newTestArena(stub, uintptr(view.sizeOfImage()))
	if err := mapSections(arena, view); err != nil {
		t.Fatalf("mapSections: %v", err)
	}

	err = relocate(arena, view)
	var want UnsupportedRelocationType
	if !errors.As(err, &want) {
		t.Fatalf("relocate error = %v, want UnsupportedRelocationType", err)
	}
	if want.Tag != 1 {
		t.Errorf("Tag = %d, want 1", want.Tag)
	}
}

func putU32(b []byte, off int, v uint32) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	b[off+3] = byte(v >> 24)
}

func putU64(b []byte, off int, v uint64) {
	for i := 0; i < 8; i++ {
		b[off+i] = byte(v >> (8 * i))
	}
}
