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

// buildImportSection lays out one import descriptor for module "TEST.dll"
// importing "Func" by name and ordinal 7 by ordinal, with OriginalFirstThunk
// pointing at a separate (unpatched) lookup table and FirstThunk at the IAT.
func buildImportSection(base uint32) (data []byte, dirRVA, dirSize uint32) {
	// Layout within the section, all offsets relative to `base`:
	//   0x000 import descriptor (20 bytes)
	//   0x014 null terminator descriptor (20 bytes)
	//   0x030 OriginalFirstThunk array: 2 entries + null (24 bytes)
	//   0x050 FirstThunk (IAT) array: 2 entries + null (24 bytes)
	//   0x070 hint/name entry for "Func": 2-byte hint + "Func\0"
	//   0x080 module name "TEST.dll\0"
	const (
		descOff   = 0x000
		origThunk = 0x030
		iat       = 0x050
		nameOff   = 0x070
		modOff    = 0x080
	)

	b := make([]byte, 0x100)

	// import descriptor: OriginalFirstThunk(0), TimeDateStamp(4),
	// ForwarderChain(8), Name(12), FirstThunk(16).
	putU32(b, descOff+0, base+origThunk)
	putU32(b, descOff+12, base+modOff)
	putU32(b, descOff+16, base+iat)

	// original first thunk: name import then ordinal import, then null
	putU64(b, origThunk+0, uint64(base+nameOff))
	putU64(b, origThunk+8, ordinalFlag64|7)

	// first thunk (IAT), pre-resolution mirrors original first thunk
	putU64(b, iat+0, uint64(base+nameOff))
	putU64(b, iat+8, ordinalFlag64|7)

	// hint/name entry
	copy(b[nameOff+2:], "Func\x00")

	// module name
	copy(b[modOff:], "TEST.dll\x00")

	return b, base + descOff, 40
}

func TestResolveImportsByNameAndOrdinal(t *testing.T) {
	const imageBase = uint64(0x140000000)
	const textRVA = 0x1000
	const importRVA = 0x2000

	data, dirRVA, dirSize := buildImportSection(importRVA)

	sections := []sectionSpec{
		{name: ".text", rva: textRVA, data: make([]byte, 0x10), characteristics: 0x60000020},
		{name: ".idata", rva: importRVA, data: data, characteristics: 0xC0000040},
	}
	dataDirs := [16]pe.DataDirectory{}
	dataDirs[pe.ImageDirectoryEntryImport] = pe.DataDirectory{VirtualAddress: dirRVA, Size: dirSize}

	buf := buildPE64(t, imageBase, textRVA, dataDirs, sections, false)
	view, err := newImageView(buf)
	if err != nil {
		t.Fatalf("newImageView: %v", err)
	}

	stub := loadertest.New(int(view.sizeOfImage())+0x10000, 1)
	stub.AddModule(&loadertest.Module{
		Name: "TEST.dll",
		Exports: []loadertest.Export{
			{Name: "Func", Addr: 0xDEADBEEF},
			{Ordinal: 7, Addr: 0xCAFEF00D},
		},
	})

	arena := newTestArena(stub, uintptr(view.sizeOfImage()))
	if err := mapSections(arena, view); err != nil {
		t.Fatalf("mapSections: %v", err)
	}

	if err := resolveImports(stub, arena, view); err != nil {
		t.Fatalf("resolveImports: %v", err)
	}

	iatBase := importRVA + 0x50
	gotName := Deref[uint64](arena.Resolve(iatBase))
	if gotName != 0xDEADBEEF {
		t.Errorf("name import = %#x, want %#x", gotName, 0xDEADBEEF)
	}
	gotOrd := Deref[uint64](arena.Resolve(iatBase + 8))
	if gotOrd != 0xCAFEF00D {
		t.Errorf("ordinal import = %#x, want %#x", gotOrd, 0xCAFEF00D)
	}
}

func TestResolveImportsMissingModule(t *testing.T) {
	const imageBase = uint64(0x140000000)
	const textRVA = 0x1000
	const importRVA = 0x2000

	data, dirRVA, dirSize := buildImportSection(importRVA)

	sections := []sectionSpec{
		{name: ".text", rva: textRVA, data: make([]byte, 0x10), characteristics: 0x60000020},
		{name: ".idata", rva: importRVA, data: data, characteristics: 0xC0000040},
	}
	dataDirs := [16]pe.DataDirectory{}
	dataDirs[pe.ImageDirectoryEntryImport] = pe.DataDirectory{VirtualAddress: dirRVA, Size: dirSize}

	buf := buildPE64(t, imageBase, textRVA, dataDirs, sections, false)
	view, err := newImageView(buf)
	if err != nil {
		t.Fatalf("newImageView: %v", err)
	}

	stub := loadertest.New(int(view.sizeOfImage())+0x10000, 1)
	// No module registered: LoadModule must fail.

	arena := newTestArena(stub, uintptr(view.sizeOfImage()))
	if err := mapSections(arena, view); err != nil {
		t.Fatalf("mapSections: %v", err)
	}

	err = resolveImports(stub, arena, view)
	var want LoadModuleFailed
	if !errors.As(err, &want) {
		t.Fatalf("resolveImports error = %v, want LoadModuleFailed", err)
	}
	if want.Name != "TEST.dll" {
		t.Errorf("Name = %q, want TEST.dll", want.Name)
	}
}

func TestResolveImportsNoDirectoryIsNoop(t *testing.T) {
	const imageBase = uint64(0x140000000)
	const textRVA = 0x1000

	sections := []sectionSpec{
		{name: ".text", rva: textRVA, data: make([]byte, 0x10), characteristics: 0x60000020},
	}
	buf := buildPE64(t, imageBase, textRVA, [16]pe.DataDirectory{}, sections, false)
	view, err := newImageView(buf)
	if err != nil {
		t.Fatalf("newImageView: %v", err)
	}

	stub := loadertest.New(int(view.sizeOfImage())+0x10000, 1)
	arena := newTestArena(stub, uintptr(view.sizeOfImage()))
	if err := mapSections(arena, view); err != nil {
		t.Fatalf("mapSections: %v", err)
	}

	if err := resolveImports(stub, arena, view); err != nil {
		t.Fatalf("resolveImports: %v", err)
	}
}
