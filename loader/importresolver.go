// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package loader

import pe "github.com/th0rex/pe-load"

const ordinalFlag64 = uint64(1) << 63

type importDescriptor struct {
	OriginalFirstThunk uint32
	TimeDateStamp      uint32
	ForwarderChain     uint32
	Name               uint32
	FirstThunk         uint32
}

// resolveImports walks every import descriptor, resolves its module via
// host.LoadModule, and patches every thunk in that descriptor's Import
// Address Table in place with a resolved function pointer. The first-thunk
// table doubles as both the request (ordinal or name RVA, read from the
// Original First Thunk if present, else from First Thunk itself) and the
// destination of the resolution: when
// OriginalFirstThunk is absent the same slots are read and then overwritten
// with resolved addresses in place.
//
// Grounded on original_source/src/lib.rs's resolve_imports for control flow
// and memmod_windows.go's buildImportTable for the ordinal-flag-check idiom.
func resolveImports(host Host, arena *Arena, view *imageView) error {
	dir := view.dataDirectory(pe.ImageDirectoryEntryImport)
	if dir.VirtualAddress == 0 || dir.Size == 0 {
		return nil
	}

	descAddr := arena.Resolve(dir.VirtualAddress)

	for {
		desc := Deref[importDescriptor](descAddr)
		if desc.Name == 0 && desc.FirstThunk == 0 && desc.OriginalFirstThunk == 0 {
			break
		}

		name := CString(arena.Resolve(desc.Name))
		mod, err := host.LoadModule(name)
		if err != nil {
			return LoadModuleFailed{Name: name}
		}

		thunkRVA := desc.OriginalFirstThunk
		if thunkRVA == 0 {
			thunkRVA = desc.FirstThunk
		}
		thunkAddr := arena.Resolve(thunkRVA)
		iatAddr := arena.Resolve(desc.FirstThunk)

		for i := uintptr(0); ; i++ {
			slot := thunkAddr.Add(i * 8)
			thunk := Deref[uint64](slot)
			if thunk == 0 {
				break
			}

			var resolved uintptr
			if thunk&ordinalFlag64 != 0 {
				resolved, err = host.ResolveByOrdinal(mod, uint16(thunk&0xFFFF))
			} else {
				nameAddr := arena.Resolve(uint32(thunk)).Add(2) // skip the 16-bit hint
				resolved, err = host.ResolveByName(mod, CString(nameAddr))
			}
			if err != nil || resolved == 0 {
				return LoadModuleFailed{Name: name}
			}

			Store[uint64](iatAddr.Add(i*8), uint64(resolved))
		}

		descAddr = descAddr.Add(20) // sizeof(importDescriptor)
	}

	return nil
}
