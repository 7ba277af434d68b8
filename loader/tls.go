// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package loader

import pe "github.com/th0rex/pe-load"

const dllProcessAttach = 1

type tlsDirectory64 struct {
	StartAddressOfRawData uint64
	EndAddressOfRawData   uint64
	AddressOfIndex        uint64
	AddressOfCallBacks    uint64
	SizeOfZeroFill        uint32
	Characteristics       uint32
}

// runTLSCallbacks invokes every callback in the image's TLS callback vector,
// in order, with the process-attach reason. Runs last in the pipeline,
// after sections, relocations, imports, and protections are all final.
//
// AddressOfCallBacks is itself an absolute VA baked into the image and
// already fixed up by relocate, not an RVA. Grounded on original_source/src/lib.rs's tls_callbacks and
// memmod_windows.go's executeTLS.
func runTLSCallbacks(arena *Arena, view *imageView) error {
	dir := view.dataDirectory(pe.ImageDirectoryEntryTLS)
	if dir.VirtualAddress == 0 {
		return nil
	}

	tls := Deref[tlsDirectory64](arena.Resolve(dir.VirtualAddress))
	if tls.AddressOfCallBacks == 0 {
		return nil
	}

	callback := Pointer(uintptr(tls.AddressOfCallBacks))
	base := arena.Base()

	for {
		fn := Deref[uint64](callback)
		if fn == 0 {
			break
		}
		invokeCallback(uintptr(fn), base, dllProcessAttach, 0)
		callback = callback.Add(8)
	}

	return nil
}
