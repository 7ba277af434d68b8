// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

//go:build windows

package loader

import "syscall"

// invokeCallback calls a raw function pointer inside the mapped image with
// the stdcall-equivalent convention Windows x64 TLS callbacks and DLL entry
// points use. Grounded on memmod_windows.go's own use of syscall.Syscall for
// exactly this purpose (TLS callbacks and DLL_PROCESS_ATTACH notification).
//
// This is overridden by loader_test.go (same package, unexported var) so the
// pipeline's properties can be tested without ever executing arbitrary
// machine code, even on a Windows test runner.
var invokeCallback = func(addr, a0, a1, a2 uintptr) uintptr {
	r, _, _ := syscall.Syscall(addr, 3, a0, a1, a2)
	return r
}
