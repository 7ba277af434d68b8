// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

//go:build !windows

package loader

// invokeCallback has no meaningful non-Windows implementation: calling a raw
// function pointer with a Windows x64 calling convention only makes sense
// against a real Windows image base. The loader pipeline itself is fully
// testable on any GOOS because loader_test.go overrides this var before any
// test that exercises TLS callbacks or entry-point invocation runs.
var invokeCallback = func(addr, a0, a1, a2 uintptr) uintptr {
	panic("loader: invokeCallback has no non-Windows implementation; override in tests")
}
