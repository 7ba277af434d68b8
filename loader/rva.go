// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package loader

import "unsafe"

// RVA is a relative virtual address: an offset from an image's base that
// carries no meaning on its own. It must be resolved against the base an
// image actually ended up mapped at before it denotes live memory.
//
// Modeled as a distinct type so it can never be mistaken for a raw pointer
// or a file offset; original_source/src/rva.rs makes the same distinction
// with a generic RVA<Storage, Resolved> type, which Go's lack of
// const-generics collapses into this single named uint32.
type RVA uint32

// Resolve turns the RVA into a Pointer inside the image mapped at base.
func (r RVA) Resolve(base uintptr) Pointer {
	return Pointer(base + uintptr(r))
}

// Pointer is a raw address inside a mapped image. It carries no liveness
// guarantee beyond the Arena that produced the base it was resolved from;
// callers must not retain a Pointer past the Arena's Release.
type Pointer uintptr

// Add returns the Pointer offset by n bytes.
func (p Pointer) Add(n uintptr) Pointer {
	return p + Pointer(n)
}

// Deref reads a value of type T at p.
func Deref[T any](p Pointer) T {
	return *(*T)(unsafe.Pointer(uintptr(p)))
}

// Store writes v at p.
func Store[T any](p Pointer, v T) {
	*(*T)(unsafe.Pointer(uintptr(p))) = v
}

// Bytes returns a byte slice view of n bytes starting at p, backed directly
// by the live mapping (not a copy).
func Bytes(p Pointer, n uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(p))), n)
}

// CString reads a NUL-terminated byte string starting at p.
func CString(p Pointer) string {
	var b []byte
	for {
		c := Deref[byte](p)
		if c == 0 {
			break
		}
		b = append(b, c)
		p = p.Add(1)
	}
	return string(b)
}
