// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package loader

import "fmt"

// OutOfMemory is returned when the Arena could not be allocated, at either
// the preferred base or any host-chosen base.
type OutOfMemory struct {
	Size uintptr
}

func (e OutOfMemory) Error() string {
	return fmt.Sprintf("loader: out of memory allocating %d bytes", e.Size)
}

// UnsupportedRelocationType is returned when a base-relocation entry carries
// a type tag outside {Absolute, HighLow, Dir64}; see relocator.go.
type UnsupportedRelocationType struct {
	Tag uint16
}

func (e UnsupportedRelocationType) Error() string {
	return fmt.Sprintf("loader: unsupported relocation type %d", e.Tag)
}

// LoadModuleFailed is returned when an imported module could not be loaded,
// or when a name/ordinal within an otherwise-loaded module could not be
// resolved. The original source (original_source/src/lib.rs) silently wrote
// a null pointer into the IAT slot for the latter case; this module elevates
// both to the same terminal error, since from the caller's point of view an
// unresolved import is an unresolved import regardless of which host call
// failed.
type LoadModuleFailed struct {
	Name string
}

func (e LoadModuleFailed) Error() string {
	return fmt.Sprintf("loader: could not resolve import %q", e.Name)
}

// ProtectFailed is returned when a section's final page protection could
// not be applied.
type ProtectFailed struct {
	Offset, Length uintptr
}

func (e ProtectFailed) Error() string {
	return fmt.Sprintf("loader: failed to protect [%#x, %#x)", e.Offset, e.Offset+e.Length)
}
