// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package loader

import (
	"errors"

	pe "github.com/th0rex/pe-load"
)

// imageView is the read-only window over the Input Buffer the pipeline
// parses once, up front. It wraps the pe package's own header/section
// parser, which only reads DOS/rich/NT headers, COFF symbols, and the
// section table — the loader walks the data directories it needs itself,
// directly against the Arena, once sections have been copied to their
// mapped offsets. Grounded on saferwall-pe's file.go/ntheader.go/section.go,
// reused rather than reimplemented.
type imageView struct {
	file *pe.File
	buf  []byte
}

// ErrUnsupportedImage is returned for PE32 (32-bit) images; the loader
// pipeline only targets PE32+ images. The file header's machine type is not
// checked.
var ErrUnsupportedImage = errors.New("loader: only 64-bit PE images are supported")

func newImageView(buf []byte) (*imageView, error) {
	file, err := pe.NewBytes(buf, &pe.Options{})
	if err != nil {
		return nil, err
	}
	if err := file.Parse(); err != nil {
		return nil, err
	}
	if !file.Is64 {
		return nil, ErrUnsupportedImage
	}
	return &imageView{file: file, buf: buf}, nil
}

func (v *imageView) optionalHeader() pe.ImageOptionalHeader64 {
	return v.file.NtHeader.OptionalHeader.(pe.ImageOptionalHeader64)
}

func (v *imageView) dataDirectory(entry pe.ImageDirectoryEntry) pe.DataDirectory {
	return v.optionalHeader().DataDirectory[entry]
}

func (v *imageView) isDLL() bool {
	return v.file.NtHeader.FileHeader.Characteristics&pe.ImageFileDLL != 0
}

func (v *imageView) sizeOfImage() uint32 {
	return v.optionalHeader().SizeOfImage
}

func (v *imageView) sizeOfHeaders() uint32 {
	return v.optionalHeader().SizeOfHeaders
}

func (v *imageView) imageBase() uint64 {
	return v.optionalHeader().ImageBase
}

func (v *imageView) sectionAlignment() uint32 {
	return v.optionalHeader().SectionAlignment
}

func (v *imageView) addressOfEntryPoint() uint32 {
	return v.optionalHeader().AddressOfEntryPoint
}

func (v *imageView) sections() []pe.Section {
	return v.file.Sections
}

// neededSize is the total bytes the image needs once mapped. SizeOfImage is
// the optional header's own declaration of this (memmod_windows.go sizes its
// VirtualAlloc the same way, via alignUp(SizeOfImage, SectionAlignment)):
// unlike a maximum over SizeOfRawData alone, it already accounts for a
// section's full VirtualSize, including a .bss-style tail larger than its
// raw data — mapSections zero-fills out to VirtualSize, so sizing the arena
// from raw data only could let that fill run past the committed range.
func (v *imageView) neededSize() uint32 {
	size := v.sizeOfImage()
	if hdr := v.sizeOfHeaders(); hdr > size {
		size = hdr
	}
	for _, s := range v.sections() {
		h := s.Header
		if h.VirtualAddress == 0 {
			continue
		}
		end := h.VirtualAddress + h.VirtualSize
		if h.VirtualSize == 0 {
			end = h.VirtualAddress + v.sectionAlignment()
		}
		if end > size {
			size = end
		}
	}
	return size
}
