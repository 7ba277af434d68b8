// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package loader

import (
	"bytes"
	"encoding/binary"
	"testing"

	pe "github.com/th0rex/pe-load"
)

// sectionSpec describes one section of a synthetic PE64 image for the
// builder below.
type sectionSpec struct {
	name            string
	rva             uint32
	virtualSize     uint32 // defaults to len(data) when zero
	data            []byte
	characteristics uint32
}

const (
	fileAlign64 = uint32(0x200)
	sectAlign64 = uint32(0x1000)
)

// buildPE64 assembles a minimal but structurally valid 64-bit PE image
// (DOS header, NT headers, section table, section bytes) the way a real
// linker would lay one out, just with every field the loader pipeline
// doesn't inspect left at its zero value.
func buildPE64(t *testing.T, imageBase uint64, entryRVA uint32, dataDirs [16]pe.DataDirectory, sections []sectionSpec, isDLL bool) []byte {
	t.Helper()

	const (
		dosHeaderSize    = 64
		sigSize          = 4
		fileHeaderSize   = 20
		optHeaderSize    = 240
		sectHeaderSize   = 40
	)

	numSections := uint16(len(sections))
	headerEnd := uint32(dosHeaderSize) + sigSize + fileHeaderSize + optHeaderSize + uint32(numSections)*sectHeaderSize
	sizeOfHeaders := alignUp32(headerEnd, fileAlign64)

	// Lay out raw file offsets for each section, contiguous from
	// sizeOfHeaders, each padded up to fileAlign64.
	rawOffsets := make([]uint32, len(sections))
	cursor := sizeOfHeaders
	for i, s := range sections {
		rawOffsets[i] = cursor
		cursor += alignUp32(uint32(len(s.data)), fileAlign64)
	}
	fileSize := cursor

	// sizeOfImage mirrors imageView.neededSize: highest (rva+virtualSize).
	sizeOfImage := sizeOfHeaders
	for _, s := range sections {
		vsz := s.virtualSize
		if vsz == 0 {
			vsz = uint32(len(s.data))
		}
		if end := alignUp32(s.rva+vsz, sectAlign64); end > sizeOfImage {
			sizeOfImage = end
		}
	}

	buf := bytes.NewBuffer(make([]byte, 0, fileSize))

	dos := pe.ImageDOSHeader{
		Magic:                 0x5A4D, // "MZ"
		AddressOfNewEXEHeader: dosHeaderSize,
	}
	mustWrite(t, buf, dos)

	mustWrite(t, buf, uint32(0x00004550)) // "PE\0\0"

	characteristics := uint16(0x0002) // IMAGE_FILE_EXECUTABLE_IMAGE
	if isDLL {
		characteristics |= 0x2000 // IMAGE_FILE_DLL
	}
	fh := pe.ImageFileHeader{
		Machine:              0x8664, // IMAGE_FILE_MACHINE_AMD64
		NumberOfSections:     numSections,
		SizeOfOptionalHeader: optHeaderSize,
		Characteristics:      pe.ImageFileHeaderCharacteristicsType(characteristics),
	}
	mustWrite(t, buf, fh)

	oh := pe.ImageOptionalHeader64{
		Magic:               0x20B,
		AddressOfEntryPoint: entryRVA,
		ImageBase:           imageBase,
		SectionAlignment:    sectAlign64,
		FileAlignment:       fileAlign64,
		SizeOfImage:         sizeOfImage,
		SizeOfHeaders:       sizeOfHeaders,
		Subsystem:           3, // IMAGE_SUBSYSTEM_WINDOWS_CUI
		SizeOfStackReserve:  0x100000,
		SizeOfStackCommit:   0x1000,
		SizeOfHeapReserve:   0x100000,
		SizeOfHeapCommit:    0x1000,
		NumberOfRvaAndSizes: 16,
		DataDirectory:       dataDirs,
	}
	mustWrite(t, buf, oh)

	for i, s := range sections {
		vsz := s.virtualSize
		if vsz == 0 {
			vsz = uint32(len(s.data))
		}
		var name [8]uint8
		copy(name[:], s.name)
		sh := pe.ImageSectionHeader{
			Name:             name,
			VirtualSize:      vsz,
			VirtualAddress:   s.rva,
			SizeOfRawData:    uint32(len(s.data)),
			PointerToRawData: rawOffsets[i],
			Characteristics:  s.characteristics,
		}
		mustWrite(t, buf, sh)
	}

	// Pad to sizeOfHeaders, then write each section's raw bytes at its
	// aligned file offset.
	for uint32(buf.Len()) < sizeOfHeaders {
		buf.WriteByte(0)
	}
	for i, s := range sections {
		for uint32(buf.Len()) < rawOffsets[i] {
			buf.WriteByte(0)
		}
		buf.Write(s.data)
	}
	for uint32(buf.Len()) < fileSize {
		buf.WriteByte(0)
	}

	return buf.Bytes()
}

func mustWrite(t *testing.T, buf *bytes.Buffer, v interface{}) {
	t.Helper()
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		t.Fatalf("binary.Write: %v", err)
	}
}

func alignUp32(v, align uint32) uint32 {
	return (v + align - 1) &^ (align - 1)
}
