// Package dds reads dimension metadata from DDS texture containers without
// decoding pixel data.
package dds

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Magic is the four-byte signature opening every DDS file.
var Magic = []byte("DDS ")

const (
	// headerSize is the DDS_HEADER block length that follows the magic.
	headerSize = 124
	// Height precedes width in the on-disk header layout.
	heightOffset = 8
	widthOffset  = 12
)

var (
	// ErrBadMagic reports a file that does not open with the DDS signature.
	ErrBadMagic = errors.New("not a DDS file")
	// ErrTruncated reports a file too short to hold the fixed header.
	ErrTruncated = errors.New("truncated DDS header")
)

// ReadDimensions extracts width and height from the fixed DDS header. It reads
// at most magic + header bytes regardless of file size and has no side
// effects.
func ReadDimensions(path string) (width, height uint32, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return 0, 0, fmt.Errorf("%w: %s", ErrTruncated, path)
	}
	if !bytes.Equal(magic[:], Magic) {
		return 0, 0, fmt.Errorf("%w: %s", ErrBadMagic, path)
	}

	var header [headerSize]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		return 0, 0, fmt.Errorf("%w: %s", ErrTruncated, path)
	}

	height = binary.LittleEndian.Uint32(header[heightOffset:])
	width = binary.LittleEndian.Uint32(header[widthOffset:])
	return width, height, nil
}
