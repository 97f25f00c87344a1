package dataset

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// TIFF tags read by decodeFloatTIFF.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagStripByteCounts = 279
	tagSampleFormat    = 339
	tagTileWidth       = 322

	typeShort = 3
	typeLong  = 4

	sampleFormatFloat = 3
)

// decodeFloatTIFF reads an uncompressed, stripped, single-channel TIFF of
// 32-bit IEEE floats in metres. Non-finite samples are missing readings and
// become 0.
func decodeFloatTIFF(buf []byte) (*DepthImage, error) {
	if len(buf) < 8 {
		return nil, errors.New("float tiff: short header")
	}
	var bo binary.ByteOrder
	switch string(buf[:4]) {
	case "II\x2A\x00":
		bo = binary.LittleEndian
	case "MM\x00\x2A":
		bo = binary.BigEndian
	default:
		return nil, errors.New("float tiff: bad header")
	}

	size := int64(len(buf))
	ifd := int64(bo.Uint32(buf[4:8]))
	if ifd+2 > size {
		return nil, errors.New("float tiff: directory out of range")
	}
	entries := int64(bo.Uint16(buf[ifd:]))
	if ifd+2+entries*12 > size {
		return nil, errors.New("float tiff: directory out of range")
	}
	tags := make(map[uint16][]uint32, entries)
	for i := range entries {
		e := buf[ifd+2+i*12 : ifd+14+i*12]
		tag := bo.Uint16(e[0:2])
		vals, err := ifdValues(buf, bo, bo.Uint16(e[2:4]), int64(bo.Uint32(e[4:8])), e[8:12])
		if err != nil {
			return nil, errors.Wrapf(err, "float tiff: tag %d", tag)
		}
		tags[tag] = vals
	}
	first := func(tag uint16, def uint32) uint32 {
		if v := tags[tag]; len(v) > 0 {
			return v[0]
		}
		return def
	}

	cols, rows := int64(first(tagImageWidth, 0)), int64(first(tagImageLength, 0))
	switch {
	case cols == 0 || rows == 0:
		return nil, errors.New("float tiff: missing dimensions")
	case first(tagSampleFormat, 1) != sampleFormatFloat || first(tagBitsPerSample, 1) != 32:
		return nil, errors.New("float tiff: samples are not 32-bit floats")
	case first(tagSamplesPerPixel, 1) != 1:
		return nil, errors.New("float tiff: more than one sample per pixel")
	case first(tagCompression, 1) != 1:
		return nil, errors.New("float tiff: compressed data is not supported")
	case len(tags[tagTileWidth]) > 0:
		return nil, errors.New("float tiff: tiled images are not supported")
	}
	if cols > size/4 || rows > size/(cols*4) {
		return nil, errors.Errorf("float tiff: %dx%d image larger than file", cols, rows)
	}
	need := rows * cols * 4

	offsets, counts := tags[tagStripOffsets], tags[tagStripByteCounts]
	if len(offsets) == 0 || len(offsets) != len(counts) {
		return nil, errors.New("float tiff: bad strip table")
	}
	px := make([]byte, 0, need)
	for i, off := range offsets {
		start, end := int64(off), int64(off)+int64(counts[i])
		if end > size {
			return nil, errors.New("float tiff: strip out of range")
		}
		px = append(px, buf[start:end]...)
	}
	if int64(len(px)) < need {
		return nil, errors.Errorf("float tiff: %d bytes of pixel data, need %d", len(px), need)
	}

	d := NewDepthImage(int(rows), int(cols))
	for i := range d.Data {
		v := float64(math.Float32frombits(bo.Uint32(px[i*4:])))
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		d.Data[i] = v
	}
	return d, nil
}

// ifdValues decodes the SHORT or LONG values of one directory entry. Other
// types are skipped.
func ifdValues(buf []byte, bo binary.ByteOrder, typ uint16, count int64, inline []byte) ([]uint32, error) {
	var width int64
	switch typ {
	case typeShort:
		width = 2
	case typeLong:
		width = 4
	default:
		return nil, nil
	}
	if count > int64(len(buf))/width {
		return nil, errors.Errorf("%d values do not fit in the file", count)
	}
	raw := inline
	if total := count * width; total > 4 {
		off := int64(bo.Uint32(inline))
		if off+total > int64(len(buf)) {
			return nil, errors.New("values out of range")
		}
		raw = buf[off : off+total]
	}
	vals := make([]uint32, count)
	for i := range vals {
		if width == 2 {
			vals[i] = uint32(bo.Uint16(raw[i*2:]))
		} else {
			vals[i] = bo.Uint32(raw[i*4:])
		}
	}
	return vals, nil
}
