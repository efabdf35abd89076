// Package jpegquality estimates the quality setting a JPEG file was encoded
// with by comparing its quantization tables against the standard IJG tables.
// Knowing the source quality lets callers skip recompression that would only
// grow the file.
package jpegquality

import (
	"bytes"
	"errors"
	"io"
	"math"
)

var (
	ErrInvalidJPEG  = errors.New("invalid JPEG header")
	ErrWrongTable   = errors.New("wrong size for quantization table")
	ErrShortSegment = errors.New("short segment length")
	ErrShortDQT     = errors.New("section DQT is too short")
)

const (
	markerSOI = 0xffd8
	markerEOI = 0xffd9
	markerSOS = 0xffda
	markerDQT = 0xffdb
)

// Annex K reference tables in zig-zag order, the order DQT stores values in.
var lumaQuant = [64]int{
	16, 11, 12, 14, 12, 10, 16, 14,
	13, 14, 18, 17, 16, 19, 24, 40,
	26, 24, 22, 22, 24, 49, 35, 37,
	29, 40, 58, 51, 61, 60, 57, 51,
	56, 55, 64, 72, 92, 78, 64, 68,
	87, 69, 55, 56, 80, 109, 81, 87,
	95, 98, 103, 104, 103, 62, 77, 113,
	121, 112, 100, 120, 92, 101, 103, 99,
}

var chromaQuant = [64]int{
	17, 18, 18, 24, 21, 24, 47, 26,
	26, 47, 99, 66, 56, 66, 99, 99,
	99, 99, 99, 99, 99, 99, 99, 99,
	99, 99, 99, 99, 99, 99, 99, 99,
	99, 99, 99, 99, 99, 99, 99, 99,
	99, 99, 99, 99, 99, 99, 99, 99,
	99, 99, 99, 99, 99, 99, 99, 99,
	99, 99, 99, 99, 99, 99, 99, 99,
}

type jpegReader struct {
	rs      io.ReadSeeker
	quality int
}

// New reads quantization tables from rs and derives the encoding quality.
// The reader is rewound first, so the same reader can be passed in again.
func New(rs io.ReadSeeker) (*jpegReader, error) {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	jr := &jpegReader{rs: rs}
	if err := jr.parse(); err != nil {
		return nil, err
	}
	return jr, nil
}

// NewWithBytes is New over an in-memory JPEG.
func NewWithBytes(buf []byte) (*jpegReader, error) {
	return New(bytes.NewReader(buf))
}

// Quality returns the estimated encoding quality in the range 1..100.
func (jr *jpegReader) Quality() int {
	return jr.quality
}

// readMarker returns the next two-byte marker, skipping fill bytes,
// or 0 when the stream ends or is not positioned at a marker.
func (jr *jpegReader) readMarker() int {
	var buf [2]byte
	if _, err := io.ReadFull(jr.rs, buf[:]); err != nil {
		return 0
	}
	if buf[0] != 0xff {
		return 0
	}
	for buf[1] == 0xff {
		if _, err := io.ReadFull(jr.rs, buf[1:]); err != nil {
			return 0
		}
	}
	return int(buf[0])<<8 | int(buf[1])
}

func (jr *jpegReader) readLength() int {
	var buf [2]byte
	if _, err := io.ReadFull(jr.rs, buf[:]); err != nil {
		return 0
	}
	return int(buf[0])<<8 | int(buf[1])
}

func (jr *jpegReader) parse() error {
	if jr.readMarker() != markerSOI {
		return ErrInvalidJPEG
	}
	for {
		marker := jr.readMarker()
		switch marker {
		case 0, markerEOI, markerSOS:
			// Past the point where tables may appear.
			return ErrInvalidJPEG
		}
		length := jr.readLength()
		if length < 2 {
			return ErrShortSegment
		}
		payload := make([]byte, length-2)
		if _, err := io.ReadFull(jr.rs, payload); err != nil {
			return ErrShortSegment
		}
		if marker == markerDQT {
			return jr.parseDQT(payload)
		}
	}
}

// parseDQT walks the tables of a DQT segment. The luminance table (id 0)
// decides the reported quality; without one the first table found is used.
func (jr *jpegReader) parseDQT(payload []byte) error {
	fallback := 0
	for i := 0; i < len(payload); {
		precision, id := int(payload[i]>>4), int(payload[i]&0x0f)
		if precision > 1 || id > 3 {
			return ErrWrongTable
		}
		i++
		size := 64
		if precision == 1 {
			size = 128
		}
		if len(payload[i:]) < size {
			return ErrShortDQT
		}
		var table [64]int
		for j := range 64 {
			if precision == 1 {
				table[j] = int(payload[i+2*j])<<8 | int(payload[i+2*j+1])
			} else {
				table[j] = int(payload[i+j])
			}
		}
		i += size

		base := &chromaQuant
		if id == 0 {
			base = &lumaQuant
		}
		q := estimateQuality(&table, base)
		if id == 0 {
			jr.quality = q
			return nil
		}
		if fallback == 0 {
			fallback = q
		}
	}
	if fallback == 0 {
		return ErrInvalidJPEG
	}
	jr.quality = fallback
	return nil
}

// estimateQuality inverts the IJG scaling formula: the mean ratio of the
// file's table to the reference table approximates the scale factor the
// encoder used.
func estimateQuality(table, base *[64]int) int {
	var sum float64
	for i, v := range table {
		if v < 1 {
			v = 1
		}
		sum += 100 * float64(v) / float64(base[i])
	}
	scale := sum / 64
	var q float64
	if scale <= 100 {
		q = (200 - scale) / 2
	} else {
		q = 5000 / scale
	}
	return min(max(int(math.Round(q)), 1), 100)
}
