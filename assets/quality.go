package assets

import (
	"encoding/binary"
	"errors"
)

// stdLuminanceQT is the reference luminance quantization table from the JPEG
// standard, the one quality settings scale. Order does not matter here, only
// the sum of the entries is used.
var stdLuminanceQT = [64]int{
	16, 11, 10, 16, 24, 40, 51, 61,
	12, 12, 14, 19, 26, 58, 60, 55,
	14, 13, 16, 24, 40, 57, 69, 56,
	14, 17, 22, 29, 51, 87, 80, 62,
	18, 22, 37, 56, 68, 109, 103, 77,
	24, 35, 55, 64, 81, 104, 113, 92,
	49, 64, 78, 87, 103, 121, 120, 101,
	72, 92, 95, 98, 112, 100, 103, 99,
}

// Quality estimates the quality setting a JPEG was encoded with by comparing
// its first quantization table against the reference table. The estimate
// lands within a couple of points of the original setting for encoders that
// follow the standard scaling, which covers libjpeg and the Go encoder.
func Quality(data []byte) (int, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return 0, errors.New("not a JPEG")
	}

	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xFF {
			i++
			continue
		}
		marker := data[i+1]
		switch {
		case marker == 0xFF: // fill byte
			i++
			continue
		case marker == 0xD8 || marker >= 0xD0 && marker <= 0xD7: // no payload
			i += 2
			continue
		case marker == 0xDA || marker == 0xD9: // scan data or end
			return 0, errors.New("no quantization table before scan")
		}
		length := int(binary.BigEndian.Uint16(data[i+2:]))
		if length < 2 || i+2+length > len(data) {
			return 0, errors.New("truncated segment")
		}
		if marker == 0xDB {
			return qualityFromDQT(data[i+4 : i+2+length])
		}
		i += 2 + length
	}
	return 0, errors.New("no quantization table")
}

// qualityFromDQT derives the quality estimate from the first table of a DQT
// segment. The segment may carry 8 or 16 bit entries.
func qualityFromDQT(seg []byte) (int, error) {
	if len(seg) < 1 {
		return 0, errors.New("empty quantization segment")
	}
	precision := seg[0] >> 4

	var sum float64
	switch precision {
	case 0:
		if len(seg) < 1+64 {
			return 0, errors.New("truncated quantization table")
		}
		for i := range 64 {
			sum += float64(seg[1+i])
		}
	default:
		if len(seg) < 1+128 {
			return 0, errors.New("truncated quantization table")
		}
		for i := range 64 {
			sum += float64(binary.BigEndian.Uint16(seg[1+2*i:]))
		}
	}

	var ref float64
	for _, v := range stdLuminanceQT {
		ref += float64(v)
	}

	scale := sum * 100 / ref
	var q float64
	if scale <= 100 {
		q = (200 - scale) / 2
	} else {
		q = 5000 / scale
	}
	return min(max(int(q+0.5), 1), 100), nil
}
