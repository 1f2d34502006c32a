package utils

import (
	"math"
	"strings"
)

// Encoded-polyline codec: delta-encoded coordinates scaled to 1e-5, packed as
// base-63 variable-length integers (the classic Google format).

func EncodePolyline(points []Point) string {
	var encoded strings.Builder
	prevLat, prevLng := 0, 0

	for _, point := range points {
		lat := int(math.Round(point.Lat * 1e5))
		lng := int(math.Round(point.Lng * 1e5))

		encodeSignedNumber(lat-prevLat, &encoded)
		encodeSignedNumber(lng-prevLng, &encoded)

		prevLat = lat
		prevLng = lng
	}

	return encoded.String()
}

// DecodePolyline decodes an encoded polyline string. Malformed input is used
// only for display, so a truncated or corrupt tail degrades to the points
// decoded so far rather than an error.
func DecodePolyline(encoded string) []Point {
	points := make([]Point, 0, len(encoded)/4)
	lat, lng := 0, 0
	i := 0

	for i < len(encoded) {
		dLat, next, ok := decodeSignedNumber(encoded, i)
		if !ok {
			break
		}
		dLng, after, ok := decodeSignedNumber(encoded, next)
		if !ok {
			break
		}

		lat += dLat
		lng += dLng
		i = after

		points = append(points, Point{
			Lat: float64(lat) / 1e5,
			Lng: float64(lng) / 1e5,
		})
	}

	return points
}

func encodeSignedNumber(num int, out *strings.Builder) {
	sgnNum := num << 1
	if num < 0 {
		sgnNum = ^sgnNum
	}
	encodeNumber(sgnNum, out)
}

func encodeNumber(num int, out *strings.Builder) {
	for num >= 0x20 {
		out.WriteByte(byte((0x20 | (num & 0x1f)) + 63))
		num >>= 5
	}
	out.WriteByte(byte(num + 63))
}

func decodeSignedNumber(encoded string, start int) (int, int, bool) {
	result := 0
	shift := uint(0)
	i := start

	for {
		if i >= len(encoded) {
			return 0, i, false
		}
		b := int(encoded[i]) - 63
		if b < 0 {
			return 0, i, false
		}
		i++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), i, true
	}
	return result >> 1, i, true
}
