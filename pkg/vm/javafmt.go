package vm

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
)

// FormatDouble renders d the way Double.toString does: plain decimal for
// magnitudes in [1e-3, 1e7) and computerized scientific notation
// otherwise, always with at least one fractional digit.
func FormatDouble(d float64) string {
	return formatJava(d, 64)
}

// FormatFloat renders f the way Float.toString does.
func FormatFloat(f float32) string {
	return formatJava(float64(f), 32)
}

func formatJava(d float64, bits int) string {
	switch {
	case math.IsNaN(d):
		return "NaN"
	case math.IsInf(d, 1):
		return "Infinity"
	case math.IsInf(d, -1):
		return "-Infinity"
	case d == 0:
		if math.Signbit(d) {
			return "-0.0"
		}
		return "0.0"
	}

	abs := math.Abs(d)
	if abs >= 1e-3 && abs < 1e7 {
		s := strconv.FormatFloat(d, 'f', -1, bits)
		if !strings.ContainsRune(s, '.') {
			s += ".0"
		}
		return s
	}

	// A one digit shortest form is widened to the closest two digit
	// decimal: 4.9E-324 rather than 5.0E-324.
	s := strconv.FormatFloat(d, 'E', -1, bits)
	if !strings.ContainsRune(s, '.') {
		s = strconv.FormatFloat(d, 'E', 1, bits)
	}
	mant, exp, _ := strings.Cut(s, "E")
	neg := strings.HasPrefix(exp, "-")
	exp = strings.TrimLeft(exp, "+-")
	exp = strings.TrimLeft(exp, "0")
	if exp == "" {
		exp = "0"
	}
	if neg {
		exp = "-" + exp
	}
	return mant + "E" + exp
}

// javaChars returns the UTF-16 code units of s.
func javaChars(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

func fromJavaChars(units []uint16) string {
	return string(utf16.Decode(units))
}

// StringHash computes String.hashCode over the UTF-16 code units of s.
func StringHash(s string) int32 {
	var h int32
	for _, u := range javaChars(s) {
		h = 31*h + int32(u)
	}
	return h
}
