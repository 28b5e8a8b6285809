package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	barFilled = "█"
	barEmpty  = "░"
)

// DefaultBarLength is the width of a poll bar in glyphs.
const DefaultBarLength = 10

// Abbreviate formats a counter as 500, 1.5K or 1.2M. A trailing ".0" is
// dropped and 1000K is promoted to 1M.
func Abbreviate(n int64) string {
	if n < 1_000 {
		return strconv.FormatInt(n, 10)
	}
	if n < 1_000_000 {
		s := fmt.Sprintf("%.1f", float64(n)/1_000)
		if s != "1000.0" {
			return strings.TrimSuffix(s, ".0") + "K"
		}
	}
	s := fmt.Sprintf("%.1f", float64(n)/1_000_000)
	return strings.TrimSuffix(s, ".0") + "M"
}

// Bar renders percent as a fixed-width run of filled and empty glyphs,
// rounding to the nearest glyph. Out-of-range percentages are clamped.
func Bar(percent float64, length int) string {
	if length <= 0 {
		length = DefaultBarLength
	}
	if math.IsNaN(percent) {
		percent = 0
	}
	filled := int(math.Round(percent / 100 * float64(length)))
	if filled < 0 {
		filled = 0
	}
	if filled > length {
		filled = length
	}
	return strings.Repeat(barFilled, filled) + strings.Repeat(barEmpty, length-filled)
}

// Length counts UTF-16 code units, the unit chat platforms measure
// message limits in.
func Length(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
var attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func escape(s string) string { return textEscaper.Replace(s) }

func link(href, text string) string {
	if href == "" {
		return escape(text)
	}
	return `<a href="` + attrEscaper.Replace(href) + `">` + escape(text) + `</a>`
}
