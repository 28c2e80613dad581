package lcd

import "strings"

// Pad fits text to exactly width cells: longer text is truncated, shorter
// text is filled with spaces so stale characters from a previous, longer
// string are overwritten. Runes outside printable ASCII become '?' since the
// controller's character ROM does not map them.
func Pad(text string, width int) string {
	if width <= 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(width)
	n := 0
	for _, r := range text {
		if n == width {
			break
		}
		if r < 0x20 || r > 0x7E {
			r = '?'
		}
		b.WriteByte(byte(r))
		n++
	}
	for ; n < width; n++ {
		b.WriteByte(' ')
	}
	return b.String()
}
