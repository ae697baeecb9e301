package tui

import "strings"

// waveGlyphs maps an amplitude bucket to a bar glyph, lowest to highest.
var waveGlyphs = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// waveGlyph picks the glyph for one normalized amplitude sample.
func waveGlyph(level float64) rune {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	idx := int(level * float64(len(waveGlyphs)))
	if idx >= len(waveGlyphs) {
		idx = len(waveGlyphs) - 1
	}
	return waveGlyphs[idx]
}

// renderWave draws the most recent samples right-aligned in a fixed width,
// padding the left with the lowest bar so the wave scrolls in from the right.
func renderWave(levels []float64, width int) string {
	if width <= 0 {
		return ""
	}
	if len(levels) > width {
		levels = levels[len(levels)-width:]
	}

	var b strings.Builder
	for i := 0; i < width-len(levels); i++ {
		b.WriteRune(waveGlyphs[0])
	}
	for _, lv := range levels {
		b.WriteRune(waveGlyph(lv))
	}
	return b.String()
}
