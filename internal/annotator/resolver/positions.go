package resolver

import (
	"github.com/biosustain/lifelike-annotator/internal/annotator/tokenizer"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// newLineThreshold is the fraction of glyph height a baseline must shift
// before part of a keyword is treated as sitting on a new line and given its
// own rectangle.
const newLineThreshold = 0.30

// CropBox is the per-page translation from extraction coordinates to display
// coordinates.
type CropBox struct {
	X float64
	Y float64
}

// TextPosition is one visual fragment of a keyword: the fragment text plus
// its bounding rectangle.  A keyword broken across lines yields one position
// per line.
type TextPosition struct {
	Value string
	Rect  annotation.Rect
}

// BuildKeywordPositions computes the display rectangles for a token.  Words
// of a multi-word token are joined by single spaces; spaces carry no
// coordinates.  A glyph whose baseline moved more than the new-line threshold
// starts a new rectangle, so "E. \nColi" yields two positions while
// "E. Coli" yields one.
func BuildKeywordPositions(token tokenizer.Token, chars []tokenizer.Char, cropbox CropBox) []TextPosition {
	var positions []TextPosition

	var (
		startX, startY float64
		endX, endY     float64
		prevHeight     float64
		keyword        string
		started        bool
	)

	flush := func() {
		positions = append(positions, TextPosition{
			Value: keyword,
			Rect: annotation.Rect{
				startX + cropbox.X,
				startY + cropbox.Y,
				endX + cropbox.X,
				endY + cropbox.Y,
			},
		})
	}

	for wi, word := range token.Words {
		if wi > 0 {
			keyword += " "
		}
		for _, off := range word.Offsets {
			if off < 0 || off >= len(chars) {
				continue
			}
			ch := chars[off]
			if ch.IsWhitespace() {
				keyword += " "
				continue
			}

			if !started {
				startX, startY, endX, endY = ch.X0, ch.Y0, ch.X1, ch.Y1
				prevHeight = ch.Height
				keyword += ch.Text
				started = true
				continue
			}

			if ch.Y0 != startY {
				diff := ch.Y0 - startY
				if diff < 0 {
					diff = -diff
				}
				if diff > prevHeight*newLineThreshold {
					flush()
					startX, startY, endX, endY = ch.X0, ch.Y0, ch.X1, ch.Y1
					prevHeight = ch.Height
					keyword = ch.Text
					continue
				}
			}
			if ch.Y1 > endY {
				endY = ch.Y1
			}
			if ch.X1 > endX {
				endX = ch.X1
			}
			keyword += ch.Text
		}
	}

	flush()
	return positions
}
