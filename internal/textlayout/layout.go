/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

// Deterministic text measurement and glyph placement. Layout works on parsed
// sfnt fonts directly so the renderer can fill and stroke real glyph outlines
// and the engine can hit-test against the same boxes.

import (
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// FontSpec describes a requested font.
type FontSpec struct {
	Family string
	SizePx float64
	Bold   bool
	Italic bool
}

// Params controls spacing. LineHeight is a multiplier of the font size.
type Params struct {
	SizePx        float64
	LetterSpacing float64 // px added between glyphs
	LineHeight    float64
}

// Metrics are the font's vertical metrics in pixels at the laid out size.
type Metrics struct {
	Ascent, Descent float64
}

// Glyph is a positioned glyph. X is relative to the line start.
type Glyph struct {
	Rune  rune
	Index sfnt.GlyphIndex
	X     float64
}

// Line is one laid out line; Baseline is measured from the block top.
type Line struct {
	Text     string
	Glyphs   []Glyph
	Width    float64
	Baseline float64
}

// Block is laid out text. Its local box is (0, 0, Width, Height).
type Block struct {
	Lines       []Line
	Width       float64
	Height      float64
	LineAdvance float64
	Metrics     Metrics
	SizePx      float64
}

// Layout places text (split on '\n') left-aligned. Kerning from the font is applied.
func Layout(f *sfnt.Font, text string, p Params) Block {
	if p.SizePx <= 0 {
		p.SizePx = 12
	}
	if p.LineHeight <= 0 {
		p.LineHeight = 1.16
	}
	var buf sfnt.Buffer
	ppem := toFixed(p.SizePx)
	fm, err := f.Metrics(&buf, ppem, font.HintingNone)
	met := Metrics{Ascent: p.SizePx * 0.8, Descent: p.SizePx * 0.2}
	if err == nil {
		met = Metrics{Ascent: fromFixed(fm.Ascent), Descent: fromFixed(fm.Descent)}
	}
	adv := p.SizePx * p.LineHeight
	b := Block{LineAdvance: adv, Metrics: met, SizePx: p.SizePx}
	for i, s := range strings.Split(text, "\n") {
		ln := Line{Text: s, Baseline: float64(i)*adv + (adv-(met.Ascent+met.Descent))/2 + met.Ascent}
		x := 0.0
		prev := sfnt.GlyphIndex(0)
		n := 0
		for _, r := range s {
			idx, err := f.GlyphIndex(&buf, r)
			if err != nil {
				idx = 0
			}
			if n > 0 {
				if k, err := f.Kern(&buf, prev, idx, ppem, font.HintingNone); err == nil {
					x += fromFixed(k)
				}
				x += p.LetterSpacing
			}
			ln.Glyphs = append(ln.Glyphs, Glyph{Rune: r, Index: idx, X: x})
			if a, err := f.GlyphAdvance(&buf, idx, ppem, font.HintingNone); err == nil {
				x += fromFixed(a)
			}
			prev = idx
			n++
		}
		ln.Width = x
		if ln.Width > b.Width {
			b.Width = ln.Width
		}
		b.Lines = append(b.Lines, ln)
	}
	b.Height = float64(len(b.Lines)) * adv
	return b
}

// PathSink receives glyph outlines. *gg.Context satisfies it.
type PathSink interface {
	MoveTo(x, y float64)
	LineTo(x, y float64)
	QuadraticTo(x1, y1, x2, y2 float64)
	CubicTo(x1, y1, x2, y2, x3, y3 float64)
	ClosePath()
}

// Outline emits the outlines of every glyph in b with the block's top-left at (ox, oy).
// Glyphs that cannot be loaded are skipped.
func Outline(f *sfnt.Font, b Block, ox, oy float64, sink PathSink) {
	var buf sfnt.Buffer
	ppem := toFixed(b.SizePx)
	for _, ln := range b.Lines {
		by := oy + ln.Baseline
		for _, g := range ln.Glyphs {
			segs, err := f.LoadGlyph(&buf, g.Index, ppem, nil)
			if err != nil {
				continue
			}
			gx := ox + g.X
			open := false
			for _, s := range segs {
				a := s.Args
				switch s.Op {
				case sfnt.SegmentOpMoveTo:
					if open {
						sink.ClosePath()
					}
					sink.MoveTo(gx+fromFixed(a[0].X), by+fromFixed(a[0].Y))
					open = true
				case sfnt.SegmentOpLineTo:
					sink.LineTo(gx+fromFixed(a[0].X), by+fromFixed(a[0].Y))
				case sfnt.SegmentOpQuadTo:
					sink.QuadraticTo(gx+fromFixed(a[0].X), by+fromFixed(a[0].Y), gx+fromFixed(a[1].X), by+fromFixed(a[1].Y))
				case sfnt.SegmentOpCubeTo:
					sink.CubicTo(gx+fromFixed(a[0].X), by+fromFixed(a[0].Y),
						gx+fromFixed(a[1].X), by+fromFixed(a[1].Y),
						gx+fromFixed(a[2].X), by+fromFixed(a[2].Y))
				}
			}
			if open {
				sink.ClosePath()
			}
		}
	}
}

// UnderlineRect returns the underline bar for line i relative to the block top: y and thickness.
func (b Block) UnderlineRect(i int) (y, thickness float64) {
	return b.Lines[i].Baseline + b.SizePx*0.1, b.SizePx / 15
}

// Measure returns the block size of text without keeping glyph positions.
func Measure(fl *FontLibrary, spec FontSpec, text string, p Params) (w, h float64) {
	if p.SizePx <= 0 {
		p.SizePx = spec.SizePx
	}
	b := Layout(fl.Resolve(spec), text, p)
	return b.Width, b.Height
}

func toFixed(v float64) fixed.Int26_6   { return fixed.Int26_6(v * 64) }
func fromFixed(v fixed.Int26_6) float64 { return float64(v) / 64 }
