/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"math"
	"testing"
)

type countingSink struct{ moves, draws, closes int }

func (c *countingSink) MoveTo(x, y float64)                    { c.moves++ }
func (c *countingSink) LineTo(x, y float64)                    { c.draws++ }
func (c *countingSink) QuadraticTo(x1, y1, x2, y2 float64)     { c.draws++ }
func (c *countingSink) CubicTo(x1, y1, x2, y2, x3, y3 float64) { c.draws++ }
func (c *countingSink) ClosePath()                             { c.closes++ }

func TestLayoutMultiline(t *testing.T) {
	f := NewFontLibrary().Resolve(FontSpec{Family: "Impact"})
	b := Layout(f, "Hello\nworld!!", Params{SizePx: 80, LineHeight: 1.16})
	if len(b.Lines) != 2 {
		t.Fatalf("lines = %d", len(b.Lines))
	}
	if math.Abs(b.Height-2*80*1.16) > 1e-9 {
		t.Fatalf("height = %v", b.Height)
	}
	if b.Width <= 0 || b.Lines[1].Baseline <= b.Lines[0].Baseline {
		t.Fatalf("unexpected block %+v", b)
	}
	if b.Width != math.Max(b.Lines[0].Width, b.Lines[1].Width) {
		t.Fatalf("block width should be the widest line")
	}
}

func TestLetterSpacingWidensLine(t *testing.T) {
	f := NewFontLibrary().Resolve(FontSpec{})
	b0 := Layout(f, "ABCD", Params{SizePx: 40})
	b1 := Layout(f, "ABCD", Params{SizePx: 40, LetterSpacing: 5})
	if math.Abs(b1.Width-b0.Width-15) > 1e-6 {
		t.Fatalf("expected 3 gaps of 5px: w0=%v w1=%v", b0.Width, b1.Width)
	}
}

func TestLineHeightScalesHeight(t *testing.T) {
	f := NewFontLibrary().Resolve(FontSpec{})
	b0 := Layout(f, "a\nb", Params{SizePx: 50, LineHeight: 1})
	b1 := Layout(f, "a\nb", Params{SizePx: 50, LineHeight: 2})
	if b1.Height != 2*b0.Height {
		t.Fatalf("h0=%v h1=%v", b0.Height, b1.Height)
	}
}

func TestOutlineEmitsContours(t *testing.T) {
	f := NewFontLibrary().Resolve(FontSpec{Bold: true})
	b := Layout(f, "O k", Params{SizePx: 64})
	var s countingSink
	Outline(f, b, 10, 10, &s)
	if s.moves == 0 || s.draws == 0 || s.closes != s.moves {
		t.Fatalf("unexpected outline counts: %+v", s)
	}
}

func TestFallbackFamiliesDiffer(t *testing.T) {
	fl := NewFontLibrary()
	reg := fl.Resolve(FontSpec{Family: "Arial"})
	heavy := fl.Resolve(FontSpec{Family: "Impact"})
	mono := fl.Resolve(FontSpec{Family: "Courier New"})
	if reg == heavy || reg == mono || heavy == mono {
		t.Fatalf("expected distinct fallback fonts")
	}
	if fl.Resolve(FontSpec{Family: "impact, sans-serif"}) != heavy {
		t.Fatalf("family list should resolve by its first entry")
	}
}

func TestMeasure(t *testing.T) {
	w, h := Measure(NewFontLibrary(), FontSpec{Family: "Impact", SizePx: 90}, "Seu texto", Params{})
	if w <= 0 || math.Abs(h-90*1.16) > 1e-9 {
		t.Fatalf("w=%v h=%v", w, h)
	}
}

func TestBuiltinStyles(t *testing.T) {
	for _, name := range ListStyles() {
		if _, ok := GetStyle(name); !ok {
			t.Fatalf("style %s missing", name)
		}
	}
	s, _ := GetStyle("Sidebar")
	if s.Text != "Seu texto" || s.StrokeWidth != 4 || s.SizePx != 90 {
		t.Fatalf("unexpected sidebar preset %+v", s)
	}
	if len(FontFamilies()) != 7 || FontSizes()[0] != 24 || FontSizes()[len(FontSizes())-1] != 200 {
		t.Fatalf("unexpected option lists")
	}
}
