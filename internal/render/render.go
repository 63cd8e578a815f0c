/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package render rasterizes a scene document with fogleman/gg. The same code
// path draws interactive frames (with the selection overlay) and export frames
// (without it), so what is exported is what was edited.
package render

import (
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
	"golang.org/x/image/font/sfnt"

	"gothumb/internal/scene"
	"gothumb/internal/textlayout"
	"gothumb/internal/vector"
)

// DefaultBase is painted under interactive frames. Export frames stay
// transparent where nothing covers them.
var DefaultBase = vector.MustHex("#111111")

// Renderer draws documents. It is safe for concurrent use.
type Renderer struct {
	Fonts *textlayout.FontLibrary
	Base  vector.Color

	mu     sync.Mutex
	scaled map[scaleKey]image.Image
}

type scaleKey struct {
	src  image.Image
	w, h int
}

const maxScaledCache = 16

// New returns a renderer using fonts (nil means embedded fallbacks only).
func New(fonts *textlayout.FontLibrary) *Renderer {
	if fonts == nil {
		fonts = textlayout.NewFontLibrary()
	}
	return &Renderer{Fonts: fonts, Base: DefaultBase, scaled: make(map[scaleKey]image.Image)}
}

// Overlay is interactive chrome in document coordinates.
type Overlay struct {
	Quad    vector.Quad
	Handles []vector.Pt
	Rotate  *vector.Pt
	Guides  []vector.GuideLine
}

// Render returns a fresh full-resolution export frame: no overlay and a
// transparent base.
func (r *Renderer) Render(doc *scene.Document) *image.RGBA {
	dc := gg.NewContext(scene.Width, scene.Height)
	r.draw(dc, doc, nil, vector.Color{})
	return dc.Image().(*image.RGBA)
}

// Draw paints an interactive frame of doc into dc over r.Base, scaled to the
// context width. ov may be nil.
func (r *Renderer) Draw(dc *gg.Context, doc *scene.Document, ov *Overlay) {
	r.draw(dc, doc, ov, r.Base)
}

func (r *Renderer) draw(dc *gg.Context, doc *scene.Document, ov *Overlay, base vector.Color) {
	k := float64(dc.Width()) / scene.Width
	dc.Identity()
	dc.ResetClip()
	if base.A == 0 {
		dc.SetColor(color.Transparent)
	} else {
		dc.SetColor(base.NRGBA())
	}
	dc.Clear()
	for _, o := range doc.Objects() {
		switch v := o.(type) {
		case *scene.TextObject:
			r.drawText(dc, k, v)
		case *scene.ImageObject:
			r.drawImage(dc, k, v)
		default:
			panic("render: unknown object type")
		}
	}
	if ov != nil {
		drawOverlay(dc, k, ov)
	}
	dc.Identity()
}

func applyObject(dc *gg.Context, k float64, m *scene.Base) {
	dc.Identity()
	dc.Scale(k, k)
	dc.Translate(m.X, m.Y)
	if m.Angle != 0 {
		dc.Rotate(vector.Radians(m.Angle))
	}
	dc.Scale(m.ScaleX, m.ScaleY)
}

func (r *Renderer) drawImage(dc *gg.Context, k float64, o *scene.ImageObject) {
	if o.Image == nil {
		return
	}
	b := o.Image.Bounds()
	if o.Angle == 0 {
		// axis aligned: resample once to the target size and blit
		w := int(math.Round(float64(b.Dx()) * o.ScaleX * k))
		h := int(math.Round(float64(b.Dy()) * o.ScaleY * k))
		if w <= 0 || h <= 0 {
			return
		}
		dc.Identity()
		dc.DrawImage(r.resampled(o.Image, w, h), int(math.Round(o.X*k)), int(math.Round(o.Y*k)))
		return
	}
	dc.Push()
	applyObject(dc, k, &o.Base)
	dc.DrawImage(o.Image, 0, 0)
	dc.Pop()
}

// resampled returns src scaled to w×h with Catmull-Rom, cached per source and size.
func (r *Renderer) resampled(src image.Image, w, h int) image.Image {
	b := src.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return src
	}
	key := scaleKey{src: src, w: w, h: h}
	r.mu.Lock()
	if img, ok := r.scaled[key]; ok {
		r.mu.Unlock()
		return img
	}
	r.mu.Unlock()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	r.mu.Lock()
	if r.scaled == nil || len(r.scaled) >= maxScaledCache {
		r.scaled = make(map[scaleKey]image.Image)
	}
	r.scaled[key] = dst
	r.mu.Unlock()
	return dst
}

// TextBlock lays out a text object in its local, unscaled space.
func (r *Renderer) TextBlock(t *scene.TextObject) (textlayout.Block, *sfnt.Font) {
	f := r.Fonts.Resolve(textlayout.FontSpec{Family: t.FontFamily, SizePx: t.FontSize, Bold: t.Bold(), Italic: t.Italic()})
	b := textlayout.Layout(f, t.Text, textlayout.Params{SizePx: t.FontSize, LetterSpacing: t.LetterSpacing, LineHeight: t.LineHeight})
	return b, f
}

// LocalBox is the object's box before placement: origin top-left, unscaled.
func (r *Renderer) LocalBox(o scene.Object) vector.Rect {
	switch v := o.(type) {
	case *scene.TextObject:
		b, _ := r.TextBlock(v)
		w := b.Width
		if w < v.FontSize/2 {
			w = v.FontSize / 2
		}
		return vector.R(0, 0, w, b.Height)
	case *scene.ImageObject:
		return vector.R(0, 0, float64(v.NaturalWidth), float64(v.NaturalHeight))
	default:
		panic("render: unknown object type")
	}
}

// Quad returns the object's box in document space.
func (r *Renderer) Quad(o scene.Object) vector.Quad {
	m := o.Meta()
	return vector.TransformRect(vector.ObjectTransform(m.X, m.Y, m.ScaleX, m.ScaleY, m.Angle), r.LocalBox(o))
}

func drawOverlay(dc *gg.Context, k float64, ov *Overlay) {
	dc.Identity()
	dc.SetRGBA255(255, 0, 255, 200)
	dc.SetLineWidth(1)
	dc.SetDash(6, 4)
	for _, g := range ov.Guides {
		dc.DrawLine(g.From.X*k, g.From.Y*k, g.To.X*k, g.To.Y*k)
		dc.Stroke()
	}
	dc.SetDash()
	if ov.Quad == (vector.Quad{}) {
		return
	}
	dc.SetRGBA255(0, 168, 255, 255)
	dc.SetLineWidth(1.5)
	dc.MoveTo(ov.Quad[0].X*k, ov.Quad[0].Y*k)
	for _, p := range ov.Quad[1:] {
		dc.LineTo(p.X*k, p.Y*k)
	}
	dc.ClosePath()
	dc.Stroke()
	if ov.Rotate != nil {
		top := vector.Pt{X: (ov.Quad[0].X + ov.Quad[1].X) / 2, Y: (ov.Quad[0].Y + ov.Quad[1].Y) / 2}
		dc.DrawLine(top.X*k, top.Y*k, ov.Rotate.X*k, ov.Rotate.Y*k)
		dc.Stroke()
		dc.DrawCircle(ov.Rotate.X*k, ov.Rotate.Y*k, 6)
		dc.SetRGB255(255, 255, 255)
		dc.FillPreserve()
		dc.SetRGBA255(0, 168, 255, 255)
		dc.Stroke()
	}
	for _, h := range ov.Handles {
		dc.DrawRectangle(h.X*k-5, h.Y*k-5, 10, 10)
		dc.SetRGB255(255, 255, 255)
		dc.FillPreserve()
		dc.SetRGBA255(0, 168, 255, 255)
		dc.Stroke()
	}
}
