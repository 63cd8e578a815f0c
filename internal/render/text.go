/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font/sfnt"

	"gothumb/internal/scene"
	"gothumb/internal/textlayout"
	"gothumb/internal/vector"
)

type glyphPaint struct {
	fill        color.Color // nil: no fill
	stroke      color.Color // nil: no stroke
	lineWidth   float64     // device px
	strokeFirst bool
	underline   bool
}

func (r *Renderer) drawText(dc *gg.Context, k float64, t *scene.TextObject) {
	b, f := r.TextBlock(t)
	if len(b.Lines) == 0 {
		return
	}
	p := glyphPaint{
		strokeFirst: t.PaintFirst != scene.PaintFill,
		underline:   t.Underline,
		lineWidth:   t.StrokeWidth * k * math.Sqrt(math.Abs(t.ScaleX*t.ScaleY)),
	}
	if c, err := vector.ParseHex(t.Fill); err == nil && t.Fill != "" {
		p.fill = c.NRGBA()
	}
	if c, err := vector.ParseHex(t.Stroke); err == nil && t.Stroke != "" && t.StrokeWidth > 0 {
		p.stroke = c.NRGBA()
	}
	if t.Shadow != nil {
		drawShadow(dc, k, t, b, f, p)
	}
	dc.Push()
	applyObject(dc, k, &t.Base)
	paintGlyphs(dc, f, b, p)
	dc.Pop()
}

func paintGlyphs(dc *gg.Context, f *sfnt.Font, b textlayout.Block, p glyphPaint) {
	doStroke := func() {
		if p.stroke == nil {
			return
		}
		textlayout.Outline(f, b, 0, 0, dc)
		dc.SetColor(p.stroke)
		dc.SetLineWidth(p.lineWidth)
		dc.SetLineJoinRound()
		dc.SetLineCapRound()
		dc.Stroke()
	}
	doFill := func() {
		if p.fill == nil {
			return
		}
		textlayout.Outline(f, b, 0, 0, dc)
		dc.SetColor(p.fill)
		dc.Fill()
		if p.underline {
			for i, ln := range b.Lines {
				y, th := b.UnderlineRect(i)
				dc.DrawRectangle(0, y, ln.Width, th)
				dc.Fill()
			}
		}
	}
	if p.strokeFirst {
		doStroke()
		doFill()
	} else {
		doFill()
		doStroke()
	}
}

// drawShadow paints the glyphs in the shadow color on a layer sized to the
// text, blurs it and composites it under the text.
func drawShadow(dc *gg.Context, k float64, t *scene.TextObject, b textlayout.Block, f *sfnt.Font, p glyphPaint) {
	sh := t.Shadow
	c, err := vector.ParseHex(sh.Color)
	if err != nil || c.A == 0 {
		return
	}
	sigma := math.Max(0, sh.Blur) * k / 2
	box := vector.TransformRect(vector.ObjectTransform(t.X, t.Y, t.ScaleX, t.ScaleY, t.Angle),
		vector.R(0, 0, b.Width, b.Height)).Bounds()
	pad := 3*sigma + p.lineWidth + 2
	minX := math.Floor((box.X+sh.OffsetX)*k - pad)
	minY := math.Floor((box.Y+sh.OffsetY)*k - pad)
	w := int(math.Ceil(box.W*k + 2*pad))
	h := int(math.Ceil(box.H*k + 2*pad))
	if w <= 0 || h <= 0 || w > 4*dc.Width() || h > 4*dc.Height() {
		return
	}
	layer := gg.NewContext(w, h)
	layer.Translate(-minX, -minY)
	layer.Scale(k, k)
	layer.Translate(sh.OffsetX, sh.OffsetY)
	layer.Translate(t.X, t.Y)
	if t.Angle != 0 {
		layer.Rotate(vector.Radians(t.Angle))
	}
	layer.Scale(t.ScaleX, t.ScaleY)
	sp := p
	if sp.fill != nil {
		sp.fill = c.NRGBA()
	}
	if sp.stroke != nil {
		sp.stroke = c.NRGBA()
	}
	if sp.fill == nil && sp.stroke == nil {
		return
	}
	paintGlyphs(layer, f, b, sp)
	img := layer.Image()
	if sigma > 0 {
		img = imaging.Blur(img, sigma)
	}
	dc.Push()
	dc.Identity()
	dc.DrawImage(img, int(minX), int(minY))
	dc.Pop()
}
