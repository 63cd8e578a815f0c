/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/fogleman/gg"

	"gothumb/internal/scene"
	"gothumb/internal/vector"
)

func solid(c color.Color, w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func rgb(img image.Image, x, y int) (uint8, uint8, uint8) {
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)
}

func countMatching(img image.Image, rect image.Rectangle, pred func(r, g, b uint8) bool) int {
	n := 0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			r, g, b := rgb(img, x, y)
			if pred(r, g, b) {
				n++
			}
		}
	}
	return n
}

func alpha(img image.Image, x, y int) uint8 {
	_, _, _, a := img.At(x, y).RGBA()
	return uint8(a >> 8)
}

func TestRenderEmptyDocumentIsTransparent(t *testing.T) {
	r := New(nil)
	img := r.Render(scene.NewDocument())
	if b := img.Bounds(); b.Dx() != 1280 || b.Dy() != 720 {
		t.Fatalf("bounds = %v", b)
	}
	if a := alpha(img, 640, 360); a != 0 {
		t.Fatalf("export base alpha = %d, want 0", a)
	}

	// interactive frames keep the dark editor base
	dc := gg.NewContext(1280, 720)
	r.Draw(dc, scene.NewDocument(), nil)
	if cr, cg, cb := rgb(dc.Image(), 640, 360); cr != 0x11 || cg != 0x11 || cb != 0x11 || alpha(dc.Image(), 640, 360) != 255 {
		t.Fatalf("interactive base pixel = %d,%d,%d", cr, cg, cb)
	}
}

func TestRenderStretchedBackground(t *testing.T) {
	d := scene.NewDocument()
	bg := scene.NewImageObject("blank:#ff0000", solid(color.RGBA{R: 255, A: 255}, 64, 64))
	bg.ScaleX, bg.ScaleY = 1280.0/64, 720.0/64
	d.SetBackground(bg)
	img := New(nil).Render(d)
	for _, p := range []image.Point{{0, 0}, {1279, 719}, {640, 360}} {
		if r, g, b := rgb(img, p.X, p.Y); r < 250 || g > 5 || b > 5 {
			t.Fatalf("pixel %v = %d,%d,%d, want red", p, r, g, b)
		}
	}
}

func TestRenderTextPaintsGlyphs(t *testing.T) {
	d := scene.NewDocument()
	tx := scene.NewTextObject("HHHH")
	tx.X, tx.Y, tx.FontSize = 100, 100, 200
	_ = d.Append(tx)
	r := New(nil)
	img := r.Render(d)
	box := r.Quad(tx).Bounds()
	rect := image.Rect(int(box.X), int(box.Y), int(box.X+box.W), int(box.Y+box.H))
	white := countMatching(img, rect, func(r, g, b uint8) bool { return r > 240 && g > 240 && b > 240 })
	if white < 500 {
		t.Fatalf("expected white glyph pixels in %v, got %d", rect, white)
	}
	if a := alpha(img, 50, 50); a != 0 {
		t.Fatalf("pixel outside text covered: alpha %d", a)
	}
}

func TestRenderStrokeUnderFill(t *testing.T) {
	d := scene.NewDocument()
	tx := scene.NewTextObject("HH")
	tx.X, tx.Y, tx.FontSize = 100, 100, 200
	tx.Stroke, tx.StrokeWidth = "#ff0000", 12
	_ = d.Append(tx)
	r := New(nil)
	img := r.Render(d)
	box := r.Quad(tx).Bounds()
	rect := image.Rect(int(box.X)-10, int(box.Y)-10, int(box.X+box.W)+10, int(box.Y+box.H)+10)
	red := countMatching(img, rect, func(r, g, b uint8) bool { return r > 200 && g < 60 && b < 60 })
	white := countMatching(img, rect, func(r, g, b uint8) bool { return r > 240 && g > 240 && b > 240 })
	if red == 0 || white == 0 {
		t.Fatalf("expected both outline and fill pixels: red=%d white=%d", red, white)
	}
}

func TestRenderGlowSpreadsBeyondGlyphs(t *testing.T) {
	mk := func(withGlow bool) int {
		d := scene.NewDocument()
		tx := scene.NewTextObject("H")
		tx.X, tx.Y, tx.FontSize = 300, 200, 200
		if withGlow {
			tx.Shadow = scene.GlowShadow("#00ff00")
		}
		_ = d.Append(tx)
		img := New(nil).Render(d)
		return countMatching(img, img.Bounds(), func(r, g, b uint8) bool { return int(g) > int(r)+20 && int(g) > int(b)+20 })
	}
	if plain := mk(false); plain != 0 {
		t.Fatalf("plain text should have no green pixels, got %d", plain)
	}
	if glow := mk(true); glow == 0 {
		t.Fatalf("glow should add green pixels")
	}
}

func TestRenderRotatedImage(t *testing.T) {
	d := scene.NewDocument()
	im := scene.NewImageObject("x", solid(color.RGBA{B: 255, A: 255}, 100, 100))
	im.X, im.Y, im.Angle = 400, 200, 45
	_ = d.Append(im)
	r := New(nil)
	img := r.Render(d)
	// the square rotates about its top-left corner, so its diagonal points straight down
	if _, _, b := rgb(img, 400, 300); b < 200 {
		t.Fatalf("expected blue on the rotated diagonal")
	}
	if _, _, b := rgb(img, 460, 210); b > 40 {
		t.Fatalf("area right of the origin should be empty after rotation")
	}
	q := r.Quad(im)
	if math.Abs(q[2].X-400) > 1e-6 || math.Abs(q[2].Y-(200+100*math.Sqrt2)) > 1e-6 {
		t.Fatalf("unexpected bottom-right corner %+v", q[2])
	}
}

func TestOverlayOnlyInInteractiveFrames(t *testing.T) {
	d := scene.NewDocument()
	r := New(nil)
	dc := gg.NewContext(1280, 720)
	ov := &Overlay{Quad: vector.TransformRect(vector.Identity, vector.R(100, 100, 200, 100)),
		Handles: []vector.Pt{{X: 100, Y: 100}}}
	r.Draw(dc, d, ov)
	if r1, g1, b1 := rgb(dc.Image(), 100, 150); r1 == 0x11 && g1 == 0x11 && b1 == 0x11 {
		t.Fatalf("overlay border not drawn")
	}
	img := r.Render(d)
	if a := alpha(img, 100, 150); a != 0 {
		t.Fatalf("export frame must not contain overlay")
	}
}

func TestLocalBoxMinimumWidthForEmptyText(t *testing.T) {
	tx := scene.NewTextObject("")
	tx.FontSize = 80
	box := New(nil).LocalBox(tx)
	if box.W != 40 || box.H <= 0 {
		t.Fatalf("box = %+v", box)
	}
}
