//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"image"
	"image/color"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"gothumb/internal/engine"
	applog "gothumb/internal/log"
	"gothumb/internal/vector"
	"gothumb/internal/viewport"
)

// ThumbCanvas shows the engine's interactive frame at the display size and
// forwards mouse input in document coordinates.
type ThumbCanvas struct {
	widget.BaseWidget

	mapper *viewport.Mapper
	// viewportWidth reports the window width the display size derives from.
	viewportWidth func() float32
	log           *slog.Logger

	eng      *engine.Engine
	frame    image.Image
	dragging bool
}

// NewThumbCanvas creates an empty canvas; Attach connects an engine.
func NewThumbCanvas(layout viewport.Layout, viewportWidth func() float32) *ThumbCanvas {
	tc := &ThumbCanvas{
		mapper:        viewport.NewMapper(layout),
		viewportWidth: viewportWidth,
		log:           applog.WithComponent("ui.canvas"),
	}
	tc.ExtendBaseWidget(tc)
	return tc
}

// Attach switches the canvas to e; nil detaches.
func (t *ThumbCanvas) Attach(e *engine.Engine) {
	t.eng = e
	t.dragging = false
	t.Redraw()
}

// Redraw fetches a fresh preview at the current display width.
func (t *ThumbCanvas) Redraw() {
	if t.eng == nil {
		t.frame = nil
		t.Refresh()
		return
	}
	img, err := t.eng.Preview(int(t.mapper.Display().Width))
	if err != nil {
		t.log.Debug("preview unavailable", slog.Any("err", err))
		t.frame = nil
	} else {
		t.frame = img
	}
	t.Refresh()
}

// Display is the current on-screen canvas size.
func (t *ThumbCanvas) Display() viewport.Display { return t.mapper.Display() }

// MinSize keeps room for the smallest display.
func (t *ThumbCanvas) MinSize() fyne.Size {
	d := t.mapper.Display()
	return fyne.NewSize(float32(d.Width), float32(d.Height))
}

// origin is the top-left of the displayed frame inside the widget.
func (t *ThumbCanvas) origin() fyne.Position {
	d := t.mapper.Display()
	sz := t.Size()
	x := (sz.Width - float32(d.Width)) / 2
	y := (sz.Height - float32(d.Height)) / 2
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	return fyne.NewPos(x, y)
}

func (t *ThumbCanvas) toDocument(pos fyne.Position) vector.Pt {
	o := t.origin()
	return t.mapper.ToDocument(vector.Pt{X: float64(pos.X - o.X), Y: float64(pos.Y - o.Y)})
}

func (t *ThumbCanvas) MouseDown(e *desktop.MouseEvent) {
	if t.eng == nil || e.Button != desktop.MouseButtonPrimary {
		return
	}
	if err := t.eng.PointerDown(t.toDocument(e.Position)); err != nil {
		t.log.Debug("pointer down ignored", slog.Any("err", err))
		return
	}
	t.dragging = true
	t.Redraw()
}

func (t *ThumbCanvas) MouseUp(*desktop.MouseEvent) { t.release() }

func (t *ThumbCanvas) Dragged(e *fyne.DragEvent) {
	if t.eng == nil || !t.dragging {
		return
	}
	if err := t.eng.PointerMove(t.toDocument(e.Position)); err != nil {
		return
	}
	t.Redraw()
}

func (t *ThumbCanvas) DragEnd() { t.release() }

func (t *ThumbCanvas) release() {
	if t.eng == nil || !t.dragging {
		return
	}
	t.dragging = false
	_ = t.eng.PointerUp()
	t.Redraw()
}

// CreateRenderer lays the frame out centered on a dark backdrop.
func (t *ThumbCanvas) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 30, G: 30, B: 34, A: 255})
	border := canvas.NewRectangle(color.Transparent)
	border.StrokeColor = color.RGBA{R: 60, G: 60, B: 66, A: 255}
	border.StrokeWidth = 1
	img := canvas.NewImageFromImage(nil)
	img.FillMode = canvas.ImageFillStretch
	img.ScaleMode = canvas.ImageScaleFastest
	return &thumbCanvasRenderer{tc: t, bg: bg, border: border, img: img,
		objects: []fyne.CanvasObject{bg, img, border}}
}

type thumbCanvasRenderer struct {
	tc      *ThumbCanvas
	bg      *canvas.Rectangle
	border  *canvas.Rectangle
	img     *canvas.Image
	objects []fyne.CanvasObject
}

func (r *thumbCanvasRenderer) Destroy()                     {}
func (r *thumbCanvasRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *thumbCanvasRenderer) MinSize() fyne.Size           { return r.tc.MinSize() }

func (r *thumbCanvasRenderer) Refresh() {
	r.img.Image = r.tc.frame
	r.Layout(r.tc.Size())
	r.img.Refresh()
	canvas.Refresh(r.tc)
}

func (r *thumbCanvasRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	r.bg.Move(fyne.NewPos(0, 0))
	if r.tc.viewportWidth != nil {
		if _, changed := r.tc.mapper.Resize(float64(r.tc.viewportWidth())); changed && r.tc.eng != nil {
			// The new frame arrives with the next Refresh.
			go fyne.Do(r.tc.Redraw)
		}
	}
	d := r.tc.mapper.Display()
	fs := fyne.NewSize(float32(d.Width), float32(d.Height))
	o := r.tc.origin()
	r.img.Resize(fs)
	r.img.Move(o)
	r.border.Resize(fs)
	r.border.Move(o)
}
