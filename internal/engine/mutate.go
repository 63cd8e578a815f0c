/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package engine

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"strings"

	applog "gothumb/internal/log"
	"gothumb/internal/scene"
	"gothumb/internal/textlayout"
)

// Placement of images added from the sidebar.
const (
	ImageLeft    = 100
	ImageTop     = 50
	ImageMaxW    = scene.Width * 0.5
	ImageMaxH    = scene.Height * 0.9
	blankDefault = "#111111"
)

// TextSeed describes a text object to create. Nil or empty fields take the
// defaults of the style the seed is applied with.
type TextSeed struct {
	Text        string   `json:"text"`
	X           *float64 `json:"x,omitempty"`
	Y           *float64 `json:"y,omitempty"`
	FontSize    *float64 `json:"fontSize,omitempty"`
	FontFamily  string   `json:"fontFamily,omitempty"`
	Fill        string   `json:"fill,omitempty"`
	Stroke      string   `json:"stroke,omitempty"`
	StrokeWidth *float64 `json:"strokeWidth,omitempty"`
	FontWeight  string   `json:"fontWeight,omitempty"`
}

// GenerationResult is what the generation step hands to the editor.
// An empty BackgroundURL means a blank editor.
type GenerationResult struct {
	BackgroundURL string     `json:"url"`
	Elements      []TextSeed `json:"elements"`
}

func orFloat(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func orString(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// build creates the text object, falling back to style for absent fields.
func (s TextSeed) build(style textlayout.TextStyle) *scene.TextObject {
	t := scene.NewTextObject(s.Text)
	if s.Text == "" {
		t.Text = style.Text
	}
	t.X = orFloat(s.X, style.X)
	t.Y = orFloat(s.Y, style.Y)
	t.FontSize = orFloat(s.FontSize, style.SizePx)
	if t.FontSize <= 0 {
		t.FontSize = style.SizePx
	}
	t.FontFamily = orString(s.FontFamily, style.Family)
	t.Fill = orString(s.Fill, style.Fill)
	t.Stroke = orString(s.Stroke, style.Stroke)
	t.StrokeWidth = math.Max(0, orFloat(s.StrokeWidth, style.StrokeWidth))
	t.FontWeight = orString(s.FontWeight, "normal")
	t.PaintFirst = scene.PaintStroke
	return t
}

func mustStyle(name string) textlayout.TextStyle {
	st, ok := textlayout.GetStyle(name)
	if !ok {
		panic("engine: missing builtin text style " + name)
	}
	return st
}

// token returns the current generation for an async operation.
func (e *Engine) token() (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return 0, ErrNotReady
	}
	return e.gen, nil
}

// resume is update for async continuations: it refuses to run when the
// engine was disposed or re-initialized since gen was taken.
func (e *Engine) resume(gen uint64, fn func(ev []event) ([]event, error)) error {
	e.mu.Lock()
	if e.gen != gen || !e.ready {
		e.mu.Unlock()
		e.log.Debug("dropping stale load", slog.Uint64("gen", gen))
		return ErrStale
	}
	ev, err := fn(nil)
	e.renderLocked()
	e.queueLocked(ev)
	e.mu.Unlock()
	e.flush()
	return err
}

func (e *Engine) load(ctx context.Context, src string) (image.Image, error) {
	img, err := e.loader.Load(ctx, src)
	if err != nil {
		return nil, &AssetLoadError{Source: src, Err: err}
	}
	return img, nil
}

// setBackgroundLocked stretches img to the canvas and pins it at index 0.
func (e *Engine) setBackgroundLocked(src string, img image.Image) {
	bg := scene.NewImageObject(src, img)
	bg.ScaleX = float64(scene.Width) / float64(bg.NaturalWidth)
	bg.ScaleY = float64(scene.Height) / float64(bg.NaturalHeight)
	e.doc.SetBackground(bg)
	e.pixels[bg.ID] = img
}

// LoadBackground decodes src and makes it the background, replacing any
// previous one. On failure the document is unchanged.
func (e *Engine) LoadBackground(ctx context.Context, src string) error {
	gen, err := e.token()
	if err != nil {
		return err
	}
	img, err := e.load(ctx, src)
	if err != nil {
		return err
	}
	return e.resume(gen, func(ev []event) ([]event, error) {
		e.recordLocked("background")
		e.setBackgroundLocked(src, img)
		return ev, nil
	})
}

// Load replaces the document with a saved one, e.g. from the export library
// or a crash report. Image pixels are fetched again from each object's
// source; an image whose source cannot be loaded stays in the document
// without pixels and the first such error is returned after the swap.
func (e *Engine) Load(ctx context.Context, doc *scene.Document) error {
	lg := applog.WithOperation(e.log, "load")
	gen, err := e.token()
	if err != nil {
		return err
	}
	doc = doc.Clone()
	pixels := make(map[string]image.Image)
	var firstErr error
	for _, o := range doc.Objects() {
		im, ok := o.(*scene.ImageObject)
		if !ok {
			continue
		}
		// pixels come only from the source, never from the caller's copy
		im.Image = nil
		img, err := e.load(ctx, im.Source)
		if err != nil {
			lg.Warn("image not restored", slog.String("id", im.ID), slog.Any("err", err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		im.Image = img
		pixels[im.ID] = img
	}
	if err := e.resume(gen, func(ev []event) ([]event, error) {
		e.recordLocked("load")
		ev = e.selectLocked("", ev)
		e.doc = doc
		for id, img := range pixels {
			e.pixels[id] = img
		}
		lg.Info("document loaded", slog.Int("objects", doc.Len()))
		return ev, nil
	}); err != nil {
		return err
	}
	return firstErr
}

// LoadBlankBackground uses a solid color as background. Empty hex means #111111.
func (e *Engine) LoadBlankBackground(hex string) error {
	return e.LoadBackground(context.Background(), "blank:"+orString(hex, blankDefault))
}

// SeedTextObjects appends one text object per seed, above everything else,
// using the seed defaults (x 60, y 100, Impact 80px, white, no stroke).
func (e *Engine) SeedTextObjects(seeds []TextSeed) error {
	return e.update(func(ev []event) ([]event, error) {
		if len(seeds) == 0 {
			return ev, nil
		}
		e.recordLocked("seed")
		e.seedLocked(seeds)
		return ev, nil
	})
}

func (e *Engine) seedLocked(seeds []TextSeed) {
	style := mustStyle("Seed")
	for _, s := range seeds {
		if err := e.doc.Append(s.build(style)); err != nil {
			e.log.Warn("seed text skipped", slog.Any("err", err))
		}
	}
}

// Seed replaces the document with a generation result: background first,
// then the extracted text elements. The background is decoded before the
// document is touched, so a failed load leaves the previous state.
func (e *Engine) Seed(ctx context.Context, res GenerationResult) error {
	lg := applog.WithOperation(e.log, "seed")
	gen, err := e.token()
	if err != nil {
		return err
	}
	src := res.BackgroundURL
	if strings.TrimSpace(src) == "" {
		src = "blank:" + blankDefault
	}
	img, err := e.load(ctx, src)
	if err != nil {
		lg.Warn("background load failed", slog.Any("err", err))
		return err
	}
	return e.resume(gen, func(ev []event) ([]event, error) {
		e.recordLocked("seed")
		ev = e.selectLocked("", ev)
		e.doc.Clear()
		e.setBackgroundLocked(src, img)
		e.seedLocked(res.Elements)
		lg.Info("document seeded", slog.Int("texts", len(res.Elements)))
		return ev, nil
	})
}

// AddText inserts a text object on top and selects it. Absent seed fields
// use the sidebar preset ("Seu texto" at 80,300, Impact 90px, white with a
// 4px black outline). It returns a copy of the new object.
func (e *Engine) AddText(seed TextSeed) (*scene.TextObject, error) {
	var out *scene.TextObject
	err := e.update(func(ev []event) ([]event, error) {
		t := seed.build(mustStyle("Sidebar"))
		e.recordLocked("add")
		if err := e.doc.Append(t); err != nil {
			return ev, err
		}
		out = t.Clone().(*scene.TextObject)
		return e.selectLocked(t.ID, ev), nil
	})
	return out, err
}

// AddImage decodes src, scales it down (never up) to fit half the canvas
// width and 90% of its height, places it at (100,50) on top and selects it.
func (e *Engine) AddImage(ctx context.Context, src string) (*scene.ImageObject, error) {
	gen, err := e.token()
	if err != nil {
		return nil, err
	}
	img, err := e.load(ctx, src)
	if err != nil {
		return nil, err
	}
	return e.placeImage(gen, src, img)
}

// AddImageData is AddImage for bytes already in memory, e.g. an upload.
// src is what gets recorded as the object's source.
func (e *Engine) AddImageData(src string, data []byte) (*scene.ImageObject, error) {
	gen, err := e.token()
	if err != nil {
		return nil, err
	}
	img, err := e.loader.Decode(data)
	if err != nil {
		return nil, &AssetLoadError{Source: src, Err: err}
	}
	return e.placeImage(gen, src, img)
}

// FitScale is min(640/w, 648/h, 1).
func FitScale(w, h int) float64 {
	if w <= 0 || h <= 0 {
		return 1
	}
	return math.Min(math.Min(ImageMaxW/float64(w), ImageMaxH/float64(h)), 1)
}

func (e *Engine) placeImage(gen uint64, src string, img image.Image) (*scene.ImageObject, error) {
	var out *scene.ImageObject
	err := e.resume(gen, func(ev []event) ([]event, error) {
		o := scene.NewImageObject(src, img)
		s := FitScale(o.NaturalWidth, o.NaturalHeight)
		o.X, o.Y, o.ScaleX, o.ScaleY = ImageLeft, ImageTop, s, s
		e.recordLocked("add")
		if err := e.doc.Append(o); err != nil {
			return ev, err
		}
		e.pixels[o.ID] = img
		out = o.Clone().(*scene.ImageObject)
		return e.selectLocked(o.ID, ev), nil
	})
	return out, err
}

// DeleteSelected removes the selection and clears it in the same step. It
// reports whether something was deleted; nothing selected is not an error.
func (e *Engine) DeleteSelected() bool {
	deleted := false
	_ = e.update(func(ev []event) ([]event, error) {
		obj := e.activeLocked()
		if obj == nil || obj.Meta().Background {
			return ev, nil
		}
		e.recordLocked("delete")
		if _, err := e.doc.Remove(obj.Meta().ID); err != nil {
			return ev, err
		}
		e.drag = dragState{}
		deleted = true
		return e.selectLocked("", ev), nil
	})
	return deleted
}

// stack moves the selection to the index computed by to.
func (e *Engine) stack(label string, to func(cur, n int) int) (bool, error) {
	moved := false
	err := e.update(func(ev []event) ([]event, error) {
		obj := e.activeLocked()
		if obj == nil {
			return ev, nil
		}
		id := obj.Meta().ID
		cur := e.doc.IndexOf(id)
		target := to(cur, e.doc.Len())
		before := e.doc.Clone()
		changed, err := e.doc.Move(id, target)
		if err != nil || !changed {
			return ev, err
		}
		e.recordDocLocked(label, before)
		moved = true
		return e.modifiedLocked(obj, ev), nil
	})
	return moved, err
}

// BringForward moves the selection one step up.
func (e *Engine) BringForward() (bool, error) {
	return e.stack("stack", func(cur, _ int) int { return cur + 1 })
}

// SendBackward moves the selection one step down, never below the background.
func (e *Engine) SendBackward() (bool, error) {
	return e.stack("stack", func(cur, _ int) int { return cur - 1 })
}

// BringToFront makes the selection topmost.
func (e *Engine) BringToFront() (bool, error) {
	return e.stack("stack", func(_, n int) int { return n - 1 })
}

// SendToBack puts the selection directly above the background.
func (e *Engine) SendToBack() (bool, error) {
	return e.stack("stack", func(_, _ int) int { return 0 })
}

// ApplyHeadline overwrites the content of the lowest text object. It reports
// false when the document has no text.
func (e *Engine) ApplyHeadline(text string) (bool, error) {
	applied := false
	err := e.update(func(ev []event) ([]event, error) {
		for _, o := range e.doc.Objects() {
			t, ok := o.(*scene.TextObject)
			if !ok {
				continue
			}
			e.recordLocked("headline")
			t.Text = text
			applied = true
			if t.ID == e.selected {
				ev = e.modifiedLocked(t, ev)
			}
			return ev, nil
		}
		return ev, nil
	})
	return applied, err
}

func (e *Engine) String() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fmt.Sprintf("engine(ready=%t objects=%d selected=%q)", e.ready, e.doc.Len(), e.selected)
}
