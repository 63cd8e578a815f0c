/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package propsync

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gothumb/internal/engine"
	applog "gothumb/internal/log"
	"gothumb/internal/scene"
)

// Editor is the part of the engine the panel writes through.
type Editor interface {
	SetProperty(key engine.Prop, value any) error
	SetShadow(sh *scene.Shadow) error
	DeleteSelected() bool
	ActiveSnapshot() (engine.Snapshot, bool)
}

// ErrNoTextSelected is returned by style edits when the panel shows no text object.
var ErrNoTextSelected = errors.New("no text object selected")

// Binder is an engine.Observer that projects the selection into a Panel
// and applies panel edits through the Editor.
type Binder struct {
	ed    Editor
	panel *Panel
	log   *slog.Logger
}

// NewBinder returns a binder writing to ed. Register it with the engine's
// Subscribe, or use Bind.
func NewBinder(ed Editor) *Binder {
	return &Binder{ed: ed, panel: &Panel{}, log: applog.WithComponent("propsync")}
}

// Bind creates a binder for e, subscribes it and projects the current selection.
func Bind(e *engine.Engine) (*Binder, func()) {
	b := NewBinder(e)
	cancel := e.Subscribe(b)
	b.Resync()
	return b, cancel
}

// Panel returns the panel fed by b.
func (b *Binder) Panel() *Panel { return b.panel }

// State is shorthand for b.Panel().State().
func (b *Binder) State() State { return b.panel.State() }

func (b *Binder) ObjectSelected(s engine.Snapshot) { b.panel.set(Project(s)) }

func (b *Binder) SelectionCleared() { b.panel.set(State{}) }

func (b *Binder) ObjectModified(s engine.Snapshot) {
	if b.panel.State().ObjectID != s.ID() {
		return
	}
	b.panel.set(Project(s))
}

// Resync re-projects the engine's current selection.
func (b *Binder) Resync() {
	snap, ok := b.ed.ActiveSnapshot()
	if !ok {
		b.panel.set(State{})
		return
	}
	b.panel.set(Project(snap))
}

// apply writes one property and re-projects from the engine, so the panel
// shows the stored value even when the engine normalized it.
func (b *Binder) apply(key engine.Prop, value any) error {
	if err := b.ed.SetProperty(key, value); err != nil {
		b.log.Debug("edit rejected", slog.String("key", string(key)), slog.Any("err", err))
		b.Resync()
		return err
	}
	b.Resync()
	return nil
}

func (b *Binder) text() (State, error) {
	st := b.panel.State()
	if !st.Visible || st.Kind != scene.KindText {
		return st, ErrNoTextSelected
	}
	return st, nil
}

func (b *Binder) textEdit(key engine.Prop, value any) error {
	if _, err := b.text(); err != nil {
		return err
	}
	return b.apply(key, value)
}

func (b *Binder) SetText(s string) error           { return b.textEdit(engine.PropText, s) }
func (b *Binder) SetFontFamily(f string) error     { return b.textEdit(engine.PropFontFamily, f) }
func (b *Binder) SetFontSize(px float64) error     { return b.textEdit(engine.PropFontSize, px) }
func (b *Binder) SetFill(hex string) error         { return b.textEdit(engine.PropFill, hex) }
func (b *Binder) SetStroke(hex string) error       { return b.textEdit(engine.PropStroke, hex) }
func (b *Binder) SetStrokeWidth(w float64) error   { return b.textEdit(engine.PropStrokeWidth, w) }
func (b *Binder) SetLetterSpacing(v float64) error { return b.textEdit(engine.PropLetterSpacing, v) }
func (b *Binder) SetLineHeight(v float64) error    { return b.textEdit(engine.PropLineHeight, v) }

// ToggleBold flips the weight between normal and bold.
func (b *Binder) ToggleBold() error {
	st, err := b.text()
	if err != nil {
		return err
	}
	w := "bold"
	if st.Bold {
		w = "normal"
	}
	return b.apply(engine.PropFontWeight, w)
}

// ToggleItalic flips the style between normal and italic.
func (b *Binder) ToggleItalic() error {
	st, err := b.text()
	if err != nil {
		return err
	}
	s := "italic"
	if st.Italic {
		s = "normal"
	}
	return b.apply(engine.PropFontStyle, s)
}

func (b *Binder) ToggleUnderline() error {
	st, err := b.text()
	if err != nil {
		return err
	}
	return b.apply(engine.PropUnderline, !st.Underline)
}

// SetShadowMode switches the effect. A new glow takes the text fill as its
// color; each mode starts from its own default blur.
func (b *Binder) SetShadowMode(mode scene.ShadowMode) error {
	st, err := b.text()
	if err != nil {
		return err
	}
	color := st.Shadow.Color
	var sh *scene.Shadow
	switch mode {
	case scene.ShadowNone:
	case scene.ShadowGlow:
		if st.Shadow.Mode == scene.ShadowNone || color == "" {
			color = st.Fill
		}
		sh = scene.GlowShadow(color)
	case scene.ShadowDrop:
		if st.Shadow.Mode == scene.ShadowNone {
			color = ""
		}
		sh = scene.DropShadow(color)
	default:
		return fmt.Errorf("unknown shadow mode %q", mode)
	}
	return b.setShadow(sh)
}

// SetShadowColor recolors the current effect. Without one it does nothing.
func (b *Binder) SetShadowColor(hex string) error {
	return b.editShadow(func(sh *scene.Shadow) { sh.Color = strings.TrimSpace(hex) })
}

// SetShadowBlur changes the blur radius of the current effect.
func (b *Binder) SetShadowBlur(blur float64) error {
	return b.editShadow(func(sh *scene.Shadow) { sh.Blur = blur })
}

// SetShadowOffset moves a drop shadow; zero offsets turn it into a glow.
func (b *Binder) SetShadowOffset(dx, dy float64) error {
	return b.editShadow(func(sh *scene.Shadow) { sh.OffsetX, sh.OffsetY = dx, dy })
}

func (b *Binder) editShadow(fn func(*scene.Shadow)) error {
	st, err := b.text()
	if err != nil {
		return err
	}
	if st.Shadow.Mode == scene.ShadowNone {
		return nil
	}
	sh := &scene.Shadow{Color: st.Shadow.Color, Blur: st.Shadow.Blur, OffsetX: st.Shadow.OffsetX, OffsetY: st.Shadow.OffsetY}
	fn(sh)
	return b.setShadow(sh)
}

func (b *Binder) setShadow(sh *scene.Shadow) error {
	err := b.ed.SetShadow(sh)
	b.Resync()
	return err
}

// Delete removes the selected object; the panel hides through the cleared
// notification.
func (b *Binder) Delete() bool {
	ok := b.ed.DeleteSelected()
	b.Resync()
	return ok
}
