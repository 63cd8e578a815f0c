/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package propsync keeps a property panel in step with the engine's
// selection and routes panel edits back into the engine.
package propsync

import (
	"fmt"
	"slices"
	"sync"

	"gothumb/internal/engine"
	"gothumb/internal/scene"
	"gothumb/internal/textlayout"
	"gothumb/internal/vector"
)

// ShadowState is the panel view of a text shadow.
type ShadowState struct {
	Mode    scene.ShadowMode `json:"mode"`
	Color   string           `json:"color,omitempty"`
	Blur    float64          `json:"blur,omitempty"`
	OffsetX float64          `json:"offsetX,omitempty"`
	OffsetY float64          `json:"offsetY,omitempty"`
}

// State is what the panel shows. The zero value is the hidden panel.
type State struct {
	Visible  bool        `json:"visible"`
	ObjectID string      `json:"objectId,omitempty"`
	Kind     scene.Kind  `json:"kind,omitempty"`
	Index    int         `json:"index"`
	Bounds   vector.Rect `json:"bounds"`

	// text controls
	Text          string      `json:"text,omitempty"`
	FontFamily    string      `json:"fontFamily,omitempty"`
	FontSize      float64     `json:"fontSize,omitempty"`
	Bold          bool        `json:"bold"`
	Italic        bool        `json:"italic"`
	Underline     bool        `json:"underline"`
	Fill          string      `json:"fill,omitempty"`
	Stroke        string      `json:"stroke,omitempty"`
	StrokeWidth   float64     `json:"strokeWidth"`
	LetterSpacing float64     `json:"letterSpacing"`
	LineHeight    float64     `json:"lineHeight,omitempty"`
	Shadow        ShadowState `json:"shadow"`

	// Descriptor labels objects without style controls.
	Descriptor string `json:"descriptor,omitempty"`
}

// Control names a panel control.
type Control string

const (
	CtrlFontFamily    Control = "fontFamily"
	CtrlFontSize      Control = "fontSize"
	CtrlBold          Control = "bold"
	CtrlItalic        Control = "italic"
	CtrlUnderline     Control = "underline"
	CtrlFill          Control = "fill"
	CtrlStroke        Control = "stroke"
	CtrlStrokeWidth   Control = "strokeWidth"
	CtrlLetterSpacing Control = "letterSpacing"
	CtrlLineHeight    Control = "lineHeight"
	CtrlText          Control = "text"
	CtrlShadow        Control = "shadow"
	CtrlDescriptor    Control = "descriptor"
	CtrlDelete        Control = "delete"
)

var textControls = []Control{
	CtrlText, CtrlFontFamily, CtrlFontSize, CtrlBold, CtrlItalic, CtrlUnderline, CtrlFill, CtrlStroke,
	CtrlStrokeWidth, CtrlLetterSpacing, CtrlLineHeight, CtrlShadow, CtrlDelete,
}

// Controls lists the controls shown for s: full style controls for text,
// a descriptor and delete for anything else, nothing when hidden.
func (s State) Controls() []Control {
	if !s.Visible {
		return nil
	}
	if s.Kind == scene.KindText {
		return append([]Control(nil), textControls...)
	}
	return []Control{CtrlDescriptor, CtrlDelete}
}

// Shows reports whether c is among s.Controls().
func (s State) Shows(c Control) bool {
	for _, x := range s.Controls() {
		if x == c {
			return true
		}
	}
	return false
}

// ProjectShadow maps a shadow to its panel state: nil is mode none, zero
// offsets are a glow.
func ProjectShadow(sh *scene.Shadow) ShadowState {
	if sh == nil {
		return ShadowState{Mode: scene.ShadowNone}
	}
	return ShadowState{Mode: sh.Mode(), Color: sh.Color, Blur: sh.Blur, OffsetX: sh.OffsetX, OffsetY: sh.OffsetY}
}

// Project derives the full panel state from a selection snapshot.
func Project(snap engine.Snapshot) State {
	if snap.Object == nil {
		return State{}
	}
	st := State{
		Visible:  true,
		ObjectID: snap.ID(),
		Kind:     snap.Object.Kind(),
		Index:    snap.Index,
		Bounds:   snap.Bounds,
	}
	switch o := snap.Object.(type) {
	case *scene.TextObject:
		st.Text = o.Text
		st.FontFamily = orDefault(o.FontFamily, "Impact")
		st.FontSize = o.FontSize
		if st.FontSize <= 0 {
			st.FontSize = 80
		}
		st.Bold = o.Bold()
		st.Italic = o.Italic()
		st.Underline = o.Underline
		st.Fill = orDefault(o.Fill, "#FFFFFF")
		st.Stroke = o.Stroke
		st.StrokeWidth = o.StrokeWidth
		st.LetterSpacing = o.LetterSpacing
		st.LineHeight = o.LineHeight
		if st.LineHeight <= 0 {
			st.LineHeight = scene.DefaultLineHeight
		}
		st.Shadow = ProjectShadow(o.Shadow)
	case *scene.ImageObject:
		st.Descriptor = scene.Describe(o)
	default:
		panic(fmt.Sprintf("propsync: unknown object type %T", snap.Object))
	}
	return st
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Options lists the choices offered by the font and size selectors.
type Options struct {
	Fonts          []string  `json:"fonts"`
	Sizes          []float64 `json:"sizes"`
	MaxStrokeWidth float64   `json:"maxStrokeWidth"`
}

// DefaultOptions returns the builtin selector choices.
func DefaultOptions() Options {
	return Options{Fonts: textlayout.FontFamilies(), Sizes: textlayout.FontSizes(), MaxStrokeWidth: textlayout.MaxStrokeWidth}
}

// Panel holds the displayed state and notifies listeners on every change.
// It is safe for concurrent use.
type Panel struct {
	mu        sync.RWMutex
	st        State
	listeners []func(State)
}

// State returns the current panel state.
func (p *Panel) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.st
}

// OnChange registers fn to be called after each update.
func (p *Panel) OnChange(fn func(State)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

func (p *Panel) set(st State) {
	p.mu.Lock()
	p.st = st
	ls := slices.Clone(p.listeners)
	p.mu.Unlock()
	for _, fn := range ls {
		fn(st)
	}
}
