/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package viewport maps between the fixed 1280×720 document space and the
// display size the editor is shown at. The mapping is presentation only: the
// document never changes size, and exports never consult it.
package viewport

import (
	"math"
	"sync"

	"gothumb/internal/scene"
	"gothumb/internal/vector"
)

// Layout describes the chrome around the canvas.
type Layout struct {
	SidePanel float64
	Padding   float64
	MinWidth  float64
	MaxWidth  float64
}

// DefaultLayout matches the editor shell: a 260px side panel and 24px padding.
func DefaultLayout() Layout {
	return Layout{SidePanel: 260, Padding: 24, MinWidth: 280, MaxWidth: 768}
}

// Display is the computed on-screen canvas size.
type Display struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Scale  float64 `json:"scale"`
}

// Compute derives the display size for a viewport width:
// width = clamp(viewport - side - 2*padding, min, max), height keeps 16:9.
func (l Layout) Compute(viewportWidth float64) Display {
	lo, hi := l.MinWidth, l.MaxWidth
	if lo <= 0 {
		lo = 280
	}
	if hi <= 0 {
		hi = 768
	}
	if hi < lo {
		hi = lo
	}
	w := viewportWidth - l.SidePanel - 2*l.Padding
	if math.IsNaN(w) {
		w = lo
	}
	w = vector.Clamp(w, lo, hi)
	return Display{
		Width:  w,
		Height: w * scene.Height / scene.Width,
		Scale:  w / scene.Width,
	}
}

// Mapper tracks the current display and converts coordinates. Safe for concurrent use.
type Mapper struct {
	mu      sync.RWMutex
	layout  Layout
	display Display
}

// NewMapper starts at the largest display size until the first Resize.
func NewMapper(l Layout) *Mapper {
	m := &Mapper{layout: l}
	m.display = l.Compute(math.Inf(1))
	return m
}

// Resize recomputes the display for a new viewport width and reports whether it changed.
func (m *Mapper) Resize(viewportWidth float64) (Display, bool) {
	d := m.layout.Compute(viewportWidth)
	m.mu.Lock()
	defer m.mu.Unlock()
	changed := d != m.display
	m.display = d
	return d, changed
}

// Display returns the current display size.
func (m *Mapper) Display() Display {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.display
}

// ToDocument converts a point on the displayed canvas into document coordinates.
func (m *Mapper) ToDocument(p vector.Pt) vector.Pt {
	s := m.Display().Scale
	return vector.Pt{X: p.X / s, Y: p.Y / s}
}

// ToScreen converts document coordinates to the displayed canvas.
func (m *Mapper) ToScreen(p vector.Pt) vector.Pt {
	s := m.Display().Scale
	return vector.Pt{X: p.X * s, Y: p.Y * s}
}
