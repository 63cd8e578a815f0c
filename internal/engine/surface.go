/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package engine

import (
	"errors"
	"image"
	"sync"

	"github.com/fogleman/gg"
)

// SurfaceHost creates the drawing surface the engine renders into.
type SurfaceHost interface {
	CreateSurface(w, h int) (Surface, error)
}

// Surface is a drawable target. Canvas is drawn by the engine, then Present
// hands the frame to the host. Release frees it; the engine never uses a
// released surface.
type Surface interface {
	Canvas() *gg.Context
	Present() error
	Release()
}

// RasterHost keeps frames in memory. It is the host for headless sessions and tests.
type RasterHost struct {
	mu       sync.Mutex
	created  int
	released int
	last     *RasterSurface
}

// CreateSurface allocates a new in-memory surface.
func (h *RasterHost) CreateSurface(w, hgt int) (Surface, error) {
	if w <= 0 || hgt <= 0 {
		return nil, errors.New("invalid surface size")
	}
	s := &RasterSurface{host: h, dc: gg.NewContext(w, hgt)}
	h.mu.Lock()
	h.created++
	h.last = s
	h.mu.Unlock()
	return s, nil
}

// Live is the number of surfaces created and not yet released.
func (h *RasterHost) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.created - h.released
}

// Last returns the most recently created surface.
func (h *RasterHost) Last() *RasterSurface {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// RasterSurface is a gg context plus a copy of the last presented frame.
type RasterSurface struct {
	host     *RasterHost
	dc       *gg.Context
	mu       sync.Mutex
	frame    *image.RGBA
	presents int
	released bool
}

func (s *RasterSurface) Canvas() *gg.Context { return s.dc }

func (s *RasterSurface) Present() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return errors.New("surface released")
	}
	src := s.dc.Image().(*image.RGBA)
	if s.frame == nil {
		s.frame = image.NewRGBA(src.Rect)
	}
	copy(s.frame.Pix, src.Pix)
	s.presents++
	return nil
}

func (s *RasterSurface) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	s.mu.Unlock()
	s.host.mu.Lock()
	s.host.released++
	s.host.mu.Unlock()
}

// Frame returns a copy of the last presented frame, or nil.
func (s *RasterSurface) Frame() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return nil
	}
	cp := image.NewRGBA(s.frame.Rect)
	copy(cp.Pix, s.frame.Pix)
	return cp
}

// Presents counts Present calls.
func (s *RasterSurface) Presents() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presents
}

// Released reports whether Release was called.
func (s *RasterSurface) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}
