/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import "math"

// SnapOptions selects the alignment candidates. Threshold is in document
// pixels; zero means 6.
type SnapOptions struct {
	Threshold     float64
	SnapToEdges   bool
	SnapToCenters bool
}

// Anchor is a rect a dragged object can align to. Higher weights win ties.
type Anchor struct {
	Rect   Rect
	Weight float64
}

// GuideLine is an alignment line to draw while dragging. Orientation is
// "vertical" or "horizontal", Kind is "edge" or "center".
type GuideLine struct {
	Orientation string
	Kind        string
	Position    float64
	From        Pt
	To          Pt
}

// span is a rect projected on one axis.
type span struct{ lo, mid, hi float64 }

func spanX(r Rect) span { return span{r.X, r.X + r.W/2, r.X + r.W} }
func spanY(r Rect) span { return span{r.Y, r.Y + r.H/2, r.Y + r.H} }

type candidate struct {
	delta, score float64
	at           float64
	kind         string
	other        Rect
	ok           bool
}

func (c *candidate) offer(delta, at float64, kind string, a Anchor, threshold float64) {
	d := math.Abs(delta)
	if d > threshold {
		return
	}
	score := d / math.Max(1, a.Weight)
	if c.ok && score >= c.score {
		return
	}
	*c = candidate{delta: delta, score: score, at: at, kind: kind, other: a.Rect, ok: true}
}

// bestOnAxis finds the smallest correction aligning m to any anchor span.
func bestOnAxis(m span, anchors []Anchor, project func(Rect) span, opts SnapOptions) candidate {
	var best candidate
	for _, a := range anchors {
		s := project(a.Rect)
		if opts.SnapToEdges {
			for _, at := range []float64{s.lo, s.hi} {
				best.offer(m.lo-at, at, "edge", a, opts.Threshold)
				best.offer(m.hi-at, at, "edge", a, opts.Threshold)
			}
		}
		if opts.SnapToCenters {
			best.offer(m.mid-s.mid, s.mid, "center", a, opts.Threshold)
		}
	}
	return best
}

// ComputeSmartGuides snaps moving to the nearest anchor edge or center on
// each axis independently and returns the guides that caused the snap.
func ComputeSmartGuides(moving Rect, anchors []Anchor, opts SnapOptions) (Rect, []GuideLine) {
	if opts.Threshold <= 0 {
		opts.Threshold = 6
	}
	snapped := moving
	var guides []GuideLine
	if c := bestOnAxis(spanX(moving), anchors, spanX, opts); c.ok {
		snapped.X = FloatRound(moving.X-c.delta, 3)
		x := FloatRound(c.at, 3)
		lo, hi := math.Min(moving.Y, c.other.Y), math.Max(moving.Y+moving.H, c.other.Y+c.other.H)
		guides = append(guides, GuideLine{Orientation: "vertical", Kind: c.kind, Position: x, From: Pt{x, lo}, To: Pt{x, hi}})
	}
	if c := bestOnAxis(spanY(moving), anchors, spanY, opts); c.ok {
		snapped.Y = FloatRound(moving.Y-c.delta, 3)
		y := FloatRound(c.at, 3)
		lo, hi := math.Min(moving.X, c.other.X), math.Max(moving.X+moving.W, c.other.X+c.other.W)
		guides = append(guides, GuideLine{Orientation: "horizontal", Kind: c.kind, Position: y, From: Pt{lo, y}, To: Pt{hi, y}})
	}
	return snapped, guides
}

// CanvasAnchor returns the anchor for a w×h authoring surface, preferred over object anchors.
func CanvasAnchor(w, h float64) Anchor { return Anchor{Rect: R(0, 0, w, h), Weight: 2} }
