/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import "testing"

func guideAt(guides []GuideLine, orientation, kind string, pos float64) bool {
	for _, g := range guides {
		if g.Orientation == orientation && g.Kind == kind && g.Position == pos {
			return true
		}
	}
	return false
}

func TestSmartGuides(t *testing.T) {
	canvas := CanvasAnchor(1280, 720)
	cases := []struct {
		name    string
		moving  Rect
		anchors []Anchor
		opts    SnapOptions
		want    Pt
		guides  int
	}{
		{"top-left edges", R(4, 3, 200, 80), []Anchor{canvas}, SnapOptions{SnapToEdges: true}, Pt{0, 0}, 2},
		{"bottom-right edges", R(1078, 642, 200, 80), []Anchor{canvas}, SnapOptions{SnapToEdges: true}, Pt{1080, 640}, 2},
		{"outside threshold", R(20, 20, 200, 80), []Anchor{canvas}, SnapOptions{Threshold: 5, SnapToEdges: true}, Pt{20, 20}, 0},
		{"horizontal center only", R(537, 100, 200, 40), []Anchor{canvas}, SnapOptions{SnapToCenters: true}, Pt{540, 100}, 1},
		{"abut another object", R(302, 500, 50, 50), []Anchor{{Rect: R(100, 400, 200, 100), Weight: 1}},
			SnapOptions{SnapToEdges: true}, Pt{300, 500}, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, guides := ComputeSmartGuides(tc.moving, tc.anchors, tc.opts)
			if got.X != tc.want.X || got.Y != tc.want.Y {
				t.Fatalf("snapped to %v,%v want %v", got.X, got.Y, tc.want)
			}
			if got.W != tc.moving.W || got.H != tc.moving.H {
				t.Fatalf("size changed: %+v", got)
			}
			if len(guides) != tc.guides {
				t.Fatalf("guides = %+v", guides)
			}
		})
	}
}

func TestSmartGuidesCenterLines(t *testing.T) {
	_, guides := ComputeSmartGuides(R(537, 338, 200, 40), []Anchor{CanvasAnchor(1280, 720)}, SnapOptions{SnapToCenters: true})
	if !guideAt(guides, "vertical", "center", 640) || !guideAt(guides, "horizontal", "center", 360) {
		t.Fatalf("guides = %+v", guides)
	}
	for _, g := range guides {
		if g.Orientation == "vertical" && (g.From.Y != 0 || g.To.Y != 720) {
			t.Fatalf("vertical guide spans %v..%v", g.From, g.To)
		}
	}
}

func TestSmartGuidesPreferHeavierAnchor(t *testing.T) {
	// Both left edges are 3px away; the heavier anchor wins.
	light := Anchor{Rect: R(603, 300, 100, 100), Weight: 1}
	heavy := Anchor{Rect: R(597, 0, 10, 10), Weight: 3}
	_, guides := ComputeSmartGuides(R(600, 500, 80, 40), []Anchor{light, heavy}, SnapOptions{SnapToEdges: true})
	if !guideAt(guides, "vertical", "edge", 597) {
		t.Fatalf("guides = %+v", guides)
	}
}
