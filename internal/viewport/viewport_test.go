package viewport

import (
	"math"
	"testing"

	"gothumb/internal/vector"
)

func TestComputeClamps(t *testing.T) {
	l := DefaultLayout()
	cases := []struct {
		viewport float64
		width    float64
	}{
		{1400, 768},
		{1000, 1000 - 260 - 48},
		{400, 280},
		{0, 280},
	}
	for _, tc := range cases {
		d := l.Compute(tc.viewport)
		if d.Width != tc.width {
			t.Fatalf("viewport %v: width = %v, want %v", tc.viewport, d.Width, tc.width)
		}
		if math.Abs(d.Height-d.Width*720/1280) > 1e-9 {
			t.Fatalf("viewport %v: height %v breaks 16:9", tc.viewport, d.Height)
		}
		if math.Abs(d.Scale-d.Width/1280) > 1e-12 {
			t.Fatalf("viewport %v: scale %v", tc.viewport, d.Scale)
		}
	}
}

func TestLargeViewportDisplay(t *testing.T) {
	d := DefaultLayout().Compute(1920)
	if d.Width != 768 || d.Height != 432 || d.Scale != 0.6 {
		t.Fatalf("unexpected display %+v", d)
	}
}

func TestMapperRoundTrip(t *testing.T) {
	m := NewMapper(DefaultLayout())
	if _, changed := m.Resize(1000); !changed {
		t.Fatalf("expected change from initial display")
	}
	if _, changed := m.Resize(1000); changed {
		t.Fatalf("same width should not report change")
	}
	doc := vector.Pt{X: 640, Y: 360}
	back := m.ToDocument(m.ToScreen(doc))
	if math.Abs(back.X-doc.X) > 1e-9 || math.Abs(back.Y-doc.Y) > 1e-9 {
		t.Fatalf("round trip drifted: %+v", back)
	}
}

func TestToDocumentAtSmallestDisplay(t *testing.T) {
	m := NewMapper(DefaultLayout())
	m.Resize(300)
	p := m.ToDocument(vector.Pt{X: 280, Y: 157.5})
	if math.Abs(p.X-1280) > 1e-9 || math.Abs(p.Y-720) > 1e-9 {
		t.Fatalf("corner maps to %+v, want 1280,720", p)
	}
}
