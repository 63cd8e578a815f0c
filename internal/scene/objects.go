/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"fmt"
	"image"

	"github.com/google/uuid"
)

// Kind tags the variant of an Object.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Object is the closed set of scene objects: *TextObject or *ImageObject.
// Switches over it must handle both variants.
type Object interface {
	Kind() Kind
	// Meta exposes the shared placement attributes for in-place edits.
	Meta() *Base
	// Clone returns a deep copy. Decoded pixels are shared, they are never mutated.
	Clone() Object
	sealed()
}

// Base carries the attributes every object has. Angle is in degrees; objects
// rotate about their top-left origin.
type Base struct {
	ID         string  `json:"id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	ScaleX     float64 `json:"scaleX"`
	ScaleY     float64 `json:"scaleY"`
	Angle      float64 `json:"angle"`
	Background bool    `json:"background,omitempty"`
}

// NewID returns a fresh object identifier.
func NewID() string { return uuid.NewString() }

// ShadowMode selects how a text shadow is drawn.
type ShadowMode string

const (
	ShadowNone ShadowMode = "none"
	ShadowDrop ShadowMode = "shadow"
	ShadowGlow ShadowMode = "glow"
)

// Shadow is a blurred copy of the glyphs behind the text. A glow is a shadow
// with both offsets zero.
type Shadow struct {
	Color   string  `json:"color"`
	Blur    float64 `json:"blur"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
}

const (
	DefaultGlowBlur    = 30
	DefaultShadowBlur  = 10
	DefaultShadowShift = 6
)

// GlowShadow returns a glow in color c with the default blur.
func GlowShadow(c string) *Shadow { return &Shadow{Color: c, Blur: DefaultGlowBlur} }

// DropShadow returns a drop shadow in color c (black when empty) with default blur and offsets.
func DropShadow(c string) *Shadow {
	if c == "" {
		c = "#000000"
	}
	return &Shadow{Color: c, Blur: DefaultShadowBlur, OffsetX: DefaultShadowShift, OffsetY: DefaultShadowShift}
}

// Mode classifies s; nil means no shadow.
func (s *Shadow) Mode() ShadowMode {
	switch {
	case s == nil:
		return ShadowNone
	case s.OffsetX == 0 && s.OffsetY == 0:
		return ShadowGlow
	default:
		return ShadowDrop
	}
}

// Paint order values.
const (
	PaintStroke = "stroke" // stroke under fill
	PaintFill   = "fill"
)

// TextObject is an editable text run.
type TextObject struct {
	Base
	Text          string  `json:"text"`
	FontFamily    string  `json:"fontFamily"`
	FontSize      float64 `json:"fontSize"`
	Fill          string  `json:"fill"`
	Stroke        string  `json:"stroke,omitempty"`
	StrokeWidth   float64 `json:"strokeWidth"`
	PaintFirst    string  `json:"paintFirst"`
	FontWeight    string  `json:"fontWeight"`
	FontStyle     string  `json:"fontStyle"`
	Underline     bool    `json:"underline,omitempty"`
	LetterSpacing float64 `json:"letterSpacing,omitempty"`
	LineHeight    float64 `json:"lineHeight"`
	Shadow        *Shadow `json:"shadow,omitempty"`
}

// DefaultLineHeight is the line height multiplier of new text.
const DefaultLineHeight = 1.16

// NewTextObject returns a text object with a fresh id and neutral defaults.
func NewTextObject(text string) *TextObject {
	return &TextObject{
		Base:       Base{ID: NewID(), ScaleX: 1, ScaleY: 1},
		Text:       text,
		FontFamily: "Impact",
		FontSize:   80,
		Fill:       "#FFFFFF",
		PaintFirst: PaintStroke,
		FontWeight: "normal",
		FontStyle:  "normal",
		LineHeight: DefaultLineHeight,
	}
}

func (t *TextObject) Kind() Kind  { return KindText }
func (t *TextObject) Meta() *Base { return &t.Base }
func (t *TextObject) sealed()     {}

func (t *TextObject) Clone() Object {
	cp := *t
	if t.Shadow != nil {
		s := *t.Shadow
		cp.Shadow = &s
	}
	return &cp
}

// Bold reports whether the weight is bold (or numeric >= 600).
func (t *TextObject) Bold() bool {
	switch t.FontWeight {
	case "bold", "bolder", "600", "700", "800", "900":
		return true
	}
	return false
}

// Italic reports whether the style is italic or oblique.
func (t *TextObject) Italic() bool { return t.FontStyle == "italic" || t.FontStyle == "oblique" }

// ImageObject is a placed raster. The decoded pixels travel with the object
// in memory only; Source is what gets persisted.
type ImageObject struct {
	Base
	Source        string      `json:"src"`
	NaturalWidth  int         `json:"width"`
	NaturalHeight int         `json:"height"`
	Image         image.Image `json:"-"`
}

// NewImageObject wraps decoded pixels with a fresh id at unit scale.
func NewImageObject(src string, img image.Image) *ImageObject {
	o := &ImageObject{Base: Base{ID: NewID(), ScaleX: 1, ScaleY: 1}, Source: src, Image: img}
	if img != nil {
		b := img.Bounds()
		o.NaturalWidth, o.NaturalHeight = b.Dx(), b.Dy()
	}
	return o
}

func (i *ImageObject) Kind() Kind  { return KindImage }
func (i *ImageObject) Meta() *Base { return &i.Base }
func (i *ImageObject) sealed()     {}

func (i *ImageObject) Clone() Object {
	cp := *i
	return &cp
}

// Describe returns a short human label for panels and logs.
func Describe(o Object) string {
	switch v := o.(type) {
	case *TextObject:
		return fmt.Sprintf("text %q", v.Text)
	case *ImageObject:
		if v.Background {
			return fmt.Sprintf("background %dx%d", v.NaturalWidth, v.NaturalHeight)
		}
		return fmt.Sprintf("image %dx%d", v.NaturalWidth, v.NaturalHeight)
	default:
		panic(fmt.Sprintf("scene: unknown object type %T", o))
	}
}
