/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"gothumb/internal/scene"
	"gothumb/internal/textlayout"
	"gothumb/internal/vector"
)

// Prop names an editable attribute. Names match the JSON field names.
type Prop string

const (
	PropX      Prop = "x"
	PropY      Prop = "y"
	PropScaleX Prop = "scaleX"
	PropScaleY Prop = "scaleY"
	PropAngle  Prop = "angle"

	PropText          Prop = "text"
	PropFontFamily    Prop = "fontFamily"
	PropFontSize      Prop = "fontSize"
	PropFill          Prop = "fill"
	PropStroke        Prop = "stroke"
	PropStrokeWidth   Prop = "strokeWidth"
	PropPaintFirst    Prop = "paintFirst"
	PropFontWeight    Prop = "fontWeight"
	PropFontStyle     Prop = "fontStyle"
	PropUnderline     Prop = "underline"
	PropLetterSpacing Prop = "letterSpacing"
	PropLineHeight    Prop = "lineHeight"
)

var textOnly = map[Prop]bool{
	PropText: true, PropFontFamily: true, PropFontSize: true, PropFill: true, PropStroke: true,
	PropStrokeWidth: true, PropPaintFirst: true, PropFontWeight: true, PropFontStyle: true,
	PropUnderline: true, PropLetterSpacing: true, PropLineHeight: true,
}

var common = map[Prop]bool{PropX: true, PropY: true, PropScaleX: true, PropScaleY: true, PropAngle: true}

// Applies reports whether key is editable on objects of kind k.
func (p Prop) Applies(k scene.Kind) bool {
	switch k {
	case scene.KindText:
		return common[p] || textOnly[p]
	case scene.KindImage:
		return common[p]
	default:
		return false
	}
}

func toFloat(key Prop, v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		x, err := n.Float64()
		if err != nil {
			return 0, &PropertyError{Key: key, Reason: "not a number"}
		}
		f = x
	default:
		return 0, &PropertyError{Key: key, Reason: fmt.Sprintf("want number, got %T", v)}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &PropertyError{Key: key, Reason: "not a finite number"}
	}
	return f, nil
}

func toString(key Prop, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", &PropertyError{Key: key, Reason: fmt.Sprintf("want string, got %T", v)}
	}
	return s, nil
}

func toBool(key Prop, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, &PropertyError{Key: key, Reason: fmt.Sprintf("want bool, got %T", v)}
	}
	return b, nil
}

func toColor(key Prop, v any, allowEmpty bool) (string, error) {
	s, err := toString(key, v)
	if err != nil {
		return "", err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		if allowEmpty {
			return "", nil
		}
		return "", &PropertyError{Key: key, Reason: "color required"}
	}
	if _, err := vector.ParseHex(s); err != nil {
		return "", &PropertyError{Key: key, Reason: err.Error()}
	}
	return s, nil
}

func oneOf(key Prop, v any, allowed ...string) (string, error) {
	s, err := toString(key, v)
	if err != nil {
		return "", err
	}
	for _, a := range allowed {
		if s == a {
			return s, nil
		}
	}
	return "", &PropertyError{Key: key, Reason: fmt.Sprintf("want one of %s", strings.Join(allowed, "|"))}
}

func positive(key Prop, v any) (float64, error) {
	f, err := toFloat(key, v)
	if err != nil {
		return 0, err
	}
	if f <= 0 {
		return 0, &PropertyError{Key: key, Reason: "must be positive"}
	}
	return f, nil
}

// applyProp validates value and writes it into obj.
func applyProp(obj scene.Object, key Prop, value any) error {
	if !key.Applies(obj.Kind()) {
		return &PropertyError{Key: key, Kind: string(obj.Kind()), Reason: "not applicable"}
	}
	m := obj.Meta()
	var err error
	switch key {
	case PropX:
		m.X, err = toFloat(key, value)
		return err
	case PropY:
		m.Y, err = toFloat(key, value)
		return err
	case PropScaleX:
		m.ScaleX, err = positiveOr(m.ScaleX, key, value)
		return err
	case PropScaleY:
		m.ScaleY, err = positiveOr(m.ScaleY, key, value)
		return err
	case PropAngle:
		var a float64
		if a, err = toFloat(key, value); err == nil {
			m.Angle = normAngle(a)
		}
		return err
	}

	switch t := obj.(type) {
	case *scene.TextObject:
		return applyTextProp(t, key, value)
	case *scene.ImageObject:
		return &PropertyError{Key: key, Kind: string(scene.KindImage), Reason: "not applicable"}
	default:
		panic(fmt.Sprintf("engine: unknown object type %T", obj))
	}
}

func positiveOr(cur float64, key Prop, value any) (float64, error) {
	f, err := positive(key, value)
	if err != nil {
		return cur, err
	}
	return f, nil
}

func applyTextProp(t *scene.TextObject, key Prop, value any) error {
	switch key {
	case PropText:
		s, err := toString(key, value)
		if err != nil {
			return err
		}
		t.Text = s
	case PropFontFamily:
		s, err := toString(key, value)
		if err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			return &PropertyError{Key: key, Reason: "family required"}
		}
		t.FontFamily = s
	case PropFontSize:
		f, err := positive(key, value)
		if err != nil {
			return err
		}
		t.FontSize = f
	case PropFill:
		s, err := toColor(key, value, false)
		if err != nil {
			return err
		}
		t.Fill = s
	case PropStroke:
		s, err := toColor(key, value, true)
		if err != nil {
			return err
		}
		t.Stroke = s
	case PropStrokeWidth:
		f, err := toFloat(key, value)
		if err != nil {
			return err
		}
		if f < 0 || f > textlayout.MaxStrokeWidth {
			return &PropertyError{Key: key, Reason: fmt.Sprintf("must be within 0..%d", textlayout.MaxStrokeWidth)}
		}
		t.StrokeWidth = f
	case PropPaintFirst:
		s, err := oneOf(key, value, scene.PaintStroke, scene.PaintFill)
		if err != nil {
			return err
		}
		t.PaintFirst = s
	case PropFontWeight:
		s, err := oneOf(key, value, "normal", "bold")
		if err != nil {
			return err
		}
		t.FontWeight = s
	case PropFontStyle:
		s, err := oneOf(key, value, "normal", "italic")
		if err != nil {
			return err
		}
		t.FontStyle = s
	case PropUnderline:
		b, err := toBool(key, value)
		if err != nil {
			return err
		}
		t.Underline = b
	case PropLetterSpacing:
		f, err := toFloat(key, value)
		if err != nil {
			return err
		}
		t.LetterSpacing = f
	case PropLineHeight:
		f, err := positive(key, value)
		if err != nil {
			return err
		}
		t.LineHeight = f
	default:
		return &PropertyError{Key: key, Reason: "unknown property"}
	}
	return nil
}

// readProp returns the current value of key on obj.
func readProp(obj scene.Object, key Prop) (any, bool) {
	if !key.Applies(obj.Kind()) {
		return nil, false
	}
	m := obj.Meta()
	switch key {
	case PropX:
		return m.X, true
	case PropY:
		return m.Y, true
	case PropScaleX:
		return m.ScaleX, true
	case PropScaleY:
		return m.ScaleY, true
	case PropAngle:
		return m.Angle, true
	}
	t, ok := obj.(*scene.TextObject)
	if !ok {
		return nil, false
	}
	switch key {
	case PropText:
		return t.Text, true
	case PropFontFamily:
		return t.FontFamily, true
	case PropFontSize:
		return t.FontSize, true
	case PropFill:
		return t.Fill, true
	case PropStroke:
		return t.Stroke, true
	case PropStrokeWidth:
		return t.StrokeWidth, true
	case PropPaintFirst:
		return t.PaintFirst, true
	case PropFontWeight:
		return t.FontWeight, true
	case PropFontStyle:
		return t.FontStyle, true
	case PropUnderline:
		return t.Underline, true
	case PropLetterSpacing:
		return t.LetterSpacing, true
	case PropLineHeight:
		return t.LineHeight, true
	}
	return nil, false
}

// normAngle maps degrees into [0, 360).
func normAngle(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	return a
}

// SetProperty writes key on the selection and re-renders. With nothing
// selected it does nothing. An invalid key or value leaves the object as it was.
func (e *Engine) SetProperty(key Prop, value any) error {
	return e.update(func(ev []event) ([]event, error) {
		obj := e.activeLocked()
		if obj == nil {
			return ev, nil
		}
		trial := obj.Clone()
		if err := applyProp(trial, key, value); err != nil {
			return ev, err
		}
		e.recordLocked("prop:" + string(key))
		e.replaceLocked(trial)
		return e.modifiedLocked(trial, ev), nil
	})
}

// Property reads key from the selection.
func (e *Engine) Property(key Prop) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return nil, false
	}
	obj := e.activeLocked()
	if obj == nil {
		return nil, false
	}
	return readProp(obj, key)
}

// SetShadow sets the shadow of the selected text as one value; nil removes it.
func (e *Engine) SetShadow(sh *scene.Shadow) error {
	const key = Prop("shadow")
	if sh != nil {
		if _, err := vector.ParseHex(sh.Color); err != nil {
			return &PropertyError{Key: key, Reason: err.Error()}
		}
		if sh.Blur < 0 || math.IsNaN(sh.Blur) {
			return &PropertyError{Key: key, Reason: "blur must not be negative"}
		}
	}
	return e.update(func(ev []event) ([]event, error) {
		obj := e.activeLocked()
		if obj == nil {
			return ev, nil
		}
		t, ok := obj.(*scene.TextObject)
		if !ok {
			return ev, &PropertyError{Key: key, Kind: string(obj.Kind()), Reason: "not applicable"}
		}
		e.recordLocked("shadow")
		if sh == nil {
			t.Shadow = nil
		} else {
			cp := *sh
			t.Shadow = &cp
		}
		return e.modifiedLocked(t, ev), nil
	})
}

// replaceLocked swaps the object with the same id for obj in place.
func (e *Engine) replaceLocked(obj scene.Object) {
	i := e.doc.IndexOf(obj.Meta().ID)
	if i < 0 {
		return
	}
	cur := e.doc.At(i)
	switch dst := cur.(type) {
	case *scene.TextObject:
		*dst = *obj.(*scene.TextObject)
	case *scene.ImageObject:
		*dst = *obj.(*scene.ImageObject)
	default:
		panic(fmt.Sprintf("engine: unknown object type %T", cur))
	}
}
