/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package scene holds the thumbnail document: a fixed 1280×720 authoring surface
// with an ordered stack of text and image objects. The slice order is the render
// order; the last object is topmost. A background object, when present, is
// pinned at index 0.
package scene

import (
	"errors"
	"fmt"
)

// Authoring surface size. Exports are always produced at this size.
const (
	Width  = 1280
	Height = 720
)

var (
	ErrNotFound         = errors.New("object not found")
	ErrBackgroundLocked = errors.New("background object is locked")
)

// Document is the ordered object stack. The zero value is not usable; call NewDocument.
type Document struct {
	objects []Object
}

// NewDocument returns an empty 1280×720 document.
func NewDocument() *Document { return &Document{objects: make([]Object, 0, 8)} }

func (d *Document) Width() int  { return Width }
func (d *Document) Height() int { return Height }

// Objects returns the stack bottom to top. The slice is a copy, the objects are not.
func (d *Document) Objects() []Object {
	out := make([]Object, len(d.objects))
	copy(out, d.objects)
	return out
}

func (d *Document) Len() int { return len(d.objects) }

// At returns the object at index i.
func (d *Document) At(i int) Object { return d.objects[i] }

// IndexOf returns the stack index of id or -1.
func (d *Document) IndexOf(id string) int {
	for i, o := range d.objects {
		if o.Meta().ID == id {
			return i
		}
	}
	return -1
}

// Find returns the object with id.
func (d *Document) Find(id string) (Object, bool) {
	if i := d.IndexOf(id); i >= 0 {
		return d.objects[i], true
	}
	return nil, false
}

// Background returns the pinned background object, if any.
func (d *Document) Background() (Object, bool) {
	if len(d.objects) > 0 && d.objects[0].Meta().Background {
		return d.objects[0], true
	}
	return nil, false
}

// firstMovable is the lowest index a non-background object may occupy.
func (d *Document) firstMovable() int {
	if _, ok := d.Background(); ok {
		return 1
	}
	return 0
}

// SetBackground flags obj as background and puts it at index 0, replacing a previous background.
// It returns the replaced object, if any.
func (d *Document) SetBackground(obj Object) (replaced Object) {
	obj.Meta().Background = true
	if prev, ok := d.Background(); ok {
		d.objects[0] = obj
		return prev
	}
	d.objects = append(d.objects, nil)
	copy(d.objects[1:], d.objects)
	d.objects[0] = obj
	return nil
}

// Append places obj above every existing object.
func (d *Document) Append(obj Object) error {
	m := obj.Meta()
	if m.Background {
		return fmt.Errorf("append %s: %w", m.ID, ErrBackgroundLocked)
	}
	if d.IndexOf(m.ID) >= 0 {
		return fmt.Errorf("append %s: duplicate id", m.ID)
	}
	d.objects = append(d.objects, obj)
	return nil
}

// Remove deletes the object with id. The background cannot be removed this way.
func (d *Document) Remove(id string) (Object, error) {
	i := d.IndexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	o := d.objects[i]
	if o.Meta().Background {
		return nil, fmt.Errorf("remove %s: %w", id, ErrBackgroundLocked)
	}
	d.objects = append(d.objects[:i], d.objects[i+1:]...)
	return o, nil
}

// Move changes the stack position of id to index to, clamped so a background
// stays at index 0. It reports whether the order changed.
func (d *Document) Move(id string, to int) (bool, error) {
	i := d.IndexOf(id)
	if i < 0 {
		return false, fmt.Errorf("move %s: %w", id, ErrNotFound)
	}
	if d.objects[i].Meta().Background {
		return false, fmt.Errorf("move %s: %w", id, ErrBackgroundLocked)
	}
	lo, hi := d.firstMovable(), len(d.objects)-1
	if to < lo {
		to = lo
	}
	if to > hi {
		to = hi
	}
	if to == i {
		return false, nil
	}
	o := d.objects[i]
	d.objects = append(d.objects[:i], d.objects[i+1:]...)
	d.objects = append(d.objects, nil)
	copy(d.objects[to+1:], d.objects[to:])
	d.objects[to] = o
	return true, nil
}

// Clear drops every object, background included.
func (d *Document) Clear() { d.objects = d.objects[:0] }

// Clone deep-copies the document.
func (d *Document) Clone() *Document {
	out := &Document{objects: make([]Object, len(d.objects))}
	for i, o := range d.objects {
		out.objects[i] = o.Clone()
	}
	return out
}

// Check verifies the structural rules: unique ids, at most one background
// and only at index 0, positive scales.
func (d *Document) Check() error {
	seen := make(map[string]struct{}, len(d.objects))
	for i, o := range d.objects {
		m := o.Meta()
		if m.ID == "" {
			return fmt.Errorf("object %d: empty id", i)
		}
		if _, dup := seen[m.ID]; dup {
			return fmt.Errorf("object %d: duplicate id %s", i, m.ID)
		}
		seen[m.ID] = struct{}{}
		if m.Background && i != 0 {
			return fmt.Errorf("object %d: background must be at index 0", i)
		}
		if m.ScaleX <= 0 || m.ScaleY <= 0 {
			return fmt.Errorf("object %d: scale must be positive", i)
		}
		switch v := o.(type) {
		case *TextObject:
			if v.FontSize <= 0 {
				return fmt.Errorf("object %d: font size must be positive", i)
			}
		case *ImageObject:
			if m.Background && v.Source == "" {
				return fmt.Errorf("object %d: background without source", i)
			}
		default:
			panic(fmt.Sprintf("scene: unknown object type %T", o))
		}
	}
	return nil
}
