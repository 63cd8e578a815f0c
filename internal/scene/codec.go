/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

type wireDoc struct {
	Width   int               `json:"width"`
	Height  int               `json:"height"`
	Objects []json.RawMessage `json:"objects"`
}

type wireText struct {
	Type Kind `json:"type"`
	*TextObject
}

type wireImage struct {
	Type Kind `json:"type"`
	*ImageObject
}

// MarshalJSON encodes the document with a "type" tag on every object.
// Image pixels are not encoded; the source is.
func (d *Document) MarshalJSON() ([]byte, error) {
	w := wireDoc{Width: Width, Height: Height, Objects: make([]json.RawMessage, 0, len(d.objects))}
	for _, o := range d.objects {
		raw, err := MarshalObject(o)
		if err != nil {
			return nil, err
		}
		w.Objects = append(w.Objects, raw)
	}
	return json.Marshal(w)
}

// MarshalObject encodes a single object with its type tag.
func MarshalObject(o Object) ([]byte, error) {
	switch v := o.(type) {
	case *TextObject:
		return json.Marshal(wireText{Type: KindText, TextObject: v})
	case *ImageObject:
		return json.Marshal(wireImage{Type: KindImage, ImageObject: v})
	default:
		return nil, fmt.Errorf("marshal: unknown object type %T", o)
	}
}

// UnmarshalObject decodes a single tagged object.
func UnmarshalObject(raw []byte) (Object, error) {
	var tag struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, err
	}
	switch tag.Type {
	case KindText:
		t := &TextObject{}
		if err := json.Unmarshal(raw, t); err != nil {
			return nil, err
		}
		if t.LineHeight == 0 {
			t.LineHeight = DefaultLineHeight
		}
		return t, nil
	case KindImage:
		i := &ImageObject{}
		if err := json.Unmarshal(raw, i); err != nil {
			return nil, err
		}
		return i, nil
	default:
		return nil, fmt.Errorf("unknown object type %q", tag.Type)
	}
}

// UnmarshalJSON decodes a document. Width and height must be the authoring size.
func (d *Document) UnmarshalJSON(data []byte) error {
	var w wireDoc
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Width != Width || w.Height != Height {
		return fmt.Errorf("document size %dx%d, want %dx%d", w.Width, w.Height, Width, Height)
	}
	objs := make([]Object, 0, len(w.Objects))
	for i, raw := range w.Objects {
		o, err := UnmarshalObject(raw)
		if err != nil {
			return fmt.Errorf("object %d: %w", i, err)
		}
		objs = append(objs, o)
	}
	tmp := &Document{objects: objs}
	if err := tmp.Check(); err != nil {
		return err
	}
	d.objects = objs
	return nil
}

// Decode validates data against the document schema and decodes it.
func Decode(data []byte) (*Document, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	d := NewDocument()
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return d, nil
}

// SaveFile writes the document as indented JSON using a temp file and rename.
func SaveFile(path string, d *Document) error {
	if path == "" {
		return errors.New("empty path")
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	data = append(data, '\n')
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if err := writeFileSync(temp, data); err != nil {
		return fmt.Errorf("write temp document: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if err := os.Rename(temp, path); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}

// LoadFile reads and validates a document written by SaveFile.
// Image objects come back without pixels; callers reattach them from Source.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}
