/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export encodes rendered frames. Frames are produced at the fixed
// authoring resolution by the renderer; nothing here knows about display scale.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Format is an output encoding.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
	PDF  Format = "pdf"
)

// DefaultJPEGQuality is used when Options.Quality is zero.
const DefaultJPEGQuality = 0.92

var ErrEmptyImage = errors.New("export: empty image")

// Options select the encoding. Quality is in (0,1] and only used for JPEG.
type Options struct {
	Format  Format  `json:"format"`
	Quality float64 `json:"quality,omitempty"`
}

// ParseFormat accepts png, jpeg/jpg and pdf in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return PNG, nil
	case "jpeg", "jpg":
		return JPEG, nil
	case "pdf":
		return PDF, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

// Ext returns the file extension without a dot.
func (f Format) Ext() string {
	if f == JPEG {
		return "jpg"
	}
	return string(f)
}

// MIME returns the media type of the encoding.
func (f Format) MIME() string {
	switch f {
	case JPEG:
		return "image/jpeg"
	case PDF:
		return "application/pdf"
	default:
		return "image/png"
	}
}

// jpegQuality maps the (0,1] quality to the encoder's 1..100 scale.
func (o Options) jpegQuality() int {
	q := o.Quality
	if q <= 0 {
		q = DefaultJPEGQuality
	}
	n := int(math.Round(q * 100))
	if n < 1 {
		n = 1
	}
	if n > 100 {
		n = 100
	}
	return n
}

// Encode writes img to w in the requested format.
func Encode(img image.Image, opts Options, w io.Writer) error {
	if img == nil || img.Bounds().Empty() {
		return ErrEmptyImage
	}
	format := opts.Format
	if format == "" {
		format = PNG
	}
	switch format {
	case PNG:
		return encodePNG(img, w)
	case JPEG:
		return encodeJPEG(img, opts.jpegQuality(), w)
	case PDF:
		return encodePDF(img, w)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// Bytes is Encode into memory. On error no bytes are returned.
func Bytes(img image.Image, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(img, opts, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileName returns thumb_<unix millis>.<ext>.
func FileName(f Format, t time.Time) string {
	return fmt.Sprintf("thumb_%d.%s", t.UnixMilli(), f.Ext())
}

// WriteFile encodes img into dir under FileName and returns the path.
func WriteFile(img image.Image, opts Options, dir string, t time.Time) (string, error) {
	data, err := Bytes(img, opts)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure out dir: %w", err)
	}
	format := opts.Format
	if format == "" {
		format = PNG
	}
	path := filepath.Join(dir, FileName(format, t))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", format, err)
	}
	return path, nil
}
