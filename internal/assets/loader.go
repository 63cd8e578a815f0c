/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package assets resolves image sources and decodes them. A source is an
// http(s) URL, a data URL, a local file path (optionally file://), or a
// "blank:#rrggbb" solid fill used for blank editors.
package assets

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	applog "gothumb/internal/log"
	"gothumb/internal/scene"
	"gothumb/internal/vector"
)

var (
	ErrEmptySource = errors.New("empty image source")
	ErrTooLarge    = errors.New("image exceeds size limit")
	ErrUnsupported = errors.New("unsupported image source")
)

// LoadError wraps a failure to resolve or decode Source.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load image %s: %v", shorten(e.Source), e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Loader fetches and decodes image sources.
type Loader struct {
	HTTP     *http.Client
	MaxBytes int64
	// AllowFiles enables local paths; hosts serving remote clients turn it off.
	AllowFiles bool
}

// NewLoader returns a Loader with a bounded HTTP client and a 25 MiB limit.
func NewLoader(timeout time.Duration) *Loader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Loader{HTTP: &http.Client{Timeout: timeout}, MaxBytes: 25 << 20, AllowFiles: true}
}

// Load resolves src and decodes it. ctx bounds network fetches.
func (l *Loader) Load(ctx context.Context, src string) (image.Image, error) {
	lg := applog.WithOperation(applog.WithComponent("assets"), "load")
	start := time.Now()
	img, err := l.load(ctx, strings.TrimSpace(src))
	if err != nil {
		lg.Warn("image load failed", slog.String("src", shorten(src)), slog.Any("err", err))
		return nil, &LoadError{Source: src, Err: err}
	}
	b := img.Bounds()
	lg.Debug("image loaded", slog.String("src", shorten(src)), slog.Int("w", b.Dx()), slog.Int("h", b.Dy()),
		slog.Duration("took", time.Since(start)))
	return img, nil
}

// Decode decodes raw bytes (png, jpeg, gif, webp, bmp).
func (l *Loader) Decode(data []byte) (image.Image, error) {
	if l.MaxBytes > 0 && int64(len(data)) > l.MaxBytes {
		return nil, ErrTooLarge
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New("decode: empty image")
	}
	return img, nil
}

func (l *Loader) load(ctx context.Context, src string) (image.Image, error) {
	lower := strings.ToLower(src)
	switch {
	case src == "":
		return nil, ErrEmptySource
	case strings.HasPrefix(lower, "blank:"):
		return Blank(src[len("blank:"):])
	case strings.HasPrefix(lower, "data:"):
		data, err := parseDataURL(src)
		if err != nil {
			return nil, err
		}
		return l.Decode(data)
	case strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://"):
		data, err := l.fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		return l.Decode(data)
	case strings.HasPrefix(lower, "file://"):
		u, err := url.Parse(src)
		if err != nil {
			return nil, err
		}
		return l.readFile(u.Path)
	case strings.Contains(src, "://"):
		return nil, ErrUnsupported
	default:
		return l.readFile(src)
	}
}

func (l *Loader) readFile(path string) (image.Image, error) {
	if !l.AllowFiles {
		return nil, ErrUnsupported
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := l.readLimited(f)
	if err != nil {
		return nil, err
	}
	return l.Decode(data)
}

func (l *Loader) fetch(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/*")
	client := l.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}
	return l.readLimited(resp.Body)
}

func (l *Loader) readLimited(r io.Reader) ([]byte, error) {
	if l.MaxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, l.MaxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > l.MaxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

func parseDataURL(src string) ([]byte, error) {
	comma := strings.IndexByte(src, ',')
	if comma < 0 {
		return nil, errors.New("malformed data url")
	}
	meta, payload := src[len("data:"):comma], src[comma+1:]
	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		payload = strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
				return -1
			}
			return r
		}, payload)
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			// some encoders drop the padding
			if data, err2 := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=")); err2 == nil {
				return data, nil
			}
			return nil, fmt.Errorf("data url: %w", err)
		}
		return data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("data url: %w", err)
	}
	return []byte(s), nil
}

// Blank returns a solid image for a "blank:" spec: "#rrggbb" or "#rrggbb@WxH".
// The size defaults to the authoring surface.
func Blank(spec string) (image.Image, error) {
	hex, size, _ := strings.Cut(strings.TrimSpace(spec), "@")
	if hex == "" {
		hex = "#111111"
	}
	c, err := vector.ParseHex(hex)
	if err != nil {
		return nil, err
	}
	w, h := scene.Width, scene.Height
	if size != "" {
		ws, hs, ok := strings.Cut(strings.ToLower(size), "x")
		w1, err1 := strconv.Atoi(ws)
		h1, err2 := strconv.Atoi(hs)
		if !ok || err1 != nil || err2 != nil || w1 <= 0 || h1 <= 0 || w1 > 8192 || h1 > 8192 {
			return nil, fmt.Errorf("invalid blank size %q", size)
		}
		w, h = w1, h1
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c.NRGBA()), image.Point{}, draw.Src)
	return img, nil
}

// DataURL encodes bytes as a data URL of the given mime type.
func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func shorten(s string) string {
	if strings.HasPrefix(strings.ToLower(s), "data:") && len(s) > 48 {
		return s[:48] + "..."
	}
	return s
}
