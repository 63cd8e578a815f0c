/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func frame() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 1280, 720))
	for y := 0; y < 720; y++ {
		for x := 0; x < 1280; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}
	// a transparent corner
	img.SetNRGBA(0, 0, color.NRGBA{})
	return img
}

func TestEncodePNGKeepsAlpha(t *testing.T) {
	data, err := Bytes(frame(), Options{Format: PNG})
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 1280 || b.Dy() != 720 {
		t.Fatalf("bounds = %v", b)
	}
	if _, _, _, a := img.At(0, 0).RGBA(); a != 0 {
		t.Fatalf("alpha lost: %d", a)
	}
}

func TestEncodeJPEGFlattensOntoBlack(t *testing.T) {
	data, err := Bytes(frame(), Options{Format: JPEG})
	if err != nil {
		t.Fatalf("jpeg: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 1280 || b.Dy() != 720 {
		t.Fatalf("bounds = %v", b)
	}
	r, _, _, _ := img.At(640, 360).RGBA()
	if r>>8 < 180 {
		t.Fatalf("body color lost: r=%d", r>>8)
	}
}

func TestJPEGQualityMapping(t *testing.T) {
	cases := []struct {
		in   float64
		want int
	}{{0, 92}, {0.92, 92}, {0.5, 50}, {1, 100}, {3, 100}, {0.001, 1}}
	for _, c := range cases {
		if got := (Options{Quality: c.in}).jpegQuality(); got != c.want {
			t.Fatalf("quality %v -> %d, want %d", c.in, got, c.want)
		}
	}
	lo, _ := Bytes(frame(), Options{Format: JPEG, Quality: 0.1})
	hi, _ := Bytes(frame(), Options{Format: JPEG, Quality: 1})
	if len(lo) == 0 || len(hi) == 0 {
		t.Fatalf("empty jpeg output")
	}
}

func TestEncodePDF(t *testing.T) {
	data, err := Bytes(frame(), Options{Format: PDF})
	if err != nil {
		t.Fatalf("pdf: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("missing pdf header")
	}
	if !bytes.Contains(data, []byte("/MediaBox [0 0 1280.00 720.00]")) {
		t.Fatalf("page is not 1280x720 pt")
	}
}

func TestEncodeRejectsEmpty(t *testing.T) {
	if data, err := Bytes(image.NewRGBA(image.Rect(0, 0, 0, 0)), Options{}); err != ErrEmptyImage || data != nil {
		t.Fatalf("expected ErrEmptyImage and no bytes, got %v", err)
	}
	if _, err := Bytes(frame(), Options{Format: "gif"}); err == nil {
		t.Fatalf("expected unknown format error")
	}
}

func TestParseFormatAndFileName(t *testing.T) {
	for in, want := range map[string]Format{"PNG": PNG, "jpg": JPEG, " jpeg ": JPEG, "pdf": PDF, "": PNG} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %v, %v", in, got, err)
		}
	}
	ts := time.UnixMilli(1700000000123)
	if got := FileName(JPEG, ts); got != "thumb_1700000000123.jpg" {
		t.Fatalf("FileName = %s", got)
	}
	if JPEG.MIME() != "image/jpeg" || PDF.MIME() != "application/pdf" || PNG.MIME() != "image/png" {
		t.Fatalf("unexpected mime types")
	}
}

func TestBatchExportPresets(t *testing.T) {
	dir := t.TempDir()
	ts := time.UnixMilli(42)
	paths, err := BatchExport(frame(), BatchOptions{Preset: PresetPrint, OutDir: dir}, ts)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("paths = %v", paths)
	}
	want := []string{filepath.Join(dir, "pdf", "thumb_42.pdf"), filepath.Join(dir, "png", "thumb_42.png")}
	for i, p := range want {
		if paths[i] != p {
			t.Fatalf("path %d = %s, want %s", i, paths[i], p)
		}
		st, err := os.Stat(p)
		if err != nil || st.Size() == 0 {
			t.Fatalf("stat %s: %v", p, err)
		}
	}
	// duplicates collapse
	paths, err = BatchExport(frame(), BatchOptions{Formats: []string{"jpg", "jpeg"}, OutDir: dir}, ts)
	if err != nil || len(paths) != 1 || !strings.HasSuffix(paths[0], ".jpg") {
		t.Fatalf("dedupe: %v %v", paths, err)
	}
	if _, err := BatchExport(frame(), BatchOptions{Formats: []string{"tiff"}, OutDir: dir}, ts); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
