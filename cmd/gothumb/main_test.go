/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gothumb/internal/config"
	"gothumb/internal/engine"
	"gothumb/internal/scene"
)

func writeScene(t *testing.T) string {
	t.Helper()
	e := engine.New(engine.Options{})
	if err := e.Initialize(&engine.RasterHost{}, scene.Width, scene.Height); err != nil {
		t.Fatal(err)
	}
	defer e.Dispose()
	if err := e.Seed(context.Background(), engine.GenerationResult{
		BackgroundURL: "blank:#aa3300",
		Elements:      []engine.TextSeed{{Text: "RENDER"}},
	}); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "scene.json")
	if err := scene.SaveFile(path, e.Document()); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRenderSceneByExtension(t *testing.T) {
	in := writeScene(t)
	out := filepath.Join(t.TempDir(), "nested", "thumb.jpg")
	got, err := renderScene(context.Background(), in, out, config.Defaults())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	f, err := os.Open(got)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	if err != nil || format != "jpeg" || cfg.Width != 1280 || cfg.Height != 720 {
		t.Fatalf("output = %s %dx%d, %v", format, cfg.Width, cfg.Height, err)
	}
}

func TestRenderSceneIntoDirectory(t *testing.T) {
	in := writeScene(t)
	dir := t.TempDir()
	got, err := renderScene(context.Background(), in, dir, config.Defaults())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if filepath.Dir(got) != dir || !strings.HasPrefix(filepath.Base(got), "thumb_") || filepath.Ext(got) != ".png" {
		t.Fatalf("output path = %s", got)
	}
}

func TestRenderSceneRejectsUnknownExtension(t *testing.T) {
	in := writeScene(t)
	if _, err := renderScene(context.Background(), in, filepath.Join(t.TempDir(), "x.gif"), config.Defaults()); err == nil {
		t.Fatal("expected error for .gif")
	}
}
