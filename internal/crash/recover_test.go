/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package crash

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gothumb/internal/scene"
)

type docSource struct{ doc *scene.Document }

func (s docSource) Document() *scene.Document { return s.doc.Clone() }

type stuckSource struct{ mu *sync.Mutex }

func (s stuckSource) Document() *scene.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return scene.NewDocument()
}

func quietStderr(t *testing.T) {
	t.Helper()
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	t.Cleanup(func() {
		_ = w.Close()
		os.Stderr = old
		_, _ = io.Copy(io.Discard, r)
	})
}

func interceptExit(t *testing.T) *int {
	t.Helper()
	code := -1
	old := exitFn
	exitFn = func(c int) { code = c }
	t.Cleanup(func() { exitFn = old })
	return &code
}

func TestWriteReportDefaultsToTemp(t *testing.T) {
	path, err := writeReport("", "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	defer os.Remove(path)
	if filepath.Dir(path) != filepath.Clean(os.TempDir()) {
		t.Fatalf("report at %s", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "gothumb crash report") || !strings.Contains(s, "Panic: boom") {
		t.Fatalf("report content: %s", s)
	}
}

func TestRecoverSavesReportAndDocument(t *testing.T) {
	quietStderr(t)
	code := interceptExit(t)

	doc := scene.NewDocument()
	txt := scene.NewTextObject("SALVO")
	if err := doc.Append(txt); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	func() {
		defer Recover(dir, docSource{doc})
		panic("boom")
	}()

	if *code != 2 {
		t.Fatalf("expected exit code 2, got %d", *code)
	}
	var report, saved string
	files, _ := os.ReadDir(dir)
	for _, f := range files {
		switch {
		case strings.HasSuffix(f.Name(), ".scene.json"):
			saved = filepath.Join(dir, f.Name())
		case strings.HasPrefix(f.Name(), "crash-") && strings.HasSuffix(f.Name(), ".log"):
			report = filepath.Join(dir, f.Name())
		}
	}
	if report == "" || saved == "" {
		t.Fatalf("files = %v", files)
	}
	back, err := scene.LoadFile(saved)
	if err != nil {
		t.Fatalf("load saved document: %v", err)
	}
	if back.Len() != 1 || back.At(0).(*scene.TextObject).Text != "SALVO" {
		t.Fatalf("saved document = %v", back.Objects())
	}
}

func TestRecoverDoesNotHangOnHeldLock(t *testing.T) {
	quietStderr(t)
	code := interceptExit(t)
	old := snapshotWait
	snapshotWait = 20 * time.Millisecond
	defer func() { snapshotWait = old }()

	mu := &sync.Mutex{}
	mu.Lock()
	defer mu.Unlock()

	dir := t.TempDir()
	start := time.Now()
	func() {
		defer Recover(dir, stuckSource{mu})
		panic("locked")
	}()
	if *code != 2 || time.Since(start) > 2*time.Second {
		t.Fatalf("recover took %s, code %d", time.Since(start), *code)
	}
	files, _ := os.ReadDir(dir)
	if len(files) != 1 {
		t.Fatalf("expected only the report, got %v", files)
	}
}
