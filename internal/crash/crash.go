/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a report file plus a copy of the open document.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	applog "gothumb/internal/log"
	"gothumb/internal/scene"
	"gothumb/internal/telemetry"
	"gothumb/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// snapshotWait bounds how long Recover waits for the document. The panic may
// have left the editor lock held.
var snapshotWait = 500 * time.Millisecond

// DocumentSource is anything holding an open document, usually an *engine.Engine.
type DocumentSource interface {
	Document() *scene.Document
}

// Recover captures a panic, logs it with the stack, writes a report into dir
// (the temp dir when empty), saves the document next to it when src is set,
// and exits with code 2.
//
// Usage: defer crash.Recover(dir, eng)
func Recover(dir string, src DocumentSource) {
	if r := recover(); r != nil {
		l := applog.WithComponent("crash")
		stack := debug.Stack()
		l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

		reportPath, err := writeReport(dir, r, stack)
		if err != nil {
			l.Error("write crash report failed", slog.Any("err", err))
		}
		if src != nil {
			if path, err := saveDocument(reportPath, src); err != nil {
				l.Error("save crash document failed", slog.Any("err", err))
			} else {
				l.Info("crash document saved", slog.String("path", path))
			}
		}

		if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
			l.Error("failed to write crash message to stderr", slog.Any("err", err))
		}
		_, _ = fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
		exitFn(2)
	}
}

func writeReport(dir string, panicVal any, stack []byte) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	_ = os.MkdirAll(dir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", stamp))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "gothumb crash report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return path, err
	}
	// the report carries no document content
	telemetry.UploadCrash(buf.Bytes())
	return path, nil
}

// saveDocument writes the document as <report>.scene.json.
func saveDocument(reportPath string, src DocumentSource) (string, error) {
	ch := make(chan *scene.Document, 1)
	go func() { ch <- src.Document() }()
	var doc *scene.Document
	select {
	case doc = <-ch:
	case <-time.After(snapshotWait):
		return "", fmt.Errorf("document not available within %s", snapshotWait)
	}
	if doc == nil {
		return "", fmt.Errorf("no document")
	}
	path := strings.TrimSuffix(reportPath, ".log") + ".scene.json"
	if err := scene.SaveFile(path, doc); err != nil {
		return "", err
	}
	return path, nil
}
