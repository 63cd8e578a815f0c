//go:build !fyne

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"errors"
	"strings"
	"testing"
)

func TestRunWithoutDesktopTagNamesRebuild(t *testing.T) {
	err := Run(t.TempDir())
	if !errors.Is(err, ErrDesktopUnavailable) {
		t.Fatalf("Run() = %v, want ErrDesktopUnavailable", err)
	}
	msg := err.Error()
	for _, want := range []string{"UI not built", "-tags " + DesktopTag, "./cmd/gothumb ui", "gothumb serve"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message %q lacks %q", msg, want)
		}
	}
}

func TestUnavailablePrefixesEnvironment(t *testing.T) {
	err := unavailable("needs cgo", "CGO_ENABLED=1")
	if !strings.Contains(err.Error(), "CGO_ENABLED=1 go run -tags fyne ./cmd/gothumb") {
		t.Fatalf("message %q lacks the cgo rebuild command", err)
	}
}
