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
	"fmt"
)

// DesktopTag is the build tag that compiles the fyne editor into gothumb.
const DesktopTag = "fyne"

// ErrDesktopUnavailable is returned by Run when this binary carries no
// desktop editor.
var ErrDesktopUnavailable = errors.New("UI not built")

// unavailable wraps ErrDesktopUnavailable with what is missing and how to
// rebuild gothumb so the editor is included.
func unavailable(missing, env string) error {
	cmd := fmt.Sprintf("go run -tags %s ./cmd/gothumb ui [libraryDir]", DesktopTag)
	if env != "" {
		cmd = env + " " + cmd
	}
	return fmt.Errorf("%w: %s; rebuild with %q or use the browser editor via \"gothumb serve\"", ErrDesktopUnavailable, missing, cmd)
}
