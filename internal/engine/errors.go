/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned by mutators before Initialize or after Dispose.
	// Callers treat it as a precondition, not a user-facing failure.
	ErrNotReady = errors.New("engine not ready")
	// ErrStale is returned by an async continuation whose engine was disposed
	// or re-initialized while it was running. The document was not touched.
	ErrStale = errors.New("engine changed during load")
)

// InitializationError means the rendering surface could not be created.
type InitializationError struct {
	Width, Height int
	Err           error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialize %dx%d surface: %v", e.Width, e.Height, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// AssetLoadError means an image could not be fetched or decoded. The document
// is unchanged.
type AssetLoadError struct {
	Source string
	Err    error
}

func (e *AssetLoadError) Error() string { return fmt.Sprintf("asset load: %v", e.Err) }

func (e *AssetLoadError) Unwrap() error { return e.Err }

// ExportError means no image was produced.
type ExportError struct {
	Format string
	Err    error
}

func (e *ExportError) Error() string { return fmt.Sprintf("export %s: %v", e.Format, e.Err) }

func (e *ExportError) Unwrap() error { return e.Err }

// PropertyError rejects a property edit: unknown key, key not applicable to
// the selected variant, or a value of the wrong type or range.
type PropertyError struct {
	Key    Prop
	Kind   string
	Reason string
}

func (e *PropertyError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("property %s on %s: %s", e.Key, e.Kind, e.Reason)
	}
	return fmt.Sprintf("property %s: %s", e.Key, e.Reason)
}
