/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package engine

import (
	"context"
	"image"
	"log/slog"
	"time"

	"gothumb/internal/export"
	applog "gothumb/internal/log"
)

// Frame renders the document at the authoring resolution without selection
// chrome. The display scale is never consulted.
func (e *Engine) Frame() (*image.RGBA, error) {
	e.mu.Lock()
	if !e.ready {
		e.mu.Unlock()
		return nil, ErrNotReady
	}
	doc := e.doc.Clone()
	e.mu.Unlock()
	return e.renderer.Render(doc), nil
}

// Export renders a fresh frame and encodes it. The snapshot is taken under
// the lock, so all mutations made before the call are in the output; the
// encoding runs outside it. An error never comes with bytes.
func (e *Engine) Export(ctx context.Context, opts export.Options) ([]byte, error) {
	lg := applog.WithOperation(e.log, "export")
	format := string(opts.Format)
	if format == "" {
		format = string(export.PNG)
	}
	start := time.Now()
	img, err := e.Frame()
	if err != nil {
		return nil, &ExportError{Format: format, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &ExportError{Format: format, Err: err}
	}
	data, err := export.Bytes(img, opts)
	if err != nil {
		lg.Error("export failed", slog.String("format", format), slog.Any("err", err))
		return nil, &ExportError{Format: format, Err: err}
	}
	lg.Info("exported", slog.String("format", format), slog.Int("bytes", len(data)),
		slog.Duration("took", time.Since(start)))
	return data, nil
}
