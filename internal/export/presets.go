/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"path/filepath"
	"time"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// BatchOptions controls exporting one frame into several formats.
//
// Path semantics:
//   - OutDir must be set; each format goes into its own subfolder (png/, jpg/, pdf/).
//   - File names follow FileName, so all outputs of one batch share a timestamp.
type BatchOptions struct {
	Preset  PresetName
	Formats []string // allowed: png, jpeg, jpg, pdf; empty means preset defaults
	Quality float64  // JPEG only; zero means DefaultJPEGQuality
	OutDir  string
}

// BatchExport writes img once per requested format and returns the paths.
func BatchExport(img image.Image, opt BatchOptions, t time.Time) ([]string, error) {
	if opt.OutDir == "" {
		return nil, fmt.Errorf("batch export: out dir is empty")
	}
	names := opt.Formats
	if len(names) == 0 {
		names = presetDefaultFormats(opt.Preset)
	}
	seen := map[Format]bool{}
	var out []string
	for _, n := range names {
		f, err := ParseFormat(n)
		if err != nil {
			return out, err
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		p, err := WriteFile(img, Options{Format: f, Quality: opt.Quality}, filepath.Join(opt.OutDir, f.Ext()), t)
		if err != nil {
			return out, fmt.Errorf("%s: %w", f, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{"png", "jpeg"}
	case PresetPrint:
		return []string{"pdf", "png"}
	default:
		return []string{"png"}
	}
}
