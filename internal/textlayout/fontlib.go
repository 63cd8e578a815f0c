/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"

	applog "gothumb/internal/log"
)

// FontLibrary stores parsed OpenType fonts by family and style. Families that
// were never loaded resolve to the embedded Go fonts, so rendering always has
// a face to work with. Safe for concurrent use.
type FontLibrary struct {
	mu    sync.RWMutex
	fonts map[fontKey]*sfnt.Font
}

type fontKey struct {
	family string
	bold   bool
	italic bool
}

func NewFontLibrary() *FontLibrary { return &FontLibrary{fonts: make(map[fontKey]*sfnt.Font)} }

// LoadTTF loads a font file into the library under the given family/style.
func (fl *FontLibrary) LoadTTF(family string, bold, italic bool, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %s: %w", path, err)
	}
	return fl.Add(family, bold, italic, data)
}

// Add parses raw TTF/OTF bytes and registers them.
func (fl *FontLibrary) Add(family string, bold, italic bool, data []byte) error {
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse font %s: %w", family, err)
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.fonts == nil {
		fl.fonts = make(map[fontKey]*sfnt.Font)
	}
	fl.fonts[fontKey{family: normFamily(family), bold: bold, italic: italic}] = f
	return nil
}

// LoadDir registers every .ttf/.otf file in dir, naming it by the family and
// subfamily stored in the font. It returns the number of fonts loaded.
// Unreadable files are logged and skipped.
func (fl *FontLibrary) LoadDir(dir string) (int, error) {
	l := applog.WithOperation(applog.WithComponent("textlayout"), "load_fonts")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read fonts dir: %w", err)
	}
	n := 0
	for _, e := range ents {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".ttf" && ext != ".otf") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			l.Warn("font read failed", "file", e.Name(), "err", err)
			continue
		}
		f, err := opentype.Parse(data)
		if err != nil {
			l.Warn("font parse failed", "file", e.Name(), "err", err)
			continue
		}
		var buf sfnt.Buffer
		family, _ := f.Name(&buf, sfnt.NameIDFamily)
		if family == "" {
			family = strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		}
		sub, _ := f.Name(&buf, sfnt.NameIDSubfamily)
		sub = strings.ToLower(sub)
		key := fontKey{
			family: normFamily(family),
			bold:   strings.Contains(sub, "bold") || strings.Contains(sub, "black") || strings.Contains(sub, "heavy"),
			italic: strings.Contains(sub, "italic") || strings.Contains(sub, "oblique"),
		}
		fl.mu.Lock()
		if fl.fonts == nil {
			fl.fonts = make(map[fontKey]*sfnt.Font)
		}
		fl.fonts[key] = f
		fl.mu.Unlock()
		n++
	}
	l.Info("fonts loaded", "dir", dir, "count", n)
	return n, nil
}

// Families lists the loaded family names (lower-cased).
func (fl *FontLibrary) Families() []string {
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	seen := map[string]bool{}
	var out []string
	for k := range fl.fonts {
		if !seen[k.family] {
			seen[k.family] = true
			out = append(out, k.family)
		}
	}
	return out
}

// Resolve returns the best font for spec: exact style, then any style of the
// family, then an embedded Go font chosen by family character and style.
func (fl *FontLibrary) Resolve(spec FontSpec) *sfnt.Font {
	fam := normFamily(spec.Family)
	if fl != nil {
		fl.mu.RLock()
		f, ok := fl.fonts[fontKey{family: fam, bold: spec.Bold, italic: spec.Italic}]
		if !ok {
			for k, cand := range fl.fonts {
				if k.family == fam {
					f, ok = cand, true
					break
				}
			}
		}
		fl.mu.RUnlock()
		if ok {
			return f
		}
	}
	return fallback(fam, spec.Bold, spec.Italic)
}

func normFamily(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(strings.Trim(s, `"' `))
}

// Display faces like Impact and Arial Black have no embedded equivalent; they
// fall back to Go Bold so headlines keep their weight.
var heavyFamilies = map[string]bool{"impact": true, "arial black": true, "anton": true, "bebas neue": true}
var monoFamilies = map[string]bool{"courier new": true, "courier": true, "monospace": true}

var (
	goOnce  sync.Once
	goFonts map[string]*sfnt.Font
)

func fallback(family string, bold, italic bool) *sfnt.Font {
	goOnce.Do(func() {
		goFonts = make(map[string]*sfnt.Font)
		for name, data := range map[string][]byte{
			"regular":    goregular.TTF,
			"bold":       gobold.TTF,
			"italic":     goitalic.TTF,
			"bolditalic": gobolditalic.TTF,
			"mono":       gomono.TTF,
			"monobold":   gomonobold.TTF,
		} {
			f, err := opentype.Parse(data)
			if err != nil {
				panic(fmt.Sprintf("textlayout: embedded font %s: %v", name, err))
			}
			goFonts[name] = f
		}
	})
	if heavyFamilies[family] {
		bold = true
	}
	switch {
	case monoFamilies[family] && bold:
		return goFonts["monobold"]
	case monoFamilies[family]:
		return goFonts["mono"]
	case bold && italic:
		return goFonts["bolditalic"]
	case bold:
		return goFonts["bold"]
	case italic:
		return goFonts["italic"]
	default:
		return goFonts["regular"]
	}
}
