/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

// TextStyle is a named text preset used when the editor creates text.
// Stroke empty means no outline.
type TextStyle struct {
	Name        string
	Text        string
	X, Y        float64
	Family      string
	SizePx      float64
	Fill        string
	Stroke      string
	StrokeWidth float64
}

var builtinStyles = map[string]TextStyle{
	// Text seeded from a generation result.
	"Seed": {
		Name:   "Seed",
		X:      60,
		Y:      100,
		Family: "Impact",
		SizePx: 80,
		Fill:   "#FFFFFF",
	},
	// The sidebar "add text" button.
	"Sidebar": {
		Name:        "Sidebar",
		Text:        "Seu texto",
		X:           80,
		Y:           300,
		Family:      "Impact",
		SizePx:      90,
		Fill:        "#FFFFFF",
		Stroke:      "#000000",
		StrokeWidth: 4,
	},
}

// GetStyle returns a builtin style preset by name. The second return value is false if
// the style is not found.
func GetStyle(name string) (TextStyle, bool) { s, ok := builtinStyles[name]; return s, ok }

// ListStyles lists the names of the builtin styles in stable order.
func ListStyles() []string { return []string{"Seed", "Sidebar"} }

// FontFamilies are the families offered by the property panel.
func FontFamilies() []string {
	return []string{"Impact", "Arial Black", "Arial", "Georgia", "Courier New", "Verdana", "Trebuchet MS"}
}

// FontSizes are the sizes offered by the property panel, in px.
func FontSizes() []float64 {
	return []float64{24, 32, 40, 48, 56, 64, 72, 80, 90, 100, 110, 120, 130, 140, 150, 160, 180, 200}
}

// MaxStrokeWidth bounds the stroke width control.
const MaxStrokeWidth = 12
