//go:build fyne && cgo

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
	"fmt"
	"image/color"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"gothumb/internal/propsync"
	"gothumb/internal/scene"
	"gothumb/internal/vector"
)

var shadowLabels = []string{"Nenhuma", "Sombra", "Brilho"}

func shadowModeFor(label string) scene.ShadowMode {
	switch label {
	case "Sombra":
		return scene.ShadowDrop
	case "Brilho":
		return scene.ShadowGlow
	}
	return scene.ShadowNone
}

func shadowLabelFor(m scene.ShadowMode) string {
	switch m {
	case scene.ShadowDrop:
		return "Sombra"
	case scene.ShadowGlow:
		return "Brilho"
	}
	return "Nenhuma"
}

// propertyPanel mirrors a propsync.Binder. Widgets write through the binder;
// state changes arrive via Panel().OnChange and are applied with syncing set
// so the widget callbacks do not echo them back.
type propertyPanel struct {
	w       fyne.Window
	b       *propsync.Binder
	onError func(error)
	syncing bool

	root        *fyne.Container
	empty       *widget.Label
	header      *widget.Label
	descriptor  *widget.Label
	text        *widget.Entry
	family      *widget.Select
	size        *widget.Select
	bold        *widget.Check
	italic      *widget.Check
	underline   *widget.Check
	fill        *widget.Button
	stroke      *widget.Button
	strokeWidth *widget.Slider
	spacing     *widget.Slider
	lineHeight  *widget.Slider
	shadow      *widget.RadioGroup
	shadowColor *widget.Button
	shadowBlur  *widget.Slider
	shadowX     *widget.Slider
	shadowY     *widget.Slider
	del         *widget.Button

	textBox   *fyne.Container
	shadowBox *fyne.Container
}

func newPropertyPanel(w fyne.Window, b *propsync.Binder, onError func(error)) *propertyPanel {
	opts := propsync.DefaultOptions()
	p := &propertyPanel{w: w, b: b, onError: onError}
	p.empty = widget.NewLabel("Selecione um elemento para editar.")
	p.empty.Wrapping = fyne.TextWrapWord
	p.header = widget.NewLabelWithStyle("", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	p.descriptor = widget.NewLabel("")
	p.descriptor.Wrapping = fyne.TextWrapWord

	p.text = widget.NewMultiLineEntry()
	p.text.SetMinRowsVisible(2)
	p.text.OnChanged = func(s string) { p.apply(func() error { return b.SetText(s) }) }

	p.family = widget.NewSelect(opts.Fonts, func(s string) { p.apply(func() error { return b.SetFontFamily(s) }) })
	sizes := make([]string, len(opts.Sizes))
	for i, s := range opts.Sizes {
		sizes[i] = strconv.FormatFloat(s, 'f', -1, 64)
	}
	p.size = widget.NewSelect(sizes, func(s string) {
		px, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return
		}
		p.apply(func() error { return b.SetFontSize(px) })
	})

	p.bold = widget.NewCheck("Negrito", func(bool) { p.apply(b.ToggleBold) })
	p.italic = widget.NewCheck("Itálico", func(bool) { p.apply(b.ToggleItalic) })
	p.underline = widget.NewCheck("Sublinhado", func(bool) { p.apply(b.ToggleUnderline) })

	p.fill = widget.NewButton("Cor do texto", func() {
		p.pickColor("Cor do texto", b.State().Fill, b.SetFill)
	})
	p.stroke = widget.NewButton("Cor do contorno", func() {
		p.pickColor("Cor do contorno", b.State().Stroke, b.SetStroke)
	})
	p.strokeWidth = p.slider(0, opts.MaxStrokeWidth, 1, b.SetStrokeWidth)
	p.spacing = p.slider(-5, 50, 1, b.SetLetterSpacing)
	p.lineHeight = p.slider(0.8, 2, 0.05, b.SetLineHeight)

	p.shadow = widget.NewRadioGroup(shadowLabels, func(s string) {
		if s == "" {
			return
		}
		p.apply(func() error { return b.SetShadowMode(shadowModeFor(s)) })
	})
	p.shadow.Horizontal = true
	p.shadowColor = widget.NewButton("Cor do efeito", func() {
		p.pickColor("Cor do efeito", b.State().Shadow.Color, b.SetShadowColor)
	})
	p.shadowBlur = p.slider(0, 50, 1, b.SetShadowBlur)
	p.shadowX = p.slider(-30, 30, 1, func(v float64) error { return b.SetShadowOffset(v, b.State().Shadow.OffsetY) })
	p.shadowY = p.slider(-30, 30, 1, func(v float64) error { return b.SetShadowOffset(b.State().Shadow.OffsetX, v) })

	p.del = widget.NewButton("Excluir", func() { b.Delete() })
	p.del.Importance = widget.DangerImportance

	p.shadowBox = container.NewVBox(
		widget.NewLabel("Cor"), p.shadowColor,
		widget.NewLabel("Desfoque"), p.shadowBlur,
		widget.NewLabel("Deslocamento X"), p.shadowX,
		widget.NewLabel("Deslocamento Y"), p.shadowY,
	)
	p.textBox = container.NewVBox(
		widget.NewLabel("Texto"), p.text,
		widget.NewLabel("Fonte"), p.family,
		widget.NewLabel("Tamanho"), p.size,
		container.NewHBox(p.bold, p.italic, p.underline),
		p.fill, p.stroke,
		widget.NewLabel("Espessura do contorno"), p.strokeWidth,
		widget.NewLabel("Espaçamento"), p.spacing,
		widget.NewLabel("Altura da linha"), p.lineHeight,
		widget.NewSeparator(),
		widget.NewLabel("Efeito"), p.shadow, p.shadowBox,
	)
	p.root = container.NewVBox(p.empty, p.header, p.descriptor, p.textBox, p.del)
	b.Panel().OnChange(func(st propsync.State) { fyne.Do(func() { p.show(st) }) })
	p.show(b.State())
	return p
}

// Object is the panel's canvas object.
func (p *propertyPanel) Object() fyne.CanvasObject { return container.NewVScroll(p.root) }

func (p *propertyPanel) slider(min, max, step float64, set func(float64) error) *widget.Slider {
	s := widget.NewSlider(min, max)
	s.Step = step
	s.OnChanged = func(v float64) { p.apply(func() error { return set(v) }) }
	return s
}

func (p *propertyPanel) apply(fn func() error) {
	if p.syncing {
		return
	}
	if err := fn(); err != nil && p.onError != nil {
		p.onError(err)
	}
}

func (p *propertyPanel) pickColor(title, cur string, set func(string) error) {
	d := dialog.NewColorPicker(title, "", func(c color.Color) {
		r, g, bl, _ := c.RGBA()
		hex := vector.Color{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(bl >> 8), A: 255}.Hex()
		p.apply(func() error { return set(hex) })
	}, p.w)
	d.Advanced = true
	if c, err := vector.ParseHex(cur); err == nil {
		d.SetColor(c.NRGBA())
	}
	d.Show()
}

// show renders st; only the controls st lists are visible.
func (p *propertyPanel) show(st propsync.State) {
	p.syncing = true
	defer func() { p.syncing = false }()

	setVisible := func(o fyne.CanvasObject, v bool) {
		if v {
			o.Show()
		} else {
			o.Hide()
		}
	}
	setVisible(p.empty, !st.Visible)
	setVisible(p.header, st.Visible)
	setVisible(p.descriptor, st.Shows(propsync.CtrlDescriptor))
	setVisible(p.textBox, st.Kind == scene.KindText && st.Visible)
	setVisible(p.del, st.Shows(propsync.CtrlDelete))
	if !st.Visible {
		p.root.Refresh()
		return
	}
	if st.Kind == scene.KindText {
		p.header.SetText("Texto")
	} else {
		p.header.SetText("Imagem")
		p.descriptor.SetText(st.Descriptor)
		p.root.Refresh()
		return
	}

	if p.text.Text != st.Text {
		p.text.SetText(st.Text)
	}
	p.family.SetSelected(st.FontFamily)
	p.size.SetSelected(strconv.FormatFloat(st.FontSize, 'f', -1, 64))
	p.bold.SetChecked(st.Bold)
	p.italic.SetChecked(st.Italic)
	p.underline.SetChecked(st.Underline)
	p.fill.SetText(fmt.Sprintf("Cor do texto %s", st.Fill))
	p.stroke.SetText(fmt.Sprintf("Cor do contorno %s", st.Stroke))
	p.strokeWidth.SetValue(st.StrokeWidth)
	p.spacing.SetValue(st.LetterSpacing)
	p.lineHeight.SetValue(st.LineHeight)
	p.shadow.SetSelected(shadowLabelFor(st.Shadow.Mode))
	setVisible(p.shadowBox, st.Shadow.Mode != scene.ShadowNone)
	p.shadowColor.SetText(fmt.Sprintf("Cor do efeito %s", st.Shadow.Color))
	p.shadowBlur.SetValue(st.Shadow.Blur)
	p.shadowX.SetValue(st.Shadow.OffsetX)
	p.shadowY.SetValue(st.Shadow.OffsetY)
	p.root.Refresh()
}
