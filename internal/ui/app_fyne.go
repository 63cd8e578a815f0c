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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/disintegration/imaging"

	"gothumb/internal/backend"
	"gothumb/internal/config"
	"gothumb/internal/crash"
	"gothumb/internal/engine"
	"gothumb/internal/export"
	applog "gothumb/internal/log"
	"gothumb/internal/scene"
	"gothumb/internal/storage"
	"gothumb/internal/telemetry"
	"gothumb/internal/textlayout"
	"gothumb/internal/undo"
	"gothumb/internal/version"
	"gothumb/internal/viewport"
	"gothumb/internal/wizard"
)

const libraryPreviewWidth = 320

// flowDocument lets crash recovery save whatever the editor holds.
type flowDocument struct{ f *wizard.Flow }

func (d flowDocument) Document() *scene.Document {
	if e := d.f.Engine(); e != nil {
		return e.Document()
	}
	return nil
}

// shell holds the window and the state shared by the three screens.
type shell struct {
	ctx    context.Context
	w      fyne.Window
	cfg    config.AppConfig
	flow   *wizard.Flow
	lib    *storage.Library
	layout viewport.Layout
	log    *slog.Logger
	status *widget.Label
	canvas *ThumbCanvas
}

// Run starts the desktop editor. libraryDir overrides the configured export directory.
func Run(libraryDir string) error {
	cfg, token, err := config.Load()
	if err != nil {
		applog.WithComponent("ui").Warn("config load failed, using defaults", slog.Any("err", err))
	}
	logOpts := applog.FromEnv()
	if cfg.Logging.Level != "" {
		logOpts.Level = cfg.Logging.Level
	}
	if cfg.Logging.File != "" {
		logOpts.File = cfg.Logging.File
	}
	applog.Init(logOpts)
	l := applog.WithComponent("ui")
	l.Info("starting UI", slog.String("version", version.String()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fonts := textlayout.NewFontLibrary()
	if dir := strings.TrimSpace(cfg.Editor.FontsDir); dir != "" {
		if n, err := fonts.LoadDir(dir); err != nil {
			l.Warn("font directory not loaded", slog.String("dir", dir), slog.Any("err", err))
		} else {
			l.Info("fonts loaded", slog.Int("count", n))
		}
	}

	if libraryDir == "" {
		libraryDir = cfg.Export.ExportDir()
	}
	lib, err := storage.OpenLibrary(ctx, libraryDir)
	if err != nil {
		l.Warn("export library unavailable", slog.String("dir", libraryDir), slog.Any("err", err))
	} else {
		defer lib.Close()
	}

	limit := cfg.Editor.HistoryLimit
	if limit <= 0 {
		limit = 100
	}
	flow := wizard.New(wizard.Options{
		Service: backend.FromConfig(cfg.Backend, token),
		Engine: engine.Options{
			Fonts:   fonts,
			History: undo.NewManager(undo.Config{MaxPerKey: limit, MinInterval: 400 * time.Millisecond}),
			Snap:    cfg.Editor.Snap,
		},
	})
	defer flow.Close()
	defer crash.Recover(filepath.Join(libraryDir, ".gothumb", "crash"), flowDocument{flow})

	tel := telemetry.Default()
	defer func() {
		fctx, fcancel := context.WithTimeout(context.Background(), 2*time.Second)
		tel.Flush(fctx)
		fcancel()
	}()
	tel.Event(telemetry.EventSessionStarted, map[string]any{"surface": "desktop"})

	fyneApp := app.NewWithID("gothumb")
	w := fyneApp.NewWindow("GoThumb")
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 1280)
	winH := prefs.IntWithFallback("window.height", 800)
	if winW < 900 {
		winW = 900
	}
	if winH < 600 {
		winH = 600
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))
	w.SetOnClosed(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
	})

	s := &shell{
		ctx:    ctx,
		w:      w,
		cfg:    cfg,
		flow:   flow,
		lib:    lib,
		layout: layoutFrom(cfg.Editor),
		log:    l,
		status: widget.NewLabel("Pronto"),
	}
	s.canvas = NewThumbCanvas(s.layout, func() float32 { return w.Canvas().Size().Width })
	s.bindKeys()
	s.showCategories()
	w.ShowAndRun()
	l.Info("UI closed")
	return nil
}

func layoutFrom(ed config.EditorConfig) viewport.Layout {
	l := viewport.DefaultLayout()
	if ed.SidePanel > 0 {
		l.SidePanel = float64(ed.SidePanel)
	}
	if ed.Padding > 0 {
		l.Padding = float64(ed.Padding)
	}
	if ed.MinWidth > 0 {
		l.MinWidth = float64(ed.MinWidth)
	}
	if ed.MaxWidth > 0 {
		l.MaxWidth = float64(ed.MaxWidth)
	}
	return l
}

func (s *shell) showError(err error) {
	s.log.Warn("action failed", slog.Any("err", err))
	dialog.ShowError(err, s.w)
}

// engineKeys maps Fyne key names to the editor's key names.
var engineKeys = map[fyne.KeyName]string{
	fyne.KeyDelete:    "Delete",
	fyne.KeyBackspace: "Backspace",
	fyne.KeyEscape:    "Escape",
	fyne.KeyLeft:      "ArrowLeft",
	fyne.KeyRight:     "ArrowRight",
	fyne.KeyUp:        "ArrowUp",
	fyne.KeyDown:      "ArrowDown",
}

// bindKeys routes unfocused key presses to the editor. Keys typed into an
// entry never get here, so deleting characters cannot delete the selection.
func (s *shell) bindKeys() {
	c := s.w.Canvas()
	c.SetOnTypedKey(func(ev *fyne.KeyEvent) {
		e := s.flow.Engine()
		name, ok := engineKeys[ev.Name]
		if e == nil || !ok {
			return
		}
		if e.KeyDown(name) {
			s.canvas.Redraw()
		}
	})
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { s.history(false) })
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyY, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { s.history(true) })
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault | fyne.KeyModifierShift}, func(fyne.Shortcut) { s.history(true) })
}

// showCategories is the first wizard screen.
func (s *shell) showCategories() {
	list := container.NewVBox(widget.NewProgressBarInfinite())
	blank := widget.NewButton("Começar em branco", func() {
		if err := s.flow.SelectCategory(backend.Category{ID: "blank", Name: "Em branco"}); err != nil {
			s.showError(err)
			return
		}
		s.openEditor(func(ctx context.Context) error { return s.flow.OpenBlank(ctx) })
	})
	s.w.SetContent(container.NewBorder(
		widget.NewLabelWithStyle("Escolha uma categoria", fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
		container.NewVBox(blank, s.status), nil, nil,
		container.NewVScroll(list),
	))

	go func() {
		cats, err := s.flow.Categories(s.ctx)
		fyne.Do(func() {
			list.RemoveAll()
			if err != nil {
				s.log.Warn("categories unavailable", slog.Any("err", err))
				list.Add(widget.NewLabel("Não foi possível carregar as categorias. Você ainda pode começar em branco."))
				return
			}
			for _, c := range cats {
				c := c
				list.Add(widget.NewButton(c.Name, func() {
					if err := s.flow.SelectCategory(c); err != nil {
						s.showError(err)
						return
					}
					s.showGenerate()
				}))
			}
		})
	}()
}

type upload struct {
	label string
	file  *backend.File
	btn   *widget.Button
}

func (s *shell) pickUpload(u *upload) {
	fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil {
			s.showError(err)
			return
		}
		if rc == nil {
			return
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			s.showError(err)
			return
		}
		u.file = &backend.File{Name: rc.URI().Name(), Data: data}
		u.btn.SetText(fmt.Sprintf("%s: %s", u.label, rc.URI().Name()))
	}, s.w)
	fd.SetFilter(fstorage.NewExtensionFileFilter([]string{".png", ".jpg", ".jpeg", ".webp"}))
	fd.Show()
}

// showGenerate collects the prompt and uploads for a generation request.
func (s *shell) showGenerate() {
	cat, _ := s.flow.Category()
	prompt := widget.NewMultiLineEntry()
	prompt.SetPlaceHolder("Descreva a thumbnail que você quer…")
	prompt.SetMinRowsVisible(4)

	person := &upload{label: "Sua foto"}
	ref := &upload{label: "Referência"}
	asset := &upload{label: "Elemento"}
	for _, u := range []*upload{person, ref, asset} {
		u := u
		u.btn = widget.NewButton(u.label, func() { s.pickUpload(u) })
	}
	similarity := widget.NewSlider(0, 100)
	similarity.Step = 5
	similarity.SetValue(50)

	progress := widget.NewProgressBarInfinite()
	progress.Hide()
	var generate *widget.Button
	generate = widget.NewButton("Gerar", func() {
		in := wizard.GenerateInput{
			Prompt:     prompt.Text,
			Person:     person.file,
			Reference:  ref.file,
			Asset:      asset.file,
			Similarity: int(similarity.Value),
		}
		if err := in.Validate(); err != nil {
			s.showError(err)
			return
		}
		generate.Disable()
		progress.Show()
		s.openEditor(func(ctx context.Context) error { return s.flow.Generate(ctx, in) })
	})
	generate.Importance = widget.HighImportance
	back := widget.NewButton("Voltar", func() {
		s.flow.Back()
		s.showCategories()
	})
	blank := widget.NewButton("Começar em branco", func() {
		s.openEditor(func(ctx context.Context) error { return s.flow.OpenBlank(ctx) })
	})

	form := container.NewVBox(
		widget.NewLabelWithStyle(cat.Name, fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		prompt,
		person.btn, ref.btn, asset.btn,
		widget.NewLabel("Semelhança com a referência"), similarity,
		progress,
	)
	s.w.SetContent(container.NewBorder(nil, container.NewVBox(container.NewHBox(back, blank, generate), s.status), nil, nil, container.NewVScroll(form)))
}

// openEditor runs open off the UI goroutine and switches to the editor on success.
func (s *shell) openEditor(open func(ctx context.Context) error) {
	s.status.SetText("Preparando o editor…")
	go func() {
		err := open(s.ctx)
		fyne.Do(func() {
			if err != nil {
				s.status.SetText("Falha ao abrir o editor")
				s.showError(err)
				if s.flow.Step() == wizard.StepGenerate {
					s.showGenerate()
				}
				return
			}
			s.status.SetText("Pronto")
			s.showEditor()
		})
	}()
}

// showEditor builds the editing screen around the flow's engine.
func (s *shell) showEditor() {
	e := s.flow.Engine()
	b := s.flow.Binder()
	if e == nil || b == nil {
		s.showCategories()
		return
	}
	s.canvas.Attach(e)
	cancel := e.Subscribe(engine.ObserverFuncs{
		Modified: func(engine.Snapshot) { fyne.Do(s.canvas.Redraw) },
		Selected: func(engine.Snapshot) { fyne.Do(s.canvas.Redraw) },
		Cleared:  func() { fyne.Do(s.canvas.Redraw) },
	})
	props := newPropertyPanel(s.w, b, s.showError)

	toolbar := widget.NewToolbar(
		widget.NewToolbarAction(theme.NavigateBackIcon(), func() {
			cancel()
			s.canvas.Attach(nil)
			s.flow.Back()
			s.showGenerate()
		}),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ContentUndoIcon(), func() { s.history(false) }),
		widget.NewToolbarAction(theme.ContentRedoIcon(), func() { s.history(true) }),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.MoveUpIcon(), func() { s.stack(e.BringForward) }),
		widget.NewToolbarAction(theme.MoveDownIcon(), func() { s.stack(e.SendBackward) }),
		widget.NewToolbarAction(theme.UploadIcon(), func() { s.stack(e.BringToFront) }),
		widget.NewToolbarAction(theme.DownloadIcon(), func() { s.stack(e.SendToBack) }),
		widget.NewToolbarSpacer(),
		widget.NewToolbarAction(theme.FolderOpenIcon(), s.showLibrary),
	)

	addText := widget.NewButtonWithIcon("Adicionar texto", theme.ContentAddIcon(), func() {
		if _, err := e.AddText(engine.TextSeed{}); err != nil {
			s.showError(err)
		}
	})
	addImage := widget.NewButtonWithIcon("Adicionar imagem", theme.FileImageIcon(), func() { s.addImage(e) })

	topic := widget.NewEntry()
	topic.SetPlaceHolder("Assunto do vídeo")
	suggestions := container.NewVBox()
	suggest := widget.NewButton("Sugerir títulos", func() {
		t := topic.Text
		suggestions.RemoveAll()
		suggestions.Add(widget.NewProgressBarInfinite())
		go func() {
			hs := s.flow.Headlines(s.ctx, t)
			fyne.Do(func() {
				suggestions.RemoveAll()
				for _, h := range hs {
					h := h
					suggestions.Add(widget.NewButton(h, func() {
						ok, err := s.flow.ApplyHeadline(h)
						switch {
						case err != nil:
							s.showError(err)
						case !ok:
							s.status.SetText("Nenhum texto para receber o título")
						}
					}))
				}
			})
		}()
	})

	format := widget.NewSelect([]string{"png", "jpeg", "pdf"}, nil)
	format.SetSelected(strings.ToLower(orDefault(s.cfg.Export.Format, "png")))
	exportBtn := widget.NewButtonWithIcon("Exportar", theme.DocumentSaveIcon(), func() { s.export(e, format.Selected) })
	exportBtn.Importance = widget.HighImportance
	batchBtn := widget.NewButton("Pacote web (PNG + JPEG)", func() { s.exportBatch(e) })

	side := container.NewVBox(
		addText, addImage,
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Títulos", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		topic, suggest, suggestions,
		widget.NewSeparator(),
		format, exportBtn, batchBtn,
	)
	sideScroll := container.NewVScroll(side)
	sideScroll.SetMinSize(fyne.NewSize(float32(s.layout.SidePanel)*0.8, 0))
	propsObj := props.Object()

	center := container.NewBorder(nil, nil, nil, nil, s.canvas)
	split := container.NewHSplit(center, propsObj)
	split.Offset = 0.72
	s.w.SetContent(container.NewBorder(toolbar, s.status, sideScroll, nil, split))
	s.canvas.Redraw()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func (s *shell) history(redo bool) {
	e := s.flow.Engine()
	if e == nil {
		return
	}
	var done bool
	var err error
	if redo {
		done, err = e.Redo()
	} else {
		done, err = e.Undo()
	}
	if err != nil {
		s.showError(err)
		return
	}
	if done {
		s.canvas.Redraw()
	}
}

func (s *shell) stack(op func() (bool, error)) {
	if _, err := op(); err != nil {
		s.showError(err)
	}
}

func (s *shell) addImage(e *engine.Engine) {
	fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil {
			s.showError(err)
			return
		}
		if rc == nil {
			return
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			s.showError(err)
			return
		}
		if _, err := e.AddImageData("upload:"+rc.URI().Name(), data); err != nil {
			s.showError(err)
		}
	}, s.w)
	fd.SetFilter(fstorage.NewExtensionFileFilter([]string{".png", ".jpg", ".jpeg", ".webp", ".gif", ".bmp"}))
	fd.Show()
}

// export encodes the document and stores it in the library. Without a
// library the file goes to the export directory.
func (s *shell) export(e *engine.Engine, name string) {
	f, err := export.ParseFormat(name)
	if err != nil {
		s.showError(err)
		return
	}
	data, err := e.Export(s.ctx, export.Options{Format: f, Quality: s.cfg.Export.JPEGQuality})
	if err != nil {
		s.showError(err)
		return
	}
	now := time.Now()
	telemetry.Default().Exported(string(f), len(data))
	if s.lib == nil {
		frame, err := e.Frame()
		if err != nil {
			s.showError(err)
			return
		}
		path, err := export.WriteFile(frame, export.Options{Format: f, Quality: s.cfg.Export.JPEGQuality}, s.cfg.Export.ExportDir(), now)
		if err != nil {
			s.showError(err)
			return
		}
		s.status.SetText("Exportado: " + path)
		return
	}
	req := storage.SaveRequest{Data: data, Format: f, At: now}
	if doc, err := json.Marshal(e.Document()); err == nil {
		req.Scene = doc
	}
	if frame, err := e.Frame(); err == nil {
		req.Preview, _ = export.Bytes(imaging.Resize(frame, libraryPreviewWidth, 0, imaging.Lanczos), export.Options{Format: export.PNG})
	}
	entry, err := s.lib.Save(s.ctx, req)
	if err != nil {
		s.showError(err)
		return
	}
	s.status.SetText("Exportado: " + s.lib.Path(entry))
}

func (s *shell) exportBatch(e *engine.Engine) {
	frame, err := e.Frame()
	if err != nil {
		s.showError(err)
		return
	}
	paths, err := export.BatchExport(frame, export.BatchOptions{
		Preset:  export.PresetWeb,
		Quality: s.cfg.Export.JPEGQuality,
		OutDir:  s.cfg.Export.ExportDir(),
	}, time.Now())
	if err != nil {
		s.showError(err)
		return
	}
	s.status.SetText(fmt.Sprintf("%d arquivos exportados em %s", len(paths), s.cfg.Export.ExportDir()))
}

// showLibrary lists saved exports with reopen and delete actions.
func (s *shell) showLibrary() {
	if s.lib == nil {
		dialog.ShowInformation("Biblioteca", "A biblioteca de exportações não está disponível.", s.w)
		return
	}
	entries, err := s.lib.List(s.ctx, 100)
	if err != nil {
		s.showError(err)
		return
	}
	var d dialog.Dialog
	list := widget.NewList(
		func() int { return len(entries) },
		func() fyne.CanvasObject {
			return container.NewBorder(nil, nil, nil,
				container.NewHBox(widget.NewButtonWithIcon("", theme.DocumentIcon(), nil), widget.NewButtonWithIcon("", theme.DeleteIcon(), nil)),
				widget.NewLabel(""))
		},
		func(i widget.ListItemID, o fyne.CanvasObject) {
			en := entries[i]
			row := o.(*fyne.Container)
			row.Objects[0].(*widget.Label).SetText(fmt.Sprintf("%s  %dx%d  %s", en.File, en.Width, en.Height, en.CreatedAt.Local().Format("02/01 15:04")))
			btns := row.Objects[1].(*fyne.Container)
			btns.Objects[0].(*widget.Button).OnTapped = func() {
				d.Hide()
				s.reopen(en)
			}
			btns.Objects[1].(*widget.Button).OnTapped = func() {
				if err := s.lib.Delete(s.ctx, en.ID); err != nil {
					s.showError(err)
					return
				}
				d.Hide()
				s.showLibrary()
			}
		},
	)
	d = dialog.NewCustom("Biblioteca", "Fechar", container.NewGridWrap(fyne.NewSize(640, 400), list), s.w)
	d.Show()
}

// reopen loads the scene stored with an export into the open editor.
func (s *shell) reopen(en storage.Entry) {
	raw, err := s.lib.Scene(s.ctx, en.ID)
	if err != nil {
		s.showError(err)
		return
	}
	if raw == nil {
		dialog.ShowInformation("Biblioteca", "Esta exportação não guardou a cena.", s.w)
		return
	}
	doc, err := scene.Decode(raw)
	if err != nil {
		s.showError(err)
		return
	}
	if s.flow.Step() != wizard.StepEdit {
		if s.flow.Step() == wizard.StepCategory {
			_ = s.flow.SelectCategory(backend.Category{ID: "library", Name: "Biblioteca"})
		}
		if err := s.flow.OpenBlank(s.ctx); err != nil {
			s.showError(err)
			return
		}
		s.showEditor()
	}
	if err := s.flow.Engine().Load(s.ctx, doc); err != nil {
		s.showError(err)
		return
	}
	s.status.SetText("Aberto: " + en.File)
}
