/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package wizard drives the category → generate → edit flow and hands
// generation results to a fresh editor engine.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"gothumb/internal/backend"
	"gothumb/internal/engine"
	applog "gothumb/internal/log"
	"gothumb/internal/propsync"
	"gothumb/internal/scene"
	"gothumb/internal/telemetry"
)

// Step is a wizard screen.
type Step int

const (
	StepCategory Step = iota
	StepGenerate
	StepEdit
)

func (s Step) String() string {
	switch s {
	case StepCategory:
		return "category"
	case StepGenerate:
		return "generate"
	case StepEdit:
		return "edit"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// ValidationError reports a missing or invalid input before a generation request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

// ErrWrongStep is returned when an action is not available on the current step.
var ErrWrongStep = errors.New("action not available on this step")

// FallbackHeadlines are offered when the suggestion service fails.
var FallbackHeadlines = []string{"RESULTADO REAL", "MÉTODO VALIDADO", "ISSO FUNCIONA"}

// Service is the generation backend.
type Service interface {
	Categories(ctx context.Context) ([]backend.Category, error)
	Generate(ctx context.Context, in backend.GenerateRequest) (*backend.GenerateResult, error)
	Headlines(ctx context.Context, topic, category string) ([]string, error)
}

// GenerateInput is what the generate screen collects.
type GenerateInput struct {
	Prompt    string
	Person    *backend.File
	Reference *backend.File
	Asset     *backend.File
	// Similarity to the reference, 0..100.
	Similarity int
}

// MaxUploads bounds the images sent with one generation request.
const MaxUploads = 3

// Validate checks the required inputs.
func (in GenerateInput) Validate() error {
	if in.Person == nil || len(in.Person.Data) == 0 {
		return &ValidationError{Field: "person", Message: "Envie a sua foto para continuar."}
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return &ValidationError{Field: "prompt", Message: "Descreva como quer a sua thumbnail."}
	}
	if in.Similarity < 0 || in.Similarity > 100 {
		return &ValidationError{Field: "similarity", Message: "must be within 0..100"}
	}
	n := 0
	for _, f := range []*backend.File{in.Person, in.Reference, in.Asset} {
		if f != nil {
			n++
		}
	}
	if n > MaxUploads {
		return &ValidationError{Field: "uploads", Message: fmt.Sprintf("at most %d images", MaxUploads)}
	}
	return nil
}

// Options configure a Flow.
type Options struct {
	Service Service
	// Host provides the editor surface; nil uses an in-memory host.
	Host   engine.SurfaceHost
	Engine engine.Options
	Logger *slog.Logger
}

// Flow is one user's pass through the wizard. It is safe for concurrent use.
type Flow struct {
	svc  Service
	host engine.SurfaceHost
	opts engine.Options
	log  *slog.Logger

	mu       sync.Mutex
	step     Step
	category *backend.Category
	eng      *engine.Engine
	binder   *propsync.Binder
	unbind   func()
}

// New starts a flow on the category step.
func New(opts Options) *Flow {
	if opts.Host == nil {
		opts.Host = &engine.RasterHost{}
	}
	if opts.Logger == nil {
		opts.Logger = applog.WithComponent("wizard")
	}
	return &Flow{svc: opts.Service, host: opts.Host, opts: opts.Engine, log: opts.Logger}
}

func (f *Flow) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// Category returns the selected category, if any.
func (f *Flow) Category() (backend.Category, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.category == nil {
		return backend.Category{}, false
	}
	return *f.category, true
}

// Engine returns the editor engine while on the edit step, else nil.
func (f *Flow) Engine() *engine.Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.eng
}

// Binder returns the property panel binding of the editor, else nil.
func (f *Flow) Binder() *propsync.Binder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.binder
}

// Categories lists the categories offered on the first step.
func (f *Flow) Categories(ctx context.Context) ([]backend.Category, error) {
	if f.svc == nil {
		return nil, errors.New("no generation service configured")
	}
	return f.svc.Categories(ctx)
}

// SelectCategory picks the category and moves to the generate step.
func (f *Flow) SelectCategory(c backend.Category) error {
	if strings.TrimSpace(c.ID) == "" {
		return &ValidationError{Field: "category", Message: "category required"}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != StepCategory {
		return fmt.Errorf("select category on %s: %w", f.step, ErrWrongStep)
	}
	f.category = &c
	f.step = StepGenerate
	return nil
}

// Generate validates the input, calls the service and opens the editor
// seeded with the result. On any failure the flow stays on the generate step.
func (f *Flow) Generate(ctx context.Context, in GenerateInput) error {
	lg := applog.WithOperation(f.log, "generate")
	f.mu.Lock()
	step, cat := f.step, f.category
	f.mu.Unlock()
	if step != StepGenerate {
		return fmt.Errorf("generate on %s: %w", step, ErrWrongStep)
	}
	if err := in.Validate(); err != nil {
		return err
	}
	if f.svc == nil {
		return errors.New("no generation service configured")
	}
	res, err := f.svc.Generate(ctx, backend.GenerateRequest{
		Category:   cat.ID,
		Prompt:     strings.TrimSpace(in.Prompt),
		Person:     in.Person,
		Reference:  in.Reference,
		Asset:      in.Asset,
		Similarity: in.Similarity,
	})
	if err != nil {
		lg.Warn("generation failed", slog.Any("err", err))
		return err
	}
	lg.Info("generation done", slog.Int("elements", len(res.Elements)))
	telemetry.Event(telemetry.EventGenerated, map[string]any{"category": cat.ID, "elements": len(res.Elements)})
	return f.enterEdit(ctx, ToGenerationResult(res))
}

// OpenBlank opens the editor with a solid background and no text.
func (f *Flow) OpenBlank(ctx context.Context) error {
	if s := f.Step(); s != StepGenerate {
		return fmt.Errorf("open blank on %s: %w", s, ErrWrongStep)
	}
	return f.enterEdit(ctx, engine.GenerationResult{})
}

func (f *Flow) enterEdit(ctx context.Context, res engine.GenerationResult) error {
	e := engine.New(f.opts)
	if err := e.Initialize(f.host, scene.Width, scene.Height); err != nil {
		return err
	}
	b, unbind := propsync.Bind(e)
	if err := e.Seed(ctx, res); err != nil {
		unbind()
		e.Dispose()
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != StepGenerate {
		unbind()
		e.Dispose()
		return fmt.Errorf("enter editor on %s: %w", f.step, ErrWrongStep)
	}
	f.eng, f.binder, f.unbind = e, b, unbind
	f.step = StepEdit
	return nil
}

// Back returns to the previous step. Leaving the editor discards the document.
func (f *Flow) Back() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.step {
	case StepEdit:
		f.leaveEditLocked()
		f.step = StepGenerate
	case StepGenerate:
		f.category = nil
		f.step = StepCategory
	}
	return f.step
}

func (f *Flow) leaveEditLocked() {
	if f.unbind != nil {
		f.unbind()
	}
	if f.eng != nil {
		f.eng.Dispose()
	}
	f.eng, f.binder, f.unbind = nil, nil, nil
}

// Close disposes the editor if one is open.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaveEditLocked()
}

// Headlines asks for suggestions for topic. A failing service yields the
// builtin fallback list; an empty topic yields nothing.
func (f *Flow) Headlines(ctx context.Context, topic string) []string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil
	}
	cat := "dinheiro"
	if c, ok := f.Category(); ok {
		cat = c.ID
	}
	if f.svc == nil {
		return append([]string(nil), FallbackHeadlines...)
	}
	hs, err := f.svc.Headlines(ctx, topic, cat)
	if err != nil {
		f.log.Warn("headline suggestions failed", slog.Any("err", err))
		return append([]string(nil), FallbackHeadlines...)
	}
	return hs
}

// ApplyHeadline writes text into the first text object of the editor.
func (f *Flow) ApplyHeadline(text string) (bool, error) {
	e := f.Engine()
	if e == nil {
		return false, fmt.Errorf("apply headline: %w", ErrWrongStep)
	}
	return e.ApplyHeadline(text)
}

// ToGenerationResult converts the service answer into engine seeds.
func ToGenerationResult(res *backend.GenerateResult) engine.GenerationResult {
	out := engine.GenerationResult{BackgroundURL: res.URL}
	for _, el := range res.Elements {
		s := engine.TextSeed{
			Text:        el.Text,
			X:           el.X,
			Y:           el.Y,
			FontSize:    el.FontSize,
			FontFamily:  el.FontFamily,
			Fill:        el.Fill,
			StrokeWidth: el.StrokeWidth,
			FontWeight:  el.FontWeight,
		}
		if el.Stroke != nil {
			s.Stroke = *el.Stroke
		}
		out.Elements = append(out.Elements, s)
	}
	return out
}
