/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package wizard

import (
	"context"
	"errors"
	"testing"

	"gothumb/internal/backend"
	"gothumb/internal/engine"
	"gothumb/internal/scene"
)

type fakeService struct {
	res      *backend.GenerateResult
	err      error
	hlErr    error
	calls    int
	lastReq  backend.GenerateRequest
	lastCat  string
	lastTopc string
}

func (s *fakeService) Categories(context.Context) ([]backend.Category, error) {
	return []backend.Category{{ID: "dinheiro", Name: "Dinheiro"}}, nil
}

func (s *fakeService) Generate(_ context.Context, in backend.GenerateRequest) (*backend.GenerateResult, error) {
	s.calls++
	s.lastReq = in
	return s.res, s.err
}

func (s *fakeService) Headlines(_ context.Context, topic, category string) ([]string, error) {
	s.lastTopc, s.lastCat = topic, category
	if s.hlErr != nil {
		return nil, s.hlErr
	}
	return []string{"UM", "DOIS"}, nil
}

func f64(v float64) *float64 { return &v }
func str(s string) *string   { return &s }

func person() *backend.File { return &backend.File{Name: "me.png", Data: []byte{1}} }

func TestValidation(t *testing.T) {
	cases := []struct {
		name  string
		in    GenerateInput
		field string
	}{
		{"no photo", GenerateInput{Prompt: "x"}, "person"},
		{"empty photo", GenerateInput{Prompt: "x", Person: &backend.File{}}, "person"},
		{"no prompt", GenerateInput{Prompt: "  ", Person: person()}, "prompt"},
		{"similarity", GenerateInput{Prompt: "x", Person: person(), Similarity: 101}, "similarity"},
	}
	for _, c := range cases {
		var ve *ValidationError
		if err := c.in.Validate(); !errors.As(err, &ve) || ve.Field != c.field {
			t.Fatalf("%s: got %v", c.name, err)
		}
	}
	if err := (GenerateInput{Prompt: "x", Person: person(), Similarity: 100}).Validate(); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
}

func TestGenerateSeedsEditor(t *testing.T) {
	svc := &fakeService{res: &backend.GenerateResult{
		URL: "blank:#336699@2000x1000",
		Elements: []backend.Element{
			{Text: "OLÁ", X: f64(60), Y: f64(100), FontSize: f64(80)},
			{Text: "R$ 10K", Stroke: str("#000000"), StrokeWidth: f64(6)},
		},
	}}
	host := &engine.RasterHost{}
	f := New(Options{Service: svc, Host: host})
	ctx := context.Background()

	if err := f.Generate(ctx, GenerateInput{Prompt: "x", Person: person()}); !errors.Is(err, ErrWrongStep) {
		t.Fatalf("generate before category: %v", err)
	}
	if err := f.SelectCategory(backend.Category{ID: "polemica"}); err != nil {
		t.Fatal(err)
	}
	if err := f.Generate(ctx, GenerateInput{Prompt: "x"}); err == nil || svc.calls != 0 {
		t.Fatalf("invalid input reached the service")
	}
	if err := f.Generate(ctx, GenerateInput{Prompt: " thumb ", Person: person(), Similarity: 40}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if svc.lastReq.Category != "polemica" || svc.lastReq.Prompt != "thumb" || svc.lastReq.Similarity != 40 {
		t.Fatalf("request = %+v", svc.lastReq)
	}
	if f.Step() != StepEdit || f.Engine() == nil || f.Binder() == nil {
		t.Fatalf("not in edit mode")
	}
	objs := f.Engine().Objects()
	if len(objs) != 3 || !objs[0].Meta().Background {
		t.Fatalf("objects = %d", len(objs))
	}
	second := objs[2].(*scene.TextObject)
	if second.Stroke != "#000000" || second.StrokeWidth != 6 || second.X != 60 || second.FontSize != 80 {
		t.Fatalf("second element = %+v", second)
	}

	if ok, err := f.ApplyHeadline("NOVO"); !ok || err != nil {
		t.Fatalf("apply headline: %v", err)
	}
	if f.Engine().Objects()[1].(*scene.TextObject).Text != "NOVO" {
		t.Fatalf("headline not applied to the first text")
	}

	e := f.Engine()
	if f.Back() != StepGenerate || f.Engine() != nil {
		t.Fatalf("back from edit")
	}
	if e.Ready() || host.Live() != 0 {
		t.Fatalf("editor not disposed on leave")
	}
	if f.Back() != StepCategory {
		t.Fatalf("back from generate")
	}
	if _, ok := f.Category(); ok {
		t.Fatalf("category kept after going back")
	}
}

func TestGenerateFailureStaysOnStep(t *testing.T) {
	svc := &fakeService{err: errors.New("boom")}
	f := New(Options{Service: svc})
	_ = f.SelectCategory(backend.Category{ID: "erro"})
	if err := f.Generate(context.Background(), GenerateInput{Prompt: "x", Person: person()}); err == nil {
		t.Fatalf("expected error")
	}
	if f.Step() != StepGenerate {
		t.Fatalf("step = %s", f.Step())
	}

	svc.err = nil
	svc.res = &backend.GenerateResult{URL: "data:image/png;base64,AAAA"}
	err := f.Generate(context.Background(), GenerateInput{Prompt: "x", Person: person()})
	var ae *engine.AssetLoadError
	if !errors.As(err, &ae) || f.Step() != StepGenerate || f.Engine() != nil {
		t.Fatalf("bad background: %v, step %s", err, f.Step())
	}
}

func TestOpenBlank(t *testing.T) {
	f := New(Options{})
	if err := f.OpenBlank(context.Background()); !errors.Is(err, ErrWrongStep) {
		t.Fatalf("blank from category step: %v", err)
	}
	_ = f.SelectCategory(backend.Category{ID: "tutorial"})
	if err := f.OpenBlank(context.Background()); err != nil {
		t.Fatal(err)
	}
	objs := f.Engine().Objects()
	if len(objs) != 1 || !objs[0].Meta().Background {
		t.Fatalf("blank editor = %v", objs)
	}
	if ok, _ := f.ApplyHeadline("x"); ok {
		t.Fatalf("headline applied without text")
	}
	f.Close()
	if f.Engine() != nil {
		t.Fatalf("close kept the engine")
	}
}

func TestHeadlinesFallback(t *testing.T) {
	svc := &fakeService{}
	f := New(Options{Service: svc})
	if hs := f.Headlines(context.Background(), " "); hs != nil {
		t.Fatalf("empty topic = %v", hs)
	}
	if hs := f.Headlines(context.Background(), "vendas"); len(hs) != 2 || svc.lastCat != "dinheiro" {
		t.Fatalf("headlines = %v cat %q", hs, svc.lastCat)
	}
	_ = f.SelectCategory(backend.Category{ID: "autoridade"})
	svc.hlErr = errors.New("down")
	hs := f.Headlines(context.Background(), "vendas")
	if len(hs) != len(FallbackHeadlines) || hs[0] != FallbackHeadlines[0] || svc.lastCat != "autoridade" {
		t.Fatalf("fallback = %v", hs)
	}
}
