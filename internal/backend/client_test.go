/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"gothumb/internal/config"
)

func TestCategoriesSendsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/categories" || r.Method != http.MethodGet {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization = %q", got)
		}
		_, _ = io.WriteString(w, `[{"id":"dinheiro","name":"Dinheiro","icon":"$","color":"#22c55e"}]`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret")
	list, err := c.Categories(context.Background())
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(list) != 1 || list[0].ID != "dinheiro" || list[0].Color != "#22c55e" {
		t.Fatalf("list = %+v", list)
	}
}

func TestGenerateMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
			return
		}
		if r.FormValue("objective") != "polemica" || r.FormValue("prompt") != "p" || r.FormValue("similarity") != "70" {
			t.Errorf("fields = %v", r.MultipartForm.Value)
		}
		f, hdr, err := r.FormFile("person_image")
		if err != nil {
			t.Errorf("person_image: %v", err)
			return
		}
		data, _ := io.ReadAll(f)
		if string(data) != "face" || hdr.Filename != "me.png" {
			t.Errorf("person file = %q %q", data, hdr.Filename)
		}
		if _, _, err := r.FormFile("reference_image"); err == nil {
			t.Errorf("unexpected reference_image")
		}
		_, _ = io.WriteString(w, `{"url":"data:image/png;base64,AA==","elements":[
			{"text":"UAU","x":60,"y":100,"fontSize":120,"stroke":null},
			{"text":"R$ 10K","stroke":"#000000","strokeWidth":6}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	res, err := c.Generate(context.Background(), GenerateRequest{
		Category: "polemica", Prompt: "p", Similarity: 70,
		Person: &File{Name: "me.png", Data: []byte("face")},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.URL == "" || len(res.Elements) != 2 {
		t.Fatalf("result = %+v", res)
	}
	a, b := res.Elements[0], res.Elements[1]
	if a.Stroke != nil || a.FontSize == nil || *a.FontSize != 120 {
		t.Fatalf("first element = %+v", a)
	}
	if b.X != nil || b.Stroke == nil || *b.Stroke != "#000000" || *b.StrokeWidth != 6 {
		t.Fatalf("second element = %+v", b)
	}
}

func TestUploadAndHeadlines(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/upload", func(w http.ResponseWriter, r *http.Request) {
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, `{"detail":"no file"}`, http.StatusBadRequest)
			return
		}
		_ = f.Close()
		_, _ = io.WriteString(w, `{"url":"https://cdn.example/x.png"}`)
	})
	mux.HandleFunc("/api/headlines", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["topic"] != "vendas" || in["category"] != "dinheiro" {
			t.Errorf("headline body = %v", in)
		}
		_, _ = io.WriteString(w, `{"headlines":["A","B"]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, "")
	u, err := c.Upload(context.Background(), File{Name: "x.png", Data: []byte{1, 2, 3}})
	if err != nil || u != "https://cdn.example/x.png" {
		t.Fatalf("upload = %q, %v", u, err)
	}
	hs, err := c.Headlines(context.Background(), "vendas", "dinheiro")
	if err != nil || len(hs) != 2 || hs[0] != "A" {
		t.Fatalf("headlines = %v, %v", hs, err)
	}
}

func TestStatusErrorCarriesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `{"detail":"Erro ao gerar imagem."}`)
	}))
	defer srv.Close()

	c := FromConfig(config.BackendConfig{BaseURL: srv.URL, TimeoutMs: 5000}, "")
	_, err := c.Generate(context.Background(), GenerateRequest{Category: "x", Prompt: "y"})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Status != http.StatusBadGateway || se.Detail != "Erro ao gerar imagem." || se.Path != "/api/generate" {
		t.Fatalf("status error = %+v", se)
	}
}
