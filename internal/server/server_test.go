/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	_ "image/jpeg"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gothumb/internal/backend"
	"gothumb/internal/config"
	"gothumb/internal/engine"
	"gothumb/internal/storage"
	"gothumb/internal/wizard"
)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.Editor == (config.EditorConfig{}) {
		opts.Editor = config.Defaults().Editor
		opts.Editor.Snap = false
	}
	if opts.Export == (config.ExportConfig{}) {
		opts.Export = config.Defaults().Export
	}
	s := New(opts)
	t.Cleanup(func() { s.sessions.closeAll() })
	return s
}

// call runs one request and decodes a JSON answer into out when given.
func call(t *testing.T, s *Server, method, path string, body any, out any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	if out != nil {
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp
}

type sessionResp struct {
	ID      string            `json:"id"`
	Objects []json.RawMessage `json:"objects"`
	Panel   struct {
		Visible    bool    `json:"visible"`
		Kind       string  `json:"kind"`
		FontSize   float64 `json:"fontSize"`
		Fill       string  `json:"fill"`
		Text       string  `json:"text"`
		Descriptor string  `json:"descriptor"`
		Shadow     struct {
			Mode  string `json:"mode"`
			Color string `json:"color"`
		} `json:"shadow"`
	} `json:"panel"`
	Display struct {
		Width float64 `json:"width"`
		Scale float64 `json:"scale"`
	} `json:"display"`
	CanUndo bool `json:"canUndo"`
	Done    bool `json:"done"`
}

func TestViewportAndHealth(t *testing.T) {
	s := newTestServer(t, Options{})
	var h map[string]string
	if resp := call(t, s, http.MethodGet, "/api/health", nil, &h); resp.StatusCode != 200 || h["status"] != "ok" {
		t.Fatalf("health = %d %v", resp.StatusCode, h)
	}
	var d struct{ Width, Height, Scale float64 }
	call(t, s, http.MethodGet, "/api/viewport?width=1000", nil, &d)
	if d.Width != 692 || math.Abs(d.Scale-692.0/1280) > 1e-9 || math.Abs(d.Height-692*720.0/1280) > 1e-9 {
		t.Fatalf("display = %+v", d)
	}
	call(t, s, http.MethodGet, "/api/viewport?width=5000", nil, &d)
	if d.Width != 768 {
		t.Fatalf("clamped width = %v", d.Width)
	}
	if resp := call(t, s, http.MethodGet, "/api/viewport", nil, nil); resp.StatusCode != 400 {
		t.Fatalf("missing width status = %d", resp.StatusCode)
	}
}

func TestSessionEditingFlow(t *testing.T) {
	s := newTestServer(t, Options{})
	var created sessionResp
	resp := call(t, s, http.MethodPost, "/api/sessions", map[string]any{
		"url":           "blank:#336699",
		"elements":      []map[string]any{{"text": "OLÁ"}},
		"viewportWidth": 1076,
	}, &created)
	if resp.StatusCode != http.StatusCreated || len(created.Objects) != 2 || created.Panel.Visible {
		t.Fatalf("create = %d %+v", resp.StatusCode, created)
	}
	if created.Display.Width != 768 || created.Display.Scale != 0.6 {
		t.Fatalf("display = %+v", created.Display)
	}
	base := "/api/sessions/" + created.ID

	// (100,140) in the document is (60,84) on a 0.6 display; the seeded text starts at (60,100)
	var ptr struct {
		Point struct{ X, Y float64 } `json:"point"`
	}
	call(t, s, http.MethodPost, base+"/pointer", map[string]any{"type": "down", "x": 60, "y": 84}, &ptr)
	if math.Abs(ptr.Point.X-100) > 1e-9 || math.Abs(ptr.Point.Y-140) > 1e-9 {
		t.Fatalf("mapped point = %+v", ptr.Point)
	}
	call(t, s, http.MethodPost, base+"/pointer", map[string]any{"type": "up"}, nil)

	var panel struct {
		State struct {
			Visible bool `json:"visible"`
		} `json:"state"`
		Controls []string `json:"controls"`
	}
	call(t, s, http.MethodGet, base+"/panel", nil, &panel)
	if !panel.State.Visible || len(panel.Controls) == 0 {
		t.Fatalf("panel after click = %+v", panel)
	}
	var st struct {
		Visible  bool    `json:"visible"`
		Kind     string  `json:"kind"`
		Text     string  `json:"text"`
		FontSize float64 `json:"fontSize"`
		Shadow   struct {
			Mode  string `json:"mode"`
			Color string `json:"color"`
		} `json:"shadow"`
	}
	call(t, s, http.MethodPatch, base+"/active", map[string]any{"fontSize": 120}, &st)
	if !st.Visible || st.Kind != "text" || st.Text != "OLÁ" || st.FontSize != 120 {
		t.Fatalf("panel after patch = %+v", st)
	}
	if resp := call(t, s, http.MethodPatch, base+"/active", map[string]any{"key": "bogus", "value": 1}, nil); resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("bad property status = %d", resp.StatusCode)
	}

	call(t, s, http.MethodPut, base+"/active/shadow", map[string]any{"mode": "glow"}, &st)
	if st.Shadow.Mode != "glow" || st.Shadow.Color != "#FFFFFF" {
		t.Fatalf("shadow = %+v", st.Shadow)
	}

	var undone sessionResp
	call(t, s, http.MethodPost, base+"/undo", nil, &undone)
	if !undone.Done {
		t.Fatalf("undo did nothing")
	}

	resp = call(t, s, http.MethodGet, base+"/export?format=jpeg", nil, nil)
	if resp.StatusCode != 200 || resp.Header.Get("Content-Type") != "image/jpeg" {
		t.Fatalf("export = %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	cfg, _, err := image.DecodeConfig(resp.Body)
	_ = resp.Body.Close()
	if err != nil || cfg.Width != 1280 || cfg.Height != 720 {
		t.Fatalf("export size = %dx%d, %v", cfg.Width, cfg.Height, err)
	}
	if resp := call(t, s, http.MethodGet, base+"/export?format=gif", nil, nil); resp.StatusCode != 400 {
		t.Fatalf("bad format status = %d", resp.StatusCode)
	}

	var del struct {
		Visible bool `json:"visible"`
	}
	if resp := call(t, s, http.MethodDelete, base+"/active", nil, &del); resp.StatusCode != 200 || del.Visible {
		t.Fatalf("delete active = %d %+v", resp.StatusCode, del)
	}
	var objs struct {
		Objects []json.RawMessage `json:"objects"`
	}
	call(t, s, http.MethodGet, base+"/objects", nil, &objs)
	if len(objs.Objects) != 1 {
		t.Fatalf("objects after delete = %d", len(objs.Objects))
	}
	if resp := call(t, s, http.MethodDelete, base+"/active", nil, nil); resp.StatusCode != http.StatusConflict {
		t.Fatalf("second delete status = %d", resp.StatusCode)
	}

	if resp := call(t, s, http.MethodDelete, base, nil, nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("close = %d", resp.StatusCode)
	}
	var e map[string]string
	if resp := call(t, s, http.MethodGet, base, nil, &e); resp.StatusCode != 404 || e["error"] == "" {
		t.Fatalf("closed session = %d %v", resp.StatusCode, e)
	}
}

func TestAddTextStackAndSelect(t *testing.T) {
	s := newTestServer(t, Options{})
	var created sessionResp
	call(t, s, http.MethodPost, "/api/sessions", nil, &created)
	if len(created.Objects) != 1 {
		t.Fatalf("blank session objects = %d", len(created.Objects))
	}
	base := "/api/sessions/" + created.ID

	var first, second struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if resp := call(t, s, http.MethodPost, base+"/texts", map[string]any{"text": "A"}, &first); resp.StatusCode != http.StatusCreated || first.Type != "text" {
		t.Fatalf("add text = %d %+v", resp.StatusCode, first)
	}
	call(t, s, http.MethodPost, base+"/texts", nil, &second)
	if second.Text != "Seu texto" {
		t.Fatalf("default text = %q", second.Text)
	}

	var moved struct {
		Moved bool `json:"moved"`
	}
	call(t, s, http.MethodPost, base+"/stack/back", nil, &moved)
	if !moved.Moved {
		t.Fatalf("send to back did not move")
	}
	var objs struct {
		Objects []struct {
			ID         string `json:"id"`
			Background bool   `json:"background"`
		} `json:"objects"`
	}
	call(t, s, http.MethodGet, base+"/objects", nil, &objs)
	if len(objs.Objects) != 3 || !objs.Objects[0].Background || objs.Objects[1].ID != second.ID {
		t.Fatalf("order after send to back = %+v", objs.Objects)
	}
	if resp := call(t, s, http.MethodPost, base+"/stack/sideways", nil, nil); resp.StatusCode != 400 {
		t.Fatalf("bad stack op = %d", resp.StatusCode)
	}

	if resp := call(t, s, http.MethodPost, base+"/select", map[string]string{"id": objs.Objects[0].ID}, nil); resp.StatusCode != http.StatusConflict {
		t.Fatalf("select background = %d", resp.StatusCode)
	}
	if resp := call(t, s, http.MethodPost, base+"/select", map[string]string{"id": "nope"}, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("select unknown = %d", resp.StatusCode)
	}
	var st struct {
		Visible  bool   `json:"visible"`
		ObjectID string `json:"objectId"`
	}
	call(t, s, http.MethodPost, base+"/select", map[string]string{"id": first.ID}, &st)
	if !st.Visible || st.ObjectID != first.ID {
		t.Fatalf("select = %+v", st)
	}
	var key struct {
		Handled bool `json:"handled"`
	}
	call(t, s, http.MethodPost, base+"/keys", map[string]string{"key": "Escape"}, &key)
	if !key.Handled {
		t.Fatalf("escape not handled")
	}
	if resp := call(t, s, http.MethodGet, base+"/active", nil, nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("active after escape = %d", resp.StatusCode)
	}
}

func TestExportSavedToLibrary(t *testing.T) {
	lib, err := storage.OpenLibrary(context.Background(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer lib.Close()
	s := newTestServer(t, Options{Library: lib})

	var created sessionResp
	call(t, s, http.MethodPost, "/api/sessions", map[string]any{"elements": []map[string]any{{"text": "SALVO"}}}, &created)
	resp := call(t, s, http.MethodGet, "/api/sessions/"+created.ID+"/export?save=true", nil, nil)
	id := resp.Header.Get("X-Export-Id")
	if resp.StatusCode != 200 || id == "" || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("save export = %d id=%q", resp.StatusCode, id)
	}

	var list struct {
		Exports []storage.Entry `json:"exports"`
	}
	call(t, s, http.MethodGet, "/api/exports", nil, &list)
	if len(list.Exports) != 1 || list.Exports[0].ID != id || list.Exports[0].Width != 1280 {
		t.Fatalf("exports = %+v", list.Exports)
	}
	var doc struct {
		Width   int               `json:"width"`
		Objects []json.RawMessage `json:"objects"`
	}
	call(t, s, http.MethodGet, "/api/exports/"+id+"/scene", nil, &doc)
	if doc.Width != 1280 || len(doc.Objects) != 2 {
		t.Fatalf("stored scene = %+v", doc)
	}
	resp = call(t, s, http.MethodGet, "/api/exports/"+id+"/preview", nil, nil)
	cfg, _, err := image.DecodeConfig(resp.Body)
	_ = resp.Body.Close()
	if err != nil || cfg.Width != previewWidth || cfg.Height != 180 {
		t.Fatalf("preview = %dx%d, %v", cfg.Width, cfg.Height, err)
	}
	if resp := call(t, s, http.MethodDelete, "/api/exports/"+id, nil, nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete export = %d", resp.StatusCode)
	}
	if resp := call(t, s, http.MethodGet, "/api/exports/"+id, nil, nil); resp.StatusCode != 404 {
		t.Fatalf("deleted export = %d", resp.StatusCode)
	}
}

func TestLibraryRoutesNeedLibrary(t *testing.T) {
	s := newTestServer(t, Options{})
	if resp := call(t, s, http.MethodGet, "/api/exports", nil, nil); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("exports without library = %d", resp.StatusCode)
	}
	if resp := call(t, s, http.MethodGet, "/ws/sessions/x", nil, nil); resp.StatusCode != http.StatusUpgradeRequired {
		t.Fatalf("ws without upgrade = %d", resp.StatusCode)
	}
	if resp := call(t, s, http.MethodPost, "/api/sessions", map[string]any{"url": "data:image/png;base64,AAAA"}, nil); resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("bad background = %d", resp.StatusCode)
	}
	var ids struct {
		Sessions []string `json:"sessions"`
	}
	call(t, s, http.MethodGet, "/api/sessions", nil, &ids)
	if len(ids.Sessions) != 0 {
		t.Fatalf("failed session kept: %v", ids.Sessions)
	}
}

type failingGenerator struct{}

func (failingGenerator) Categories(context.Context) ([]backend.Category, error) {
	return []backend.Category{{ID: "dinheiro", Name: "Dinheiro"}}, nil
}

func (failingGenerator) Generate(context.Context, backend.GenerateRequest) (*backend.GenerateResult, error) {
	return nil, errors.New("not used")
}

func (failingGenerator) Headlines(context.Context, string, string) ([]string, error) {
	return nil, errors.New("down")
}

func TestHeadlinesFallBack(t *testing.T) {
	s := newTestServer(t, Options{Generator: failingGenerator{}})
	var out struct {
		Headlines []string `json:"headlines"`
		Fallback  bool     `json:"fallback"`
	}
	call(t, s, http.MethodPost, "/api/headlines", map[string]string{"topic": "vendas"}, &out)
	if !out.Fallback || len(out.Headlines) != len(wizard.FallbackHeadlines) {
		t.Fatalf("headlines = %+v", out)
	}
	var cats struct {
		Categories []backend.Category `json:"categories"`
	}
	call(t, s, http.MethodGet, "/api/categories", nil, &cats)
	if len(cats.Categories) != 1 {
		t.Fatalf("categories = %+v", cats)
	}
}

func TestSessionPublishesNotifications(t *testing.T) {
	eng := engine.New(engine.Options{})
	if err := eng.Initialize(&engine.RasterHost{}, 1280, 720); err != nil {
		t.Fatal(err)
	}
	sess := newSession(eng, layoutFrom(config.Defaults().Editor), newTestServer(t, Options{}).log)
	id, ch := sess.attach()
	if id == "" || sess.listeners() != 1 {
		t.Fatalf("attach failed")
	}

	if _, err := eng.AddText(engine.TextSeed{Text: "x"}); err != nil {
		t.Fatal(err)
	}
	seen := map[MessageType]bool{}
	timeout := time.After(2 * time.Second)
	for !(seen[MsgSelected] && seen[MsgPanel]) {
		select {
		case raw := <-ch:
			var m struct {
				Type MessageType `json:"type"`
			}
			if err := json.Unmarshal(raw, &m); err != nil {
				t.Fatal(err)
			}
			seen[m.Type] = true
		case <-timeout:
			t.Fatalf("notifications seen = %v", seen)
		}
	}

	sess.close()
	closed := false
	for raw := range ch {
		closed = closed || strings.Contains(string(raw), `"closed"`)
	}
	if !closed {
		t.Fatalf("no closed notification")
	}
	if eng.Ready() || sess.listeners() != 0 {
		t.Fatalf("session not closed")
	}
	if _, ch2 := sess.attach(); ch2 == nil {
		t.Fatalf("attach after close returned nil")
	} else if _, open := <-ch2; open {
		t.Fatalf("attach after close is open")
	}
}
