/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type sink struct {
	mu     sync.Mutex
	events []map[string]any
	crash  []string
}

func (s *sink) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		defer s.mu.Unlock()
		if r.URL.Path == "/crash" {
			s.crash = append(s.crash, string(b))
			return
		}
		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			t.Errorf("bad event body: %v", err)
		}
		s.events = append(s.events, m)
	})
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvOptIn, "Yes")
	t.Setenv(EnvURL, " http://x/events ")
	t.Setenv(EnvTimeoutMs, "250")
	cfg := FromEnv()
	if !cfg.OptIn || cfg.EventsURL != "http://x/events" || cfg.Timeout != 250*time.Millisecond {
		t.Fatalf("cfg = %+v", cfg)
	}
	t.Setenv(EnvTimeoutMs, "nope")
	if FromEnv().Timeout != 1500*time.Millisecond {
		t.Fatalf("bad timeout not ignored")
	}
}

func TestEventsAreSentWhenOptedIn(t *testing.T) {
	s := &sink{}
	srv := httptest.NewServer(s.handler(t))
	defer srv.Close()

	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash"})
	defer c.Close()
	c.Exported("png", 1234)
	c.Event(EventSessionStarted, map[string]any{"name": "ignored"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.Flush(ctx)
	c.UploadCrash([]byte("report"))

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) != 2 {
		t.Fatalf("events = %d", len(s.events))
	}
	if s.events[0]["name"] != EventExported || s.events[0]["format"] != "png" || s.events[0]["bytes"] != float64(1234) {
		t.Fatalf("export event = %v", s.events[0])
	}
	if s.events[1]["name"] != EventSessionStarted {
		t.Fatalf("reserved key overwritten: %v", s.events[1])
	}
	if len(s.crash) != 1 || s.crash[0] != "report" {
		t.Fatalf("crash = %v", s.crash)
	}
}

func TestDisabledClientSendsNothing(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { hits++ }))
	defer srv.Close()

	c := New(Config{EventsURL: srv.URL, CrashURL: srv.URL})
	defer c.Close()
	if c.Enabled() {
		t.Fatalf("enabled without opt-in")
	}
	c.Exported("jpeg", 1)
	c.UploadCrash([]byte("x"))
	c.Flush(context.Background())
	if hits != 0 {
		t.Fatalf("hits = %d", hits)
	}
	var nilClient *Client
	nilClient.Event("x", nil)
	nilClient.UploadCrash(nil)
}

func TestUnreachableEndpointDoesNotBlock(t *testing.T) {
	c := New(Config{
		OptIn:        true,
		EventsURL:    "http://127.0.0.1:1/events",
		CrashURL:     "http://127.0.0.1:1/crash",
		Timeout:      50 * time.Millisecond,
		DebugLogging: true,
	})
	defer c.Close()
	c.Event("", nil)
	c.Event(EventGenerated, map[string]any{"elements": 2})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.Flush(ctx)
	if ctx.Err() != nil {
		t.Fatalf("flush did not return before the deadline")
	}
	c.UploadCrash([]byte("report"))
}

func TestPackageEventUsesDefault(t *testing.T) {
	s := &sink{}
	srv := httptest.NewServer(s.handler(t))
	defer srv.Close()

	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events"})
	defer c.Close()
	restore := SetDefault(c)
	defer restore()
	if Default() != c {
		t.Fatalf("default not installed")
	}
	Event(EventGenerated, map[string]any{"category": "gaming"})
	c.Flush(context.Background())

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) != 1 || s.events[0]["category"] != "gaming" {
		t.Fatalf("events = %v", s.events)
	}
}
