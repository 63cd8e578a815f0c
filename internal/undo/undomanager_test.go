/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"testing"
	"time"
)

func snap(key, label, blob string, ts time.Time) Snapshot {
	return Snapshot{Key: key, Label: label, Blob: []byte(blob), TS: ts}
}

func TestUndoRedoBasic(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1024 * 1024, MaxPerKey: 10, MinInterval: 10 * time.Millisecond})
	t0 := time.Now()
	m.PushSnapshot(snap("doc", "add", "a", t0))
	m.PushSnapshot(snap("doc", "move", "b", t0.Add(20*time.Millisecond)))
	if _, keys, total := m.Stats(); keys != 1 || total != 2 {
		t.Fatalf("expected 1 key and 2 snapshots, got keys=%d total=%d", keys, total)
	}
	s, ok := m.Undo("doc", Snapshot{Blob: []byte("c")})
	if !ok || string(s.Blob) != "b" {
		t.Fatalf("undo expected 'b', got ok=%v blob=%q", ok, string(s.Blob))
	}
	if !m.CanRedo("doc") {
		t.Fatalf("expected redo to be available")
	}
	s, ok = m.Redo("doc", Snapshot{Blob: []byte("b")})
	if !ok || string(s.Blob) != "c" {
		t.Fatalf("redo expected 'c', got ok=%v blob=%q", ok, string(s.Blob))
	}
	s, _ = m.Undo("doc", Snapshot{Blob: []byte("c")})
	if string(s.Blob) != "b" {
		t.Fatalf("second undo expected 'b', got %q", s.Blob)
	}
}

func TestPushClearsRedo(t *testing.T) {
	m := NewManager(Config{})
	t0 := time.Now()
	m.PushSnapshot(snap("doc", "a", "1", t0))
	m.Undo("doc", Snapshot{Blob: []byte("2")})
	m.PushSnapshot(snap("doc", "b", "3", t0.Add(time.Second)))
	if m.CanRedo("doc") {
		t.Fatalf("new edit must clear redo")
	}
}

func TestCoalesceKeepsEarliest(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1024 * 1024, MaxPerKey: 10, MinInterval: 50 * time.Millisecond})
	t0 := time.Now()
	m.PushSnapshot(snap("doc", "prop:fill", "1", t0))
	m.PushSnapshot(snap("doc", "prop:fill", "2", t0.Add(10*time.Millisecond)))
	m.PushSnapshot(snap("doc", "prop:fill", "3", t0.Add(40*time.Millisecond)))
	_, _, total := m.Stats()
	if total != 1 {
		t.Fatalf("expected coalesced to 1 snapshot, got %d", total)
	}
	s, ok := m.Undo("doc", Snapshot{})
	if !ok || string(s.Blob) != "1" {
		t.Fatalf("expected earliest snapshot '1', got ok=%v blob=%q", ok, string(s.Blob))
	}
}

func TestDifferentLabelsDoNotCoalesce(t *testing.T) {
	m := NewManager(Config{MinInterval: time.Hour})
	t0 := time.Now()
	m.PushSnapshot(snap("doc", "prop:fill", "1", t0))
	m.PushSnapshot(snap("doc", "prop:stroke", "2", t0))
	if _, _, total := m.Stats(); total != 2 {
		t.Fatalf("expected 2 snapshots, got %d", total)
	}
}

func TestCaps(t *testing.T) {
	m := NewManager(Config{MaxBytes: 20, MaxPerKey: 2, MinInterval: 1 * time.Millisecond})
	t0 := time.Now()
	for i := 0; i < 10; i++ {
		m.PushSnapshot(snap("doc", "x", "xxxxx", t0.Add(time.Duration(i)*time.Second)))
	}
	_, _, total := m.Stats()
	if total > 2 {
		t.Fatalf("expected MaxPerKey cap to limit to 2, got %d", total)
	}
}
