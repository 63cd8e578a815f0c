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

func TestClearAndStats(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1024, MaxPerKey: 10, MinInterval: time.Millisecond})
	m.PushSnapshot(Snapshot{Key: "k", Blob: []byte("abcdef"), TS: time.Now()})
	m.Undo("k", Snapshot{Blob: []byte("gh")})
	m.PushSnapshot(Snapshot{Key: "k", Blob: []byte("ijk"), TS: time.Now()})
	tb, keys, total := m.Stats()
	if tb == 0 || keys != 1 || total != 1 {
		t.Fatalf("unexpected stats before clear: tb=%d keys=%d total=%d", tb, keys, total)
	}
	m.Clear("k")
	tb2, keys2, total2 := m.Stats()
	if tb2 != 0 || keys2 != 0 || total2 != 0 {
		t.Fatalf("expected cleared stats to be zero, got tb=%d keys=%d total=%d", tb2, keys2, total2)
	}
}

func TestGlobalPruneAcrossDocuments(t *testing.T) {
	// Very small MaxBytes so pruning triggers across documents
	m := NewManager(Config{MaxBytes: 8, MaxPerKey: 0, MinInterval: time.Millisecond})
	t0 := time.Now()
	m.PushSnapshot(Snapshot{Key: "one", Blob: []byte("xxxx"), TS: t0})
	m.PushSnapshot(Snapshot{Key: "two", Blob: []byte("yyyy"), TS: t0.Add(time.Second)})
	// exceeds the cap and forces the oldest document snapshot out
	m.PushSnapshot(Snapshot{Key: "two", Blob: []byte("zzzz"), TS: t0.Add(2 * time.Second)})

	_, keys, total := m.Stats()
	if keys == 0 || total == 0 {
		t.Fatalf("expected some snapshots to remain")
	}
	if m.CanUndo("one") {
		t.Fatalf("expected document one to have been pruned")
	}
	if _, ok := m.Undo("two", Snapshot{}); !ok {
		t.Fatalf("expected document two to have snapshots")
	}
}
