/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"gothumb/internal/engine"
	"gothumb/internal/propsync"
	"gothumb/internal/viewport"
)

// MessageType tags a websocket notification.
type MessageType string

const (
	MsgSelected MessageType = "selected"
	MsgCleared  MessageType = "cleared"
	MsgModified MessageType = "modified"
	MsgPanel    MessageType = "panel"
	MsgClosed   MessageType = "closed"
	MsgError    MessageType = "error"
)

// Message is one websocket frame.
type Message struct {
	Type MessageType `json:"type"`
	Data any         `json:"data,omitempty"`
}

// session is one open editor: an engine, its panel binding, the display
// mapping and the websocket listeners.
type session struct {
	id      string
	eng     *engine.Engine
	binder  *propsync.Binder
	mapper  *viewport.Mapper
	created time.Time
	log     *slog.Logger

	release []func()

	mu      sync.Mutex
	clients map[string]chan []byte
	closed  bool
}

func newSession(eng *engine.Engine, layout viewport.Layout, log *slog.Logger) *session {
	s := &session{
		id:      uuid.NewString(),
		eng:     eng,
		mapper:  viewport.NewMapper(layout),
		created: time.Now(),
		clients: make(map[string]chan []byte),
	}
	s.log = log.With(slog.String("session", s.id))
	b, unbind := propsync.Bind(eng)
	s.binder = b
	b.Panel().OnChange(func(st propsync.State) { s.publish(Message{Type: MsgPanel, Data: st}) })
	cancel := eng.Subscribe(engine.ObserverFuncs{
		Selected: func(snap engine.Snapshot) { s.publish(Message{Type: MsgSelected, Data: snap}) },
		Cleared:  func() { s.publish(Message{Type: MsgCleared}) },
		Modified: func(snap engine.Snapshot) { s.publish(Message{Type: MsgModified, Data: snap}) },
	})
	s.release = []func(){cancel, unbind}
	return s
}

// attach registers a listener; the channel closes on detach or session close.
func (s *session) attach() (string, <-chan []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan []byte, 64)
	if s.closed {
		close(ch)
		return "", ch
	}
	id := uuid.NewString()
	s.clients[id] = ch
	return id, ch
}

func (s *session) detach(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.clients[id]; ok {
		delete(s.clients, id)
		close(ch)
	}
}

func (s *session) listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// publish fans msg out to every listener. A listener whose buffer is full
// misses the frame.
func (s *session) publish(msg Message) {
	b, err := json.Marshal(msg)
	if err != nil {
		s.log.Warn("marshal notification failed", slog.Any("err", err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.clients {
		select {
		case ch <- b:
		default:
			s.log.Debug("listener lagging, frame dropped", slog.String("client", id))
		}
	}
}

// close disposes the engine and ends every listener.
func (s *session) close() {
	for _, fn := range s.release {
		fn()
	}
	s.eng.Dispose()
	s.publish(Message{Type: MsgClosed})
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, ch := range s.clients {
		delete(s.clients, id)
		close(ch)
	}
}

// store holds the open sessions.
type store struct {
	mu       sync.RWMutex
	sessions map[string]*session
	max      int
}

func newStore(max int) *store {
	return &store{sessions: make(map[string]*session), max: max}
}

func (st *store) add(s *session) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.max > 0 && len(st.sessions) >= st.max {
		return false
	}
	st.sessions[s.id] = s
	return true
}

func (st *store) get(id string) (*session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

func (st *store) remove(id string) (*session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	return s, ok
}

// ids lists the open sessions, oldest first.
func (st *store) ids() []string {
	st.mu.RLock()
	all := make([]*session, 0, len(st.sessions))
	for _, s := range st.sessions {
		all = append(all, s)
	}
	st.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool { return all[i].created.Before(all[j].created) })
	out := make([]string, len(all))
	for i, s := range all {
		out[i] = s.id
	}
	return out
}

func (st *store) closeAll() {
	st.mu.Lock()
	all := st.sessions
	st.sessions = make(map[string]*session)
	st.mu.Unlock()
	for _, s := range all {
		s.close()
	}
}
