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
	"time"

	"github.com/gofiber/contrib/websocket"
)

const wsWriteWait = 5 * time.Second

// notifications streams a session's selection, modification and panel
// changes. The first frame is the current panel state. Incoming frames are
// read only to notice the client going away; {"type":"ping"} gets a pong.
func (s *Server) notifications(conn *websocket.Conn) {
	defer conn.Close()
	sess, ok := s.sessions.get(conn.Params("id"))
	if !ok {
		writeJSON(conn, Message{Type: MsgError, Data: "session not found"})
		return
	}
	id, ch := sess.attach()
	defer sess.detach(id)
	l := sess.log.With(slog.String("client", id))
	l.Debug("listener attached")

	pongs := make(chan struct{}, 1)
	go func() {
		defer sess.detach(id)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var in Message
			if json.Unmarshal(raw, &in) == nil && in.Type == "ping" {
				select {
				case pongs <- struct{}{}:
				default:
				}
			}
		}
	}()

	if !writeJSON(conn, Message{Type: MsgPanel, Data: sess.binder.State()}) {
		return
	}
	for {
		select {
		case msg, open := <-ch:
			if !open {
				l.Debug("listener detached")
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				l.Debug("write failed", slog.Any("err", err))
				return
			}
		case <-pongs:
			if !writeJSON(conn, Message{Type: "pong"}) {
				return
			}
		}
	}
}

func writeJSON(conn *websocket.Conn, msg Message) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(msg) == nil
}
