/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"gothumb/internal/engine"
	"gothumb/internal/export"
	"gothumb/internal/scene"
	"gothumb/internal/storage"
	"gothumb/internal/telemetry"
	"gothumb/internal/vector"
	"gothumb/internal/version"
	"gothumb/internal/wizard"
)

// previewWidth is the width of the thumbnails stored with saved exports.
const previewWidth = 320

func (s *Server) routes() {
	api := s.app.Group("/api")
	api.Get("/health", s.health)
	api.Get("/viewport", s.computeViewport)
	api.Get("/categories", s.categories)
	api.Post("/headlines", s.headlines)

	api.Get("/sessions", s.listSessions)
	api.Post("/sessions", s.createSession)
	ss := api.Group("/sessions/:id")
	ss.Get("/", s.getSession)
	ss.Delete("/", s.closeSession)
	ss.Get("/objects", s.listObjects)
	ss.Post("/texts", s.addText)
	ss.Post("/images", s.addImage)
	ss.Post("/select", s.selectObject)
	ss.Post("/pointer", s.pointer)
	ss.Post("/keys", s.key)
	ss.Get("/active", s.getActive)
	ss.Patch("/active", s.patchActive)
	ss.Put("/active/shadow", s.putShadow)
	ss.Delete("/active", s.deleteActive)
	ss.Post("/stack/:op", s.stack)
	ss.Post("/headline", s.applyHeadline)
	ss.Post("/undo", s.undo)
	ss.Post("/redo", s.redo)
	ss.Get("/panel", s.panel)
	ss.Get("/preview", s.preview)
	ss.Get("/export", s.export)

	api.Get("/exports", s.listExports)
	api.Get("/exports/:eid", s.getExport)
	api.Get("/exports/:eid/scene", s.exportScene)
	api.Get("/exports/:eid/preview", s.exportPreview)
	api.Delete("/exports/:eid", s.deleteExport)

	s.app.Get("/ws/sessions/:id", websocket.New(s.notifications))
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "version": version.String()})
}

func (s *Server) computeViewport(c *fiber.Ctx) error {
	w := c.QueryFloat("width", 0)
	if w <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "width query parameter required")
	}
	return c.JSON(s.layout.Compute(w))
}

func (s *Server) categories(c *fiber.Ctx) error {
	if s.opts.Generator == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "no generation backend configured")
	}
	cats, err := s.opts.Generator.Categories(c.UserContext())
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
	return c.JSON(fiber.Map{"categories": cats})
}

func (s *Server) headlines(c *fiber.Ctx) error {
	var req struct {
		Topic    string `json:"topic"`
		Category string `json:"category"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return c.JSON(fiber.Map{"headlines": []string{}})
	}
	if req.Category == "" {
		req.Category = "dinheiro"
	}
	if s.opts.Generator == nil {
		return c.JSON(fiber.Map{"headlines": wizard.FallbackHeadlines, "fallback": true})
	}
	hs, err := s.opts.Generator.Headlines(c.UserContext(), topic, req.Category)
	if err != nil {
		s.log.Warn("headline suggestions failed", slog.Any("err", err))
		return c.JSON(fiber.Map{"headlines": wizard.FallbackHeadlines, "fallback": true})
	}
	return c.JSON(fiber.Map{"headlines": hs})
}

// session resolves :id.
func (s *Server) session(c *fiber.Ctx) (*session, error) {
	sess, ok := s.sessions.get(c.Params("id"))
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	return sess, nil
}

func objectsJSON(objs []scene.Object) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(objs))
	for _, o := range objs {
		raw, err := scene.MarshalObject(o)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

func (s *Server) sessionView(sess *session) (fiber.Map, error) {
	objs, err := objectsJSON(sess.eng.Objects())
	if err != nil {
		return nil, err
	}
	return fiber.Map{
		"id":      sess.id,
		"objects": objs,
		"panel":   sess.binder.State(),
		"display": sess.mapper.Display(),
		"canUndo": sess.eng.CanUndo(),
		"canRedo": sess.eng.CanRedo(),
	}, nil
}

func (s *Server) listSessions(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"sessions": s.sessions.ids()})
}

type createRequest struct {
	engine.GenerationResult
	// ViewportWidth sizes the display mapping from the start.
	ViewportWidth float64 `json:"viewportWidth"`
}

// createSession opens an editor seeded with a generation result. Without a
// background URL the configured blank color is used.
func (s *Server) createSession(c *fiber.Ctx) error {
	var req createRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}
	if strings.TrimSpace(req.BackgroundURL) == "" && s.opts.Editor.Background != "" {
		req.BackgroundURL = "blank:" + s.opts.Editor.Background
	}

	eng := s.newEngine()
	if err := eng.Initialize(&engine.RasterHost{}, scene.Width, scene.Height); err != nil {
		return err
	}
	sess := newSession(eng, s.layout, s.log)
	if req.ViewportWidth > 0 {
		sess.mapper.Resize(req.ViewportWidth)
	}
	if err := eng.Seed(c.UserContext(), req.GenerationResult); err != nil {
		sess.close()
		return err
	}
	if !s.sessions.add(sess) {
		sess.close()
		return fiber.NewError(fiber.StatusTooManyRequests, "too many open sessions")
	}
	sess.log.Info("session opened", slog.Int("elements", len(req.Elements)))
	s.opts.Telemetry.Event(telemetry.EventSessionStarted, map[string]any{"elements": len(req.Elements)})
	view, err := s.sessionView(sess)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

func (s *Server) getSession(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	view, err := s.sessionView(sess)
	if err != nil {
		return err
	}
	return c.JSON(view)
}

func (s *Server) closeSession(c *fiber.Ctx) error {
	sess, ok := s.sessions.remove(c.Params("id"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	sess.close()
	sess.log.Info("session closed")
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) listObjects(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	objs, err := objectsJSON(sess.eng.Objects())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"objects": objs})
}

func (s *Server) addText(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	var seed engine.TextSeed
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&seed); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}
	t, err := sess.eng.AddText(seed)
	if err != nil {
		return err
	}
	raw, err := scene.MarshalObject(t)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(fiber.StatusCreated).Send(raw)
}

// addImage takes either a multipart "image" file or a JSON {"url": "..."}.
func (s *Server) addImage(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	var obj *scene.ImageObject
	if fh, ferr := c.FormFile("image"); ferr == nil {
		f, err := fh.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "unreadable upload")
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "unreadable upload")
		}
		obj, err = sess.eng.AddImageData("upload:"+fh.Filename, data)
		if err != nil {
			return err
		}
	} else {
		var req struct {
			URL string `json:"url"`
		}
		if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.URL) == "" {
			return fiber.NewError(fiber.StatusBadRequest, "image file or url required")
		}
		obj, err = sess.eng.AddImage(c.UserContext(), strings.TrimSpace(req.URL))
		if err != nil {
			return err
		}
	}
	raw, err := scene.MarshalObject(obj)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(fiber.StatusCreated).Send(raw)
}

func (s *Server) selectObject(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	var req struct {
		ID string `json:"id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.ID == "" {
		sess.eng.DiscardActiveObject()
	} else if err := sess.eng.SetActiveObject(req.ID); err != nil {
		return err
	}
	return c.JSON(sess.binder.State())
}

type pointerRequest struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	// ViewportWidth, when set, resizes the display mapping first.
	ViewportWidth float64 `json:"viewportWidth"`
}

// pointer maps a display-space event into document space and feeds the engine.
func (s *Server) pointer(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	var req pointerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.ViewportWidth > 0 {
		sess.mapper.Resize(req.ViewportWidth)
	}
	p := sess.mapper.ToDocument(vector.Pt{X: req.X, Y: req.Y})
	switch req.Type {
	case "down":
		err = sess.eng.PointerDown(p)
	case "move":
		err = sess.eng.PointerMove(p)
	case "up":
		err = sess.eng.PointerUp()
	default:
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("unknown pointer event %q", req.Type))
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"point": p, "display": sess.mapper.Display(), "panel": sess.binder.State()})
}

func (s *Server) key(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	var req struct {
		Key string `json:"key"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return c.JSON(fiber.Map{"handled": sess.eng.KeyDown(req.Key), "panel": sess.binder.State()})
}

func (s *Server) getActive(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	snap, ok := sess.eng.ActiveSnapshot()
	if !ok {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(snap)
}

// patchActive applies {"key": value, ...} or {"key": "...", "value": ...}
// to the selected object.
func (s *Server) patchActive(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	var body map[string]any
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if k, ok := body["key"].(string); ok {
		if v, has := body["value"]; has && len(body) == 2 {
			body = map[string]any{k: v}
		}
	}
	if len(body) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no properties given")
	}
	for k, v := range body {
		if err := sess.eng.SetProperty(engine.Prop(k), v); err != nil {
			return err
		}
	}
	return c.JSON(sess.binder.State())
}

type shadowRequest struct {
	Mode    scene.ShadowMode `json:"mode"`
	Color   *string          `json:"color"`
	Blur    *float64         `json:"blur"`
	OffsetX *float64         `json:"offsetX"`
	OffsetY *float64         `json:"offsetY"`
}

// putShadow switches the effect mode first, then applies the given fields
// through the property panel so the same defaults apply as in the editor.
func (s *Server) putShadow(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	var req shadowRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	b := sess.binder
	if req.Mode != "" {
		if err := b.SetShadowMode(req.Mode); err != nil {
			return err
		}
	}
	if req.Color != nil {
		if err := b.SetShadowColor(*req.Color); err != nil {
			return err
		}
	}
	if req.Blur != nil {
		if err := b.SetShadowBlur(*req.Blur); err != nil {
			return err
		}
	}
	if req.OffsetX != nil || req.OffsetY != nil {
		cur := b.State().Shadow
		dx, dy := cur.OffsetX, cur.OffsetY
		if req.OffsetX != nil {
			dx = *req.OffsetX
		}
		if req.OffsetY != nil {
			dy = *req.OffsetY
		}
		if err := b.SetShadowOffset(dx, dy); err != nil {
			return err
		}
	}
	return c.JSON(b.State())
}

func (s *Server) deleteActive(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	if !sess.binder.Delete() {
		return fiber.NewError(fiber.StatusConflict, "nothing selected")
	}
	return c.JSON(sess.binder.State())
}

func (s *Server) stack(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	var moved bool
	switch c.Params("op") {
	case "forward":
		moved, err = sess.eng.BringForward()
	case "backward":
		moved, err = sess.eng.SendBackward()
	case "front":
		moved, err = sess.eng.BringToFront()
	case "back":
		moved, err = sess.eng.SendToBack()
	default:
		return fiber.NewError(fiber.StatusBadRequest, "stack op must be forward, backward, front or back")
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"moved": moved, "panel": sess.binder.State()})
}

func (s *Server) applyHeadline(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	ok, err := sess.eng.ApplyHeadline(req.Text)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"applied": ok})
}

func (s *Server) history(c *fiber.Ctx, redo bool) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	var done bool
	if redo {
		done, err = sess.eng.Redo()
	} else {
		done, err = sess.eng.Undo()
	}
	if err != nil {
		return err
	}
	view, err := s.sessionView(sess)
	if err != nil {
		return err
	}
	view["done"] = done
	return c.JSON(view)
}

func (s *Server) undo(c *fiber.Ctx) error { return s.history(c, false) }
func (s *Server) redo(c *fiber.Ctx) error { return s.history(c, true) }

func (s *Server) panel(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	st := sess.binder.State()
	return c.JSON(fiber.Map{"state": st, "controls": st.Controls()})
}

// preview renders the interactive frame, selection chrome included.
func (s *Server) preview(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	img, err := sess.eng.Preview(c.QueryInt("width", 0))
	if err != nil {
		return err
	}
	data, err := export.Bytes(img, export.Options{Format: export.PNG})
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, export.PNG.MIME())
	return c.Send(data)
}

// export encodes the document at 1280x720. With save=true the result is also
// stored in the export library and its id returned in X-Export-Id.
func (s *Server) export(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(c.Query("format", s.opts.Export.Format))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	opts := export.Options{Format: format, Quality: c.QueryFloat("quality", s.opts.Export.JPEGQuality)}
	data, err := sess.eng.Export(c.UserContext(), opts)
	if err != nil {
		return err
	}
	now := time.Now()
	if c.QueryBool("save", false) {
		if s.opts.Library == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "export library not configured")
		}
		entry, err := s.save(c, sess, format, data, now)
		if err != nil {
			return err
		}
		c.Set("X-Export-Id", entry.ID)
	}
	s.opts.Telemetry.Exported(string(format), len(data))
	c.Set(fiber.HeaderContentType, format.MIME())
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, export.FileName(format, now)))
	return c.Send(data)
}

func (s *Server) save(c *fiber.Ctx, sess *session, format export.Format, data []byte, at time.Time) (storage.Entry, error) {
	sceneJSON, err := json.Marshal(sess.eng.Document())
	if err != nil {
		return storage.Entry{}, err
	}
	var preview []byte
	if frame, err := sess.eng.Frame(); err == nil {
		thumb := imaging.Resize(frame, previewWidth, 0, imaging.Lanczos)
		preview, _ = export.Bytes(thumb, export.Options{Format: export.PNG})
	}
	return s.opts.Library.Save(c.UserContext(), storage.SaveRequest{
		Data:    data,
		Format:  format,
		Scene:   sceneJSON,
		Preview: preview,
		At:      at,
	})
}

func (s *Server) library() (*storage.Library, error) {
	if s.opts.Library == nil {
		return nil, fiber.NewError(fiber.StatusServiceUnavailable, "export library not configured")
	}
	return s.opts.Library, nil
}

func (s *Server) listExports(c *fiber.Ctx) error {
	lib, err := s.library()
	if err != nil {
		return err
	}
	entries, err := lib.List(c.UserContext(), c.QueryInt("limit", 50))
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []storage.Entry{}
	}
	return c.JSON(fiber.Map{"exports": entries})
}

func (s *Server) getExport(c *fiber.Ctx) error {
	lib, err := s.library()
	if err != nil {
		return err
	}
	e, err := lib.Get(c.UserContext(), c.Params("eid"))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, e.Format.MIME())
	return c.SendFile(lib.Path(e))
}

func (s *Server) exportScene(c *fiber.Ctx) error {
	return s.exportBlob(c, (*storage.Library).Scene, fiber.MIMEApplicationJSON)
}

func (s *Server) exportPreview(c *fiber.Ctx) error {
	return s.exportBlob(c, (*storage.Library).Preview, export.PNG.MIME())
}

func (s *Server) exportBlob(c *fiber.Ctx, get func(*storage.Library, context.Context, string) ([]byte, error), mime string) error {
	lib, err := s.library()
	if err != nil {
		return err
	}
	id := c.Params("eid")
	if _, err := lib.Get(c.UserContext(), id); err != nil {
		return err
	}
	b, err := get(lib, c.UserContext(), id)
	if err != nil {
		return err
	}
	if b == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	c.Set(fiber.HeaderContentType, mime)
	return c.Send(b)
}

func (s *Server) deleteExport(c *fiber.Ctx) error {
	lib, err := s.library()
	if err != nil {
		return err
	}
	if err := lib.Delete(c.UserContext(), c.Params("eid")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
