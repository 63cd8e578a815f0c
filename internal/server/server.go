/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package server exposes editor sessions over HTTP. Each session owns one
// engine; a browser page sends pointer events in display coordinates and
// property edits, and receives selection notifications over a websocket.
package server

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"gothumb/internal/assets"
	"gothumb/internal/config"
	"gothumb/internal/engine"
	applog "gothumb/internal/log"
	"gothumb/internal/propsync"
	"gothumb/internal/scene"
	"gothumb/internal/storage"
	"gothumb/internal/telemetry"
	"gothumb/internal/textlayout"
	"gothumb/internal/undo"
	"gothumb/internal/version"
	"gothumb/internal/viewport"
	"gothumb/internal/wizard"
)

// Options configure a Server.
type Options struct {
	Server config.ServerConfig
	Editor config.EditorConfig
	Export config.ExportConfig

	Fonts  *textlayout.FontLibrary
	Loader *assets.Loader
	// Library stores saved exports; nil disables the export library routes.
	Library *storage.Library
	// Generator answers category and headline requests; nil disables them.
	Generator wizard.Service
	Telemetry *telemetry.Client
	// AccessLog enables the request log middleware.
	AccessLog   bool
	MaxSessions int
	Logger      *slog.Logger
}

// Server is the editor session API.
type Server struct {
	app      *fiber.App
	opts     Options
	sessions *store
	layout   viewport.Layout
	log      *slog.Logger
}

// New builds the Fiber app with all routes registered.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.WithComponent("server")
	}
	if opts.Loader == nil {
		opts.Loader = assets.NewLoader(0)
	}
	if opts.Fonts == nil {
		opts.Fonts = textlayout.NewFontLibrary()
	}
	if opts.Server.MaxUploadMB <= 0 {
		opts.Server.MaxUploadMB = 20
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 64
	}
	s := &Server{
		opts:     opts,
		sessions: newStore(opts.MaxSessions),
		layout:   layoutFrom(opts.Editor),
		log:      opts.Logger,
	}

	app := fiber.New(fiber.Config{
		AppName:               "gothumb " + version.String(),
		ErrorHandler:          s.errorHandler,
		BodyLimit:             opts.Server.MaxUploadMB * 1024 * 1024,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(logger.New(logger.Config{Output: os.Stderr}))
	}
	origins := strings.TrimSpace(opts.Server.CORSOrigins)
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app = app
	s.routes()
	return s
}

func layoutFrom(ed config.EditorConfig) viewport.Layout {
	l := viewport.DefaultLayout()
	if ed.SidePanel > 0 {
		l.SidePanel = float64(ed.SidePanel)
	}
	if ed.Padding > 0 {
		l.Padding = float64(ed.Padding)
	}
	if ed.MinWidth > 0 {
		l.MinWidth = float64(ed.MinWidth)
	}
	if ed.MaxWidth > 0 {
		l.MaxWidth = float64(ed.MaxWidth)
	}
	return l
}

// App exposes the Fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr (the configured address when empty) until Shutdown.
func (s *Server) Listen(addr string) error {
	if addr == "" {
		addr = s.opts.Server.Addr
	}
	s.log.Info("server starting", slog.String("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown closes every session and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.sessions.closeAll()
	done := make(chan error, 1)
	go func() { done <- s.app.Shutdown() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) newEngine() *engine.Engine {
	limit := s.opts.Editor.HistoryLimit
	if limit <= 0 {
		limit = 100
	}
	return engine.New(engine.Options{
		Fonts:   s.opts.Fonts,
		Loader:  s.opts.Loader,
		History: undo.NewManager(undo.Config{MaxPerKey: limit, MinInterval: 400 * time.Millisecond}),
		Snap:    s.opts.Editor.Snap,
		Logger:  applog.WithComponent("engine"),
	})
}

// errorHandler renders every error as {"error": "..."} with a status derived
// from the error type.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		s.log.Error("request failed", slog.String("method", c.Method()), slog.String("path", c.Path()), slog.Any("err", err))
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func statusFor(err error) int {
	var fe *fiber.Error
	var pe *engine.PropertyError
	var ae *engine.AssetLoadError
	var ie *engine.InitializationError
	var ve *wizard.ValidationError
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &pe), errors.As(err, &ve), errors.As(err, &ae):
		return fiber.StatusUnprocessableEntity
	case errors.As(err, &ie):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, engine.ErrNotReady), errors.Is(err, engine.ErrStale):
		return fiber.StatusConflict
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, scene.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, scene.ErrBackgroundLocked), errors.Is(err, propsync.ErrNoTextSelected):
		return fiber.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}
