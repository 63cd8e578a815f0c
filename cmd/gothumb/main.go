/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"gothumb/internal/backend"
	"gothumb/internal/config"
	"gothumb/internal/crash"
	"gothumb/internal/engine"
	"gothumb/internal/export"
	applog "gothumb/internal/log"
	"gothumb/internal/scene"
	"gothumb/internal/server"
	"gothumb/internal/storage"
	"gothumb/internal/telemetry"
	"gothumb/internal/textlayout"
	"gothumb/internal/ui"
	"gothumb/internal/version"
)

func usage() {
	fmt.Println("GoThumb thumbnail editor")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  gothumb version|-v|--version             Show version")
	fmt.Println("  gothumb serve [addr]                     Run the editor API (default addr from config, :8090)")
	fmt.Println("  gothumb render <scene.json> <out>        Render a saved scene to <out> (.png, .jpg, .pdf)")
	fmt.Println("  gothumb exports [dir]                    List the export library")
	fmt.Println("  gothumb rescan [dir]                     Rebuild the export library index from its files")
	fmt.Printf("  gothumb ui [dir]                         Launch desktop editor (build with -tags %s)\n", ui.DesktopTag)
}

func fail(l *slog.Logger, msg string, err error) {
	l.Error(msg, slog.Any("err", err))
	fmt.Println("Error:", err)
	os.Exit(1)
}

func main() {
	if err := config.LoadDotenv(); err != nil {
		fmt.Fprintln(os.Stderr, "warning: .env not loaded:", err)
	}
	cfg, token, cfgErr := config.Load()
	logOpts := applog.FromEnv()
	if cfg.Logging.Level != "" {
		logOpts.Level = cfg.Logging.Level
	}
	if cfg.Logging.Format != "" {
		logOpts.Format = cfg.Logging.Format
	}
	if cfg.Logging.File != "" {
		logOpts.File = cfg.Logging.File
	}
	logOpts.AddSource = logOpts.AddSource || cfg.Logging.Source
	applog.Init(logOpts)
	l := applog.WithComponent("cli")
	if cfgErr != nil {
		l.Warn("config not loaded, using defaults", slog.Any("err", cfgErr))
	}
	defer crash.Recover("", nil)

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) > 1 {
		switch args[1] {
		case "version", "--version", "-v":
			fmt.Println("GoThumb")
			fmt.Println(version.String())
			return
		case "serve":
			addr := cfg.Server.Addr
			if len(args) >= 3 {
				addr = args[2]
			}
			if err := serve(cfg, token, addr, l); err != nil {
				fail(l, "serve failed", err)
			}
			return
		case "render":
			if len(args) < 4 {
				fmt.Println("render requires <scene.json> and <out>")
				usage()
				os.Exit(2)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			path, err := renderScene(ctx, args[2], args[3], cfg)
			if err != nil {
				fail(l, "render failed", err)
			}
			fmt.Println("Rendered", path)
			return
		case "exports", "rescan":
			dir := cfg.Export.ExportDir()
			if len(args) >= 3 {
				dir = args[2]
			}
			abs, _ := filepath.Abs(dir)
			if err := library(args[1], abs); err != nil {
				fail(l, args[1]+" failed", err)
			}
			return
		case "ui":
			var dir string
			if len(args) >= 3 {
				dir = args[2]
			}
			if err := ui.Run(dir); err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		}
	}

	usage()
}

func loadFonts(cfg config.AppConfig, l *slog.Logger) *textlayout.FontLibrary {
	fonts := textlayout.NewFontLibrary()
	if dir := strings.TrimSpace(cfg.Editor.FontsDir); dir != "" {
		n, err := fonts.LoadDir(dir)
		if err != nil {
			l.Warn("font directory not loaded", slog.String("dir", dir), slog.Any("err", err))
		} else {
			l.Info("fonts loaded", slog.String("dir", dir), slog.Int("count", n))
		}
	}
	return fonts
}

// serve runs the editor API until SIGINT or SIGTERM.
func serve(cfg config.AppConfig, token, addr string, l *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telCfg := telemetry.FromEnv()
	telCfg.OptIn = telCfg.OptIn || cfg.General.TelemetryOptIn
	tel := telemetry.New(telCfg)
	restore := telemetry.SetDefault(tel)
	defer restore()

	lib, err := storage.OpenLibrary(ctx, cfg.Export.ExportDir())
	if err != nil {
		l.Warn("export library unavailable", slog.Any("err", err))
		lib = nil
	} else {
		defer lib.Close()
	}

	opts := server.Options{
		Server:    cfg.Server,
		Editor:    cfg.Editor,
		Export:    cfg.Export,
		Fonts:     loadFonts(cfg, l),
		Telemetry: tel,
		AccessLog: strings.EqualFold(cfg.Logging.Level, "debug"),
		Logger:    applog.WithComponent("server"),
	}
	opts.Library = lib
	if strings.TrimSpace(cfg.Backend.BaseURL) != "" {
		opts.Generator = backend.FromConfig(cfg.Backend, token)
	}
	srv := server.New(opts)

	errc := make(chan error, 1)
	go func() { errc <- srv.Listen(addr) }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	l.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = srv.Shutdown(sctx)
	tel.Flush(sctx)
	tel.Close()
	return err
}

// renderScene exports a saved scene file. The format follows out's extension;
// when out is a directory the file gets the usual thumb_<ms> name.
func renderScene(ctx context.Context, in, out string, cfg config.AppConfig) (string, error) {
	doc, err := scene.LoadFile(in)
	if err != nil {
		return "", err
	}
	e := engine.New(engine.Options{Fonts: loadFonts(cfg, applog.WithComponent("render"))})
	if err := e.Initialize(&engine.RasterHost{}, scene.Width, scene.Height); err != nil {
		return "", err
	}
	defer e.Dispose()
	if err := e.Load(ctx, doc); err != nil {
		var ae *engine.AssetLoadError
		if !errors.As(err, &ae) {
			return "", err
		}
		applog.WithComponent("render").Warn("rendering without an image", slog.String("src", ae.Source))
	}

	format, err := export.ParseFormat(cfg.Export.Format)
	if err != nil {
		format = export.PNG
	}
	if st, err := os.Stat(out); err == nil && st.IsDir() {
		out = filepath.Join(out, export.FileName(format, time.Now()))
	} else if ext := strings.TrimPrefix(filepath.Ext(out), "."); ext != "" {
		if format, err = export.ParseFormat(ext); err != nil {
			return "", err
		}
	}
	data, err := e.Export(ctx, export.Options{Format: format, Quality: cfg.Export.JPEGQuality})
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return "", err
	}
	return out, nil
}

func library(cmd, dir string) error {
	ctx := context.Background()
	lib, err := storage.OpenLibrary(ctx, dir)
	if err != nil {
		return err
	}
	defer lib.Close()
	if cmd == "rescan" {
		n, err := lib.Rescan(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Indexed %d new file(s) in %s\n", n, dir)
		return nil
	}
	entries, err := lib.List(ctx, 0)
	if err != nil {
		return err
	}
	fmt.Printf("Library: %s (%d exports)\n", dir, len(entries))
	for _, e := range entries {
		fmt.Printf("  %s  %-5s %4dx%-4d %8d B  %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Format, e.Width, e.Height, e.Bytes, e.File)
	}
	return nil
}
