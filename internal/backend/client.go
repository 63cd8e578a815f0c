/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package backend talks to the thumbnail generation service: categories,
// image generation, uploads and headline suggestions.
package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gothumb/internal/config"
)

// Client is a minimal HTTP client for the generation service.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new backend client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	b := strings.TrimRight(baseURL, "/")
	return &Client{
		BaseURL: b,
		Token:   token,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// FromConfig builds a client with the configured base URL, timeout and TLS policy.
func FromConfig(cfg config.BackendConfig, token string) *Client {
	c := NewClient(cfg.BaseURL, token)
	c.client.Timeout = cfg.EffectiveTimeout()
	if cfg.TLSInsecure {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed dev servers
		c.client.Transport = tr
	}
	return c
}

// StatusError is a non-2xx response. Detail carries the server's message when it sent one.
type StatusError struct {
	Method string
	Path   string
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("server %s %s: %d %s", e.Method, e.Path, e.Status, e.Detail)
	}
	return fmt.Sprintf("server %s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Method: method, Path: u.Path, Status: resp.StatusCode, Detail: readDetail(resp.Body)}
	}
	dec := json.NewDecoder(resp.Body)
	return dec.Decode(dest)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, dest any) error {
	if in == nil {
		return c.do(ctx, method, path, "", nil, dest)
	}
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return c.do(ctx, method, path, "application/json", bytes.NewReader(b), dest)
}

// readDetail extracts {"detail": "..."} (the service's error shape) or a short body.
func readDetail(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 4096))
	var env struct {
		Detail any `json:"detail"`
		Error  any `json:"error"`
	}
	if json.Unmarshal(b, &env) == nil {
		for _, v := range []any{env.Detail, env.Error} {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(string(b))
}

// Category is one entry of the category picker.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

// Categories lists the available categories.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var list []Category
	if err := c.doJSON(ctx, http.MethodGet, "/api/categories", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Element is a text element the service extracted from a generated image.
// Absent fields are nil so the editor can apply its own defaults.
type Element struct {
	ID          string   `json:"id,omitempty"`
	Text        string   `json:"text"`
	X           *float64 `json:"x,omitempty"`
	Y           *float64 `json:"y,omitempty"`
	FontSize    *float64 `json:"fontSize,omitempty"`
	FontFamily  string   `json:"fontFamily,omitempty"`
	Fill        string   `json:"fill,omitempty"`
	Stroke      *string  `json:"stroke,omitempty"`
	StrokeWidth *float64 `json:"strokeWidth,omitempty"`
	FontWeight  string   `json:"fontWeight,omitempty"`
}

// GenerateResult is the service's answer: a background image and its text elements.
type GenerateResult struct {
	URL      string         `json:"url"`
	Elements []Element      `json:"elements"`
	Analysis map[string]any `json:"ref_analysis,omitempty"`
}

// File is an uploaded image.
type File struct {
	Name string
	Data []byte
}

// GenerateRequest is the multipart form of /api/generate.
type GenerateRequest struct {
	Category   string
	Prompt     string
	Person     *File
	Reference  *File
	Asset      *File
	Similarity int
}

// Generate asks the service for a new thumbnail.
func (c *Client) Generate(ctx context.Context, in GenerateRequest) (*GenerateResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"objective", in.Category},
		{"prompt", in.Prompt},
		{"similarity", strconv.Itoa(in.Similarity)},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, err
		}
	}
	files := []struct {
		field string
		f     *File
	}{{"person_image", in.Person}, {"reference_image", in.Reference}, {"asset_image", in.Asset}}
	for _, p := range files {
		if p.f == nil {
			continue
		}
		if err := writeFile(mw, p.field, p.f); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	var res GenerateResult
	if err := c.do(ctx, http.MethodPost, "/api/generate", mw.FormDataContentType(), &buf, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func writeFile(mw *multipart.Writer, field string, f *File) error {
	name := f.Name
	if name == "" {
		name = field
	}
	w, err := mw.CreateFormFile(field, name)
	if err != nil {
		return err
	}
	_, err = w.Write(f.Data)
	return err
}

// Upload sends one image and returns the URL the editor can load it from.
func (c *Client) Upload(ctx context.Context, f File) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := writeFile(mw, "file", &f); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}
	var res struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/upload", mw.FormDataContentType(), &buf, &res); err != nil {
		return "", err
	}
	if res.URL == "" {
		return "", fmt.Errorf("upload: empty url in response")
	}
	return res.URL, nil
}

// Headlines requests headline suggestions for a topic within a category.
func (c *Client) Headlines(ctx context.Context, topic, category string) ([]string, error) {
	in := struct {
		Topic    string `json:"topic"`
		Category string `json:"category"`
	}{topic, category}
	var res struct {
		Headlines []string `json:"headlines"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/headlines", in, &res); err != nil {
		return nil, err
	}
	return res.Headlines, nil
}
