/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package server exposes the parser and the local index over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"goscreenplay/internal/backend"
	applog "goscreenplay/internal/log"
	"goscreenplay/internal/schema"
	"goscreenplay/internal/script"
	"goscreenplay/internal/storage"
	"goscreenplay/internal/telemetry"
	"goscreenplay/internal/version"
)

// MaxParseBody caps the request body of POST /api/parse.
const MaxParseBody = 8 << 20

// Options wires the server to its collaborators. Index and Backend are optional.
type Options struct {
	Parser  script.Options
	Workers int
	Index   *storage.Index
	Backend *backend.Store
	// ValidateInput checks parse requests against the raw-pages schema first.
	ValidateInput bool
}

// Server serves the goscreenplay HTTP API.
type Server struct {
	opt    Options
	parser *script.Parser
	log    *slog.Logger
	router chi.Router
}

// New builds the router.
func New(opt Options) *Server {
	s := &Server{
		opt:    opt,
		parser: script.NewParser(opt.Parser),
		log:    applog.WithComponent("server"),
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", s.handleReady)
	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, VersionInfo{Version: version.Version, Commit: version.Commit, String: version.String()})
	})
	r.Route("/api", func(r chi.Router) {
		r.Post("/parse", s.handleParse)
		r.Get("/search", s.handleSearch)
		r.Get("/scripts", s.handleListScripts)
		r.Get("/scripts/{id}", s.handleGetScript)
	})
	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// VersionInfo is the body of GET /version.
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	String  string `json:"string"`
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	ok := true
	if s.opt.Index != nil {
		if err := s.opt.Index.Check(r.Context()); err != nil {
			checks["index"] = err.Error()
			ok = false
		} else {
			checks["index"] = "ok"
		}
	}
	if s.opt.Backend != nil {
		if err := s.opt.Backend.Ping(r.Context()); err != nil {
			checks["backend"] = err.Error()
			ok = false
		} else {
			checks["backend"] = "ok"
		}
	}
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, checks)
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxParseBody))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", MaxParseBody))
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if s.opt.ValidateInput {
		if err := schema.ValidateRawPages(body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	pages, err := script.ReadRawPages(bytes.NewReader(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var ps script.ParsedScript
	if s.opt.Workers > 1 {
		ps, err = s.parser.ParseConcurrent(r.Context(), pages, s.opt.Workers)
	} else {
		ps, err = s.parser.Parse(pages)
	}
	switch {
	case errors.Is(err, script.ErrInvalidPageNumber), errors.Is(err, script.ErrDuplicatePage):
		writeError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	telemetry.ScriptParsed("api", len(ps), ps.ElementCount(), time.Since(start))

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := script.WriteJSON(w, ps, r.URL.Query().Get("indent") != ""); err != nil {
		s.log.Warn("write parse response", slog.Any("err", err))
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.opt.Index == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("no local index configured"))
		return
	}
	q, err := searchQueryFromURL(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.opt.Index.Search(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if res == nil {
		res = []storage.SearchResult{}
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListScripts(w http.ResponseWriter, r *http.Request) {
	if s.opt.Index == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("no local index configured"))
		return
	}
	list, err := s.opt.Index.ListScripts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []storage.ScriptInfo{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetScript(w http.ResponseWriter, r *http.Request) {
	if s.opt.Index == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("no local index configured"))
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid script id: %w", err))
		return
	}
	_, ps, err := s.opt.Index.LoadScript(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = script.WriteJSON(w, ps, false)
}

// searchQueryFromURL reads q, script, type (repeatable or comma separated),
// character, page_from, page_to, limit and offset.
func searchQueryFromURL(r *http.Request) (storage.SearchQuery, error) {
	v := r.URL.Query()
	q := storage.SearchQuery{
		Text:      strings.TrimSpace(v.Get("q")),
		Character: strings.TrimSpace(v.Get("character")),
	}
	for _, t := range v["type"] {
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				q.Types = append(q.Types, part)
			}
		}
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"page_from", &q.PageFrom},
		{"page_to", &q.PageTo},
		{"limit", &q.Limit},
		{"offset", &q.Offset},
	}
	for _, p := range ints {
		raw := strings.TrimSpace(v.Get(p.key))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, fmt.Errorf("invalid %s: %q", p.key, raw)
		}
		*p.dst = n
	}
	if raw := strings.TrimSpace(v.Get("script")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return q, fmt.Errorf("invalid script: %q", raw)
		}
		q.ScriptID = id
	}
	return q, nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("took", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
