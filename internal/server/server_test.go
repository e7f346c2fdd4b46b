/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"goscreenplay/internal/script"
	"goscreenplay/internal/storage"
)

const rawPages = `[
  {"page": 3, "lines": ["                         GREG", "          It’s <late> & dark.", "   CUT TO:"]},
  {"page": 1, "lines": ["   INT. HOUSE - DAY", "", "   Greg walks in."]},
  {"page": 2, "lines": ["   ", "2"]}
]`

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newTestServer(t *testing.T, opt Options) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(opt).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func openIndex(t *testing.T) *storage.Index {
	t.Helper()
	idx, err := storage.OpenIndex(filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestHealthAndVersion(t *testing.T) {
	srv := newTestServer(t, Options{})
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status %d", resp.StatusCode)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		t.Fatalf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}

	v, err := NewClient(srv.URL+"/", "").Version(testCtx(t))
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v.Version == "" || !strings.HasPrefix(v.String, "goscreenplay ") {
		t.Fatalf("unexpected version: %+v", v)
	}
}

func TestParseEndpoint(t *testing.T) {
	for _, workers := range []int{1, 4} {
		srv := newTestServer(t, Options{Workers: workers, ValidateInput: true})
		resp, err := http.Post(srv.URL+"/api/parse", "application/json", strings.NewReader(rawPages))
		if err != nil {
			t.Fatalf("POST /api/parse: %v", err)
		}
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("workers=%d: status %d: %s", workers, resp.StatusCode, buf.String())
		}
		body := buf.String()
		if !strings.Contains(body, "It’s <late> & dark.") {
			t.Fatalf("content must be written verbatim: %s", body)
		}
		ps, err := script.ReadJSON(strings.NewReader(body))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(ps) != 2 || ps[0].Number != 1 || ps[1].Number != 3 {
			t.Fatalf("workers=%d: unexpected pages: %+v", workers, ps)
		}
		if ps[0].Elements[0].Kind != script.SceneHeading || ps[1].Elements[0].Kind != script.Character {
			t.Fatalf("workers=%d: unexpected kinds: %+v", workers, ps)
		}
	}
}

func TestParseEndpointRejects(t *testing.T) {
	srv := newTestServer(t, Options{ValidateInput: true})
	cases := map[string]string{
		"not json":       `{`,
		"schema":         `[{"page":1,"lines":[1]}]`,
		"duplicate page": `[{"page":1,"lines":["a"]},{"page":1,"lines":["b"]}]`,
	}
	for name, body := range cases {
		resp, err := http.Post(srv.URL+"/api/parse", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		var eb errorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest || eb.Error == "" {
			t.Fatalf("%s: expected 400 with error body, got %d %+v", name, resp.StatusCode, eb)
		}
	}

	big := bytes.Repeat([]byte(" "), MaxParseBody+1)
	rec := httptest.NewRecorder()
	New(Options{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/parse", bytes.NewReader(big)))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestClientParse(t *testing.T) {
	srv := newTestServer(t, Options{})
	ps, err := NewClient(srv.URL, "").Parse(testCtx(t), []script.RawPage{
		{Number: 1, Lines: []string{"   EXT. PARK - DAY", "   Birds."}},
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(ps) != 1 || len(ps[0].Elements) != 2 || ps[0].Elements[1].Content != "Birds." {
		t.Fatalf("unexpected result: %+v", ps)
	}
}

func TestSearchAndScripts(t *testing.T) {
	idx := openIndex(t)
	ctx := testCtx(t)
	id, err := idx.SaveScript(ctx, "pilot", script.ParsedScript{
		{Number: 1, Elements: []script.Element{
			{Kind: script.SceneHeading, Content: "INT. DINER - NIGHT"},
			{Kind: script.Character, Content: "ROSE"},
			{Kind: script.Dialogue, Content: "More coffee, please."},
			{Kind: script.Action, Content: "The coffee machine hisses."},
		}},
	})
	if err != nil {
		t.Fatalf("SaveScript: %v", err)
	}
	srv := newTestServer(t, Options{Index: idx})
	c := NewClient(srv.URL, "")

	res, err := c.Search(ctx, storage.SearchQuery{Text: "coffee"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 hits, got %+v", res)
	}
	res, err = c.Search(ctx, storage.SearchQuery{Character: "rose"})
	if err != nil {
		t.Fatalf("Search by character: %v", err)
	}
	if len(res) != 1 || res[0].Content != "More coffee, please." || res[0].ScriptName != "pilot" {
		t.Fatalf("unexpected character hits: %+v", res)
	}

	list, err := c.ListScripts(ctx)
	if err != nil {
		t.Fatalf("ListScripts: %v", err)
	}
	if len(list) != 1 || list[0].ID != id || list[0].Elements != 4 {
		t.Fatalf("unexpected scripts: %+v", list)
	}

	resp, err := http.Get(srv.URL + "/api/scripts/999")
	if err != nil {
		t.Fatalf("GET missing script: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/search?limit=abc")
	if err != nil {
		t.Fatalf("GET bad limit: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz status %d", resp.StatusCode)
	}
}

func TestSearchWithoutIndex(t *testing.T) {
	srv := newTestServer(t, Options{})
	_, err := NewClient(srv.URL, "").Search(testCtx(t), storage.SearchQuery{Text: "x"})
	if err == nil || !strings.Contains(err.Error(), "no local index") {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(Options{}).ListenAndServe(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ListenAndServe: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}
