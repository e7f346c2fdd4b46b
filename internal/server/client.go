/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"goscreenplay/internal/script"
	"goscreenplay/internal/storage"
)

// Client is a minimal HTTP client for a running goscreenplay server.
type Client struct {
	BaseURL string
	Token   string // bearer token, sent when set
	client  *http.Client
}

// NewClient creates a new client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	b := strings.TrimRight(baseURL, "/")
	return &Client{
		BaseURL: b,
		Token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		if json.NewDecoder(resp.Body).Decode(&eb) == nil && eb.Error != "" {
			return fmt.Errorf("server %s %s: %s: %s", method, u.Path, resp.Status, eb.Error)
		}
		return fmt.Errorf("server %s %s: %s", method, u.Path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// Version returns the server's build information.
func (c *Client) Version(ctx context.Context) (VersionInfo, error) {
	var v VersionInfo
	err := c.doJSON(ctx, http.MethodGet, "/version", nil, &v)
	return v, err
}

// Parse sends raw pages to the server and returns the parsed script.
func (c *Client) Parse(ctx context.Context, pages []script.RawPage) (script.ParsedScript, error) {
	buf, err := json.Marshal(pages)
	if err != nil {
		return nil, fmt.Errorf("encode raw pages: %w", err)
	}
	var ps script.ParsedScript
	if err := c.doJSON(ctx, http.MethodPost, "/api/parse", bytes.NewReader(buf), &ps); err != nil {
		return nil, err
	}
	return ps, nil
}

// Search runs a search against the server's local index.
func (c *Client) Search(ctx context.Context, q storage.SearchQuery) ([]storage.SearchResult, error) {
	v := url.Values{}
	if q.Text != "" {
		v.Set("q", q.Text)
	}
	if q.Character != "" {
		v.Set("character", q.Character)
	}
	if len(q.Types) > 0 {
		v.Set("type", strings.Join(q.Types, ","))
	}
	if q.ScriptID > 0 {
		v.Set("script", strconv.FormatInt(q.ScriptID, 10))
	}
	for key, n := range map[string]int{"page_from": q.PageFrom, "page_to": q.PageTo, "limit": q.Limit, "offset": q.Offset} {
		if n > 0 {
			v.Set(key, strconv.Itoa(n))
		}
	}
	path := "/api/search"
	if enc := v.Encode(); enc != "" {
		path += "?" + enc
	}
	var res []storage.SearchResult
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// ListScripts returns the scripts stored in the server's index.
func (c *Client) ListScripts(ctx context.Context) ([]storage.ScriptInfo, error) {
	var list []storage.ScriptInfo
	if err := c.doJSON(ctx, http.MethodGet, "/api/scripts", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}
