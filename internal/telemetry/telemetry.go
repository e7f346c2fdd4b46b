/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package telemetry sends anonymous, opt‑in usage events and crash reports.
// Nothing is sent unless the user opted in and an endpoint is configured.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	applog "goscreenplay/internal/log"
	"goscreenplay/internal/version"
)

const (
	EnvOptIn     = "GSP_TELEMETRY_OPT_IN"
	EnvURL       = "GSP_TELEMETRY_URL"
	EnvCrashURL  = "GSP_CRASH_UPLOAD_URL"
	EnvTimeoutMs = "GSP_TELEMETRY_TIMEOUT_MS"
	EnvDebug     = "GSP_TELEMETRY_DEBUG"
)

const queueSize = 64

// Config controls where events and crash reports go.
// Events carry counts and durations only, never screenplay text.
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration // per request, default 1.5s
	DebugLogging bool
}

// FromEnv reads the GSP_TELEMETRY_* variables and GSP_CRASH_UPLOAD_URL.
func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv(EnvOptIn)),
		EventsURL:    strings.TrimSpace(os.Getenv(EnvURL)),
		CrashURL:     strings.TrimSpace(os.Getenv(EnvCrashURL)),
		Timeout:      1500 * time.Millisecond,
		DebugLogging: os.Getenv(EnvDebug) != "",
	}
	if ms := strings.TrimSpace(os.Getenv(EnvTimeoutMs)); ms != "" {
		if v, err := time.ParseDuration(ms + "ms"); err == nil && v > 0 {
			cfg.Timeout = v
		}
	}
	return cfg
}

// WithOptIn returns FromEnv with OptIn forced on when the user opted in through
// the config file. The environment can enable telemetry but never disable a
// config opt-in.
func WithOptIn(optIn bool) Config {
	cfg := FromEnv()
	cfg.OptIn = cfg.OptIn || optIn
	return cfg
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

type delivery struct {
	url         string
	contentType string
	body        []byte
	what        string
}

// Client delivers events from a single background goroutine.
// Sends never block the caller: when the queue is full the item is dropped.
type Client struct {
	cfg     Config
	log     *slog.Logger
	http    *http.Client
	queue   chan delivery
	pending atomic.Int64
	stop    chan struct{}
	once    sync.Once
}

// New starts a client. Call Close when done.
func New(cfg Config) *Client {
	c := &Client{
		cfg:   cfg,
		log:   applog.WithComponent("telemetry"),
		http:  &http.Client{Timeout: cfg.Timeout},
		queue: make(chan delivery, queueSize),
		stop:  make(chan struct{}),
	}
	go c.run()
	return c
}

// Enabled reports whether events will actually be sent.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Event queues a named event. props must not contain personal data or script content.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	payload := make(map[string]any, len(props)+5)
	for k, v := range props {
		payload[k] = v
	}
	payload["name"] = name
	payload["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	payload["version"] = version.String()
	payload["os"] = runtime.GOOS
	payload["arch"] = runtime.GOARCH
	buf, err := json.Marshal(payload)
	if err != nil {
		return
	}
	c.enqueue(delivery{url: c.cfg.EventsURL, contentType: "application/json", body: buf, what: "event"})
}

// ScriptParsed reports a finished parse: page and element counts plus the
// elapsed time. Content never leaves the machine.
func (c *Client) ScriptParsed(source string, pages, elements int, took time.Duration) {
	c.Event("script_parsed", map[string]any{
		"source":   source,
		"pages":    pages,
		"elements": elements,
		"ms":       took.Milliseconds(),
	})
}

// UploadCrash queues a crash report for the crash endpoint.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	c.enqueue(delivery{
		url:         c.cfg.CrashURL,
		contentType: "text/plain; charset=utf-8",
		body:        append([]byte(nil), report...),
		what:        "crash report",
	})
}

func (c *Client) enqueue(d delivery) {
	c.pending.Add(1)
	select {
	case c.queue <- d:
	default:
		c.pending.Add(-1)
	}
}

// Flush waits until queued items are delivered, ctx is done, or a short
// deadline passes.
func (c *Client) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	deadline := time.NewTimer(500 * time.Millisecond)
	defer deadline.Stop()
	tick := time.NewTicker(25 * time.Millisecond)
	defer tick.Stop()
	for c.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-tick.C:
		}
	}
}

// Close stops the background goroutine. Queued items are discarded.
func (c *Client) Close() { c.once.Do(func() { close(c.stop) }) }

func (c *Client) run() {
	for {
		select {
		case <-c.stop:
			return
		case d := <-c.queue:
			c.deliver(d)
			c.pending.Add(-1)
		}
	}
}

func (c *Client) deliver(d delivery) {
	req, err := http.NewRequest(http.MethodPost, d.url, bytes.NewReader(d.body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", d.contentType)
	resp, err := c.http.Do(req)
	if err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug(d.what+" send failed", slog.Any("err", err))
		}
		return
	}
	_ = resp.Body.Close()
	if c.cfg.DebugLogging {
		c.log.Debug(d.what+" sent", slog.Int("status", resp.StatusCode))
	}
}

var (
	defaultClient *Client
	defaultOnce   sync.Once
	defaultMu     sync.Mutex
)

// InitDefault installs a default client built from the environment, once.
func InitDefault() {
	defaultOnce.Do(func() {
		defaultMu.Lock()
		defer defaultMu.Unlock()
		if defaultClient == nil {
			defaultClient = New(FromEnv())
		}
	})
}

// NewDefault replaces the default client.
func NewDefault(cfg Config) {
	defaultOnce.Do(func() {})
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient != nil {
		defaultClient.Close()
	}
	defaultClient = New(cfg)
}

func def() *Client {
	InitDefault()
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultClient
}

// Enabled reports whether the default client sends events.
func Enabled() bool { return def().Enabled() }

// Event queues an event on the default client.
func Event(name string, props map[string]any) { def().Event(name, props) }

// ScriptParsed reports a parse on the default client.
func ScriptParsed(source string, pages, elements int, took time.Duration) {
	def().ScriptParsed(source, pages, elements, took)
}

// UploadCrash queues a crash report on the default client.
func UploadCrash(report []byte) { def().UploadCrash(report) }

// Flush drains the default client's queue.
func Flush(ctx context.Context) { def().Flush(ctx) }
