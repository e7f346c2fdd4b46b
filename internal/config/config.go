/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"goscreenplay/internal/script"
)

// AppConfig is the user-editable configuration persisted as YAML in the user scope.
// Resolution order: defaults < config file < .env file < process environment.
// The Postgres password is never written to the file; it lives in the OS keychain.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type ParserConfig struct {
	RunningHeaders  []string `yaml:"running_headers"`
	HeaderMatch     string   `yaml:"header_match"` // "equals" | "contains"
	CharacterIndent int      `yaml:"character_indent"`
	Workers         int      `yaml:"workers"` // 0 = one goroutine per page
}

type IndexConfig struct {
	Path string `yaml:"path"`
}

type BackendConfig struct {
	DSN       string `yaml:"dsn"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type GeneralConfig struct {
	TelemetryOptIn bool `yaml:"telemetry_opt_in"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Parser        ParserConfig  `yaml:"parser"`
	Index         IndexConfig   `yaml:"index"`
	Backend       BackendConfig `yaml:"backend"`
	Server        ServerConfig  `yaml:"server"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Parser:        ParserConfig{HeaderMatch: string(script.HeaderEquals), CharacterIndent: script.DefaultCharacterIndent, Workers: 0},
		Backend:       BackendConfig{TimeoutMs: 10000},
		Server:        ServerConfig{Addr: ":8080"},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath      = "GSP_CONFIG"
	EnvRunningHeaders  = "GSP_RUNNING_HEADERS" // comma separated
	EnvHeaderMatch     = "GSP_HEADER_MATCH"
	EnvCharacterIndent = "GSP_CHARACTER_INDENT"
	EnvWorkers         = "GSP_WORKERS"
	EnvIndexPath       = "GSP_INDEX_PATH"
	EnvPGDSN           = "GSP_PG_DSN"
	EnvDatabaseURL     = "DATABASE_URL"
	EnvBackendTimeout  = "GSP_BACKEND_TIMEOUT_MS"
	EnvAddr            = "GSP_ADDR"
	EnvTelemetryOptIn  = "GSP_TELEMETRY_OPT_IN"
	EnvLogLevel        = "GSP_LOG_LEVEL"
	EnvLogFormat       = "GSP_LOG_FORMAT"
	EnvLogSource       = "GSP_LOG_SOURCE"
	EnvLogFile         = "GSP_LOG_FILE"
)

// DotEnvFile is loaded from the working directory when present.
var DotEnvFile = ".env"

// ConfigDir returns the per-user configuration directory.
func ConfigDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "GoScreenplay")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "GoScreenplay")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "goscreenplay")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "goscreenplay")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// ConfigPath returns the config file path, honoring GSP_CONFIG.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the .env file and user config file (if present), applies defaults,
// and merges environment overrides. The backend password is read from the
// keychain and returned separately.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, "", fmt.Errorf("load %s: %w", DotEnvFile, err)
	}
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, fs.ErrNotExist):
		return cfg, "", fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	if cfg.Index.Path == "" {
		if dir, err := ConfigDir(); err == nil {
			cfg.Index.Path = filepath.Join(dir, "index.sqlite")
		}
	}
	pw, _ := tokenStore.Get(keyringService, keyringPassword)
	return cfg, pw, nil
}

// Save writes the user config YAML and stores password in the keychain when non-empty.
func Save(cfg AppConfig, password string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if password != "" {
		if err := tokenStore.Set(keyringService, keyringPassword, password); err != nil {
			return fmt.Errorf("store backend password: %w", err)
		}
	}
	return nil
}

func mergeInto(dst, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if len(src.Parser.RunningHeaders) > 0 {
		dst.Parser.RunningHeaders = append([]string(nil), src.Parser.RunningHeaders...)
	}
	if s := strings.TrimSpace(src.Parser.HeaderMatch); s != "" {
		dst.Parser.HeaderMatch = strings.ToLower(s)
	}
	if src.Parser.CharacterIndent > 0 {
		dst.Parser.CharacterIndent = src.Parser.CharacterIndent
	}
	if src.Parser.Workers > 0 {
		dst.Parser.Workers = src.Parser.Workers
	}
	if s := strings.TrimSpace(src.Index.Path); s != "" {
		dst.Index.Path = s
	}
	if s := strings.TrimSpace(src.Backend.DSN); s != "" {
		dst.Backend.DSN = s
	}
	if src.Backend.TimeoutMs > 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	if s := strings.TrimSpace(src.Server.Addr); s != "" {
		dst.Server.Addr = s
	}
	if s := strings.TrimSpace(src.Logging.Level); s != "" {
		dst.Logging.Level = strings.ToLower(s)
	}
	if s := strings.TrimSpace(src.Logging.Format); s != "" {
		dst.Logging.Format = strings.ToLower(s)
	}
	dst.Logging.Source = src.Logging.Source
	if s := strings.TrimSpace(src.Logging.File); s != "" {
		dst.Logging.File = s
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := env(EnvRunningHeaders); v != "" {
		var hs []string
		for _, h := range strings.Split(v, ",") {
			if h = strings.TrimSpace(h); h != "" {
				hs = append(hs, h)
			}
		}
		cfg.Parser.RunningHeaders = hs
	}
	if v := env(EnvHeaderMatch); v != "" {
		cfg.Parser.HeaderMatch = strings.ToLower(v)
	}
	if n, ok := envInt(EnvCharacterIndent); ok && n > 0 {
		cfg.Parser.CharacterIndent = n
	}
	if n, ok := envInt(EnvWorkers); ok && n >= 0 {
		cfg.Parser.Workers = n
	}
	if v := env(EnvIndexPath); v != "" {
		cfg.Index.Path = v
	}
	if v := env(EnvDatabaseURL); v != "" {
		cfg.Backend.DSN = v
	}
	if v := env(EnvPGDSN); v != "" {
		cfg.Backend.DSN = v
	}
	if n, ok := envInt(EnvBackendTimeout); ok && n > 0 {
		cfg.Backend.TimeoutMs = n
	}
	if v := env(EnvAddr); v != "" {
		cfg.Server.Addr = v
	}
	if v := env(EnvTelemetryOptIn); v != "" {
		cfg.General.TelemetryOptIn = parseBool(v)
	}
	if v := env(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := env(EnvLogFormat); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := env(EnvLogSource); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := env(EnvLogFile); v != "" {
		cfg.Logging.File = v
	}
}

func env(key string) string { return strings.TrimSpace(os.Getenv(key)) }

func envInt(key string) (int, bool) {
	v := env(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseBool(v string) bool {
	lv := strings.ToLower(strings.TrimSpace(v))
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

// ScriptOptions converts the parser section into classifier options.
func (p ParserConfig) ScriptOptions() script.Options {
	return script.Options{
		RunningHeaders:  append([]string(nil), p.RunningHeaders...),
		HeaderMatch:     script.HeaderMatch(p.HeaderMatch),
		CharacterIndent: p.CharacterIndent,
	}
}

// Timeout returns the backend timeout, falling back to the default.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}
