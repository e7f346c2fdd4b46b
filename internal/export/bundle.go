/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "goscreenplay/internal/log"
	"goscreenplay/internal/script"
)

// Entry names inside a bundle archive.
const (
	BundleManifest = "bundle.manifest.txt"
	BundleJSON     = "script.json"
)

// ErrNotBundle is returned when an archive lacks the parsed script entry.
var ErrNotBundle = errors.New("export: archive is not a screenplay bundle")

// WriteBundle zips every export format of ps into destZip, plus a small
// manifest for quick human inspection.
func WriteBundle(ps script.ParsedScript, destZip, title string) error {
	l := applog.WithOperation(applog.WithComponent("export"), "bundle").With(slog.String("zip", destZip))
	if strings.TrimSpace(destZip) == "" {
		return errors.New("destZip is required")
	}
	if err := os.MkdirAll(filepath.Dir(destZip), 0o755); err != nil {
		return fmt.Errorf("ensure zip dir: %w", err)
	}

	entries := []struct {
		name string
		fill func(io.Writer) error
	}{
		{BundleManifest, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "GoScreenplay Bundle\nCreated: %s\nTitle: %s\nPages: %d\nElements: %d\n",
				time.Now().Format(time.RFC3339), title, len(ps), ps.ElementCount())
			return err
		}},
		{BundleJSON, func(w io.Writer) error { return script.WriteJSON(w, ps, true) }},
		{"script.md", func(w io.Writer) error { _, err := w.Write(Markdown(ps)); return err }},
		{"script.html", func(w io.Writer) error { return WriteHTML(w, ps, HTMLOptions{Title: title, Standalone: true}) }},
		{"script.pdf", func(w io.Writer) error { return WritePDF(w, ps, PDFOptions{Title: title, PageNumbers: true}) }},
	}

	err := writeFileAtomic(destZip, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		for _, e := range entries {
			fw, err := zw.Create(e.name)
			if err != nil {
				return fmt.Errorf("add %s: %w", e.name, err)
			}
			if err := e.fill(fw); err != nil {
				return fmt.Errorf("write %s: %w", e.name, err)
			}
		}
		return zw.Close()
	})
	if err != nil {
		l.Error("bundle failed", slog.Any("err", err))
		return err
	}
	l.Info("bundle written", slog.Int("entries", len(entries)))
	return nil
}

// OpenBundle reads the parsed script back out of a bundle written by WriteBundle.
func OpenBundle(zipPath string) (script.ParsedScript, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	defer func() { _ = r.Close() }()
	for _, f := range r.File {
		if f.Name != BundleJSON {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", BundleJSON, err)
		}
		defer func() { _ = rc.Close() }()
		return script.ReadJSON(rc)
	}
	return nil, ErrNotBundle
}
