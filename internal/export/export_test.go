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
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"goscreenplay/internal/script"
)

func sampleScript() script.ParsedScript {
	return script.ParsedScript{
		{Number: 1, Elements: []script.Element{
			{Kind: script.Action, Content: "THE DISASTER ARTIST by Scott Neustadter & Michael H. Weber"},
		}},
		{Number: 2, Elements: []script.Element{
			{Kind: script.SceneHeading, Content: "INT. HOUSE - DAY"},
			{Kind: script.Action, Content: "Greg walks in, looking *tired*."},
			{Kind: script.Character, Content: "GREG"},
			{Kind: script.Parenthetical, Content: "sighing"},
			{Kind: script.Dialogue, Content: "You’re tearing me apart <3"},
			{Kind: script.Transition, Content: "CUT TO:"},
		}},
	}
}

func TestMarkdownLayout(t *testing.T) {
	md := string(Markdown(sampleScript()))
	for _, want := range []string{
		"## Page 1\n\n",
		"## Page 2\n\n### INT\\. HOUSE \\- DAY\n\n",
		"looking \\*tired\\*\\.\n\n",
		"**GREG**\n\n> *\\(sighing\\)*\n\n> You’re tearing me apart \\<3\n\n",
		"*CUT TO:*\n\n",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q in:\n%s", want, md)
		}
	}
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHTML(&buf, sampleScript(), HTMLOptions{Title: "Tears & <Laughs>", Standalone: true}); err != nil {
		t.Fatalf("WriteHTML: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"<title>Tears &amp; &lt;Laughs&gt;</title>",
		"<h3>INT. HOUSE - DAY</h3>",
		"<strong>GREG</strong>",
		"<blockquote>",
		"<em>(sighing)</em>",
		"&lt;3",
		"Scott Neustadter &amp; Michael H. Weber",
		"looking *tired*.",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("html missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "<em>tired</em>") {
		t.Fatalf("content must not be interpreted as markup:\n%s", out)
	}

	buf.Reset()
	if err := WriteHTML(&buf, sampleScript(), HTMLOptions{}); err != nil {
		t.Fatalf("WriteHTML: %v", err)
	}
	if strings.Contains(buf.String(), "<!DOCTYPE") {
		t.Fatalf("fragment output must not contain a document wrapper")
	}
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePDF(&buf, sampleScript(), PDFOptions{Title: "Test", PageNumbers: true}); err != nil {
		t.Fatalf("WritePDF: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output is not a PDF")
	}
	if n := bytes.Count(buf.Bytes(), []byte("/Type /Page\n")); n != 2 {
		t.Fatalf("expected 2 pages, got %d", n)
	}

	buf.Reset()
	if err := WritePDF(&buf, sampleScript(), PDFOptions{Pages: []int{2}}); err != nil {
		t.Fatalf("WritePDF: %v", err)
	}
	if n := bytes.Count(buf.Bytes(), []byte("/Type /Page\n")); n != 1 {
		t.Fatalf("expected 1 page with filter, got %d", n)
	}

	buf.Reset()
	if err := WritePDF(&buf, script.ParsedScript{}, PDFOptions{}); err != nil {
		t.Fatalf("WritePDF on empty script: %v", err)
	}
}

func TestExportDispatchAndAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"out.pdf", "out.html", "out.md", "out.json"} {
		p := filepath.Join(dir, "nested", name)
		if err := Export(sampleScript(), FormatFromPath(p), p, "Sample"); err != nil {
			t.Fatalf("Export(%s): %v", name, err)
		}
		st, err := os.Stat(p)
		if err != nil || st.Size() == 0 {
			t.Fatalf("missing or empty %s: %v", p, err)
		}
	}
	entries, _ := os.ReadDir(filepath.Join(dir, "nested"))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
	if err := Export(sampleScript(), "docx", filepath.Join(dir, "x.docx"), ""); err == nil {
		t.Fatalf("expected error for unknown format")
	}
	data, err := os.ReadFile(filepath.Join(dir, "nested", "out.json"))
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	back, err := script.ReadJSON(bytes.NewReader(data))
	if err != nil || back.ElementCount() != sampleScript().ElementCount() {
		t.Fatalf("exported json not readable: %v", err)
	}
}

func TestBatchExport_Presets(t *testing.T) {
	dir := t.TempDir()
	written, err := BatchExport(sampleScript(), BatchOptions{Preset: PresetWeb, OutDir: filepath.Join(dir, "web"), Name: "room"})
	if err != nil {
		t.Fatalf("batch export web: %v", err)
	}
	want := []string{filepath.Join(dir, "web", "room.html"), filepath.Join(dir, "web", "room.json")}
	if len(written) != len(want) {
		t.Fatalf("written = %v, want %v", written, want)
	}
	for i, p := range want {
		if written[i] != p {
			t.Fatalf("written[%d] = %s, want %s", i, written[i], p)
		}
		if st, err := os.Stat(p); err != nil || st.Size() == 0 {
			t.Fatalf("missing %s: %v", p, err)
		}
	}

	written, err = BatchExport(sampleScript(), BatchOptions{Preset: PresetPrint, OutDir: filepath.Join(dir, "print")})
	if err != nil {
		t.Fatalf("batch export print: %v", err)
	}
	if len(written) != 1 || filepath.Base(written[0]) != "script.pdf" {
		t.Fatalf("unexpected print output: %v", written)
	}

	if _, err := BatchExport(sampleScript(), BatchOptions{Formats: []string{"png"}, OutDir: dir}); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestBundleRoundTrip(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "out", "pilot.zip")
	if err := WriteBundle(sampleScript(), zipPath, "Pilot"); err != nil {
		t.Fatalf("WriteBundle: %v", err)
	}
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	names := map[string]bool{}
	for _, f := range r.File {
		names[f.Name] = true
	}
	_ = r.Close()
	for _, want := range []string{BundleManifest, BundleJSON, "script.md", "script.html", "script.pdf"} {
		if !names[want] {
			t.Fatalf("bundle missing %s: %v", want, names)
		}
	}

	ps, err := OpenBundle(zipPath)
	if err != nil {
		t.Fatalf("OpenBundle: %v", err)
	}
	if !reflect.DeepEqual(ps, sampleScript()) {
		t.Fatalf("bundle script differs: %+v", ps)
	}

	plain := filepath.Join(dir, "plain.zip")
	f, err := os.Create(plain)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	_, _ = zw.Create("readme.txt")
	_ = zw.Close()
	_ = f.Close()
	if _, err := OpenBundle(plain); !errors.Is(err, ErrNotBundle) {
		t.Fatalf("expected ErrNotBundle, got %v", err)
	}
}

func TestWriteHTMLSanitizes(t *testing.T) {
	ps := script.ParsedScript{{Number: 1, Elements: []script.Element{
		{Kind: script.Action, Content: `<script>alert("x")</script> [click](javascript:alert(1))`},
	}}}
	var buf bytes.Buffer
	if err := WriteHTML(&buf, ps, HTMLOptions{}); err != nil {
		t.Fatalf("WriteHTML: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "<script>") || strings.Contains(out, `href="javascript:`) {
		t.Fatalf("unsafe markup survived:\n%s", out)
	}
}
