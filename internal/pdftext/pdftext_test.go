/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package pdftext

import (
	"bytes"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"goscreenplay/internal/script"
)

const margin = 108.0 // 1.5in left margin

// glyphs splits s into one Run per rune at column col, like the pdf package reports them.
func glyphs(col int, y float64, s string) []Run {
	var out []Run
	for i, r := range []rune(s) {
		out = append(out, Run{X: margin + float64(col+i)*7.2, Y: y, S: string(r)})
	}
	return out
}

func TestLinesRebuildsIndentation(t *testing.T) {
	var runs []Run
	// deliberately out of order
	runs = append(runs, glyphs(10, 676, "What a day.")...)
	runs = append(runs, glyphs(0, 700, "INT. HOUSE - DAY")...)
	runs = append(runs, glyphs(22, 688, "GREG")...)
	runs = append(runs, glyphs(0, 652, "Greg leaves.")...)

	got := Lines(runs, DefaultLayout())
	want := []string{
		"INT. HOUSE - DAY",
		strings.Repeat(" ", 22) + "GREG",
		strings.Repeat(" ", 10) + "What a day.",
		"",
		"Greg leaves.",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Lines mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestLinesWordRunsAndJitter(t *testing.T) {
	runs := []Run{
		{X: margin + 5*7.2, Y: 500.8, S: "hello"},
		{X: margin, Y: 500, S: "Oh,"},
		{X: margin + 11*7.2, Y: 499.6, S: "Mark."},
	}
	got := Lines(runs, Layout{})
	want := []string{"Oh,  hello Mark."}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Lines = %q, want %q", got, want)
	}
}

func TestLinesEmptyPage(t *testing.T) {
	if got := Lines([]Run{{X: 1, Y: 1, S: ""}, {X: 2, Y: 2, S: "\n"}}, DefaultLayout()); got != nil {
		t.Fatalf("expected no lines, got %q", got)
	}
}

func TestExtractedLinesClassify(t *testing.T) {
	var runs []Run
	runs = append(runs, glyphs(22, 700, "GREG")...)
	runs = append(runs, glyphs(10, 688, "What a day.")...)
	runs = append(runs, glyphs(0, 676, "He sits.")...)
	pages := []script.RawPage{{Number: 2, Lines: Lines(runs, DefaultLayout())}}
	ps, err := script.Parse(pages, script.Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(ps) != 1 {
		t.Fatalf("expected one page, got %+v", ps)
	}
	want := []script.Element{
		{Kind: script.Character, Content: "GREG"},
		{Kind: script.Dialogue, Content: "What a day."},
		{Kind: script.Action, Content: "He sits."},
	}
	if !reflect.DeepEqual(ps[0].Elements, want) {
		t.Fatalf("elements = %+v, want %+v", ps[0].Elements, want)
	}
}

func TestExtractRejectsGarbage(t *testing.T) {
	data := []byte("this is not a pdf")
	if _, err := Extract(bytes.NewReader(data), int64(len(data)), DefaultLayout()); !errors.Is(err, ErrDocumentAccess) {
		t.Fatalf("expected ErrDocumentAccess, got %v", err)
	}
	if _, err := ExtractFile(filepath.Join(t.TempDir(), "missing.pdf"), DefaultLayout()); !errors.Is(err, ErrDocumentAccess) {
		t.Fatalf("expected ErrDocumentAccess for missing file, got %v", err)
	}
}
