/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package pdftext turns a screenplay PDF into layout-preserving text lines per page.
// Indentation is rebuilt from glyph X positions, because the classifier relies on it
// to tell character cues apart from dialogue.
package pdftext

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	applog "goscreenplay/internal/log"
	"goscreenplay/internal/script"
)

// ErrDocumentAccess reports a PDF that cannot be opened or read.
var ErrDocumentAccess = errors.New("pdftext: document not readable")

// Layout tunes the row grouping and whitespace reconstruction.
// Screenplays are set in Courier 12pt: 10 characters per inch, 6 lines per inch.
type Layout struct {
	CharWidth    float64 // points per character column
	LineHeight   float64 // points per text line
	RowTolerance float64 // max Y distance for runs on the same row
}

// DefaultLayout matches the Courier 12pt screenplay convention.
func DefaultLayout() Layout {
	return Layout{CharWidth: 7.2, LineHeight: 12, RowTolerance: 2.5}
}

func (l Layout) normalized() Layout {
	d := DefaultLayout()
	if l.CharWidth <= 0 {
		l.CharWidth = d.CharWidth
	}
	if l.LineHeight <= 0 {
		l.LineHeight = d.LineHeight
	}
	if l.RowTolerance <= 0 {
		l.RowTolerance = d.RowTolerance
	}
	return l
}

// Run is one positioned piece of text on a page (PDF user space, origin bottom-left).
type Run struct {
	X, Y float64
	S    string
}

// ExtractFile reads every page of the PDF at path.
func ExtractFile(path string, lay Layout) ([]script.RawPage, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDocumentAccess, path, err)
	}
	defer f.Close()
	return extract(r, lay)
}

// Extract reads every page of a PDF held in r.
func Extract(r io.ReaderAt, size int64, lay Layout) ([]script.RawPage, error) {
	pr, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentAccess, err)
	}
	return extract(pr, lay)
}

func extract(r *pdf.Reader, lay Layout) (pages []script.RawPage, err error) {
	log := applog.WithComponent("pdftext")
	// The pdf package panics on some malformed content streams.
	defer func() {
		if rec := recover(); rec != nil {
			pages = nil
			err = fmt.Errorf("%w: %v", ErrDocumentAccess, rec)
		}
	}()
	n := r.NumPage()
	pages = make([]script.RawPage, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content := p.Content()
		runs := make([]Run, 0, len(content.Text))
		for _, t := range content.Text {
			runs = append(runs, Run{X: t.X, Y: t.Y, S: t.S})
		}
		lines := Lines(runs, lay)
		log.Debug("page extracted", "page", i, "runs", len(runs), "lines", len(lines))
		pages = append(pages, script.RawPage{Number: i, Lines: lines})
	}
	return pages, nil
}

type row struct {
	y    float64
	runs []Run
}

// Lines rebuilds the text lines of one page. Leading whitespace is measured from
// the leftmost glyph on the page; vertical gaps of more than one line become blank lines.
func Lines(runs []Run, lay Layout) []string {
	lay = lay.normalized()
	rows := groupRows(runs, lay.RowTolerance)
	if len(rows) == 0 {
		return nil
	}
	left := math.MaxFloat64
	for _, r := range rows {
		if x := r.runs[0].X; x < left {
			left = x
		}
	}

	out := make([]string, 0, len(rows))
	for i, r := range rows {
		if i > 0 {
			gap := int(math.Round((rows[i-1].y-r.y)/lay.LineHeight)) - 1
			for ; gap > 0; gap-- {
				out = append(out, "")
			}
		}
		out = append(out, renderRow(r.runs, left, lay.CharWidth))
	}
	return out
}

// groupRows buckets runs by Y, top of the page first, each row ordered by X.
func groupRows(runs []Run, tol float64) []row {
	sorted := make([]Run, 0, len(runs))
	for _, r := range runs {
		if r.S == "" || r.S == "\n" {
			continue
		}
		sorted = append(sorted, r)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})
	var rows []row
	for _, r := range sorted {
		if n := len(rows); n > 0 && math.Abs(rows[n-1].y-r.Y) <= tol {
			rows[n-1].runs = append(rows[n-1].runs, r)
			continue
		}
		rows = append(rows, row{y: r.Y, runs: []Run{r}})
	}
	for i := range rows {
		rs := rows[i].runs
		sort.SliceStable(rs, func(a, b int) bool { return rs[a].X < rs[b].X })
	}
	return rows
}

func renderRow(runs []Run, left, cw float64) string {
	var b strings.Builder
	col := 0
	for _, r := range runs {
		if want := int(math.Round((r.X - left) / cw)); want > col {
			b.WriteString(strings.Repeat(" ", want-col))
			col = want
		}
		b.WriteString(r.S)
		col += len([]rune(r.S))
	}
	return strings.TrimRight(b.String(), " ")
}
