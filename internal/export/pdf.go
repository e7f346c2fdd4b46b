/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jung-kurt/gofpdf"

	"goscreenplay/internal/script"
)

// PDFOptions controls PDF export behavior.
// Units are points (pt). The layout follows the US Letter screenplay format:
// Courier 12pt, 1.5in left margin, 1in top/right/bottom margins.
//
// Every parsed page starts a new PDF page. Content longer than a page flows onto
// continuation pages that repeat the source page number.
type PDFOptions struct {
	Title       string
	Author      string
	Pages       []int // page numbers to include; empty means all
	PageNumbers bool  // print "N." in the top right corner
}

// Horizontal placement per element kind, in points from the left paper edge, and column width.
type column struct {
	x, w  float64
	align string
}

const (
	inch       = 72.0
	paperW     = 8.5 * inch
	paperH     = 11 * inch
	lineHeight = 12.0
	fontSize   = 12.0
)

var columns = map[script.Kind]column{
	script.SceneHeading:  {x: 1.5 * inch, w: 6.0 * inch, align: "L"},
	script.Action:        {x: 1.5 * inch, w: 6.0 * inch, align: "L"},
	script.Character:     {x: 3.7 * inch, w: 3.3 * inch, align: "L"},
	script.Parenthetical: {x: 3.1 * inch, w: 2.0 * inch, align: "L"},
	script.Dialogue:      {x: 2.5 * inch, w: 3.5 * inch, align: "L"},
	script.Transition:    {x: 5.5 * inch, w: 2.0 * inch, align: "R"},
}

// WritePDF typesets ps as a screenplay and writes the document to w.
func WritePDF(w io.Writer, ps script.ParsedScript, opt PDFOptions) error {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: paperW, Ht: paperH},
	})
	tr := pdf.UnicodeTranslatorFromDescriptor("") // cp1252 keeps ’ “ ” – intact in core fonts
	if opt.Title != "" {
		pdf.SetTitle(opt.Title, true)
	}
	pdf.SetAuthor(firstNonEmpty(opt.Author, "goscreenplay"), true)
	pdf.SetMargins(1.5*inch, 1*inch, 1*inch)
	pdf.SetAutoPageBreak(true, 1*inch)

	current := 0
	pdf.SetHeaderFunc(func() {
		if !opt.PageNumbers || current == 0 {
			return
		}
		pdf.SetFont("Courier", "", fontSize)
		pdf.SetXY(paperW-1*inch-1.0*inch, 0.5*inch)
		pdf.CellFormat(1.0*inch, lineHeight, strconv.Itoa(current)+".", "", 0, "R", false, 0, "")
		pdf.SetXY(1.5*inch, 1*inch)
	})

	want := pageFilter(opt.Pages)
	for _, pg := range ps {
		if want != nil && !want[pg.Number] {
			continue
		}
		current = pg.Number
		pdf.AddPage()
		pdf.SetFont("Courier", "", fontSize)
		var prev script.Kind
		for i, e := range pg.Elements {
			if i > 0 && blankBefore(prev, e.Kind) {
				pdf.Ln(lineHeight)
			}
			col := columns[e.Kind]
			text := e.Content
			switch e.Kind {
			case script.Parenthetical:
				text = "(" + text + ")"
			case script.SceneHeading, script.Transition:
				pdf.SetFont("Courier", "B", fontSize)
			}
			pdf.SetX(col.x)
			pdf.MultiCell(col.w, lineHeight, tr(text), "", col.align, false)
			pdf.SetFont("Courier", "", fontSize)
			prev = e.Kind
		}
	}
	if pdf.PageNo() == 0 {
		// gofpdf cannot emit a document without pages.
		pdf.AddPage()
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// ExportPDF writes the screenplay PDF to outPath, creating parent directories.
func ExportPDF(ps script.ParsedScript, outPath string, opt PDFOptions) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	return writeFileAtomic(outPath, func(w io.Writer) error { return WritePDF(w, ps, opt) })
}

// blankBefore reports whether a blank line separates two consecutive elements.
// Cue, parenthetical and dialogue form one block.
func blankBefore(prev, cur script.Kind) bool {
	switch cur {
	case script.Parenthetical, script.Dialogue:
		return prev != script.Character && prev != script.Parenthetical && prev != script.Dialogue
	}
	return true
}

func pageFilter(pages []int) map[int]bool {
	if len(pages) == 0 {
		return nil
	}
	m := make(map[int]bool, len(pages))
	for _, p := range pages {
		m[p] = true
	}
	return m
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
