/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0
 */

package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"goscreenplay/internal/script"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// Formats understood by Export and BatchExport.
const (
	FormatPDF      = "pdf"
	FormatHTML     = "html"
	FormatMarkdown = "md"
	FormatJSON     = "json"
)

// BatchOptions controls batch export across multiple formats.
//
// Path semantics:
//   - If OutDir is empty, it defaults to the preset name.
//   - Files are named <Name>.<ext> directly in OutDir.
//
// Pages applies to PDF only; the other formats always contain the full script.
type BatchOptions struct {
	Preset  PresetName
	Formats []string // allowed: pdf, html, md, json; empty means preset defaults
	Name    string   // base file name, defaults to "script"
	Title   string
	Pages   []int
	OutDir  string
}

// Export writes ps in one format to outPath.
func Export(ps script.ParsedScript, format, outPath, title string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatPDF:
		return ExportPDF(ps, outPath, PDFOptions{Title: title, PageNumbers: true})
	case FormatHTML, "htm":
		return ExportHTML(ps, outPath, HTMLOptions{Title: title, Standalone: true})
	case FormatMarkdown, "markdown":
		return ExportMarkdown(ps, outPath)
	case FormatJSON:
		return ExportJSON(ps, outPath)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// FormatFromPath guesses the export format from a file extension.
func FormatFromPath(p string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(p), "."))
	switch ext {
	case "htm":
		return FormatHTML
	case "markdown":
		return FormatMarkdown
	}
	return ext
}

// BatchExport runs exports according to the given preset and returns the written paths.
func BatchExport(ps script.ParsedScript, opt BatchOptions) ([]string, error) {
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	baseOut := opt.OutDir
	if baseOut == "" {
		baseOut = string(opt.Preset)
	}
	name := opt.Name
	if name == "" {
		name = "script"
	}

	var written []string
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		out := filepath.Join(baseOut, name+"."+f)
		var err error
		switch f {
		case FormatPDF:
			err = ExportPDF(ps, out, PDFOptions{Title: opt.Title, Pages: opt.Pages, PageNumbers: presetPageNumbers(opt.Preset)})
		case FormatHTML:
			err = ExportHTML(ps, out, HTMLOptions{Title: opt.Title, Standalone: true})
		case FormatMarkdown:
			err = ExportMarkdown(ps, out)
		case FormatJSON:
			err = ExportJSON(ps, out)
		default:
			return written, fmt.Errorf("unknown format: %s", f)
		}
		if err != nil {
			return written, fmt.Errorf("%s: %w", f, err)
		}
		written = append(written, out)
	}
	return written, nil
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{FormatHTML, FormatJSON}
	case PresetPrint:
		return []string{FormatPDF}
	default:
		return []string{FormatJSON}
	}
}

func presetPageNumbers(p PresetName) bool {
	return p != PresetWeb
}
