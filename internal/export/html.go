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
	"html"
	"io"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"

	"goscreenplay/internal/script"
)

// HTMLOptions controls HTML export.
type HTMLOptions struct {
	Title      string
	Standalone bool // wrap the body in a complete HTML document
}

// Markdown renders ps as Markdown: one section per page, scene headings as
// subsections, cues in bold, parentheticals and dialogue as block quotes.
func Markdown(ps script.ParsedScript) []byte {
	var b strings.Builder
	for i, pg := range ps {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "## Page %d\n\n", pg.Number)
		for _, e := range pg.Elements {
			text := escapeMarkdown(e.Content)
			switch e.Kind {
			case script.SceneHeading:
				fmt.Fprintf(&b, "### %s\n\n", text)
			case script.Character:
				fmt.Fprintf(&b, "**%s**\n\n", text)
			case script.Parenthetical:
				fmt.Fprintf(&b, "> *\\(%s\\)*\n\n", text)
			case script.Dialogue:
				fmt.Fprintf(&b, "> %s\n\n", text)
			case script.Transition:
				fmt.Fprintf(&b, "*%s*\n\n", text)
			default:
				fmt.Fprintf(&b, "%s\n\n", text)
			}
		}
	}
	return []byte(b.String())
}

var htmlPolicy = bluemonday.UGCPolicy()

// WriteHTML renders ps through Markdown to HTML. The rendered body is passed
// through a UGC sanitizer before it is written.
func WriteHTML(w io.Writer, ps script.ParsedScript, opt HTMLOptions) error {
	body := htmlPolicy.SanitizeBytes(blackfriday.Run(Markdown(ps), blackfriday.WithExtensions(blackfriday.CommonExtensions)))
	if !opt.Standalone {
		_, err := w.Write(body)
		return err
	}
	title := html.EscapeString(firstNonEmpty(opt.Title, "Screenplay"))
	_, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: "Courier Prime", Courier, monospace; max-width: 42em; margin: 2em auto; }
blockquote { margin-left: 6em; border: none; }
</style>
</head>
<body>
%s</body>
</html>
`, title, body)
	return err
}

const markdownSpecials = "\\`*_{}[]()#+-.!|<>~&"

// escapeMarkdown backslash-escapes every character Markdown could treat as markup.
func escapeMarkdown(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		if strings.ContainsRune(markdownSpecials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
