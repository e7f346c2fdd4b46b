/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"fmt"
	"regexp"
	"strings"
)

// HeaderMatch selects how running headers/footers are recognized.
type HeaderMatch string

const (
	HeaderEquals   HeaderMatch = "equals"
	HeaderContains HeaderMatch = "contains"
)

// DefaultCharacterIndent is the minimum number of leading whitespace characters of a character cue.
const DefaultCharacterIndent = 15

// Options tunes the line classifier.
type Options struct {
	// RunningHeaders are page header/footer strings dropped on pages after the first.
	RunningHeaders []string
	HeaderMatch    HeaderMatch
	// CharacterIndent defaults to DefaultCharacterIndent when <= 0.
	CharacterIndent int
}

// cueName is the upper-case speaker name, optionally with a (V.O.) or (O.S.) extension.
const cueName = `[A-Z][A-Z\s0-9'’.-]+(?:\s*\((?:V\.O\.|O\.S\.)\))?`

var (
	reSceneHeading  = regexp.MustCompile(`^\s*(INT\.|EXT\.)`)
	reTransition    = regexp.MustCompile(`([A-Z\s]+TO:|FADE (?:IN|OUT):)$`)
	reParenthetical = regexp.MustCompile(`^\([^)]+\)$`)
	reDigits        = regexp.MustCompile(`^[0-9]+$`)
)

// line carries both renderings a rule may look at.
type line struct {
	raw  string
	trim string
}

// rule is one row of the classification table: first match wins.
type rule struct {
	kind  Kind
	match func(l line) (content string, ok bool)
}

// Classifier assigns a provisional Kind to single raw lines.
// It holds no per-page state and is safe for concurrent use.
type Classifier struct {
	headers     []string
	headerMatch HeaderMatch
	rules       []rule
}

// NewClassifier compiles the rule table for opts.
func NewClassifier(opts Options) *Classifier {
	indent := opts.CharacterIndent
	if indent <= 0 {
		indent = DefaultCharacterIndent
	}
	reCharacter := regexp.MustCompile(fmt.Sprintf(`^\s{%d,}(%s)$`, indent, cueName))

	var headers []string
	for _, h := range opts.RunningHeaders {
		if h = strings.TrimSpace(h); h != "" {
			headers = append(headers, h)
		}
	}
	hm := opts.HeaderMatch
	if hm != HeaderContains {
		hm = HeaderEquals
	}

	c := &Classifier{headers: headers, headerMatch: hm}
	c.rules = []rule{
		{kind: SceneHeading, match: func(l line) (string, bool) {
			return l.trim, reSceneHeading.MatchString(l.raw)
		}},
		{kind: Transition, match: func(l line) (string, bool) {
			return l.trim, l.trim == "FADE IN:" || l.trim == "FADE OUT:" || reTransition.MatchString(l.trim)
		}},
		{kind: Character, match: func(l line) (string, bool) {
			return l.trim, reCharacter.MatchString(l.raw)
		}},
		{kind: Parenthetical, match: func(l line) (string, bool) {
			if !reParenthetical.MatchString(l.trim) {
				return "", false
			}
			inner := strings.TrimSpace(strings.Trim(l.trim, "()"))
			return inner, inner != ""
		}},
	}
	return c
}

// Classify assigns a kind to raw. prev is the kind of the preceding accepted
// element on the same page (KindNone at page start). ok is false when the
// line is discarded.
func (c *Classifier) Classify(raw string, prev Kind, page int) (Element, bool) {
	l := line{raw: raw, trim: strings.TrimSpace(raw)}
	if c.skip(l, page) {
		return Element{}, false
	}
	for _, r := range c.rules {
		if content, ok := r.match(l); ok {
			return Element{Kind: r.kind, Content: content}, true
		}
	}
	if prev == Character || prev == Parenthetical {
		return Element{Kind: Dialogue, Content: l.trim}, true
	}
	return Element{Kind: Action, Content: l.trim}, true
}

// skip reports whether the line is blank, a page number, or a running header.
func (c *Classifier) skip(l line, page int) bool {
	if l.trim == "" || reDigits.MatchString(l.trim) {
		return true
	}
	if page <= 1 {
		return false
	}
	for _, h := range c.headers {
		if l.trim == h || (c.headerMatch == HeaderContains && strings.Contains(l.trim, h)) {
			return true
		}
	}
	return false
}
