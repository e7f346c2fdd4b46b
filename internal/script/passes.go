/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"regexp"
	"strings"
	"unicode"
)

// Repair passes. Each pass reads its input slice and returns a new one;
// inputs are never modified.

var reCueAndLine = regexp.MustCompile(`^(` + cueName + `)\s+([a-z(].*|[A-Z].*)$`)

// Repair applies MergeRuns, MergeCharacterContinuations and ResplitActions in that order.
func Repair(elems []Element, page int) []Element {
	return ResplitActions(MergeCharacterContinuations(MergeRuns(elems)), page)
}

// MergeRuns joins adjacent Action/Action and Dialogue/Dialogue elements with a
// single space. Runs of three or more fold left into one element.
func MergeRuns(elems []Element) []Element {
	out := make([]Element, 0, len(elems))
	for _, e := range elems {
		if n := len(out); n > 0 && (e.Kind == Action || e.Kind == Dialogue) && out[n-1].Kind == e.Kind {
			out[n-1].Content += " " + e.Content
			continue
		}
		out = append(out, e)
	}
	return out
}

// MergeCharacterContinuations repairs cues split over two lines, e.g.
// Character("MRS.") + Dialogue("SESTERO") -> Character("MRS. SESTERO").
// Only one element of lookahead; a merged pair is not re-examined.
func MergeCharacterContinuations(elems []Element) []Element {
	out := make([]Element, 0, len(elems))
	for i := 0; i < len(elems); i++ {
		cur := elems[i]
		if i+1 < len(elems) {
			next := elems[i+1]
			if cur.Kind == Character && next.Kind == Dialogue && isUpper(next.Content) && len(strings.Fields(next.Content)) < 3 {
				cur.Content = strings.TrimSpace(cur.Content) + " " + strings.TrimSpace(next.Content)
				i++
			}
		}
		out = append(out, cur)
	}
	return out
}

// ResplitActions splits Action elements that are really a cue followed by
// its first dialogue line, e.g. "GREG I'm heading out!". Page 1 is left alone
// since title pages produce too many false positives.
func ResplitActions(elems []Element, page int) []Element {
	out := make([]Element, 0, len(elems))
	for _, e := range elems {
		if e.Kind == Action && page > 1 {
			if name, rest, ok := splitCue(e.Content); ok {
				out = append(out, Element{Kind: Character, Content: name})
				if rest != "" {
					out = append(out, Element{Kind: Dialogue, Content: rest})
				}
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

func splitCue(content string) (name, rest string, ok bool) {
	if strings.HasPrefix(content, "INT.") || strings.HasPrefix(content, "EXT.") {
		return "", "", false
	}
	m := reCueAndLine.FindStringSubmatch(content)
	if m == nil || len(strings.Fields(m[1])) >= 4 {
		return "", "", false
	}
	return strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), true
}

// isUpper reports whether s has at least one cased letter and no lower-case ones.
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		switch {
		case unicode.IsLower(r), unicode.IsTitle(r):
			return false
		case unicode.IsUpper(r):
			cased = true
		}
	}
	return cased
}
