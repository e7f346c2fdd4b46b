/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"errors"
	"fmt"
)

// Kind indicates the type of a screenplay element.
// SceneHeading:  INT./EXT. location lines
// Transition:    CUT TO:, FADE IN:, FADE OUT:
// Character:     indented upper-case speaker cue
// Parenthetical: (beat), (quietly) ...
// Dialogue:      spoken text following a cue or parenthetical
// Action:        everything else

type Kind int

const (
	// KindNone is the "no previous element" marker used at page start.
	// It never appears in parser output.
	KindNone Kind = iota
	SceneHeading
	Transition
	Character
	Parenthetical
	Dialogue
	Action
)

var kindNames = map[Kind]string{
	SceneHeading:  "scene_heading",
	Transition:    "transition",
	Character:     "character",
	Parenthetical: "parenthetical",
	Dialogue:      "dialogue",
	Action:        "action",
}

// ErrUnknownKind is returned when decoding an element type name that is not part of the enumeration.
var ErrUnknownKind = errors.New("unknown element kind")

// Kinds returns all element kinds in declaration order.
func Kinds() []Kind {
	return []Kind{SceneHeading, Transition, Character, Parenthetical, Dialogue, Action}
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "none"
}

// ParseKind resolves a wire name such as "scene_heading".
func ParseKind(s string) (Kind, error) {
	for k, n := range kindNames {
		if n == s {
			return k, nil
		}
	}
	return KindNone, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) MarshalText() ([]byte, error) {
	n, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(n), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Element is one classified unit of screenplay text.
type Element struct {
	Kind    Kind   `json:"type"`
	Content string `json:"content"`
}

// Page holds the elements of one source page in reading order.
type Page struct {
	Number   int       `json:"page"`
	Elements []Element `json:"elements"`
}

// ParsedScript is the ordered list of pages that yielded at least one element.
type ParsedScript []Page

// RawPage is one page of extracted text: lines keep their original leading whitespace.
// Number is 1-based.
type RawPage struct {
	Number int      `json:"page"`
	Lines  []string `json:"lines"`
}

// ElementCount returns the total number of elements across all pages.
func (ps ParsedScript) ElementCount() int {
	n := 0
	for _, p := range ps {
		n += len(p.Elements)
	}
	return n
}

// Page returns the page with the given number, if present.
func (ps ParsedScript) Page(number int) (Page, bool) {
	for _, p := range ps {
		if p.Number == number {
			return p, true
		}
	}
	return Page{}, false
}
