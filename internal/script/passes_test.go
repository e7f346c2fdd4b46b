/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"reflect"
	"testing"
)

func el(k Kind, s string) Element { return Element{Kind: k, Content: s} }

func assertElements(t *testing.T, got, want []Element) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("elements mismatch\n got: %+v\nwant: %+v", got, want)
	}
}

func TestMergeRunsDialogue(t *testing.T) {
	got := MergeRuns([]Element{el(Dialogue, "Hello"), el(Dialogue, "there.")})
	assertElements(t, got, []Element{el(Dialogue, "Hello there.")})
}

func TestMergeRunsFoldsLeft(t *testing.T) {
	in := []Element{
		el(Action, "He runs."),
		el(Action, "He jumps."),
		el(Action, "He falls."),
		el(Character, "GREG"),
		el(Character, "TOMMY"),
		el(Parenthetical, "beat"),
		el(Parenthetical, "beat"),
		el(Dialogue, "Oh"),
		el(Dialogue, "hi"),
		el(Dialogue, "Mark."),
		el(Action, "Silence."),
	}
	want := []Element{
		el(Action, "He runs. He jumps. He falls."),
		el(Character, "GREG"),
		el(Character, "TOMMY"),
		el(Parenthetical, "beat"),
		el(Parenthetical, "beat"),
		el(Dialogue, "Oh hi Mark."),
		el(Action, "Silence."),
	}
	assertElements(t, MergeRuns(in), want)
}

func TestMergeRunsDoesNotMutateInput(t *testing.T) {
	in := []Element{el(Action, "a"), el(Action, "b")}
	_ = MergeRuns(in)
	if in[0].Content != "a" || len(in) != 2 {
		t.Fatalf("input modified: %+v", in)
	}
}

func TestMergeCharacterContinuation(t *testing.T) {
	got := MergeCharacterContinuations([]Element{el(Character, "MRS."), el(Dialogue, "SESTERO")})
	assertElements(t, got, []Element{el(Character, "MRS. SESTERO")})
}

func TestMergeCharacterContinuationRules(t *testing.T) {
	cases := []struct {
		name string
		in   []Element
		want []Element
	}{
		{
			name: "lower case dialogue stays",
			in:   []Element{el(Character, "GREG"), el(Dialogue, "Hi.")},
			want: []Element{el(Character, "GREG"), el(Dialogue, "Hi.")},
		},
		{
			name: "three words stay",
			in:   []Element{el(Character, "GREG"), el(Dialogue, "I AM HERE")},
			want: []Element{el(Character, "GREG"), el(Dialogue, "I AM HERE")},
		},
		{
			name: "no cased letters stay",
			in:   []Element{el(Character, "GREG"), el(Dialogue, "...")},
			want: []Element{el(Character, "GREG"), el(Dialogue, "...")},
		},
		{
			name: "single lookahead does not re-trigger",
			in:   []Element{el(Character, "MRS."), el(Dialogue, "ANNE"), el(Dialogue, "LEE")},
			want: []Element{el(Character, "MRS. ANNE"), el(Dialogue, "LEE")},
		},
		{
			name: "trims both halves",
			in:   []Element{el(Character, "DR. "), el(Dialogue, " NO")},
			want: []Element{el(Character, "DR. NO")},
		},
		{
			name: "only after character",
			in:   []Element{el(Parenthetical, "beat"), el(Dialogue, "NO")},
			want: []Element{el(Parenthetical, "beat"), el(Dialogue, "NO")},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assertElements(t, MergeCharacterContinuations(tc.in), tc.want)
		})
	}
}

func TestResplitActionOnLaterPage(t *testing.T) {
	got := ResplitActions([]Element{el(Action, "GREG I'm heading out!")}, 2)
	assertElements(t, got, []Element{el(Character, "GREG"), el(Dialogue, "I'm heading out!")})
}

func TestResplitActionSkipsFirstPage(t *testing.T) {
	in := []Element{el(Action, "GREG I'm heading out!")}
	assertElements(t, ResplitActions(in, 1), in)
}

func TestResplitActionRules(t *testing.T) {
	cases := []struct {
		name string
		in   Element
		want []Element
	}{
		{
			name: "voice over extension",
			in:   el(Action, "GREG (V.O.) Hello there"),
			want: []Element{el(Character, "GREG (V.O.)"), el(Dialogue, "Hello there")},
		},
		{
			name: "parenthetical remainder",
			in:   el(Action, "GREG (whispering) go now"),
			want: []Element{el(Character, "GREG"), el(Dialogue, "(whispering) go now")},
		},
		{
			name: "four word name is kept",
			in:   el(Action, "THE BIG BAD WOLF says hi"),
			want: []Element{el(Action, "THE BIG BAD WOLF says hi")},
		},
		{
			name: "scene heading prefix is kept",
			in:   el(Action, "INT. HOUSE Greg waits"),
			want: []Element{el(Action, "INT. HOUSE Greg waits")},
		},
		{
			name: "sentence case is kept",
			in:   el(Action, "Greg leaves the room."),
			want: []Element{el(Action, "Greg leaves the room.")},
		},
		{
			name: "only actions are split",
			in:   el(Dialogue, "GREG I'm heading out!"),
			want: []Element{el(Dialogue, "GREG I'm heading out!")},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assertElements(t, ResplitActions([]Element{tc.in}, 5), tc.want)
		})
	}
}

func TestRepairKeepsUntouchedOrder(t *testing.T) {
	in := []Element{
		el(SceneHeading, "INT. HOUSE - DAY"),
		el(Transition, "CUT TO:"),
		el(Character, "GREG"),
		el(Parenthetical, "beat"),
		el(Dialogue, "Okay."),
		el(SceneHeading, "EXT. STREET - NIGHT"),
	}
	assertElements(t, Repair(in, 4), in)
}
