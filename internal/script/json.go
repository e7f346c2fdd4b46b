/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"encoding/json"
	"fmt"
	"io"
)

// WriteJSON encodes ps without HTML escaping, so characters such as ’ < & are
// written verbatim. indent uses two spaces per level.
func WriteJSON(w io.Writer, ps ParsedScript, indent bool) error {
	if ps == nil {
		ps = ParsedScript{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(ps); err != nil {
		return fmt.Errorf("encode parsed script: %w", err)
	}
	return nil
}

// ReadJSON decodes a parsed script previously written by WriteJSON.
func ReadJSON(r io.Reader) (ParsedScript, error) {
	var ps ParsedScript
	if err := json.NewDecoder(r).Decode(&ps); err != nil {
		return nil, fmt.Errorf("decode parsed script: %w", err)
	}
	return ps, nil
}

// ReadRawPages decodes [{"page":1,"lines":["..."]}, ...].
func ReadRawPages(r io.Reader) ([]RawPage, error) {
	var pages []RawPage
	if err := json.NewDecoder(r).Decode(&pages); err != nil {
		return nil, fmt.Errorf("decode raw pages: %w", err)
	}
	return pages, nil
}
