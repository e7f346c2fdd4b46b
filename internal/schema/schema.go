/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package schema validates JSON documents against the embedded goscreenplay schemas.
package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

//go:embed parsed_script.schema.json
var parsedScriptSchema []byte

//go:embed raw_pages.schema.json
var rawPagesSchema []byte

// ErrInvalid wraps every schema violation.
var ErrInvalid = errors.New("schema: document does not conform")

// ParsedScriptSchema returns the schema of the parser output.
func ParsedScriptSchema() []byte { return append([]byte(nil), parsedScriptSchema...) }

var (
	once     sync.Once
	parsed   *gojsonschema.Schema
	raw      *gojsonschema.Schema
	compileE error
)

func compile() error {
	once.Do(func() {
		parsed, compileE = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(parsedScriptSchema))
		if compileE != nil {
			return
		}
		raw, compileE = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(rawPagesSchema))
	})
	return compileE
}

// Validate checks a parsed-script JSON document.
func Validate(doc []byte) error {
	if err := compile(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	return validate(parsed, doc)
}

// ValidateRawPages checks a raw-pages JSON document.
func ValidateRawPages(doc []byte) error {
	if err := compile(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	return validate(raw, doc)
}

func validate(s *gojsonschema.Schema, doc []byte) error {
	result, err := s.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}
