/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	applog "goscreenplay/internal/log"
)

var (
	ErrInvalidPageNumber = errors.New("page number must be positive")
	ErrDuplicatePage     = errors.New("duplicate page number")
)

// Parser turns extracted pages into a ParsedScript.
// Each page is processed on its own: the classifier's previous-kind context
// starts fresh on every page and the page number is passed explicitly to
// every step, so pages can be parsed in any order or in parallel.
type Parser struct {
	cls *Classifier
	log *slog.Logger
}

// NewParser creates a parser with the given classifier options.
func NewParser(opts Options) *Parser {
	return &Parser{cls: NewClassifier(opts), log: applog.WithComponent("script")}
}

// Parse is a convenience wrapper around NewParser(opts).Parse.
func Parse(pages []RawPage, opts Options) (ParsedScript, error) {
	return NewParser(opts).Parse(pages)
}

// ParsePage classifies and repairs one page. ok is false when nothing survives.
func (p *Parser) ParsePage(page RawPage) (Page, bool) {
	elems := make([]Element, 0, len(page.Lines))
	prev := KindNone
	for _, raw := range page.Lines {
		e, ok := p.cls.Classify(raw, prev, page.Number)
		if !ok {
			continue
		}
		elems = append(elems, e)
		prev = e.Kind
	}
	out := Repair(elems, page.Number)
	p.log.Debug("page parsed",
		slog.Int("page", page.Number),
		slog.Int("lines", len(page.Lines)),
		slog.Int("classified", len(elems)),
		slog.Int("elements", len(out)),
	)
	if len(out) == 0 {
		return Page{}, false
	}
	return Page{Number: page.Number, Elements: out}, true
}

// Parse processes pages sequentially in ascending page-number order.
func (p *Parser) Parse(pages []RawPage) (ParsedScript, error) {
	start := time.Now()
	ordered, err := sortedPages(pages)
	if err != nil {
		return nil, err
	}
	out := ParsedScript{}
	for _, pg := range ordered {
		if res, ok := p.ParsePage(pg); ok {
			out = append(out, res)
		}
	}
	p.summary("parse", len(pages), out, start)
	return out, nil
}

// ParseConcurrent processes pages with up to workers goroutines (all pages at
// once when workers <= 0). The result is identical to Parse.
func (p *Parser) ParseConcurrent(ctx context.Context, pages []RawPage, workers int) (ParsedScript, error) {
	start := time.Now()
	ordered, err := sortedPages(pages)
	if err != nil {
		return nil, err
	}

	results := make([]*Page, len(ordered))
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, pg := range ordered {
		i, pg := i, pg
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if res, ok := p.ParsePage(pg); ok {
				results[i] = &res
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := ParsedScript{}
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	p.summary("parse_concurrent", len(pages), out, start)
	return out, nil
}

func (p *Parser) summary(op string, in int, out ParsedScript, start time.Time) {
	applog.WithOperation(p.log, op).Info("script parsed",
		slog.Int("pages_in", in),
		slog.Int("pages_out", len(out)),
		slog.Int("elements", out.ElementCount()),
		slog.Duration("took", time.Since(start)),
	)
}

// sortedPages validates page numbers and returns a copy ordered ascending.
func sortedPages(pages []RawPage) ([]RawPage, error) {
	seen := make(map[int]struct{}, len(pages))
	for _, pg := range pages {
		if pg.Number <= 0 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidPageNumber, pg.Number)
		}
		if _, dup := seen[pg.Number]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicatePage, pg.Number)
		}
		seen[pg.Number] = struct{}{}
	}
	out := append([]RawPage(nil), pages...)
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}
