/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */
package backend

import (
	"context"
	"fmt"
	"strings"

	"goscreenplay/internal/script"
	"goscreenplay/internal/storage"
)

// SearchPG executes a search over published elements using tsvector and filters
// and returns results mapped to storage.SearchResult to ease parity checks.
func (s *Store) SearchPG(ctx context.Context, q storage.SearchQuery) ([]storage.SearchResult, error) {
	types := make([]string, 0, len(q.Types))
	for _, t := range q.Types {
		k, err := script.ParseKind(strings.ToLower(strings.TrimSpace(t)))
		if err != nil {
			return nil, err
		}
		types = append(types, k.String())
	}
	if strings.TrimSpace(q.Character) != "" && len(types) == 0 {
		types = append(types, script.Dialogue.String())
	}

	var (
		args []any
		b    strings.Builder
	)
	// Helper to add parameter and return placeholder like $n
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	b.WriteString("SELECT e.script_id, s.name, e.page, e.seq, e.type, e.content, COALESCE(e.speaker,''), ")
	if text := strings.TrimSpace(q.Text); text != "" {
		p := place(text)
		b.WriteString("COALESCE(ts_headline('simple', e.content, plainto_tsquery('simple', " + p + "), 'StartSel=[, StopSel=], MaxFragments=1, MaxWords=12'), '') ")
		b.WriteString("FROM elements e JOIN scripts s ON s.id = e.script_id WHERE e.search_vector @@ plainto_tsquery('simple', " + p + ") ")
	} else {
		b.WriteString("'' FROM elements e JOIN scripts s ON s.id = e.script_id WHERE TRUE ")
	}
	if q.ScriptID > 0 {
		b.WriteString(" AND e.script_id = " + place(q.ScriptID) + " ")
	}
	if len(types) > 0 {
		b.WriteString(" AND e.type = ANY (" + place(types) + ") ")
	}
	if q.PageFrom > 0 && q.PageTo > 0 && q.PageTo >= q.PageFrom {
		b.WriteString(" AND e.page BETWEEN " + place(q.PageFrom) + " AND " + place(q.PageTo) + " ")
	} else if q.PageFrom > 0 {
		b.WriteString(" AND e.page >= " + place(q.PageFrom) + " ")
	} else if q.PageTo > 0 {
		b.WriteString(" AND e.page <= " + place(q.PageTo) + " ")
	}
	if c := strings.TrimSpace(q.Character); c != "" {
		b.WriteString(" AND lower(e.speaker) = " + place(strings.ToLower(storage.Speaker(c))) + " ")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := max(q.Offset, 0)
	b.WriteString(" ORDER BY e.script_id, e.page, e.seq ")
	b.WriteString(" LIMIT " + place(limit) + " OFFSET " + place(offset))

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search pg query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []storage.SearchResult{}
	for rows.Next() {
		var r storage.SearchResult
		if err := rows.Scan(&r.ScriptID, &r.ScriptName, &r.Page, &r.Seq, &r.Type, &r.Content, &r.Speaker, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
