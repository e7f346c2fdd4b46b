/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"goscreenplay/internal/script"
)

// SearchQuery describes a search over stored elements.
// Text uses SQLite FTS5 syntax (simple terms, phrases in quotes, AND/OR/NOT).
// Filters are optional. Types holds element type names (dialogue, action, ...).
// Character restricts to lines spoken by that character; without Types it implies dialogue.
// PageFrom/To are inclusive; 0 means unset.
// Limit/Offset implement pagination; reasonable defaults applied if zero.
type SearchQuery struct {
	Text      string   `json:"text,omitempty"`
	ScriptID  int64    `json:"script_id,omitempty"`
	Types     []string `json:"types,omitempty"`
	Character string   `json:"character,omitempty"`
	PageFrom  int      `json:"page_from,omitempty"`
	PageTo    int      `json:"page_to,omitempty"`
	Limit     int      `json:"limit,omitempty"`
	Offset    int      `json:"offset,omitempty"`
}

// SearchResult represents a single matching element.
// Snippet is a highlighted excerpt using [ ] markers when FTS text is used.
type SearchResult struct {
	ScriptID   int64  `json:"script_id"`
	ScriptName string `json:"script"`
	Page       int    `json:"page"`
	Seq        int    `json:"seq"`
	Type       string `json:"type"`
	Content    string `json:"content"`
	Speaker    string `json:"speaker,omitempty"`
	Snippet    string `json:"snippet,omitempty"`
}

// Search performs full-text search with optional filters over the index.
// When q.Text is empty, it falls back to a plain scan over elements with filters applied.
func (x *Index) Search(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
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

	var args []any
	var sb strings.Builder
	if strings.TrimSpace(q.Text) != "" {
		sb.WriteString("SELECT e.script_id, s.name, e.page, e.seq, e.type, e.content, COALESCE(e.speaker,''), snippet(fts_elements, 0, '[', ']', '…', 10)\n")
		sb.WriteString("FROM fts_elements JOIN elements e ON fts_elements.rowid = e.id JOIN scripts s ON s.id = e.script_id\n")
		sb.WriteString("WHERE fts_elements MATCH ?\n")
		args = append(args, q.Text)
	} else {
		sb.WriteString("SELECT e.script_id, s.name, e.page, e.seq, e.type, e.content, COALESCE(e.speaker,''), ''\n")
		sb.WriteString("FROM elements e JOIN scripts s ON s.id = e.script_id\nWHERE 1=1\n")
	}
	if q.ScriptID > 0 {
		sb.WriteString(" AND e.script_id = ?\n")
		args = append(args, q.ScriptID)
	}
	if len(types) > 0 {
		sb.WriteString(" AND e.type IN (" + placeholders(len(types)) + ")\n")
		for _, t := range types {
			args = append(args, t)
		}
	}
	if q.PageFrom > 0 && q.PageTo > 0 && q.PageTo >= q.PageFrom {
		sb.WriteString(" AND e.page BETWEEN ? AND ?\n")
		args = append(args, q.PageFrom, q.PageTo)
	} else if q.PageFrom > 0 {
		sb.WriteString(" AND e.page >= ?\n")
		args = append(args, q.PageFrom)
	} else if q.PageTo > 0 {
		sb.WriteString(" AND e.page <= ?\n")
		args = append(args, q.PageTo)
	}
	if s := strings.TrimSpace(q.Character); s != "" {
		sb.WriteString(" AND lower(e.speaker) = ?\n")
		args = append(args, strings.ToLower(Speaker(s)))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := max(q.Offset, 0)
	sb.WriteString("ORDER BY e.script_id, e.page, e.seq\n")
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, offset)

	rows, err := x.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		var sn sql.NullString
		if err := rows.Scan(&r.ScriptID, &r.ScriptName, &r.Page, &r.Seq, &r.Type, &r.Content, &r.Speaker, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Snippet = sn.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
