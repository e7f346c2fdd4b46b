/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	applog "goscreenplay/internal/log"
	"goscreenplay/internal/script"
)

var ErrNotFound = errors.New("storage: script not found")

// ScriptInfo describes one stored script.
type ScriptInfo struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Pages     int       `json:"pages"`
	Elements  int       `json:"elements"`
}

// SaveScript stores ps under name, replacing any script previously saved under that name.
// It returns the new script id.
func (x *Index) SaveScript(ctx context.Context, name string, ps script.ParsedScript) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errors.New("script name is required")
	}
	l := applog.WithOperation(x.log, "save_script").With(slog.String("name", name))

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var old int64
	switch err := tx.QueryRowContext(ctx, `SELECT id FROM scripts WHERE name=?`, name).Scan(&old); {
	case err == nil:
		if _, err := tx.ExecContext(ctx, `DELETE FROM elements WHERE script_id=?`, old); err != nil {
			return 0, fmt.Errorf("clear elements: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM scripts WHERE id=?`, old); err != nil {
			return 0, fmt.Errorf("delete script: %w", err)
		}
	case !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("lookup script: %w", err)
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO scripts(name, created_at) VALUES(?, ?)`, name, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("insert script: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("script id: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, `INSERT INTO elements(script_id, page, seq, type, content, speaker) VALUES(?,?,?,?,?,?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()
	n := 0
	for _, pg := range ps {
		for seq, sp := range Speakers(pg.Elements) {
			e := pg.Elements[seq]
			if _, err := ins.ExecContext(ctx, id, pg.Number, seq, e.Kind.String(), e.Content, nullString(sp)); err != nil {
				return 0, fmt.Errorf("insert element: %w", err)
			}
			n++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	l.Info("script saved", slog.Int64("id", id), slog.Int("pages", len(ps)), slog.Int("elements", n))
	return id, nil
}

// LoadScript reads a stored script back into its page structure.
func (x *Index) LoadScript(ctx context.Context, id int64) (ScriptInfo, script.ParsedScript, error) {
	info, err := x.scriptInfo(ctx, id)
	if err != nil {
		return ScriptInfo{}, nil, err
	}
	rows, err := x.db.QueryContext(ctx, `SELECT page, type, content FROM elements WHERE script_id=? ORDER BY page, seq`, id)
	if err != nil {
		return ScriptInfo{}, nil, fmt.Errorf("load elements: %w", err)
	}
	defer rows.Close()
	ps := script.ParsedScript{}
	for rows.Next() {
		var page int
		var typ, content string
		if err := rows.Scan(&page, &typ, &content); err != nil {
			return ScriptInfo{}, nil, fmt.Errorf("scan element: %w", err)
		}
		k, err := script.ParseKind(typ)
		if err != nil {
			return ScriptInfo{}, nil, err
		}
		if n := len(ps); n == 0 || ps[n-1].Number != page {
			ps = append(ps, script.Page{Number: page})
		}
		last := &ps[len(ps)-1]
		last.Elements = append(last.Elements, script.Element{Kind: k, Content: content})
	}
	if err := rows.Err(); err != nil {
		return ScriptInfo{}, nil, err
	}
	return info, ps, nil
}

// FindScript resolves a script id by name.
func (x *Index) FindScript(ctx context.Context, name string) (int64, error) {
	var id int64
	err := x.db.QueryRowContext(ctx, `SELECT id FROM scripts WHERE name=?`, strings.TrimSpace(name)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("find script: %w", err)
	}
	return id, nil
}

// ListScripts returns all stored scripts, oldest first.
func (x *Index) ListScripts(ctx context.Context) ([]ScriptInfo, error) {
	rows, err := x.db.QueryContext(ctx, listQuery+` GROUP BY s.id ORDER BY s.id`)
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	defer rows.Close()
	out := []ScriptInfo{}
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteScript removes a script and its elements.
func (x *Index) DeleteScript(ctx context.Context, id int64) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM elements WHERE script_id=?`, id); err != nil {
		return fmt.Errorf("delete elements: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM scripts WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete script: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

const listQuery = `SELECT s.id, s.name, s.created_at, COUNT(DISTINCT e.page), COUNT(e.id)
	FROM scripts s LEFT JOIN elements e ON e.script_id = s.id`

func (x *Index) scriptInfo(ctx context.Context, id int64) (ScriptInfo, error) {
	row := x.db.QueryRowContext(ctx, listQuery+` WHERE s.id=? GROUP BY s.id`, id)
	info, err := scanInfo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ScriptInfo{}, ErrNotFound
	}
	return info, err
}

type scanner interface{ Scan(dest ...any) error }

func scanInfo(s scanner) (ScriptInfo, error) {
	var info ScriptInfo
	var created string
	if err := s.Scan(&info.ID, &info.Name, &created, &info.Pages, &info.Elements); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return info, err
		}
		return info, fmt.Errorf("scan script: %w", err)
	}
	info.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return info, nil
}

var reExtension = regexp.MustCompile(`\s*\((?:V\.O\.|O\.S\.)\)\s*$`)

// Speaker reduces a character cue to the bare name: "TOMMY (V.O.)" is spoken by "TOMMY".
func Speaker(cue string) string {
	return strings.TrimSpace(reExtension.ReplaceAllString(cue, ""))
}

// Speakers returns, per element of one page, the character speaking it.
// Dialogue and parentheticals are attributed to the most recent cue; every other kind,
// and anything before the first cue, gets "".
func Speakers(elems []script.Element) []string {
	out := make([]string, len(elems))
	cur := ""
	for i, e := range elems {
		switch e.Kind {
		case script.Character:
			cur = Speaker(e.Content)
		case script.Dialogue, script.Parenthetical:
			out[i] = cur
		default:
			cur = ""
		}
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
