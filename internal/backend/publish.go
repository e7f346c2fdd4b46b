/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	applog "goscreenplay/internal/log"
	"goscreenplay/internal/script"
	"goscreenplay/internal/storage"
)

// Published is one script as listed by the backend.
type Published struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Pages       int       `json:"pages"`
	PublishedAt time.Time `json:"published_at"`
}

// PublishScript writes ps under name in a single transaction, replacing an earlier publication of that name.
func (s *Store) PublishScript(ctx context.Context, name string, ps script.ParsedScript) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errors.New("script name is required")
	}
	l := applog.WithOperation(s.log, "publish").With(slog.String("name", name))
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx, `INSERT INTO scripts(name, page_count) VALUES($1, $2)
		ON CONFLICT (name) DO UPDATE SET page_count = EXCLUDED.page_count, published_at = now()
		RETURNING id`, name, len(ps)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert script: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM elements WHERE script_id = $1`, id); err != nil {
		return 0, fmt.Errorf("clear elements: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO elements(script_id, page, seq, type, content, speaker) VALUES($1,$2,$3,$4,$5,NULLIF($6,''))`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	n := 0
	for _, pg := range ps {
		for seq, sp := range storage.Speakers(pg.Elements) {
			e := pg.Elements[seq]
			if _, err := stmt.ExecContext(ctx, id, pg.Number, seq, e.Kind.String(), e.Content, sp); err != nil {
				return 0, fmt.Errorf("insert element: %w", err)
			}
			n++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	l.Info("script published", slog.Int64("id", id), slog.Int("pages", len(ps)), slog.Int("elements", n))
	return id, nil
}

// ListPublished returns published scripts, most recent first.
func (s *Store) ListPublished(ctx context.Context) ([]Published, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, page_count, published_at FROM scripts ORDER BY published_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []Published{}
	for rows.Next() {
		var p Published
		if err := rows.Scan(&p.ID, &p.Name, &p.Pages, &p.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
