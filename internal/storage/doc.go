/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage implements the local script index.
// Parsed scripts are stored per user in an embedded SQLite database (WAL mode, versioned schema with migrations).
// Every element is a row; an FTS5 table over element content is kept in sync by triggers and backs Search.
// Dialogue and parentheticals carry the speaking character so searches can be narrowed to one voice.
package storage
