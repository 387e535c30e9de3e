package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlitevec "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	_ "github.com/ncruces/go-sqlite3/driver"
	"github.com/oklog/ulid/v2"

	"github.com/avrilcode/compactmem/internal/model"
)

// SQLiteStore implements Store using SQLite + the sqlite-vec extension for
// cosine ANN search and FTS5 for keyword search. Adapted from
// rcliao-agent-memory/internal/store/sqlite.go's migration/transaction
// idiom; the vec0 wiring is grounded on bowerhall-sheldon/pkg/sheldonmem.
type SQLiteStore struct {
	db      *sql.DB
	dims    int
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at dbPath with the
// given embedding dimensionality.
func NewSQLiteStore(dbPath string, dims int) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		dims:    dims,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) newStagingToken() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id          TEXT PRIMARY KEY,
		session_id  TEXT NOT NULL,
		timestamp   TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		intent      TEXT NOT NULL,
		action      TEXT NOT NULL DEFAULT '',
		outcome     TEXT NOT NULL DEFAULT '',
		importance  REAL NOT NULL DEFAULT 0,
		artifacts   TEXT NOT NULL DEFAULT '{}',
		has_code    INTEGER NOT NULL DEFAULT 0,
		has_files   INTEGER NOT NULL DEFAULT 0,
		has_arch    INTEGER NOT NULL DEFAULT 0,
		success     INTEGER NOT NULL DEFAULT 0,
		embedded_text TEXT NOT NULL DEFAULT '',
		access_count INTEGER NOT NULL DEFAULT 0,
		last_accessed_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_memories_session ON memories(session_id);
	CREATE INDEX IF NOT EXISTS idx_memories_importance ON memories(importance);
	CREATE INDEX IF NOT EXISTS idx_memories_ts ON memories(timestamp DESC);

	CREATE TABLE IF NOT EXISTS entities (
		id             TEXT PRIMARY KEY,
		type           TEXT NOT NULL,
		surface_form   TEXT NOT NULL,
		canonical_form TEXT NOT NULL,
		access_count   INTEGER NOT NULL DEFAULT 0,
		UNIQUE(type, canonical_form)
	);

	CREATE TABLE IF NOT EXISTS memory_entity_edges (
		memory_id  TEXT NOT NULL REFERENCES memories(id),
		entity_id  TEXT NOT NULL REFERENCES entities(id),
		weight     INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (memory_id, entity_id)
	);
	CREATE INDEX IF NOT EXISTS idx_edges_entity ON memory_entity_edges(entity_id);

	CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
		intent, action, outcome,
		content=memories,
		content_rowid=rowid
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	vecSchema := fmt.Sprintf(`
	CREATE VIRTUAL TABLE IF NOT EXISTS vec_memories USING vec0(
		memory_id TEXT PRIMARY KEY,
		embedding FLOAT[%d] distance_metric=cosine
	);`, s.dims)
	if _, err := s.db.Exec(vecSchema); err != nil {
		return err
	}

	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS memories_ai AFTER INSERT ON memories BEGIN
			INSERT INTO memories_fts(rowid, intent, action, outcome) VALUES (new.rowid, new.intent, new.action, new.outcome);
		END`,
		`CREATE TRIGGER IF NOT EXISTS memories_ad AFTER DELETE ON memories BEGIN
			INSERT INTO memories_fts(memories_fts, rowid, intent, action, outcome) VALUES('delete', old.rowid, old.intent, old.action, old.outcome);
		END`,
		`CREATE TRIGGER IF NOT EXISTS memories_au AFTER UPDATE ON memories BEGIN
			INSERT INTO memories_fts(memories_fts, rowid, intent, action, outcome) VALUES('delete', old.rowid, old.intent, old.action, old.outcome);
			INSERT INTO memories_fts(rowid, intent, action, outcome) VALUES (new.rowid, new.intent, new.action, new.outcome);
		END`,
	}
	for _, t := range triggers {
		if _, err := s.db.Exec(t); err != nil {
			return err
		}
	}

	return nil
}

// Put writes a batch transactionally: all memories/entities/edges commit
// together or none do (spec §5). SQLite has real transactions, so a single
// BEGIN/COMMIT provides the atomicity; no staging table or staging token
// is used here (newStagingToken has no caller in Put).
func (s *SQLiteStore) Put(ctx context.Context, memories []model.Memory, entities []model.Entity, edges []model.MemoryEntityEdge) error {
	if len(memories) == 0 && len(entities) == 0 && len(edges) == 0 {
		return nil
	}
	for _, m := range memories {
		if len(m.Embedding) != s.dims {
			return fmt.Errorf("memory %s: embedding has %d dims, want %d", m.ID, len(m.Embedding), s.dims)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, m := range memories {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM memories WHERE id = ?`, m.ID).Scan(&exists); err != nil {
			return err
		}
		if exists > 0 {
			return fmt.Errorf("duplicate memory id: %s", m.ID)
		}

		artifactsJSON, err := json.Marshal(m.Artifacts)
		if err != nil {
			return fmt.Errorf("marshal artifacts: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO memories (id, session_id, timestamp, chunk_index, intent, action, outcome,
				importance, artifacts, has_code, has_files, has_arch, success, embedded_text, access_count, last_accessed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL)`,
			m.ID, m.SessionID, m.Timestamp.UTC().Format(time.RFC3339), m.ChunkIndex,
			m.Intent, m.Action, m.Outcome, m.Importance, string(artifactsJSON),
			boolToInt(m.Flags.HasCode), boolToInt(m.Flags.HasFiles), boolToInt(m.Flags.HasArchitecture),
			boolToInt(m.Flags.Success), m.EmbeddedText)
		if err != nil {
			return fmt.Errorf("insert memory: %w", err)
		}

		blob, err := sqlitevec.SerializeFloat32(m.Embedding)
		if err != nil {
			return fmt.Errorf("serialize embedding: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO vec_memories(memory_id, embedding) VALUES (?, ?)`, m.ID, blob); err != nil {
			return fmt.Errorf("insert vector: %w", err)
		}
	}

	for _, e := range entities {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO entities (id, type, surface_form, canonical_form, access_count)
			VALUES (?, ?, ?, ?, 0)
			ON CONFLICT(type, canonical_form) DO NOTHING`,
			e.ID, string(e.Type), e.SurfaceForm, e.CanonicalForm); err != nil {
			return fmt.Errorf("insert entity: %w", err)
		}
	}

	for _, ed := range edges {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO memory_entity_edges (memory_id, entity_id, weight)
			VALUES (?, ?, ?)
			ON CONFLICT(memory_id, entity_id) DO UPDATE SET weight = weight + excluded.weight`,
			ed.MemoryID, ed.EntityID, ed.Weight); err != nil {
			return fmt.Errorf("insert edge: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Memory, error) {
	row := s.db.QueryRowContext(ctx, memorySelectCols+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("memory not found: %s", id)
		}
		return nil, err
	}
	s.db.ExecContext(ctx, `UPDATE memories SET access_count = access_count + 1, last_accessed_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), id)
	return &m, nil
}

func (s *SQLiteStore) Query(ctx context.Context, vec []float32, k int, filter Filter) ([]QueryResult, error) {
	if len(vec) != s.dims {
		return nil, fmt.Errorf("query vector has %d dims, want %d", len(vec), s.dims)
	}
	if k <= 0 {
		k = 10
	}
	blob, err := sqlitevec.SerializeFloat32(vec)
	if err != nil {
		return nil, fmt.Errorf("serialize query vector: %w", err)
	}

	// Over-fetch from the vector index, then apply metadata filters
	// post-hoc (spec §4.5: "applied post-hoc if the index cannot push it down").
	overfetch := k * 4
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.memory_id, v.distance
		FROM vec_memories v
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance`, blob, overfetch)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	defer rows.Close()

	type hit struct {
		id       string
		distance float64
	}
	var hits []hit
	for rows.Next() {
		var h hit
		if err := rows.Scan(&h.id, &h.distance); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []QueryResult
	for _, h := range hits {
		row := s.db.QueryRowContext(ctx, memorySelectCols+` FROM memories WHERE id = ?`, h.id)
		m, err := scanMemory(row)
		if err != nil {
			continue // memory deleted between index hit and lookup; skip
		}
		if !matchesFilter(m, filter) {
			continue
		}
		out = append(out, QueryResult{Memory: m, Distance: h.distance})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

func matchesFilter(m model.Memory, f Filter) bool {
	if f.SessionID != "" && m.SessionID != f.SessionID {
		return false
	}
	if f.MinImportance > 0 && m.Importance < f.MinImportance {
		return false
	}
	if !f.Since.IsZero() && m.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && m.Timestamp.After(f.Until) {
		return false
	}
	if f.HasCode != nil && m.Flags.HasCode != *f.HasCode {
		return false
	}
	if f.HasFiles != nil && m.Flags.HasFiles != *f.HasFiles {
		return false
	}
	if f.HasArchitecture != nil && m.Flags.HasArchitecture != *f.HasArchitecture {
		return false
	}
	return true
}

func (s *SQLiteStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM memory_entity_edges WHERE memory_id = ?`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM vec_memories WHERE memory_id = ?`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Scan(ctx context.Context, filter Filter) ([]model.Memory, error) {
	where := []string{"1=1"}
	var args []interface{}
	if filter.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.MinImportance > 0 {
		where = append(where, "importance >= ?")
		args = append(args, filter.MinImportance)
	}
	query := memorySelectCols + ` FROM memories WHERE ` + strings.Join(where, " AND ") + ` ORDER BY timestamp DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		if !matchesFilter(m, filter) {
			continue
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM memories`).Scan(&n)
	return n, err
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{ByCategory: map[string]int{}, ByFlag: map[string]int{}}

	rows, err := s.db.QueryContext(ctx, `SELECT importance, has_code, has_files, has_arch, success FROM memories`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	var sumImportance float64
	for rows.Next() {
		var importance float64
		var hasCode, hasFiles, hasArch, success int
		if err := rows.Scan(&importance, &hasCode, &hasFiles, &hasArch, &success); err != nil {
			return st, err
		}
		st.Total++
		sumImportance += importance
		st.ByCategory[string(model.Categorize(importance))]++
		if hasCode != 0 {
			st.ByFlag["has_code"]++
		}
		if hasFiles != 0 {
			st.ByFlag["has_files"]++
		}
		if hasArch != 0 {
			st.ByFlag["has_architecture"]++
		}
		if success != 0 {
			st.ByFlag["success"]++
		}
	}
	if err := rows.Err(); err != nil {
		return st, err
	}
	if st.Total > 0 {
		st.AvgImportance = sumImportance / float64(st.Total)
	}
	return st, nil
}

func (s *SQLiteStore) Entities(ctx context.Context) ([]model.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, type, surface_form, canonical_form, access_count FROM entities`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		var e model.Entity
		var t string
		if err := rows.Scan(&e.ID, &t, &e.SurfaceForm, &e.CanonicalForm, &e.AccessCount); err != nil {
			return nil, err
		}
		e.Type = model.EntityType(t)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Edges(ctx context.Context) ([]model.MemoryEntityEdge, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT memory_id, entity_id, weight FROM memory_entity_edges`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MemoryEntityEdge
	for rows.Next() {
		var e model.MemoryEntityEdge
		if err := rows.Scan(&e.MemoryID, &e.EntityID, &e.Weight); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteOrphanEntities(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM entities WHERE id NOT IN (SELECT DISTINCT entity_id FROM memory_entity_edges)`)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) KeywordSearch(ctx context.Context, keywords []string, limit int) ([]model.Memory, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	match := strings.Join(keywords, " OR ")

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.rowid FROM memories_fts f
		JOIN memories m ON m.rowid = f.rowid
		WHERE memories_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var rowids []int64
	for rows.Next() {
		var rid int64
		if err := rows.Scan(&rid); err != nil {
			return nil, err
		}
		rowids = append(rowids, rid)
	}

	var out []model.Memory
	for _, rid := range rowids {
		row := s.db.QueryRowContext(ctx, memorySelectCols+` FROM memories WHERE rowid = ?`, rid)
		m, err := scanMemory(row)
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const memorySelectCols = `SELECT id, session_id, timestamp, chunk_index, intent, action, outcome,
	importance, artifacts, has_code, has_files, has_arch, success, embedded_text, access_count, last_accessed_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row scanner) (model.Memory, error) {
	var m model.Memory
	var ts, artifactsJSON string
	var hasCode, hasFiles, hasArch, success int
	var lastAccessed sql.NullString

	err := row.Scan(&m.ID, &m.SessionID, &ts, &m.ChunkIndex, &m.Intent, &m.Action, &m.Outcome,
		&m.Importance, &artifactsJSON, &hasCode, &hasFiles, &hasArch, &success,
		&m.EmbeddedText, &m.AccessCount, &lastAccessed)
	if err != nil {
		return m, err
	}

	m.Timestamp, _ = time.Parse(time.RFC3339, ts)
	_ = json.Unmarshal([]byte(artifactsJSON), &m.Artifacts)
	m.Flags = model.Flags{
		HasCode:         hasCode != 0,
		HasFiles:        hasFiles != 0,
		HasArchitecture: hasArch != 0,
		Success:         success != 0,
	}
	if lastAccessed.Valid {
		t, _ := time.Parse(time.RFC3339, lastAccessed.String)
		m.LastAccessed = &t
	}
	return m, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
