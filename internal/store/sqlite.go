package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure Go driver, no cgo
)

// SQLiteStore implements MetadataStore over a single sqlite database
// file. It is the system of record for octobrain's workspace: the
// vector index (C2) and the lexical index (C3) are both rebuildable
// caches over the rows this store holds.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var _ MetadataStore = (*SQLiteStore)(nil)

// validateSQLiteIntegrity runs PRAGMA integrity_check and verifies the
// memories table exists before a database file is trusted. Corruption
// here is not retried — the caller is expected to remove the file and
// rebuild the workspace from scratch, since sqlite corruption almost
// always means truncated or torn writes that no amount of retrying fixes.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='memories'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count == 0 && !isEmptyDatabase(db) {
		return fmt.Errorf("memories table missing from non-empty database")
	}

	return nil
}

func isEmptyDatabase(db *sql.DB) bool {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master`).Scan(&count); err != nil {
		return false
	}
	return count == 0
}

// NewSQLiteStore opens (creating if necessary) the metadata database at
// path. An empty path opens a private in-memory database, used by tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}

		if validErr := validateSQLiteIntegrity(path); validErr != nil {
			slog.Warn("metadata_store_corrupted", slog.String("path", path), slog.String("error", validErr.Error()))
			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, fmt.Errorf("metadata store corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
			slog.Info("metadata_store_cleared", slog.String("path", path), slog.String("reason", "corruption detected, workspace will reindex"))
		}

		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		memory_type TEXT NOT NULL,
		tags TEXT NOT NULL DEFAULT '[]',
		related_files TEXT NOT NULL DEFAULT '[]',
		importance REAL NOT NULL DEFAULT 0.5,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		last_accessed_at TEXT NOT NULL,
		access_count INTEGER NOT NULL DEFAULT 0,
		git_commit TEXT NOT NULL DEFAULT '',
		embedding BLOB
	);

	CREATE INDEX IF NOT EXISTS idx_memories_type ON memories(memory_type);
	CREATE INDEX IF NOT EXISTS idx_memories_updated ON memories(updated_at);

	CREATE TABLE IF NOT EXISTS relationships (
		source_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		relationship_type TEXT NOT NULL,
		strength REAL NOT NULL DEFAULT 1.0,
		created_at TEXT NOT NULL,
		PRIMARY KEY (source_id, target_id, relationship_type)
	);

	CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(source_id);
	CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(target_id);

	CREATE TABLE IF NOT EXISTS knowledge_sources (
		url TEXT PRIMARY KEY,
		content_hash TEXT NOT NULL DEFAULT '',
		fetched_at TEXT NOT NULL,
		indexed_at TEXT NOT NULL,
		ttl_seconds INTEGER NOT NULL DEFAULT 86400,
		chunk_count INTEGER NOT NULL DEFAULT 0,
		etag TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS knowledge_chunks (
		id TEXT PRIMARY KEY,
		source_url TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		text TEXT NOT NULL,
		embedding BLOB
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_source ON knowledge_chunks(source_url);

	CREATE TABLE IF NOT EXISTS kv_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func encodeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func encodeStrings(ss []string) string {
	b, err := json.Marshal(ss)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeStrings(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

const sqliteTimeFormat = time.RFC3339Nano

// SaveMemory inserts or replaces a memory row by ID.
func (s *SQLiteStore) SaveMemory(ctx context.Context, m *Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memories (id, title, content, memory_type, tags, related_files, importance,
			created_at, updated_at, last_accessed_at, access_count, git_commit, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			memory_type = excluded.memory_type,
			tags = excluded.tags,
			related_files = excluded.related_files,
			importance = excluded.importance,
			updated_at = excluded.updated_at,
			last_accessed_at = excluded.last_accessed_at,
			access_count = excluded.access_count,
			git_commit = excluded.git_commit,
			embedding = excluded.embedding
	`,
		m.ID, m.Title, m.Content, string(m.MemoryType), encodeStrings(m.Tags), encodeStrings(m.RelatedFiles),
		m.Importance, m.CreatedAt.Format(sqliteTimeFormat), m.UpdatedAt.Format(sqliteTimeFormat),
		m.LastAccessedAt.Format(sqliteTimeFormat), m.AccessCount, m.GitCommit, encodeEmbedding(m.Embedding),
	)
	if err != nil {
		return fmt.Errorf("save memory %s: %w", m.ID, err)
	}
	return nil
}

func scanMemory(row interface {
	Scan(dest ...any) error
}) (*Memory, error) {
	var m Memory
	var memType, createdAt, updatedAt, lastAccessedAt, tags, relatedFiles string
	var embedding []byte
	if err := row.Scan(&m.ID, &m.Title, &m.Content, &memType, &tags, &relatedFiles, &m.Importance,
		&createdAt, &updatedAt, &lastAccessedAt, &m.AccessCount, &m.GitCommit, &embedding); err != nil {
		return nil, err
	}
	m.MemoryType = MemoryType(memType)
	m.Tags = decodeStrings(tags)
	m.RelatedFiles = decodeStrings(relatedFiles)
	m.Embedding = decodeEmbedding(embedding)
	m.CreatedAt, _ = time.Parse(sqliteTimeFormat, createdAt)
	m.UpdatedAt, _ = time.Parse(sqliteTimeFormat, updatedAt)
	m.LastAccessedAt, _ = time.Parse(sqliteTimeFormat, lastAccessedAt)
	return &m, nil
}

// GetMemory returns a memory by ID, or ErrNoRows-wrapping error if absent.
func (s *SQLiteStore) GetMemory(ctx context.Context, id string) (*Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("metadata store is closed")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, content, memory_type, tags, related_files, importance,
			created_at, updated_at, last_accessed_at, access_count, git_commit, embedding
		FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("memory %s: %w", id, sql.ErrNoRows)
		}
		return nil, fmt.Errorf("get memory %s: %w", id, err)
	}
	return m, nil
}

// DeleteMemory removes a memory and cascades to its relationships.
func (s *SQLiteStore) DeleteMemory(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete memory %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM relationships WHERE source_id = ? OR target_id = ?`, id, id); err != nil {
		return fmt.Errorf("delete relationships for %s: %w", id, err)
	}
	return tx.Commit()
}

// ListMemories returns memories matching filter, most recently updated
// first when filter.SortByRecent is set.
func (s *SQLiteStore) ListMemories(ctx context.Context, filter MemoryFilter) ([]*Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("metadata store is closed")
	}

	var conds []string
	var args []any

	if filter.Type != "" {
		conds = append(conds, "memory_type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.RelatedFile != "" {
		conds = append(conds, "related_files LIKE ?")
		args = append(args, "%\""+filter.RelatedFile+"\"%")
	}
	for _, tag := range filter.Tags {
		conds = append(conds, "tags LIKE ?")
		args = append(args, "%\""+tag+"\"%")
	}

	query := "SELECT id, title, content, memory_type, tags, related_files, importance, created_at, updated_at, last_accessed_at, access_count, git_commit, embedding FROM memories"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if filter.SortByRecent {
		query += " ORDER BY updated_at DESC"
	} else {
		query += " ORDER BY id ASC"
	}
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	var out []*Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// TouchMemory bumps access_count and last_accessed_at for a retrieved memory.
func (s *SQLiteStore) TouchMemory(ctx context.Context, id string, accessedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET access_count = access_count + 1, last_accessed_at = ? WHERE id = ?`,
		accessedAt.Format(sqliteTimeFormat), id)
	if err != nil {
		return fmt.Errorf("touch memory %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("memory %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// CountMemories returns the total number of stored memories.
func (s *SQLiteStore) CountMemories(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, fmt.Errorf("metadata store is closed")
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count memories: %w", err)
	}
	return n, nil
}

// SaveRelationship inserts or replaces an edge, keyed by (source, target, type).
func (s *SQLiteStore) SaveRelationship(ctx context.Context, r *Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relationships (source_id, target_id, relationship_type, strength, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source_id, target_id, relationship_type) DO UPDATE SET strength = excluded.strength
	`, r.SourceID, r.TargetID, string(r.RelationshipType), r.Strength, r.CreatedAt.Format(sqliteTimeFormat))
	if err != nil {
		return fmt.Errorf("save relationship %s->%s: %w", r.SourceID, r.TargetID, err)
	}
	return nil
}

// GetRelationships returns every edge touching memoryID, in either direction.
func (s *SQLiteStore) GetRelationships(ctx context.Context, memoryID string) ([]*Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("metadata store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, target_id, relationship_type, strength, created_at
		FROM relationships WHERE source_id = ? OR target_id = ?`, memoryID, memoryID)
	if err != nil {
		return nil, fmt.Errorf("get relationships for %s: %w", memoryID, err)
	}
	defer rows.Close()

	var out []*Relationship
	for rows.Next() {
		var r Relationship
		var relType, createdAt string
		if err := rows.Scan(&r.SourceID, &r.TargetID, &relType, &r.Strength, &createdAt); err != nil {
			return nil, fmt.Errorf("scan relationship row: %w", err)
		}
		r.RelationshipType = RelationshipType(relType)
		r.CreatedAt, _ = time.Parse(sqliteTimeFormat, createdAt)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// DeleteRelationship removes one typed edge.
func (s *SQLiteStore) DeleteRelationship(ctx context.Context, sourceID, targetID string, relType RelationshipType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM relationships WHERE source_id = ? AND target_id = ? AND relationship_type = ?`,
		sourceID, targetID, string(relType))
	if err != nil {
		return fmt.Errorf("delete relationship %s->%s: %w", sourceID, targetID, err)
	}
	return nil
}

// DeleteRelationshipsForMemory removes every edge touching memoryID, used
// when a memory is forgotten.
func (s *SQLiteStore) DeleteRelationshipsForMemory(ctx context.Context, memoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM relationships WHERE source_id = ? OR target_id = ?`, memoryID, memoryID)
	if err != nil {
		return fmt.Errorf("delete relationships for %s: %w", memoryID, err)
	}
	return nil
}

// SaveKnowledgeSource inserts or replaces a fetched-URL record.
func (s *SQLiteStore) SaveKnowledgeSource(ctx context.Context, src *KnowledgeSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO knowledge_sources (url, content_hash, fetched_at, indexed_at, ttl_seconds, chunk_count, etag)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			content_hash = excluded.content_hash,
			fetched_at = excluded.fetched_at,
			indexed_at = excluded.indexed_at,
			ttl_seconds = excluded.ttl_seconds,
			chunk_count = excluded.chunk_count,
			etag = excluded.etag
	`, src.URL, src.ContentHash, src.FetchedAt.Format(sqliteTimeFormat), src.IndexedAt.Format(sqliteTimeFormat),
		src.TTLSeconds, src.ChunkCount, src.ETag)
	if err != nil {
		return fmt.Errorf("save knowledge source %s: %w", src.URL, err)
	}
	return nil
}

// GetKnowledgeSource returns a source by normalized URL.
func (s *SQLiteStore) GetKnowledgeSource(ctx context.Context, url string) (*KnowledgeSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("metadata store is closed")
	}

	var src KnowledgeSource
	var fetchedAt, indexedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT url, content_hash, fetched_at, indexed_at, ttl_seconds, chunk_count, etag
		FROM knowledge_sources WHERE url = ?`, url).
		Scan(&src.URL, &src.ContentHash, &fetchedAt, &indexedAt, &src.TTLSeconds, &src.ChunkCount, &src.ETag)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("knowledge source %s: %w", url, sql.ErrNoRows)
		}
		return nil, fmt.Errorf("get knowledge source %s: %w", url, err)
	}
	src.FetchedAt, _ = time.Parse(sqliteTimeFormat, fetchedAt)
	src.IndexedAt, _ = time.Parse(sqliteTimeFormat, indexedAt)
	return &src, nil
}

// DeleteKnowledgeSource removes a source and its chunks.
func (s *SQLiteStore) DeleteKnowledgeSource(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM knowledge_sources WHERE url = ?`, url); err != nil {
		return fmt.Errorf("delete knowledge source %s: %w", url, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM knowledge_chunks WHERE source_url = ?`, url); err != nil {
		return fmt.Errorf("delete knowledge chunks for %s: %w", url, err)
	}
	return tx.Commit()
}

// ReplaceKnowledgeChunks atomically swaps every chunk belonging to url —
// re-indexing a source always replaces its chunk set wholesale, since
// chunk boundaries shift when the underlying page content changes.
func (s *SQLiteStore) ReplaceKnowledgeChunks(ctx context.Context, url string, chunks []*KnowledgeChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM knowledge_chunks WHERE source_url = ?`, url); err != nil {
		return fmt.Errorf("clear chunks for %s: %w", url, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO knowledge_chunks (id, source_url, ordinal, text, embedding) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, url, c.Ordinal, c.Text, encodeEmbedding(c.Embedding)); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// GetKnowledgeChunks returns all chunks for a source, in ordinal order.
func (s *SQLiteStore) GetKnowledgeChunks(ctx context.Context, url string) ([]*KnowledgeChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("metadata store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_url, ordinal, text, embedding FROM knowledge_chunks
		WHERE source_url = ? ORDER BY ordinal ASC`, url)
	if err != nil {
		return nil, fmt.Errorf("get knowledge chunks for %s: %w", url, err)
	}
	defer rows.Close()

	var out []*KnowledgeChunk
	for rows.Next() {
		var c KnowledgeChunk
		var embedding []byte
		if err := rows.Scan(&c.ID, &c.SourceURL, &c.Ordinal, &c.Text, &embedding); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		c.Embedding = decodeEmbedding(embedding)
		out = append(out, &c)
	}
	return out, rows.Err()
}

// GetKnowledgeChunk returns a single chunk by ID.
func (s *SQLiteStore) GetKnowledgeChunk(ctx context.Context, id string) (*KnowledgeChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("metadata store is closed")
	}

	var c KnowledgeChunk
	var embedding []byte
	err := s.db.QueryRowContext(ctx, `SELECT id, source_url, ordinal, text, embedding FROM knowledge_chunks WHERE id = ?`, id).
		Scan(&c.ID, &c.SourceURL, &c.Ordinal, &c.Text, &embedding)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("knowledge chunk %s: %w", id, sql.ErrNoRows)
		}
		return nil, fmt.Errorf("get knowledge chunk %s: %w", id, err)
	}
	c.Embedding = decodeEmbedding(embedding)
	return &c, nil
}

// GetState reads a small scratch value (e.g. BM25 rebuild bookkeeping).
func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", fmt.Errorf("metadata store is closed")
	}
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_state WHERE key = ?`, key).Scan(&v)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("get state %s: %w", key, err)
	}
	return v, nil
}

// SetState writes a small scratch value.
func (s *SQLiteStore) SetState(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set state %s: %w", key, err)
	}
	return nil
}

// Close checkpoints the WAL and closes the underlying connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}
