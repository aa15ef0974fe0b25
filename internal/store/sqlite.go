package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	apperr "github.com/abdul-hamid-achik/codeagent/internal/errors"
)

// SQLite is a Store persisted in dir/vectors.db. Similarity search is a
// brute-force scan of the collection.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the vector database under dir.
func OpenSQLite(dir string) (*SQLite, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	path := filepath.Join(dir, "vectors.db")
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		model TEXT NOT NULL,
		dim INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS chunks (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		source TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL,
		PRIMARY KEY (collection, id)
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(collection, source);
	`)
	return err
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

func (s *SQLite) GetCollection(ctx context.Context, name string) (*Collection, error) {
	return s.getCollection(ctx, s.db, name)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLite) getCollection(ctx context.Context, q querier, name string) (*Collection, error) {
	var c Collection
	var created int64
	err := q.QueryRowContext(ctx, `SELECT name, model, dim, created_at FROM collections WHERE name = ?`, name).
		Scan(&c.Name, &c.Model, &c.Dim, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCollectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading collection: %w", err)
	}
	c.CreatedAt = time.Unix(created, 0)
	return &c, nil
}

func (s *SQLite) CreateCollection(ctx context.Context, name, model string, dim int) (*Collection, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO collections (name, model, dim, created_at) VALUES (?, ?, ?, ?)`,
		name, model, dim, time.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}
	return s.GetCollection(ctx, name)
}

func (s *SQLite) DropCollection(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE collection = ?`, name); err != nil {
		return fmt.Errorf("dropping chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name); err != nil {
		return fmt.Errorf("dropping collection: %w", err)
	}
	return tx.Commit()
}

func (s *SQLite) ReplaceSource(ctx context.Context, collection, source string, records []Record) error {
	return s.write(ctx, collection, records, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE collection = ? AND source = ?`, collection, source)
		return err
	})
}

func (s *SQLite) Upsert(ctx context.Context, collection string, records []Record) error {
	return s.write(ctx, collection, records, nil)
}

// write validates dimensions and inserts records in one transaction,
// running before first when it is non-nil.
func (s *SQLite) write(ctx context.Context, collection string, records []Record, before func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	c, err := s.getCollection(ctx, tx, collection)
	if err != nil {
		return err
	}
	if err := checkDims(c, records); err != nil {
		return err
	}

	if before != nil {
		if err := before(tx); err != nil {
			return fmt.Errorf("deleting previous chunks: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks (collection, id, source, ordinal, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, collection, r.ID, r.Source, r.Ordinal, r.Text, encodeVector(r.Vector)); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) DeleteSource(ctx context.Context, collection, source string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE collection = ? AND source = ?`, collection, source)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLite) Query(ctx context.Context, collection string, vector []float32, k int) ([]Match, error) {
	if _, err := s.GetCollection(ctx, collection); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, ordinal, content, embedding FROM chunks WHERE collection = ?`, collection)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var r Record
		var blob []byte
		if err := rows.Scan(&r.ID, &r.Source, &r.Ordinal, &r.Text, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		r.Vector = decodeVector(blob)
		matches = append(matches, Match{Record: r, Score: Cosine(vector, r.Vector)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, apperr.NoResults(collection)
	}
	return rank(matches, k), nil
}

func (s *SQLite) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE collection = ?`, collection).Scan(&n)
	return n, err
}

func (s *SQLite) IDs(ctx context.Context, collection, source string) ([]string, error) {
	query := `SELECT id FROM chunks WHERE collection = ? ORDER BY id`
	args := []any{collection}
	if source != "" {
		query = `SELECT id FROM chunks WHERE collection = ? AND source = ? ORDER BY id`
		args = append(args, source)
	}
	return s.column(ctx, query, args...)
}

func (s *SQLite) Sources(ctx context.Context, collection string) ([]string, error) {
	return s.column(ctx, `SELECT DISTINCT source FROM chunks WHERE collection = ? ORDER BY source`, collection)
}

func (s *SQLite) column(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// encodeVector packs float32s little-endian.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
