package fileindex

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/arlowe/ftpindexd/internal/ferror"
)

const schema = `
CREATE VIRTUAL TABLE IF NOT EXISTS files USING fts5(
	path,
	name,
	ip UNINDEXED,
	size UNINDEXED,
	tokenize = 'unicode61 remove_diacritics 2'
);
`

// SQLite is a modernc.org/sqlite-backed Index, using an FTS5 virtual
// table so that searches are both full-text and accent-folded.
type SQLite struct {
	db *sql.DB
	mu sync.Mutex // serializes per-host replace-all writes
}

// OpenSQLite opens (creating if needed) the file index database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("fileindex: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("fileindex: enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("fileindex: create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

type sqliteSession struct {
	store *SQLite
	tx    *sql.Tx
	ip    string
	done  bool
}

func (s *SQLite) OpenHostSession(ctx context.Context, ip string) (HostSession, error) {
	s.mu.Lock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("fileindex: begin session for %s: %w", ip, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE ip = ?", ip); err != nil {
		tx.Rollback()
		s.mu.Unlock()
		return nil, fmt.Errorf("fileindex: clear prior entries for %s: %w", ip, err)
	}
	return &sqliteSession{store: s, tx: tx, ip: ip}, nil
}

func (sess *sqliteSession) Append(files []File) error {
	if sess.done {
		return fmt.Errorf("fileindex: session for %s already finished", sess.ip)
	}
	stmt, err := sess.tx.Prepare("INSERT INTO files (path, name, ip, size) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("fileindex: prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, f := range files {
		if _, err := stmt.Exec(f.Path, f.Name, sess.ip, f.Size); err != nil {
			return fmt.Errorf("fileindex: insert %s/%s: %w", f.Path, f.Name, err)
		}
	}
	return nil
}

func (sess *sqliteSession) Commit() error {
	if sess.done {
		return nil
	}
	sess.done = true
	defer sess.store.mu.Unlock()
	if err := sess.tx.Commit(); err != nil {
		return fmt.Errorf("fileindex: commit session for %s: %w", sess.ip, err)
	}
	return nil
}

func (sess *sqliteSession) Discard() error {
	if sess.done {
		return nil
	}
	sess.done = true
	defer sess.store.mu.Unlock()
	if err := sess.tx.Rollback(); err != nil {
		return fmt.Errorf("fileindex: discard session for %s: %w", sess.ip, err)
	}
	return nil
}

func (s *SQLite) Prune(ctx context.Context, keep []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(keep) == 0 {
		_, err := s.db.ExecContext(ctx, "DELETE FROM files")
		return err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keep)), ",")
	args := make([]any, len(keep))
	for i, ip := range keep {
		args[i] = ip
	}
	q := fmt.Sprintf("DELETE FROM files WHERE ip NOT IN (%s)", placeholders)
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("fileindex: prune: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		ferror.Infof("fileindex", "pruned %d files from hosts not in the keep set", n)
	}
	return nil
}

func (s *SQLite) Search(ctx context.Context, terms string, hosts []string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 200
	}
	query := "SELECT path, name, ip, size FROM files WHERE files MATCH ?"
	args := []any{terms}
	if len(hosts) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(hosts)), ",")
		query += fmt.Sprintf(" AND ip IN (%s)", placeholders)
		for _, h := range hosts {
			args = append(args, h)
		}
	}
	query += " ORDER BY rank LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fileindex: search %q: %w", terms, err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.Path, &h.Name, &h.Host, &h.Size); err != nil {
			return nil, fmt.Errorf("fileindex: scan result: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *SQLite) Stats(ctx context.Context, ip string) (Stats, error) {
	var st Stats
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(SUM(size), 0) FROM files WHERE ip = ?", ip)
	if err := row.Scan(&st.FileCount, &st.Size); err != nil {
		return Stats{}, fmt.Errorf("fileindex: stats for %s: %w", ip, err)
	}
	return st, nil
}
