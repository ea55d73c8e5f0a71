package registry

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS hosts (
	ip           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	online       INTEGER NOT NULL,
	last_online  INTEGER NOT NULL,
	last_indexed INTEGER,
	file_count   INTEGER,
	size         INTEGER
);
`

// SQLite is a modernc.org/sqlite-backed Registry.
type SQLite struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenSQLite opens (creating if needed) the registry database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("registry: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

type sqliteSession struct {
	store *SQLite
	tx    *sql.Tx
	done  bool
}

func (s *SQLite) OpenSession(ctx context.Context) (Session, error) {
	s.mu.Lock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("registry: begin session: %w", err)
	}
	return &sqliteSession{store: s, tx: tx}, nil
}

func (sess *sqliteSession) SetHosts(hosts map[string]Host) error {
	if _, err := sess.tx.Exec("DELETE FROM hosts"); err != nil {
		return fmt.Errorf("registry: clear hosts: %w", err)
	}
	stmt, err := sess.tx.Prepare(`
		INSERT INTO hosts (ip, name, online, last_online, last_indexed, file_count, size)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("registry: prepare insert: %w", err)
	}
	defer stmt.Close()

	for ip, h := range hosts {
		var lastIndexed *int64
		if h.LastIndexed != nil {
			v := h.LastIndexed.Unix()
			lastIndexed = &v
		}
		online := 0
		if h.Online {
			online = 1
		}
		if _, err := stmt.Exec(ip, h.Name, online, h.LastOnline.Unix(), lastIndexed, h.FileCount, h.Size); err != nil {
			return fmt.Errorf("registry: insert %s: %w", ip, err)
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
		return fmt.Errorf("registry: commit session: %w", err)
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
		return fmt.Errorf("registry: discard session: %w", err)
	}
	return nil
}

func (s *SQLite) GetHosts(ctx context.Context) (map[string]Host, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT ip, name, online, last_online, last_indexed, file_count, size FROM hosts")
	if err != nil {
		return nil, fmt.Errorf("registry: get hosts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Host)
	for rows.Next() {
		var (
			h           Host
			online      int
			lastOnline  int64
			lastIndexed sql.NullInt64
			fileCount   sql.NullInt64
			size        sql.NullInt64
		)
		if err := rows.Scan(&h.IP, &h.Name, &online, &lastOnline, &lastIndexed, &fileCount, &size); err != nil {
			return nil, fmt.Errorf("registry: scan host: %w", err)
		}
		h.Online = online != 0
		h.LastOnline = time.Unix(lastOnline, 0)
		if lastIndexed.Valid {
			t := time.Unix(lastIndexed.Int64, 0)
			h.LastIndexed = &t
		}
		if fileCount.Valid {
			n := int(fileCount.Int64)
			h.FileCount = &n
		}
		if size.Valid {
			h.Size = &size.Int64
		}
		out[h.IP] = h
	}
	return out, rows.Err()
}
