// Package registry tracks every host the scanner has ever seen online
// and its current indexing status. It is grounded on
// original_source/app/db/sqlite.py's _ScanDatabase.
package registry

import (
	"context"
	"time"
)

// Host is a known FTP server and its last-observed state.
type Host struct {
	IP          string
	Name        string
	Online      bool
	LastOnline  time.Time
	LastIndexed *time.Time
	FileCount   *int
	Size        *int64
}

// Session batches a full replace of the registry's host set, matching
// the per-scan-iteration update pattern in app/daemon.py's _process.
type Session interface {
	// SetHosts replaces the registry's contents with hosts.
	SetHosts(hosts map[string]Host) error
	Commit() error
	Discard() error
}

// Registry is the persistent store of known hosts.
type Registry interface {
	OpenSession(ctx context.Context) (Session, error)
	GetHosts(ctx context.Context) (map[string]Host, error)
	Close() error
}
