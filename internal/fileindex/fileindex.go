// Package fileindex stores and searches the files discovered on each
// indexed host. It is grounded on original_source/app/db/sqlite.py's
// _IndexDatabase, upgraded from that module's FTS4/unicode61 virtual
// table to FTS5 with remove_diacritics 2, which performs the same
// accent-folding the Python original got from its tokenizer choice.
package fileindex

import "context"

// File is one entry discovered while walking a host.
type File struct {
	Path string // directory the file lives in, FTP-style ("/pub/linux")
	Name string
	Size int64
}

// Hit is one search result. Host is the raw IP the file was found
// on — display-name resolution is the caller's job, via the registry.
type Hit struct {
	Path string
	Name string
	Host string
	Size int64
}

// Stats summarizes what is currently indexed for one host.
type Stats struct {
	FileCount int
	Size      int64
}

// HostSession batches the files discovered during a single walk of
// one host into one atomic replace of that host's prior contents.
type HostSession interface {
	// Append adds a batch of files found under one directory.
	Append(files []File) error
	// Commit makes the batch visible, replacing anything previously
	// indexed for this host.
	Commit() error
	// Discard abandons the batch, leaving the previous index for this
	// host untouched.
	Discard() error
}

// Index is the persistent store behind the daemon's file search.
type Index interface {
	// OpenHostSession begins a new replace-all batch for ip.
	OpenHostSession(ctx context.Context, ip string) (HostSession, error)
	// Prune removes every host's files whose IP is not in keep.
	Prune(ctx context.Context, keep []string) error
	// Search performs an accent-folded full-text search across path
	// and name, optionally restricted to hosts, returning at most
	// limit hits.
	Search(ctx context.Context, terms string, hosts []string, limit int) ([]Hit, error)
	// Stats reports the current file count and total size indexed for ip.
	Stats(ctx context.Context, ip string) (Stats, error)
	// Close releases the underlying store.
	Close() error
}
