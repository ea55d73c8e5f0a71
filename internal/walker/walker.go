// Package walker recursively lists one FTP host's directory tree
// through a retryftp.Session and feeds the files it finds into a
// fileindex.HostSession. The walking shape — recurse into folders,
// skip dot-entries, collect files — matches both planet-pulse's
// pkg/robot (a thin caller of ftpmachine's search) and mirrorbits'
// FTPScanner.walkFtp, and is grounded directly on
// original_source/walker.py's Walker.walk.
package walker

import (
	"context"
	"errors"
	"path"
	"time"
	"unicode/utf8"

	"github.com/jlaffaye/ftp"

	"github.com/arlowe/ftpindexd/internal/ferror"
	"github.com/arlowe/ftpindexd/internal/fileindex"
	"github.com/arlowe/ftpindexd/internal/retryftp"
)

// Walker recursively enumerates one host's anonymous FTP tree.
type Walker struct {
	session   *retryftp.Session
	sink      fileindex.HostSession
	component string
}

// New builds a Walker over ip:port, using sink to record discovered
// files. Call Close on the returned Walker to release its FTP
// connection once the walk is over.
func New(ip string, port int, user, pass string, timeout time.Duration, maxErrors int, sink fileindex.HostSession) *Walker {
	return &Walker{
		session:   retryftp.New(ip, port, user, pass, timeout, maxErrors),
		sink:      sink,
		component: "walker(" + ip + ")",
	}
}

// Walk lists the host's tree breadth-first from the root, recording
// files into the sink as they're found. It returns a non-nil error
// only for conditions the caller must treat as fatal to the whole
// walk (retryftp.ErrMLSDNotSupported, retryftp.ErrTooManyErrors, or an
// I/O error) — permission-denied subdirectories are skipped and
// logged, not fatal.
func (w *Walker) Walk(ctx context.Context) error {
	worklist := []string{""}

	for len(worklist) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		dir := worklist[0]
		worklist = worklist[1:]

		entries, err := w.session.List(dir)
		if err != nil {
			var denied *retryftp.PermissionDeniedError
			if errors.As(err, &denied) {
				ferror.Debugf(w.component, "skipping %s: %v", dir, err)
				continue
			}
			return err
		}

		var files []fileindex.File
		for _, e := range entries {
			if e.Name == "." || e.Name == ".." || len(e.Name) == 0 || e.Name[0] == '.' {
				continue
			}
			name := e.Name
			if !utf8.ValidString(name) {
				name = latin1ToUTF8(name)
				if !utf8.ValidString(name) {
					ferror.Debugf(w.component, "skipping undecodable name under %s", dir)
					continue
				}
				ferror.Debugf(w.component, "re-decoded non-UTF-8 name under %s as Latin-1", dir)
			}

			switch e.Type {
			case ftp.EntryTypeFolder:
				worklist = append(worklist, joinFTPPath(dir, name))
			case ftp.EntryTypeFile:
				files = append(files, fileindex.File{
					Path: dir,
					Name: name,
					Size: int64(e.Size),
				})
			}
		}

		if len(files) > 0 {
			if err := w.sink.Append(files); err != nil {
				return err
			}
		}
	}

	return nil
}

// Close releases the underlying FTP connection.
func (w *Walker) Close() {
	w.session.Close()
}

// latin1ToUTF8 re-decodes a directory entry name that failed UTF-8
// validation as Latin-1 (ISO-8859-1), the workaround non-compliant FTP
// servers' raw listing bytes need: every byte maps one-to-one onto the
// Unicode code point of the same value, so the conversion always
// produces valid UTF-8.
func latin1ToUTF8(s string) string {
	runes := make([]rune, len(s))
	for i := 0; i < len(s); i++ {
		runes[i] = rune(s[i])
	}
	return string(runes)
}

func joinFTPPath(dir, name string) string {
	if dir == "" {
		return "/" + name
	}
	return path.Join(dir, name)
}
