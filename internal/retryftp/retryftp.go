// Package retryftp wraps github.com/jlaffaye/ftp in a session that
// retries transient failures up to a configured budget before giving
// up, the same "reconnect and keep trying" idiom planet-pulse's
// pkg/ftpmachine used around its own connection handling, but aimed
// at original_source/walker.py's Connection class: a session that
// survives dropped connections across many List calls against the
// same host, and turns a permanent negative reply into one of two
// distinct errors depending on whether anything has been listed yet.
package retryftp

import (
	"errors"
	"net"
	"net/textproto"
	"strconv"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/arlowe/ftpindexd/internal/ferror"
)

// Session holds a reconnectable FTP control connection to one host.
type Session struct {
	ip, port   string
	user, pass string
	timeout    time.Duration
	maxErrors  int
	component  string

	conn       *ftp.ServerConn
	everListed bool
}

// New creates a Session targeting ip:port. maxErrors is the number of
// retries allowed after the first failed attempt before List gives up
// with ErrTooManyErrors (so the effective attempt budget is
// maxErrors+1).
func New(ip string, port int, user, pass string, timeout time.Duration, maxErrors int) *Session {
	return &Session{
		ip:        ip,
		port:      strconv.Itoa(port),
		user:      user,
		pass:      pass,
		timeout:   timeout,
		maxErrors: maxErrors,
		component: "retryftp(" + ip + ")",
	}
}

// List lists path, retrying reconnect-and-retry on transient errors up
// to maxErrors+1 total attempts. It returns ErrMLSDNotSupported if a
// permanent negative reply arrives before any listing has succeeded on
// this session, a *PermissionDeniedError if one arrives after that, or
// ErrTooManyErrors if the retry budget is exhausted without success.
func (s *Session) List(path string) ([]*ftp.Entry, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxErrors+1; attempt++ {
		entries, err := s.tryList(path)
		if err == nil {
			s.everListed = true
			return entries, nil
		}

		if _, ok := permanentReplyCode(err); ok {
			if !s.everListed {
				return nil, ErrMLSDNotSupported
			}
			return nil, &PermissionDeniedError{Path: path, Err: err}
		}

		lastErr = err
		ferror.Debugf(s.component, "list %q attempt %d/%d: %v", path, attempt, s.maxErrors+1, err)
		s.teardown()
	}
	ferror.ErrorLog(s.component, lastErr)
	return nil, ErrTooManyErrors
}

func (s *Session) tryList(path string) ([]*ftp.Entry, error) {
	if err := s.ensureConn(); err != nil {
		return nil, err
	}
	entries, err := s.conn.List(path)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Session) ensureConn() error {
	if s.conn != nil {
		return nil
	}
	addr := net.JoinHostPort(s.ip, s.port)
	c, err := ftp.Dial(addr, ftp.DialWithTimeout(s.timeout))
	if err != nil {
		return err
	}
	if err := c.Login(s.user, s.pass); err != nil {
		c.Quit()
		return err
	}
	s.conn = c
	return nil
}

func (s *Session) teardown() {
	if s.conn == nil {
		return
	}
	s.conn.Quit()
	s.conn = nil
}

// Close releases the underlying connection, if any.
func (s *Session) Close() {
	s.teardown()
}

// permanentReplyCode reports whether err is an FTP reply whose code's
// first digit is 5 (a permanent negative completion reply, RFC 959
// §4.2.1), and if so returns that code.
func permanentReplyCode(err error) (int, bool) {
	var perr *textproto.Error
	if errors.As(err, &perr) {
		if perr.Code/100 == 5 {
			return perr.Code, true
		}
	}
	return 0, false
}
