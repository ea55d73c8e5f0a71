package retryftp

import (
	"errors"
	"net/textproto"
	"testing"
	"time"
)

func TestPermanentReplyCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"permanent", &textproto.Error{Code: 550, Msg: "denied"}, true},
		{"transient", &textproto.Error{Code: 425, Msg: "can't open data connection"}, false},
		{"wrapped permanent", wrapErr(&textproto.Error{Code: 530, Msg: "not logged in"}), true},
		{"plain error", errors.New("boom"), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, ok := permanentReplyCode(c.err)
			if ok != c.want {
				t.Fatalf("permanentReplyCode(%v) = %v, want %v", c.err, ok, c.want)
			}
		})
	}
}

func wrapErr(err error) error {
	return &wrapped{err}
}

type wrapped struct{ err error }

func (w *wrapped) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrapped) Unwrap() error { return w.err }

func TestListExhaustsBudgetOnUnreachableHost(t *testing.T) {
	s := New("203.0.113.1", 21, "anonymous", "anonymous", 20*time.Millisecond, 1)
	_, err := s.List("/")
	if !errors.Is(err, ErrTooManyErrors) {
		t.Fatalf("List against an unreachable host = %v, want ErrTooManyErrors", err)
	}
}
