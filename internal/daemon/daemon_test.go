package daemon

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/arlowe/ftpindexd/internal/fileindex"
	"github.com/arlowe/ftpindexd/internal/registry"
	"github.com/arlowe/ftpindexd/internal/scanner"
)

func TestIndexDelayNeverIndexedIsZero(t *testing.T) {
	now := time.Now()
	got := indexDelay(registry.Host{}, now, time.Hour)
	if got != 0 {
		t.Fatalf("indexDelay with no LastIndexed = %v, want 0", got)
	}
}

func TestIndexDelayWaitsOutRemainderOfInterval(t *testing.T) {
	now := time.Now()
	last := now.Add(-10 * time.Minute)
	h := registry.Host{LastIndexed: &last}

	got := indexDelay(h, now, time.Hour)
	want := 50 * time.Minute
	if got < want-time.Second || got > want+time.Second {
		t.Fatalf("indexDelay = %v, want ~%v", got, want)
	}
}

func TestIndexDelayElapsedIntervalIsZero(t *testing.T) {
	now := time.Now()
	last := now.Add(-2 * time.Hour)
	h := registry.Host{LastIndexed: &last}

	got := indexDelay(h, now, time.Hour)
	if got != 0 {
		t.Fatalf("indexDelay with elapsed interval = %v, want 0", got)
	}
}

// memRegistry is a minimal in-memory registry.Registry for tests.
type memRegistry struct {
	mu    sync.Mutex
	hosts map[string]registry.Host
}

func newMemRegistry() *memRegistry { return &memRegistry{hosts: map[string]registry.Host{}} }

type memRegSession struct {
	reg  *memRegistry
	next map[string]registry.Host
}

func (r *memRegistry) OpenSession(ctx context.Context) (registry.Session, error) {
	return &memRegSession{reg: r}, nil
}
func (s *memRegSession) SetHosts(hosts map[string]registry.Host) error {
	cp := make(map[string]registry.Host, len(hosts))
	for k, v := range hosts {
		cp[k] = v
	}
	s.next = cp
	return nil
}
func (s *memRegSession) Commit() error {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	s.reg.hosts = s.next
	return nil
}
func (s *memRegSession) Discard() error { return nil }
func (r *memRegistry) GetHosts(ctx context.Context) (map[string]registry.Host, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make(map[string]registry.Host, len(r.hosts))
	for k, v := range r.hosts {
		cp[k] = v
	}
	return cp, nil
}
func (r *memRegistry) Close() error { return nil }

// memIndex is a minimal in-memory fileindex.Index for tests.
type memIndex struct {
	mu     sync.Mutex
	pruned []string
}

func (m *memIndex) OpenHostSession(ctx context.Context, ip string) (fileindex.HostSession, error) {
	return &memHostSession{}, nil
}
func (m *memIndex) Prune(ctx context.Context, keep []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned = keep
	return nil
}
func (m *memIndex) Search(ctx context.Context, terms string, hosts []string, limit int) ([]fileindex.Hit, error) {
	return nil, nil
}
func (m *memIndex) Stats(ctx context.Context, ip string) (fileindex.Stats, error) {
	return fileindex.Stats{}, nil
}
func (m *memIndex) Close() error { return nil }

type memHostSession struct{}

func (s *memHostSession) Append(files []fileindex.File) error { return nil }
func (s *memHostSession) Commit() error                       { return nil }
func (s *memHostSession) Discard() error                      { return nil }

func TestRunStopsGracefullyOnContextCancel(t *testing.T) {
	_, network, err := net.ParseCIDR("203.0.113.0/30")
	if err != nil {
		t.Fatal(err)
	}
	scn, err := scanner.New(scanner.Config{
		Port: 21, User: "anonymous", Pass: "anonymous",
		Timeout: 20 * time.Millisecond, MaxScans: 2,
	}, 16)
	if err != nil {
		t.Fatal(err)
	}

	d := New(Config{
		Network:        network,
		Port:           21,
		User:           "anonymous",
		Pass:           "anonymous",
		ScanInterval:   50 * time.Millisecond,
		IndexInterval:  time.Minute,
		IndexTimeout:   time.Second,
		OfflineDelay:   time.Hour,
		MaxIndexTasks:  2,
		MaxIndexErrors: 1,
	}, scn, newMemRegistry(), &memIndex{})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- d.Run(ctx) }()

	select {
	case err := <-runDone:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	_, network, err := net.ParseCIDR("203.0.113.0/30")
	if err != nil {
		t.Fatal(err)
	}
	scn, err := scanner.New(scanner.Config{
		Port: 21, User: "anonymous", Pass: "anonymous",
		Timeout: 20 * time.Millisecond, MaxScans: 2,
	}, 16)
	if err != nil {
		t.Fatal(err)
	}
	d := New(Config{
		Network: network, Port: 21, User: "anonymous", Pass: "anonymous",
		ScanInterval: time.Minute, IndexInterval: time.Minute, IndexTimeout: time.Second,
		OfflineDelay: time.Hour, MaxIndexTasks: 1, MaxIndexErrors: 1,
	}, scn, newMemRegistry(), &memIndex{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- d.Run(ctx) }()

	d.Stop()
	d.Stop() // must not panic

	select {
	case <-runDone:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
