// Package daemon implements the scheduler that ties scanning, the
// host registry, and per-host indexing together: a network sweep
// finds hosts, newly-seen or re-scheduled hosts get submitted to a
// worker pool that walks them, and each completed walk reschedules
// itself for the next interval. It is grounded on
// original_source/app/daemon.py's Daemon class, translated from a
// single asyncio event loop plus a ThreadPoolExecutor into a single
// control goroutine plus a channel-driven worker pool: every mutation
// of scheduling state happens inside the control goroutine, reached
// either directly or by posting a closure on cmds, so the disjointness
// invariant (a host is scheduled, submitted, or busy — never more than
// one) never needs a lock.
package daemon

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/arlowe/ftpindexd/internal/ferror"
	"github.com/arlowe/ftpindexd/internal/fileindex"
	"github.com/arlowe/ftpindexd/internal/metrics"
	"github.com/arlowe/ftpindexd/internal/registry"
	"github.com/arlowe/ftpindexd/internal/scanner"
	"github.com/arlowe/ftpindexd/internal/walker"
)

// Config holds the scheduling parameters of one daemon run.
type Config struct {
	Network *net.IPNet

	Port int
	User string
	Pass string

	ScanInterval   time.Duration
	IndexInterval  time.Duration
	IndexTimeout   time.Duration
	OfflineDelay   time.Duration
	MaxIndexTasks  int
	MaxIndexErrors int
}

type indexResult struct {
	ip      string
	success bool
	stats   fileindex.Stats
}

// Daemon owns the scan-index-reschedule scheduling loop.
type Daemon struct {
	cfg     Config
	scanner *scanner.Scanner
	reg     registry.Registry
	idx     fileindex.Index

	cmds       chan func()
	workCh     chan string
	scanResCh  chan []scanner.Host
	stopSignal chan struct{}
	stopOnce   sync.Once
	workerWG   sync.WaitGroup

	// Control-goroutine-only state: never touched outside cmds/process.
	hosts      map[string]registry.Host
	scheduled  map[string]*time.Timer
	submitted  map[string]bool
	busy       map[string]bool
	shouldStop bool
}

// New builds a Daemon over the given collaborators. scn, reg, and idx
// are assumed to already be open; Daemon does not own their lifecycle.
func New(cfg Config, scn *scanner.Scanner, reg registry.Registry, idx fileindex.Index) *Daemon {
	return &Daemon{
		cfg:        cfg,
		scanner:    scn,
		reg:        reg,
		idx:        idx,
		cmds:       make(chan func(), 64),
		workCh:     make(chan string, 4096),
		scanResCh:  make(chan []scanner.Host, 1),
		stopSignal: make(chan struct{}),
		hosts:      make(map[string]registry.Host),
		scheduled:  make(map[string]*time.Timer),
		submitted:  make(map[string]bool),
		busy:       make(map[string]bool),
	}
}

// Stop requests a graceful shutdown. It is safe to call more than
// once and from any goroutine. Hosts already submitted or busy are
// allowed to finish; nothing new is scheduled after Stop is called.
func (d *Daemon) Stop() {
	d.stopOnce.Do(func() { close(d.stopSignal) })
}

// Run loads the known host set, starts the worker pool and scan loop,
// and runs the control loop until Stop is called (or ctx is done) and
// every in-flight index has settled.
func (d *Daemon) Run(ctx context.Context) error {
	hosts, err := d.reg.GetHosts(ctx)
	if err != nil {
		return err
	}
	d.hosts = hosts

	for i := 0; i < d.cfg.MaxIndexTasks; i++ {
		d.workerWG.Add(1)
		go d.indexWorker(ctx)
	}

	go d.runScanLoop(ctx)

	ctxDone := ctx.Done()
	stopSignal := d.stopSignal
	for {
		select {
		case <-ctxDone:
			d.handleStop()
			ctxDone = nil
		case <-stopSignal:
			d.handleStop()
			stopSignal = nil
		case fn := <-d.cmds:
			fn()
		case online := <-d.scanResCh:
			d.process(ctx, online)
		}

		if d.shouldStop && len(d.busy) == 0 && len(d.submitted) == 0 {
			close(d.workCh)
			break
		}
	}

	d.workerWG.Wait()
	return nil
}

func (d *Daemon) handleStop() {
	if d.shouldStop {
		return
	}
	d.shouldStop = true
	for ip, t := range d.scheduled {
		t.Stop()
		delete(d.scheduled, ip)
	}
}

// runScanLoop sweeps the configured network immediately and then every
// ScanInterval, posting results back to scanResCh. It runs outside the
// control goroutine so a long sweep never blocks the control loop
// from servicing scheduled-timer callbacks or worker completions.
func (d *Daemon) runScanLoop(ctx context.Context) {
	for {
		hosts, err := d.scanner.Scan(ctx, d.cfg.Network)
		if err != nil && ctx.Err() != nil {
			return
		}
		if err != nil {
			ferror.ErrorLog("daemon", err)
		}
		select {
		case d.scanResCh <- hosts:
		case <-ctx.Done():
			return
		case <-d.stopSignal:
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-d.stopSignal:
			return
		case <-time.After(d.cfg.ScanInterval):
		}
	}
}

// process folds one scan's results into the known host set: hosts
// seen online are marked as such and, if not already
// scheduled/submitted/busy, scheduled for indexing after the remainder
// of IndexInterval since they were last indexed (zero delay if never
// indexed); hosts not seen are marked offline; hosts offline strictly
// longer than OfflineDelay are evicted from the registry. The file
// index is pruned to the surviving host set every time process runs
// (see DESIGN.md "Pruning cadence").
func (d *Daemon) process(ctx context.Context, online []scanner.Host) {
	now := time.Now()
	onlineSet := make(map[string]scanner.Host, len(online))
	for _, h := range online {
		onlineSet[h.IP] = h
	}

	for ip, h := range d.hosts {
		if _, ok := onlineSet[ip]; ok {
			continue
		}
		h.Online = false
		d.hosts[ip] = h
	}

	for ip, sh := range onlineSet {
		h, known := d.hosts[ip]
		if !known {
			h = registry.Host{IP: ip}
		}
		h.Name = sh.Name
		h.Online = true
		h.LastOnline = now
		d.hosts[ip] = h

		if d.scheduled[ip] == nil && !d.submitted[ip] && !d.busy[ip] {
			d.scheduleIndex(ip, indexDelay(h, now, d.cfg.IndexInterval))
		}
	}

	for ip, h := range d.hosts {
		if h.Online || now.Sub(h.LastOnline) <= d.cfg.OfflineDelay {
			continue
		}
		if t, ok := d.scheduled[ip]; ok {
			t.Stop()
			delete(d.scheduled, ip)
		}
		delete(d.hosts, ip)
	}

	d.persistRegistry(ctx)

	keep := make([]string, 0, len(d.hosts))
	for ip := range d.hosts {
		keep = append(keep, ip)
	}
	if err := d.idx.Prune(ctx, keep); err != nil {
		ferror.ErrorLog("daemon", err)
	}

	metrics.ScanIterations.Inc()
	metrics.HostsOnline.Set(float64(len(online)))
	ferror.Infof("daemon", "scan found %d hosts online, %d known", len(online), len(d.hosts))
}

// indexDelay computes the remaining wait before h should be submitted
// for indexing: the rest of interval since h was last indexed, or zero
// if it has never been indexed or that remainder has already elapsed.
func indexDelay(h registry.Host, now time.Time, interval time.Duration) time.Duration {
	if h.LastIndexed == nil {
		return 0
	}
	delay := h.LastIndexed.Add(interval).Sub(now)
	if delay < 0 {
		return 0
	}
	return delay
}

// submit marks ip as submitted and hands it to the worker pool,
// clearing any pending scheduled timer for it first so the
// disjointness invariant holds.
func (d *Daemon) submit(ip string) {
	if d.submitted[ip] || d.busy[ip] {
		return
	}
	if t, ok := d.scheduled[ip]; ok {
		t.Stop()
		delete(d.scheduled, ip)
	}
	d.submitted[ip] = true
	select {
	case d.workCh <- ip:
	default:
		go func() { d.workCh <- ip }()
	}
}

// scheduleIndex arranges for ip to be submitted after delay, unless
// it is already scheduled.
func (d *Daemon) scheduleIndex(ip string, delay time.Duration) {
	if _, ok := d.scheduled[ip]; ok {
		return
	}
	d.scheduled[ip] = time.AfterFunc(delay, func() {
		d.cmds <- func() {
			delete(d.scheduled, ip)
			if d.shouldStop {
				return
			}
			d.submit(ip)
		}
	})
}

// indexWorker pulls IPs off workCh and walks each one, reporting the
// outcome back to the control goroutine via cmds.
func (d *Daemon) indexWorker(ctx context.Context) {
	defer d.workerWG.Done()
	for ip := range d.workCh {
		d.runIndex(ctx, ip)
	}
}

func (d *Daemon) runIndex(ctx context.Context, ip string) {
	d.cmds <- func() {
		delete(d.submitted, ip)
		d.busy[ip] = true
	}

	walkCtx, cancel := context.WithTimeout(ctx, d.cfg.IndexTimeout)
	defer cancel()

	sink, err := d.idx.OpenHostSession(walkCtx, ip)
	if err != nil {
		ferror.ErrorLog("daemon", err)
		d.cmds <- func() { d.indexed(ctx, indexResult{ip: ip, success: false}) }
		return
	}

	w := walker.New(ip, d.cfg.Port, d.cfg.User, d.cfg.Pass, d.cfg.IndexTimeout, d.cfg.MaxIndexErrors, sink)
	walkErr := w.Walk(walkCtx)
	w.Close()

	success := walkErr == nil
	if success {
		if err := sink.Commit(); err != nil {
			ferror.ErrorLog("daemon", err)
			success = false
		}
	} else {
		ferror.ErrorLog("daemon", walkErr)
		if err := sink.Discard(); err != nil {
			ferror.ErrorLog("daemon", err)
		}
	}

	stats, err := d.idx.Stats(ctx, ip)
	if err != nil {
		ferror.ErrorLog("daemon", err)
	}

	d.cmds <- func() { d.indexed(ctx, indexResult{ip: ip, success: success, stats: stats}) }
}

// indexed folds a completed walk back into scheduling state. It
// reschedules unconditionally — regardless of whether the walk
// succeeded — as long as the host is still known online and the
// daemon is not stopping (see DESIGN.md "Reschedule after failed
// walk").
func (d *Daemon) indexed(ctx context.Context, res indexResult) {
	delete(d.busy, res.ip)
	if res.success {
		metrics.WalksSucceeded.Inc()
		metrics.FilesIndexed.Add(float64(res.stats.FileCount))
	} else {
		metrics.WalksFailed.Inc()
	}

	h, ok := d.hosts[res.ip]
	if !ok {
		return
	}
	now := time.Now()
	h.LastIndexed = &now
	fc := res.stats.FileCount
	sz := res.stats.Size
	h.FileCount = &fc
	h.Size = &sz
	d.hosts[res.ip] = h

	d.persistRegistry(ctx)

	if h.Online && !d.shouldStop {
		d.scheduleIndex(res.ip, d.cfg.IndexInterval)
	}
}

func (d *Daemon) persistRegistry(ctx context.Context) {
	sess, err := d.reg.OpenSession(ctx)
	if err != nil {
		ferror.ErrorLog("daemon", err)
		return
	}
	if err := sess.SetHosts(d.hosts); err != nil {
		ferror.ErrorLog("daemon", err)
		sess.Discard()
		return
	}
	if err := sess.Commit(); err != nil {
		ferror.ErrorLog("daemon", err)
	}
}
