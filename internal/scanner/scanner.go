// Package scanner sweeps a CIDR block for hosts that accept an
// anonymous FTP login, bounding concurrent probes the same way
// planet-pulse's ftpmachine bounded concurrent connections with a
// buffered channel, and caching reverse-DNS lookups the way the
// teacher's go.mod already pulled in hashicorp/golang-lru for. It is
// grounded on original_source/scanner.py's FTP_Scanner.ftp_iter.
package scanner

import (
	"context"
	"net"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/arlowe/ftpindexd/internal/ferror"
	"github.com/arlowe/ftpindexd/internal/gate"
	"github.com/arlowe/ftpindexd/internal/prober"
)

// Config holds the parameters used to probe each candidate host.
type Config struct {
	Port     int
	User     string
	Pass     string
	Timeout  time.Duration
	MaxScans int
}

// Host is one FTP server discovered by a scan.
type Host struct {
	IP   string
	Name string
}

// Scanner sweeps networks for Hosts.
type Scanner struct {
	cfg       Config
	nameCache *lru.Cache
}

// New builds a Scanner. nameCacheSize bounds the number of
// IP-to-reverse-DNS-name entries kept between scans.
func New(cfg Config, nameCacheSize int) (*Scanner, error) {
	cache, err := lru.New(nameCacheSize)
	if err != nil {
		return nil, err
	}
	return &Scanner{cfg: cfg, nameCache: cache}, nil
}

// Scan probes every usable host address in network concurrently,
// bounded by cfg.MaxScans, and returns the ones that accepted a login.
// It blocks until every probe it launched has finished, even if ctx is
// canceled partway through — canceled probes simply report false.
func (s *Scanner) Scan(ctx context.Context, network *net.IPNet) ([]Host, error) {
	ips := hostAddrs(network)

	g := gate.New(s.cfg.MaxScans)
	var mu sync.Mutex
	var found []Host

	for _, ip := range ips {
		ip := ip
		if err := g.Acquire(ctx); err != nil {
			break
		}
		go func() {
			defer g.Release()
			if !prober.Probe(ctx, ip, prober.Config{
				Port:    s.cfg.Port,
				User:    s.cfg.User,
				Pass:    s.cfg.Pass,
				Timeout: s.cfg.Timeout,
			}) {
				return
			}
			name := s.reverseName(ip)
			mu.Lock()
			found = append(found, Host{IP: ip, Name: name})
			mu.Unlock()
		}()
	}
	g.Join()

	ferror.Infof("scanner", "scanned %d candidate hosts, %d online", len(ips), len(found))
	return found, ctx.Err()
}

// reverseName resolves ip to a PTR name, caching the result. On
// lookup failure it silently falls back to the raw IP, matching
// original_source/scanner.py's reverse_ip, which swallows
// socket.herror.
func (s *Scanner) reverseName(ip string) string {
	if v, ok := s.nameCache.Get(ip); ok {
		return v.(string)
	}
	names, err := net.LookupAddr(ip)
	name := ip
	if err == nil && len(names) > 0 {
		name = names[0]
	}
	s.nameCache.Add(ip, name)
	return name
}

// hostAddrs enumerates every usable host address in network,
// excluding the network and broadcast addresses for blocks of /30 or
// larger. /31 and /32 have no network/broadcast address to exclude
// (RFC 3021) and are returned as-is.
func hostAddrs(network *net.IPNet) []string {
	ones, bits := network.Mask.Size()
	base := network.IP.Mask(network.Mask).To4()
	if base == nil {
		// IPv6 enumeration is out of scope; callers pass IPv4 CIDRs.
		return nil
	}

	if ones >= bits-1 {
		var out []string
		ip := cloneIP(base)
		out = append(out, ip.String())
		if ones == bits-1 {
			inc(ip)
			out = append(out, ip.String())
		}
		return out
	}

	hostBits := bits - ones
	total := uint32(1) << uint(hostBits)
	var out []string
	ip := cloneIP(base)
	for i := uint32(1); i < total-1; i++ {
		inc(ip)
		out = append(out, ip.String())
	}
	return out
}

func cloneIP(ip net.IP) net.IP {
	dup := make(net.IP, len(ip))
	copy(dup, ip)
	return dup
}

func inc(ip net.IP) {
	for i := len(ip) - 1; i >= 0; i-- {
		ip[i]++
		if ip[i] != 0 {
			break
		}
	}
}
