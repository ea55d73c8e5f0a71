// Command ftpindexd discovers anonymous FTP servers on a configured
// network and indexes their file listings for full-text search.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/arlowe/ftpindexd/internal/config"
	"github.com/arlowe/ftpindexd/internal/daemon"
	"github.com/arlowe/ftpindexd/internal/ferror"
	"github.com/arlowe/ftpindexd/internal/fileindex"
	"github.com/arlowe/ftpindexd/internal/metrics"
	"github.com/arlowe/ftpindexd/internal/registry"
	"github.com/arlowe/ftpindexd/internal/scanner"
)

func main() {
	root := &cobra.Command{
		Use:   "ftpindexd",
		Short: "Discover and index anonymous FTP servers on a network",
	}
	root.AddCommand(runCmd(), searchCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the scan-and-index daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				log.Fatalf("ftpindexd: %v", err)
			}
			ferror.Verbose = cfg.Verbose
			ferror.SetProductionMode(cfg.LogJSON)

			reg, err := registry.OpenSQLite(cfg.ScanDBPath)
			if err != nil {
				log.Fatalf("ftpindexd: open registry: %v", err)
			}
			defer reg.Close()

			idx, err := fileindex.OpenSQLite(cfg.IndexDBPath)
			if err != nil {
				log.Fatalf("ftpindexd: open file index: %v", err)
			}
			defer idx.Close()

			scn, err := scanner.New(scanner.Config{
				Port:     cfg.Port,
				User:     cfg.User,
				Pass:     cfg.Pass,
				Timeout:  cfg.ScanTimeout,
				MaxScans: cfg.MaxScanTasks,
			}, cfg.ReverseDNSCacheSize)
			if err != nil {
				log.Fatalf("ftpindexd: build scanner: %v", err)
			}

			d := daemon.New(daemon.Config{
				Network:        cfg.Network,
				Port:           cfg.Port,
				User:           cfg.User,
				Pass:           cfg.Pass,
				ScanInterval:   cfg.ScanInterval,
				IndexInterval:  cfg.IndexInterval,
				IndexTimeout:   cfg.IndexTimeout,
				OfflineDelay:   cfg.OfflineDelay,
				MaxIndexTasks:  cfg.MaxIndexTasks,
				MaxIndexErrors: cfg.MaxIndexErrors,
			}, scn, reg, idx)

			if cfg.MetricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				go func() {
					if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
						ferror.ErrorLog("main", err)
					}
				}()
				ferror.Infof("main", "metrics listening on %s", cfg.MetricsAddr)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, signalsFor(cfg.SoftSignals)...)
			go func() {
				<-sig
				ferror.Infof("main", "shutdown requested, finishing in-flight walks")
				d.Stop()
				<-sig // second signal forces immediate exit
				ferror.Infof("main", "second signal received, exiting immediately")
				os.Exit(1)
			}()

			ferror.Infof("main", "scanning %s every %s", cfg.Network, cfg.ScanInterval)
			return d.Run(ctx)
		},
	}
}

func searchCmd() *cobra.Command {
	var onlineOnly bool
	var limit int

	cmd := &cobra.Command{
		Use:   "search <terms...>",
		Short: "Search the file index without starting the daemon",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			reg, err := registry.OpenSQLite(cfg.ScanDBPath)
			if err != nil {
				return fmt.Errorf("open registry: %w", err)
			}
			defer reg.Close()

			idx, err := fileindex.OpenSQLite(cfg.IndexDBPath)
			if err != nil {
				return fmt.Errorf("open file index: %w", err)
			}
			defer idx.Close()

			ctx := context.Background()
			hosts, err := reg.GetHosts(ctx)
			if err != nil {
				return fmt.Errorf("load registry: %w", err)
			}

			var hostFilter []string
			if onlineOnly {
				for ip, h := range hosts {
					if h.Online {
						hostFilter = append(hostFilter, ip)
					}
				}
			}

			hits, err := idx.Search(ctx, strings.Join(args, " "), hostFilter, limit)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			sort.Slice(hits, func(i, j int) bool { return hits[i].Size > hits[j].Size })

			for _, hit := range hits {
				host := hit.Host
				if h, ok := hosts[hit.Host]; ok && h.Name != "" {
					host = h.Name
				}
				fmt.Printf("%-8s  %-20s  %s\n", humanize.Bytes(uint64(hit.Size)), host, joinPath(hit.Path, hit.Name))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&onlineOnly, "online-only", false, "only search hosts currently online")
	cmd.Flags().IntVar(&limit, "limit", 200, "maximum number of results")
	return cmd
}

// signalsFor maps the configured SOFT_SIGNALS names to os.Signal
// values, ignoring names it doesn't recognize and falling back to
// SIGINT/SIGTERM when none are recognized, so a typo in config never
// leaves the daemon unstoppable.
func signalsFor(names []string) []os.Signal {
	known := map[string]os.Signal{
		"INT":  syscall.SIGINT,
		"TERM": syscall.SIGTERM,
		"HUP":  syscall.SIGHUP,
		"QUIT": syscall.SIGQUIT,
	}
	var sigs []os.Signal
	for _, name := range names {
		if s, ok := known[strings.ToUpper(name)]; ok {
			sigs = append(sigs, s)
		}
	}
	if len(sigs) == 0 {
		return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	return sigs
}

func joinPath(dir, name string) string {
	if dir == "" || dir == "/" {
		return "/" + name
	}
	return strings.TrimSuffix(dir, "/") + "/" + name
}
