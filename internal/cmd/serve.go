package cmd

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kicodex/kicodexd/internal/config"
	"github.com/kicodex/kicodexd/internal/discovery"
	"github.com/kicodex/kicodexd/internal/httpapi"
	"github.com/kicodex/kicodexd/internal/registry"
	"github.com/kicodex/kicodexd/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the kicodexd HTTP daemon",
	Long:  "serve loads the persistent registry, starts the HTTP server, and runs the content watcher and discovery engine until interrupted.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	registryPath := cfg.Registry.Path
	if registryPath == "" {
		registryPath = config.DefaultRegistryPath()
	}

	persisted, err := registry.LoadPersistent(registryPath)
	if err != nil {
		return err
	}

	runtime := registry.FromPersistent(persisted)

	server := httpapi.NewServer(cfg.Server.Addr(), runtime, cfg.Cache.TTL, cfg.Cache.MaxEntries)

	var watchEntries []watcher.Entry
	for _, entry := range persisted.Entries() {
		watchEntries = append(watchEntries, watcher.Entry{Token: entry.Token, LibraryPath: entry.LibraryPath})
	}

	// Built unconditionally, even with zero initial entries, so that a
	// library the discovery engine auto-registers later in this process's
	// lifetime (see OnDiscovery below) has a live watcher to join.
	fileWatcher, err := watcher.New(watchEntries, cfg.Registry.WatchDebounce, cfg.Registry.ReloadBurstPerMin, server.Reload)
	if err != nil {
		log.Printf("[serve] failed to start content watcher: %v", err)
		fileWatcher = nil
	} else {
		go fileWatcher.Start()
		defer fileWatcher.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Discovery.Enabled {
		engine := discovery.NewEngine(persisted, runtime, cfg.Server.Port, cfg.Discovery.ScanInterval, cfg.Discovery.LockWatchDebounce)
		if fileWatcher != nil {
			engine.OnDiscovery(func(p *registry.Persistent) {
				for _, entry := range p.Entries() {
					if err := fileWatcher.AddEntry(entry.Token, entry.LibraryPath); err != nil {
						log.Printf("[serve] failed to watch auto-registered library %s: %v", entry.LibraryPath, err)
					}
				}
			})
		}
		go func() {
			if err := engine.Run(ctx); err != nil {
				log.Printf("[serve] discovery engine stopped: %v", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[serve] listening on %s", cfg.Server.Addr())
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Print("[serve] shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
