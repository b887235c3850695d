// pulsed — the pagepulse collector daemon and demo driver.
// `pulsed serve` runs the delivery endpoint that pipelines post batches
// to; `pulsed demo` drives an embedded pipeline against a collector.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pagepulse/pagepulse/internal/collector"
	"github.com/pagepulse/pagepulse/internal/config"
	"github.com/pagepulse/pagepulse/internal/notify"
	"github.com/pagepulse/pagepulse/internal/record"
	"github.com/pagepulse/pagepulse/sdk/go/pagepulse"
)

// version is set by ldflags at build time.
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "pulsed",
		Short: "Client event & notification pipeline collector",
	}
	root.AddCommand(serveCmd(), demoCmd(), versionCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func serveCmd() *cobra.Command {
	var (
		addr  string
		db    string
		debug bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the collector endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(debug)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			database, err := collector.NewDatabase(db)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer database.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			server := collector.NewServer(database, addr, log)
			return server.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8477", "listen address")
	cmd.Flags().StringVar(&db, "db", "pagepulse.db", "sqlite database path")
	cmd.Flags().BoolVar(&debug, "debug", false, "debug logging")
	return cmd
}

func demoCmd() *cobra.Command {
	var (
		endpoint string
		events   int
		storeDir string
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Drive a pipeline against a collector",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(true)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			cfg := config.Default()
			cfg.Endpoint = endpoint
			cfg.BatchSize = 10
			cfg.FlushInterval = 2 * time.Second
			cfg.StoreDir = storeDir

			renderer := notify.NewConsoleRenderer(os.Stdout)
			p, err := pagepulse.New(
				pagepulse.WithConfig(cfg),
				pagepulse.WithLogger(log),
				pagepulse.WithRenderer(renderer),
				pagepulse.WithPageProvider(func() record.Page {
					return record.Page{URL: "https://demo.pagepulse.dev/", Path: "/", Title: "demo"}
				}),
			)
			if err != nil {
				return err
			}
			defer p.Close()

			p.Emit(record.TypePageLoad, record.PageLoadPayload{LoadTimeMs: 120})
			for i := 0; i < events; i++ {
				p.Emit(record.TypeClick, record.ClickPayload{Element: "cta", X: i, Y: i * 2})
				if i%4 == 3 {
					p.Emit(record.TypeScrollMilestone, record.ScrollPayload{Percent: 25 * (i%4 + 1)})
				}
			}

			p.Notify(notify.ShowOptions{
				Title: "Demo complete",
				Body:  fmt.Sprintf("%d events emitted", events+1),
				Kind:  record.KindSuccess,
			})

			stats := p.Statistics()
			out, _ := json.MarshalIndent(map[string]any{
				"pending":       p.Pending(),
				"notifications": stats,
			}, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", "http://localhost:8477/v1/events", "collector endpoint")
	cmd.Flags().IntVar(&events, "events", 25, "events to emit")
	cmd.Flags().StringVar(&storeDir, "store", "", "durable store directory (empty = in-memory)")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := map[string]string{
				"version": version,
				"name":    "pulsed",
			}
			out, _ := json.MarshalIndent(info, "", "  ")
			fmt.Println(string(out))
		},
	}
}
