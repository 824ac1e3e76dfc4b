// cmd/cdp/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/David-Botos/customer-data-platform/pkg/chat"
	"github.com/David-Botos/customer-data-platform/pkg/cleaner"
	"github.com/David-Botos/customer-data-platform/pkg/export"
	"github.com/David-Botos/customer-data-platform/pkg/model"
	"github.com/David-Botos/customer-data-platform/pkg/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "cdp",
		Short:         "Customer data platform dashboard backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path of the .env file to load")

	root.AddCommand(newServeCmd(&envFile))
	root.AddCommand(newPreprocessCmd(&envFile))
	return root
}

func newServeCmd(envFile *string) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *envFile)
			if err != nil {
				return err
			}
			defer a.close()

			opts := []server.Option{
				server.WithExporter(export.NewExporter(a.converter)),
				server.WithReleaseMode(!debug),
			}
			if a.sink != nil {
				opts = append(opts, server.WithHistory(a.sink))
			}
			assistant, err := chat.NewAssistant(a.cfg.Chat, a.logger, nil)
			switch {
			case errors.Is(err, chat.ErrDisabled):
				a.logger.Info("Chat assistant disabled, GOOGLE_API_KEY is not set")
			case err != nil:
				return err
			default:
				opts = append(opts, server.WithAssistant(assistant))
			}

			srv, err := server.NewServer(a.store, a.matcher, a.logger, opts...)
			if err != nil {
				return err
			}

			// Warm the cache; a failure here is retried on the first request
			if _, err := a.store.Get(ctx); err != nil {
				a.logger.Warn("Initial snapshot load failed", zap.Error(err))
			}

			return srv.Run(ctx, a.cfg.HTTPAddr)
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "Run gin in debug mode")
	return cmd
}

func newPreprocessCmd(envFile *string) *cobra.Command {
	var (
		verify    bool
		exportDir string
	)

	cmd := &cobra.Command{
		Use:   "preprocess",
		Short: "Load and process the collections once and print the run report",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *envFile)
			if err != nil {
				return err
			}
			defer a.close()

			snap, err := a.store.Get(ctx)
			if err != nil {
				return fmt.Errorf("preprocessing failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, snap.Metrics.GenerateReport())
			for _, d := range snap.Data.Diagnostics {
				fmt.Fprintln(out, d.String())
			}

			if exportDir != "" {
				if err := exportTables(export.NewExporter(a.converter), snap.Data, exportDir); err != nil {
					return err
				}
				a.logger.Info("Tables exported", zap.String("dir", exportDir))
			}

			if !verify {
				return nil
			}
			report := cleaner.NewVerifier(a.logger).Verify(snap.Data)
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("failed to print verification report: %w", err)
			}
			if !report.Passed() {
				return fmt.Errorf("verification found %d integrity issues", len(report.IntegrityIssues))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "Check the processed tables for integrity issues")
	cmd.Flags().StringVar(&exportDir, "export-dir", "", "Write every processed table as an XLSX file into this directory")
	return cmd
}

func exportTables(e *export.Exporter, data *model.Processed, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	for _, table := range []*model.Table{data.Clients, data.Memberships, data.Transactions, data.Merged} {
		if table == nil {
			continue
		}
		f, err := os.Create(filepath.Join(dir, export.FileName(table.Name)))
		if err != nil {
			return fmt.Errorf("failed to create export file: %w", err)
		}
		if err := e.Write(f, table); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to close export file: %w", err)
		}
	}
	return nil
}
