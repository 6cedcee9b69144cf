// Package main is a command line companion to the depicts analyzer server.
// It runs a single category analysis from the terminal and prints the result,
// using the same pipeline and Postgres store as the API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/analyzer"
	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/commons"
	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/config"
	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/jobs"
	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/labelcache"
	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/store"
	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/wikidata"
	"github.com/mfscpayload-690/commons-depicts-analyzer/pkg/models"
)

var (
	category   string
	language   string
	asJSON     bool
	migrations string

	rootCmd = &cobra.Command{
		Use:   "depicts",
		Short: "Analyze Wikimedia Commons categories for depicts statements",
	}

	analyzeCmd = &cobra.Command{
		Use:   "analyze",
		Short: "Analyze one category and store the per-file results",
		RunE:  runAnalyze,
	}

	suggestCmd = &cobra.Command{
		Use:   "suggest [prefix]",
		Short: "Print category name completions for a prefix",
		Args:  cobra.ExactArgs(1),
		RunE:  runSuggest,
	}
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	analyzeCmd.Flags().StringVarP(&category, "category", "c", "", "Commons category to analyze (required)")
	analyzeCmd.Flags().StringVarP(&language, "language", "l", "", "preferred label language")
	analyzeCmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	analyzeCmd.Flags().StringVar(&migrations, "migrations", "migrations", "path to the migrations directory")
	analyzeCmd.MarkFlagRequired("category")

	suggestCmd.Flags().StringVarP(&language, "language", "l", "", "preferred label language")

	rootCmd.AddCommand(analyzeCmd, suggestCmd)
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool := store.NewPool(store.PgxDialer(cfg.Database.URL), cfg.Database.PoolSize)
	defer pool.Close(context.Background())

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if err := store.RunMigrations(cfg.Database.URL, migrations); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	svc := newService(cfg, store.NewPostgresStore(pool))

	cmd.SilenceUsage = true

	progress := func(processed, total int) {
		fmt.Fprintf(os.Stderr, "\rchecked %d/%d files", processed, total)
	}
	result, err := svc.RunOnce(ctx, category, language, progress)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printResult(result)
	return nil
}

func runSuggest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cmd.SilenceUsage = true

	client := commons.NewHTTPClient(cfg.Commons.BaseURL, cfg.Commons.UserAgent, cfg.Commons.Timeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	suggestions, err := client.SuggestCategories(ctx, args[0], 10)
	if err != nil {
		return err
	}
	for _, s := range suggestions {
		fmt.Println(s)
	}
	return nil
}

func newService(cfg *config.Config, s store.Store) *analyzer.Service {
	return analyzer.NewService(analyzer.Deps{
		Commons:         commons.NewHTTPClient(cfg.Commons.BaseURL, cfg.Commons.UserAgent, cfg.Commons.Timeout),
		Wikidata:        wikidata.NewHTTPClient(cfg.Wikidata.BaseURL, cfg.Commons.UserAgent, cfg.Wikidata.Timeout),
		Labels:          labelcache.New(cfg.Labels.TTL, cfg.Labels.Capacity),
		Store:           s,
		Jobs:            jobs.NewManager(),
		DefaultLanguage: cfg.Wikidata.DefaultLanguage,
	})
}

func printResult(result *models.AnalysisResult) {
	fmt.Printf("%s: %d files, %d with depicts, %d without\n",
		result.Category,
		result.Statistics.Total,
		result.Statistics.WithDepicts,
		result.Statistics.WithoutDepicts,
	)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tDEPICTS")
	for _, f := range result.Files {
		depicts := "-"
		if f.Depicts != nil {
			depicts = *f.Depicts
		}
		fmt.Fprintf(w, "%s\t%s\n", f.FileName, depicts)
	}
	w.Flush()
}
