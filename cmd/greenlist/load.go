package main

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"greenlist/internal/greenlist"
	"greenlist/internal/httpx"
	"greenlist/internal/logx"
	"greenlist/internal/openai"
	"greenlist/internal/search"
	"greenlist/internal/store"
)

func newLoadCmd() *cobra.Command {
	var urlsFile string
	var noPages bool
	var migrate bool

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Embed the greenlist URLs and index them for search",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := httpx.LoadRuntimeConfig("loader")
			if err != nil {
				return err
			}
			if err := logx.SetLevel(cfg.LogLevel); err != nil {
				return err
			}
			if urlsFile != "" {
				cfg.Loader.URLsFile = urlsFile
			}

			db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer db.Close()
			repo := store.New(db, nil)
			if err := repo.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("ping db: %w", err)
			}
			if migrate {
				if err := repo.EnsureSchema(cmd.Context()); err != nil {
					return fmt.Errorf("ensure schema: %w", err)
				}
			}

			var indexer greenlist.Indexer
			if cfg.Search.URL != "" {
				client := search.New(cfg.Search.URL, nil)
				if err := client.EnsureIndex(cmd.Context()); err != nil {
					return fmt.Errorf("ensure index: %w", err)
				}
				indexer = client
			}

			llm := openai.New(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, nil)
			job := &greenlist.Job{
				Loader: greenlist.New(greenlist.Config{
					EmbeddingModel: cfg.OpenAI.EmbeddingModel,
					FetchPages:     cfg.Loader.FetchPages && !noPages,
				}, llm, repo, indexer, greenlist.NewFetcher(0)),
				URLsFile: cfg.Loader.URLsFile,
				Feeds:    cfg.Loader.Feeds,
			}

			report, err := job.Run(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	cmd.Flags().StringVar(&urlsFile, "urls", "", "JSON array of URLs (default: GREENLIST_URLS_FILE)")
	cmd.Flags().BoolVar(&noPages, "no-pages", false, "Skip fetching page titles and summaries")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Create the pgvector extension and tables before loading")

	return cmd
}
