package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/thriftkids/marketplace/internal/config"
	"github.com/thriftkids/marketplace/internal/database"
	"github.com/thriftkids/marketplace/internal/genai"
	"github.com/thriftkids/marketplace/internal/listing"
	"github.com/thriftkids/marketplace/internal/listing/repository"
	"github.com/thriftkids/marketplace/internal/listing/service"
	"github.com/thriftkids/marketplace/internal/storage"
	"github.com/thriftkids/marketplace/pkg/logger"
)

const (
	defaultSampleDir = "app/static/sample_images"
	defaultLimit     = 3
	defaultPrefix    = storage.SeedPrefix
)

type seeder interface {
	Seed(ctx context.Context, path string) (*listing.Listing, error)
}

func newRootCommand() *cobra.Command {
	var dir, prefix string
	var limit int

	cmd := &cobra.Command{
		Use:           "seed",
		Short:         "Create demo listings from sample images",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			logger.Init(cfg.LogLevel)

			svc, cleanup, err := newSeedService(cmd.Context(), cfg, prefix)
			if err != nil {
				return err
			}
			defer cleanup()
			return runSeed(cmd.Context(), cmd.OutOrStdout(), svc, dir, limit)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", defaultSampleDir, "Directory holding sample .jpg/.jpeg/.png images")
	cmd.Flags().IntVar(&limit, "limit", defaultLimit, "Maximum number of listings to create")
	cmd.Flags().StringVar(&prefix, "prefix", defaultPrefix, "Object key prefix for uploaded images")

	return cmd
}

// newSeedService wires real backends only; seeding never degrades to local
// files or unsaved listings.
func newSeedService(ctx context.Context, cfg *config.Config, prefix string) (*service.Service, func(), error) {
	objects, err := storage.NewMinIOStorage(storage.MinIOConfigFrom(cfg.Storage))
	if err != nil {
		return nil, nil, fmt.Errorf("object store: %w", err)
	}
	if cfg.MongoDB.URI == "" {
		return nil, nil, errors.New("record store: MONGODB_URI not set")
	}
	client, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("record store: %w", err)
	}
	opts := service.Options{
		Objects:      objects.WithPrefix(prefix),
		Records:      repository.NewMongoRepo(client.Database(cfg.MongoDB.Database).Collection(repository.CollectionName)),
		ModelTimeout: cfg.Model.Timeout,
	}
	if cfg.Model.APIKey != "" {
		opts.Model = genai.NewClient(genai.Config{
			APIKey:   cfg.Model.APIKey,
			Endpoint: cfg.Model.Endpoint,
			Model:    cfg.Model.Name,
			Timeout:  cfg.Model.Timeout,
		})
	}
	cleanup := func() { _ = client.Disconnect(context.Background()) }
	return service.New(opts), cleanup, nil
}

func runSeed(ctx context.Context, out io.Writer, s seeder, dir string, limit int) error {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("sample images dir not found: %s", dir)
	}
	paths, err := service.SeedImages(dir, limit)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Fprintf(out, "No sample images in %s\n", dir)
		return nil
	}
	for _, p := range paths {
		l, err := s.Seed(ctx, p)
		if err != nil {
			return fmt.Errorf("seed %s: %w", filepath.Base(p), err)
		}
		fmt.Fprintf(out, "Inserted %s: %s\n", l.ID, l.Title)
	}
	fmt.Fprintf(out, "Seeded %d listings\n", len(paths))
	return nil
}
