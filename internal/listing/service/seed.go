package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/thriftkids/marketplace/internal/listing"
)

// Demo listing attributes used by the seeder.
const (
	SeedSize      = "6-12m"
	SeedAgeGroup  = "Infant"
	SeedCondition = "Good"
	SeedNotes     = "Demo sample"
)

var seedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// SeedImages returns up to limit image files (.jpg, .jpeg, .png) from dir,
// sorted by name.
func SeedImages(dir string, limit int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read sample images: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := seedExtensions[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}
	paths := make([]string, 0, len(names))
	for _, n := range names {
		paths = append(paths, filepath.Join(dir, n))
	}
	return paths, nil
}

// Seed creates one demo listing from the image at path. Unlike Create it
// needs a real object store and record store and fails when either is
// missing or errors.
func (s *Service) Seed(ctx context.Context, path string) (*listing.Listing, error) {
	if s.objects == nil {
		return nil, errors.New("seed: object store not configured")
	}
	if s.records == nil {
		return nil, errRecordsUnavailable
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}

	base := filepath.Base(path)
	contentType := seedExtensions[strings.ToLower(filepath.Ext(base))]
	imageURL, err := s.objects.Upload(ctx, f, info.Size(), base, contentType)
	if err != nil {
		return nil, fmt.Errorf("seed upload %s: %w", base, err)
	}

	title := "Demo " + strings.TrimSuffix(base, filepath.Ext(base))
	l := &listing.Listing{
		Title:     title,
		Size:      SeedSize,
		AgeGroup:  SeedAgeGroup,
		Condition: SeedCondition,
		Notes:     SeedNotes,
		ImageURL:  imageURL,
		Seeded:    true,
	}
	l.Description = s.seedDescription(ctx, l)

	if err := s.records.Insert(ctx, l); err != nil {
		return nil, fmt.Errorf("seed insert %s: %w", title, err)
	}
	return l, nil
}

func (s *Service) seedDescription(ctx context.Context, l *listing.Listing) string {
	fallback := fmt.Sprintf("%s - %s (fallback)", l.Title, l.Notes)
	if s.model == nil {
		return fallback
	}
	prompt := fmt.Sprintf("Write a short 1-2 sentence marketplace description: %s, size %s, age group %s, condition %s, notes: %s",
		l.Title, l.Size, l.AgeGroup, l.Condition, l.Notes)
	text, err := s.generate(ctx, prompt)
	if err != nil {
		s.log.Warnf("seed generation failed: %v", err)
		return fallback
	}
	return text
}
