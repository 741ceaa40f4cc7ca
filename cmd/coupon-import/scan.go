package main

import (
	"bufio"
	"context"
	"math/bits"
	"os"
	"sort"
	"unicode/utf8"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/cafe-ordering/internal/domain/coupon"
)

const (
	progressEvery = 10_000_000
	// maxFiles is the width of the per-code file bitmask.
	maxFiles = bits.UintSize
)

type scanConfig struct {
	MinFiles          int
	ExpectedCodes     uint
	FalsePositiveRate float64
}

func (c scanConfig) check(files int) error {
	switch {
	case files == 0:
		return errors.New("no files matched")
	case files > maxFiles:
		return errors.Errorf("at most %d files are supported, got %d", maxFiles, files)
	case c.MinFiles < 1 || c.MinFiles > files:
		return errors.Errorf("min-files must be between 1 and %d", files)
	case c.ExpectedCodes == 0:
		return errors.New("expected-codes must be positive")
	case c.FalsePositiveRate <= 0 || c.FalsePositiveRate >= 1:
		return errors.New("fpr must be between 0 and 1")
	}
	return nil
}

// findCodes returns the sorted codes present in at least cfg.MinFiles files.
//
// Pass 1 builds a bloom filter per file. Pass 2 re-streams each file and keeps
// only codes that the filters place in enough files, marking the file's own
// bit. Merging the exact per-file bits drops bloom false positives.
func findCodes(ctx context.Context, lg *zap.Logger, files []string, cfg scanConfig) ([]string, error) {
	lg.Info("Pass 1: building bloom filters", zap.Int("files", len(files)))
	filters, err := buildBloomFilters(ctx, lg, files, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "build bloom filters")
	}

	lg.Info("Pass 2: finding candidate codes")
	results := make([]map[string]uint, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(findCandidatesInFile(gctx, lg, i, f, filters, cfg.MinFiles, results))
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "find candidates")
	}

	merged := make(map[string]uint)
	for _, r := range results {
		for code, mask := range r {
			merged[code] |= mask
		}
	}

	var codes []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= cfg.MinFiles {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes, nil
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func buildBloomFilters(ctx context.Context, lg *zap.Logger, files []string, cfg scanConfig) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(cfg.ExpectedCodes, cfg.FalsePositiveRate)
			var count uint64

			if err := streamGzFile(ctx, path, func(code string) {
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					lg.Info("Pass 1 progress", zap.String("file", path), zap.Uint64("codes", count))
				}
			}); err != nil {
				return errors.Wrapf(err, "build filter for %s", path)
			}

			lg.Info("Pass 1 complete", zap.String("file", path), zap.Uint64("total_codes", count))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func findCandidatesInFile(
	ctx context.Context,
	lg *zap.Logger,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	minFiles int,
	results []map[string]uint,
) func() error {
	return func() error {
		candidates := make(map[string]uint)
		fileBit := uint(1) << uint(idx)
		var count uint64

		if err := streamGzFile(ctx, path, func(code string) {
			count++
			if count%progressEvery == 0 {
				lg.Info("Pass 2 progress", zap.String("file", path), zap.Uint64("codes", count))
			}

			// The code is in this file; count how many others may hold it.
			seen := 1
			for j, f := range filters {
				if j != idx && f.TestString(code) {
					seen++
				}
			}
			if seen >= minFiles {
				candidates[code] |= fileBit
			}
		}); err != nil {
			return errors.Wrapf(err, "scan %s for candidates", path)
		}

		lg.Info("Pass 2 complete",
			zap.String("file", path),
			zap.Uint64("total_codes", count),
			zap.Int("candidates", len(candidates)),
		)
		results[idx] = candidates
		return nil
	}
}

// streamGzFile opens a gzip-compressed file and calls fn for each normalised
// code whose length a coupon code may have. Other lines are skipped.
func streamGzFile(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		code := coupon.NormalizeCode(scanner.Text())
		if n := utf8.RuneCountInString(code); n < coupon.MinCodeLen || n > coupon.MaxCodeLen {
			continue
		}
		fn(code)
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
