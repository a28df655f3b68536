package convert

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// BatchResult records the outcome of one file in a batch conversion.
type BatchResult struct {
	Input   string
	Output  string
	Fused   int
	Skipped bool
	Err     error
}

type BatchOptions struct {
	// OutputDir receives the converted files. Empty means the source
	// directory.
	OutputDir string
	// SkipExisting skips inputs whose converted output already exists.
	SkipExisting bool
	// Concurrency bounds the number of files converted in parallel.
	// Values below 1 mean sequential.
	Concurrency int
}

// ConvertDir converts every adapter file found directly in dir. Files are
// independent: a failed conversion is recorded in its result and never
// aborts the batch.
func ConvertDir(ctx context.Context, dir string, opts BatchOptions) ([]BatchResult, error) {
	files, err := DiscoverAdapters(dir)
	if err != nil {
		return nil, err
	}

	outDir := opts.OutputDir
	if outDir == "" {
		outDir = dir
	}

	results := make([]BatchResult, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Concurrency, 1))

	for i, name := range files {
		results[i] = BatchResult{
			Input:  filepath.Join(dir, name),
			Output: filepath.Join(outDir, OutputName(name)),
		}

		if opts.SkipExisting {
			if _, err := os.Stat(results[i].Output); err == nil {
				results[i].Skipped = true
				slog.Info("skipping, output already exists", "file", name)
				continue
			}
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}

			fused, err := Convert(results[i].Input, results[i].Output, nil)
			if err != nil {
				slog.Error("conversion failed", "file", name, "error", err)
				results[i].Err = err
				return nil
			}

			results[i].Fused = fused
			slog.Info("converted", "file", name, "fused", fused)
			return nil
		})
	}

	g.Wait()
	return results, nil
}

// DiscoverAdapters lists candidate adapter filenames directly in dir, in
// directory order, excluding previously converted outputs.
func DiscoverAdapters(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.Contains(e.Name(), "_zimage") {
			continue
		}

		switch filepath.Ext(e.Name()) {
		case ".safetensors", ".pt", ".pth":
			files = append(files, e.Name())
		}
	}

	return files, nil
}

// OutputName derives the converted filename for an input filename.
func OutputName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + "_zimage.safetensors"
}
