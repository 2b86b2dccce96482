// Package batch converts every workbook in a directory, with bounded
// parallelism.
package batch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"xl2md/pkg/xl2md"
	"xl2md/pkg/xl2md/models"
)

// Options configures a batch run.
type Options struct {
	// Recursive descends into subdirectories.
	Recursive bool
	// Parallel bounds concurrent conversions; values below 1 mean 4.
	Parallel int
	// OutputDir receives the Markdown artifacts, mirroring the input
	// directory structure; empty writes each next to its source workbook.
	OutputDir string
	// Convert holds the per-file conversion options; nil means defaults.
	Convert *xl2md.Options
	// Progress, when set, is called once per finished file.
	Progress func(Result)
}

// Result records the outcome for one workbook. Err is set when that
// file's conversion failed; other files are unaffected.
type Result struct {
	Input  string
	Output string
	Result *models.ConversionResult
	Err    error
}

// Run converts every workbook found under inputDir and returns one
// Result per file, sorted by input path. A file that fails to convert is
// reported in its Result; only scanning failures and context
// cancellation abort the run.
func Run(ctx context.Context, inputDir string, opts Options) ([]Result, error) {
	inputs, err := scan(inputDir, opts.Recursive)
	if err != nil {
		return nil, err
	}

	parallel := opts.Parallel
	if parallel < 1 {
		parallel = 4
	}
	conv := xl2md.NewConverter(opts.Convert)

	var mu sync.Mutex
	results := make([]Result, 0, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for _, input := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			output := outputPath(inputDir, input, opts.OutputDir)
			res, err := conv.Convert(ctx, input, output)
			r := Result{Input: input, Output: output, Result: res, Err: err}

			mu.Lock()
			results = append(results, r)
			if opts.Progress != nil {
				opts.Progress(r)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Input < results[j].Input })
	return results, nil
}

// scan lists the workbook files under dir. Office lock files ("~$...")
// are skipped.
func scan(dir string, recursive bool) ([]string, error) {
	var inputs []string
	if recursive {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isWorkbook(d.Name()) {
				inputs = append(inputs, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return inputs, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if !entry.IsDir() && isWorkbook(entry.Name()) {
			inputs = append(inputs, filepath.Join(dir, entry.Name()))
		}
	}
	return inputs, nil
}

func isWorkbook(name string) bool {
	if strings.HasPrefix(name, "~$") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return true
	}
	return false
}

// outputPath places the artifact next to its source, or under outputDir
// mirroring the source's position below inputDir.
func outputPath(inputDir, input, outputDir string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + ".md"
	if outputDir == "" {
		return filepath.Join(filepath.Dir(input), base)
	}
	rel, err := filepath.Rel(inputDir, filepath.Dir(input))
	if err != nil || rel == "." {
		return filepath.Join(outputDir, base)
	}
	return filepath.Join(outputDir, rel, base)
}
