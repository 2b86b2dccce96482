// Package main provides the CLI entry point for xl2md.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"xl2md/pkg/xl2md"
	"xl2md/pkg/xl2md/ai"
	"xl2md/pkg/xl2md/batch"
	"xl2md/pkg/xl2md/models"
	"xl2md/pkg/xl2md/output"
	"xl2md/pkg/xl2md/store"
)

var (
	outputPath     string
	presetName     string
	chunkSize      int
	noTOC          bool
	noImages       bool
	genSummary     bool
	noFormulas     bool
	noHeaderDetect bool
	includeHidden  bool
	imageFormat    string
	imageDir       string
	maxImageWidth  int
	maxImageHeight int
	verbose        bool
	printJSON      bool
	aiSummary      bool
	aiImages       bool
	aiQA           bool

	batchRecursive bool
	batchParallel  int
	batchOutputDir string

	historyLimit int
)

func main() {
	// Missing .env is fine; the file only supplies AI credentials.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "xl2md [input.xlsx]",
		Short: "Convert Excel workbooks to RAG-optimized Markdown",
		Long: `xl2md converts Excel workbooks into Markdown documents structured for
RAG ingestion, with companion metadata describing sheets, tables and
cross-sheet references.`,
		Args: cobra.ExactArgs(1),
		RunE: runConvert,
	}
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (default: input name with .md)")
	rootCmd.Flags().BoolVar(&printJSON, "json", false, "Print conversion metadata as JSON to stdout")

	// Conversion options are persistent so batch and presets share them.
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&presetName, "preset", "", "Start from a named option preset ('last' replays the previous run)")
	flags.IntVar(&chunkSize, "chunk-size", 0, "Target chunk size in tokens")
	flags.BoolVar(&noTOC, "no-toc", false, "Skip the table of contents")
	flags.BoolVar(&noImages, "no-images", false, "Skip embedded image extraction")
	flags.BoolVar(&genSummary, "summary", false, "Prefix each table with a one-line summary")
	flags.BoolVar(&noFormulas, "no-formulas", false, "Skip formula notes")
	flags.BoolVar(&noHeaderDetect, "no-header-detect", false, "Do not promote the first row to headers")
	flags.BoolVar(&includeHidden, "include-hidden", false, "Include hidden sheets")
	flags.StringVar(&imageFormat, "image-format", "", "Image re-encode format: png or jpeg")
	flags.StringVar(&imageDir, "image-dir", "", "Image directory relative to the output file")
	flags.IntVar(&maxImageWidth, "max-image-width", 0, "Maximum extracted image width")
	flags.IntVar(&maxImageHeight, "max-image-height", 0, "Maximum extracted image height")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log per-sheet and per-object events")
	flags.BoolVar(&aiSummary, "ai-summary", false, "Append AI table summaries (needs OPENAI_API_KEY)")
	flags.BoolVar(&aiImages, "ai-describe-images", false, "Append AI image descriptions (needs OPENAI_API_KEY)")
	flags.BoolVar(&aiQA, "ai-qa", false, "Append AI-generated Q&A sections (needs OPENAI_API_KEY)")

	rootCmd.AddCommand(newBatchCmd(), newPresetsCmd(), newHistoryCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runConvert(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", inputPath)
	}
	opts, err := buildOptions()
	if err != nil {
		return err
	}

	out := outputPath
	if out == "" {
		out = strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".md"
	}

	start := time.Now()
	result, err := xl2md.NewConverter(&opts).Convert(cmd.Context(), inputPath, out)
	recordHistory(inputPath, out, result, err)
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}
	saveLastUsed(opts)

	metaPath := strings.TrimSuffix(out, filepath.Ext(out)) + ".meta.json"
	if err := output.WriteJSON(metaPath, result.Metadata); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	if printJSON {
		jsonData, err := output.ToJSON(result.Metadata)
		if err != nil {
			return fmt.Errorf("serialization failed: %w", err)
		}
		fmt.Println(jsonData)
		return nil
	}
	fmt.Printf("Converted %s -> %s (%d sheets, %d tables, %d images, ~%d chunks) in %s\n",
		inputPath, out, result.SheetsCount, result.TablesCount, result.ImagesCount,
		result.EstimatedChunks, time.Since(start).Round(time.Millisecond))
	return nil
}

// buildOptions layers the preset (when named) under the explicit flags.
func buildOptions() (xl2md.Options, error) {
	opts := xl2md.DefaultOptions()
	switch presetName {
	case "":
	case "last":
		preset, ok, err := presetStore().LastUsed()
		if err != nil {
			return opts, err
		}
		if !ok {
			return opts, fmt.Errorf("no previous conversion to replay")
		}
		opts = preset.Options()
	default:
		preset, ok, err := presetStore().Get(presetName)
		if err != nil {
			return opts, err
		}
		if !ok {
			return opts, fmt.Errorf("unknown preset: %s", presetName)
		}
		opts = preset.Options()
	}

	if chunkSize > 0 {
		opts.ChunkSize = chunkSize
	}
	if noTOC {
		opts.CreateTOC = false
	}
	if noImages {
		opts.ExtractImages = false
	}
	if genSummary {
		opts.GenerateSummary = true
	}
	if noFormulas {
		opts.ShowFormulas = false
	}
	if noHeaderDetect {
		opts.DetectHeader = false
	}
	if includeHidden {
		opts.IncludeHidden = true
	}
	if imageFormat != "" {
		opts.ImageFormat = imageFormat
	}
	if imageDir != "" {
		opts.ImageDir = imageDir
	}
	if maxImageWidth > 0 {
		opts.MaxImageWidth = maxImageWidth
	}
	if maxImageHeight > 0 {
		opts.MaxImageHeight = maxImageHeight
	}
	opts.Verbose = verbose

	if aiSummary || aiImages || aiQA {
		client, err := ai.NewClientFromEnv()
		if err != nil {
			return opts, fmt.Errorf("AI features requested: %w", err)
		}
		opts.Analyzer = client
		opts.AITableSummary = aiSummary
		opts.AIImageDescription = aiImages
		opts.AIGenerateQA = aiQA
	}
	return opts, nil
}

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [input-dir]",
		Short: "Convert every workbook in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := buildOptions()
			if err != nil {
				return err
			}
			results, err := batch.Run(cmd.Context(), args[0], batch.Options{
				Recursive: batchRecursive,
				Parallel:  batchParallel,
				OutputDir: batchOutputDir,
				Convert:   &opts,
				Progress: func(r batch.Result) {
					if r.Err != nil {
						fmt.Printf("FAIL %s: %v\n", r.Input, r.Err)
					} else {
						fmt.Printf("ok   %s -> %s\n", r.Input, r.Output)
					}
				},
			})
			if err != nil {
				return err
			}
			failed := 0
			for _, r := range results {
				recordHistory(r.Input, r.Output, r.Result, r.Err)
				if r.Err != nil {
					failed++
				}
			}
			fmt.Printf("%d converted, %d failed\n", len(results)-failed, failed)
			if failed > 0 {
				return fmt.Errorf("%d of %d conversions failed", failed, len(results))
			}
			if len(results) > 0 {
				saveLastUsed(opts)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&batchRecursive, "recursive", "r", false, "Descend into subdirectories")
	cmd.Flags().IntVar(&batchParallel, "parallel", 4, "Maximum concurrent conversions")
	cmd.Flags().StringVar(&batchOutputDir, "output-dir", "", "Directory for Markdown output (default: next to each input)")
	return cmd
}

func newPresetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "Manage conversion presets",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List available presets",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				presets, err := presetStore().List()
				if err != nil {
					return err
				}
				for _, p := range presets {
					fmt.Printf("%-16s chunk=%d toc=%v images=%v  %s\n",
						p.Name, p.ChunkSize, p.CreateTOC, p.ExtractImages, p.Description)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "save [name]",
			Short: "Save the current flags as a preset",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				opts, err := buildOptions()
				if err != nil {
					return err
				}
				return presetStore().Save(store.Preset{
					Name:            args[0],
					ChunkSize:       opts.ChunkSize,
					CreateTOC:       opts.CreateTOC,
					ExtractImages:   opts.ExtractImages,
					GenerateSummary: opts.GenerateSummary,
					ShowFormulas:    opts.ShowFormulas,
					DetectHeader:    opts.DetectHeader,
					IncludeHidden:   opts.IncludeHidden,
					ImageFormat:     opts.ImageFormat,
					MaxImageWidth:   opts.MaxImageWidth,
					MaxImageHeight:  opts.MaxImageHeight,
				})
			},
		},
		&cobra.Command{
			Use:   "delete [name]",
			Short: "Delete a saved preset",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return presetStore().Delete(args[0])
			},
		},
	)
	return cmd
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [query]",
		Short: "Show recent conversions, optionally filtered by path substring",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h := historyStore()
			var entries []store.HistoryEntry
			var err error
			if len(args) == 1 {
				entries, err = h.Search(args[0])
			} else {
				entries, err = h.List(historyLimit)
			}
			if err != nil {
				return err
			}
			for _, e := range entries {
				status := "ok"
				if !e.Success {
					status = "FAIL"
				}
				fmt.Printf("%s  %-4s %s -> %s (%d sheets, %d tables)\n",
					e.ConvertedAt.Format("2006-01-02 15:04"), status, e.Input, e.Output,
					e.SheetsCount, e.TablesCount)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum entries to show")
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete all history entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return historyStore().Clear()
		},
	})
	return cmd
}

// saveLastUsed makes the effective options available via --preset last.
func saveLastUsed(opts xl2md.Options) {
	if err := presetStore().SaveLastUsed(opts); err != nil && verbose {
		fmt.Fprintf(os.Stderr, "recording last-used options: %v\n", err)
	}
}

func recordHistory(input, out string, result *models.ConversionResult, convErr error) {
	entry := store.HistoryEntry{Input: input, Output: out, Success: convErr == nil}
	if convErr != nil {
		entry.Error = convErr.Error()
	}
	if result != nil {
		entry.SheetsCount = result.SheetsCount
		entry.TablesCount = result.TablesCount
		entry.ImagesCount = result.ImagesCount
	}
	if _, err := historyStore().Record(entry); err != nil && verbose {
		fmt.Fprintf(os.Stderr, "recording history: %v\n", err)
	}
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".xl2md"
	}
	return filepath.Join(home, ".xl2md")
}

func presetStore() *store.PresetStore {
	return store.NewPresetStore(filepath.Join(configDir(), "presets.json"))
}

func historyStore() *store.History {
	return store.NewHistory(filepath.Join(configDir(), "history.json"))
}
