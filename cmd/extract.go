package main

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/price-sentry/internal/dom"
	"github.com/sells-group/price-sentry/internal/model"
	"github.com/sells-group/price-sentry/internal/pipeline"
)

var (
	extractFiles   []string
	extractPageURL string
	forceTier      int
	skipTiers      []int
	minConfidence  string
	useLLM         bool
	maxConcurrent  int
)

var extractCmd = &cobra.Command{
	Use:   "extract [url ...]",
	Short: "Extract the booking total from pages",
	Long:  "Runs the tier cascade against live URLs or saved HTML snapshots and prints one JSON result per page.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && len(extractFiles) == 0 {
			return eris.New("nothing to extract: pass URLs or --file")
		}
		if err := cfg.Validate("extract"); err != nil {
			return err
		}

		ctx := cmd.Context()
		env, err := buildEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		opts := pipeline.Options{
			ForceTier:     forceTier,
			SkipTiers:     skipTiers,
			MinConfidence: model.Confidence(minConfidence),
			UseLLM:        useLLM,
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		var encMu sync.Mutex

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxConcurrent)

		run := func(source string, doc *dom.Document) {
			res := env.Pipeline.Run(gctx, doc, opts)
			zap.L().Info("extraction finished",
				zap.String("source", source),
				zap.Bool("ok", res.Final.OK),
				zap.String("confidence", string(res.Final.Confidence)),
				zap.Int("winning_tier", res.WinningTier))
			encMu.Lock()
			defer encMu.Unlock()
			enc.Encode(map[string]any{"source": source, "result": res})
		}

		for _, url := range args {
			g.Go(func() error {
				doc, err := env.Fetcher.Fetch(gctx, url)
				if err != nil {
					return err
				}
				run(url, doc)
				return nil
			})
		}
		for _, path := range extractFiles {
			g.Go(func() error {
				doc, err := loadSnapshot(path, extractPageURL)
				if err != nil {
					return err
				}
				run(path, doc)
				return nil
			})
		}

		return g.Wait()
	},
}

// loadSnapshot parses a saved HTML file. pageURL supplies the hostname the
// snapshot was taken from, since the file itself has none.
func loadSnapshot(path, pageURL string) (*dom.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open snapshot %s", path)
	}
	defer f.Close()
	return dom.Parse(f, pageURL)
}

func init() {
	extractCmd.Flags().StringSliceVar(&extractFiles, "file", nil, "HTML snapshot file (repeatable)")
	extractCmd.Flags().StringVar(&extractPageURL, "page-url", "", "original URL of the snapshot, for host-specific selectors")
	extractCmd.Flags().IntVar(&forceTier, "force-tier", 0, "run exactly one tier")
	extractCmd.Flags().IntSliceVar(&skipTiers, "skip-tiers", nil, "tiers to skip")
	extractCmd.Flags().StringVar(&minConfidence, "min-confidence", "", "discard results below this confidence (low|medium|high)")
	extractCmd.Flags().BoolVar(&useLLM, "llm", false, "enable the model-backed fallback tier")
	extractCmd.Flags().IntVar(&maxConcurrent, "concurrency", 4, "max pages processed in parallel")
	rootCmd.AddCommand(extractCmd)
}
