package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/price-sentry/internal/dom"
	"github.com/sells-group/price-sentry/internal/pipeline"
	"github.com/sells-group/price-sentry/internal/watcher"
)

var (
	watchFile    string
	watchPageURL string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch an HTML snapshot and re-extract on every change",
	Long:  "Treats a file on disk as a live page: each write re-runs the cascade, with debouncing and value-stability tracking, until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchFile == "" {
			return eris.New("--file is required")
		}
		if err := cfg.Validate("watch"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := buildEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		src, err := watcher.NewFileSource(watchFile)
		if err != nil {
			return err
		}
		defer src.Close()

		docs := func(context.Context) (*dom.Document, error) {
			return loadSnapshot(watchFile, watchPageURL)
		}

		enc := json.NewEncoder(os.Stdout)
		onResult := func(r watcher.Result) {
			zap.L().Info("watch result",
				zap.String("trigger", r.Trigger),
				zap.Bool("ok", r.Extraction.Final.OK),
				zap.Bool("stable", r.Stable),
				zap.Int("stable_reads", r.Stability.StableReadCount))
			enc.Encode(r)
		}

		stability := watcher.NewStability().WithThresholds(
			cfg.Watch.StableReads,
			time.Duration(cfg.Watch.WindowMs)*time.Millisecond,
		)

		w := watcher.New(env.Pipeline, docs, onResult).
			WithSources(nil, src).
			WithDebounce(time.Duration(cfg.Watch.DebounceMs)*time.Millisecond).
			WithMaxWait(time.Duration(cfg.Watch.MaxWaitSecs)*time.Second).
			WithStability(stability).
			WithRunOptions(pipeline.Options{UseLLM: useLLM})

		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()

		<-ctx.Done()
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchFile, "file", "", "HTML snapshot file to watch")
	watchCmd.Flags().StringVar(&watchPageURL, "page-url", "", "original URL of the snapshot")
	watchCmd.Flags().BoolVar(&useLLM, "llm", false, "enable the model-backed fallback tier")
	rootCmd.AddCommand(watchCmd)
}
