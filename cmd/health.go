package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var healthDebug bool

var healthCmd = &cobra.Command{
	Use:   "health <hostname>",
	Short: "Show extraction health for a hostname",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("extract"); err != nil {
			return err
		}

		ctx := cmd.Context()
		env, err := buildEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if healthDebug {
			return eris.Wrap(enc.Encode(env.Health.Debug(ctx, args[0])), "encode debug payload")
		}
		return eris.Wrap(enc.Encode(env.Health.Health(ctx, args[0])), "encode health")
	},
}

func init() {
	healthCmd.Flags().BoolVar(&healthDebug, "debug", false, "include the sanitized raw event log")
	rootCmd.AddCommand(healthCmd)
}
