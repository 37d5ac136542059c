package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var overridesCmd = &cobra.Command{
	Use:   "overrides",
	Short: "Inspect and manage user-confirmed selector overrides",
}

var overridesListCmd = &cobra.Command{
	Use:   "list <hostname>",
	Short: "List stored overrides for a hostname",
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

		ovs, err := env.Overrides.ForHost(ctx, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(ovs), "encode overrides")
	},
}

var overridesDeleteCmd = &cobra.Command{
	Use:   "delete <hostname>",
	Short: "Delete all overrides for a hostname",
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

		if err := env.Overrides.Delete(ctx, args[0]); err != nil {
			return err
		}
		zap.L().Info("overrides deleted", zap.String("hostname", args[0]))
		return nil
	},
}

func init() {
	overridesCmd.AddCommand(overridesListCmd, overridesDeleteCmd)
	rootCmd.AddCommand(overridesCmd)
}
