package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/m1amgn/cex-dex-arbitrager/internal/config"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <network> <address>",
	Short: "Look up token metadata and store it in the token cache",
	Args:  cobra.ExactArgs(2),
	RunE:  runResolve,
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфига: %w", err)
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := buildCore(cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	n, ok := a.networks.Get(args[0])
	if !ok {
		return fmt.Errorf("unknown network %q", args[0])
	}
	md, err := a.tokens.Resolve(cmd.Context(), n, args[1])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(md)
}
