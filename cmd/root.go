// Package cmd defines the CLI commands for the ogrelay executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/ogrelay/internal/app"
	"github.com/JakeFAU/ogrelay/internal/config"
)

// newApp is the application factory. Tests replace it to inject fetchers.
var newApp = func(cfg config.Config) (*app.App, error) {
	return app.New(cfg)
}

type rootOptions struct {
	configPath string
}

// load reads configuration and builds the application.
func (o *rootOptions) load() (*app.App, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a, err := newApp(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize application services: %w", err)
	}
	return a, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "ogrelay",
		Short: "Relay Instagram post previews to browser clients.",
		Long: `ogrelay resolves an Instagram post URL into its Open Graph title,
description, image, and a plain-text excerpt. It tries Instagram's oEmbed
API, the page itself, and several read-only mirrors in order, and answers
with the first useful result.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newLookupCmd(opts))

	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
