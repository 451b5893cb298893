package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/modfed/fedhost/adapters/remote"
	"github.com/modfed/fedhost/config"
	"github.com/modfed/fedhost/domain/manifest"
)

var validateFetch bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and manifest",
	Long: `Validate the fedhost configuration file.

Checks the configuration structure, the host's shared-dependency
declarations, and inline remote entries. With --fetch, a configured
manifest URL is fetched and validated as well.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFetch, "fetch", false, "fetch and validate manifest.url")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	fmt.Printf("Configuration %s is valid\n", cfgFile)

	m, err := manifest.New("config", cfg.Manifest.Descriptors())
	if err != nil {
		return err
	}
	if m.Len() > 0 {
		fmt.Printf("Inline remotes: %d\n", m.Len())
		printManifest(m)
	}

	if cfg.Manifest.URL != "" {
		if !validateFetch {
			fmt.Printf("Manifest URL configured: %s (use --fetch to validate)\n", cfg.Manifest.URL)
			return nil
		}

		client := remote.NewClient(remote.ClientConfig{
			Timeout: cfg.Fetch.Timeout,
			Headers: cfg.Fetch.Headers,
			Logger:  zerolog.Nop(),
		})
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Fetch.Timeout)
		defer cancel()

		fetched, err := client.FetchManifest(ctx, cfg.Manifest.URL)
		if err != nil {
			return err
		}
		fmt.Printf("Manifest %s is valid (%d remotes)\n", cfg.Manifest.URL, fetched.Len())
		printManifest(fetched)
	}
	return nil
}

func printManifest(m *manifest.Manifest) {
	for _, name := range m.Names() {
		d, err := m.Lookup(name)
		if err != nil {
			continue
		}
		fmt.Printf("  %-20s %-8s %s\n", d.Name, d.Kind, d.EntryLocation)
	}
}
