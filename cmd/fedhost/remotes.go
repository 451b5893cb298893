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

var remotesProbe bool

var remotesCmd = &cobra.Command{
	Use:   "remotes",
	Short: "List manifest remotes",
	Long: `List the remotes the host would load.

Reads inline remotes from the configuration, or fetches manifest.url
when configured. With --probe, each remote's entry descriptor is loaded
and its exposed aliases printed.`,
	RunE: runRemotes,
}

func init() {
	rootCmd.AddCommand(remotesCmd)

	remotesCmd.Flags().BoolVar(&remotesProbe, "probe", false, "load each remote's entry descriptor")
}

func runRemotes(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	client := remote.NewClient(remote.ClientConfig{
		Timeout: cfg.Fetch.Timeout,
		Headers: cfg.Fetch.Headers,
		Logger:  zerolog.Nop(),
	})
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Fetch.Timeout)
	defer cancel()

	var m *manifest.Manifest
	if cfg.Manifest.URL != "" {
		m, err = client.FetchManifest(ctx, cfg.Manifest.URL)
	} else {
		m, err = manifest.New("config", cfg.Manifest.Descriptors())
	}
	if err != nil {
		return err
	}

	if m.Len() == 0 {
		fmt.Println("No remotes configured.")
		return nil
	}

	for _, name := range m.Names() {
		d, err := m.Lookup(name)
		if err != nil {
			continue
		}
		fmt.Printf("%-20s %-8s %s\n", d.Name, d.Kind, d.EntryLocation)

		if !remotesProbe || d.Kind == manifest.KindScript {
			continue
		}
		container, err := client.LoadEntry(ctx, d)
		if err != nil {
			fmt.Printf("  ! %v\n", err)
			continue
		}
		for _, alias := range container.Aliases() {
			fmt.Printf("  exposes %s\n", alias)
		}
	}
	return nil
}
