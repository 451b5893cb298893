package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/modfed/fedhost/bootstrap"
	"github.com/modfed/fedhost/config"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the federation host",
	Long: `Start the fedhost server.

The server will:
  - Load configuration from fedhost.yaml (or --config)
  - Or load configuration from FEDHOST_* environment variables
  - Resolve the remote manifest (inline remotes or manifest.url)
  - Serve exposed modules and status over HTTP

Environment variables (for Docker deployments):
  FEDHOST_MANIFEST_URL  - Runtime manifest location
  FEDHOST_SERVER_PORT   - Server port (default: 8080)
  FEDHOST_CACHE_PATH    - Entry-artifact cache database path
  FEDHOST_LOG_LEVEL     - Log level: debug, info, warn, error

Examples:
  fedhost serve
  fedhost serve --config /etc/fedhost/config.yaml
  fedhost serve --hot-reload=false

  # Docker (env vars only):
  FEDHOST_MANIFEST_URL=https://cdn.example.com/mf.manifest.json fedhost serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	hasEnvConfig := config.HasEnvConfig()

	// No configuration at all
	if !hasConfigFile && !hasEnvConfig {
		fmt.Println("No configuration found.")
		fmt.Println()
		fmt.Printf("Option 1: Create %s with a manifest section\n", cfgFile)
		fmt.Println("Option 2: Set FEDHOST_MANIFEST_URL environment variable")
		fmt.Println()
		fmt.Println("Example (env vars):")
		fmt.Println("  FEDHOST_MANIFEST_URL=https://cdn.example.com/mf.manifest.json fedhost serve")
		return nil
	}

	var app *bootstrap.App
	var err error

	if hasConfigFile && hotReload {
		// Hot reload only works with a config file
		app, err = bootstrap.NewWithHotReload(cfgFile)
	} else {
		cfg, loadErr := config.LoadWithFallback(cfgFile)
		if loadErr != nil {
			return fmt.Errorf("error loading config: %w", loadErr)
		}

		if !hasConfigFile {
			fmt.Println("Running with environment variables (no config file)")
		}

		app, err = bootstrap.New(cfg)
	}

	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
