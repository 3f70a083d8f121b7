package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/chatbot-admin/backend/internal/index"
	"github.com/chatbot-admin/backend/internal/storage/sqlite"
	"github.com/chatbot-admin/backend/pkg/config"
	"github.com/chatbot-admin/backend/pkg/logger"
)

var (
	// configPath points at an explicit config file instead of the search path
	configPath string
	// dbPath overrides sqlite.path from the config
	dbPath string
	// outputFormat is text or json
	outputFormat string
	// logLevel enables logs on stderr when set
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "kbctl",
	Short: "Inspect and maintain chatbot knowledge bases",
	Long: `kbctl runs the knowledge pipeline from the command line.

Examples:
  # Show the text extracted from a file
  kbctl normalize handbook.pdf

  # Analyze a saved HTML page
  kbctl analyze index.html --url https://example.com

  # Add a file to a bot's knowledge base
  kbctl ingest faq.md --bot support-bot

  # See what the retriever finds for a question
  kbctl search --bot support-bot --query "return policy"`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logLevel == "" {
			return nil
		}
		return logger.Init(logLevel, "console", "stderr")
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (defaults to ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides sqlite.path)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log to stderr at this level (debug, info, warn, error)")
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

// openIndex opens the configured SQLite store. The caller closes the client.
func openIndex() (*index.Index, *sqlite.Client, error) {
	path := dbPath
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, nil, err
		}
		path = cfg.SQLite.Path
	}

	client, err := sqlite.NewClient(path)
	if err != nil {
		return nil, nil, err
	}
	if err := client.InitSchema(); err != nil {
		client.Close()
		return nil, nil, err
	}

	return index.New(client), client, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

func jsonOutput() bool {
	return outputFormat == "json"
}
