package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatbot-admin/backend/internal/ingestion"
	"github.com/chatbot-admin/backend/internal/normalize"
	"github.com/chatbot-admin/backend/internal/retrieval"
	"github.com/chatbot-admin/backend/internal/scraper"
)

var (
	botID       string
	query       string
	limit       int
	title       string
	timeout     int
	markOnError bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape <url>",
	Short: "Fetch a page and print its analysis; with --bot, store it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := scraper.NewClient(scraper.Config{Timeout: time.Duration(timeout) * time.Second})

		if botID == "" {
			analysis, err := client.Scrape(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printAnalysis(cmd, analysis)
		}

		idx, db, err := openIndex()
		if err != nil {
			return err
		}
		defer db.Close()

		processor := ingestion.NewProcessor(idx, normalize.NewFileNormalizer(nil), client, nil)
		result, err := processor.ProcessPage(cmd.Context(), botID, args[0])
		if err != nil {
			return err
		}

		if jsonOutput() {
			return printJSON(cmd.OutOrStdout(), result)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stored %s %q (%s, %d bytes)\n",
			result.Document.ID, result.Document.Title, result.Analysis.Metadata.ContentType, result.Document.FileSize)
		return nil
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Normalize a file and add it to a bot's knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		idx, db, err := openIndex()
		if err != nil {
			return err
		}
		defer db.Close()

		policy := ingestion.PolicyInline
		if markOnError {
			policy = ingestion.PolicyMarkError
		}

		processor := ingestion.NewProcessor(idx, normalize.NewFileNormalizer(nil), nil, nil)
		result, err := processor.ProcessFile(cmd.Context(), ingestion.Upload{
			BotID:    botID,
			Filename: filepath.Base(args[0]),
			Title:    title,
			Data:     data,
		}, policy)
		if err != nil {
			return err
		}

		if jsonOutput() {
			return printJSON(cmd.OutOrStdout(), result)
		}
		doc := result.Document
		fmt.Fprintf(cmd.OutOrStdout(), "Stored %s %q status=%s words=%d\n", doc.ID, doc.Title, doc.Status, result.Metadata.WordCount)
		if doc.ProcessingError != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "  error: %s\n", doc.ProcessingError)
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Rank a bot's documents against a query",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, db, err := openIndex()
		if err != nil {
			return err
		}
		defer db.Close()

		results, err := retrieval.NewRetriever(idx).Search(cmd.Context(), botID, query, limit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput() {
			return printJSON(out, results)
		}
		if len(results) == 0 {
			fmt.Fprintln(out, "No matching documents.")
			return nil
		}
		for i, res := range results {
			fmt.Fprintf(out, "%d. [%d] %s (%s)\n   %s\n", i+1, res.Score, res.Document.Title, res.Document.ID, res.Excerpt)
		}
		return nil
	},
}

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Print the grounding block a chat turn would receive",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, db, err := openIndex()
		if err != nil {
			return err
		}
		defer db.Close()

		block, err := retrieval.NewRetriever(idx).ContextForQuery(cmd.Context(), botID, query)
		if err != nil {
			return err
		}

		if jsonOutput() {
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{"context": block, "has_context": block != ""})
		}
		if block == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No grounding available.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), block)
		return nil
	},
}

func requireBot(cmd *cobra.Command, args []string) error {
	if botID == "" {
		return errors.New("--bot is required")
	}
	return nil
}

func requireBotAndQuery(cmd *cobra.Command, args []string) error {
	if err := requireBot(cmd, args); err != nil {
		return err
	}
	if query == "" {
		return errors.New("--query is required")
	}
	return nil
}

func init() {
	scrapeCmd.Flags().StringVar(&botID, "bot", "", "Store the page for this bot")
	scrapeCmd.Flags().IntVar(&timeout, "timeout", 10, "Fetch timeout in seconds")

	ingestCmd.Flags().StringVar(&botID, "bot", "", "Owning bot id")
	ingestCmd.Flags().StringVar(&title, "title", "", "Document title (defaults to the file name)")
	ingestCmd.Flags().BoolVar(&markOnError, "mark-error", false, "Store failed PDF/DOCX extraction as an error instead of placeholder text")
	ingestCmd.PreRunE = requireBot

	for _, c := range []*cobra.Command{searchCmd, contextCmd} {
		c.Flags().StringVar(&botID, "bot", "", "Bot id")
		c.Flags().StringVarP(&query, "query", "q", "", "Query text")
		c.PreRunE = requireBotAndQuery
	}
	searchCmd.Flags().IntVar(&limit, "limit", retrieval.DefaultLimit, "Maximum number of results")

	rootCmd.AddCommand(scrapeCmd, ingestCmd, searchCmd, contextCmd)
}
