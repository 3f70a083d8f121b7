package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chatbot-admin/backend/internal/normalize"
)

var (
	chunkSize  int
	fileType   string
	pageURL    string
	showChunks bool
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <file>",
	Short: "Print the sanitized text extracted from a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		result, err := normalize.NewFileNormalizer(nil).NormalizeFile(data, filepath.Base(args[0]), fileType)
		if err != nil {
			return err
		}
		if result.ExtractionErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", result.ExtractionErr)
		}

		var chunks []string
		if showChunks {
			chunks = normalize.SplitIntoChunks(result.Content, chunkSize)
		}

		out := cmd.OutOrStdout()
		if jsonOutput() {
			return printJSON(out, map[string]interface{}{
				"content":  result.Content,
				"metadata": result.Metadata,
				"chunks":   chunks,
			})
		}

		fmt.Fprintf(out, "File:  %s (%s, %d bytes, %d words)\n\n", result.Metadata.Title, result.Metadata.FileType, result.Metadata.FileSize, result.Metadata.WordCount)
		if !showChunks {
			fmt.Fprintln(out, result.Content)
			return nil
		}
		for i, chunk := range chunks {
			fmt.Fprintf(out, "--- chunk %d (%d bytes)\n%s\n", i+1, len(chunk), chunk)
		}
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file.html>",
	Short: "Extract structure, summary and content type from a saved HTML page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		analysis := normalize.Analyze(string(data), pageURL)
		return printAnalysis(cmd, analysis)
	},
}

func printAnalysis(cmd *cobra.Command, analysis *normalize.PageAnalysis) error {
	out := cmd.OutOrStdout()
	if jsonOutput() {
		return printJSON(out, analysis)
	}

	fmt.Fprintf(out, "Content type: %s\n", analysis.Metadata.ContentType)
	fmt.Fprintf(out, "Headings: %d  Paragraphs: %d  Links: %d  Words: %d\n\n",
		analysis.Metadata.Headings, analysis.Metadata.Paragraphs, analysis.Metadata.Links, analysis.Metadata.WordCount)
	fmt.Fprintln(out, analysis.Summary)
	return nil
}

func init() {
	normalizeCmd.Flags().StringVar(&fileType, "type", "", "Declared file type for files without an extension (txt, md, pdf, ...)")
	normalizeCmd.Flags().BoolVar(&showChunks, "chunks", false, "Split the text into sentence-aligned chunks")
	normalizeCmd.Flags().IntVar(&chunkSize, "chunk-size", 1000, "Maximum chunk size in bytes")

	analyzeCmd.Flags().StringVar(&pageURL, "url", "", "Source URL of the page")

	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(analyzeCmd)
}
