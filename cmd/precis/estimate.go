package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/precis-ai/precis/internal/extract"
	"github.com/precis-ai/precis/internal/token"
)

var estimateCmd = &cobra.Command{
	Use:   "estimate <file>",
	Short: "Estimate the token count of a document",
	Long: `Estimate how many tokens a document occupies using the statistical
character-ratio model. No LLM call is made.`,
	Args: cobra.ExactArgs(1),
	RunE: runEstimate,
}

func init() {
	rootCmd.AddCommand(estimateCmd)
}

func runEstimate(cmd *cobra.Command, args []string) error {
	path := args[0]

	doc, err := extract.Load(path)
	if err != nil {
		return fmt.Errorf("extracting %s: %w", path, err)
	}

	est := token.NewEstimator(token.DefaultEstimatorConfig())
	result := est.EstimateWithMetadata(doc.PageTaggedText)

	fmt.Printf("%s\n", path)
	fmt.Printf("  format:     %s\n", doc.Format)
	fmt.Printf("  pages:      %d\n", doc.PageCount)
	fmt.Printf("  characters: %d\n", result.Characters)
	fmt.Printf("  tokens:     ~%d (%s)\n", result.Tokens, result.Method)
	fmt.Printf("  confidence: %.2f\n", result.Confidence)
	return nil
}
