package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var askDoc string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question against a document",
	Long: `Retrieves the most relevant excerpts from the document and generates
a citation-annotated answer. Answers only from the retrieved excerpts.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askDoc, "doc", "d", "", "document slug to ask against (required)")
	_ = askCmd.MarkFlagRequired("doc")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if answerService == nil {
		return errors.New("answer service not configured")
	}

	answer, err := answerService.Ask(cmd.Context(), args[0], askDoc)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	cmd.Println(answer.Text)

	if len(answer.Sources) > 0 {
		cmd.Println("\nSources:")
		for i, src := range answer.Sources {
			cmd.Printf("  [%d] chunk %d (%.3f)\n", i+1, src.Index, src.Similarity)
		}
	}
	return nil
}
