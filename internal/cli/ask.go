package cli

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"casebot/internal/domain"
)

var (
	askTopK    int
	askJSON    bool
	askVerbose bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the fact corpus",
	Long: `Loads the fact corpus, retrieves the facts most similar to the question
and prints the composed answer.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 6, "number of facts to retrieve")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	askCmd.Flags().BoolVarP(&askVerbose, "verbose", "v", false, "also list the retrieved facts with scores")
	rootCmd.AddCommand(askCmd)
}

type askOutput struct {
	Answer     string       `json:"answer"`
	Count      int          `json:"count"`
	Generation string       `json:"generation"`
	Hits       []domain.Hit `json:"hits,omitempty"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc, backend, err := openService(ctx, appConfig)
	if err != nil {
		return err
	}
	defer backend.Close()

	topK := askTopK
	if !cmd.Flags().Changed("top-k") {
		topK = appConfig.Server.DefaultTopK
	}
	ans, err := svc.Ask(ctx, args[0], topK)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		out := askOutput{Answer: ans.Text, Count: ans.Count, Generation: ans.GenerationID}
		if askVerbose {
			out.Hits = ans.Hits
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(ans.Text)
	if askVerbose {
		printHits(cmd, ans.Hits)
	}
	return nil
}

func printHits(cmd *cobra.Command, hits []domain.Hit) {
	bold := color.New(color.Bold).SprintFunc()
	score := color.New(color.FgCyan).SprintFunc()
	secured := color.New(color.FgGreen).SprintFunc()
	unconfirmed := color.New(color.FgYellow).SprintFunc()

	cmd.Println()
	cmd.Println(bold("Retrieved facts:"))
	for i, h := range hits {
		status := string(h.Fact.Status)
		switch h.Fact.Status {
		case domain.StatusSecured:
			status = secured(status)
		case domain.StatusUnconfirmed:
			status = unconfirmed(status)
		}
		cmd.Printf("  [%d] %s row=%d %s (%s) %s\n", i+1, score(fmt.Sprintf("%.3f", h.Score)), h.Row, status, h.Fact.Date, h.Fact.Text)
	}
}
