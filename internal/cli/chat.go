package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"casebot/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions in an interactive terminal UI",
	Long: `Opens an interactive terminal client over the fact corpus.

Controls:
  Enter    - Ask
  ↑/↓      - Browse retrieved facts
  Ctrl+C   - Quit`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	svc, backend, err := openService(ctx, appConfig)
	if err != nil {
		return err
	}
	defer backend.Close()

	m := tui.New(ctx, svc, appConfig.Server.DefaultTopK, backend.Location())
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	return nil
}
