package cli

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"casebot/internal/domain"
	"casebot/internal/factstore"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file.jsonl]",
	Short: "Append facts from a JSONL file",
	Long: `Reads one JSON fact per line from the given file, appends the valid
records to the configured store and rebuilds the index. Blank and malformed
lines are skipped and counted.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	facts, skipped, err := readFacts(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	svc, backend, err := openService(ctx, appConfig)
	if err != nil {
		return err
	}
	defer backend.Close()

	res, err := svc.Ingest(ctx, facts)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	cmd.Printf("Added %d facts (total %d)", res.Added, res.Total)
	if skipped > 0 {
		cmd.Printf(", skipped %d malformed lines", skipped)
	}
	cmd.Println()
	return nil
}

func readFacts(path string) ([]domain.Fact, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var lines [][]byte
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for sc.Scan() {
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		lines = append(lines, append([]byte(nil), sc.Bytes()...))
	}
	if err := sc.Err(); err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", path, err)
	}
	facts, skipped := factstore.ParseAll(lines)
	return facts, skipped, nil
}
