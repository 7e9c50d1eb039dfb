package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestConfig writes a config pointing at a fresh store and returns its path.
func setupTestConfig(t *testing.T, storeType string) string {
	t.Helper()
	for _, k := range []string{"DATA_PATH", "ADMIN_TOKEN", "EMBED_MODEL", "ALLOWED_ORIGINS", "CASEBOT_ADDR"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	dir := t.TempDir()
	ext := "jsonl"
	if storeType == "sqlite" {
		ext = "db"
	}
	cfg := fmt.Sprintf(`
store:
  type: %s
  path: %s
embedder:
  type: hashing
  dimension: 128
log:
  level: error
`, storeType, filepath.Join(dir, "facts."+ext))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		askJSON, askVerbose, askTopK = false, false, 6
		configPath, logLevel = "", ""
		askCmd.Flags().Lookup("top-k").Changed = false
	}()
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeJSONL(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.jsonl")
	var b bytes.Buffer
	for _, l := range lines {
		b.WriteString(l + "\n")
	}
	require.NoError(t, os.WriteFile(path, b.Bytes(), 0o644))
	return path
}

func TestAskCmd_RequiresExactlyOneArg(t *testing.T) {
	cfg := setupTestConfig(t, "jsonl")
	_, err := execute(t, "--config", cfg, "ask")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestAskCmd_HasTopKFlag(t *testing.T) {
	flag := askCmd.Flags().Lookup("top-k")
	require.NotNil(t, flag)
	assert.Equal(t, "k", flag.Shorthand)
	assert.Equal(t, "6", flag.DefValue)
}

func TestAskCmd_EmptyStore(t *testing.T) {
	cfg := setupTestConfig(t, "jsonl")
	out, err := execute(t, "--config", cfg, "ask", "who was arrested?")
	require.NoError(t, err)
	assert.Contains(t, out, "No data in the index.")
}

func TestIngestThenAsk(t *testing.T) {
	for _, storeType := range []string{"jsonl", "sqlite"} {
		t.Run(storeType, func(t *testing.T) {
			cfg := setupTestConfig(t, storeType)
			input := writeJSONL(t,
				`{"text":"Suspect arrested near the harbor","date":"2021","status":"SECURED","sources":["police"]}`,
				`{"text":"Witness saw a blue car","date":"2022","status":"UNCONFIRMED","sources":[]}`,
				`{broken`,
				``,
			)

			out, err := execute(t, "--config", cfg, "ingest", input)
			require.NoError(t, err)
			assert.Contains(t, out, "Added 2 facts (total 2), skipped 1 malformed lines")

			out, err = execute(t, "--config", cfg, "ask", "-k", "2", "harbor suspect")
			require.NoError(t, err)
			assert.Contains(t, out, "[SECURED]\n– (2021) Suspect arrested near the harbor — Sources: police")
			assert.Contains(t, out, "[UNCONFIRMED]")
		})
	}
}

func TestAskCmd_JSONOutput(t *testing.T) {
	cfg := setupTestConfig(t, "jsonl")
	input := writeJSONL(t, `{"text":"Court hearing in autumn","date":"2022","status":"SECURED"}`)
	_, err := execute(t, "--config", cfg, "ingest", input)
	require.NoError(t, err)

	out, err := execute(t, "--config", cfg, "ask", "--json", "--verbose", "court")
	require.NoError(t, err)

	var got askOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 1, got.Count)
	assert.NotEmpty(t, got.Generation)
	require.Len(t, got.Hits, 1)
	assert.Equal(t, "Court hearing in autumn", got.Hits[0].Fact.Text)
}

func TestAskCmd_VerboseListsHits(t *testing.T) {
	cfg := setupTestConfig(t, "jsonl")
	input := writeJSONL(t, `{"text":"Boat found drifting","date":"2023","status":"UNCONFIRMED"}`)
	_, err := execute(t, "--config", cfg, "ingest", input)
	require.NoError(t, err)

	out, err := execute(t, "--config", cfg, "ask", "--verbose", "boat")
	require.NoError(t, err)
	assert.Contains(t, out, "Retrieved facts:")
	assert.Contains(t, out, "row=0")
}

func TestIngestCmd_MissingFile(t *testing.T) {
	cfg := setupTestConfig(t, "jsonl")
	_, err := execute(t, "--config", cfg, "ingest", filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)
}

func TestRoot_InvalidLogLevel(t *testing.T) {
	cfg := setupTestConfig(t, "jsonl")
	_, err := execute(t, "--config", cfg, "--log-level", "loud", "ask", "x")
	assert.Error(t, err)
}

func TestNewModel_UnknownEmbedder(t *testing.T) {
	cfgPath := setupTestConfig(t, "jsonl")
	_, err := execute(t, "--config", cfgPath, "ask", "x")
	require.NoError(t, err)

	cfg := *appConfig
	cfg.Embedder.Type = "word2vec"
	_, err = newModel(&cfg)
	assert.Error(t, err)
}

func TestServeCmd_RejectsArgs(t *testing.T) {
	cfg := setupTestConfig(t, "jsonl")
	_, err := execute(t, "--config", cfg, "serve", "extra")
	assert.Error(t, err)
}
