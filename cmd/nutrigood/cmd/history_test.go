package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/nutrigood/internal/history"
	"github.com/MeKo-Tech/nutrigood/internal/nutrition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryCommands(t *testing.T) {
	dir := setupCLI(t)
	t.Setenv("NUTRIGOOD_HISTORY_ENABLED", "true")
	t.Setenv("NUTRIGOOD_HISTORY_DSN", filepath.Join(dir, "scans.db"))

	_, err := executeCommand(t, "", "text", labelText)
	require.NoError(t, err)
	_, err = executeCommand(t, "", "text", "Sugars: 5g")
	require.NoError(t, err)

	out, err := executeCommand(t, "", "history", "list", "--format", "json")
	require.NoError(t, err)
	var recs []history.Record
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 2)
	assert.Equal(t, nutrition.OutcomePartial, recs[0].Outcome, "newest first")
	assert.Equal(t, nutrition.OutcomeComplete, recs[1].Outcome)

	out, err = executeCommand(t, "", "history", "list", "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "SCANNED AT")
	assert.Contains(t, out, "5.00 g")

	xlsx := filepath.Join(dir, "export.xlsx")
	out, err = executeCommand(t, "", "history", "export", "-o", xlsx)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 2 scans")
	info, err := os.Stat(xlsx)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestHistoryList_Empty(t *testing.T) {
	dir := setupCLI(t)
	t.Setenv("NUTRIGOOD_HISTORY_DSN", filepath.Join(dir, "empty.db"))

	out, err := executeCommand(t, "", "history", "list", "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}
