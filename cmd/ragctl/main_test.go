package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-chatbot-be/pkg/events"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersionCmd(t *testing.T) {
	original := version
	version = "test-1.0.0"
	defer func() { version = original }()

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "ragctl version test-1.0.0")
}

func TestCommandsAreRegistered(t *testing.T) {
	for _, path := range [][]string{{"migrate"}, {"ingest"}, {"purge"}, {"sweep"}, {"events", "tail"}} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestIngestRejectsBadArguments(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))

	_, err := execute(t, "ingest", "--user", "not-a-uuid", file)
	assert.ErrorContains(t, err, "--user must be a user id")

	_, err = execute(t, "ingest", "--user", "6f1c2d4e-7a8b-4c9d-8e0f-123456789abc", filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)

	_, err = execute(t, "ingest", "--user", "6f1c2d4e-7a8b-4c9d-8e0f-123456789abc", dir)
	assert.ErrorContains(t, err, "is a directory")
	ingestUser = ""

	_, err = execute(t, "ingest")
	assert.Error(t, err, "at least one file is required")
}

func TestPurgeRejectsBadID(t *testing.T) {
	_, err := execute(t, "purge", "nope")
	assert.ErrorContains(t, err, "invalid document id")
}

func TestLocalUpload(t *testing.T) {
	file := filepath.Join(t.TempDir(), "report.md")
	require.NoError(t, os.WriteFile(file, []byte("# Report\n"), 0o644))

	u, err := localUpload(file)
	require.NoError(t, err)
	assert.Equal(t, "report.md", u.Name)
	assert.Equal(t, int64(9), u.Size)
	assert.Equal(t, "report.md (9.0 B)", describeUpload(u))

	r, err := u.Open()
	require.NoError(t, err)
	defer r.Close()
}

func TestPrintEvent(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = noColor }()

	buf := new(bytes.Buffer)
	printEvent(buf, events.BaseEvent{
		Type:       events.DocumentDeleted,
		Data:       map[string]interface{}{"document_id": "d-1", "user_id": "u-1"},
		OccurredAt: time.Date(2025, 1, 10, 9, 30, 0, 0, time.UTC),
	})
	assert.Equal(t, "09:30:00 DOCUMENT_DELETED user_id=u-1 document_id=d-1\n", buf.String())
}
