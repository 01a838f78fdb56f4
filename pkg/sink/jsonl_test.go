package sink

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type line struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	require.NoError(t, sc.Err())
	return out
}

func TestJSONL_AppendsInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "messages.jsonl")
	s, err := Open(path)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		require.NoError(t, s.Append(line{ID: i, Text: "<b>&"}))
	}
	require.NoError(t, s.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 3)
	for i, l := range lines {
		var got line
		require.NoError(t, json.Unmarshal([]byte(l), &got))
		assert.Equal(t, i+1, got.ID)
	}
	assert.Contains(t, lines[0], "<b>&", "html must not be escaped")
}

func TestJSONL_ReopenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(line{ID: 1}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(line{ID: 2}))
	require.NoError(t, s.Close())

	assert.Len(t, readLines(t, path), 2)
}

func TestJSONL_AppendAfterClose(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "out.jsonl"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Append(line{ID: 1}), os.ErrClosed)
}

func TestJSONL_EncodeError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	assert.Error(t, s.Append(map[string]any{"bad": make(chan int)}))
	require.NoError(t, s.Append(line{ID: 1}))
	assert.Len(t, readLines(t, path), 1, "failed encode writes nothing")
}
