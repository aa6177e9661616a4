package partition

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nemanja-m/diskmr/pkg/core"
	"github.com/nemanja-m/diskmr/pkg/store"
)

func newStore(t *testing.T) *store.FileStore {
	t.Helper()
	s, err := store.NewFileStore(filepath.Join(t.TempDir(), "store"))
	require.NoError(t, err)
	return s
}

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readChunks(t *testing.T, s store.Store, name string, n int) []string {
	t.Helper()
	chunks := make([]string, n)
	for i := range n {
		r, err := s.Open(store.ChunkAddress(name, i))
		require.NoError(t, err)
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		require.NoError(t, r.Close())
		chunks[i] = string(data)
	}
	return chunks
}

func TestPartitionText_ReconstructsInput(t *testing.T) {
	content := strings.Repeat("lorem ipsum dolor sit amet\nconsectetur adipiscing elit ", 40)
	path := writeInput(t, "lorem.txt", content)

	for _, n := range []int{3, 4, 7, 10} {
		s := newStore(t)
		require.NoError(t, New(s).Partition(path, n))

		chunks := readChunks(t, s, "lorem.txt", n)
		require.Equal(t, content, strings.Join(chunks, ""), "n=%d", n)

		// No chunk but the last may end in the middle of a word.
		for i, chunk := range chunks[:n-1] {
			if chunk == "" {
				continue
			}
			require.True(t, isSpace(chunk[len(chunk)-1]), "chunk %d ends inside a word: %q", i, chunk)
		}
	}
}

func TestPartitionText_ShortInputProducesEmptyTrailingChunks(t *testing.T) {
	s := newStore(t)
	path := writeInput(t, "a.txt", "the cat sat")

	require.NoError(t, New(s).Partition(path, 3))

	chunks := readChunks(t, s, "a.txt", 3)
	require.Equal(t, []string{"the cat ", "sat", ""}, chunks)
}

func TestPartitionText_NoWhitespaceFallsIntoOneChunk(t *testing.T) {
	s := newStore(t)
	content := strings.Repeat("x", 100)
	path := writeInput(t, "solid.txt", content)

	require.NoError(t, New(s).Partition(path, 4))

	chunks := readChunks(t, s, "solid.txt", 4)
	require.Equal(t, []string{content, "", "", ""}, chunks)
}

func TestPartition_Idempotent(t *testing.T) {
	inputs := map[string]string{
		"words.txt":  strings.Repeat("alpha beta gamma delta ", 50),
		"rows.csv":   "a,b\n" + strings.Repeat("1,2\n3,4\n5,6\n", 11),
		"items.json": `[{"id":1},{"id":2},{"id":3},{"id":4},{"id":5}]`,
	}

	for name, content := range inputs {
		t.Run(name, func(t *testing.T) {
			path := writeInput(t, name, content)

			first := newStore(t)
			require.NoError(t, New(first).Partition(path, 3))
			second := newStore(t)
			require.NoError(t, New(second).Partition(path, 3))

			require.Equal(t, readChunks(t, first, name, 3), readChunks(t, second, name, 3))
		})
	}
}

func TestPartitionCSV_ContiguousRowsWithoutHeader(t *testing.T) {
	s := newStore(t)
	path := writeInput(t, "data.csv", "name,value\na,1\nb,2\nc,3\nd,4\ne,5\nf,6\ng,7\n")

	require.NoError(t, New(s).Partition(path, 3))

	// 7 rows / 3 chunks: two rows each, the remainder in the last chunk.
	chunks := readChunks(t, s, "data.csv", 3)
	require.Equal(t, []string{
		"a,1\nb,2\n",
		"c,3\nd,4\n",
		"e,5\nf,6\ng,7\n",
	}, chunks)
}

func TestPartitionCSV_FewerRowsThanChunks(t *testing.T) {
	s := newStore(t)
	path := writeInput(t, "small.csv", "h\n1\n2\n")

	require.NoError(t, New(s).Partition(path, 3))

	require.Equal(t, []string{"", "", "1\n2\n"}, readChunks(t, s, "small.csv", 3))
}

func TestPartitionCSV_HeaderOnly(t *testing.T) {
	s := newStore(t)
	path := writeInput(t, "header.csv", "a,b,c\n")

	require.NoError(t, New(s).Partition(path, 3))

	require.Equal(t, []string{"", "", ""}, readChunks(t, s, "header.csv", 3))
}

func TestPartitionCSV_CustomDelimiter(t *testing.T) {
	s := newStore(t)
	path := writeInput(t, "semi.csv", "x;y\n1;2\n3;4\n5;6\n")

	require.NoError(t, New(s, WithComma(';')).Partition(path, 3))

	require.Equal(t, []string{"1;2\n", "3;4\n", "5;6\n"}, readChunks(t, s, "semi.csv", 3))
}

func TestPartitionJSON_RoundRobin(t *testing.T) {
	s := newStore(t)
	path := writeInput(t, "tweets.json", `[{"id":0},{"id":1},{"id":2},{"id":3},{"id":4},{"id":5},{"id":6}]`)

	require.NoError(t, New(s).Partition(path, 3))

	chunks := readChunks(t, s, "tweets.json", 3)
	require.Equal(t, `[{"id":0},{"id":3},{"id":6}]`, chunks[0])
	require.Equal(t, `[{"id":1},{"id":4}]`, chunks[1])
	require.Equal(t, `[{"id":2},{"id":5}]`, chunks[2])
}

// Json inputs are interleaved across chunks while txt and csv inputs are cut
// into contiguous ranges. The two policies intentionally differ.
func TestPartition_JSONInterleavesWhereCSVIsContiguous(t *testing.T) {
	csvStore := newStore(t)
	csvPath := writeInput(t, "seq.csv", "id\n0\n1\n2\n3\n4\n5\n")
	require.NoError(t, New(csvStore).Partition(csvPath, 3))
	require.Equal(t, "0\n1\n", readChunks(t, csvStore, "seq.csv", 3)[0])

	jsonStore := newStore(t)
	jsonPath := writeInput(t, "seq.json", "[0,1,2,3,4,5]")
	require.NoError(t, New(jsonStore).Partition(jsonPath, 3))
	require.Equal(t, "[0,3]", readChunks(t, jsonStore, "seq.json", 3)[0])
}

func TestPartitionJSON_ContentSetPreserved(t *testing.T) {
	s := newStore(t)
	var records []string
	for i := range 25 {
		b, err := json.Marshal(map[string]int{"id": i})
		require.NoError(t, err)
		records = append(records, string(b))
	}
	path := writeInput(t, "many.json", "["+strings.Join(records, ",")+"]")

	require.NoError(t, New(s).Partition(path, 4))

	var got []string
	for _, chunk := range readChunks(t, s, "many.json", 4) {
		var items []json.RawMessage
		require.NoError(t, json.Unmarshal([]byte(chunk), &items))
		for _, item := range items {
			got = append(got, string(item))
		}
	}
	require.ElementsMatch(t, records, got)
}

func TestPartitionJSON_LineDelimited(t *testing.T) {
	s := newStore(t)
	path := writeInput(t, "lines.json", "{\"id\":1}\n{\"id\":2}\n{\"id\":3}\n{\"id\":4}\n")

	require.NoError(t, New(s).Partition(path, 3))

	chunks := readChunks(t, s, "lines.json", 3)
	require.Equal(t, `[{"id":1},{"id":4}]`, chunks[0])
	require.Equal(t, `[{"id":2}]`, chunks[1])
	require.Equal(t, `[{"id":3}]`, chunks[2])
}

func TestPartitionJSON_LinesOfArrays(t *testing.T) {
	s := newStore(t)
	path := writeInput(t, "pairs.json", "[1,2]\n[3,4]\n[5,6]\n")

	require.NoError(t, New(s).Partition(path, 3))

	require.Equal(t, []string{"[[1,2]]", "[[3,4]]", "[[5,6]]"}, readChunks(t, s, "pairs.json", 3))
}

func TestPartitionJSON_ArrayFollowedByValues(t *testing.T) {
	s := newStore(t)
	path := writeInput(t, "mixed.json", `[{"id":1}] {"id":2}`)

	require.NoError(t, New(s).Partition(path, 3))

	require.Equal(t, []string{`[[{"id":1}]]`, `[{"id":2}]`, "[]"}, readChunks(t, s, "mixed.json", 3))
}

func TestPartitionJSON_TrailingGarbageRejected(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "values then garbage", content: `[{"id":1}] {"id":2} garbage`},
		{name: "stray closing bracket", content: `[1,2]]`},
		{name: "garbage after array", content: "[1,2]\nnot json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			err := New(s).Partition(writeInput(t, "tail.json", tt.content), 3)

			var partitionErr *core.PartitionError
			require.ErrorAs(t, err, &partitionErr)

			// No chunk is written for a rejected file.
			_, err = s.Open(store.ChunkAddress("tail.json", 0))
			require.ErrorIs(t, err, core.ErrArtifactMissing)
		})
	}
}

func TestPartitionJSON_EmptyArray(t *testing.T) {
	s := newStore(t)
	path := writeInput(t, "empty.json", "[]")

	require.NoError(t, New(s).Partition(path, 3))

	require.Equal(t, []string{"[]", "[]", "[]"}, readChunks(t, s, "empty.json", 3))
}

func TestPartitionJSON_Malformed(t *testing.T) {
	s := newStore(t)
	path := writeInput(t, "bad.json", `[{"id":1},`)

	err := New(s).Partition(path, 3)

	var partitionErr *core.PartitionError
	require.ErrorAs(t, err, &partitionErr)
}

func TestPartition_Errors(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr error
	}{
		{
			name:    "empty text file",
			path:    func(t *testing.T) string { return writeInput(t, "empty.txt", "") },
			wantErr: core.ErrEmptyFile,
		},
		{
			name:    "whitespace only json",
			path:    func(t *testing.T) string { return writeInput(t, "blank.json", "  \n") },
			wantErr: core.ErrEmptyFile,
		},
		{
			name:    "missing file",
			path:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing.txt") },
			wantErr: os.ErrNotExist,
		},
		{
			name:    "unsupported extension",
			path:    func(t *testing.T) string { return writeInput(t, "data.xml", "<a/>") },
			wantErr: core.ErrUnsupportedFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(newStore(t)).Partition(tt.path(t), 3)

			var partitionErr *core.PartitionError
			require.ErrorAs(t, err, &partitionErr)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}
