package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpandInputs(t *testing.T) {
	// tmpDir/
	//   file1.txt
	//   file2.txt
	//   subdir/
	//     file3.txt
	//     file4.csv
	//   emptydir/
	//   symlink.txt -> file1.txt
	tmpDir := t.TempDir()
	subdir := filepath.Join(tmpDir, "subdir")
	require.NoError(t, os.Mkdir(subdir, 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "emptydir"), 0o755))

	file1 := writeFile(t, tmpDir, "file1.txt", "content1")
	file2 := writeFile(t, tmpDir, "file2.txt", "content2")
	file3 := writeFile(t, subdir, "file3.txt", "content3")
	file4 := writeFile(t, subdir, "file4.csv", "content4")
	require.NoError(t, os.Symlink(file1, filepath.Join(tmpDir, "symlink.txt")))

	missing := filepath.Join(tmpDir, "missing.txt")

	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{
			name:     "single file",
			patterns: []string{file1},
			want:     []string{file1},
		},
		{
			name:     "wildcard",
			patterns: []string{filepath.Join(tmpDir, "*.txt")},
			want:     []string{file1, file2},
		},
		{
			name:     "recursive",
			patterns: []string{filepath.Join(tmpDir, "**/*.txt")},
			want:     []string{file1, file2, file3},
		},
		{
			name:     "several patterns",
			patterns: []string{filepath.Join(tmpDir, "*.txt"), filepath.Join(subdir, "*.csv")},
			want:     []string{file1, file2, file4},
		},
		{
			name:     "no patterns",
			patterns: nil,
			want:     nil,
		},
		{
			name:     "wildcard without matches",
			patterns: []string{filepath.Join(tmpDir, "*.json")},
			want:     nil,
		},
		{
			name:     "literal without match is kept",
			patterns: []string{missing},
			want:     []string{missing},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandInputs(tt.patterns)
			require.NoError(t, err)
			require.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestExpandInputs_KeepsPatternOrder(t *testing.T) {
	tmpDir := t.TempDir()
	b := writeFile(t, tmpDir, "b.txt", "b")
	a := writeFile(t, tmpDir, "a.txt", "a")

	got, err := ExpandInputs([]string{b, a})
	require.NoError(t, err)
	require.Equal(t, []string{b, a}, got)
}

func TestExpandInputs_ExcludesDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "dir.txt"), 0o755))
	file := writeFile(t, tmpDir, "file.txt", "content")

	got, err := ExpandInputs([]string{filepath.Join(tmpDir, "*.txt")})
	require.NoError(t, err)
	require.Equal(t, []string{file}, got)
}
