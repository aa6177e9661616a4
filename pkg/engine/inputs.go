package engine

import (
	"os"

	"github.com/bmatcuk/doublestar/v4"
)

// ExpandInputs resolves glob patterns (including "**") into regular files,
// keeping pattern order. A pattern without glob syntax that matches nothing
// is kept verbatim so the partitioner can report the missing file.
func ExpandInputs(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 && !hasMeta(pattern) {
			files = append(files, pattern)
			continue
		}
		for _, name := range matches {
			info, err := os.Lstat(name)
			if err != nil {
				continue
			}
			if info.Mode().IsRegular() {
				files = append(files, name)
			}
		}
	}
	return files, nil
}

func hasMeta(pattern string) bool {
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}
