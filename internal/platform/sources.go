package platform

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LogExtensions lists the file extensions treated as raw daily logs.
var LogExtensions = []string{".txt", ".log"}

// CollectLogFiles expands the given files and directories into a sorted,
// de-duplicated list of raw log files. Directories are walked recursively.
func CollectLogFiles(inputs []string) ([]string, error) {
	seen := map[string]struct{}{}
	out := []string{}
	add := func(path string) {
		clean := filepath.Clean(path)
		if _, ok := seen[clean]; ok {
			return
		}
		seen[clean] = struct{}{}
		out = append(out, clean)
	}

	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		info, err := os.Stat(input)
		if err != nil {
			return nil, fmt.Errorf("stat input %q: %w", input, err)
		}
		if !info.IsDir() {
			add(input)
			continue
		}
		err = filepath.WalkDir(input, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() || !isLogFile(path) {
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk input dir %q: %w", input, err)
		}
	}
	sort.Strings(out)
	return out, nil
}

func isLogFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range LogExtensions {
		if ext == want {
			return true
		}
	}
	return false
}
