package file

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadList reads a text file of source paths, one per line.
//
// Lines that are empty or start with '#' (after trimming surrounding
// whitespace) are skipped, and repeated paths are kept once. The order of
// first appearance is preserved.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read list %s: %w", path, err)
	}
	defer f.Close()

	var out []string
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read list %s: %w", path, err)
	}
	return out, nil
}
