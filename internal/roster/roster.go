// Package roster loads the extension roster (ExtList.data) that maps a
// 4-digit phone extension to a call taker's identity.
package roster

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"phoneqa-importer/internal/shared/telemetry"
)

// Member is one roster entry keyed by extension.
type Member struct {
	Name      string
	Email     string
	Extension string
}

// Load parses a tab-separated roster file into a map keyed by extension.
// Blank lines and lines starting with '#' are skipped. Lines with the wrong
// field count are skipped with a warning. A missing file is a warning, not an
// error: downstream synthesizes un-rostered identities instead.
func Load(path string, log *telemetry.Logger) (map[string]Member, error) {
	members := make(map[string]Member)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("path", path).Warn("roster file not found; agents will be recorded as un-rostered")
			return members, nil
		}
		return nil, fmt.Errorf("open roster %s: %w", path, err)
	}
	defer f.Close()

	lineNo := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) != 3 {
			log.WithField("path", path).WithField("line", lineNo).Warn("skipping malformed roster line")
			continue
		}
		ext := strings.TrimSpace(parts[0])
		if ext == "" {
			continue
		}
		members[ext] = Member{
			Name:      strings.TrimSpace(parts[1]),
			Email:     strings.TrimSpace(parts[2]),
			Extension: ext,
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read roster %s: %w", path, err)
	}

	log.WithField("count", len(members)).Info("roster loaded")
	return members, nil
}
