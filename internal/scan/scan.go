// Package scan discovers eligible report files under a week folder and owns
// the filename conventions that encode per-file ingest state.
package scan

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"phoneqa-importer/internal/shared/telemetry"
)

const (
	// ProcessedPrefix marks a file whose transaction committed.
	ProcessedPrefix = "Stored-"
	// FailedPrefix marks a file that failed anywhere in its lifecycle.
	FailedPrefix = "BadData-"
	// IndividualSuffix identifies a single-call analysis report.
	IndividualSuffix = "_analysis.json"
	// CombinedReportName identifies an aggregate multi-call report.
	CombinedReportName = "Combined_Analysis_Report.json"
)

// ErrNoWeekFolders is returned when the root contains no week folders.
var ErrNoWeekFolders = errors.New("no week folders found")

var (
	weekPattern      = regexp.MustCompile(`Week of (\d{4}-\d{2}-\d{2})`)
	extensionPattern = regexp.MustCompile(`Week of \d{4}-\d{2}-\d{2}[\\/](\d{4})[\\/]`)
)

// Eligible reports whether a basename is an unprocessed report file.
func Eligible(name string) bool {
	if strings.HasPrefix(name, ProcessedPrefix) || strings.HasPrefix(name, FailedPrefix) {
		return false
	}
	return strings.HasSuffix(name, IndividualSuffix) || strings.Contains(name, CombinedReportName)
}

// IsCombinedReport reports whether a basename is an aggregate report.
func IsCombinedReport(name string) bool {
	return strings.Contains(name, CombinedReportName)
}

// Scan walks root and returns the paths of all eligible report files.
// The filesystem itself is the only state: a fresh scan is needed per run.
func Scan(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if Eligible(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// FindLatestWeekFolder lists immediate subdirectories of root matching
// "Week of YYYY-MM-DD" and returns the one with the most recent date.
// Folders matching the pattern but carrying an impossible date are skipped.
func FindLatestWeekFolder(root string, log *telemetry.Logger) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", err
	}

	var latest string
	var latestDate time.Time
	found := false
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		m := weekPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		date, err := time.Parse("2006-01-02", m[1])
		if err != nil {
			log.WithField("folder", entry.Name()).Warn("week folder matches pattern but has invalid date")
			continue
		}
		if !found || date.After(latestDate) {
			found = true
			latestDate = date
			latest = filepath.Join(root, entry.Name())
		}
	}
	if !found {
		return "", ErrNoWeekFolders
	}
	return latest, nil
}

// ExtractExtension pulls the 4-digit extension from the path segment
// directly under the week folder, e.g. "Week of 2024-02-15/4821/x.json".
func ExtractExtension(path string) (string, bool) {
	m := extensionPattern.FindStringSubmatch(path)
	if m == nil {
		return "", false
	}
	return m[1], true
}
