package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

var datasetPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// BuildExportPath lays out export snapshots as
// exports/<dataset>/date=YYYY-MM-DD/<dataset>-<unix ms>.parquet, partitioned
// by the UTC day of the snapshot.
func BuildExportPath(dataset string, at time.Time) (string, error) {
	if !datasetPattern.MatchString(dataset) {
		return "", fmt.Errorf("invalid dataset: %q", dataset)
	}
	if at.IsZero() {
		return "", fmt.Errorf("export time is required")
	}
	ts := at.UTC()
	return path.Join(
		"exports",
		dataset,
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("%s-%d.parquet", dataset, ts.UnixMilli()),
	), nil
}
