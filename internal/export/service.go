package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dexsync/dexsync/internal/catalog"
	"github.com/dexsync/dexsync/internal/observability"
	"github.com/dexsync/dexsync/internal/storage"
)

const (
	dataset            = "species"
	parquetContentType = "application/vnd.apache.parquet"
)

var (
	ErrSizeMismatch        = errors.New("export: uploaded object size mismatch")
	ErrRecordCountMismatch = errors.New("export: uploaded object record count mismatch")
)

type Store interface {
	ListAllSpecies(ctx context.Context) ([]catalog.Species, error)
}

type Service struct {
	Store       Store
	ObjectStore storage.ObjectStore
	Logger      *slog.Logger
	Clock       func() time.Time
}

type Summary struct {
	ObjectPath  string `json:"object_path"`
	RecordCount int    `json:"record_count"`
	SizeBytes   int64  `json:"size_bytes"`
}

// RunOnce snapshots every stored species into a single parquet object and
// confirms the upload with a Stat. An object whose size does not match is
// removed before the error is returned.
func (s *Service) RunOnce(ctx context.Context) (summary Summary, err error) {
	s.ensureDefaults()
	if s.Store == nil {
		return Summary{}, fmt.Errorf("store is required")
	}
	if s.ObjectStore == nil {
		return Summary{}, fmt.Errorf("object store is required")
	}
	defer func() {
		status := "success"
		if err != nil {
			status = "failed"
		}
		exportRunsTotal.WithLabelValues(status).Inc()
	}()

	records, err := s.Store.ListAllSpecies(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list species: %w", err)
	}
	observability.SetStoredSpecies(len(records))

	data, err := EncodeSpeciesToParquet(records)
	if err != nil {
		return Summary{}, err
	}
	objectPath, err := storage.BuildExportPath(dataset, s.Clock())
	if err != nil {
		return Summary{}, err
	}
	if _, err := s.ObjectStore.Put(ctx, objectPath, bytes.NewReader(data), int64(len(data)), storage.PutOptions{
		ContentType: parquetContentType,
		Metadata:    storage.ExportMetadata(dataset, len(records)),
	}); err != nil {
		return Summary{}, fmt.Errorf("upload export: %w", err)
	}

	info, err := s.ObjectStore.Stat(ctx, objectPath)
	if err != nil {
		return Summary{}, fmt.Errorf("verify export: %w", err)
	}
	if info.Size != int64(len(data)) {
		s.removeMismatched(ctx, objectPath)
		return Summary{}, fmt.Errorf("%w: %s has %d bytes, wrote %d", ErrSizeMismatch, objectPath, info.Size, len(data))
	}
	// Backends that drop user metadata report no count; only a disagreeing count fails.
	if count, ok := info.RecordCount(); ok && count != len(records) {
		s.removeMismatched(ctx, objectPath)
		return Summary{}, fmt.Errorf("%w: %s reports %d records, wrote %d", ErrRecordCountMismatch, objectPath, count, len(records))
	}

	exportBytesTotal.Add(float64(len(data)))
	summary = Summary{ObjectPath: objectPath, RecordCount: len(records), SizeBytes: info.Size}
	if s.Logger != nil {
		s.Logger.InfoContext(ctx, "species export completed", slog.Any("summary", summary))
	}
	return summary, nil
}

func (s *Service) ensureDefaults() {
	if s.Clock == nil {
		s.Clock = time.Now
	}
}

func (s *Service) removeMismatched(ctx context.Context, objectPath string) {
	if err := s.ObjectStore.Delete(ctx, objectPath); err != nil && s.Logger != nil {
		s.Logger.WarnContext(ctx, "failed to remove mismatched export",
			slog.String("object_path", objectPath),
			slog.Any("error", err),
		)
	}
}
