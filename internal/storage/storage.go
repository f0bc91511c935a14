package storage

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"
)

var ErrObjectNotFound = errors.New("storage: object not found")

// Metadata keys written on every species export object.
const (
	MetaDataset     = "dataset"
	MetaRecordCount = "record-count"
)

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
	Metadata     map[string]string
}

type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// ObjectStore is the blob sink for species exports.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

func ExportMetadata(dataset string, records int) map[string]string {
	return map[string]string{
		MetaDataset:     dataset,
		MetaRecordCount: strconv.Itoa(records),
	}
}

// MetadataValue looks a key up ignoring case; S3 backends return user
// metadata keys in canonical header form.
func (info ObjectInfo) MetadataValue(key string) (string, bool) {
	for k, v := range info.Metadata {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// RecordCount reports the record-count metadata of an export object.
func (info ObjectInfo) RecordCount() (int, bool) {
	raw, ok := info.MetadataValue(MetaRecordCount)
	if !ok {
		return 0, false
	}
	count, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return count, true
}
