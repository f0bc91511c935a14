package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/dexsync/dexsync/internal/storage"
)

type memoryAPI struct {
	objects      map[string][]byte
	bucketExists bool
	created      []string
	putTypes     map[string]string
	metadata     map[string]map[string]string
}

func newMemoryAPI() *memoryAPI {
	return &memoryAPI{objects: map[string][]byte{}, putTypes: map[string]string{}, metadata: map[string]map[string]string{}}
}

func (m *memoryAPI) Put(_ context.Context, bucket, key string, reader io.Reader, _ int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	body, err := io.ReadAll(reader)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	m.objects[bucket+"/"+key] = body
	m.putTypes[bucket+"/"+key] = opts.ContentType
	m.metadata[bucket+"/"+key] = opts.Metadata
	return storage.ObjectInfo{Key: key, Size: int64(len(body)), ETag: "etag"}, nil
}

func (m *memoryAPI) Get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	body, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (m *memoryAPI) Stat(_ context.Context, bucket, key string) (storage.ObjectInfo, error) {
	body, ok := m.objects[bucket+"/"+key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(body)), LastModified: time.Now().UTC(), Metadata: m.metadata[bucket+"/"+key]}, nil
}

func (m *memoryAPI) Delete(_ context.Context, bucket, key string) error {
	if _, ok := m.objects[bucket+"/"+key]; !ok {
		return storage.ErrObjectNotFound
	}
	delete(m.objects, bucket+"/"+key)
	return nil
}

func (m *memoryAPI) BucketExists(context.Context, string) (bool, error) {
	return m.bucketExists, nil
}

func (m *memoryAPI) CreateBucket(_ context.Context, bucket, _ string) error {
	m.created = append(m.created, bucket)
	return nil
}

func TestPutScopesKeysUnderPrefix(t *testing.T) {
	api := newMemoryAPI()
	store, err := NewWithAPI("dex-exports", "/dexsync/prod/", api)
	if err != nil {
		t.Fatalf("NewWithAPI() error = %v", err)
	}

	info, err := store.Put(context.Background(), "/exports/species/date=2026-02-19/species-1.parquet", bytes.NewBufferString("abc"), 3, storage.PutOptions{
		ContentType: "application/vnd.apache.parquet",
		Metadata:    storage.ExportMetadata("species", 3),
	})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	wantKey := "dex-exports/dexsync/prod/exports/species/date=2026-02-19/species-1.parquet"
	if _, ok := api.objects[wantKey]; !ok {
		t.Fatalf("objects = %#v, want key %q", api.objects, wantKey)
	}
	if api.putTypes[wantKey] != "application/vnd.apache.parquet" {
		t.Fatalf("content type = %q", api.putTypes[wantKey])
	}
	if info.Size != 3 {
		t.Fatalf("Put().Size = %d", info.Size)
	}
	stat, err := store.Stat(context.Background(), "exports/species/date=2026-02-19/species-1.parquet")
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if count, ok := stat.RecordCount(); !ok || count != 3 {
		t.Fatalf("Stat().RecordCount() = %d, %v", count, ok)
	}
}

func TestStatAndGetMapMissingObjects(t *testing.T) {
	store, err := NewWithAPI("dex-exports", "", newMemoryAPI())
	if err != nil {
		t.Fatalf("NewWithAPI() error = %v", err)
	}
	if _, err := store.Stat(context.Background(), "exports/missing.parquet"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Stat() error = %v, want ErrObjectNotFound", err)
	}
	if _, err := store.Get(context.Background(), "exports/missing.parquet"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Get() error = %v, want ErrObjectNotFound", err)
	}
}

func TestObjectKeyRejectsTraversal(t *testing.T) {
	store, err := NewWithAPI("dex-exports", "", newMemoryAPI())
	if err != nil {
		t.Fatalf("NewWithAPI() error = %v", err)
	}
	for _, key := range []string{"", "  ", "../secrets.txt", "..", "exports/../../x"} {
		if _, err := store.Put(context.Background(), key, bytes.NewBufferString("x"), 1, storage.PutOptions{}); err == nil {
			t.Fatalf("Put(%q) expected key validation error", key)
		}
	}
}

func TestEnsureBucketCreatesOnlyWhenMissing(t *testing.T) {
	api := newMemoryAPI()
	store, err := NewWithAPI("dex-exports", "", api)
	if err != nil {
		t.Fatalf("NewWithAPI() error = %v", err)
	}
	if err := store.ensureBucket(context.Background(), "us-east-1"); err != nil {
		t.Fatalf("ensureBucket() error = %v", err)
	}
	api.bucketExists = true
	if err := store.ensureBucket(context.Background(), "us-east-1"); err != nil {
		t.Fatalf("ensureBucket() error = %v", err)
	}
	if len(api.created) != 1 || api.created[0] != "dex-exports" {
		t.Fatalf("created = %#v", api.created)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store, err := NewWithAPI("dex-exports", "", newMemoryAPI())
	if err != nil {
		t.Fatalf("NewWithAPI() error = %v", err)
	}
	if err := store.Delete(context.Background(), "exports/missing.parquet"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}

func TestNewWithAPIValidation(t *testing.T) {
	if _, err := NewWithAPI("", "", newMemoryAPI()); err == nil {
		t.Fatal("expected bucket required error")
	}
	if _, err := NewWithAPI("dex-exports", "", nil); err == nil {
		t.Fatal("expected client required error")
	}
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		raw        string
		useSSL     bool
		wantHost   string
		wantSecure bool
		wantErr    bool
	}{
		{raw: "https://minio.example.com", wantHost: "minio.example.com", wantSecure: true},
		{raw: "http://localhost:9000", useSSL: true, wantHost: "localhost:9000", wantSecure: true},
		{raw: "localhost:9000", wantHost: "localhost:9000"},
		{raw: "ftp://minio.example.com", wantErr: true},
		{raw: "https://", wantErr: true},
		{raw: " ", wantErr: true},
	}
	for _, tt := range tests {
		host, secure, err := parseEndpoint(tt.raw, tt.useSSL)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("parseEndpoint(%q) expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseEndpoint(%q) error = %v", tt.raw, err)
		}
		if host != tt.wantHost || secure != tt.wantSecure {
			t.Fatalf("parseEndpoint(%q) = %q/%v", tt.raw, host, secure)
		}
	}
}
