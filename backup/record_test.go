package backup_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/mwantia/xmeta/backup"
	"github.com/mwantia/xmeta/data"
)

func TestPathKey(t *testing.T) {
	a := backup.PathKey("/photos/a.jpg")
	if a != backup.PathKey("/photos/a.jpg") {
		t.Errorf("Expected stable path key")
	}
	if a == backup.PathKey("/photos/b.jpg") {
		t.Errorf("Expected distinct path keys")
	}
	if !strings.HasPrefix(a, "paths/") || strings.Count(a, "/") != 1 {
		t.Errorf("Expected flat key below paths/, got %q", a)
	}
	if got := backup.RecordKey("1-2"); got != "records/1-2" {
		t.Errorf("Expected records/1-2, got %q", got)
	}
}

func TestMarshal_RecordLimit(t *testing.T) {
	record := &data.BackupRecord{
		Identity: data.FileIdentity{Device: 1, Inode: 2, Path: "/a"},
		Tags:     make([]byte, 1024),
	}

	if _, err := backup.Marshal(record, &backup.BackendCapabilities{MaxRecordSize: 128}); !errors.Is(err, data.ErrTooLarge) {
		t.Errorf("Expected ErrTooLarge, got %v", err)
	}

	b, err := backup.Marshal(record, backup.GetAllCapabilities())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	got, err := backup.Unmarshal(b)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !got.SameContent(record) || got.Identity != record.Identity {
		t.Errorf("Expected %+v, got %+v", record, got)
	}

	if _, err := backup.Unmarshal([]byte("{")); !errors.Is(err, data.ErrMalformed) {
		t.Errorf("Expected ErrMalformed, got %v", err)
	}
}
