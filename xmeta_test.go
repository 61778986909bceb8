package xmeta_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"testing"

	"github.com/mwantia/xmeta"
	"github.com/mwantia/xmeta/attr"
	attrmemory "github.com/mwantia/xmeta/attr/memory"
	"github.com/mwantia/xmeta/backup"
	backupmemory "github.com/mwantia/xmeta/backup/memory"
	"github.com/mwantia/xmeta/backup/sqlite"
	"github.com/mwantia/xmeta/codec"
	"github.com/mwantia/xmeta/data"
	"github.com/mwantia/xmeta/prefs"
)

// TestBackupFactory creates the backup store a test service runs against.
type TestBackupFactory func(tst *testing.T) (backup.Store, error)

func GetTestBackupFactories() map[string]TestBackupFactory {
	return map[string]TestBackupFactory{
		"memory": func(tst *testing.T) (backup.Store, error) {
			return backupmemory.NewMemoryBackend(), nil
		},
		"sqlite": func(tst *testing.T) (backup.Store, error) {
			return sqlite.NewSQLiteBackend(":memory:")
		},
	}
}

type testEnv struct {
	service *xmeta.Service
	files   *attrmemory.MemoryStore
	backups backup.Store
}

func newTestEnv(tst *testing.T, factory TestBackupFactory, options ...xmeta.ServiceOption) *testEnv {
	tst.Helper()

	backups, err := factory(tst)
	if err != nil {
		tst.Fatalf("Backup store init failed: %v", err)
	}

	files := attrmemory.NewMemoryStore()
	service, err := xmeta.New(files, backups, options...)
	if err != nil {
		tst.Fatalf("Service init failed: %v", err)
	}
	if err := service.Open(tst.Context()); err != nil {
		tst.Fatalf("Service open failed: %v", err)
	}
	tst.Cleanup(func() {
		service.Close(context.Background())
	})

	return &testEnv{service: service, files: files, backups: backups}
}

func assertTags(tst *testing.T, got data.TagSet, expected ...string) {
	tst.Helper()
	if !slices.Equal(got.Strings(), expected) {
		tst.Fatalf("Expected tags %v, got %v", expected, got)
	}
}

func TestService_AddUserTags(t *testing.T) {
	for name, factory := range GetTestBackupFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			env := newTestEnv(tst, factory)
			env.files.Create("/photo.jpg")

			if result, err := env.service.SetUserTags(ctx, "/photo.jpg", []string{"Apple"}); err != nil || result != data.Success {
				tst.Fatalf("Expected success, got %v (%v)", result, err)
			}

			// Existing casing wins over any casing of the same tag
			result, err := env.service.AddUserTags(ctx, "/photo.jpg", []string{"apple", "APPLE"})
			if err != nil {
				tst.Fatalf("AddUserTags failed: %v", err)
			}
			if result != data.NoChange {
				tst.Errorf("Expected no change, got %v", result)
			}

			for i, expected := range []data.Result{data.Success, data.NoChange} {
				result, err := env.service.AddUserTags(ctx, "/photo.jpg", []string{"Pear"})
				if err != nil {
					tst.Fatalf("AddUserTags %d failed: %v", i, err)
				}
				if result != expected {
					tst.Errorf("Expected %v on add %d, got %v", expected, i, result)
				}
			}

			got, err := env.service.GetUserTags(ctx, "/photo.jpg")
			if err != nil {
				tst.Fatalf("GetUserTags failed: %v", err)
			}
			assertTags(tst, got, "Apple", "Pear")
		})
	}
}

func TestService_ClearUserTags(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t, GetTestBackupFactories()["memory"])
	env.files.Create("/doc.txt")

	if _, err := env.service.SetUserTags(ctx, "/doc.txt", []string{"Draft", "work"}); err != nil {
		t.Fatalf("SetUserTags failed: %v", err)
	}

	result, err := env.service.ClearUserTags(ctx, "/doc.txt", []string{"missing"})
	if err != nil || result != data.NoChange {
		t.Fatalf("Expected no change for missing tag, got %v (%v)", result, err)
	}

	result, err = env.service.ClearUserTags(ctx, "/doc.txt", []string{"DRAFT", "Work"})
	if err != nil || result != data.Success {
		t.Fatalf("Expected success, got %v (%v)", result, err)
	}

	// Clearing the last tag removes the attribute
	if _, err := env.service.GetUserTags(ctx, "/doc.txt"); !errors.Is(err, data.ErrNoData) {
		t.Errorf("Expected ErrNoData, got %v", err)
	}
	if _, err := env.files.ReadAttribute(ctx, "/doc.txt", data.DefaultNaming.Name(data.KeyUserTags, data.Indexed)); !errors.Is(err, data.ErrNoData) {
		t.Errorf("Expected tags attribute to be removed, got %v", err)
	}
}

func TestService_EditTags_PartialStrip(t *testing.T) {
	tests := []struct {
		name     string
		edit     func(ctx context.Context, svc *xmeta.Service) (data.Result, error)
		expected []string
	}{
		{"Add", func(ctx context.Context, svc *xmeta.Service) (data.Result, error) {
			return svc.AddUserTags(ctx, "/a", []string{"b"})
		}, []string{"a", "b"}},
		{"Clear", func(ctx context.Context, svc *xmeta.Service) (data.Result, error) {
			return svc.ClearUserTags(ctx, "/a", []string{"a"})
		}, []string{"c"}},
	}

	for name, factory := range GetTestBackupFactories() {
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(tst *testing.T) {
				ctx := tst.Context()
				env := newTestEnv(tst, factory)
				env.files.Create("/a")

				if _, err := env.service.SetUserTags(ctx, "/a", []string{"a", "c"}); err != nil {
					tst.Fatalf("SetUserTags failed: %v", err)
				}
				if _, err := env.service.SetRating(ctx, "/a", data.NewRating(3)); err != nil {
					tst.Fatalf("SetRating failed: %v", err)
				}
				// Lose the tags slot only, the namespace stays populated
				if err := env.files.RemoveAttribute(ctx, "/a", data.DefaultNaming.Name(data.KeyUserTags, data.Indexed)); err != nil {
					tst.Fatalf("RemoveAttribute failed: %v", err)
				}

				result, err := tt.edit(ctx, env.service)
				if err != nil || result != data.Success {
					tst.Fatalf("Expected success, got %v (%v)", result, err)
				}

				got, err := env.service.GetUserTags(ctx, "/a")
				if err != nil {
					tst.Fatalf("GetUserTags failed: %v", err)
				}
				assertTags(tst, got, tt.expected...)

				identity, _ := env.files.Identify(ctx, "/a")
				record, err := env.backups.Restore(ctx, identity)
				if err != nil {
					tst.Fatalf("Expected a backup record, got %v", err)
				}
				backedUp, err := codec.Decode(record.Tags, data.KindArray)
				if err != nil {
					tst.Fatalf("Decode failed: %v", err)
				}
				if values, _ := backedUp.StringSlice(); !slices.Equal(values, tt.expected) {
					tst.Errorf("Expected backup tags %v, got %v", tt.expected, values)
				}
			})
		}
	}
}

func TestService_CommonUserTags(t *testing.T) {
	for name, factory := range GetTestBackupFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			env := newTestEnv(tst, factory)

			locations := []string{"/a.jpg", "/b.jpg"}
			for i, location := range locations {
				env.files.Create(location)
				private := []string{"only-a", "only-b"}[i]
				if _, err := env.service.SetUserTags(ctx, location, []string{"Holiday", "beach", private}); err != nil {
					tst.Fatalf("SetUserTags failed: %v", err)
				}
			}
			// Casing differs between files
			if _, err := env.service.SetUserTags(ctx, "/b.jpg", []string{"HOLIDAY", "Beach", "only-b"}); err != nil {
				tst.Fatalf("SetUserTags failed: %v", err)
			}

			snapshot, err := env.service.GetCommonUserTags(ctx, locations)
			if err != nil {
				tst.Fatalf("GetCommonUserTags failed: %v", err)
			}
			assertTags(tst, snapshot.Shared, "Holiday", "beach")

			result, err := env.service.SetCommonUserTags(ctx, locations, snapshot, []string{"Holiday", "Sea"})
			if err != nil || result != data.Success {
				tst.Fatalf("Expected success, got %v (%v)", result, err)
			}

			a, _ := env.service.GetUserTags(ctx, "/a.jpg")
			assertTags(tst, a, "only-a", "Holiday", "Sea")
			b, _ := env.service.GetUserTags(ctx, "/b.jpg")
			assertTags(tst, b, "only-b", "Holiday", "Sea")
		})
	}
}

func TestService_CommonUserTags_Stale(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t, GetTestBackupFactories()["memory"])

	locations := []string{"/a.jpg", "/b.jpg"}
	for _, location := range locations {
		env.files.Create(location)
		if _, err := env.service.SetUserTags(ctx, location, []string{"shared"}); err != nil {
			t.Fatalf("SetUserTags failed: %v", err)
		}
	}

	snapshot, err := env.service.GetCommonUserTags(ctx, locations)
	if err != nil {
		t.Fatalf("GetCommonUserTags failed: %v", err)
	}

	// Out of band edit after the snapshot was taken
	if _, err := env.service.AddUserTags(ctx, "/a.jpg", []string{"late"}); err != nil {
		t.Fatalf("AddUserTags failed: %v", err)
	}
	if _, err := env.service.AddUserTags(ctx, "/b.jpg", []string{"late"}); err != nil {
		t.Fatalf("AddUserTags failed: %v", err)
	}

	if _, err := env.service.SetCommonUserTags(ctx, locations, snapshot, []string{"replaced"}); !errors.Is(err, data.ErrStaleSnapshot) {
		t.Fatalf("Expected ErrStaleSnapshot, got %v", err)
	}

	for _, location := range locations {
		got, _ := env.service.GetUserTags(ctx, location)
		assertTags(t, got, "shared", "late")
	}
}

func TestService_CommonUserTags_StaleSingleFile(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t, GetTestBackupFactories()["memory"])

	locations := []string{"/a.jpg", "/b.jpg"}
	for _, location := range locations {
		env.files.Create(location)
		if _, err := env.service.SetUserTags(ctx, location, []string{"x", "y"}); err != nil {
			t.Fatalf("SetUserTags failed: %v", err)
		}
	}

	snapshot, err := env.service.GetCommonUserTags(ctx, locations)
	if err != nil {
		t.Fatalf("GetCommonUserTags failed: %v", err)
	}

	// Only A changes after the snapshot
	if _, err := env.service.ClearUserTags(ctx, "/a.jpg", []string{"x"}); err != nil {
		t.Fatalf("ClearUserTags failed: %v", err)
	}

	result, err := env.service.SetCommonUserTags(ctx, locations, snapshot, []string{"z"})
	if !errors.Is(err, data.ErrStaleSnapshot) {
		t.Fatalf("Expected ErrStaleSnapshot, got %v", err)
	}
	if result != data.NoChange {
		t.Errorf("Expected no change, got %v", result)
	}

	a, _ := env.service.GetUserTags(ctx, "/a.jpg")
	assertTags(t, a, "y")
	b, _ := env.service.GetUserTags(ctx, "/b.jpg")
	assertTags(t, b, "x", "y")
}

func TestService_CommonUserTags_Params(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t, GetTestBackupFactories()["memory"])
	env.files.Create("/a")
	env.files.Create("/b")

	if _, err := env.service.GetCommonUserTags(ctx, nil); !errors.Is(err, data.ErrParam) {
		t.Errorf("Expected ErrParam for no locations, got %v", err)
	}

	snapshot, err := env.service.GetCommonUserTags(ctx, []string{"/a", "/b"})
	if err != nil {
		t.Fatalf("GetCommonUserTags failed: %v", err)
	}
	if !snapshot.Shared.IsEmpty() {
		t.Errorf("Expected no shared tags, got %v", snapshot.Shared)
	}

	if _, err := env.service.SetCommonUserTags(ctx, []string{"/b", "/a"}, snapshot, []string{"x"}); !errors.Is(err, data.ErrParam) {
		t.Errorf("Expected ErrParam for reordered locations, got %v", err)
	}
	if _, err := env.service.SetCommonUserTags(ctx, []string{"/a"}, snapshot, []string{"x"}); !errors.Is(err, data.ErrParam) {
		t.Errorf("Expected ErrParam for missing location, got %v", err)
	}

	result, err := env.service.SetCommonUserTags(ctx, []string{"/a", "/b"}, snapshot, nil)
	if err != nil || result != data.NoChange {
		t.Errorf("Expected no change for identical tags, got %v (%v)", result, err)
	}
}

func TestService_Rating(t *testing.T) {
	tests := []struct {
		name     string
		rating   data.Rating
		expected data.Rating
	}{
		{"InRange", data.NewRating(3.5), data.NewRating(3.5)},
		{"ClampHigh", data.NewRating(9), data.NewRating(data.MaxRating)},
		{"ClampLow", data.NewRating(-1), data.NewRating(0)},
		{"Zero", data.NewRating(0), data.NewRating(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(tst *testing.T) {
			ctx := tst.Context()
			env := newTestEnv(tst, GetTestBackupFactories()["memory"])
			env.files.Create("/song.flac")

			got, err := env.service.GetRating(ctx, "/song.flac")
			if err != nil || got != data.Unset {
				tst.Fatalf("Expected unset rating, got %v (%v)", got, err)
			}

			if _, err := env.service.SetRating(ctx, "/song.flac", tt.rating); err != nil {
				tst.Fatalf("SetRating failed: %v", err)
			}
			if got, _ := env.service.GetRating(ctx, "/song.flac"); got != tt.expected {
				tst.Errorf("Expected %v, got %v", tt.expected, got)
			}

			if _, err := env.service.SetRating(ctx, "/song.flac", data.Unset); err != nil {
				tst.Fatalf("SetRating unset failed: %v", err)
			}
			if got, _ := env.service.GetRating(ctx, "/song.flac"); got != data.Unset {
				tst.Errorf("Expected unset after removal, got %v", got)
			}
			if _, err := env.files.ReadAttribute(ctx, "/song.flac", data.DefaultNaming.Name(data.KeyStarRating, data.Indexed)); !errors.Is(err, data.ErrNoData) {
				tst.Errorf("Expected rating attribute to be removed, got %v", err)
			}
		})
	}
}

func TestService_BackupOnWrite(t *testing.T) {
	for name, factory := range GetTestBackupFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			env := newTestEnv(tst, factory)
			env.files.Create("/a")

			if _, err := env.service.SetUserTags(ctx, "/a", []string{"one"}); err != nil {
				tst.Fatalf("SetUserTags failed: %v", err)
			}
			if _, err := env.service.SetRating(ctx, "/a", data.NewRating(4)); err != nil {
				tst.Fatalf("SetRating failed: %v", err)
			}
			if _, err := env.service.Hide(ctx, "/a"); err != nil {
				tst.Fatalf("Hide failed: %v", err)
			}

			identity, _ := env.files.Identify(ctx, "/a")
			record, err := env.backups.Restore(ctx, identity)
			if err != nil {
				tst.Fatalf("Expected a backup record, got %v", err)
			}
			if record.Tags == nil || record.Rating == nil {
				tst.Errorf("Expected tags and rating in backup, got %+v", record)
			}
			if _, ok := record.Values[data.DefaultNaming.Name(data.KeyHidden, data.Indexed)]; !ok {
				tst.Errorf("Expected hidden flag in backup values, got %v", record.Values)
			}
		})
	}
}

func TestService_RestoreOnRead(t *testing.T) {
	for name, factory := range GetTestBackupFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			env := newTestEnv(tst, factory)
			env.files.Create("/a")

			if _, err := env.service.SetUserTags(ctx, "/a", []string{"kept"}); err != nil {
				tst.Fatalf("SetUserTags failed: %v", err)
			}
			if _, err := env.service.SetRating(ctx, "/a", data.NewRating(2)); err != nil {
				tst.Fatalf("SetRating failed: %v", err)
			}

			if err := env.files.Strip("/a"); err != nil {
				tst.Fatalf("Strip failed: %v", err)
			}

			got, err := env.service.GetUserTags(ctx, "/a")
			if err != nil {
				tst.Fatalf("GetUserTags failed: %v", err)
			}
			assertTags(tst, got, "kept")

			if r, _ := env.service.GetRating(ctx, "/a"); r != data.NewRating(2) {
				tst.Errorf("Expected restored rating 2, got %v", r)
			}
		})
	}
}

func TestService_RestoreCopyByPath(t *testing.T) {
	for name, factory := range GetTestBackupFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			env := newTestEnv(tst, factory)
			env.files.Create("/report.pdf")

			if _, err := env.service.SetUserTags(ctx, "/report.pdf", []string{"finance"}); err != nil {
				tst.Fatalf("SetUserTags failed: %v", err)
			}
			before, _ := env.files.Identify(ctx, "/report.pdf")

			// Safe save through a temporary copy drops attributes and the inode
			if err := env.files.Copy("/report.pdf", "/report.tmp", false); err != nil {
				tst.Fatalf("Copy failed: %v", err)
			}
			if err := env.files.Rename("/report.tmp", "/report.pdf"); err != nil {
				tst.Fatalf("Rename failed: %v", err)
			}

			after, _ := env.files.Identify(ctx, "/report.pdf")
			if after.SameFile(before) {
				tst.Fatalf("Expected a new inode after copy")
			}

			result, err := env.service.RestoreMetadata(ctx, "/report.pdf")
			if err != nil || result != data.Success {
				tst.Fatalf("Expected success, got %v (%v)", result, err)
			}
			got, _ := env.service.GetUserTags(ctx, "/report.pdf")
			assertTags(tst, got, "finance")

			// Re-recorded under the new identity
			record, err := env.backups.Restore(ctx, data.FileIdentity{Device: after.Device, Inode: after.Inode})
			if err != nil {
				tst.Fatalf("Expected record under new identity, got %v", err)
			}
			if record.Identity.Inode != after.Inode {
				tst.Errorf("Expected inode %d, got %d", after.Inode, record.Identity.Inode)
			}
		})
	}
}

func TestService_RestoreKeepsLiveData(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t, GetTestBackupFactories()["memory"])
	env.files.Create("/a")

	if _, err := env.service.SetUserTags(ctx, "/a", []string{"old"}); err != nil {
		t.Fatalf("SetUserTags failed: %v", err)
	}

	// Written by another tool, so the backup still holds "old"
	raw, err := codec.Encode(data.Strings("new"))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if err := env.files.WriteAttribute(ctx, "/a", data.DefaultNaming.Name(data.KeyUserTags, data.Indexed), raw); err != nil {
		t.Fatalf("WriteAttribute failed: %v", err)
	}

	result, err := env.service.RestoreMetadata(ctx, "/a")
	if err != nil {
		t.Fatalf("RestoreMetadata failed: %v", err)
	}
	if result != data.NoChange {
		t.Errorf("Expected no change, got %v", result)
	}

	got, _ := env.service.GetUserTags(ctx, "/a")
	assertTags(t, got, "new")
}

func TestService_RestoreMetadata_NotFound(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t, GetTestBackupFactories()["memory"])
	env.files.Create("/never-tagged")

	if _, err := env.service.RestoreMetadata(ctx, "/never-tagged"); !errors.Is(err, data.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := env.service.GetUserTags(ctx, "/never-tagged"); !errors.Is(err, data.ErrNoData) {
		t.Errorf("Expected ErrNoData, got %v", err)
	}
	if _, err := env.service.GetUserTags(ctx, "/missing"); !errors.Is(err, data.ErrNotExist) {
		t.Errorf("Expected ErrNotExist, got %v", err)
	}
}

func TestService_WriteRestoresStrippedFile(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t, GetTestBackupFactories()["memory"])
	env.files.Create("/a")

	if _, err := env.service.SetUserTags(ctx, "/a", []string{"keep"}); err != nil {
		t.Fatalf("SetUserTags failed: %v", err)
	}
	if err := env.files.Strip("/a"); err != nil {
		t.Fatalf("Strip failed: %v", err)
	}

	// Writing the rating must not drop the tags from the backup
	if _, err := env.service.SetRating(ctx, "/a", data.NewRating(5)); err != nil {
		t.Fatalf("SetRating failed: %v", err)
	}

	identity, _ := env.files.Identify(ctx, "/a")
	record, err := env.backups.Restore(ctx, identity)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if record.Tags == nil {
		t.Errorf("Expected tags to survive in backup, got %+v", record)
	}
}

func TestService_RestoreAll(t *testing.T) {
	for name, factory := range GetTestBackupFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			env := newTestEnv(tst, factory, xmeta.WithWorkers(2))

			locations := []string{"/1", "/2", "/3", "/4"}
			for _, location := range locations {
				env.files.Create(location)
				if _, err := env.service.SetUserTags(ctx, location, []string{"tag" + location}); err != nil {
					tst.Fatalf("SetUserTags failed: %v", err)
				}
				env.files.Strip(location)
			}
			// Deleted since its backup: skipped, not failed
			env.files.Create("/gone")
			env.service.SetUserTags(ctx, "/gone", []string{"x"})
			env.files.Rename("/gone", "/moved")
			env.files.Strip("/moved")

			pass, err := env.service.RestoreAllOnBackgroundThread(nil)
			if err != nil {
				tst.Fatalf("RestoreAllOnBackgroundThread failed: %v", err)
			}
			report, err := pass.Wait(ctx)
			if err != nil {
				tst.Fatalf("Wait failed: %v", err)
			}
			if report.Failed != 0 {
				tst.Errorf("Expected no failures, got %v (%v)", report, report.Err)
			}

			for _, location := range locations {
				got, err := env.files.ReadAttribute(ctx, location, data.DefaultNaming.Name(data.KeyUserTags, data.Indexed))
				if err != nil || len(got) == 0 {
					tst.Errorf("Expected tags restored on %s, got %v", location, err)
				}
			}
		})
	}
}

func TestService_RestoreAll_Shutdown(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t, GetTestBackupFactories()["memory"], xmeta.WithWorkers(1))

	var locations []string
	for i := range 32 {
		location := fmt.Sprintf("/file-%02d", i)
		locations = append(locations, location)

		env.files.Create(location)
		if _, err := env.service.SetUserTags(ctx, location, []string{"tag"}); err != nil {
			t.Fatalf("SetUserTags failed: %v", err)
		}
		if _, err := env.service.SetRating(ctx, location, data.NewRating(2)); err != nil {
			t.Fatalf("SetRating failed: %v", err)
		}
		if _, err := env.service.Hide(ctx, location); err != nil {
			t.Fatalf("Hide failed: %v", err)
		}
		env.files.Strip(location)
	}

	pass, err := env.service.RestoreAllOnBackgroundThread(nil)
	if err != nil {
		t.Fatalf("RestoreAllOnBackgroundThread failed: %v", err)
	}
	if err := env.service.AppIsTerminating(context.Background()); err != nil {
		t.Fatalf("AppIsTerminating failed: %v", err)
	}

	report, err := pass.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if report.Failed != 0 {
		t.Errorf("Expected no failures, got %v (%v)", report, report.Err)
	}

	restored := 0
	for _, location := range locations {
		names, err := env.files.ListAttributes(ctx, location)
		if err != nil {
			t.Fatalf("ListAttributes failed: %v", err)
		}
		switch len(names) {
		case 0:
		case 3:
			restored++
		default:
			t.Errorf("Expected %s fully restored or untouched, got %v", location, names)
		}
	}
	if restored != report.Restored {
		t.Errorf("Expected %d restored files, got %d", report.Restored, restored)
	}
	if report.Restored+report.Dropped != 0 && report.Restored+report.Dropped != len(locations) {
		t.Errorf("Expected every listed file accounted for, got %v", report)
	}

	if _, err := env.service.RestoreAllOnBackgroundThread(nil); !errors.Is(err, data.ErrShutdown) {
		t.Errorf("Expected ErrShutdown after termination, got %v", err)
	}
}

func TestService_Sync(t *testing.T) {
	for name, factory := range GetTestBackupFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := tst.Context()
			env := newTestEnv(tst, factory)

			locations := []string{"/src", "/dst1", "/dst2"}
			for _, location := range locations {
				env.files.Create(location)
			}

			// Source written by another tool with duplicate casing
			raw, _ := codec.Encode(data.Strings("Red", "red", "Blue"))
			env.files.WriteAttribute(ctx, "/src", data.DefaultNaming.Name(data.KeyUserTags, data.Indexed), raw)
			raw, _ = codec.Encode(data.Number(7))
			env.files.WriteAttribute(ctx, "/src", data.DefaultNaming.Name(data.KeyStarRating, data.Indexed), raw)

			env.service.SetUserTags(ctx, "/dst1", []string{"stale"})
			env.service.SetRating(ctx, "/dst2", data.NewRating(1))

			report, err := env.service.Sync(ctx, locations, false)
			if err != nil {
				tst.Fatalf("Sync failed: %v", err)
			}
			assertTags(tst, report.Tags, "Red", "Blue")
			if report.Rating != data.NewRating(data.MaxRating) {
				tst.Errorf("Expected clamped rating, got %v", report.Rating)
			}
			if report.Failed() != 0 {
				tst.Errorf("Expected no failures, got %v", report.Results)
			}

			for _, location := range locations {
				if err, ok := report.Results[location]; !ok || err != nil {
					tst.Errorf("Expected %s to be written, got %v", location, err)
				}
				got, _ := env.service.GetUserTags(ctx, location)
				assertTags(tst, got, "Red", "Blue")
				if r, _ := env.service.GetRating(ctx, location); r != data.NewRating(data.MaxRating) {
					tst.Errorf("Expected rating 5 on %s, got %v", location, r)
				}
			}
		})
	}
}

func TestService_Sync_Aggressive(t *testing.T) {
	tests := []struct {
		name       string
		aggressive bool
		expected   []string
	}{
		{"Canonical", false, nil},
		{"Aggressive", true, []string{"saved"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(tst *testing.T) {
			ctx := tst.Context()
			env := newTestEnv(tst, GetTestBackupFactories()["memory"])
			env.files.Create("/src")
			env.files.Create("/dst")

			env.service.SetUserTags(ctx, "/src", []string{"saved"})
			env.files.Strip("/src")

			report, err := env.service.Sync(ctx, []string{"/src", "/dst"}, tt.aggressive)
			if err != nil {
				tst.Fatalf("Sync failed: %v", err)
			}
			assertTags(tst, report.Tags, tt.expected...)

			names, _ := env.files.ListAttributes(ctx, "/dst")
			if tt.aggressive != (len(names) > 0) {
				tst.Errorf("Expected attributes on target: %v, got %v", tt.aggressive, names)
			}
		})
	}
}

func TestService_Sync_SourceFailure(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t, GetTestBackupFactories()["memory"])
	env.files.Create("/dst")

	if _, err := env.service.Sync(ctx, nil, false); !errors.Is(err, data.ErrParam) {
		t.Errorf("Expected ErrParam, got %v", err)
	}

	report, err := env.service.Sync(ctx, []string{"/missing", "/dst"}, false)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	for _, location := range []string{"/missing", "/dst"} {
		if !errors.Is(report.Results[location], data.ErrNotExist) {
			t.Errorf("Expected ErrNotExist for %s, got %v", location, report.Results[location])
		}
	}
}

func TestService_Sync_TargetFailure(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t, GetTestBackupFactories()["memory"], xmeta.WithWorkers(1))

	for _, location := range []string{"/src", "/dst1", "/dst2"} {
		env.files.Create(location)
	}
	if _, err := env.service.SetUserTags(ctx, "/src", []string{"keep"}); err != nil {
		t.Fatalf("SetUserTags failed: %v", err)
	}

	report, err := env.service.Sync(ctx, []string{"/src", "/dst1", "/missing", "/dst2"}, false)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if report.Failed() != 1 {
		t.Errorf("Expected one failure, got %v", report.Results)
	}
	if !errors.Is(report.Results["/missing"], data.ErrNotExist) {
		t.Errorf("Expected ErrNotExist for /missing, got %v", report.Results["/missing"])
	}

	for _, location := range []string{"/src", "/dst1", "/dst2"} {
		if err, ok := report.Results[location]; !ok || err != nil {
			t.Errorf("Expected %s to be written, got %v", location, err)
		}
		got, _ := env.service.GetUserTags(ctx, location)
		assertTags(t, got, "keep")
	}
}

func TestService_SyncAsync(t *testing.T) {
	ctx := t.Context()
	env := newTestEnv(t, GetTestBackupFactories()["memory"])
	env.files.Create("/src")
	env.files.Create("/dst")
	env.service.SetUserTags(ctx, "/src", []string{"async"})

	reports, err := env.service.SyncAsync([]string{"/src", "/dst"}, false)
	if err != nil {
		t.Fatalf("SyncAsync failed: %v", err)
	}

	report, ok := <-reports
	if !ok {
		t.Fatalf("Expected a report")
	}
	if report.Failed() != 0 {
		t.Errorf("Expected no failures, got %v", report.Results)
	}
	got, _ := env.service.GetUserTags(ctx, "/dst")
	assertTags(t, got, "async")

	if err := env.service.AppIsTerminating(ctx); err != nil {
		t.Fatalf("AppIsTerminating failed: %v", err)
	}
	if _, err := env.service.SyncAsync([]string{"/src"}, false); !errors.Is(err, data.ErrShutdown) {
		t.Errorf("Expected ErrShutdown, got %v", err)
	}
}

func TestService_RecentTags(t *testing.T) {
	ctx := t.Context()

	recent, err := prefs.NewRecentTags(filepath.Join(t.TempDir(), "recent.toml"), 10)
	if err != nil {
		t.Fatalf("NewRecentTags failed: %v", err)
	}
	env := newTestEnv(t, GetTestBackupFactories()["memory"], xmeta.WithRecentTags(recent))
	env.files.Create("/a")

	env.service.SetUserTags(ctx, "/a", []string{"first"})
	env.service.AddUserTags(ctx, "/a", []string{"second"})
	// No change: not recorded again
	env.service.AddUserTags(ctx, "/a", []string{"FIRST"})

	got, err := recent.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !slices.Equal(got, []string{"second", "first"}) {
		t.Errorf("Expected [second first], got %v", got)
	}
}

func TestService_ReadOnlyStore(t *testing.T) {
	ctx := t.Context()

	files := attrmemory.NewMemoryStore()
	backups := backupmemory.NewMemoryBackend()
	writable, err := xmeta.New(files, backups)
	if err != nil {
		t.Fatalf("Service init failed: %v", err)
	}
	files.Create("/a")
	if _, err := writable.SetUserTags(ctx, "/a", []string{"saved"}); err != nil {
		t.Fatalf("SetUserTags failed: %v", err)
	}
	files.Strip("/a")

	service, err := xmeta.New(attr.NewReadOnly(files), backups)
	if err != nil {
		t.Fatalf("Service init failed: %v", err)
	}

	// Automatic restore is skipped, the read reports the stripped state
	if _, err := service.GetUserTags(ctx, "/a"); !errors.Is(err, data.ErrNoData) {
		t.Errorf("Expected ErrNoData, got %v", err)
	}
	if names, _ := files.ListAttributes(ctx, "/a"); len(names) != 0 {
		t.Errorf("Expected no attributes written, got %v", names)
	}
	if _, err := service.SetUserTags(ctx, "/a", []string{"x"}); !errors.Is(err, data.ErrReadOnly) {
		t.Errorf("Expected ErrReadOnly, got %v", err)
	}
}
