package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()

	d, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("failed to close database: %v", err)
		}
	})
	return d
}

func mustCreateLibrary(t *testing.T, d *Database, id string) {
	t.Helper()

	err := d.CreateLibrary(context.Background(), &Library{
		ID:          id,
		RootPath:    "/photos/" + id,
		DisplayName: id,
	})
	if err != nil {
		t.Fatalf("failed to create library %s: %v", id, err)
	}
}

func mustUpsertImage(t *testing.T, d *Database, libID, rel string) string {
	t.Helper()

	id := ImageID(libID, rel)
	err := d.UpsertImage(context.Background(), &Image{
		ID:           id,
		LibraryID:    libID,
		RelativePath: rel,
		Size:         100,
		Width:        640,
		Height:       480,
		CreatedTime:  time.Now(),
		ModifiedTime: time.Now(),
		OriginalKey:  libID + "/" + id + ".png",
		ThumbKey:     libID + "/" + id + ".jpg",
	})
	if err != nil {
		t.Fatalf("failed to upsert image %s: %v", id, err)
	}
	return id
}

func TestImageID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		lib      string
		rel      string
		expected string
	}{
		{"lib1", "a.png", "lib1:a.png"},
		{"lib1", "sub/dir/a.png", "lib1:sub/dir/a.png"},
		{"lib1", `sub\dir\a.png`, "lib1:sub/dir/a.png"},
	}

	for _, tt := range tests {
		if got := ImageID(tt.lib, tt.rel); got != tt.expected {
			t.Errorf("ImageID(%q, %q) = %q, want %q", tt.lib, tt.rel, got, tt.expected)
		}
	}
}

func TestUpsertImageIdempotent(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	ctx := context.Background()
	mustCreateLibrary(t, d, "lib1")

	files := []string{"a.png", "b.jpg", "sub/c.gif"}

	// Two full passes over the same three files.
	for pass := 0; pass < 2; pass++ {
		for _, rel := range files {
			mustUpsertImage(t, d, "lib1", rel)
		}
	}

	count, err := d.CountImages(ctx, "lib1")
	if err != nil {
		t.Fatalf("CountImages returned error: %v", err)
	}
	if count != 3 {
		t.Errorf("CountImages = %d after double scan of 3 files, want 3", count)
	}
}

func TestUpsertPreservesTags(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	ctx := context.Background()
	mustCreateLibrary(t, d, "lib1")

	id := mustUpsertImage(t, d, "lib1", "a.png")
	if err := d.ApplyTags(ctx, id, []string{"cat"}); err != nil {
		t.Fatalf("ApplyTags returned error: %v", err)
	}

	// Rescan of the same file must not disturb applied tags.
	mustUpsertImage(t, d, "lib1", "a.png")

	img, err := d.GetImage(ctx, id)
	if err != nil {
		t.Fatalf("GetImage returned error: %v", err)
	}
	if len(img.Tags) != 1 || img.Tags[0] != "cat" {
		t.Errorf("tags after rescan = %v, want [cat]", img.Tags)
	}
}

func TestGetImageSeparatorTolerance(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	ctx := context.Background()
	mustCreateLibrary(t, d, "lib1")
	mustUpsertImage(t, d, "lib1", "sub/dir/a.png")

	img, err := d.GetImage(ctx, `lib1:sub\dir\a.png`)
	if err != nil {
		t.Fatalf("GetImage with backslash id returned error: %v", err)
	}
	if img.ID != "lib1:sub/dir/a.png" {
		t.Errorf("resolved id = %q, want lib1:sub/dir/a.png", img.ID)
	}
}

func TestGetImageNotFound(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)

	_, err := d.GetImage(context.Background(), "lib1:missing.png")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetImage of missing image = %v, want ErrNotFound", err)
	}
}

func TestListImagesPaginationRoundTrip(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	ctx := context.Background()
	mustCreateLibrary(t, d, "lib1")

	rels := []string{"a.png", "b.png", "c.png", "d.png", "e.png", "f.png", "g.png"}
	for _, rel := range rels {
		mustUpsertImage(t, d, "lib1", rel)
	}

	// Unbounded listing as the reference order.
	all, _, err := d.ListImages(ctx, ListOptions{Limit: 100})
	if err != nil {
		t.Fatalf("ListImages returned error: %v", err)
	}
	if len(all) != len(rels) {
		t.Fatalf("unbounded listing returned %d rows, want %d", len(all), len(rels))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].ID <= all[i].ID {
			t.Fatalf("listing not ordered by id descending: %q before %q", all[i-1].ID, all[i].ID)
		}
	}

	// Walk pages of 3 via cursor until an empty page comes back.
	var paged []ImageSummary
	cursor := ""
	inserted := false
	for {
		page, next, err := d.ListImages(ctx, ListOptions{Limit: 3, Cursor: cursor})
		if err != nil {
			t.Fatalf("ListImages page returned error: %v", err)
		}
		if len(page) == 0 {
			break
		}
		paged = append(paged, page...)
		cursor = next

		// A new image arriving mid-pagination must not disturb
		// pages that have already been fetched.
		if !inserted {
			mustUpsertImage(t, d, "lib1", "zzz-new.png")
			inserted = true
		}
	}

	// "zzz-new.png" sorts after every original row under id
	// descending, so it lands on the first page of a fresh listing
	// and never inside an already-fetched window.
	if len(paged) != len(all) {
		t.Fatalf("paged listing returned %d rows, want %d", len(paged), len(all))
	}
	for i := range all {
		if paged[i].ID != all[i].ID {
			t.Errorf("page row %d = %q, want %q", i, paged[i].ID, all[i].ID)
		}
	}
}

func TestListImagesTagFilters(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	ctx := context.Background()
	mustCreateLibrary(t, d, "lib1")

	imgA := mustUpsertImage(t, d, "lib1", "a.png")
	imgB := mustUpsertImage(t, d, "lib1", "b.png")
	imgC := mustUpsertImage(t, d, "lib1", "c.png")
	imgD := mustUpsertImage(t, d, "lib1", "d.png")

	for id, tags := range map[string][]string{
		imgA: {"cat", "red"},
		imgB: {"cat"},
		imgC: {"red"},
	} {
		if err := d.ApplyTags(ctx, id, tags); err != nil {
			t.Fatalf("ApplyTags(%s) returned error: %v", id, err)
		}
	}

	ids := func(items []ImageSummary) map[string]bool {
		set := make(map[string]bool, len(items))
		for _, it := range items {
			set[it.ID] = true
		}
		return set
	}

	tests := []struct {
		name     string
		opts     ListOptions
		expected []string
	}{
		{"and", ListOptions{Tags: []string{"cat", "red"}, Logic: TagLogicAnd}, []string{imgA}},
		{"or", ListOptions{Tags: []string{"cat", "red"}, Logic: TagLogicOr}, []string{imgA, imgB, imgC}},
		{"no tags", ListOptions{NoTags: true}, []string{imgD}},
		{"single tag", ListOptions{Tags: []string{"cat"}, Logic: TagLogicAnd}, []string{imgA, imgB}},
		{"unknown tag", ListOptions{Tags: []string{"dog"}, Logic: TagLogicOr}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, _, err := d.ListImages(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListImages returned error: %v", err)
			}
			got := ids(items)
			if len(got) != len(tt.expected) {
				t.Fatalf("got %d rows %v, want %d", len(got), got, len(tt.expected))
			}
			for _, want := range tt.expected {
				if !got[want] {
					t.Errorf("result missing %q", want)
				}
			}
		})
	}
}

func TestListImagesLibraryFilter(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	ctx := context.Background()
	mustCreateLibrary(t, d, "lib1")
	mustCreateLibrary(t, d, "lib2")
	mustUpsertImage(t, d, "lib1", "a.png")
	mustUpsertImage(t, d, "lib2", "b.png")

	items, _, err := d.ListImages(ctx, ListOptions{LibraryID: "lib2"})
	if err != nil {
		t.Fatalf("ListImages returned error: %v", err)
	}
	if len(items) != 1 || items[0].ID != "lib2:b.png" {
		t.Errorf("library-filtered listing = %v, want just lib2:b.png", items)
	}
}

func TestTagCounts(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	ctx := context.Background()
	mustCreateLibrary(t, d, "lib1")

	imgA := mustUpsertImage(t, d, "lib1", "a.png")
	imgB := mustUpsertImage(t, d, "lib1", "b.png")

	if err := d.ApplyTags(ctx, imgA, []string{"cat", "red"}); err != nil {
		t.Fatal(err)
	}
	if err := d.ApplyTags(ctx, imgB, []string{"cat"}); err != nil {
		t.Fatal(err)
	}

	counts, err := d.TagCounts(ctx)
	if err != nil {
		t.Fatalf("TagCounts returned error: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("TagCounts returned %d entries, want 2", len(counts))
	}
	if counts[0].Tag != "cat" || counts[0].Count != 2 {
		t.Errorf("first entry = %+v, want cat/2", counts[0])
	}
	if counts[1].Tag != "red" || counts[1].Count != 1 {
		t.Errorf("second entry = %+v, want red/1", counts[1])
	}

	// A tag removed from its last image disappears from the aggregate.
	if err := d.RemoveTags(ctx, imgA, []string{"red"}); err != nil {
		t.Fatal(err)
	}
	counts, err = d.TagCounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 1 || counts[0].Tag != "cat" {
		t.Errorf("counts after removal = %+v, want just cat", counts)
	}
}

func TestApplyTagsUnknownImage(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)

	err := d.ApplyTags(context.Background(), "lib1:nope.png", []string{"cat"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ApplyTags on missing image = %v, want ErrNotFound", err)
	}
}

func TestCascadingLibraryDelete(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	ctx := context.Background()
	mustCreateLibrary(t, d, "lib1")

	imgA := mustUpsertImage(t, d, "lib1", "a.png")
	mustUpsertImage(t, d, "lib1", "b.png")
	if err := d.ApplyTags(ctx, imgA, []string{"cat"}); err != nil {
		t.Fatal(err)
	}

	if err := d.DeleteLibrary(ctx, "lib1"); err != nil {
		t.Fatalf("DeleteLibrary returned error: %v", err)
	}

	items, _, err := d.ListImages(ctx, ListOptions{LibraryID: "lib1"})
	if err != nil {
		t.Fatalf("ListImages returned error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("listing after cascade delete returned %d rows, want 0", len(items))
	}

	// Tag associations must cascade too.
	counts, err := d.TagCounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 0 {
		t.Errorf("tag counts after cascade delete = %+v, want empty", counts)
	}
}

func TestDeleteLibraryNotFound(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	if err := d.DeleteLibrary(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteLibrary(ghost) = %v, want ErrNotFound", err)
	}
}

func TestScanStateMachine(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	ctx := context.Background()
	mustCreateLibrary(t, d, "lib1")

	if err := d.TryStartScan(ctx, "lib1"); err != nil {
		t.Fatalf("first TryStartScan returned error: %v", err)
	}

	// Second start while scanning is rejected.
	if err := d.TryStartScan(ctx, "lib1"); !errors.Is(err, ErrScanInProgress) {
		t.Errorf("concurrent TryStartScan = %v, want ErrScanInProgress", err)
	}

	if err := d.UpdateScanProgress(ctx, "lib1", 10, 4); err != nil {
		t.Fatal(err)
	}
	lib, err := d.GetLibrary(ctx, "lib1")
	if err != nil {
		t.Fatal(err)
	}
	if !lib.Scanning || lib.ScanTotal != 10 || lib.ScanDone != 4 {
		t.Errorf("mid-scan state = %+v", lib)
	}

	if err := d.FinishScan(ctx, "lib1", 10, 10, 10); err != nil {
		t.Fatal(err)
	}
	lib, err = d.GetLibrary(ctx, "lib1")
	if err != nil {
		t.Fatal(err)
	}
	if lib.Scanning || lib.IndexedCount != 10 || lib.LastScanned == nil {
		t.Errorf("post-scan state = %+v", lib)
	}

	// A fresh scan can start again after completion, and a failure
	// records the cause while clearing the scanning flag.
	if err := d.TryStartScan(ctx, "lib1"); err != nil {
		t.Fatalf("rescan TryStartScan returned error: %v", err)
	}
	if err := d.FailScan(ctx, "lib1", "root path vanished"); err != nil {
		t.Fatal(err)
	}
	lib, err = d.GetLibrary(ctx, "lib1")
	if err != nil {
		t.Fatal(err)
	}
	if lib.Scanning || lib.ScanError != "root path vanished" {
		t.Errorf("failed-scan state = %+v", lib)
	}
}

func TestTryStartScanUnknownLibrary(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	if err := d.TryStartScan(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("TryStartScan(ghost) = %v, want ErrNotFound", err)
	}
}

func TestClearStaleScans(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	ctx := context.Background()
	mustCreateLibrary(t, d, "lib1")
	mustCreateLibrary(t, d, "lib2")

	if err := d.TryStartScan(ctx, "lib1"); err != nil {
		t.Fatal(err)
	}

	n, err := d.ClearStaleScans(ctx)
	if err != nil {
		t.Fatalf("ClearStaleScans returned error: %v", err)
	}
	if n != 1 {
		t.Errorf("ClearStaleScans cleared %d libraries, want 1", n)
	}

	lib, err := d.GetLibrary(ctx, "lib1")
	if err != nil {
		t.Fatal(err)
	}
	if lib.Scanning || lib.ScanError == "" {
		t.Errorf("state after stale clear = %+v", lib)
	}
}

func TestStaleImageReaping(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	ctx := context.Background()
	mustCreateLibrary(t, d, "lib1")

	mustUpsertImage(t, d, "lib1", "keep.png")
	gone := mustUpsertImage(t, d, "lib1", "gone.png")

	// A scan that starts in the future sees both rows as stale;
	// re-upserting one simulates the file still being on disk.
	cutoff := time.Now().Add(2 * time.Second)
	time.Sleep(1100 * time.Millisecond) // last_seen has second resolution

	stale, err := d.StaleImages(ctx, "lib1", cutoff)
	if err != nil {
		t.Fatalf("StaleImages returned error: %v", err)
	}
	if len(stale) != 2 {
		t.Fatalf("StaleImages = %d rows before refresh, want 2", len(stale))
	}

	time.Sleep(1100 * time.Millisecond)
	mustUpsertImage(t, d, "lib1", "keep.png") // refreshes last_seen past cutoff

	stale, err = d.StaleImages(ctx, "lib1", cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 1 || stale[0].ID != gone {
		t.Fatalf("StaleImages after refresh = %+v, want just %s", stale, gone)
	}

	n, err := d.DeleteImages(ctx, []string{gone})
	if err != nil {
		t.Fatalf("DeleteImages returned error: %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteImages removed %d rows, want 1", n)
	}

	count, err := d.CountImages(ctx, "lib1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("CountImages after reap = %d, want 1", count)
	}
}

func TestTouchImageShieldsFromStaleness(t *testing.T) {
	t.Parallel()

	d := newTestDB(t)
	ctx := context.Background()
	mustCreateLibrary(t, d, "lib1")

	id := mustUpsertImage(t, d, "lib1", "flaky.png")

	cutoff := time.Now().Add(2 * time.Second)
	time.Sleep(1100 * time.Millisecond) // last_seen has second resolution

	stale, err := d.StaleImages(ctx, "lib1", cutoff)
	if err != nil {
		t.Fatalf("StaleImages returned error: %v", err)
	}
	if len(stale) != 1 {
		t.Fatalf("StaleImages = %d rows before touch, want 1", len(stale))
	}

	time.Sleep(1100 * time.Millisecond)
	if err := d.TouchImage(ctx, id); err != nil {
		t.Fatalf("TouchImage returned error: %v", err)
	}

	stale, err = d.StaleImages(ctx, "lib1", cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 0 {
		t.Errorf("StaleImages after touch = %+v, want none", stale)
	}

	// Touching an id with no document is a no-op, not an error.
	if err := d.TouchImage(ctx, "lib1:never-indexed.png"); err != nil {
		t.Errorf("TouchImage on unknown id returned error: %v", err)
	}
}
