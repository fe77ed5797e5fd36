package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"tagify/internal/logging"
)

// ErrNotFound is returned when a lookup matches no document.
var ErrNotFound = errors.New("not found")

const maxPageSize = 500

// UpsertImage inserts or updates an image document keyed by its
// composite id, with last-write-wins semantics. Tags are never touched
// here: a fresh insert starts with no tags, and a rescan of an
// existing image must not disturb tags applied since the last scan.
func (d *Database) UpsertImage(ctx context.Context, img *Image) error {
	done := observeQuery("upsert_image")

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
	INSERT INTO images (id, library_id, relative_path, size, width, height,
		created_time, modified_time, original_key, thumb_key, last_seen)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, strftime('%s', 'now'))
	ON CONFLICT(id) DO UPDATE SET
		size = excluded.size,
		width = excluded.width,
		height = excluded.height,
		created_time = excluded.created_time,
		modified_time = excluded.modified_time,
		original_key = excluded.original_key,
		thumb_key = excluded.thumb_key,
		last_seen = strftime('%s', 'now')
	`

	_, err := d.db.ExecContext(ctx, query,
		img.ID,
		img.LibraryID,
		NormalizePath(img.RelativePath),
		img.Size,
		img.Width,
		img.Height,
		img.CreatedTime.Unix(),
		img.ModifiedTime.Unix(),
		img.OriginalKey,
		img.ThumbKey,
	)
	done(err)
	return err
}

// TouchImage refreshes the last_seen stamp of an existing image, if
// one exists. A discovered file whose processing fails is still on
// disk, so its document must not look stale to the reaper.
func (d *Database) TouchImage(ctx context.Context, id string) error {
	done := observeQuery("touch_image")

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx,
		"UPDATE images SET last_seen = strftime('%s', 'now') WHERE id = ?",
		NormalizePath(id))
	done(err)
	return err
}

// GetImage returns the full document for one image. The id may use
// either path separator; it is normalized before lookup.
func (d *Database) GetImage(ctx context.Context, id string) (*Image, error) {
	done := observeQuery("get_image")

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id = NormalizePath(id)

	query := `
	SELECT id, library_id, relative_path, size, width, height,
		created_time, modified_time, original_key, thumb_key
	FROM images WHERE id = ?
	`

	var img Image
	var ctime, mtime int64

	err := d.db.QueryRowContext(ctx, query, id).Scan(
		&img.ID, &img.LibraryID, &img.RelativePath, &img.Size,
		&img.Width, &img.Height, &ctime, &mtime,
		&img.OriginalKey, &img.ThumbKey,
	)
	if errors.Is(err, sql.ErrNoRows) {
		done(nil)
		return nil, ErrNotFound
	}
	if err != nil {
		done(err)
		return nil, err
	}

	img.CreatedTime = time.Unix(ctime, 0)
	img.ModifiedTime = time.Unix(mtime, 0)

	img.Tags, err = d.imageTags(ctx, img.ID)
	done(err)
	if err != nil {
		return nil, err
	}
	return &img, nil
}

func (d *Database) imageTags(ctx context.Context, imageID string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT t.name
		FROM tags t
		INNER JOIN image_tags it ON t.id = it.tag_id
		WHERE it.image_id = ?
		ORDER BY t.name
	`, imageID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Error("error closing rows: %v", err)
		}
	}()

	tags := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tags = append(tags, name)
	}
	return tags, rows.Err()
}

// ListImages returns one projected page ordered by id descending plus
// the cursor for the next page. The cursor is the last row's id; a
// page is fetched with id < cursor, so concurrent inserts (which sort
// before any already-returned row or after the window entirely) never
// shift rows between fetched pages. An empty next cursor means the
// listing is exhausted.
func (d *Database) ListImages(ctx context.Context, opts ListOptions) ([]ImageSummary, string, error) {
	done := observeQuery("list_images")

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	limit := opts.Limit
	if limit < 1 {
		limit = 100
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	var where []string
	var args []interface{}

	if opts.LibraryID != "" {
		where = append(where, "i.library_id = ?")
		args = append(args, opts.LibraryID)
	}

	switch {
	case opts.NoTags:
		where = append(where, "NOT EXISTS (SELECT 1 FROM image_tags it WHERE it.image_id = i.id)")
	case len(opts.Tags) > 0:
		placeholders := strings.Repeat("?,", len(opts.Tags)-1) + "?"
		sub := fmt.Sprintf(`i.id IN (
			SELECT it.image_id FROM image_tags it
			INNER JOIN tags t ON t.id = it.tag_id
			WHERE t.name IN (%s)
			GROUP BY it.image_id`, placeholders)
		for _, tag := range opts.Tags {
			args = append(args, tag)
		}
		if opts.Logic != TagLogicOr {
			// AND: the image must carry every requested tag.
			sub += " HAVING COUNT(DISTINCT t.id) = ?"
			args = append(args, len(opts.Tags))
		}
		where = append(where, sub+")")
	}

	if opts.Cursor != "" {
		where = append(where, "i.id < ?")
		args = append(args, NormalizePath(opts.Cursor))
	}

	query := "SELECT i.id, i.relative_path, i.width, i.height, i.thumb_key != '' FROM images i"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY i.id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		done(err)
		return nil, "", err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Error("error closing rows: %v", err)
		}
	}()

	items := []ImageSummary{}
	for rows.Next() {
		var s ImageSummary
		if err := rows.Scan(&s.ID, &s.RelativePath, &s.Width, &s.Height, &s.HasThumb); err != nil {
			done(err)
			return nil, "", err
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		done(err)
		return nil, "", err
	}

	nextCursor := ""
	if len(items) > 0 {
		nextCursor = items[len(items)-1].ID
	}

	done(nil)
	return items, nextCursor, nil
}

// CountImages returns the number of indexed images in a library.
func (d *Database) CountImages(ctx context.Context, libraryID string) (int64, error) {
	done := observeQuery("count_images")

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var count int64
	err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM images WHERE library_id = ?", libraryID,
	).Scan(&count)
	done(err)
	return count, err
}

// DeleteImagesByLibrary removes every image document for a library.
// Tag associations go with them via the image_tags cascade.
func (d *Database) DeleteImagesByLibrary(ctx context.Context, libraryID string) (int64, error) {
	done := observeQuery("delete_images_by_library")

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	result, err := d.db.ExecContext(ctx,
		"DELETE FROM images WHERE library_id = ?", libraryID,
	)
	if err != nil {
		done(err)
		return 0, err
	}
	n, err := result.RowsAffected()
	done(err)
	return n, err
}

// StaleImages returns the images of a library that were not touched by
// an upsert since cutoff, i.e. files that disappeared from disk before
// the scan that started at cutoff.
func (d *Database) StaleImages(ctx context.Context, libraryID string, cutoff time.Time) ([]Image, error) {
	done := observeQuery("stale_images")

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, original_key, thumb_key
		FROM images
		WHERE library_id = ? AND last_seen < ?
	`, libraryID, cutoff.Unix())
	if err != nil {
		done(err)
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Error("error closing rows: %v", err)
		}
	}()

	var stale []Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.OriginalKey, &img.ThumbKey); err != nil {
			done(err)
			return nil, err
		}
		img.LibraryID = libraryID
		stale = append(stale, img)
	}
	if err := rows.Err(); err != nil {
		done(err)
		return nil, err
	}

	done(nil)
	return stale, nil
}

// DeleteImages removes image documents by id.
func (d *Database) DeleteImages(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	done := observeQuery("delete_images")

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = NormalizePath(id)
	}

	result, err := d.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM images WHERE id IN (%s)", placeholders), args...)
	if err != nil {
		done(err)
		return 0, err
	}
	n, err := result.RowsAffected()
	done(err)
	return n, err
}
