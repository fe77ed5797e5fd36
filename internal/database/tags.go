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

// ApplyTags adds tags to an image, creating tag rows as needed.
// Already-present tags are ignored. Returns ErrNotFound if the image
// does not exist.
func (d *Database) ApplyTags(ctx context.Context, imageID string, tags []string) error {
	done := observeQuery("apply_tags")
	err := d.applyTags(ctx, imageID, tags)
	done(err)
	return err
}

func (d *Database) applyTags(ctx context.Context, imageID string, tags []string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	imageID = NormalizePath(imageID)

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error("rollback failed: %v", rbErr)
			}
		}
	}()

	var exists int
	if err := tx.QueryRowContext(ctx,
		"SELECT 1 FROM images WHERE id = ?", imageID,
	).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}

		var tagID int64
		err := tx.QueryRowContext(ctx, "SELECT id FROM tags WHERE name = ?", tag).Scan(&tagID)
		if errors.Is(err, sql.ErrNoRows) {
			result, createErr := tx.ExecContext(ctx, "INSERT INTO tags (name) VALUES (?)", tag)
			if createErr != nil {
				return fmt.Errorf("failed to create tag %q: %w", tag, createErr)
			}
			tagID, _ = result.LastInsertId()
		} else if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO image_tags (image_id, tag_id) VALUES (?, ?)",
			imageID, tagID,
		); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// RemoveTags removes tags from an image. Tags the image does not carry
// are ignored silently.
func (d *Database) RemoveTags(ctx context.Context, imageID string, tags []string) error {
	done := observeQuery("remove_tags")

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	imageID = NormalizePath(imageID)

	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			cleaned = append(cleaned, tag)
		}
	}
	if len(cleaned) == 0 {
		done(nil)
		return nil
	}

	placeholders := strings.Repeat("?,", len(cleaned)-1) + "?"
	args := make([]interface{}, 0, len(cleaned)+1)
	args = append(args, imageID)
	for _, tag := range cleaned {
		args = append(args, tag)
	}

	_, err := d.db.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM image_tags
		WHERE image_id = ? AND tag_id IN (SELECT id FROM tags WHERE name IN (%s))
	`, placeholders), args...)
	done(err)
	return err
}

// TagCounts aggregates tag usage across all images, most-used first.
// Tags not carried by any image are omitted, matching a recompute from
// the image documents themselves.
func (d *Database) TagCounts(ctx context.Context) ([]TagCount, error) {
	done := observeQuery("tag_counts")

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT t.name, COUNT(it.image_id) AS cnt
		FROM tags t
		INNER JOIN image_tags it ON it.tag_id = t.id
		GROUP BY t.id, t.name
		ORDER BY cnt DESC, t.name
	`)
	if err != nil {
		done(err)
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Error("error closing rows: %v", err)
		}
	}()

	counts := []TagCount{}
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			done(err)
			return nil, err
		}
		counts = append(counts, tc)
	}
	if err := rows.Err(); err != nil {
		done(err)
		return nil, err
	}

	done(nil)
	return counts, nil
}
