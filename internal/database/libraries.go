package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tagify/internal/logging"
)

// ErrScanInProgress is returned when a scan start is rejected because
// the library is already scanning.
var ErrScanInProgress = errors.New("scan already in progress")

// CreateLibrary registers a new library root.
func (d *Database) CreateLibrary(ctx context.Context, lib *Library) error {
	done := observeQuery("create_library")

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO libraries (id, root_path, display_name)
		VALUES (?, ?, ?)
	`, lib.ID, lib.RootPath, lib.DisplayName)
	done(err)
	return err
}

// GetLibrary returns one library by id, or ErrNotFound.
func (d *Database) GetLibrary(ctx context.Context, id string) (*Library, error) {
	done := observeQuery("get_library")

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	lib, err := scanLibrary(d.db.QueryRowContext(ctx, selectLibrary+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		done(nil)
		return nil, ErrNotFound
	}
	done(err)
	if err != nil {
		return nil, err
	}
	return lib, nil
}

// ListLibraries returns all registered libraries, oldest first.
func (d *Database) ListLibraries(ctx context.Context) ([]Library, error) {
	done := observeQuery("list_libraries")

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, selectLibrary+" ORDER BY created_at, id")
	if err != nil {
		done(err)
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Error("error closing rows: %v", err)
		}
	}()

	libs := []Library{}
	for rows.Next() {
		lib, err := scanLibrary(rows)
		if err != nil {
			done(err)
			return nil, err
		}
		libs = append(libs, *lib)
	}
	if err := rows.Err(); err != nil {
		done(err)
		return nil, err
	}

	done(nil)
	return libs, nil
}

// DeleteLibrary removes a library row. Image rows cascade via the
// foreign key; callers are responsible for object store cleanup.
func (d *Database) DeleteLibrary(ctx context.Context, id string) error {
	done := observeQuery("delete_library")

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	result, err := d.db.ExecContext(ctx, "DELETE FROM libraries WHERE id = ?", id)
	if err != nil {
		done(err)
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		done(nil)
		return ErrNotFound
	}
	done(nil)
	return nil
}

// TryStartScan atomically transitions a library from idle to scanning.
// The check-and-set guard enforces at most one active scan per
// library: a second caller sees ErrScanInProgress. Counters and any
// previous scan error are reset as part of the transition.
func (d *Database) TryStartScan(ctx context.Context, id string) error {
	done := observeQuery("try_start_scan")

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, `
		UPDATE libraries
		SET scanning = 1, scan_total = 0, scan_done = 0, scan_error = NULL
		WHERE id = ? AND scanning = 0
	`, id)
	if err != nil {
		done(err)
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		done(err)
		return err
	}
	if n == 0 {
		// Distinguish "already scanning" from "no such library".
		if _, err := d.GetLibrary(ctx, id); err != nil {
			done(nil)
			return err
		}
		done(nil)
		return ErrScanInProgress
	}

	done(nil)
	return nil
}

// UpdateScanProgress persists the live counters of an active scan.
func (d *Database) UpdateScanProgress(ctx context.Context, id string, total, doneCount int64) error {
	done := observeQuery("update_scan_progress")

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		UPDATE libraries SET scan_total = ?, scan_done = ? WHERE id = ?
	`, total, doneCount, id)
	done(err)
	return err
}

// FinishScan transitions scanning -> done, recording the final indexed
// count and completion time.
func (d *Database) FinishScan(ctx context.Context, id string, total, doneCount, indexed int64) error {
	done := observeQuery("finish_scan")

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		UPDATE libraries
		SET scanning = 0, scan_total = ?, scan_done = ?, indexed_count = ?,
			last_scanned = strftime('%s', 'now')
		WHERE id = ?
	`, total, doneCount, indexed, id)
	done(err)
	return err
}

// FailScan transitions scanning -> error with a human-readable cause.
// Used only for unrecoverable per-library failures, never for
// individual file problems.
func (d *Database) FailScan(ctx context.Context, id, cause string) error {
	done := observeQuery("fail_scan")

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		UPDATE libraries SET scanning = 0, scan_error = ? WHERE id = ?
	`, cause, id)
	done(err)
	return err
}

// ClearStaleScans resets the scanning flag of any library left mid-scan
// by a previous process. Scans are not resumable; the interrupted pass
// simply needs to be re-run.
func (d *Database) ClearStaleScans(ctx context.Context) (int64, error) {
	done := observeQuery("clear_stale_scans")

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx, `
		UPDATE libraries
		SET scanning = 0, scan_error = 'scan interrupted by restart'
		WHERE scanning = 1
	`)
	if err != nil {
		done(err)
		return 0, err
	}
	n, err := result.RowsAffected()
	done(err)
	return n, err
}

const selectLibrary = `
	SELECT id, root_path, display_name, scanning, scan_total, scan_done,
		scan_error, indexed_count, last_scanned, created_at
	FROM libraries
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLibrary(row rowScanner) (*Library, error) {
	var lib Library
	var scanning int
	var scanErr sql.NullString
	var lastScanned sql.NullInt64
	var createdAt int64

	err := row.Scan(
		&lib.ID, &lib.RootPath, &lib.DisplayName, &scanning,
		&lib.ScanTotal, &lib.ScanDone, &scanErr,
		&lib.IndexedCount, &lastScanned, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	lib.Scanning = scanning != 0
	if scanErr.Valid {
		lib.ScanError = scanErr.String
	}
	if lastScanned.Valid {
		t := time.Unix(lastScanned.Int64, 0)
		lib.LastScanned = &t
	}
	lib.CreatedAt = time.Unix(createdAt, 0)

	return &lib, nil
}
