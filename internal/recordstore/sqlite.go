package recordstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"mediapipe/internal/media"
	"mediapipe/internal/recordstore/migrations"
)

// SQLiteStore is the local record store. Change capture is done by triggers
// that append to the content_changes table, which SQLiteStore also exposes
// as a media.ChangeFeed.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens the sqlite database at path. path can be a file path
// or ":memory:". The schema is not applied; see Migrate.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// NewSQLiteStoreFromDB wraps an existing connection.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// OpenConnection opens and configures a sqlite connection. The pool is
// limited to one connection: every ":memory:" connection is a separate
// database, and sqlite serializes writers anyway.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// Migrate applies any pending schema migrations.
func (s *SQLiteStore) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the schema is current.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckStatus(s.db)
}

const recordColumns = `owner_id, object_key, thumbnail_key, is_public, upload_date, title, description`

// PutRecord inserts or replaces a record. An existing row is updated in place
// so the change log sees MODIFY rather than REMOVE followed by INSERT.
func (s *SQLiteStore) PutRecord(ctx context.Context, rec *media.ContentRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE content_records
		SET thumbnail_key = ?, is_public = ?, upload_date = ?, upload_day = ?, title = ?, description = ?
		WHERE owner_id = ? AND object_key = ?`,
		rec.ThumbnailKey, rec.IsPublic, rec.Uploaded.Timestamp(), rec.Uploaded.Day(), rec.Title, rec.Description,
		rec.OwnerID, rec.ObjectKey)
	if err != nil {
		return fmt.Errorf("updating record %s: %w", rec.ObjectKey, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating record %s: %w", rec.ObjectKey, err)
	}
	if n == 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO content_records (owner_id, object_key, thumbnail_key, is_public, upload_date, upload_day, title, description)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.OwnerID, rec.ObjectKey, rec.ThumbnailKey, rec.IsPublic,
			rec.Uploaded.Timestamp(), rec.Uploaded.Day(), rec.Title, rec.Description)
		if err != nil {
			return fmt.Errorf("inserting record %s: %w", rec.ObjectKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing record %s: %w", rec.ObjectKey, err)
	}
	return nil
}

func (s *SQLiteStore) GetRecord(ctx context.Context, ownerID, objectKey string) (*media.ContentRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM content_records WHERE owner_id = ? AND object_key = ?`,
		ownerID, objectKey)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting record %s: %w", objectKey, err)
	}
	return rec, nil
}

func (s *SQLiteStore) DeleteRecord(ctx context.Context, ownerID, objectKey string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM content_records WHERE owner_id = ? AND object_key = ?`, ownerID, objectKey)
	if err != nil {
		return fmt.Errorf("deleting record %s: %w", objectKey, err)
	}
	return nil
}

func (s *SQLiteStore) QueryByOwner(ctx context.Context, ownerID string, isPublic bool) ([]*media.ContentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM content_records
		WHERE owner_id = ? AND is_public = ?
		ORDER BY object_key DESC`,
		ownerID, isPublic)
	if err != nil {
		return nil, fmt.Errorf("querying records of %s: %w", ownerID, err)
	}
	return scanRecords(rows)
}

func (s *SQLiteStore) QueryByDay(ctx context.Context, day string, isPublic bool, limit int) ([]*media.ContentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM content_records
		WHERE upload_day = ? AND is_public = ?
		ORDER BY upload_date DESC
		LIMIT ?`,
		day, isPublic, limit)
	if err != nil {
		return nil, fmt.Errorf("querying records of %s: %w", day, err)
	}
	return scanRecords(rows)
}

func (s *SQLiteStore) ListOwners(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT owner_id FROM content_records ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("listing owners: %w", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("scanning owner: %w", err)
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

func (s *SQLiteStore) LatestUploadDay(ctx context.Context, isPublic bool) (string, error) {
	var day sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(upload_day) FROM content_records WHERE is_public = ?`, isPublic).Scan(&day)
	if err != nil {
		return "", fmt.Errorf("finding latest upload day: %w", err)
	}
	return day.String, nil
}

// ReadChanges returns changes logged after position after, oldest first.
func (s *SQLiteStore) ReadChanges(ctx context.Context, after int64, limit int) ([]media.ChangeEvent, int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, owner_id, object_key, new_is_public, new_upload_day
		FROM content_changes
		WHERE id > ?
		ORDER BY id
		LIMIT ?`,
		after, limit)
	if err != nil {
		return nil, after, fmt.Errorf("reading changes: %w", err)
	}
	defer rows.Close()

	last := after
	var changes []media.ChangeEvent
	for rows.Next() {
		var (
			id       int64
			kind     string
			ev       media.ChangeEvent
			isPublic sql.NullBool
			day      sql.NullString
		)
		if err := rows.Scan(&id, &kind, &ev.OwnerID, &ev.ObjectKey, &isPublic, &day); err != nil {
			return nil, after, fmt.Errorf("scanning change: %w", err)
		}

		ev.ID = strconv.FormatInt(id, 10)
		ev.Kind = media.ChangeKind(kind)
		if isPublic.Valid {
			ev.NewImage = &media.ChangeImage{IsPublic: isPublic.Bool, UploadDay: day.String}
		}

		changes = append(changes, ev)
		last = id
	}
	if err := rows.Err(); err != nil {
		return nil, after, fmt.Errorf("reading changes: %w", err)
	}
	return changes, last, nil
}

// Checkpoint returns the committed position of consumer, or 0.
func (s *SQLiteStore) Checkpoint(ctx context.Context, consumer string) (int64, error) {
	var pos int64
	err := s.db.QueryRowContext(ctx,
		`SELECT position FROM stream_checkpoints WHERE consumer = ?`, consumer).Scan(&pos)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading checkpoint of %s: %w", consumer, err)
	}
	return pos, nil
}

func (s *SQLiteStore) Commit(ctx context.Context, consumer string, position int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stream_checkpoints (consumer, position) VALUES (?, ?)
		ON CONFLICT (consumer) DO UPDATE SET position = excluded.position`,
		consumer, position)
	if err != nil {
		return fmt.Errorf("committing checkpoint of %s: %w", consumer, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*media.ContentRecord, error) {
	var (
		rec      media.ContentRecord
		uploaded string
	)
	err := row.Scan(&rec.OwnerID, &rec.ObjectKey, &rec.ThumbnailKey, &rec.IsPublic, &uploaded, &rec.Title, &rec.Description)
	if err != nil {
		return nil, err
	}

	stamp, err := media.ParseUploadStamp(uploaded)
	if err != nil {
		return nil, err
	}
	rec.Uploaded = stamp
	return &rec, nil
}

func scanRecords(rows *sql.Rows) ([]*media.ContentRecord, error) {
	defer rows.Close()

	var recs []*media.ContentRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scanning records: %w", err)
	}
	return recs, nil
}

var (
	_ media.RecordStore = (*SQLiteStore)(nil)
	_ media.ChangeFeed  = (*SQLiteStore)(nil)
)
