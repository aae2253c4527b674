package ads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// sqliteTime is fixed width so that text ordering matches time ordering.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS ads (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		title            TEXT NOT NULL,
		body_text        TEXT NOT NULL,
		destination_link TEXT NOT NULL,
		banner_image_ref TEXT NOT NULL,
		position         TEXT NOT NULL,
		status           TEXT NOT NULL DEFAULT 'active',
		is_active        BOOLEAN NOT NULL DEFAULT 1,
		start_date       TEXT NULL,
		end_date         TEXT NULL,
		view_count       INTEGER NOT NULL DEFAULT 0,
		click_count      INTEGER NOT NULL DEFAULT 0,
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ads_position_enabled ON ads(position, status, is_active)`,
}

// SQLiteRepository implements Store on top of modernc.org/sqlite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(db *sql.DB) Store {
	return &SQLiteRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// sqliteError maps driver failures onto the package errors. Constraint and
// statement errors are query failures; busy, locked, I/O and closed-handle
// failures mean the database is unavailable.
func sqliteError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		switch sqErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_IOERR, sqlite3.SQLITE_CANTOPEN:
			return unavailable(op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return unavailable(op, err)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTime)
}

func formatOptionalTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(sqliteTime, s)
}

func scanSQLiteAd(row rowScanner) (Ad, error) {
	var (
		ad                   Ad
		position, status     string
		start, end           sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(
		&ad.ID, &ad.Title, &ad.BodyText, &ad.DestinationLink, &ad.BannerImageRef,
		&position, &status, &ad.IsActive, &start, &end,
		&ad.ViewCount, &ad.ClickCount, &createdAt, &updatedAt,
	)
	if err != nil {
		return ad, err
	}
	ad.Position = Position(position)
	ad.Status = Status(status)
	if ad.CreatedAt, err = parseTime(createdAt); err != nil {
		return ad, fmt.Errorf("parse created_at: %w", err)
	}
	if ad.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return ad, fmt.Errorf("parse updated_at: %w", err)
	}
	if start.Valid {
		t, err := parseTime(start.String)
		if err != nil {
			return ad, fmt.Errorf("parse start_date: %w", err)
		}
		ad.StartDate = &t
	}
	if end.Valid {
		t, err := parseTime(end.String)
		if err != nil {
			return ad, fmt.Errorf("parse end_date: %w", err)
		}
		ad.EndDate = &t
	}
	return ad, nil
}

func (r *SQLiteRepository) Migrate(ctx context.Context) error {
	for _, migration := range sqliteMigrations {
		if _, err := r.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, migration)
		}
	}
	return nil
}

func (r *SQLiteRepository) Create(ctx context.Context, req CreateAdRequest) (*Ad, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	query := `
		INSERT INTO ads (title, body_text, destination_link, banner_image_ref, position, status,
		                 is_active, start_date, end_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + adColumns

	ts := formatTime(createdAt)
	ad, err := scanSQLiteAd(r.db.QueryRowContext(ctx, query,
		req.Title, req.BodyText, req.DestinationLink, req.BannerImageRef,
		string(req.Position), string(req.Status), req.IsActive,
		formatOptionalTime(req.StartDate), formatOptionalTime(req.EndDate), ts, ts,
	))
	if err != nil {
		return nil, sqliteError("create ad", err)
	}
	return &ad, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*Ad, error) {
	query := `SELECT ` + adColumns + ` FROM ads WHERE id = ?`

	ad, err := scanSQLiteAd(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, sqliteError("get ad", err)
	}
	return &ad, nil
}

func (r *SQLiteRepository) List(ctx context.Context, filter ListFilter) ([]Ad, int, error) {
	var pos sql.NullString
	if filter.Position != nil {
		pos = sql.NullString{String: string(*filter.Position), Valid: true}
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM ads WHERE (?1 IS NULL OR position = ?1)`
	if err := r.db.QueryRowContext(ctx, countQuery, pos).Scan(&total); err != nil {
		return nil, 0, sqliteError("count ads", err)
	}

	query := `
		SELECT ` + adColumns + `
		FROM ads
		WHERE (?1 IS NULL OR position = ?1)
		ORDER BY created_at DESC, id DESC
		LIMIT ?2 OFFSET ?3`

	list, err := r.queryAds(ctx, "list ads", query, pos, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *SQLiteRepository) ListByPosition(ctx context.Context, pos Position) ([]Ad, error) {
	query := `
		SELECT ` + adColumns + `
		FROM ads
		WHERE position = ? AND status = 'active' AND is_active = 1
		ORDER BY created_at DESC, id DESC`

	return r.queryAds(ctx, "list ads by position", query, string(pos))
}

func (r *SQLiteRepository) ListEnabled(ctx context.Context) ([]Ad, error) {
	query := `
		SELECT ` + adColumns + `
		FROM ads
		WHERE status = 'active' AND is_active = 1
		ORDER BY created_at DESC, id DESC`

	return r.queryAds(ctx, "list enabled ads", query)
}

func (r *SQLiteRepository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM ads`)
	if err != nil {
		return nil, sqliteError("list ad ids", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, sqliteError("list ad ids", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, sqliteError("list ad ids", err)
	}
	return ids, nil
}

func (r *SQLiteRepository) queryAds(ctx context.Context, op, query string, args ...any) ([]Ad, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqliteError(op, err)
	}
	defer rows.Close()

	list := []Ad{}
	for rows.Next() {
		ad, err := scanSQLiteAd(rows)
		if err != nil {
			return nil, sqliteError(op, err)
		}
		list = append(list, ad)
	}
	if err := rows.Err(); err != nil {
		return nil, sqliteError(op, err)
	}
	return list, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, id int64, req UpdateAdRequest) (*Ad, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, sqliteError("begin update", err)
	}
	defer tx.Rollback()

	current, err := scanSQLiteAd(tx.QueryRowContext(ctx, `SELECT `+adColumns+` FROM ads WHERE id = ?`, id))
	if err != nil {
		return nil, sqliteError("load ad for update", err)
	}
	next := req.Apply(current)
	if err := validateWindow(next.StartDate, next.EndDate); err != nil {
		return nil, err
	}

	query := `
		UPDATE ads
		SET title = ?, body_text = ?, destination_link = ?, banner_image_ref = ?,
		    position = ?, status = ?, is_active = ?, start_date = ?, end_date = ?,
		    updated_at = ?
		WHERE id = ?
		RETURNING ` + adColumns

	ad, err := scanSQLiteAd(tx.QueryRowContext(ctx, query,
		next.Title, next.BodyText, next.DestinationLink, next.BannerImageRef,
		string(next.Position), string(next.Status), next.IsActive,
		formatOptionalTime(next.StartDate), formatOptionalTime(next.EndDate),
		formatTime(r.now()), id,
	))
	if err != nil {
		return nil, sqliteError("update ad", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, sqliteError("commit update", err)
	}
	return &ad, nil
}

func (r *SQLiteRepository) ToggleStatus(ctx context.Context, id int64) (*Ad, error) {
	query := `
		UPDATE ads
		SET status = CASE WHEN status = 'active' THEN 'inactive' ELSE 'active' END,
		    updated_at = ?
		WHERE id = ?
		RETURNING ` + adColumns

	ad, err := scanSQLiteAd(r.db.QueryRowContext(ctx, query, formatTime(r.now()), id))
	if err != nil {
		return nil, sqliteError("toggle ad status", err)
	}
	return &ad, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) (*Ad, error) {
	query := `DELETE FROM ads WHERE id = ? RETURNING ` + adColumns

	ad, err := scanSQLiteAd(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, sqliteError("delete ad", err)
	}
	return &ad, nil
}

func (r *SQLiteRepository) IncrementViews(ctx context.Context, id int64, delta int64) error {
	return r.increment(ctx, "view_count", id, delta)
}

func (r *SQLiteRepository) IncrementClicks(ctx context.Context, id int64, delta int64) error {
	return r.increment(ctx, "click_count", id, delta)
}

func (r *SQLiteRepository) increment(ctx context.Context, column string, id int64, delta int64) error {
	if delta <= 0 {
		return nil
	}
	query := fmt.Sprintf(`UPDATE ads SET %s = %s + ? WHERE id = ?`, column, column)

	result, err := r.db.ExecContext(ctx, query, delta, id)
	if err != nil {
		return sqliteError("increment "+column, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return sqliteError("increment "+column, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Analytics(ctx context.Context) (*Analytics, error) {
	var a Analytics
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'active' AND is_active = 1 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(view_count), 0),
		       COALESCE(SUM(click_count), 0)
		FROM ads`
	if err := r.db.QueryRowContext(ctx, query).Scan(&a.TotalAds, &a.EnabledAds, &a.TotalViews, &a.TotalClicks); err != nil {
		return nil, sqliteError("ads analytics", err)
	}
	a.AverageCTR = ctr(a.TotalClicks, a.TotalViews)

	topQuery := `
		SELECT ` + adColumns + `
		FROM ads
		ORDER BY CASE WHEN view_count > 0 THEN CAST(click_count AS REAL) / view_count ELSE 0 END DESC,
		         click_count DESC, id DESC
		LIMIT ?`
	top, err := r.queryAds(ctx, "top performing ads", topQuery, topPerformingLimit)
	if err != nil {
		return nil, err
	}
	a.TopPerformingAds = top
	return &a, nil
}
