package ads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the single source of truth for ad records and their counters.
type Store interface {
	Migrate(ctx context.Context) error
	Create(ctx context.Context, req CreateAdRequest) (*Ad, error)
	GetByID(ctx context.Context, id int64) (*Ad, error)
	List(ctx context.Context, filter ListFilter) ([]Ad, int, error)
	// ListByPosition returns the enabled ads of a slot, newest first.
	// Activation windows are not applied here; see IsEligible.
	ListByPosition(ctx context.Context, pos Position) ([]Ad, error)
	ListEnabled(ctx context.Context) ([]Ad, error)
	ListIDs(ctx context.Context) ([]int64, error)
	Update(ctx context.Context, id int64, req UpdateAdRequest) (*Ad, error)
	ToggleStatus(ctx context.Context, id int64) (*Ad, error)
	// Delete removes the record and returns it so the caller can release its banner.
	Delete(ctx context.Context, id int64) (*Ad, error)
	IncrementViews(ctx context.Context, id int64, delta int64) error
	IncrementClicks(ctx context.Context, id int64, delta int64) error
	Analytics(ctx context.Context) (*Analytics, error)
}

const topPerformingLimit = 5

const pgSchema = `
CREATE TABLE IF NOT EXISTS ads (
	id               BIGSERIAL PRIMARY KEY,
	title            TEXT NOT NULL,
	body_text        TEXT NOT NULL,
	destination_link TEXT NOT NULL,
	banner_image_ref TEXT NOT NULL,
	position         TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'active',
	is_active        BOOLEAN NOT NULL DEFAULT TRUE,
	start_date       TIMESTAMPTZ NULL,
	end_date         TIMESTAMPTZ NULL,
	view_count       BIGINT NOT NULL DEFAULT 0,
	click_count      BIGINT NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ads_position_enabled ON ads (position, status, is_active);
`

const adColumns = `id, title, body_text, destination_link, banner_image_ref, position, status,
	is_active, start_date, end_date, view_count, click_count, created_at, updated_at`

type Repository struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewRepository(db *pgxpool.Pool) Store {
	return &Repository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// pgError maps driver failures onto the package errors. Errors reported by
// the server are query failures; anything else means the database could not
// be reached.
func pgError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return unavailable(op, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPgAd(row rowScanner) (Ad, error) {
	var (
		ad               Ad
		position, status string
	)
	err := row.Scan(
		&ad.ID, &ad.Title, &ad.BodyText, &ad.DestinationLink, &ad.BannerImageRef,
		&position, &status, &ad.IsActive, &ad.StartDate, &ad.EndDate,
		&ad.ViewCount, &ad.ClickCount, &ad.CreatedAt, &ad.UpdatedAt,
	)
	ad.Position = Position(position)
	ad.Status = Status(status)
	return ad, err
}

func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, pgSchema); err != nil {
		return pgError("migrate ads", err)
	}
	return nil
}

// Create inserts a new ad
func (r *Repository) Create(ctx context.Context, req CreateAdRequest) (*Ad, error) {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING ` + adColumns

	ad, err := scanPgAd(r.db.QueryRow(ctx, query,
		req.Title, req.BodyText, req.DestinationLink, req.BannerImageRef,
		string(req.Position), string(req.Status), req.IsActive,
		req.StartDate, req.EndDate, createdAt,
	))
	if err != nil {
		return nil, pgError("create ad", err)
	}
	return &ad, nil
}

// GetByID retrieves a single ad by its ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*Ad, error) {
	query := `SELECT ` + adColumns + ` FROM ads WHERE id = $1`

	ad, err := scanPgAd(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, pgError("get ad", err)
	}
	return &ad, nil
}

// List returns a page of ads for the admin dashboard along with the total count
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Ad, int, error) {
	var pos *string
	if filter.Position != nil {
		p := string(*filter.Position)
		pos = &p
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM ads WHERE ($1::text IS NULL OR position = $1)`
	if err := r.db.QueryRow(ctx, countQuery, pos).Scan(&total); err != nil {
		return nil, 0, pgError("count ads", err)
	}

	query := `
		SELECT ` + adColumns + `
		FROM ads
		WHERE ($1::text IS NULL OR position = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	list, err := r.queryAds(ctx, "list ads", query, pos, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *Repository) ListByPosition(ctx context.Context, pos Position) ([]Ad, error) {
	query := `
		SELECT ` + adColumns + `
		FROM ads
		WHERE position = $1 AND status = 'active' AND is_active = TRUE
		ORDER BY created_at DESC, id DESC`

	return r.queryAds(ctx, "list ads by position", query, string(pos))
}

func (r *Repository) ListEnabled(ctx context.Context) ([]Ad, error) {
	query := `
		SELECT ` + adColumns + `
		FROM ads
		WHERE status = 'active' AND is_active = TRUE
		ORDER BY created_at DESC, id DESC`

	return r.queryAds(ctx, "list enabled ads", query)
}

func (r *Repository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM ads`)
	if err != nil {
		return nil, pgError("list ad ids", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, pgError("list ad ids", err)
	}
	return ids, nil
}

func (r *Repository) queryAds(ctx context.Context, op, query string, args ...any) ([]Ad, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, pgError(op, err)
	}
	defer rows.Close()

	list := []Ad{}
	for rows.Next() {
		ad, err := scanPgAd(rows)
		if err != nil {
			return nil, pgError(op, err)
		}
		list = append(list, ad)
	}
	if err := rows.Err(); err != nil {
		return nil, pgError(op, err)
	}
	return list, nil
}

// Update applies a partial update inside a transaction so the combined
// activation window can be checked against the stored row.
func (r *Repository) Update(ctx context.Context, id int64, req UpdateAdRequest) (*Ad, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, pgError("begin update", err)
	}
	defer tx.Rollback(ctx)

	current, err := scanPgAd(tx.QueryRow(ctx, `SELECT `+adColumns+` FROM ads WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, pgError("load ad for update", err)
	}
	next := req.Apply(current)
	if err := validateWindow(next.StartDate, next.EndDate); err != nil {
		return nil, err
	}

	query := `
		UPDATE ads
		SET title = $2, body_text = $3, destination_link = $4, banner_image_ref = $5,
		    position = $6, status = $7, is_active = $8, start_date = $9, end_date = $10,
		    updated_at = $11
		WHERE id = $1
		RETURNING ` + adColumns

	ad, err := scanPgAd(tx.QueryRow(ctx, query, id,
		next.Title, next.BodyText, next.DestinationLink, next.BannerImageRef,
		string(next.Position), string(next.Status), next.IsActive,
		next.StartDate, next.EndDate, r.now(),
	))
	if err != nil {
		return nil, pgError("update ad", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, pgError("commit update", err)
	}
	return &ad, nil
}

// ToggleStatus flips the status flag between active and inactive
func (r *Repository) ToggleStatus(ctx context.Context, id int64) (*Ad, error) {
	query := `
		UPDATE ads
		SET status = CASE WHEN status = 'active' THEN 'inactive' ELSE 'active' END,
		    updated_at = $2
		WHERE id = $1
		RETURNING ` + adColumns

	ad, err := scanPgAd(r.db.QueryRow(ctx, query, id, r.now()))
	if err != nil {
		return nil, pgError("toggle ad status", err)
	}
	return &ad, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) (*Ad, error) {
	query := `DELETE FROM ads WHERE id = $1 RETURNING ` + adColumns

	ad, err := scanPgAd(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, pgError("delete ad", err)
	}
	return &ad, nil
}

func (r *Repository) IncrementViews(ctx context.Context, id int64, delta int64) error {
	return r.increment(ctx, "view_count", id, delta)
}

func (r *Repository) IncrementClicks(ctx context.Context, id int64, delta int64) error {
	return r.increment(ctx, "click_count", id, delta)
}

// increment is a single atomic UPDATE so concurrent callers never lose updates.
func (r *Repository) increment(ctx context.Context, column string, id int64, delta int64) error {
	if delta <= 0 {
		return nil
	}
	query := fmt.Sprintf(`UPDATE ads SET %s = %s + $2 WHERE id = $1`, column, column)

	result, err := r.db.Exec(ctx, query, id, delta)
	if err != nil {
		return pgError("increment "+column, err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Analytics returns aggregate counters and the best performing ads by CTR
func (r *Repository) Analytics(ctx context.Context) (*Analytics, error) {
	var a Analytics
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'active' AND is_active = TRUE),
		       COALESCE(SUM(view_count), 0),
		       COALESCE(SUM(click_count), 0)
		FROM ads`
	if err := r.db.QueryRow(ctx, query).Scan(&a.TotalAds, &a.EnabledAds, &a.TotalViews, &a.TotalClicks); err != nil {
		return nil, pgError("ads analytics", err)
	}
	a.AverageCTR = ctr(a.TotalClicks, a.TotalViews)

	topQuery := `
		SELECT ` + adColumns + `
		FROM ads
		ORDER BY CASE WHEN view_count > 0 THEN click_count::float / view_count ELSE 0 END DESC,
		         click_count DESC, id DESC
		LIMIT $1`
	top, err := r.queryAds(ctx, "top performing ads", topQuery, topPerformingLimit)
	if err != nil {
		return nil, err
	}
	a.TopPerformingAds = top
	return &a, nil
}

// ctr is the click-through rate as a percentage.
func ctr(clicks, views int64) float64 {
	if views == 0 {
		return 0
	}
	return float64(clicks) / float64(views) * 100
}
