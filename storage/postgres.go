package storage

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"immo_scrooper/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const pgErrUniqueViolation = "23505"

// PostgresListingStore keeps one row per listing URL. Columns that workers
// mutate are authoritative over the JSON document in data.
type PostgresListingStore struct {
	pool *pgxpool.Pool
}

var _ ListingStore = (*PostgresListingStore)(nil)

func NewPostgresListingStore(ctx context.Context, connString string) (*PostgresListingStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresListingStore{pool: pool}, nil
}

func (s *PostgresListingStore) Close() {
	s.pool.Close()
}

// Migrate applies the embedded schema files in name order. Every statement
// is idempotent.
func (s *PostgresListingStore) Migrate(ctx context.Context) error {
	files, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, file := range files {
		sql, err := migrationsFS.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read %s: %w", file, err)
		}
		if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply %s: %w", file, err)
		}
	}
	return nil
}

const listingColumns = `id, data, score, sent_to_notification, image_key, created_at, updated_at`

func (s *PostgresListingStore) FindByURL(ctx context.Context, url string) (*models.NormalizedListing, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE url = $1`, url)
	l, err := scanListing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find listing by url: %w", err)
	}
	return l, nil
}

func (s *PostgresListingStore) Insert(ctx context.Context, l *models.NormalizedListing) error {
	if err := validateListing(l); err != nil {
		return err
	}
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshal listing: %w", err)
	}

	query := `
		INSERT INTO listings (
			id, url, source, fingerprint, district, price_total, area_m2, score,
			sent_to_notification, image_url, image_key, transit_tier, school_tier, data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at`

	err = s.pool.QueryRow(ctx, query,
		l.ID, l.URL, l.Source, nullString(l.Fingerprint), l.District, l.PriceTotal, l.AreaM2, l.Score,
		l.SentToNotification, l.ImageURL, l.ImageKey, tierOf(l.Transit), tierOf(l.School), data,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

func (s *PostgresListingStore) Replace(ctx context.Context, id uuid.UUID, l *models.NormalizedListing) error {
	if err := validateListing(l); err != nil {
		return err
	}
	l.ID = id
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshal listing: %w", err)
	}

	query := `
		UPDATE listings SET
			url = $2, source = $3, fingerprint = $4, district = $5, price_total = $6,
			area_m2 = $7, score = $8, sent_to_notification = $9, image_url = $10,
			image_key = COALESCE($11, image_key), transit_tier = $12, school_tier = $13,
			data = $14, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`

	err = s.pool.QueryRow(ctx, query,
		id, l.URL, l.Source, nullString(l.Fingerprint), l.District, l.PriceTotal, l.AreaM2, l.Score,
		l.SentToNotification, l.ImageURL, l.ImageKey, tierOf(l.Transit), tierOf(l.School), data,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("replace listing: %w", err)
	}
	return nil
}

func (s *PostgresListingStore) ListUnsent(ctx context.Context, minScore float64, limit int) ([]*models.NormalizedListing, error) {
	return s.query(ctx, `
		SELECT `+listingColumns+` FROM listings
		WHERE sent_to_notification = FALSE AND score >= $1
		ORDER BY score DESC, url
		LIMIT $2`, minScore, limitOrAll(limit))
}

func (s *PostgresListingStore) MarkSent(ctx context.Context, id uuid.UUID) error {
	return s.exec(ctx, `
		UPDATE listings SET sent_to_notification = TRUE, updated_at = NOW() WHERE id = $1`, id)
}

func (s *PostgresListingStore) ListMissingProximity(ctx context.Context, limit int) ([]*models.NormalizedListing, error) {
	return s.query(ctx, `
		SELECT `+listingColumns+` FROM listings
		WHERE transit_tier IS NULL OR school_tier IS NULL OR transit_tier = $1 OR school_tier = $1
		ORDER BY created_at
		LIMIT $2`, int(models.TierHubHeuristic), limitOrAll(limit))
}

// UpdateProximity rewrites the proximity inside the stored document under a
// row lock so concurrent replaces are not lost.
func (s *PostgresListingStore) UpdateProximity(ctx context.Context, id uuid.UUID, coords *models.Coordinates, p models.Proximity) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var data []byte
	if err := tx.QueryRow(ctx, `SELECT data FROM listings WHERE id = $1 FOR UPDATE`, id).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("lock listing: %w", err)
	}

	var l models.NormalizedListing
	if err := json.Unmarshal(data, &l); err != nil {
		return fmt.Errorf("decode listing: %w", err)
	}
	if coords != nil {
		l.Coordinates = coords
	}
	l.Transit = p.Transit
	l.School = p.School

	updated, err := json.Marshal(&l)
	if err != nil {
		return fmt.Errorf("marshal listing: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE listings SET data = $2, transit_tier = $3, school_tier = $4, updated_at = NOW()
		WHERE id = $1`, id, updated, tierOf(l.Transit), tierOf(l.School)); err != nil {
		return fmt.Errorf("update proximity: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresListingStore) ListPendingImages(ctx context.Context, limit int) ([]*models.NormalizedListing, error) {
	return s.query(ctx, `
		SELECT `+listingColumns+` FROM listings
		WHERE image_url IS NOT NULL AND image_key IS NULL
		ORDER BY created_at
		LIMIT $1`, limitOrAll(limit))
}

func (s *PostgresListingStore) SetImageKey(ctx context.Context, id uuid.UUID, key string) error {
	return s.exec(ctx, `UPDATE listings SET image_key = $2, updated_at = NOW() WHERE id = $1`, id, key)
}

func (s *PostgresListingStore) ListRecent(ctx context.Context, limit int) ([]*models.NormalizedListing, error) {
	return s.query(ctx, `
		SELECT `+listingColumns+` FROM listings ORDER BY updated_at DESC LIMIT $1`, limitOrAll(limit))
}

func (s *PostgresListingStore) exec(ctx context.Context, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresListingStore) query(ctx context.Context, query string, args ...any) ([]*models.NormalizedListing, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []*models.NormalizedListing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func scanListing(row pgx.Row) (*models.NormalizedListing, error) {
	var (
		id        uuid.UUID
		data      []byte
		score     *float64
		sent      bool
		imageKey  *string
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&id, &data, &score, &sent, &imageKey, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var l models.NormalizedListing
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decode listing %s: %w", id, err)
	}
	l.ID = id
	l.Score = score
	l.SentToNotification = sent
	l.ImageKey = imageKey
	l.CreatedAt = createdAt
	l.UpdatedAt = updatedAt
	return &l, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}
	return false
}

func tierOf(p *models.ProximityResult) *int {
	if p == nil {
		return nil
	}
	t := int(p.Tier)
	return &t
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// limitOrAll maps a non-positive limit to NULL, which Postgres treats as
// LIMIT ALL.
func limitOrAll(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}
