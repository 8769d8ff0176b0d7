// Package postgres is the system-of-record shop source backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/couchcryptid/shop-discovery/internal/domain"
)

// Schema creates the shops table used by ShopStore.
const Schema = `CREATE TABLE IF NOT EXISTS shops (
	id           TEXT PRIMARY KEY,
	place_id     TEXT,
	name         TEXT NOT NULL,
	category     TEXT NOT NULL DEFAULT '',
	city         TEXT NOT NULL DEFAULT '',
	lat          DOUBLE PRECISION,
	lng          DOUBLE PRECISION,
	rating       DOUBLE PRECISION NOT NULL DEFAULT 0,
	review_count INTEGER NOT NULL DEFAULT 0,
	is_paid      BOOLEAN NOT NULL DEFAULT FALSE,
	is_featured  BOOLEAN NOT NULL DEFAULT FALSE,
	active       BOOLEAN NOT NULL DEFAULT TRUE
)`

const selectColumns = `id, place_id, name, category, city, lat, lng, rating, review_count, is_paid, is_featured`

// Great-circle distance in km from ($1, $2); NULL when the shop has no position.
const distanceExpr = `6371 * 2 * ASIN(SQRT(` +
	`POWER(SIN(RADIANS(lat - $1) / 2), 2) + ` +
	`COS(RADIANS($1)) * COS(RADIANS(lat)) * POWER(SIN(RADIANS(lng - $2) / 2), 2)))`

// Open connects to PostgreSQL and applies pool settings.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// ShopStore implements domain.ShopProvider over the shops table.
type ShopStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewShopStore(db *sql.DB, logger *slog.Logger) *ShopStore {
	return &ShopStore{db: db, logger: logger}
}

// EnsureSchema creates the shops table if it does not exist.
func (s *ShopStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// FetchShops returns one page of active shops. With a coordinate the page is
// ordered nearest first and each record carries its distance.
func (s *ShopStore) FetchShops(ctx context.Context, q domain.ShopQuery) (domain.ShopPage, error) {
	query, args := buildQuery(q)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.ShopPage{}, fmt.Errorf("query shops: %w", err)
	}
	defer rows.Close()

	var (
		shops []domain.ShopRecord
		total int
	)
	for rows.Next() {
		shop, rowTotal, err := scanShop(rows)
		if err != nil {
			return domain.ShopPage{}, err
		}
		total = rowTotal
		shops = append(shops, shop)
	}
	if err := rows.Err(); err != nil {
		return domain.ShopPage{}, fmt.Errorf("iterate shops: %w", err)
	}

	page := domain.ShopPage{Shops: shops}
	// The window count rides on each row, so an empty page past the end
	// knows nothing about the total.
	if len(shops) > 0 {
		page.TotalAvailable = &total
	}
	s.logger.Debug("postgres page fetched", "offset", q.Offset, "count", len(shops))
	return page, nil
}

// CheckReadiness pings the database.
func (s *ShopStore) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertShops upserts records keyed by PrimaryID in a single transaction.
func (s *ShopStore) InsertShops(ctx context.Context, shops []domain.ShopRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO shops (`+selectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			place_id = EXCLUDED.place_id, name = EXCLUDED.name, category = EXCLUDED.category,
			city = EXCLUDED.city, lat = EXCLUDED.lat, lng = EXCLUDED.lng, rating = EXCLUDED.rating,
			review_count = EXCLUDED.review_count, is_paid = EXCLUDED.is_paid, is_featured = EXCLUDED.is_featured`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range shops {
		shop := &shops[i]
		if shop.PrimaryID == "" {
			return fmt.Errorf("shop %q has no id", shop.DisplayName)
		}
		var lat, lng sql.NullFloat64
		if shop.Coordinates != nil {
			lat = sql.NullFloat64{Float64: shop.Coordinates.Lat, Valid: true}
			lng = sql.NullFloat64{Float64: shop.Coordinates.Lng, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			shop.PrimaryID, nullString(shop.ExternalID), shop.DisplayName, shop.Category, shop.Locality,
			lat, lng, shop.Rating, shop.ReviewCount, shop.IsPaid, shop.IsFeatured,
		); err != nil {
			return fmt.Errorf("insert shop %s: %w", shop.PrimaryID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func buildQuery(q domain.ShopQuery) (string, []any) {
	var (
		args  []any
		where = []string{"active"}
		dist  = "NULL::DOUBLE PRECISION"
		order = "name, id"
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if q.Coordinate != nil {
		arg(q.Coordinate.Lat)
		arg(q.Coordinate.Lng)
		dist = distanceExpr
		order = "distance_km NULLS LAST, id"
	}
	if q.Category != "" && q.Category != domain.AllCategories {
		where = append(where, "category = "+arg(q.Category))
	}
	if q.Locality != "" {
		where = append(where, "LOWER(city) = LOWER("+arg(q.Locality)+")")
	}
	if q.SearchText != "" {
		p := arg("%" + escapeLike(q.SearchText) + "%")
		where = append(where, "(name ILIKE "+p+" OR category ILIKE "+p+")")
	}

	limit := q.PageSize
	if limit <= 0 {
		limit = 15
	}
	var b strings.Builder
	b.WriteString("SELECT " + selectColumns + ", " + dist + " AS distance_km, COUNT(*) OVER () AS total")
	b.WriteString(" FROM shops WHERE " + strings.Join(where, " AND "))
	b.WriteString(" ORDER BY " + order)
	b.WriteString(" LIMIT " + arg(limit) + " OFFSET " + arg(max(q.Offset, 0)))
	return b.String(), args
}

func scanShop(rows *sql.Rows) (domain.ShopRecord, int, error) {
	var (
		shop                 domain.ShopRecord
		id, placeID, city    sql.NullString
		lat, lng, distanceKm sql.NullFloat64
		total                int
	)
	if err := rows.Scan(&id, &placeID, &shop.DisplayName, &shop.Category, &city,
		&lat, &lng, &shop.Rating, &shop.ReviewCount, &shop.IsPaid, &shop.IsFeatured,
		&distanceKm, &total); err != nil {
		return domain.ShopRecord{}, 0, fmt.Errorf("scan shop: %w", err)
	}
	shop.PrimaryID = id.String
	shop.ExternalID = placeID.String
	shop.Locality = city.String
	if lat.Valid && lng.Valid {
		shop.Coordinates = &domain.Coordinate{Lat: lat.Float64, Lng: lng.Float64}
	}
	if distanceKm.Valid {
		shop.PrecomputedDistanceKm = domain.Float64(distanceKm.Float64)
	}
	return shop, total, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
