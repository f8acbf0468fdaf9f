package migrate

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// sqliteSchema mirrors the goose migrations in sqlite syntax. It backs the
// UseSQLite feature flag and the in-memory test databases.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user','vendor','admin')),
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS listings (
		id TEXT PRIMARY KEY,
		vendor_id TEXT NOT NULL,
		vendor_email TEXT NOT NULL,
		vendor_name TEXT NOT NULL DEFAULT '',
		item_name TEXT NOT NULL,
		market_name TEXT NOT NULL,
		market_description TEXT NOT NULL DEFAULT '',
		item_description TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		price_current NUMERIC NOT NULL CHECK (price_current > 0),
		status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','approved','rejected')),
		rejection_reason TEXT,
		feedback TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		CHECK ((status = 'rejected') = (rejection_reason IS NOT NULL AND feedback IS NOT NULL))
	)`,
	`CREATE TABLE IF NOT EXISTS price_observations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
		observed_on DATE NOT NULL,
		price NUMERIC NOT NULL CHECK (price > 0),
		created_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS advertisements (
		id TEXT PRIMARY KEY,
		vendor_id TEXT NOT NULL,
		vendor_email TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','approved','rejected')),
		rejection_reason TEXT,
		feedback TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		CHECK ((status = 'rejected') = (rejection_reason IS NOT NULL AND feedback IS NOT NULL))
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		purchaser_id TEXT NOT NULL,
		purchaser_email TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		total_price NUMERIC NOT NULL,
		order_date DATETIME NOT NULL,
		decided_at DATETIME,
		decided_by TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS order_lines (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id TEXT NOT NULL,
		name TEXT NOT NULL,
		market_name TEXT NOT NULL,
		image_url TEXT NOT NULL DEFAULT '',
		unit_price NUMERIC NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		line_total NUMERIC NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS watchlist_items (
		id TEXT PRIMARY KEY,
		shopper_id TEXT NOT NULL,
		listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
		item_name TEXT NOT NULL,
		market_name TEXT NOT NULL,
		image_url TEXT NOT NULL DEFAULT '',
		price_at_add NUMERIC NOT NULL,
		created_at DATETIME,
		CONSTRAINT watchlist_items_shopper_listing_key UNIQUE (shopper_id, listing_id)
	)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id TEXT PRIMARY KEY,
		listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
		author_id TEXT NOT NULL,
		author_name TEXT NOT NULL,
		rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
		comment TEXT NOT NULL DEFAULT '',
		created_at DATETIME,
		CONSTRAINT reviews_listing_author_key UNIQUE (listing_id, author_id)
	)`,
	`CREATE TABLE IF NOT EXISTS merchant_requests (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		account_email TEXT NOT NULL,
		shop_name TEXT NOT NULL,
		shop_description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		rejection_reason TEXT,
		feedback TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS merchant_requests_one_pending_idx
		ON merchant_requests (account_id) WHERE status = 'pending'`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload BLOB NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		terminal_at DATETIME
	)`,
}

// ApplySQLite creates every table on a sqlite connection.
func ApplySQLite(ctx context.Context, conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db is required")
	}
	for _, stmt := range sqliteSchema {
		if err := conn.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}
