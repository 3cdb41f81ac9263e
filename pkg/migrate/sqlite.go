package migrate

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// SQLiteSchema mirrors the goose migrations with sqlite column types. Money is
// TEXT so decimals round-trip exactly; tags hold the postgres array literal.
var SQLiteSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		vendor_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price TEXT NOT NULL,
		resolution TEXT NOT NULL,
		fps INTEGER NOT NULL,
		codec TEXT NOT NULL,
		duration INTEGER NOT NULL DEFAULT 0,
		tags TEXT NOT NULL DEFAULT '{}',
		is_exclusive BOOLEAN NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		rejection_reason TEXT,
		reviewed_by TEXT,
		reviewed_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS product_assets (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		s3_key_original TEXT NOT NULL,
		s3_key_preview TEXT NOT NULL,
		s3_key_thumb TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		buyer_id TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'usd',
		status TEXT NOT NULL DEFAULT 'pending',
		stripe_payment_intent_id TEXT,
		failure_reason TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_payment_intent ON orders (stripe_payment_intent_id) WHERE stripe_payment_intent_id IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id TEXT NOT NULL,
		vendor_id TEXT NOT NULL,
		title TEXT NOT NULL,
		price_at_purchase TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS commissions (
		id TEXT PRIMARY KEY,
		vendor_id TEXT NOT NULL,
		order_id TEXT NOT NULL,
		order_item_id TEXT NOT NULL UNIQUE,
		amount_platform TEXT NOT NULL,
		amount_vendor TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		paid_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload BLOB NOT NULL,
		created_at TIMESTAMP NOT NULL,
		published_at TIMESTAMP,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL UNIQUE,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json BLOB NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
}

// ApplySQLite creates any missing tables. It is idempotent.
func ApplySQLite(ctx context.Context, conn *gorm.DB) error {
	for _, stmt := range SQLiteSchema {
		if err := conn.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}
