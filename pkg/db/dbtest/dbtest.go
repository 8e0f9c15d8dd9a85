// Package dbtest opens throwaway in-memory databases carrying the service
// schema, for repository and service tests.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var seq atomic.Int64

var schema = []string{
	`CREATE TABLE organizations (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		legal_name TEXT,
		display_name TEXT,
		email TEXT,
		website TEXT,
		description TEXT,
		logo_url TEXT,
		phone TEXT,
		address TEXT,
		stripe_customer_id TEXT,
		stripe_account_id TEXT UNIQUE,
		stripe_onboarding_complete BOOLEAN NOT NULL DEFAULT FALSE,
		stripe_account_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		stripe_account_status TEXT,
		subscription_status TEXT,
		subscription_plan TEXT,
		terms_of_service_url TEXT,
		privacy_policy_url TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		organization_id TEXT REFERENCES organizations (id) ON DELETE SET NULL,
		email TEXT NOT NULL,
		first_name TEXT,
		last_name TEXT,
		avatar_url TEXT,
		role TEXT NOT NULL DEFAULT 'member'
			CHECK (role IN ('super_admin', 'owner', 'admin', 'editor', 'member', 'viewer')),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		last_login_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_users_one_owner_per_org ON users (organization_id) WHERE role = 'owner'`,
	`CREATE TABLE widgets (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL UNIQUE REFERENCES organizations (id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		description TEXT,
		config TEXT NOT NULL DEFAULT '{}',
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE widget_themes (
		widget_id TEXT PRIMARY KEY REFERENCES widgets (id) ON DELETE CASCADE,
		primary_color TEXT NOT NULL DEFAULT '#3b82f6',
		secondary_color TEXT NOT NULL DEFAULT '#64748b',
		background_color TEXT NOT NULL DEFAULT '#ffffff',
		text_color TEXT NOT NULL DEFAULT '#0f172a',
		font_family TEXT NOT NULL DEFAULT 'Inter',
		font_size INTEGER NOT NULL DEFAULT 16,
		border_radius INTEGER NOT NULL DEFAULT 8,
		border_width INTEGER NOT NULL DEFAULT 1,
		border_color TEXT NOT NULL DEFAULT '#e2e8f0',
		custom_css TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE causes (
		id TEXT PRIMARY KEY,
		widget_id TEXT NOT NULL REFERENCES widgets (id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		description TEXT,
		image_url TEXT,
		goal_amount INTEGER,
		raised_amount INTEGER NOT NULL DEFAULT 0 CHECK (raised_amount >= 0),
		suggested_amounts TEXT NOT NULL DEFAULT '[]',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE donations (
		id TEXT PRIMARY KEY,
		widget_id TEXT NOT NULL REFERENCES widgets (id),
		cause_id TEXT REFERENCES causes (id) ON DELETE SET NULL,
		organization_id TEXT NOT NULL REFERENCES organizations (id),
		donor_email TEXT NOT NULL,
		donor_name TEXT,
		is_anonymous BOOLEAN NOT NULL DEFAULT FALSE,
		donor_message TEXT,
		amount INTEGER NOT NULL CHECK (amount > 0),
		currency TEXT NOT NULL DEFAULT 'usd',
		stripe_payment_intent_id TEXT UNIQUE,
		stripe_charge_id TEXT,
		status TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'succeeded', 'failed', 'refunded')),
		processed_at DATETIME,
		error_message TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE invoices (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL REFERENCES organizations (id) ON DELETE CASCADE,
		stripe_invoice_id TEXT NOT NULL UNIQUE,
		stripe_subscription_id TEXT,
		invoice_number TEXT,
		amount INTEGER NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT 'usd',
		status TEXT NOT NULL,
		due_date DATETIME,
		paid_at DATETIME,
		pdf_url TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE webhook_events (
		id INTEGER PRIMARY KEY,
		provider TEXT NOT NULL,
		provider_event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload TEXT,
		received_at DATETIME NOT NULL,
		processed_at DATETIME,
		UNIQUE (provider, provider_event_id)
	)`,
	`CREATE TABLE audit_logs (
		id INTEGER PRIMARY KEY,
		organization_id TEXT,
		actor_type TEXT NOT NULL,
		actor_id TEXT,
		action TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id TEXT,
		metadata TEXT,
		created_at DATETIME NOT NULL
	)`,
}

// Open returns a fresh in-memory database with every table created and
// foreign keys enforced. The pool holds a single connection so concurrent
// tests serialize on it instead of tripping shared-cache locks.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", seq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return conn
}
