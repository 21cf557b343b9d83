package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Prepaid store (SQLite).
var Migrations = migrate.NewGroup("prepaid")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_prepaid_vouchers",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS prepaid_vouchers (
    id               TEXT PRIMARY KEY,
    member_id        TEXT NOT NULL DEFAULT '',
    template_id      TEXT,
    name             TEXT NOT NULL DEFAULT '',
    balance_amount   INTEGER NOT NULL DEFAULT 0,
    balance_currency TEXT NOT NULL DEFAULT '',
    foc_amount       INTEGER NOT NULL DEFAULT 0,
    foc_currency     TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL DEFAULT 'active',
    version          INTEGER NOT NULL DEFAULT 1,
    remarks          TEXT NOT NULL DEFAULT '',
    created_by       TEXT NOT NULL DEFAULT '',
    handled_by       TEXT NOT NULL DEFAULT '',
    closed_at        TEXT,
    app_id           TEXT NOT NULL DEFAULT '',
    metadata         TEXT NOT NULL DEFAULT '{}',
    created_at       TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at       TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_prepaid_vouchers_member_app ON prepaid_vouchers (member_id, app_id);
CREATE INDEX IF NOT EXISTS idx_prepaid_vouchers_status ON prepaid_vouchers (member_id, app_id, status);
CREATE INDEX IF NOT EXISTS idx_prepaid_vouchers_template ON prepaid_vouchers (template_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS prepaid_vouchers`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_prepaid_voucher_templates",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS prepaid_voucher_templates (
    id             TEXT PRIMARY KEY,
    name           TEXT NOT NULL DEFAULT '',
    price_amount   INTEGER NOT NULL DEFAULT 0,
    price_currency TEXT NOT NULL DEFAULT '',
    foc_amount     INTEGER NOT NULL DEFAULT 0,
    foc_currency   TEXT NOT NULL DEFAULT '',
    app_id         TEXT NOT NULL DEFAULT '',
    created_at     TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at     TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_prepaid_templates_name_app ON prepaid_voucher_templates (name, app_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS prepaid_voucher_templates`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_prepaid_tx_log",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS prepaid_tx_log (
    id                   TEXT PRIMARY KEY,
    voucher_id           TEXT NOT NULL DEFAULT '',
    kind                 TEXT NOT NULL DEFAULT '',
    delta_amount         INTEGER NOT NULL DEFAULT 0,
    delta_currency       TEXT NOT NULL DEFAULT '',
    balance_amount       INTEGER NOT NULL DEFAULT 0,
    balance_currency     TEXT NOT NULL DEFAULT '',
    foc_amount           INTEGER NOT NULL DEFAULT 0,
    foc_currency         TEXT NOT NULL DEFAULT '',
    top_up_amount        INTEGER NOT NULL DEFAULT 0,
    top_up_currency      TEXT NOT NULL DEFAULT '',
    transferred_amount   INTEGER NOT NULL DEFAULT 0,
    transferred_currency TEXT NOT NULL DEFAULT '',
    counterparty_ref     TEXT NOT NULL DEFAULT '',
    created_by           TEXT NOT NULL DEFAULT '',
    handled_by           TEXT NOT NULL DEFAULT '',
    remark               TEXT NOT NULL DEFAULT '',
    logged_at            TEXT NOT NULL DEFAULT (datetime('now')),
    created_at           TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at           TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_prepaid_tx_log_voucher ON prepaid_tx_log (voucher_id, logged_at, id);
CREATE INDEX IF NOT EXISTS idx_prepaid_tx_log_kind ON prepaid_tx_log (voucher_id, kind);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS prepaid_tx_log`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_prepaid_packages",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS prepaid_packages (
    id           TEXT PRIMARY KEY,
    member_id    TEXT NOT NULL DEFAULT '',
    name         TEXT NOT NULL DEFAULT '',
    lines        TEXT NOT NULL DEFAULT '[]',
    customizable INTEGER NOT NULL DEFAULT 0,
    status       TEXT NOT NULL DEFAULT 'active',
    remarks      TEXT NOT NULL DEFAULT '',
    created_by   TEXT NOT NULL DEFAULT '',
    app_id       TEXT NOT NULL DEFAULT '',
    metadata     TEXT NOT NULL DEFAULT '{}',
    created_at   TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_prepaid_packages_member_app ON prepaid_packages (member_id, app_id);
CREATE INDEX IF NOT EXISTS idx_prepaid_packages_status ON prepaid_packages (member_id, app_id, status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS prepaid_packages`)
				return err
			},
		},
	)
}
