package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

func (d *Database) GetFingerprints(ctx context.Context) (map[string]string, error) {
	query := "select feed_id, entry_url from fingerprints"

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"operation", "GetFingerprints")
		}
	}()

	fingerprints := make(map[string]string)
	for rows.Next() {
		var feedID, entryURL string
		if err = rows.Scan(&feedID, &entryURL); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		fingerprints[feedID] = entryURL
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return fingerprints, nil
}

// ReplaceFingerprints rewrites the whole fingerprint table in one
// transaction so a flush is all-or-nothing.
func (d *Database) ReplaceFingerprints(ctx context.Context, fingerprints map[string]string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil &&
			!errors.Is(rollbackErr, sql.ErrTxDone) {
			d.log.ErrorContext(ctx, "Failed to rollback transaction",
				"error", rollbackErr,
				"operation", "ReplaceFingerprints")
		}
	}()

	if _, err = tx.ExecContext(ctx, "delete from fingerprints"); err != nil {
		return fmt.Errorf("clear fingerprints: %w", err)
	}

	query := "insert into fingerprints (feed_id, entry_url) values (?, ?)"
	for feedID, entryURL := range fingerprints {
		if _, err = tx.ExecContext(ctx, query, feedID, entryURL); err != nil {
			return fmt.Errorf("insert fingerprint: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func (d *Database) GetWebhooks(ctx context.Context) (map[string]string, error) {
	query := "select hook_key, webhook_id from webhooks"

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"operation", "GetWebhooks")
		}
	}()

	hooks := make(map[string]string)
	for rows.Next() {
		var hookKey, webhookID string
		if err = rows.Scan(&hookKey, &webhookID); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		hooks[hookKey] = webhookID
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return hooks, nil
}

func (d *Database) UpsertWebhook(ctx context.Context, hookKey string, webhookID string) error {
	hookKey = strings.TrimSpace(hookKey)
	if hookKey == "" {
		return errors.New("hook key is empty")
	}

	webhookID = strings.TrimSpace(webhookID)
	if webhookID == "" {
		return errors.New("webhook ID is empty")
	}

	query := `insert into webhooks (hook_key, webhook_id)
	values (?, ?)
	on conflict (hook_key) do update
	set webhook_id = excluded.webhook_id`

	_, err := d.db.ExecContext(ctx, query, hookKey, webhookID)

	return err
}
