package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/sharedlogin/internal/domain/model"
	"github.com/ericfisherdev/sharedlogin/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SubscriberStore = (*SubscriberRepo)(nil)

// SubscriberRepo is the SQLite implementation of the SubscriberStore port interface.
// Native subscription lists are stored as a JSON array; legacy encodings are
// stored verbatim so they survive a round trip untouched.
type SubscriberRepo struct {
	db *DB
}

// NewSubscriberRepo creates a new SubscriberRepo backed by the given DB.
func NewSubscriberRepo(db *DB) *SubscriberRepo {
	return &SubscriberRepo{db: db}
}

// Upsert inserts a subscriber or replaces the one with the same ID. A new
// UUID is generated when sub.ID is empty.
func (r *SubscriberRepo) Upsert(ctx context.Context, sub model.Subscriber) (string, error) {
	id := sub.ID
	if id == "" {
		id = uuid.NewString()
	}

	subscriptions, err := encodeSubscriptions(sub.Subscriptions)
	if err != nil {
		return "", fmt.Errorf("encode subscriptions for %q: %w", id, err)
	}

	overrides := sub.ManualOverrides
	if overrides == nil {
		overrides = map[string]string{}
	}
	overridesJSON, err := json.Marshal(overrides)
	if err != nil {
		return "", fmt.Errorf("marshal manual overrides: %w", err)
	}

	purchaseDate := sub.PurchaseDate
	if purchaseDate.IsZero() {
		purchaseDate = time.Now()
	}

	const query = `
		INSERT INTO subscribers (
			id, phone, name, subscriptions, purchase_date, duration_months,
			deleted, is_debtor, is_contacted, manual_overrides
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			phone = excluded.phone,
			name = excluded.name,
			subscriptions = excluded.subscriptions,
			purchase_date = excluded.purchase_date,
			duration_months = excluded.duration_months,
			deleted = excluded.deleted,
			is_debtor = excluded.is_debtor,
			is_contacted = excluded.is_contacted,
			manual_overrides = excluded.manual_overrides
	`
	_, err = r.db.Writer.ExecContext(ctx, query,
		id, sub.Phone, sub.Name, subscriptions, formatTime(purchaseDate), sub.DurationMonths,
		boolToInt(sub.Deleted), boolToInt(sub.Debtor), boolToInt(sub.Contacted), string(overridesJSON),
	)
	if err != nil {
		return "", fmt.Errorf("upsert subscriber %q: %w", id, err)
	}
	return id, nil
}

// Get retrieves a subscriber by ID.
func (r *SubscriberRepo) Get(ctx context.Context, id string) (model.Subscriber, error) {
	const query = `
		SELECT id, phone, name, subscriptions, purchase_date, duration_months,
		       deleted, is_debtor, is_contacted, manual_overrides
		FROM subscribers WHERE id = ?
	`
	sub, err := scanSubscriber(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Subscriber{}, fmt.Errorf("get subscriber %q: %w", id, driven.ErrSubscriberNotFound)
	}
	if err != nil {
		return model.Subscriber{}, fmt.Errorf("get subscriber %q: %w", id, err)
	}
	return sub, nil
}

// List returns all subscribers ordered by phone.
func (r *SubscriberRepo) List(ctx context.Context) ([]model.Subscriber, error) {
	const query = `
		SELECT id, phone, name, subscriptions, purchase_date, duration_months,
		       deleted, is_debtor, is_contacted, manual_overrides
		FROM subscribers ORDER BY phone, rowid
	`
	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	subs := []model.Subscriber{}
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscribers: %w", err)
	}
	return subs, nil
}

// SetDeleted sets or clears the soft-delete flag.
func (r *SubscriberRepo) SetDeleted(ctx context.Context, id string, deleted bool) error {
	const query = `UPDATE subscribers SET deleted = ? WHERE id = ?`
	return r.execOne(ctx, "set deleted on subscriber", id, query, boolToInt(deleted), id)
}

// Purge permanently removes a subscriber.
func (r *SubscriberRepo) Purge(ctx context.Context, id string) error {
	const query = `DELETE FROM subscribers WHERE id = ?`
	return r.execOne(ctx, "purge subscriber", id, query, id)
}

// execOne runs a statement that must touch exactly one subscriber row.
func (r *SubscriberRepo) execOne(ctx context.Context, op, id, query string, args ...any) error {
	result, err := r.db.Writer.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s %q: %w", op, id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %q: %w", op, id, driven.ErrSubscriberNotFound)
	}
	return nil
}

func scanSubscriber(s scanner) (model.Subscriber, error) {
	var sub model.Subscriber
	var subscriptions, purchaseDate, overrides string
	var deleted, debtor, contacted int

	err := s.Scan(
		&sub.ID, &sub.Phone, &sub.Name, &subscriptions, &purchaseDate, &sub.DurationMonths,
		&deleted, &debtor, &contacted, &overrides,
	)
	if err != nil {
		return model.Subscriber{}, err
	}

	sub.Subscriptions = decodeSubscriptions(subscriptions)
	sub.PurchaseDate, err = parseTime(purchaseDate)
	if err != nil {
		return model.Subscriber{}, fmt.Errorf("parse purchase_date for subscriber %q: %w", sub.ID, err)
	}
	sub.Deleted = deleted != 0
	sub.Debtor = debtor != 0
	sub.Contacted = contacted != 0

	if err := json.Unmarshal([]byte(overrides), &sub.ManualOverrides); err != nil {
		return model.Subscriber{}, fmt.Errorf("unmarshal manual overrides for subscriber %q: %w", sub.ID, err)
	}
	return sub, nil
}

// encodeSubscriptions stores native lists as JSON and legacy strings verbatim.
func encodeSubscriptions(field model.SubscriptionField) (string, error) {
	switch field.Kind {
	case model.SubscriptionKindLegacy:
		return field.Legacy, nil
	case model.SubscriptionKindList:
		list := field.List
		if list == nil {
			list = []string{}
		}
		data, err := json.Marshal(list)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return "[]", nil
	}
}

// decodeSubscriptions treats a JSON array of strings as the native encoding
// and anything else as a legacy string.
func decodeSubscriptions(raw string) model.SubscriptionField {
	if strings.HasPrefix(strings.TrimSpace(raw), "[") {
		var list []string
		if err := json.Unmarshal([]byte(raw), &list); err == nil {
			return model.NewSubscriptionList(list)
		}
	}
	return model.NewLegacySubscriptions(raw)
}
