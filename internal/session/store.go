package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/SergeyBogomolovv/checkout-service/pkg/trm"
)

// Store persists the two opaque session keys per device: the anonymous cart
// identifier and the authenticated customer credential. It is a dumb
// persistence shim; no validation happens here. Clearing the cart id is
// always followed by a cart-changed broadcast, which is the coordinator's
// job, not the store's.
type Store struct {
	db *sqlx.DB
	qb sq.StatementBuilderType
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db: db,
		qb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// CartID returns the stored cart identifier, or "" when none exists.
func (s *Store) CartID(ctx context.Context, deviceID string) (string, error) {
	return s.readKey(ctx, deviceID, "cart_id")
}

func (s *Store) SetCartID(ctx context.Context, deviceID, cartID string) error {
	return s.writeKey(ctx, deviceID, "cart_id", cartID)
}

// Clear drops the cart identifier but keeps the customer credential:
// logging out is a separate action from emptying the cart.
func (s *Store) Clear(ctx context.Context, deviceID string) error {
	query, args := s.qb.Update("checkout_sessions").
		Set("cart_id", nil).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"device_id": deviceID}).
		MustSql()

	if _, err := s.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to clear cart id: %w", err)
	}
	return nil
}

func (s *Store) CustomerToken(ctx context.Context, deviceID string) (string, error) {
	return s.readKey(ctx, deviceID, "customer_token")
}

func (s *Store) SetCustomerToken(ctx context.Context, deviceID, token string) error {
	return s.writeKey(ctx, deviceID, "customer_token", token)
}

func (s *Store) readKey(ctx context.Context, deviceID, column string) (string, error) {
	query, args := s.qb.Select(column).
		From("checkout_sessions").
		Where(sq.Eq{"device_id": deviceID}).
		MustSql()

	var value sql.NullString
	err := s.getContext(ctx, &value, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", column, err)
	}
	if !value.Valid {
		return "", nil
	}
	return value.String, nil
}

func (s *Store) writeKey(ctx context.Context, deviceID, column, value string) error {
	query, args := s.qb.Insert("checkout_sessions").
		Columns("device_id", column, "updated_at").
		Values(deviceID, value, time.Now()).
		Suffix(fmt.Sprintf("ON CONFLICT (device_id) DO UPDATE SET %s = EXCLUDED.%s, updated_at = EXCLUDED.updated_at", column, column)).
		MustSql()

	if _, err := s.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to write %s: %w", column, err)
	}
	return nil
}

func (s *Store) execContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if tx := trm.ExtractTx(ctx); tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	return s.db.ExecContext(ctx, query, args...)
}

func (s *Store) getContext(ctx context.Context, dest any, query string, args ...any) error {
	if tx := trm.ExtractTx(ctx); tx != nil {
		return tx.GetContext(ctx, dest, query, args...)
	}
	return s.db.GetContext(ctx, dest, query, args...)
}
