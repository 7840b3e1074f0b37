package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/boostmarket/paywebhook/internal/domain"
)

const paymentColumns = `id, booking_id, amount, method, transaction_id, status, paid_at, created_at`

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// CreateIfAbsent inserts the payment unless one already exists for
// (method, transaction_id). It returns the stored row, which is the existing
// one when nothing was written, and reports whether a row was written.
func (r *PaymentRepository) CreateIfAbsent(ctx context.Context, tx *sql.Tx, payment *domain.Payment) (*domain.Payment, bool, error) {
	row := tx.QueryRowContext(ctx,
		`INSERT INTO payments (
			id, booking_id, amount, method, transaction_id, status, paid_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (method, transaction_id) DO NOTHING
		RETURNING `+paymentColumns,
		payment.ID, payment.BookingID, payment.Amount, payment.Method, payment.TransactionID,
		payment.Status, payment.PaidAt, payment.CreatedAt,
	)
	created, err := scanPayment(row)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("CreateIfAbsent: %w", err)
	}

	// ON CONFLICT waits for the conflicting insert to commit, so the row is visible here.
	row = tx.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE method = $1 AND transaction_id = $2`,
		payment.Method, payment.TransactionID,
	)
	existing, err := scanPayment(row)
	if err != nil {
		return nil, false, fmt.Errorf("CreateIfAbsent: existing: %w", err)
	}
	return existing, false, nil
}

func (r *PaymentRepository) GetByTransactionID(ctx context.Context, method domain.Provider, transactionID string) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE method = $1 AND transaction_id = $2`,
		method, transactionID,
	)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByTransactionID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByTransactionID: %w", err)
	}
	return p, nil
}

func (r *PaymentRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE booking_id = $1 ORDER BY created_at`, bookingID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByBooking: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByBooking: scan: %w", err)
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByBooking: rows: %w", err)
	}
	return payments, nil
}

func scanPayment(s scanner) (*domain.Payment, error) {
	var p domain.Payment
	err := s.Scan(&p.ID, &p.BookingID, &p.Amount, &p.Method, &p.TransactionID, &p.Status, &p.PaidAt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
