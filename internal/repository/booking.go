package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/boostmarket/paywebhook/internal/domain"
)

const bookingColumns = `id, order_code, total_amount, status, payment_status, created_at, updated_at`

type BookingRepository struct {
	db *sql.DB
}

func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) GetByOrderCode(ctx context.Context, orderCode string) (*domain.Booking, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE order_code = $1`, orderCode,
	)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByOrderCode: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByOrderCode: %w", err)
	}
	return b, nil
}

// GetByOrderCodeForUpdate locks the booking row for the rest of tx.
func (r *BookingRepository) GetByOrderCodeForUpdate(ctx context.Context, tx *sql.Tx, orderCode string) (*domain.Booking, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE order_code = $1 FOR UPDATE`, orderCode,
	)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByOrderCodeForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByOrderCodeForUpdate: %w", err)
	}
	return b, nil
}

func (r *BookingRepository) UpdatePaymentState(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.BookingStatus, paymentStatus domain.BookingPaymentStatus, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = $1, payment_status = $2, updated_at = $3 WHERE id = $4`,
		status, paymentStatus, now, id,
	)
	if err != nil {
		return fmt.Errorf("UpdatePaymentState: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdatePaymentState: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdatePaymentState: %w", domain.ErrNotFound)
	}
	return nil
}

func scanBooking(s scanner) (*domain.Booking, error) {
	var b domain.Booking
	err := s.Scan(&b.ID, &b.OrderCode, &b.TotalAmount, &b.Status, &b.PaymentStatus, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
