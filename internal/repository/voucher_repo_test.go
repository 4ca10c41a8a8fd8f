package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestVoucherRepository_GetSeckillVoucher(t *testing.T) {
	db, mock := setupMockDB(t)

	repo := NewVoucherRepository(db)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"voucher_id", "stock", "begin_time", "end_time"}).
		AddRow(10, 100,
			time.Date(2026, time.August, 1, 10, 0, 0, 0, time.UTC),
			time.Date(2026, time.September, 30, 10, 0, 0, 0, time.UTC))

	mock.ExpectQuery("SELECT \\* FROM `seckill_vouchers` WHERE voucher_id = \\? ORDER BY `seckill_vouchers`.`voucher_id` LIMIT \\?").
		WithArgs(uint64(10), 1).
		WillReturnRows(rows)

	sv, err := repo.GetSeckillVoucher(ctx, 10)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if sv == nil || sv.VoucherID != 10 || sv.Stock != 100 {
		t.Errorf("Unexpected seckill voucher: %+v", sv)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestVoucherRepository_GetSeckillVoucher_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)

	repo := NewVoucherRepository(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT \\* FROM `seckill_vouchers` WHERE voucher_id = \\?").
		WithArgs(uint64(99), 1).
		WillReturnRows(sqlmock.NewRows([]string{"voucher_id"}))

	_, err := repo.GetSeckillVoucher(ctx, 99)
	if !errors.Is(err, ErrVoucherNotFound) {
		t.Errorf("Expected ErrVoucherNotFound, got %v", err)
	}
}

func TestVoucherRepository_DecrementStock(t *testing.T) {
	db, mock := setupMockDB(t)

	repo := NewVoucherRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `seckill_vouchers` SET `stock`=stock - \\? WHERE voucher_id = \\? AND stock > 0").
		WithArgs(1, uint64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := repo.DecrementStock(ctx, 10)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if !ok {
		t.Error("Expected decrement to report success")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestVoucherRepository_DecrementStock_Exhausted(t *testing.T) {
	db, mock := setupMockDB(t)

	repo := NewVoucherRepository(db)
	ctx := context.Background()

	// No row matches once stock reaches zero.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `seckill_vouchers` SET `stock`=stock - \\? WHERE voucher_id = \\? AND stock > 0").
		WithArgs(1, uint64(10)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ok, err := repo.DecrementStock(ctx, 10)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if ok {
		t.Error("Expected decrement to report exhaustion")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestVoucherRepository_Interface(t *testing.T) {
	db, _ := setupMockDB(t)

	var _ VoucherRepository = NewVoucherRepository(db)
}
