package order

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"flashsale/internal/model"
	"flashsale/internal/repository"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open gorm DB: %v", err)
	}

	t.Cleanup(func() {
		db, _ := gormDB.DB()
		db.Close()
	})

	return gormDB, mock
}

func newTestService(db *gorm.DB) OrderService {
	return NewOrderService(db, repository.NewOrderRepository(db), repository.NewVoucherRepository(db))
}

func TestCreateVoucherOrder_Fulfills(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := newTestService(db)
	ctx := context.Background()

	msg := &model.OrderMessage{
		OrderID:   185637588608352257,
		UserID:    1,
		VoucherID: 10,
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `voucher_orders` WHERE user_id = \\? AND voucher_id = \\?").
		WithArgs(msg.UserID, msg.VoucherID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("UPDATE `seckill_vouchers` SET `stock`=stock - \\? WHERE voucher_id = \\? AND stock > 0").
		WithArgs(1, msg.VoucherID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `voucher_orders`").
		WithArgs(
			msg.OrderID, msg.UserID, msg.VoucherID, int8(model.PayTypeBalance), int8(model.OrderStatusUnpaid),
			nil, nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := svc.CreateVoucherOrder(ctx, msg); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestCreateVoucherOrder_SkipsDuplicateUser(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := newTestService(db)
	ctx := context.Background()

	msg := &model.OrderMessage{
		OrderID:   185637588608352258,
		UserID:    1,
		VoucherID: 10,
	}

	// Replayed message: the user already holds an order. The transaction
	// commits without touching stock or inserting anything.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `voucher_orders` WHERE user_id = \\? AND voucher_id = \\?").
		WithArgs(msg.UserID, msg.VoucherID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectCommit()

	if err := svc.CreateVoucherOrder(ctx, msg); err != nil {
		t.Errorf("Expected duplicate to be swallowed, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestCreateVoucherOrder_SkipsWhenStockExhausted(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := newTestService(db)
	ctx := context.Background()

	msg := &model.OrderMessage{
		OrderID:   185637588608352259,
		UserID:    2,
		VoucherID: 10,
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `voucher_orders` WHERE user_id = \\? AND voucher_id = \\?").
		WithArgs(msg.UserID, msg.VoucherID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("UPDATE `seckill_vouchers` SET `stock`=stock - \\? WHERE voucher_id = \\? AND stock > 0").
		WithArgs(1, msg.VoucherID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := svc.CreateVoucherOrder(ctx, msg); err != nil {
		t.Errorf("Expected exhaustion to be swallowed, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestCreateVoucherOrder_RollsBackOnInsertFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	svc := newTestService(db)
	ctx := context.Background()

	msg := &model.OrderMessage{
		OrderID:   185637588608352260,
		UserID:    3,
		VoucherID: 10,
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `voucher_orders` WHERE user_id = \\? AND voucher_id = \\?").
		WithArgs(msg.UserID, msg.VoucherID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("UPDATE `seckill_vouchers` SET `stock`=stock - \\? WHERE voucher_id = \\? AND stock > 0").
		WithArgs(1, msg.VoucherID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `voucher_orders`").
		WillReturnError(gorm.ErrInvalidData)
	mock.ExpectRollback()

	if err := svc.CreateVoucherOrder(ctx, msg); err == nil {
		t.Error("Expected insert failure to surface")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}
