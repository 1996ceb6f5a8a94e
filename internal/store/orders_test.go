package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"marketplace-service/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewWithDB(sqlx.NewDb(db, "sqlmock")), mock
}

var (
	cartCols     = []string{"id", "user_id", "updated_at"}
	cartItemCols = []string{"id", "cart_id", "product_id", "quantity", "size", "color"}
	productCols  = []string{"id", "seller_id", "name", "price", "stock", "discount",
		"colors", "sizes", "unit", "published", "created_at", "updated_at"}
	orderCols = []string{"id", "user_id", "total_amount", "shipping_address", "shipping_method",
		"shipping_cost", "payment_method", "status", "created_at", "updated_at"}
)

func TestCheckoutTxSuccess(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	// Cart with product A: price 100, stock 10, discount 0, qty 2.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM carts WHERE user_id`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(cartCols).AddRow(5, 1, now))
	mock.ExpectQuery(`SELECT \* FROM cart_items WHERE cart_id`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(cartItemCols).AddRow(7, 5, 1, 2, "M", "red"))
	mock.ExpectQuery(`SELECT \* FROM products WHERE id IN`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow(1, 2, "Widget", 100, 10, 0, "{red}", "{M}", "pcs", true, now, now))
	mock.ExpectQuery(`INSERT INTO orders`).
		WithArgs(int64(1), int64(200), "Jl. Merdeka 1", "regular", int64(0), "transfer", models.OrderStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(10, now, now))
	mock.ExpectQuery(`INSERT INTO order_items`).
		WithArgs(int64(10), int64(1), 2, int64(100), 0, int64(100), "M", "red", "pcs").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(20))
	mock.ExpectExec(`UPDATE products SET stock`).
		WithArgs(8, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO stock_history`).
		WithArgs(int64(1), "M", "red", models.StockChangeSale, -2, 8, int64(10), int64(1)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`DELETE FROM cart_items WHERE cart_id`).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM carts WHERE id`).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	order, items, err := s.CheckoutTx(context.Background(), 1, CheckoutInput{
		ShippingAddress: "Jl. Merdeka 1",
		ShippingMethod:  "regular",
		PaymentMethod:   "transfer",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(200), order.TotalAmount)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	require.Len(t, items, 1)
	assert.Equal(t, int64(100), items[0].DiscountedPrice)
	assert.Equal(t, 2, items[0].Quantity)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutTxAppliesDiscountAndShipping(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	// price 1000, discount 10 -> discounted 900; qty 3 -> 2700; shipping 500.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM carts WHERE user_id`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(cartCols).AddRow(5, 1, now))
	mock.ExpectQuery(`SELECT \* FROM cart_items WHERE cart_id`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(cartItemCols).AddRow(7, 5, 1, 3, "", ""))
	mock.ExpectQuery(`SELECT \* FROM products WHERE id IN`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow(1, 2, "Widget", 1000, 5, 10, "{}", "{}", "", true, now, now))
	mock.ExpectQuery(`INSERT INTO orders`).
		WithArgs(int64(1), int64(3200), "addr", "", int64(500), "cod", models.OrderStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(11, now, now))
	mock.ExpectQuery(`INSERT INTO order_items`).
		WithArgs(int64(11), int64(1), 3, int64(1000), 10, int64(900), "", "", "").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(21))
	mock.ExpectExec(`UPDATE products SET stock`).
		WithArgs(2, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO stock_history`).
		WithArgs(int64(1), "", "", models.StockChangeSale, -3, 2, int64(11), int64(1)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`DELETE FROM cart_items WHERE cart_id`).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM carts WHERE id`).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	order, _, err := s.CheckoutTx(context.Background(), 1, CheckoutInput{
		ShippingAddress: "addr",
		ShippingCost:    500,
		PaymentMethod:   "cod",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3200), order.TotalAmount)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutTxEmptyCart(t *testing.T) {
	t.Run("no cart", func(t *testing.T) {
		s, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM carts WHERE user_id`).
			WithArgs(int64(1)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, _, err := s.CheckoutTx(context.Background(), 1, CheckoutInput{ShippingAddress: "addr"})
		assert.ErrorIs(t, err, models.ErrEmptyCart)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cart with no items", func(t *testing.T) {
		s, mock := newMockStore(t)
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM carts WHERE user_id`).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(cartCols).AddRow(5, 1, now))
		mock.ExpectQuery(`SELECT \* FROM cart_items WHERE cart_id`).
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows(cartItemCols))
		mock.ExpectRollback()

		_, _, err := s.CheckoutTx(context.Background(), 1, CheckoutInput{ShippingAddress: "addr"})
		assert.ErrorIs(t, err, models.ErrEmptyCart)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCheckoutTxInsufficientStock(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	// Requested 11, only 10 in stock. No order row may be written.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM carts WHERE user_id`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(cartCols).AddRow(5, 1, now))
	mock.ExpectQuery(`SELECT \* FROM cart_items WHERE cart_id`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(cartItemCols).AddRow(7, 5, 1, 11, "", ""))
	mock.ExpectQuery(`SELECT \* FROM products WHERE id IN`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow(1, 2, "Widget", 100, 10, 0, "{}", "{}", "", true, now, now))
	mock.ExpectRollback()

	_, _, err := s.CheckoutTx(context.Background(), 1, CheckoutInput{ShippingAddress: "addr"})
	assert.ErrorIs(t, err, models.ErrInsufficientStock)
	assert.Contains(t, err.Error(), "Widget")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionOrderStatus(t *testing.T) {
	t.Run("valid transition", func(t *testing.T) {
		s, mock := newMockStore(t)
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM orders WHERE id = \$1 FOR UPDATE`).
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows(orderCols).
				AddRow(9, 1, 200, "addr", "", 0, "cod", models.OrderStatusPending, now, now))
		mock.ExpectQuery(`UPDATE orders SET status`).
			WithArgs(models.OrderStatusPaid, int64(9)).
			WillReturnRows(sqlmock.NewRows(orderCols).
				AddRow(9, 1, 200, "addr", "", 0, "cod", models.OrderStatusPaid, now, now))
		mock.ExpectCommit()

		order, err := s.TransitionOrderStatus(context.Background(), 9, models.OrderStatusPaid)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusPaid, order.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid transition", func(t *testing.T) {
		s, mock := newMockStore(t)
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM orders WHERE id = \$1 FOR UPDATE`).
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows(orderCols).
				AddRow(9, 1, 200, "addr", "", 0, "cod", models.OrderStatusDelivered, now, now))
		mock.ExpectRollback()

		_, err := s.TransitionOrderStatus(context.Background(), 9, models.OrderStatusPaid)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing order", func(t *testing.T) {
		s, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM orders WHERE id = \$1 FOR UPDATE`).
			WithArgs(int64(404)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := s.TransitionOrderStatus(context.Background(), 404, models.OrderStatusPaid)
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
