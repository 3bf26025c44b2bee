package cart

import (
	"context"
	"errors"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"testing"
	"time"
)

func TestUpsertMergesIntoActiveCart(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO carts").
		WithArgs(pgxmock.AnyArg(), "u1").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT id FROM carts").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("cart-1"))
	// baris sudah ada dengan qty 2 -> hasil merge 5, harga snapshot lama tetap
	mock.ExpectQuery("INSERT INTO cart_items").
		WithArgs(pgxmock.AnyArg(), "cart-1", "p1", "v1", "M", "Kaos", "99000.00", 3, "r2", at).
		WillReturnRows(pgxmock.NewRows([]string{"id", "quantity", "unit_price", "product_name", "snapshot_at"}).
			AddRow("item-1", 5, "95000.00", "Kaos", at.Add(-time.Hour)))

	it, err := Upsert(ctx, mock, "u1", Snapshot{
		ProductID: "p1", VariantID: "v1", Size: "M", ProductName: "Kaos",
		UnitPrice: decimal.NewFromInt(99000), Quantity: 3, ReservationID: "r2", SnapshotAt: at,
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if it.ID != "item-1" || it.CartID != "cart-1" || it.Quantity != 5 {
		t.Fatalf("item = %+v", it)
	}
	if !it.UnitPrice.Equal(decimal.NewFromInt(95000)) {
		t.Fatalf("unit price = %s, want original snapshot 95000", it.UnitPrice)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpsertRejectsInvalid(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	_, err = Upsert(context.Background(), mock, "u1", Snapshot{ProductID: "p1", Quantity: 0})
	if !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("err = %v, want ErrInvalidSnapshot", err)
	}
}
