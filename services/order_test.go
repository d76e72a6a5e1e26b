package services

import (
	"bytes"
	"context"
	"testing"

	"github.com/Kariqs/readpage-api/apperrors"
	"github.com/Kariqs/readpage-api/models"
	"github.com/Kariqs/readpage-api/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"
)

func strPtr(s string) *string { return &s }

func placeCOD(t *testing.T, f *fixture, user *models.User, title string) models.Order {
	t.Helper()
	book := testutil.CreateBook(t, f.db, title, "250", 10)
	result, err := f.checkout.BuyNow(context.Background(), user, DirectOrderRequest{
		BookID:        book.ID,
		Quantity:      1,
		PaymentMethod: "cod",
	})
	require.NoError(t, err)
	return result.Orders[0]
}

func TestUpdateDeliveryStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := placeCOD(t, f, f.customer, "Muna Madan")

	for _, status := range []string{"processing", "delivered"} {
		updated, err := f.orders.UpdateStatus(ctx, order.ID, UpdateStatusRequest{DeliveryStatus: strPtr(status)})
		require.NoError(t, err)
		assert.Equal(t, models.DeliveryStatus(status), updated.DeliveryStatus)
		require.NotNil(t, updated.Book)
		assert.Equal(t, "Muna Madan", updated.Book.Title)
	}

	_, err := f.orders.UpdateStatus(ctx, order.ID, UpdateStatusRequest{DeliveryStatus: strPtr("shipped")})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	stored := f.loadOrder(t, order.ID)
	assert.Equal(t, models.DeliveryStatusDelivered, stored.DeliveryStatus)
	assert.Equal(t, models.PaymentStatusPending, stored.PaymentStatus)
}

func TestUpdateStatusValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := placeCOD(t, f, f.customer, "Sumnima")

	_, err := f.orders.UpdateStatus(ctx, order.ID, UpdateStatusRequest{})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	_, err = f.orders.UpdateStatus(ctx, order.ID, UpdateStatusRequest{
		PaymentStatus:  strPtr("paid"),
		DeliveryStatus: strPtr("lost"),
	})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	assert.Equal(t, models.PaymentStatusPending, f.loadOrder(t, order.ID).PaymentStatus)

	_, err = f.orders.UpdateStatus(ctx, 9999, UpdateStatusRequest{DeliveryStatus: strPtr("processing")})
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestRefundRequiresPaidOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := placeCOD(t, f, f.customer, "Rupmati")

	_, err := f.orders.UpdateStatus(ctx, order.ID, UpdateStatusRequest{PaymentStatus: strPtr("refunded")})
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
	assert.Equal(t, models.PaymentStatusPending, f.loadOrder(t, order.ID).PaymentStatus)

	_, err = f.orders.UpdateStatus(ctx, order.ID, UpdateStatusRequest{PaymentStatus: strPtr("PAID")})
	require.NoError(t, err)

	updated, err := f.orders.UpdateStatus(ctx, order.ID, UpdateStatusRequest{PaymentStatus: strPtr("refunded")})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, updated.PaymentStatus)
}

func TestOrderListScoping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, title := range []string{"One", "Two", "Three"} {
		placeCOD(t, f, f.customer, title)
	}
	placeCOD(t, f, f.other, "Four")

	mine, page, err := f.orders.List(ctx, f.customer, 1, 2)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	assert.Equal(t, int64(3), page.Total)
	assert.True(t, page.HasNextPage)
	assert.False(t, page.HasPrevPage)
	assert.Equal(t, "Three", mine[0].Book.Title)
	assert.Nil(t, mine[0].User)

	rest, page, err := f.orders.List(ctx, f.customer, 2, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
	assert.False(t, page.HasNextPage)
	assert.True(t, page.HasPrevPage)

	all, page, err := f.orders.List(ctx, f.admin, 1, 10)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, int64(4), page.Total)
	require.NotNil(t, all[0].User)
	assert.Equal(t, "bikash", all[0].User.Username)
	assert.Empty(t, all[0].User.PasswordHash)
}

func TestOrderGetIsScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := placeCOD(t, f, f.customer, "Basain")

	got, err := f.orders.Get(ctx, f.customer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = f.orders.Get(ctx, f.other, order.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	_, err = f.orders.Get(ctx, f.admin, order.ID)
	assert.NoError(t, err)

	orders, err := f.orders.ListForUser(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestOrderExport(t *testing.T) {
	f := newFixture(t)
	placeCOD(t, f, f.customer, "Export Me")
	placeCOD(t, f, f.other, "Me Too")

	var buf bytes.Buffer
	require.NoError(t, f.orders.Export(context.Background(), &buf))

	file, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	sheet, ok := file.Sheet["Orders"]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 3)

	header := sheet.Rows[0].Cells
	require.Len(t, header, len(exportHeaders))
	assert.Equal(t, "Order ID", header[0].Value)
	assert.Equal(t, "Created At", header[len(header)-1].Value)

	titles := []string{sheet.Rows[1].Cells[3].Value, sheet.Rows[2].Cells[3].Value}
	assert.ElementsMatch(t, []string{"Export Me", "Me Too"}, titles)
	assert.Equal(t, "250.00", sheet.Rows[1].Cells[5].Value)
	assert.Equal(t, "cod", sheet.Rows[1].Cells[6].Value)
}

func TestOrdersKeepDeletedBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := placeCOD(t, f, f.customer, "Out Of Print")
	require.NoError(t, f.db.Delete(&models.Book{}, order.BookID).Error)

	got, err := f.orders.Get(ctx, f.customer, order.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Book)
	assert.Equal(t, "Out Of Print", got.Book.Title)

	orders, _, err := f.orders.List(ctx, f.admin, 1, 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.NotNil(t, orders[0].Book)
	assert.Equal(t, "Out Of Print", orders[0].Book.Title)

	status, err := f.payments.Status(ctx, f.customer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Out Of Print", status.Order.BookTitle)

	var buf bytes.Buffer
	require.NoError(t, f.orders.Export(ctx, &buf))
	file, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Out Of Print", file.Sheet["Orders"].Rows[1].Cells[3].Value)
}
