package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercata/storefront-api/internal/dto"
	"github.com/mercata/storefront-api/internal/model"
)

type abandonedFixture struct {
	svc           *AbandonedService
	cartRepo      *mockCartRepo
	productRepo   *mockProductRepo
	abandonedRepo *mockAbandonedRepo
}

func newAbandonedFixture() *abandonedFixture {
	cartRepo := newMockCartRepo()
	productRepo := newMockProductRepo()
	abandonedRepo := newMockAbandonedRepo()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := NewAbandonedService(abandonedRepo, cartRepo, productRepo, log, time.Hour, 30*24*time.Hour)
	return &abandonedFixture{svc: svc, cartRepo: cartRepo, productRepo: productRepo, abandonedRepo: abandonedRepo}
}

func (f *abandonedFixture) seedCartWithItems(t *testing.T, session string, qty int) *model.Cart {
	t.Helper()
	productID, variantID := f.productRepo.seed("Tee-"+session, decimal.NewFromInt(20), decimal.Zero, 100)
	cart, err := f.cartRepo.Replace(context.Background(), guestOwner(session),
		[]model.CartItem{{ProductID: productID, VariantID: variantID, Quantity: qty}})
	require.NoError(t, err)
	return cart
}

var contactInfo = dto.CheckoutInfoRequest{
	Email: "ada@example.com", Phone: "+15550100", CustomerName: "Ada Lovelace",
	ShippingAddress: "1 Analytical Way", City: "London",
}

func TestAbandonedService_MarkCheckoutStarted(t *testing.T) {
	f := newAbandonedFixture()
	cart := f.seedCartWithItems(t, "s1", 1)

	require.NoError(t, f.svc.MarkCheckoutStarted(context.Background(), guestOwner("s1")))
	record := f.abandonedRepo.records[cart.ID]
	require.NotNil(t, record)
	assert.Equal(t, model.StageCheckoutStarted, record.Stage)
}

func TestAbandonedService_MarkCheckoutStarted_EmptyCart(t *testing.T) {
	f := newAbandonedFixture()
	err := f.svc.MarkCheckoutStarted(context.Background(), guestOwner("s1"))
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestAbandonedService_MarkCheckoutStarted_KeepsInfoFilledStage(t *testing.T) {
	f := newAbandonedFixture()
	cart := f.seedCartWithItems(t, "s1", 1)

	require.NoError(t, f.svc.SaveCheckoutInfo(context.Background(), guestOwner("s1"), contactInfo))
	require.NoError(t, f.svc.MarkCheckoutStarted(context.Background(), guestOwner("s1")))

	// Returning to the first checkout step never loses captured contact info.
	record := f.abandonedRepo.records[cart.ID]
	assert.Equal(t, model.StageCheckoutInfoFilled, record.Stage)
	assert.Equal(t, "ada@example.com", record.Email)
}

func TestAbandonedService_SaveCheckoutInfo(t *testing.T) {
	f := newAbandonedFixture()
	cart := f.seedCartWithItems(t, "s1", 1)

	require.NoError(t, f.svc.SaveCheckoutInfo(context.Background(), guestOwner("s1"), contactInfo))
	record := f.abandonedRepo.records[cart.ID]
	require.NotNil(t, record)
	assert.Equal(t, model.StageCheckoutInfoFilled, record.Stage)
	assert.Equal(t, "Ada Lovelace", record.CustomerName)
}

func TestAbandonedService_Sweep(t *testing.T) {
	f := newAbandonedFixture()
	cart := f.seedCartWithItems(t, "s1", 1)

	f.abandonedRepo.records[cart.ID] = &model.AbandonedCart{
		ID: uuid.New(), CartID: cart.ID,
		Stage:          model.StageCheckoutStarted,
		LastActivityAt: time.Now().Add(-2 * time.Hour),
	}

	result, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Abandoned)
	assert.Equal(t, model.StageAbandoned, f.abandonedRepo.records[cart.ID].Stage)
	assert.NotNil(t, f.abandonedRepo.records[cart.ID].AbandonedAt)

	// Re-running is idempotent: nothing new to flag.
	result, err = f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Abandoned)
}

func TestAbandonedService_Sweep_LeavesFreshRecords(t *testing.T) {
	f := newAbandonedFixture()
	cart := f.seedCartWithItems(t, "s1", 1)

	f.abandonedRepo.records[cart.ID] = &model.AbandonedCart{
		ID: uuid.New(), CartID: cart.ID,
		Stage:          model.StageCheckoutStarted,
		LastActivityAt: time.Now(),
	}

	result, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Abandoned)
	assert.Equal(t, model.StageCheckoutStarted, f.abandonedRepo.records[cart.ID].Stage)
}

func TestAbandonedService_Sweep_PurgesStaleGuestCarts(t *testing.T) {
	f := newAbandonedFixture()
	cart := f.seedCartWithItems(t, "old-guest", 1)
	cart.LastActivityAt = time.Now().Add(-31 * 24 * time.Hour)
	f.seedCartWithItems(t, "fresh-guest", 1)

	result, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.PurgedGuestCarts)
	assert.Len(t, f.cartRepo.carts, 1)
}

func TestAbandonedService_Dashboard(t *testing.T) {
	f := newAbandonedFixture()
	cart := f.seedCartWithItems(t, "s1", 3)

	now := time.Now()
	f.abandonedRepo.records[cart.ID] = &model.AbandonedCart{
		ID: uuid.New(), CartID: cart.ID, Email: "ada@example.com",
		Stage: model.StageAbandoned, AbandonedAt: &now,
	}

	resp, err := f.svc.Dashboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, resp.Count)

	entry := resp.Entries[0]
	assert.True(t, entry.CartAvailable)
	assert.Equal(t, "ada@example.com", entry.Email)
	require.Len(t, entry.Items, 1)
	assert.Equal(t, "60", entry.CartValue.String())
	assert.Equal(t, "60", resp.TotalValue.String())
}

func TestAbandonedService_Dashboard_CartGone(t *testing.T) {
	f := newAbandonedFixture()

	// Tracking records have no FK on carts, so a purged cart can leave an
	// orphaned record behind. The dashboard reports it instead of failing.
	now := time.Now()
	f.abandonedRepo.records[uuid.New()] = &model.AbandonedCart{
		ID: uuid.New(), CartID: uuid.New(), Email: "gone@example.com",
		Stage: model.StageAbandoned, AbandonedAt: &now,
	}

	resp, err := f.svc.Dashboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, resp.Count)
	assert.False(t, resp.Entries[0].CartAvailable)
	assert.True(t, resp.Entries[0].CartValue.IsZero())
}

func TestAbandonedService_Dashboard_RepricesAtCurrentPrice(t *testing.T) {
	f := newAbandonedFixture()
	cart := f.seedCartWithItems(t, "s1", 2)

	now := time.Now()
	f.abandonedRepo.records[cart.ID] = &model.AbandonedCart{
		ID: uuid.New(), CartID: cart.ID, Stage: model.StageAbandoned, AbandonedAt: &now,
	}

	// Price drop after abandonment shows up in the dashboard value.
	variant, _ := f.productRepo.FindVariant(context.Background(), cart.Items[0].ProductID, cart.Items[0].VariantID)
	variant.SalePrice = decimal.NewFromInt(12)

	resp, err := f.svc.Dashboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "24", resp.Entries[0].CartValue.String())
}
