package repository

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercata/storefront-api/internal/model"
)

func seedProduct(t *testing.T, stock int) *model.Product {
	t.Helper()
	repo := NewProductRepository(testPool)
	product := &model.Product{
		Slug: "tee-" + uuid.NewString(), Name: "Tee",
		Variants: []model.Variant{{
			SKU:   "TEE-" + uuid.NewString(),
			Price: decimal.NewFromInt(25), SalePrice: decimal.NewFromInt(20), Stock: stock,
		}},
	}
	require.NoError(t, repo.Create(context.Background(), product))
	return product
}

func TestUserRepo_CreateAndGetByEmail(t *testing.T) {
	cleanupAll(t)

	repo := NewUserRepository(testPool)
	ctx := context.Background()

	user := &model.User{
		Email: "test@example.com", Password: "hashed",
		FirstName: "John", LastName: "Doe", Phone: "+15550100", Role: "customer",
	}
	require.NoError(t, repo.Create(ctx, user))
	assert.NotEqual(t, uuid.Nil, user.ID)

	found, err := repo.GetByEmail(ctx, "test@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, "+15550100", found.Phone)
}

func TestProductRepo_CRUD(t *testing.T) {
	cleanupAll(t)

	repo := NewProductRepository(testPool)
	ctx := context.Background()

	product := seedProduct(t, 100)
	require.Len(t, product.Variants, 1)
	assert.NotEqual(t, uuid.Nil, product.Variants[0].ID)

	found, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Tee", found.Name)
	require.Len(t, found.Variants, 1)
	assert.Equal(t, 100, found.Variants[0].Stock)

	found.Name = "Updated"
	require.NoError(t, repo.Update(ctx, found))
	found, _ = repo.GetByID(ctx, product.ID)
	assert.Equal(t, "Updated", found.Name)

	variant, err := repo.FindVariant(ctx, product.ID, product.Variants[0].ID)
	require.NoError(t, err)
	require.NotNil(t, variant)
	assert.True(t, variant.SalePrice.Equal(decimal.NewFromInt(20)))

	require.NoError(t, repo.Delete(ctx, product.ID))
	found, _ = repo.GetByID(ctx, product.ID)
	assert.Nil(t, found)
}

func TestProductRepo_WritesAgainstMissingRows(t *testing.T) {
	cleanupAll(t)

	repo := NewProductRepository(testPool)
	ctx := context.Background()

	err := repo.Update(ctx, &model.Product{ID: uuid.New(), Slug: "ghost", Name: "Ghost"})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, uuid.New()), ErrNotFound)

	err = repo.UpdateVariant(ctx, &model.Variant{ID: uuid.New(), ProductID: uuid.New(), SKU: "GHOST-1"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCartRepo_ReplaceByOwner(t *testing.T) {
	cleanupAll(t)

	repo := NewCartRepository(testPool)
	product := seedProduct(t, 10)
	ctx := context.Background()

	session := "sess-" + uuid.NewString()
	owner := model.CartOwner{SessionID: &session}

	cart, err := repo.Replace(ctx, owner, []model.CartItem{
		{ProductID: product.ID, VariantID: product.Variants[0].ID, Quantity: 2},
	})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)

	// Replacing reuses the same cart row.
	again, err := repo.Replace(ctx, owner, []model.CartItem{
		{ProductID: product.ID, VariantID: product.Variants[0].ID, Quantity: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, cart.ID, again.ID)
	require.Len(t, again.Items, 1)
	assert.Equal(t, 5, again.Items[0].Quantity)

	found, err := repo.GetByOwner(ctx, owner)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, cart.ID, found.ID)

	require.NoError(t, repo.Delete(ctx, cart.ID))
	found, err = repo.GetByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestCartRepo_DeleteStaleGuestCarts(t *testing.T) {
	cleanupAll(t)

	repo := NewCartRepository(testPool)
	product := seedProduct(t, 10)
	ctx := context.Background()

	stale := "stale-" + uuid.NewString()
	fresh := "fresh-" + uuid.NewString()
	staleCart, err := repo.Replace(ctx, model.CartOwner{SessionID: &stale}, []model.CartItem{
		{ProductID: product.ID, VariantID: product.Variants[0].ID, Quantity: 1},
	})
	require.NoError(t, err)
	_, err = repo.Replace(ctx, model.CartOwner{SessionID: &fresh}, []model.CartItem{
		{ProductID: product.ID, VariantID: product.Variants[0].ID, Quantity: 1},
	})
	require.NoError(t, err)

	_, err = testPool.Exec(ctx,
		`UPDATE carts SET last_activity_at = NOW() - INTERVAL '40 days' WHERE id = $1`, staleCart.ID)
	require.NoError(t, err)

	purged, err := repo.DeleteStaleGuestCarts(ctx, time.Now().Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	gone, err := repo.GetByOwner(ctx, model.CartOwner{SessionID: &stale})
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func newTestOrder(product *model.Product, qty int, session string) *model.Order {
	unit := product.Variants[0].EffectivePrice()
	line := unit.Mul(decimal.NewFromInt(int64(qty)))
	return &model.Order{
		SessionID:    &session,
		CustomerName: "Ada Lovelace", Email: "ada@example.com",
		Items: []model.OrderItem{{
			ProductID: product.ID, VariantID: product.Variants[0].ID,
			ProductName: product.Name, SKU: product.Variants[0].SKU,
			UnitPrice: unit, Quantity: qty, LineTotal: line,
		}},
		Subtotal: line, ShippingFee: decimal.RequireFromString("4.99"),
		Discount: decimal.Zero, Total: line.Add(decimal.RequireFromString("4.99")),
	}
}

func TestOrderRepo_Create(t *testing.T) {
	cleanupAll(t)

	productRepo := NewProductRepository(testPool)
	orderRepo := NewOrderRepository(testPool, productRepo, "ORD")
	product := seedProduct(t, 5)
	ctx := context.Background()

	order := newTestOrder(product, 3, "sess-"+uuid.NewString())
	require.NoError(t, orderRepo.Create(ctx, order))
	assert.Regexp(t, `^ORD\d{8}0001$`, order.OrderNumber)
	assert.Equal(t, model.OrderStatusPending, order.Status)

	found, err := orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Len(t, found.Items, 1)
	require.Len(t, found.StatusHistory, 1)
	assert.Equal(t, model.OrderStatusPending, found.StatusHistory[0].Status)

	// Stock decremented inside the same transaction.
	variant, err := productRepo.FindVariant(ctx, product.ID, product.Variants[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, variant.Stock)
	assert.Equal(t, 3, variant.UnitsSold)
}

func TestOrderRepo_Create_InsufficientStockRollsBack(t *testing.T) {
	cleanupAll(t)

	productRepo := NewProductRepository(testPool)
	orderRepo := NewOrderRepository(testPool, productRepo, "ORD")
	product := seedProduct(t, 2)
	ctx := context.Background()

	order := newTestOrder(product, 10, "sess-"+uuid.NewString())
	err := orderRepo.Create(ctx, order)
	require.ErrorIs(t, err, ErrInsufficientStock)

	// Nothing from the failed order survives.
	var count int
	require.NoError(t, testPool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&count))
	assert.Equal(t, 0, count)

	variant, err := productRepo.FindVariant(ctx, product.ID, product.Variants[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, variant.Stock)
}

func TestOrderRepo_OrderNumbersUniqueUnderConcurrency(t *testing.T) {
	cleanupAll(t)

	productRepo := NewProductRepository(testPool)
	orderRepo := NewOrderRepository(testPool, productRepo, "ORD")
	product := seedProduct(t, 100)
	ctx := context.Background()

	const n = 10
	numbers := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			order := newTestOrder(product, 1, "sess-"+strconv.Itoa(i)+uuid.NewString())
			if err := orderRepo.Create(ctx, order); err != nil {
				t.Error(err)
				return
			}
			numbers <- order.OrderNumber
		}(i)
	}
	wg.Wait()
	close(numbers)

	seen := make(map[string]bool)
	for num := range numbers {
		assert.False(t, seen[num], "duplicate order number %s", num)
		seen[num] = true
	}
	assert.Len(t, seen, n)
}

func TestOrderRepo_UpdateStatus(t *testing.T) {
	cleanupAll(t)

	productRepo := NewProductRepository(testPool)
	orderRepo := NewOrderRepository(testPool, productRepo, "ORD")
	product := seedProduct(t, 5)
	ctx := context.Background()

	order := newTestOrder(product, 1, "sess-"+uuid.NewString())
	require.NoError(t, orderRepo.Create(ctx, order))

	require.NoError(t, orderRepo.UpdateStatus(ctx, order.ID, model.OrderStatusProcessing, "packing"))

	found, err := orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusProcessing, found.Status)
	require.Len(t, found.StatusHistory, 2)
	assert.Equal(t, "packing", found.StatusHistory[1].Note)

	err = orderRepo.UpdateStatus(ctx, uuid.New(), model.OrderStatusProcessing, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPromoRepo_IncrementUsageRespectsLimit(t *testing.T) {
	cleanupAll(t)

	repo := NewPromoRepository(testPool)
	ctx := context.Background()

	promo := &model.PromoCode{
		Code: "LIMITED", DiscountType: model.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10), UsageLimit: 2,
		StartsAt: time.Now().Add(-time.Hour), ExpiresAt: time.Now().Add(time.Hour), Active: true,
	}
	require.NoError(t, repo.Create(ctx, promo))

	require.NoError(t, repo.IncrementUsage(ctx, promo.ID))
	require.NoError(t, repo.IncrementUsage(ctx, promo.ID))
	assert.Error(t, repo.IncrementUsage(ctx, promo.ID))

	found, err := repo.GetByCode(ctx, "LIMITED")
	require.NoError(t, err)
	assert.Equal(t, 2, found.UsedCount)
}

func TestAbandonedRepo_UpsertAndMarkStale(t *testing.T) {
	cleanupAll(t)

	repo := NewAbandonedCartRepository(testPool)
	ctx := context.Background()

	cartID := uuid.New()
	record := &model.AbandonedCart{CartID: cartID, Stage: model.StageCheckoutStarted}
	require.NoError(t, repo.Upsert(ctx, record))

	// Upsert is keyed by cart, a second call updates in place.
	record.Email = "ada@example.com"
	record.Stage = model.StageCheckoutInfoFilled
	require.NoError(t, repo.Upsert(ctx, record))

	found, err := repo.GetByCartID(ctx, cartID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, model.StageCheckoutInfoFilled, found.Stage)
	assert.Equal(t, "ada@example.com", found.Email)

	_, err = testPool.Exec(ctx,
		`UPDATE abandoned_carts SET last_activity_at = NOW() - INTERVAL '2 hours' WHERE cart_id = $1`, cartID)
	require.NoError(t, err)

	marked, err := repo.MarkStale(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)

	// Second pass finds nothing new.
	marked, err = repo.MarkStale(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), marked)

	found, _ = repo.GetByCartID(ctx, cartID)
	assert.Equal(t, model.StageAbandoned, found.Stage)
	assert.NotNil(t, found.AbandonedAt)

	require.NoError(t, repo.Reactivate(ctx, cartID, model.StageCheckoutInfoFilled))
	found, _ = repo.GetByCartID(ctx, cartID)
	assert.Equal(t, model.StageCheckoutInfoFilled, found.Stage)
	assert.Nil(t, found.AbandonedAt)
}

func TestAbandonedRepo_TouchKeepsRecordActive(t *testing.T) {
	cleanupAll(t)

	repo := NewAbandonedCartRepository(testPool)
	ctx := context.Background()

	cartID := uuid.New()
	require.NoError(t, repo.Upsert(ctx, &model.AbandonedCart{CartID: cartID, Stage: model.StageCheckoutStarted}))

	_, err := testPool.Exec(ctx,
		`UPDATE abandoned_carts SET last_activity_at = NOW() - INTERVAL '2 hours' WHERE cart_id = $1`, cartID)
	require.NoError(t, err)

	require.NoError(t, repo.Touch(ctx, cartID))

	marked, err := repo.MarkStale(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), marked)

	found, err := repo.GetByCartID(ctx, cartID)
	require.NoError(t, err)
	assert.Equal(t, model.StageCheckoutStarted, found.Stage)
}
