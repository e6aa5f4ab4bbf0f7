package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mercata/storefront-api/internal/model"
	"github.com/mercata/storefront-api/internal/repository"
	"github.com/mercata/storefront-api/internal/service"
)

type fakePromoRepo struct {
	promos map[uuid.UUID]*model.PromoCode
}

func newFakePromoRepo() *fakePromoRepo {
	return &fakePromoRepo{promos: make(map[uuid.UUID]*model.PromoCode)}
}

func (f *fakePromoRepo) GetByCode(_ context.Context, code string) (*model.PromoCode, error) {
	for _, p := range f.promos {
		if p.Code == code {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakePromoRepo) Create(_ context.Context, promo *model.PromoCode) error {
	promo.ID = uuid.New()
	f.promos[promo.ID] = promo
	return nil
}

func (f *fakePromoRepo) Update(_ context.Context, promo *model.PromoCode) error {
	if _, ok := f.promos[promo.ID]; !ok {
		return fmt.Errorf("promo %s: %w", promo.ID, repository.ErrNotFound)
	}
	f.promos[promo.ID] = promo
	return nil
}

func (f *fakePromoRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.promos[id]; !ok {
		return fmt.Errorf("promo %s: %w", id, repository.ErrNotFound)
	}
	delete(f.promos, id)
	return nil
}

func (f *fakePromoRepo) List(_ context.Context) ([]model.PromoCode, error) {
	var out []model.PromoCode
	for _, p := range f.promos {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakePromoRepo) IncrementUsage(_ context.Context, id uuid.UUID) error {
	if p, ok := f.promos[id]; ok {
		p.UsedCount++
	}
	return nil
}

func newPromoRouter(repo repository.PromoRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewPromoHandler(service.NewPromoService(repo))
	router := gin.New()
	router.DELETE("/promo/:id", h.Delete)
	return router
}

func TestPromoHandler_Delete(t *testing.T) {
	repo := newFakePromoRepo()
	promo := &model.PromoCode{
		Code: "SAVE10", DiscountType: model.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		StartsAt:      time.Now().Add(-time.Hour), ExpiresAt: time.Now().Add(time.Hour),
		Active: true,
	}
	require.NoError(t, repo.Create(context.Background(), promo))
	router := newPromoRouter(repo)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/promo/"+promo.ID.String(), nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, repo.promos)
}

func TestPromoHandler_Delete_Missing(t *testing.T) {
	router := newPromoRouter(newFakePromoRepo())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/promo/"+uuid.NewString(), nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "promo code not found")
}
