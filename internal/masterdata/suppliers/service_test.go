package suppliers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockroom/internal/masterdata/shared"
	"github.com/odyssey-erp/stockroom/internal/platform/httpx"
)

type memoryRepo struct {
	rows   map[int64]Supplier
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: map[int64]Supplier{}}
}

func (m *memoryRepo) List(context.Context, shared.ListFilters) ([]Supplier, int, error) {
	out := make([]Supplier, 0, len(m.rows))
	for _, s := range m.rows {
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Supplier, error) {
	s, ok := m.rows[id]
	if !ok {
		return Supplier{}, httpx.ErrNotFound
	}
	return s, nil
}

func (m *memoryRepo) Create(_ context.Context, s Supplier) (Supplier, error) {
	for _, existing := range m.rows {
		if existing.Name == s.Name {
			return Supplier{}, httpx.ErrDuplicate
		}
	}
	m.nextID++
	s.ID = m.nextID
	m.rows[s.ID] = s
	return s, nil
}

func (m *memoryRepo) Update(_ context.Context, id int64, s Supplier) error {
	if _, ok := m.rows[id]; !ok {
		return httpx.ErrNotFound
	}
	s.ID = id
	m.rows[id] = s
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.rows[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memoryRepo) GetOrCreate(ctx context.Context, name string) (Supplier, error) {
	for _, s := range m.rows {
		if s.Name == name {
			return s, nil
		}
	}
	return m.Create(ctx, Supplier{Name: name})
}

func TestGetOrCreateReusesByName(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	first, err := svc.GetOrCreate(ctx, " Acme Trading ")
	require.NoError(t, err)
	again, err := svc.GetOrCreate(ctx, "Acme Trading")
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)

	_, err = svc.GetOrCreate(ctx, "  ")
	require.ErrorIs(t, err, ErrNameRequired)
}

func TestSupplierValidation(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, Supplier{})
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.ErrorIs(t, svc.Update(ctx, 0, Supplier{Name: "x"}), shared.ErrInvalidID)
	require.ErrorIs(t, svc.Delete(ctx, 42), httpx.ErrNotFound)
}

func TestSupplierHandlers(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/suppliers", NewHandler(nil, NewService(newMemoryRepo())).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/suppliers", strings.NewReader(`{"supplier_name":"Acme","contact_info":"acme@example.com"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/suppliers", strings.NewReader(`{"supplier_name":"Acme"}`)))
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/suppliers", strings.NewReader(`{"unknown":true}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/suppliers", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"total":1`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/suppliers/1", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
}
