package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tapiceria-erp/tapiceria-erp/internal/shared"
)

func TestRequireCompanyRejectsMissingHeader(t *testing.T) {
	handler := RequireCompany(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/materials", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequireCompanyBindsContext(t *testing.T) {
	var got string
	handler := RequireCompany(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = shared.CompanyFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/materials", nil)
	req.Header.Set(CompanyHeader, "c1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "c1", got)
}

type memoryKeys struct {
	seen    map[string]string
	deleted []string
}

func (m *memoryKeys) CheckAndInsert(_ context.Context, key, module string) error {
	if _, ok := m.seen[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	if m.seen == nil {
		m.seen = map[string]string{}
	}
	m.seen[key] = module
	return nil
}

func (m *memoryKeys) Delete(_ context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	delete(m.seen, key)
	return nil
}

func TestIdempotencyGuardRejectsReplay(t *testing.T) {
	keys := &memoryKeys{}
	calls := 0
	handler := IdempotencyGuard(keys, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	first := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	first.Header.Set(IdempotencyKeyHeader, "k1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, 1, calls)

	replay := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	replay.Header.Set(IdempotencyKeyHeader, "k1")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, replay)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, 1, calls)
}

func TestIdempotencyGuardIgnoresReadsAndMissingKey(t *testing.T) {
	keys := &memoryKeys{}
	calls := 0
	handler := IdempotencyGuard(keys, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	get := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	get.Header.Set(IdempotencyKeyHeader, "k1")
	handler.ServeHTTP(httptest.NewRecorder(), get)

	post := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	handler.ServeHTTP(httptest.NewRecorder(), post)

	require.Equal(t, 2, calls)
	require.Empty(t, keys.seen)
}

func TestIdempotencyGuardReleasesKeyOnServerError(t *testing.T) {
	keys := &memoryKeys{}
	handler := IdempotencyGuard(keys, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	req.Header.Set(IdempotencyKeyHeader, "k1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, []string{"k1"}, keys.deleted)
	require.Empty(t, keys.seen)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
