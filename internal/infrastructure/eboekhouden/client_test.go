package eboekhouden

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/ledger-migration-api/internal/domain"
	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

// fakeLedger servidor mínimo: /v1/session emite tokens y el resto lo resuelve handler.
type fakeLedger struct {
	sessions atomic.Int32
	token    atomic.Value
	handler  http.HandlerFunc
}

func newFakeLedger(t *testing.T, handler http.HandlerFunc) (*fakeLedger, *httptest.Server) {
	t.Helper()
	f := &fakeLedger{handler: handler}
	f.token.Store("tok-1")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/session" {
			var body sessionRequest
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body.AccessToken != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			f.sessions.Add(1)
			_ = json.NewEncoder(w).Encode(sessionResponse{Token: f.token.Load().(string)})
			return
		}
		if r.Header.Get("Authorization") != f.token.Load().(string) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func newTestClient(baseURL string, pageSize, retries int) *Client {
	c := NewClient(Config{
		BaseURL:       baseURL,
		AccessToken:   "secret",
		Source:        "test",
		PageSize:      pageSize,
		MaxRetries:    retries,
		RatePerSecond: 1000,
	})
	c.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	return c
}

// ──────────────────────────────────────────────────────────────────────────────
// Listado y paginación
// ──────────────────────────────────────────────────────────────────────────────

func TestFetchPage_MapeaCamposYCursor(t *testing.T) {
	_, srv := newFakeLedger(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/mutation", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("type"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		assert.Equal(t, "0", r.URL.Query().Get("offset"))
		_, _ = w.Write([]byte(`{"items":[
			{"id":101,"type":2,"date":"2024-03-01","description":"Factuur 2024-001","amount":121.00,
			 "relationId":55,"invoiceNumber":"2024-001","ledgerId":1300,
			 "rows":[{"ledgerId":8000,"amount":"100.00","description":"omzet"},{"ledgerId":1500,"amount":21}]},
			{"id":"102","type":2,"date":"2024-03-02T00:00:00","amount":10,"relationId":0}
		]}`))
	})
	c := newTestClient(srv.URL, 2, 0)

	page, err := c.FetchPage(context.Background(), entity.MutationSalesInvoice, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "2", page.NextCursor, "página llena: el cursor avanza al siguiente offset")

	m := page.Items[0]
	assert.Equal(t, "101", m.ExternalID)
	assert.Equal(t, entity.MutationSalesInvoice, m.Type)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), m.Date)
	assert.True(t, decimal.NewFromInt(121).Equal(m.Amount))
	assert.Equal(t, "55", m.ExternalPartyID)
	assert.Equal(t, "1300", m.LedgerID)
	require.Len(t, m.Lines, 2)
	assert.Equal(t, "8000", m.Lines[0].LedgerID)
	assert.True(t, decimal.NewFromInt(100).Equal(m.Lines[0].Amount))
	assert.False(t, m.HasDetail)

	assert.Equal(t, "102", page.Items[1].ExternalID)
	assert.Empty(t, page.Items[1].ExternalPartyID, "relationId 0 equivale a sin tercero")
	assert.True(t, page.Items[1].NeedsDetail())
}

func TestFetchPage_UltimaPaginaSinCursor(t *testing.T) {
	_, srv := newFakeLedger(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "500", r.URL.Query().Get("offset"))
		_, _ = w.Write([]byte(`{"items":[{"id":1,"type":3,"date":"2024-01-01","amount":5}]}`))
	})
	c := newTestClient(srv.URL, 500, 0)

	page, err := c.FetchPage(context.Background(), entity.MutationCustomerPayment, "500")
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Empty(t, page.NextCursor)
}

func TestFetchPage_CursorInvalido(t *testing.T) {
	c := newTestClient("http://127.0.0.1:0", 10, 0)
	_, err := c.FetchPage(context.Background(), entity.MutationMemorial, "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// ──────────────────────────────────────────────────────────────────────────────
// Detalle y relaciones
// ──────────────────────────────────────────────────────────────────────────────

func TestFetchDetail_MarcaDetalle(t *testing.T) {
	_, srv := newFakeLedger(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/mutation/77", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":77,"type":7,"date":"2024-05-05","rows":[{"ledgerId":4000,"amount":50},{"ledgerId":1000,"amount":-50}]}`))
	})
	c := newTestClient(srv.URL, 10, 0)

	m, err := c.FetchDetail(context.Background(), "77")
	require.NoError(t, err)
	assert.True(t, m.HasDetail)
	assert.Len(t, m.Lines, 2)
}

func TestFetchRelation_NotFound(t *testing.T) {
	_, srv := newFakeLedger(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	c := newTestClient(srv.URL, 10, 3)

	_, err := c.FetchRelation(context.Background(), "9")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFetchRelation_ContactNameComoNombre(t *testing.T) {
	_, srv := newFakeLedger(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":9,"type":"P","contactName":"Piet Jansen","email":"piet@example.nl","vatNumber":"NL001"}`))
	})
	c := newTestClient(srv.URL, 10, 0)

	rel, err := c.FetchRelation(context.Background(), "9")
	require.NoError(t, err)
	assert.Equal(t, "Piet Jansen", rel.DisplayName())
	assert.Equal(t, "NL001", rel.TaxID)
	assert.Equal(t, "piet@example.nl", rel.Email)
}

// ──────────────────────────────────────────────────────────────────────────────
// Reintentos y sesión
// ──────────────────────────────────────────────────────────────────────────────

func TestGet_ReintentaErroresDelServidor(t *testing.T) {
	var calls atomic.Int32
	_, srv := newFakeLedger(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"items":[]}`))
	})
	c := newTestClient(srv.URL, 10, 5)

	page, err := c.FetchPage(context.Background(), entity.MutationMoneyPaid, "")
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_ReintentosAgotadosEsTransitorio(t *testing.T) {
	var calls atomic.Int32
	_, srv := newFakeLedger(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})
	c := newTestClient(srv.URL, 10, 2)

	_, err := c.FetchPage(context.Background(), entity.MutationMoneyPaid, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransient)
	assert.Equal(t, int32(3), calls.Load(), "un intento inicial más dos reintentos")
}

func TestGet_ErrorClienteNoSeReintenta(t *testing.T) {
	var calls atomic.Int32
	_, srv := newFakeLedger(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"type inválido"}`))
	})
	c := newTestClient(srv.URL, 10, 5)

	_, err := c.FetchPage(context.Background(), entity.MutationMoneyPaid, "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrTransient)
	assert.Contains(t, err.Error(), "type inválido")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSession_SeReutilizaYRenuevaTras401(t *testing.T) {
	f, srv := newFakeLedger(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[]}`))
	})
	c := newTestClient(srv.URL, 10, 0)
	ctx := context.Background()

	_, err := c.FetchPage(ctx, entity.MutationMemorial, "")
	require.NoError(t, err)
	_, err = c.FetchPage(ctx, entity.MutationMemorial, "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.sessions.Load(), "el token vigente se reutiliza")

	// el servidor rota el token: el primer GET recibe 401 y se abre una sesión nueva
	f.token.Store("tok-2")
	_, err = c.FetchPage(ctx, entity.MutationMemorial, "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.sessions.Load())
}

func TestSession_ExpiraTras55Minutos(t *testing.T) {
	f, srv := newFakeLedger(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[]}`))
	})
	c := newTestClient(srv.URL, 10, 0)
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := c.FetchPage(ctx, entity.MutationMemorial, "")
	require.NoError(t, err)
	now = now.Add(56 * time.Minute)
	_, err = c.FetchPage(ctx, entity.MutationMemorial, "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.sessions.Load())
}

func TestSession_CredencialesInvalidas(t *testing.T) {
	_, srv := newFakeLedger(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no debe llegar al endpoint sin sesión")
	})
	c := newTestClient(srv.URL, 10, 3)
	c.cfg.AccessToken = "otra"

	_, err := c.FetchPage(context.Background(), entity.MutationMemorial, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRetryAfter(t *testing.T) {
	h := http.Header{}
	assert.Equal(t, 0, retryAfter(h))
	h.Set("Retry-After", "7")
	assert.Equal(t, 7, retryAfter(h))
	h.Set("Retry-After", "basura")
	assert.Equal(t, 0, retryAfter(h))
}
