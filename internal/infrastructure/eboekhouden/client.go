package eboekhouden

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jhoicas/ledger-migration-api/internal/application/migration"
	"github.com/jhoicas/ledger-migration-api/internal/domain"
	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Verificar en tiempo de compilación que Client implementa LedgerClient.
var _ migration.LedgerClient = (*Client)(nil)

const (
	sessionTTL      = 55 * time.Minute // el token dura 60 minutos
	maxPageSize     = 500
	maxResponseSize = 16 << 20
)

// Config parámetros del adaptador REST.
type Config struct {
	BaseURL        string
	AccessToken    string
	Source         string
	PageSize       int
	MaxRetries     int
	RequestTimeout time.Duration
	RatePerSecond  float64
}

// Client adaptador de solo lectura sobre la API REST v1 del ledger externo.
// Gestiona el token de sesión, el límite de peticiones y los reintentos con backoff.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger

	// newBackOff permite a los tests usar esperas cortas.
	newBackOff func() backoff.BackOff

	mu           sync.Mutex
	sessionToken string
	sessionExp   time.Time
	now          func() time.Time
}

// NewClient construye el adaptador. Un PageSize fuera de rango se acota a 500.
func NewClient(cfg Config) *Client {
	if cfg.PageSize <= 0 || cfg.PageSize > maxPageSize {
		cfg.PageSize = maxPageSize
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 5
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		log:        log.With().Str("component", "eboekhouden_client").Logger(),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 30 * time.Second
			return b
		},
		now: time.Now,
	}
}

// ── Implementación del puerto ─────────────────────────────────────────────────

// FetchPage lista una página de mutaciones del tipo dado. El cursor es el offset.
func (c *Client) FetchPage(ctx context.Context, mutationType entity.MutationType, cursor string) (entity.MutationPage, error) {
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return entity.MutationPage{}, fmt.Errorf("%w: cursor %q inválido", domain.ErrInvalidInput, cursor)
		}
		offset = n
	}
	q := url.Values{}
	q.Set("type", strconv.Itoa(int(mutationType)))
	q.Set("limit", strconv.Itoa(c.cfg.PageSize))
	q.Set("offset", strconv.Itoa(offset))

	var list mutationList
	if err := c.getJSON(ctx, "/v1/mutation?"+q.Encode(), &list); err != nil {
		return entity.MutationPage{}, fmt.Errorf("listar mutaciones tipo %d offset %d: %w", mutationType, offset, err)
	}

	page := entity.MutationPage{Items: make([]entity.Mutation, 0, len(list.Items))}
	for _, p := range list.Items {
		m, err := p.toEntity(false)
		if err != nil {
			// la fecha ilegible no invalida la página: el coordinador la registra como inválida
			c.log.Warn().Err(err).Str("mutation", string(p.ID)).Msg("mutación con fecha ilegible")
			m = entity.Mutation{ExternalID: string(p.ID), Type: entity.MutationType(p.Type)}
		}
		if p.Type == 0 {
			m.Type = mutationType
		}
		page.Items = append(page.Items, m)
	}
	page.NextCursor = nextCursor(offset, len(list.Items), c.cfg.PageSize)
	return page, nil
}

// FetchDetail devuelve la mutación completa con sus líneas.
func (c *Client) FetchDetail(ctx context.Context, externalID string) (*entity.Mutation, error) {
	var p mutationPayload
	if err := c.getJSON(ctx, "/v1/mutation/"+url.PathEscape(externalID), &p); err != nil {
		return nil, fmt.Errorf("detalle mutación %s: %w", externalID, err)
	}
	m, err := p.toEntity(true)
	if err != nil {
		return nil, err
	}
	if m.ExternalID == "" {
		m.ExternalID = externalID
	}
	return &m, nil
}

// FetchRelation devuelve el tercero externo; domain.ErrNotFound si no existe.
func (c *Client) FetchRelation(ctx context.Context, externalPartyID string) (*entity.Relation, error) {
	var p relationPayload
	if err := c.getJSON(ctx, "/v1/relation/"+url.PathEscape(externalPartyID), &p); err != nil {
		return nil, fmt.Errorf("relación %s: %w", externalPartyID, err)
	}
	r := p.toEntity()
	if r.ID == "" {
		r.ID = externalPartyID
	}
	return r, nil
}

// ── Transporte ───────────────────────────────────────────────────────────────

// getJSON ejecuta un GET autenticado con reintentos. Errores resultantes:
// domain.ErrNotFound (404), domain.ErrUnauthorized (credenciales), domain.ErrTransient (reintentos agotados).
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	op := func() ([]byte, error) {
		status, body, header, err := c.authorizedGet(ctx, path)
		if err != nil {
			return nil, err
		}
		switch {
		case status == http.StatusOK:
			return body, nil
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return nil, backoff.Permanent(fmt.Errorf("%w: HTTP %d", domain.ErrUnauthorized, status))
		case status == http.StatusNotFound:
			return nil, backoff.Permanent(domain.ErrNotFound)
		case status == http.StatusTooManyRequests:
			if secs := retryAfter(header); secs > 0 {
				return nil, backoff.RetryAfter(secs)
			}
			return nil, fmt.Errorf("%w: HTTP 429", domain.ErrTransient)
		case status >= 500:
			return nil, fmt.Errorf("%w: HTTP %d: %s", domain.ErrTransient, status, describe(body))
		default:
			return nil, backoff.Permanent(fmt.Errorf("ledger HTTP %d: %s", status, describe(body)))
		}
	}

	body, err := c.retry(ctx, path, op)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("deserializar respuesta: %w", err)
	}
	return nil
}

// authorizedGet ejecuta el GET con el token de sesión; ante un 401 renueva la sesión una vez.
func (c *Client) authorizedGet(ctx context.Context, path string) (int, []byte, http.Header, error) {
	for attempt := 0; ; attempt++ {
		token, err := c.session(ctx)
		if err != nil {
			return 0, nil, nil, err
		}
		status, body, header, err := c.do(ctx, http.MethodGet, path, token, nil)
		if err != nil || status != http.StatusUnauthorized || attempt > 0 {
			return status, body, header, err
		}
		c.invalidateSession()
	}
}

func (c *Client) retry(ctx context.Context, path string, op backoff.Operation[[]byte]) ([]byte, error) {
	body, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(uint(c.cfg.MaxRetries)+1),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.log.Warn().Err(err).Str("path", path).Dur("wait", wait).Msg("reintentando petición al ledger")
		}),
	)
	if err == nil {
		return body, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	var ra *backoff.RetryAfterError
	if errors.As(err, &ra) {
		return nil, fmt.Errorf("%w: HTTP 429 (límite de peticiones)", domain.ErrTransient)
	}
	return nil, err
}

// do ejecuta una petición con límite de tasa y timeout propio. Los fallos de red son transitorios.
func (c *Client) do(ctx context.Context, method, path, token string, payload any) (int, []byte, http.Header, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, nil, backoff.Permanent(err)
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, nil, backoff.Permanent(fmt.Errorf("serializar request: %w", err))
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return 0, nil, nil, backoff.Permanent(fmt.Errorf("crear HTTP request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, nil, backoff.Permanent(ctx.Err())
		}
		return 0, nil, nil, fmt.Errorf("%w: %v", domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%w: leer respuesta: %v", domain.ErrTransient, err)
	}
	return resp.StatusCode, raw, resp.Header, nil
}

// ── Sesión ───────────────────────────────────────────────────────────────────

// session devuelve el token vigente o abre una sesión nueva.
func (c *Client) session(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionToken != "" && c.now().Before(c.sessionExp) {
		return c.sessionToken, nil
	}
	if c.cfg.AccessToken == "" {
		return "", backoff.Permanent(fmt.Errorf("%w: LEDGER_ACCESS_TOKEN no configurado", domain.ErrUnauthorized))
	}

	status, body, _, err := c.do(ctx, http.MethodPost, "/v1/session", "", sessionRequest{
		AccessToken: c.cfg.AccessToken,
		Source:      c.cfg.Source,
	})
	if err != nil {
		return "", err
	}
	switch {
	case status == http.StatusOK || status == http.StatusCreated:
	case status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusBadRequest:
		return "", backoff.Permanent(fmt.Errorf("%w: sesión rechazada HTTP %d: %s", domain.ErrUnauthorized, status, describe(body)))
	default:
		return "", fmt.Errorf("%w: sesión HTTP %d", domain.ErrTransient, status)
	}

	var s sessionResponse
	if err := json.Unmarshal(body, &s); err != nil || s.Token == "" {
		return "", backoff.Permanent(fmt.Errorf("respuesta de sesión sin token"))
	}
	c.sessionToken = s.Token
	c.sessionExp = c.now().Add(sessionTTL)
	c.log.Debug().Msg("sesión del ledger renovada")
	return c.sessionToken, nil
}

func (c *Client) invalidateSession() {
	c.mu.Lock()
	c.sessionToken = ""
	c.mu.Unlock()
}

// retryAfter segundos indicados por el servidor; 0 si no hay cabecera válida.
func retryAfter(h http.Header) int {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return int(d.Seconds()) + 1
		}
	}
	return 0
}

// describe extrae el mensaje de error de la API o un recorte del cuerpo.
func describe(body []byte) string {
	var e apiError
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Title != "" {
			return e.Title
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
