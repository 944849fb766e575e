package syncengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Mani87-nq/yardbooks-web-sub005/internal/modules/connectivity"
	"github.com/Mani87-nq/yardbooks-web-sub005/internal/modules/localstore"
	"github.com/Mani87-nq/yardbooks-web-sub005/internal/modules/roster"
)

// Client is the engine's view of the server sync API.
type Client interface {
	PushSale(ctx context.Context, tx *localstore.QueuedTransaction) (serverOrderID string, duplicate bool, err error)
	PushActions(ctx context.Context, actions []*localstore.QueuedAction) (*ActionsResult, error)
	PullCatalog(ctx context.Context, since time.Time, haveCursor bool) ([]*localstore.CatalogEntry, time.Time, error)
	PullRoster(ctx context.Context, since time.Time, haveCursor bool) ([]*localstore.OperatorEntry, time.Time, error)
}

// ActionsResult is the per-item outcome of an actions batch.
type ActionsResult struct {
	Synced int
	Total  int
	Errors map[string]string // client_ref -> reason
}

// RejectionError is a definitive server refusal (4xx). The record will
// never succeed as-is, so the engine records the reason and moves on.
// Transport failures are plain errors and leave the record retryable.
type RejectionError struct {
	Status  int
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("server rejected request (%d): %s", e.Status, e.Message)
}

// TokenSource supplies the bearer token attached to sync requests. The
// client invalidates it when the server stops accepting the token, so an
// implementation can re-authenticate instead of serving the stale value
// forever.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// HTTPClient talks to the server sync endpoints with a bearer token. Every
// transport failure is reported to the connectivity monitor so the rest of
// the terminal learns about the outage without its own probing.
type HTTPClient struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
	monitor *connectivity.Monitor
}

func NewHTTPClient(baseURL string, tokens TokenSource, monitor *connectivity.Monitor) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		tokens:  tokens,
		http:    &http.Client{Timeout: 30 * time.Second},
		monitor: monitor,
	}
}

// ── wire types, mirroring the server contract ────────────────────────────────

type saleResponse struct {
	ServerOrderID string `json:"server_order_id"`
	Duplicate     bool   `json:"duplicate"`
}

type actionsRequest struct {
	Actions []actionPayload `json:"actions"`
}

type actionPayload struct {
	ClientRef  string          `json:"client_ref"`
	OperatorID string          `json:"operator_id"`
	Type       string          `json:"type"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type actionsResponse struct {
	Synced int `json:"synced"`
	Errors []struct {
		ClientRef string `json:"client_ref"`
		Error     string `json:"error"`
	} `json:"errors"`
	Total int `json:"total"`
}

type catalogDelta struct {
	Items []struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Category      string `json:"category"`
		PriceCents    int64  `json:"price_cents"`
		UnitCostCents int64  `json:"unit_cost_cents"`
		TaxRateBps    int    `json:"tax_rate_bps"`
		StockQuantity int    `json:"stock_quantity"`
		IsAvailable   bool   `json:"is_available"`
	} `json:"items"`
	Count         int       `json:"count"`
	SyncTimestamp time.Time `json:"sync_timestamp"`
}

type rosterDelta struct {
	Operators []struct {
		ID           string              `json:"id"`
		Code         string              `json:"code"`
		Name         string              `json:"name"`
		Role         string              `json:"role"`
		PINDigest    string              `json:"pin_digest"`
		Capabilities roster.Capabilities `json:"capabilities"`
		IsActive     bool                `json:"is_active"`
	} `json:"operators"`
	Count         int       `json:"count"`
	SyncTimestamp time.Time `json:"sync_timestamp"`
}

// ── operations ───────────────────────────────────────────────────────────────

func (c *HTTPClient) PushSale(ctx context.Context, tx *localstore.QueuedTransaction) (string, bool, error) {
	payload := map[string]interface{}{
		"client_ref":  tx.ClientRef,
		"operator_id": tx.OperatorID,
		"captured_at": tx.CapturedAt,
		"lines":       tx.Lines,
		"payments":    tx.Payments,
	}
	var resp saleResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/sync/transactions", payload, &resp); err != nil {
		return "", false, err
	}
	return resp.ServerOrderID, resp.Duplicate, nil
}

func (c *HTTPClient) PushActions(ctx context.Context, actions []*localstore.QueuedAction) (*ActionsResult, error) {
	req := actionsRequest{Actions: make([]actionPayload, 0, len(actions))}
	for _, a := range actions {
		req.Actions = append(req.Actions, actionPayload{
			ClientRef:  a.ClientRef,
			OperatorID: a.OperatorID,
			Type:       a.Type,
			Detail:     a.Detail,
			OccurredAt: a.OccurredAt,
		})
	}
	var resp actionsResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/sync/actions", req, &resp); err != nil {
		return nil, err
	}
	result := &ActionsResult{Synced: resp.Synced, Total: resp.Total, Errors: map[string]string{}}
	for _, e := range resp.Errors {
		result.Errors[e.ClientRef] = e.Error
	}
	return result, nil
}

func (c *HTTPClient) PullCatalog(ctx context.Context, since time.Time, haveCursor bool) ([]*localstore.CatalogEntry, time.Time, error) {
	var resp catalogDelta
	if err := c.do(ctx, http.MethodGet, deltaPath("/api/v1/sync/catalog", since, haveCursor), nil, &resp); err != nil {
		return nil, time.Time{}, err
	}
	entries := make([]*localstore.CatalogEntry, 0, len(resp.Items))
	for _, it := range resp.Items {
		entries = append(entries, &localstore.CatalogEntry{
			ID:            it.ID,
			Name:          it.Name,
			Category:      it.Category,
			PriceCents:    it.PriceCents,
			UnitCostCents: it.UnitCostCents,
			TaxRateBps:    it.TaxRateBps,
			StockQuantity: it.StockQuantity,
			IsAvailable:   it.IsAvailable,
		})
	}
	return entries, resp.SyncTimestamp, nil
}

func (c *HTTPClient) PullRoster(ctx context.Context, since time.Time, haveCursor bool) ([]*localstore.OperatorEntry, time.Time, error) {
	var resp rosterDelta
	if err := c.do(ctx, http.MethodGet, deltaPath("/api/v1/sync/roster", since, haveCursor), nil, &resp); err != nil {
		return nil, time.Time{}, err
	}
	entries := make([]*localstore.OperatorEntry, 0, len(resp.Operators))
	for _, op := range resp.Operators {
		entries = append(entries, &localstore.OperatorEntry{
			ID:           op.ID,
			Code:         op.Code,
			Name:         op.Name,
			Role:         op.Role,
			PINDigest:    op.PINDigest,
			Capabilities: op.Capabilities,
			IsActive:     op.IsActive,
		})
	}
	return entries, resp.SyncTimestamp, nil
}

func deltaPath(path string, since time.Time, haveCursor bool) string {
	if !haveCursor {
		return path
	}
	return path + "?since=" + url.QueryEscape(since.Format(time.RFC3339))
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	return c.doAuth(ctx, method, path, body, out, true)
}

func (c *HTTPClient) doAuth(ctx context.Context, method, path string, body, out interface{}, retryAuth bool) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		// No session is a retryable condition, never a record-level
		// refusal: the queue stays intact until a login succeeds.
		return fmt.Errorf("acquire session: %w", err)
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		// A failed round trip is the strongest offline signal available.
		if c.monitor != nil {
			c.monitor.ReportDown()
		}
		return fmt.Errorf("sync request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// An expired or revoked session says nothing about the record;
		// drop the token, try once with a fresh one, and otherwise leave
		// the record retryable.
		c.tokens.Invalidate()
		if retryAuth {
			resp.Body.Close()
			return c.doAuth(ctx, method, path, body, out, false)
		}
		return fmt.Errorf("sync request %s %s: session rejected", method, path)
	}

	if resp.StatusCode >= 400 {
		var errBody struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &errBody) != nil || errBody.Error == "" {
			errBody.Error = string(raw)
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("sync request %s %s: server error %d: %s", method, path, resp.StatusCode, errBody.Error)
		}
		return &RejectionError{Status: resp.StatusCode, Message: errBody.Error}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode sync response: %w", err)
		}
	}
	return nil
}
