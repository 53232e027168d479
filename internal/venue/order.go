package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yanun0323/errors"

	"github.com/doug4987/New-MM-Test/internal/schema"
)

// OrderConfig points the order adapter at the venue's REST API.
type OrderConfig struct {
	BaseURL   string        `json:"baseUrl"`
	AccessKey string        `json:"-"`
	SecretKey string        `json:"-"`
	Timeout   time.Duration `json:"timeout"`
}

// LiveOrderAdapter submits and cancels wagers over the venue REST API.
type LiveOrderAdapter struct {
	cfg    OrderConfig
	client *http.Client
}

// NewLiveOrderAdapter creates an adapter with a bounded per-call timeout.
func NewLiveOrderAdapter(cfg OrderConfig) *LiveOrderAdapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &LiveOrderAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type submitRequest struct {
	ExternalID string `json:"external_id"`
	LineID     string `json:"line_id"`
	Odds       int64  `json:"odds"`
	Stake      string `json:"stake"`
	Side       string `json:"side"`
}

type submitResponse struct {
	WagerID string `json:"wager_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Submit places a wager. Transport failures and 5xx responses come back as
// errors (transient, retry-eligible); 4xx responses are permanent refusals.
func (a *LiveOrderAdapter) Submit(ctx context.Context, w schema.Wager) (Outcome, error) {
	body := submitRequest{
		ExternalID: w.ID,
		LineID:     w.SelectionID,
		Odds:       int64(w.Price),
		Stake:      w.Stake.String(),
		Side:       w.Side.String(),
	}
	resp, status, err := a.post(ctx, "/partner/mm/place_wager", body)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "submit wager")
	}
	return a.classify(resp, status)
}

// Cancel withdraws a wager by its venue id.
func (a *LiveOrderAdapter) Cancel(ctx context.Context, w schema.Wager) (Outcome, error) {
	body := map[string]string{"external_id": w.ID, "wager_id": w.VenueID}
	resp, status, err := a.post(ctx, "/partner/mm/cancel_wager", body)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "cancel wager")
	}
	return a.classify(resp, status)
}

func (a *LiveOrderAdapter) post(ctx context.Context, path string, body any) (submitResponse, int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return submitResponse{}, 0, errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return submitResponse{}, 0, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Access-Key", a.cfg.AccessKey)
	req.Header.Set("X-Secret-Key", a.cfg.SecretKey)

	httpResp, err := a.client.Do(req)
	if err != nil {
		return submitResponse{}, 0, errors.Wrap(err, "call venue")
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 500 {
		return submitResponse{}, httpResp.StatusCode, errors.Errorf("venue unavailable, status: %d", httpResp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return submitResponse{}, httpResp.StatusCode, errors.Wrap(err, "read response")
	}

	var out submitResponse
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return submitResponse{}, httpResp.StatusCode, errors.Wrap(err, "unmarshal response").With("body", string(data))
		}
	}
	return out, httpResp.StatusCode, nil
}

func (a *LiveOrderAdapter) classify(resp submitResponse, status int) (Outcome, error) {
	switch {
	case status >= 200 && status < 300:
		return Outcome{Accepted: true, VenueID: resp.WagerID}, nil
	case status == http.StatusTooManyRequests:
		// Rate limited: transient, retry after backoff.
		return Outcome{}, errors.New("venue rate limited")
	default:
		reason := resp.Message
		if reason == "" {
			reason = fmt.Sprintf("status %d", status)
		}
		return Outcome{Permanent: true, Reason: reason}, nil
	}
}
