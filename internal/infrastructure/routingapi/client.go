// Package routingapi is the HTTP client for the routing platform: paged
// call-log queries, per-leg detail lookups, and the payment override
// endpoint. It implements the fetcher and platform-client seams consumed
// by the leg resolver and the correction applier.
package routingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/davidleathers/call-reconciliation/internal/domain/errors"
	"github.com/davidleathers/call-reconciliation/internal/domain/routing"
	"github.com/davidleathers/call-reconciliation/internal/domain/values"
	"github.com/davidleathers/call-reconciliation/internal/infrastructure/config"
	"github.com/davidleathers/call-reconciliation/internal/service/correction"
)

// Client talks to the routing platform's account-scoped REST API.
type Client struct {
	cfg     config.RoutingAPIConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a routing platform client.
func NewClient(cfg config.RoutingAPIConfig, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = 100
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 5
	}

	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitRPS*2),
		logger:  logger,
	}
}

// legRecord is the wire shape shared by the call-log and detail endpoints.
// Timestamps arrive as strings in whichever format the platform's report
// engine produced; they are normalized on ingestion.
type legRecord struct {
	LegID             string       `json:"legId"`
	Timestamp         string       `json:"timestamp"`
	CallerID          string       `json:"callerId"`
	Payout            values.Money `json:"payout"`
	Revenue           values.Money `json:"revenue"`
	Connected         bool         `json:"connected"`
	DurationSeconds   int          `json:"durationSeconds"`
	ReroutedFromLegID *string      `json:"reroutedFromLegId,omitempty"`
	RootLegID         *string      `json:"rootLegId,omitempty"`
	TargetID          string       `json:"targetId"`
}

type callLogPage struct {
	Records []legRecord `json:"records"`
}

// QueryCallLogs fetches all call legs in the date range, paging until the
// platform returns a short page. Records with unparseable timestamps or
// caller ids are logged and dropped rather than failing the query.
func (c *Client) QueryCallLogs(ctx context.Context, from, to time.Time, filter string) ([]*routing.CallLeg, error) {
	var legs []*routing.CallLeg

	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("startDate", from.UTC().Format(time.RFC3339))
		q.Set("endDate", to.UTC().Format(time.RFC3339))
		q.Set("page", strconv.Itoa(page))
		q.Set("pageSize", strconv.Itoa(c.cfg.PageSize))
		if filter != "" {
			q.Set("filter", filter)
		}

		var result callLogPage
		if err := c.get(ctx, "/calllogs?"+q.Encode(), &result); err != nil {
			return nil, errors.NewLookupError("call logs", fmt.Sprintf("page %d", page), err)
		}

		for i := range result.Records {
			leg, ok := c.toDomain(&result.Records[i])
			if !ok {
				continue
			}
			legs = append(legs, leg)
		}

		if len(result.Records) < c.cfg.PageSize {
			break
		}
	}

	c.logger.Debug("call logs fetched",
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int("legs", len(legs)),
	)

	return legs, nil
}

// GetLegDetail retrieves a single leg by id. Implements legs.LegFetcher.
func (c *Client) GetLegDetail(ctx context.Context, legID string) (*routing.CallLeg, error) {
	var record legRecord
	if err := c.get(ctx, "/calls/"+url.PathEscape(legID), &record); err != nil {
		return nil, err
	}
	if record.LegID == "" {
		record.LegID = legID
	}

	leg, ok := c.toDomain(&record)
	if !ok {
		return nil, errors.NewParseError("leg detail", record.Timestamp)
	}
	return leg, nil
}

// OverridePayment issues one payment override and returns the raw
// acknowledgement body. Implements correction.PlatformClient.
func (c *Client) OverridePayment(ctx context.Context, req correction.OverrideRequest) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling override request: %w", err)
	}

	return c.post(ctx, "/calls/payments/override", body)
}

func (c *Client) toDomain(record *legRecord) (*routing.CallLeg, bool) {
	ts, ok := values.ParseInstant(record.Timestamp)
	if !ok {
		c.logger.Warn("dropping leg with unparseable timestamp",
			zap.String("leg_id", record.LegID),
			zap.String("raw_timestamp", record.Timestamp),
		)
		return nil, false
	}

	caller, _ := values.NormalizePhone(record.CallerID)

	return &routing.CallLeg{
		LegID:             record.LegID,
		Timestamp:         ts,
		CallerID:          caller,
		Payout:            record.Payout,
		Revenue:           record.Revenue,
		Connected:         record.Connected,
		DurationSeconds:   record.DurationSeconds,
		ReroutedFromLegID: record.ReroutedFromLegID,
		RootLegID:         record.RootLegID,
		TargetID:          record.TargetID,
	}, true
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := c.cfg.BaseURL + "/v2/accounts/" + url.PathEscape(c.cfg.AccountID) + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.NewExternalError("routing platform", err.Error()).WithCause(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.NewExternalError("routing platform",
			fmt.Sprintf("%s %s returned %d: %s", method, path, resp.StatusCode, truncate(string(data), 256)))
	}

	return data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
