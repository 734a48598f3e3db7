// Package leadsource fetches exported call rows from the lead source's
// feed endpoint. The scraping pipeline that populates the feed is a
// separate system; this client only consumes its output.
package leadsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/call-reconciliation/internal/domain/errors"
	"github.com/davidleathers/call-reconciliation/internal/domain/values"
	"github.com/davidleathers/call-reconciliation/internal/infrastructure/config"
	"github.com/davidleathers/call-reconciliation/internal/service/reconciliation"
)

// Row is one exported lead-source call. Timestamps stay raw strings here;
// the matcher owns parsing so that a malformed date degrades to no-match
// instead of failing ingestion.
type Row struct {
	CallerID           string       `json:"callerId"`
	DateOfCall         string       `json:"dateOfCall"`
	OriginalDateOfCall string       `json:"originalDateOfCall,omitempty"`
	Category           string       `json:"category"`
	Payout             values.Money `json:"payout"`
}

// Client consumes the lead-source feed.
type Client struct {
	cfg    config.LeadSourceConfig
	client *http.Client
	logger *zap.Logger
}

// NewClient creates a lead-source feed client.
func NewClient(cfg config.LeadSourceConfig, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// FetchRows retrieves all rows exported for the date range. Implements
// reconciliation.LeadFeed.
func (c *Client) FetchRows(ctx context.Context, from, to time.Time) ([]reconciliation.LeadRow, error) {
	q := url.Values{}
	q.Set("from", from.UTC().Format("2006-01-02"))
	q.Set("to", to.UTC().Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.FeedURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building feed request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.NewExternalError("lead source", err.Error()).WithCause(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading feed response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewExternalError("lead source",
			fmt.Sprintf("feed returned %d", resp.StatusCode))
	}

	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decoding feed rows: %w", err)
	}

	c.logger.Debug("lead rows fetched",
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int("rows", len(rows)),
	)

	out := make([]reconciliation.LeadRow, len(rows))
	for i, r := range rows {
		out[i] = reconciliation.LeadRow{
			CallerID:           r.CallerID,
			DateOfCall:         r.DateOfCall,
			OriginalDateOfCall: r.OriginalDateOfCall,
			Category:           r.Category,
			Payout:             r.Payout,
		}
	}
	return out, nil
}
