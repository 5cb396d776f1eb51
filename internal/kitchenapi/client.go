// Package kitchenapi is the REST collaborator for board pulls, ticket
// mutations and menu availability.
package kitchenapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/appetiteclub/kitchenboard/pkg/enums/ticketstatus"
	"github.com/aquamarinepk/aqm"
)

var (
	ErrNotConfigured   = errors.New("kitchen client not configured")
	ErrInvalidTicketID = errors.New("invalid ticket id")
)

const DefaultFetchLimit = 200

type BoardQuery struct {
	Limit   int
	StoreID string
}

func (q BoardQuery) path() string {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultFetchLimit
	}
	v := url.Values{}
	v.Set("limit", strconv.Itoa(limit))
	if q.StoreID != "" {
		v.Set("storeId", q.StoreID)
	}
	return "/kitchen/board?" + v.Encode()
}

// Client wraps the kitchen service REST API.
type Client struct {
	client  *aqm.ServiceClient
	baseURL string
}

func NewClient(baseURL string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return &Client{}
	}
	return &Client{client: aqm.NewServiceClient(baseURL), baseURL: baseURL}
}

// BaseURL returns the REST base the client was built with.
func (c *Client) BaseURL() string {
	if c == nil {
		return ""
	}
	return c.baseURL
}

// FetchBoard pulls one board snapshot. The payload is returned undecoded
// since its layout varies between backend versions.
func (c *Client) FetchBoard(ctx context.Context, q BoardQuery) (any, error) {
	if c == nil || c.client == nil {
		return nil, ErrNotConfigured
	}

	resp, err := c.client.Request(ctx, "GET", q.path(), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch board: %w", err)
	}
	if resp == nil {
		return nil, errors.New("fetch board: nil success response")
	}
	return resp.Data, nil
}

func (c *Client) UpdateStatus(ctx context.Context, id int64, status ticketstatus.Status) error {
	if !status.Known() {
		return fmt.Errorf("unknown ticket status %q", status.Code())
	}
	body := map[string]string{"status": status.Code()}
	return c.patch(ctx, id, "status", body)
}

func (c *Client) CompleteOneUnit(ctx context.Context, id int64) error {
	return c.patch(ctx, id, "complete-one", nil)
}

func (c *Client) CompleteAllUnits(ctx context.Context, id int64) error {
	return c.patch(ctx, id, "complete-all", nil)
}

func (c *Client) ServeOneUnit(ctx context.Context, id int64) error {
	return c.patch(ctx, id, "serve-one", nil)
}

// MenuAvailability returns menu item id to availability.
func (c *Client) MenuAvailability(ctx context.Context) (map[int64]bool, error) {
	if c == nil || c.client == nil {
		return nil, ErrNotConfigured
	}

	resp, err := c.client.Request(ctx, "GET", "/menu/items/availability", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch availability: %w", err)
	}

	var raw any
	if err := decodeSuccessResponse(resp, &raw); err != nil {
		return nil, fmt.Errorf("decode availability: %w", err)
	}
	return parseAvailability(raw)
}

func (c *Client) patch(ctx context.Context, id int64, action string, body any) error {
	if c == nil || c.client == nil {
		return ErrNotConfigured
	}
	if id <= 0 {
		return ErrInvalidTicketID
	}

	path := fmt.Sprintf("/kitchen/order-details/%d/%s", id, action)
	if _, err := c.client.Request(ctx, "PATCH", path, body); err != nil {
		return fmt.Errorf("%s order detail %d: %w", action, id, err)
	}
	return nil
}
