// Package pms reads reservations and guests from the property-management
// system's REST API.
package pms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/hotel-call-scheduler/internal/config"
)

var ErrNotConfigured = errors.New("pms not configured")

type Reservation struct {
	ID              string `json:"id"`
	GuestID         string `json:"guestId"`
	RoomNumber      string `json:"roomNumber"`
	RoomType        string `json:"roomType"`
	CheckInDate     string `json:"checkInDate"`
	CheckOutDate    string `json:"checkOutDate"`
	Status          string `json:"status"`
	NumberOfGuests  int    `json:"numberOfGuests"`
	SpecialRequests string `json:"specialRequests"`
}

type Guest struct {
	ID                string `json:"id"`
	FirstName         string `json:"firstName"`
	LastName          string `json:"lastName"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	PreferredLanguage string `json:"preferredLanguage"`
	VIPStatus         bool   `json:"vipStatus"`
}

type Client struct {
	cfg     config.PMS
	http    *http.Client
	limiter <-chan time.Time
}

func New(cfg config.PMS) *Client {
	interval := time.Minute / time.Duration(max(cfg.RateLimitPerMin, 1))
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: time.Tick(interval),
	}
}

func (c *Client) Enabled() bool { return c != nil && c.cfg.Enabled() }

// listResponse accepts the envelopes seen across PMS vendors.
type listResponse struct {
	Data         []Reservation `json:"data"`
	Items        []Reservation `json:"items"`
	Reservations []Reservation `json:"reservations"`
}

// ListReservations returns reservations with stay dates touching [from, to].
func (c *Client) ListReservations(ctx context.Context, from, to time.Time) ([]Reservation, error) {
	params := url.Values{}
	params.Set("from", from.Format("2006-01-02"))
	params.Set("to", to.Format("2006-01-02"))
	body, err := c.get(ctx, "/reservations", params)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var out []Reservation
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, fmt.Errorf("decode reservations: %w", err)
		}
		return out, nil
	}
	var parsed listResponse
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return nil, fmt.Errorf("decode reservations: %w", err)
	}
	switch {
	case parsed.Data != nil:
		return parsed.Data, nil
	case parsed.Items != nil:
		return parsed.Items, nil
	}
	return parsed.Reservations, nil
}

func (c *Client) GetGuest(ctx context.Context, id string) (Guest, error) {
	body, err := c.get(ctx, "/guests/"+url.PathEscape(id), nil)
	if err != nil {
		return Guest{}, err
	}
	var wrapped struct {
		Data *Guest `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Data != nil {
		return *wrapped.Data, nil
	}
	var g Guest
	if err := json.Unmarshal(body, &g); err != nil {
		return Guest{}, fmt.Errorf("decode guest %s: %w", id, err)
	}
	if g.ID == "" {
		g.ID = id
	}
	return g, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	select {
	case <-c.limiter:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	endpoint := c.cfg.BaseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(c.cfg.APIKeyHeader, c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read pms response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("pms api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
