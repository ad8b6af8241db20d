package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// TokenSource supplies a bearer token for one outgoing request. How
// tokens are obtained or refreshed is the caller's concern; the client
// only asks for one per request.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken returns a TokenSource that always yields the same token.
func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) {
		return token, nil
	}
}

// UpstreamClient talks to the practice-management records API.
type UpstreamClient struct {
	baseURL    string
	token      TokenSource
	httpClient *http.Client
}

// UpstreamConfig configures an UpstreamClient.
type UpstreamConfig struct {
	BaseURL    string
	Token      TokenSource
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewUpstreamClient creates a records API client.
func NewUpstreamClient(cfg UpstreamConfig) (*UpstreamClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("clients: upstream base url is required")
	}
	if cfg.Token == nil {
		return nil, errors.New("clients: upstream token source is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &UpstreamClient{
		baseURL:    strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/"),
		token:      cfg.Token,
		httpClient: httpClient,
	}, nil
}

// upstreamItem is the wire shape of one record from the listing API.
type upstreamItem struct {
	ID      string `json:"id"`
	Profile struct {
		EmailAddress string `json:"emailAddress"`
		FirstName    string `json:"firstName"`
		LastName     string `json:"lastName"`
		MobilePhone  string `json:"mobilePhone"`
	} `json:"profile"`
	Status       string `json:"status"`
	DateCreated  string `json:"dateCreated"`
	DateModified string `json:"dateModified"`
}

// RecordPage is one page of upstream client records.
type RecordPage struct {
	Items []ClientRecord
}

// FetchPage requests up to limit active client records, optionally
// anchored after or before a record id for pagination. Upstream HTTP
// errors are returned to the caller; a failed page aborts the fetch.
func (c *UpstreamClient) FetchPage(ctx context.Context, limit int, afterID, beforeID string) (*RecordPage, error) {
	params := url.Values{}
	params.Set("type", "client")
	params.Set("status", "active")
	params.Set("limit", strconv.Itoa(limit))
	if strings.TrimSpace(afterID) != "" {
		params.Set("afterId", afterID)
	}
	if strings.TrimSpace(beforeID) != "" {
		params.Set("beforeId", beforeID)
	}

	var body struct {
		Items []upstreamItem `json:"items"`
	}
	if err := c.get(ctx, "/records?"+params.Encode(), &body); err != nil {
		return nil, err
	}

	page := &RecordPage{Items: make([]ClientRecord, 0, len(body.Items))}
	for _, item := range body.Items {
		page.Items = append(page.Items, ClientRecord{
			RecordID:   item.ID,
			Email:      NormalizeEmail(item.Profile.EmailAddress),
			FirstName:  item.Profile.FirstName,
			LastName:   item.Profile.LastName,
			Phone:      item.Profile.MobilePhone,
			Status:     item.Status,
			CreatedAt:  item.DateCreated,
			ModifiedAt: item.DateModified,
		})
	}
	return page, nil
}

// BookedInterval is an appointment window already taken upstream.
type BookedInterval struct {
	ConsultantID string
	StartTime    time.Time
	EndTime      time.Time
}

// FetchAppointments lists booked appointment windows between from and
// to, used to subtract taken slots from computed availability.
func (c *UpstreamClient) FetchAppointments(ctx context.Context, from, to time.Time) ([]BookedInterval, error) {
	params := url.Values{}
	params.Set("type", "appointment")
	params.Set("status", "active")
	params.Set("from", from.UTC().Format(time.RFC3339))
	params.Set("to", to.UTC().Format(time.RFC3339))

	var body struct {
		Items []struct {
			ConsultantID string `json:"consultantId"`
			StartTime    string `json:"startTime"`
			EndTime      string `json:"endTime"`
		} `json:"items"`
	}
	if err := c.get(ctx, "/records?"+params.Encode(), &body); err != nil {
		return nil, err
	}

	booked := make([]BookedInterval, 0, len(body.Items))
	for _, item := range body.Items {
		start, err := time.Parse(time.RFC3339, item.StartTime)
		if err != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339, item.EndTime)
		if err != nil {
			continue
		}
		booked = append(booked, BookedInterval{
			ConsultantID: item.ConsultantID,
			StartTime:    start,
			EndTime:      end,
		})
	}
	return booked, nil
}

func (c *UpstreamClient) get(ctx context.Context, path string, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return fmt.Errorf("clients: acquire token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("clients: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("clients: upstream request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		msg := strings.TrimSpace(string(body))
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return fmt.Errorf("clients: upstream error (status %d): %s", resp.StatusCode, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("clients: decode response: %w", err)
	}
	return nil
}
