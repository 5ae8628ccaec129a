// Package tracker holds the destination board adapters used by the publisher.
package tracker

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

	"NewsPipeline/internal/config"
	"NewsPipeline/internal/ports"
)

// HTTPTracker talks to a REST board API.
//
//	POST  {base}/items                 create; 409 means already exists
//	PATCH {base}/items/{id}/fields     set status and date
//	GET   {base}/items?since=RFC3339   list recent items
type HTTPTracker struct {
	baseURL    string
	token      string
	project    string
	httpClient *http.Client
}

var _ ports.Tracker = (*HTTPTracker)(nil)

// NewHTTPTracker builds a client from configuration.
func NewHTTPTracker(cfg config.TrackerConfig) *HTTPTracker {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPTracker{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		project:    cfg.Project,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type itemPayload struct {
	Project     string `json:"project,omitempty"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	SourceURL   string `json:"source_url"`
	Destination string `json:"destination"`
}

type itemResponse struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	SourceURL string `json:"source_url"`
}

// CreateItem posts a new item. On 409 it returns ports.ErrAlreadyExists along
// with whatever identifier the server reported.
func (t *HTTPTracker) CreateItem(ctx context.Context, draft ports.ItemDraft) (ports.ItemRef, error) {
	resp, err := t.do(ctx, http.MethodPost, "/items", nil, itemPayload{
		Project:     t.project,
		Title:       draft.Title,
		Body:        draft.Body,
		SourceURL:   draft.URL,
		Destination: draft.Destination,
	})
	if err != nil {
		return ports.ItemRef{}, fmt.Errorf("create item: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		var existing itemResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&existing)
		return ports.ItemRef{ID: existing.ID, URL: existing.URL}, ports.ErrAlreadyExists
	case resp.StatusCode >= http.StatusBadRequest:
		return ports.ItemRef{}, fmt.Errorf("create item: %w", statusError(resp))
	}

	var created itemResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&created); err != nil && !errors.Is(err, io.EOF) {
		return ports.ItemRef{}, fmt.Errorf("decode created item: %w", err)
	}
	return ports.ItemRef{ID: created.ID, URL: created.URL}, nil
}

// UpdateFields patches the status and date of an existing item.
func (t *HTTPTracker) UpdateFields(ctx context.Context, id string, fields ports.FieldUpdate) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("update fields: empty item id")
	}

	payload := map[string]string{"status": fields.Status}
	if !fields.Date.IsZero() {
		payload["date"] = fields.Date.UTC().Format("2006-01-02")
	}

	resp, err := t.do(ctx, http.MethodPatch, "/items/"+url.PathEscape(id)+"/fields", nil, payload)
	if err != nil {
		return fmt.Errorf("update fields: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("update fields: %w", statusError(resp))
	}
	return nil
}

// ListRecentURLs returns the source URLs of items created since the given time.
func (t *HTTPTracker) ListRecentURLs(ctx context.Context, since time.Time) ([]string, error) {
	query := url.Values{}
	query.Set("since", since.UTC().Format(time.RFC3339))
	if t.project != "" {
		query.Set("project", t.project)
	}

	resp, err := t.do(ctx, http.MethodGet, "/items", query, nil)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("list items: %w", statusError(resp))
	}

	var listing struct {
		Items []itemResponse `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode item list: %w", err)
	}

	urls := make([]string, 0, len(listing.Items))
	for _, item := range listing.Items {
		if item.SourceURL != "" {
			urls = append(urls, item.SourceURL)
		}
	}
	return urls, nil
}

func (t *HTTPTracker) do(ctx context.Context, method, path string, query url.Values, payload any) (*http.Response, error) {
	if t.baseURL == "" {
		return nil, errors.New("tracker base url is not configured")
	}

	endpoint := t.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	return t.httpClient.Do(req)
}

func statusError(resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("tracker error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
}
