package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/amplifyops/publishkit/pkg/publisher"
)

// contentClient resolves assets from the content service over HTTP. The
// content service owns approval state, so a 404 or 410 means the item was
// deleted or unapproved and the job should be skipped.
type contentClient struct {
	baseURL string
	client  *http.Client
}

func newContentClient(baseURL string, timeout time.Duration) *contentClient {
	return &contentClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *contentClient) GetAsset(ctx context.Context, contentRef string) (*publisher.Asset, error) {
	endpoint := fmt.Sprintf("%s/v1/assets/%s", c.baseURL, url.PathEscape(contentRef))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build asset request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch asset %s: %w", contentRef, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, publisher.ErrAssetUnavailable
	default:
		return nil, fmt.Errorf("content service returned %d for asset %s", resp.StatusCode, contentRef)
	}

	var asset publisher.Asset
	if err := json.NewDecoder(resp.Body).Decode(&asset); err != nil {
		return nil, fmt.Errorf("failed to decode asset %s: %w", contentRef, err)
	}
	asset.ContentRef = contentRef

	return &asset, nil
}

// webhookAdapter forwards publish requests to a per-platform integration
// service. Responses map onto retry classes: 2xx succeeds, 429 and 5xx are
// transient, any other 4xx is permanent.
type webhookAdapter struct {
	url    string
	client *http.Client
}

func newWebhookAdapter(url string) *webhookAdapter {
	return &webhookAdapter{
		url: url,
		// The dispatcher bounds the call through the request context.
		client: &http.Client{},
	}
}

type webhookRequest struct {
	AccountRef string `json:"account_ref"`
	ContentRef string `json:"content_ref"`
	Kind       string `json:"kind"`
	MediaURL   string `json:"media_url"`
	Caption    string `json:"caption,omitempty"`
}

type webhookResponse struct {
	PostURL string `json:"post_url"`
}

func (a *webhookAdapter) Publish(ctx context.Context, accountRef string, asset *publisher.Asset) (*publisher.PublishResult, error) {
	body, err := json.Marshal(webhookRequest{
		AccountRef: accountRef,
		ContentRef: asset.ContentRef,
		Kind:       asset.Kind,
		MediaURL:   asset.MediaURL,
		Caption:    asset.Caption,
	})
	if err != nil {
		return nil, publisher.NewPermanentError(fmt.Errorf("failed to encode publish request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return nil, publisher.NewPermanentError(fmt.Errorf("failed to build publish request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, publisher.NewTransientError(fmt.Errorf("publish request failed: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, publisher.NewTransientError(fmt.Errorf("platform integration returned %d", resp.StatusCode))
	default:
		return nil, publisher.NewPermanentError(fmt.Errorf("platform integration rejected the publish with %d", resp.StatusCode))
	}

	var out webhookResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, publisher.NewTransientError(fmt.Errorf("failed to decode publish response: %w", err))
	}

	return &publisher.PublishResult{PostURL: out.PostURL}, nil
}
