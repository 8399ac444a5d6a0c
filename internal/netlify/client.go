package netlify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"backlinkoo/domains/internal/config"
	"backlinkoo/domains/internal/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// FetchError reports a non-success response while reading the site resource.
type FetchError struct {
	Status int
	Body   string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch Netlify site config: %d %s", e.Status, e.Body)
}

// PatchError reports a non-success response while updating the site resource.
type PatchError struct {
	Status int
	Body   string
}

func (e *PatchError) Error() string {
	return fmt.Sprintf("failed to update aliases: %d %s", e.Status, e.Body)
}

// IsOwnershipConflict reports whether an error is Netlify rejecting a domain
// because it belongs to a different account. The API exposes no structured
// code for this, only wording in the response body, so the match lives in
// exactly one place.
func IsOwnershipConflict(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "owned by another account")
}

// Client talks to a single Netlify site resource.
type Client struct {
	api    string
	siteID string
	token  string
	http   *http.Client
	log    *logrus.Logger

	// retry policy; zero attempts means a single try
	attempts  int
	baseDelay time.Duration
}

// New builds a client for the configured site.
func New(cfg *config.Config, log *logrus.Logger) *Client {
	return &Client{
		api:    strings.TrimSuffix(cfg.NetlifyAPIBase, "/"),
		siteID: cfg.NetlifySiteID,
		token:  cfg.NetlifyToken,
		http:   &http.Client{Timeout: cfg.HTTPTimeout},
		log:    log,
	}
}

// Retrying returns a copy of the client that retries transient failures
// (5xx and rate-limit responses) with exponential backoff. Only the bulk
// path uses this; single-domain operations stay single-shot.
func (c *Client) Retrying(attempts int, baseDelay time.Duration) *Client {
	cp := *c
	cp.attempts = attempts
	cp.baseDelay = baseDelay
	return &cp
}

// GetSite fetches the current site configuration.
func (c *Client) GetSite(ctx context.Context) (models.SiteConfig, error) {
	body, status, err := c.do(ctx, http.MethodGet, nil)
	if err != nil {
		return models.SiteConfig{}, err
	}
	if status < 200 || status >= 300 {
		return models.SiteConfig{}, &FetchError{Status: status, Body: string(body)}
	}
	var site models.SiteConfig
	if err := json.Unmarshal(body, &site); err != nil {
		return models.SiteConfig{}, fmt.Errorf("decode site config: %w", err)
	}
	return site, nil
}

// PatchAliases replaces the site's alias array. The remote API is
// array-replacement, not item-addition: callers always send the full
// resulting set.
func (c *Client) PatchAliases(ctx context.Context, aliases []string) (models.SiteConfig, error) {
	return c.patch(ctx, map[string]any{"domain_aliases": aliases})
}

// PatchCustomDomain attempts to set the site's primary custom domain.
func (c *Client) PatchCustomDomain(ctx context.Context, domain string) (models.SiteConfig, error) {
	return c.patch(ctx, map[string]any{"custom_domain": domain})
}

func (c *Client) patch(ctx context.Context, payload map[string]any) (models.SiteConfig, error) {
	body, status, err := c.do(ctx, http.MethodPatch, payload)
	if err != nil {
		return models.SiteConfig{}, err
	}
	if status < 200 || status >= 300 {
		return models.SiteConfig{}, &PatchError{Status: status, Body: string(body)}
	}
	var site models.SiteConfig
	if len(body) > 0 {
		if err := json.Unmarshal(body, &site); err != nil {
			return models.SiteConfig{}, fmt.Errorf("decode site config: %w", err)
		}
	}
	return site, nil
}

// do issues one request against the site resource, retrying per the client's
// policy. Non-retryable statuses are returned to the caller for
// classification; only 5xx, 429, and transport errors are retried.
func (c *Client) do(ctx context.Context, method string, payload map[string]any) ([]byte, int, error) {
	var (
		respBody   []byte
		respStatus int
	)

	attempt := func() error {
		var reqBody io.Reader
		if payload != nil {
			raw, err := json.Marshal(payload)
			if err != nil {
				return backoff.Permanent(err)
			}
			reqBody = bytes.NewReader(raw)
		}
		req, err := http.NewRequestWithContext(ctx, method, fmt.Sprintf("%s/sites/%s", c.api, c.siteID), reqBody)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		respBody = body
		respStatus = resp.StatusCode
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("transient netlify status %d", resp.StatusCode)
		}
		return nil
	}

	if c.attempts <= 1 {
		// single-shot: transient statuses are still returned, not retried
		if err := attempt(); err != nil {
			if respStatus != 0 {
				return respBody, respStatus, nil
			}
			return nil, 0, err
		}
		return respBody, respStatus, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.baseDelay
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0
	err := backoff.Retry(func() error {
		err := attempt()
		if err != nil && respStatus >= 500 {
			c.log.WithFields(logrus.Fields{"status": respStatus, "method": method}).Warn("netlify transient failure, retrying")
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.attempts-1)), ctx))
	if err != nil {
		if respStatus != 0 {
			return respBody, respStatus, nil
		}
		return nil, 0, err
	}
	return respBody, respStatus, nil
}
