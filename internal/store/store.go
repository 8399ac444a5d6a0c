package store

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

	"backlinkoo/domains/internal/config"

	"github.com/sirupsen/logrus"
)

// ErrNotConfigured indicates the Supabase URL or service-role key was absent.
var ErrNotConfigured = errors.New("store: supabase credentials missing")

// ErrTableMissing indicates the target table does not exist in the schema.
// The optional blog-theme table is allowed to be absent.
var ErrTableMissing = errors.New("store: table not found")

// Store is the persistence gateway for domain rows, speaking PostgREST to the
// Supabase project with the service-role credential.
type Store struct {
	baseURL    string
	serviceKey string
	http       *http.Client
	log        *logrus.Logger
}

// New builds a store from the resolved configuration.
func New(cfg *config.Config, log *logrus.Logger) *Store {
	return &Store{
		baseURL:    strings.TrimSuffix(cfg.SupabaseURL, "/"),
		serviceKey: cfg.SupabaseServiceKey,
		http:       &http.Client{Timeout: cfg.HTTPTimeout},
		log:        log,
	}
}

type requestError struct {
	Status int
	Body   string
}

func (e *requestError) Error() string {
	return fmt.Sprintf("store: unexpected status %d: %s", e.Status, e.Body)
}

// rest performs one PostgREST request and returns the response body.
func (s *Store) rest(ctx context.Context, method, path string, query url.Values, payload any, prefer string) ([]byte, error) {
	if s.baseURL == "" || s.serviceKey == "" {
		return nil, ErrNotConfigured
	}
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}
	endpoint := fmt.Sprintf("%s/rest/v1/%s", s.baseURL, path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTableMissing
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &requestError{Status: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}
