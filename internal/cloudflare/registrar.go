package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"backlinkoo/domains/internal/config"

	"github.com/sirupsen/logrus"
)

// ErrNotConfigured indicates the zone ID or API token was absent from the
// environment. Callers treat the registrar as optional.
var ErrNotConfigured = errors.New("cloudflare: zone or token not configured")

// Registrar creates custom hostnames in the configured Cloudflare zone so
// customer domains get edge SSL in front of the shared origin. Every call is
// best-effort; failures never fail the enclosing operation.
type Registrar struct {
	api    string
	zoneID string
	token  string
	origin string
	http   *http.Client
	log    *logrus.Logger
}

// New builds a registrar from the resolved configuration.
func New(cfg *config.Config, log *logrus.Logger) *Registrar {
	return &Registrar{
		api:    strings.TrimSuffix(cfg.CloudflareAPIBase, "/"),
		zoneID: cfg.CloudflareZoneID,
		token:  cfg.CloudflareToken,
		origin: cfg.CloudflareOrigin,
		http:   &http.Client{Timeout: cfg.HTTPTimeout},
		log:    log,
	}
}

// CreateCustomHostname registers the hostname with HTTP-validated DV SSL
// pointed at the shared origin.
func (r *Registrar) CreateCustomHostname(ctx context.Context, hostname string) error {
	if r.zoneID == "" || r.token == "" {
		return ErrNotConfigured
	}
	payload := map[string]any{
		"hostname":             hostname,
		"ssl":                  map[string]string{"method": "http", "type": "dv"},
		"custom_origin_server": r.origin,
		"custom_origin_sni":    r.origin,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/zones/%s/custom_hostnames", r.api, r.zoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("cloudflare: create custom hostname failed: %d %s", resp.StatusCode, string(body))
	}
	r.log.WithField("hostname", hostname).Info("cloudflare custom hostname created")
	return nil
}
