package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"backlinkoo/domains/internal/models"

	"github.com/araddon/dateparse"
)

// domainRow mirrors the domains table. Timestamps arrive in whatever
// precision/offset format the row was written with, so they are decoded
// leniently rather than as strict RFC 3339.
type domainRow struct {
	ID              string  `json:"id,omitempty"`
	Domain          string  `json:"domain"`
	UserID          *string `json:"user_id,omitempty"`
	Status          string  `json:"status,omitempty"`
	NetlifySiteID   *string `json:"netlify_site_id,omitempty"`
	NetlifyVerified *bool   `json:"netlify_verified,omitempty"`
	BlogEnabled     *bool   `json:"blog_enabled,omitempty"`
	SelectedTheme   *string `json:"selected_theme,omitempty"`
	ThemeName       *string `json:"theme_name,omitempty"`
	CreatedAt       string  `json:"created_at,omitempty"`
	UpdatedAt       string  `json:"updated_at,omitempty"`
}

func (r domainRow) toRecord() models.DomainRecord {
	rec := models.DomainRecord{
		ID:     r.ID,
		Domain: models.NormalizeDomain(r.Domain),
		Status: models.DomainStatus(r.Status),
	}
	if r.UserID != nil {
		rec.UserID = *r.UserID
	}
	if r.NetlifySiteID != nil {
		rec.NetlifySiteID = *r.NetlifySiteID
	}
	if r.NetlifyVerified != nil {
		rec.NetlifyVerified = *r.NetlifyVerified
	}
	if r.BlogEnabled != nil {
		rec.BlogEnabled = *r.BlogEnabled
	}
	if r.SelectedTheme != nil {
		rec.SelectedTheme = *r.SelectedTheme
	}
	if r.ThemeName != nil {
		rec.ThemeName = *r.ThemeName
	}
	rec.CreatedAt = parseTimestamp(r.CreatedAt)
	rec.UpdatedAt = parseTimestamp(r.UpdatedAt)
	return rec
}

func parseTimestamp(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := dateparse.ParseAny(v)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// UpsertRow describes one domains-table write. Only non-zero fields are sent
// so a partial upsert does not clobber columns it does not own.
type UpsertRow struct {
	Domain          string
	UserID          string
	Status          models.DomainStatus
	NetlifySiteID   string
	NetlifyVerified bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (u UpsertRow) payload() map[string]any {
	p := map[string]any{
		"domain": models.NormalizeDomain(u.Domain),
	}
	if u.UserID != "" {
		p["user_id"] = u.UserID
	}
	if u.Status != "" {
		p["status"] = string(u.Status)
	}
	if u.NetlifySiteID != "" {
		p["netlify_site_id"] = u.NetlifySiteID
	}
	if u.NetlifyVerified {
		p["netlify_verified"] = true
	}
	if !u.CreatedAt.IsZero() {
		p["created_at"] = u.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !u.UpdatedAt.IsZero() {
		p["updated_at"] = u.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return p
}

// UpsertDomain creates or updates a single domain row keyed by normalized domain.
func (s *Store) UpsertDomain(ctx context.Context, row UpsertRow) error {
	return s.UpsertDomains(ctx, []UpsertRow{row})
}

// UpsertDomains writes a batch of rows in one request, merging on the domain
// key so repeated adds stay idempotent.
func (s *Store) UpsertDomains(ctx context.Context, rows []UpsertRow) error {
	if len(rows) == 0 {
		return nil
	}
	payload := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		payload = append(payload, r.payload())
	}
	q := url.Values{"on_conflict": {"domain"}}
	_, err := s.rest(ctx, http.MethodPost, "domains", q, payload, "resolution=merge-duplicates,return=minimal")
	return err
}

// DeleteDomain removes the row for a normalized domain. Deleting a domain
// that has no row is a no-op, not an error.
func (s *Store) DeleteDomain(ctx context.Context, domain string) error {
	q := url.Values{"domain": {"eq." + models.NormalizeDomain(domain)}}
	_, err := s.rest(ctx, http.MethodDelete, "domains", q, nil, "")
	return err
}

// GetDomain returns the row for a normalized domain, or nil when absent.
func (s *Store) GetDomain(ctx context.Context, domain string) (*models.DomainRecord, error) {
	q := url.Values{
		"domain": {"eq." + models.NormalizeDomain(domain)},
		"select": {"*"},
		"limit":  {"1"},
	}
	body, err := s.rest(ctx, http.MethodGet, "domains", q, nil, "")
	if err != nil {
		return nil, err
	}
	var rows []domainRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	rec := rows[0].toRecord()
	return &rec, nil
}

// ListDomainNames returns every stored domain, normalized, empties dropped.
func (s *Store) ListDomainNames(ctx context.Context) ([]string, error) {
	q := url.Values{"select": {"domain"}}
	body, err := s.rest(ctx, http.MethodGet, "domains", q, nil, "")
	if err != nil {
		return nil, err
	}
	var rows []domainRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		if d := models.NormalizeDomain(r.Domain); d != "" {
			names = append(names, d)
		}
	}
	return names, nil
}

// MarkVerified flips a batch of domains to dns_ready with netlify_verified
// set, stamping updated_at. Used as the bulk post-mark step.
func (s *Store) MarkVerified(ctx context.Context, domains []string, now time.Time) error {
	rows := make([]UpsertRow, 0, len(domains))
	for _, d := range domains {
		rows = append(rows, UpsertRow{
			Domain:          d,
			Status:          models.StatusDNSReady,
			NetlifyVerified: true,
			UpdatedAt:       now,
		})
	}
	return s.UpsertDomains(ctx, rows)
}
