package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"
)

// Default theme assigned when a domain becomes blog-enabled without one.
const (
	DefaultTheme          = "HTML"
	DefaultActiveThemeID  = "minimal"
	DefaultActiveThemeTag = "Minimal Clean"
)

// EnableBlog flips blog_enabled for an existing row and assigns the default
// theme when none was chosen yet.
func (s *Store) EnableBlog(ctx context.Context, rowID string, needsTheme bool, now time.Time) error {
	updates := map[string]any{
		"blog_enabled": true,
		"updated_at":   now.UTC().Format(time.RFC3339),
	}
	if needsTheme {
		updates["selected_theme"] = DefaultTheme
		updates["theme_name"] = DefaultTheme
	}
	q := url.Values{"id": {"eq." + rowID}}
	_, err := s.rest(ctx, http.MethodPatch, "domains", q, updates, "return=minimal")
	return err
}

// HasActiveTheme reports whether the domain already has an active row in the
// domain_blog_themes table. Callers tolerate ErrTableMissing: the table is
// optional and older projects do not carry it.
func (s *Store) HasActiveTheme(ctx context.Context, domainID string) (bool, error) {
	q := url.Values{
		"domain_id": {"eq." + domainID},
		"is_active": {"eq.true"},
		"select":    {"id"},
		"limit":     {"1"},
	}
	body, err := s.rest(ctx, http.MethodGet, "domain_blog_themes", q, nil, "")
	if err != nil {
		return false, err
	}
	var rows []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// InsertActiveTheme seeds the default active theme row for a domain.
func (s *Store) InsertActiveTheme(ctx context.Context, domainID string) error {
	payload := map[string]any{
		"domain_id":  domainID,
		"theme_id":   DefaultActiveThemeID,
		"theme_name": DefaultActiveThemeTag,
		"is_active":  true,
	}
	_, err := s.rest(ctx, http.MethodPost, "domain_blog_themes", nil, payload, "return=minimal")
	return err
}
