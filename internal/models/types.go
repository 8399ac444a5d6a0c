package models

import "time"

// DomainStatus tracks the last known reconciliation state of a record.
type DomainStatus string

const (
	// StatusPending marks a record whose Netlify attachment has not been confirmed.
	StatusPending DomainStatus = "pending"
	// StatusDNSReady marks a record whose alias was accepted by Netlify.
	StatusDNSReady DomainStatus = "dns_ready"
)

// DomainRecord is a row in the domains table, keyed by normalized domain.
type DomainRecord struct {
	ID              string       `json:"id,omitempty"`
	Domain          string       `json:"domain"`
	UserID          string       `json:"user_id,omitempty"`
	Status          DomainStatus `json:"status,omitempty"`
	NetlifySiteID   string       `json:"netlify_site_id,omitempty"`
	NetlifyVerified bool         `json:"netlify_verified,omitempty"`
	BlogEnabled     bool         `json:"blog_enabled,omitempty"`
	SelectedTheme   string       `json:"selected_theme,omitempty"`
	ThemeName       string       `json:"theme_name,omitempty"`
	CreatedAt       time.Time    `json:"created_at,omitempty"`
	UpdatedAt       time.Time    `json:"updated_at,omitempty"`
}

// Validate performs minimal sanity checks.
func (d *DomainRecord) Validate() error {
	if d.Domain == "" {
		return ErrValidation("domain must be provided")
	}
	if d.Domain != NormalizeDomain(d.Domain) {
		return ErrValidation("domain must be stored in normalized form")
	}
	return nil
}

// SiteConfig is the subset of the Netlify site resource this service reads.
type SiteConfig struct {
	ID            string   `json:"id"`
	Name          string   `json:"name,omitempty"`
	URL           string   `json:"url,omitempty"`
	SSLURL        string   `json:"ssl_url,omitempty"`
	CustomDomain  string   `json:"custom_domain,omitempty"`
	DomainAliases []string `json:"domain_aliases"`
}

// SiteURL prefers the HTTPS URL when the site reports one.
func (s SiteConfig) SiteURL() string {
	if s.SSLURL != "" {
		return s.SSLURL
	}
	return s.URL
}

// HasDomain reports whether the normalized domain is already attached to the
// site, either as the primary custom domain or as an alias.
func (s SiteConfig) HasDomain(domain string) bool {
	if s.CustomDomain != "" && NormalizeDomain(s.CustomDomain) == domain {
		return true
	}
	for _, a := range s.DomainAliases {
		if a == domain {
			return true
		}
	}
	return false
}

// ErrValidation signals invalid user input.
type ErrValidation string

func (e ErrValidation) Error() string {
	return string(e)
}
