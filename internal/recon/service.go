// Package recon converges the domains table and the Netlify site's domain
// list. The live Netlify configuration is always read before any mutation and
// treated as the authority; local rows follow it.
package recon

import (
	"context"
	"fmt"

	"backlinkoo/domains/internal/cloudflare"
	"backlinkoo/domains/internal/config"
	"backlinkoo/domains/internal/models"
	"backlinkoo/domains/internal/netlify"
	"backlinkoo/domains/internal/postops"
	"backlinkoo/domains/internal/store"

	"github.com/sirupsen/logrus"
)

// errOwnedByAnotherAccount is the user-facing form of a Netlify ownership
// rejection; the generic body text is not actionable for end users.
const errOwnedByAnotherAccount = "Domain is owned by another Netlify account"

// Service is the reconciliation engine.
type Service struct {
	cfg       *config.Config
	netlify   *netlify.Client
	store     *store.Store
	registrar *cloudflare.Registrar
	post      *postops.Runner
	log       *logrus.Logger
}

// New wires the engine to its collaborators.
func New(cfg *config.Config, nf *netlify.Client, st *store.Store, reg *cloudflare.Registrar, log *logrus.Logger) *Service {
	return &Service{
		cfg:       cfg,
		netlify:   nf,
		store:     st,
		registrar: reg,
		post:      postops.NewRunner(log),
		log:       log,
	}
}

// AddResult is the outcome of a single-domain add.
type AddResult struct {
	Success        bool     `json:"success"`
	Message        string   `json:"message,omitempty"`
	UpdatedAliases []string `json:"updatedAliases,omitempty"`
	SiteURL        string   `json:"site_url,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// AddDomain attaches one domain to the site. Apex domains are first offered
// as the primary custom domain; subdomains go straight to the alias list.
// Adding a domain that is already attached is an idempotent success.
func (s *Service) AddDomain(ctx context.Context, rawDomain, userID string) AddResult {
	if err := s.cfg.RequireNetlify(); err != nil {
		return AddResult{Error: err.Error()}
	}
	clean := models.NormalizeDomain(rawDomain)
	if clean == "" {
		return AddResult{Error: "Invalid domain"}
	}

	s.log.WithFields(logrus.Fields{"event": "domains:add:start", "domain": clean, "user_id": userID}).Info("add domain")

	site, err := s.netlify.GetSite(ctx)
	if err != nil {
		return AddResult{Error: err.Error()}
	}
	currentAliases := site.DomainAliases
	s.log.WithFields(logrus.Fields{"event": "domains:add:aliases_before", "count": len(currentAliases)}).Info("aliases before")

	if site.HasDomain(clean) {
		s.log.WithFields(logrus.Fields{"event": "domains:add:already_present", "domain": clean}).Info("already present")
		s.upsertOwned(ctx, clean, userID)
		s.runFollowUps(ctx, clean)
		return AddResult{
			Success:        true,
			Message:        fmt.Sprintf("Domain %s already present", clean),
			UpdatedAliases: currentAliases,
		}
	}

	if models.IsApex(clean) {
		s.log.WithFields(logrus.Fields{"event": "domains:add:attempt_set_custom", "domain": clean}).Info("attempting primary")
		updated, err := s.netlify.PatchCustomDomain(ctx, clean)
		if err == nil {
			s.upsertOwned(ctx, clean, userID)
			s.runFollowUps(ctx, clean)
			return AddResult{
				Success:        true,
				Message:        fmt.Sprintf("Primary domain set to %s", clean),
				UpdatedAliases: updated.DomainAliases,
				SiteURL:        updated.SiteURL(),
			}
		}
		if netlify.IsOwnershipConflict(err) {
			// the alias path would be rejected the same way; a clear
			// failure beats a confusing partial state
			return AddResult{Error: errOwnedByAnotherAccount}
		}
		s.log.WithFields(logrus.Fields{"event": "domains:add:custom_failed", "error": err.Error()}).Warn("primary attempt failed, falling back to alias")
	}

	next := append(append([]string{}, currentAliases...), clean)
	updated, err := s.netlify.PatchAliases(ctx, next)
	if err != nil {
		s.log.WithFields(logrus.Fields{"event": "domains:add:error", "domain": clean, "error": err.Error()}).Warn("alias patch failed")
		if netlify.IsOwnershipConflict(err) {
			return AddResult{Error: errOwnedByAnotherAccount}
		}
		return AddResult{Error: err.Error()}
	}
	s.log.WithFields(logrus.Fields{"event": "domains:add:patched", "new_count": len(updated.DomainAliases)}).Info("aliases patched")
	s.upsertOwned(ctx, clean, userID)
	s.runFollowUps(ctx, clean)
	return AddResult{
		Success:        true,
		UpdatedAliases: updated.DomainAliases,
		SiteURL:        updated.SiteURL(),
	}
}

// RemoveResult is the outcome of a single-domain removal.
type RemoveResult struct {
	Success        bool     `json:"success"`
	Message        string   `json:"message,omitempty"`
	UpdatedAliases []string `json:"updatedAliases,omitempty"`
	SiteURL        string   `json:"site_url,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// RemoveDomain detaches an alias and deletes the local row. A domain absent
// from the alias list still gets its row deleted and reports success. A
// domain that is the primary custom domain is not touched on the Netlify
// side; only alias removal is supported here.
func (s *Service) RemoveDomain(ctx context.Context, rawDomain string) RemoveResult {
	if err := s.cfg.RequireNetlify(); err != nil {
		return RemoveResult{Error: err.Error()}
	}
	clean := models.NormalizeDomain(rawDomain)
	if clean == "" {
		return RemoveResult{Error: "Invalid domain"}
	}

	site, err := s.netlify.GetSite(ctx)
	if err != nil {
		return RemoveResult{Error: err.Error()}
	}
	currentAliases := site.DomainAliases

	present := false
	next := make([]string, 0, len(currentAliases))
	for _, a := range currentAliases {
		if a == clean {
			present = true
			continue
		}
		next = append(next, a)
	}
	if !present {
		// clean up any stale row regardless
		if err := s.store.DeleteDomain(ctx, clean); err != nil {
			s.log.WithFields(logrus.Fields{"domain": clean, "error": err.Error()}).Warn("domain row delete failed")
		}
		return RemoveResult{
			Success:        true,
			Message:        fmt.Sprintf("Domain %s not in aliases", clean),
			UpdatedAliases: currentAliases,
		}
	}

	updated, err := s.netlify.PatchAliases(ctx, next)
	if err != nil {
		return RemoveResult{Error: err.Error()}
	}
	if err := s.store.DeleteDomain(ctx, clean); err != nil {
		s.log.WithFields(logrus.Fields{"domain": clean, "error": err.Error()}).Warn("domain row delete failed")
	}
	return RemoveResult{
		Success:        true,
		UpdatedAliases: updated.DomainAliases,
		SiteURL:        updated.SiteURL(),
	}
}

// ListResult is the read-only alias listing.
type ListResult struct {
	Success bool     `json:"success"`
	Aliases []string `json:"aliases"`
	SiteID  string   `json:"site_id,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// ListDomains returns the site's alias list verbatim.
func (s *Service) ListDomains(ctx context.Context) ListResult {
	if err := s.cfg.RequireNetlify(); err != nil {
		return ListResult{Error: err.Error()}
	}
	site, err := s.netlify.GetSite(ctx)
	if err != nil {
		return ListResult{Error: err.Error()}
	}
	aliases := site.DomainAliases
	if aliases == nil {
		aliases = []string{}
	}
	return ListResult{Success: true, Aliases: aliases, SiteID: site.ID}
}

// SyncResult is the outcome of an additive alias convergence.
type SyncResult struct {
	Success        bool     `json:"success"`
	UpdatedAliases []string `json:"updatedAliases,omitempty"`
	Added          int      `json:"added"`
	Error          string   `json:"error,omitempty"`
}

// SyncAliases patches the site once with the union of its current aliases and
// the supplied list, then upserts a row per supplied domain. Sync never
// removes an alias; convergence is additive only.
func (s *Service) SyncAliases(ctx context.Context, rawDomains []string, userID string) SyncResult {
	if err := s.cfg.RequireNetlify(); err != nil {
		return SyncResult{Error: err.Error()}
	}
	site, err := s.netlify.GetSite(ctx)
	if err != nil {
		return SyncResult{Error: err.Error()}
	}
	currentAliases := site.DomainAliases
	incoming := models.NormalizeDomainSet(rawDomains)
	next := models.UnionAliases(currentAliases, incoming)

	s.log.WithFields(logrus.Fields{
		"event":          "domains:sync_aliases:start",
		"incoming_count": len(incoming),
		"current_count":  len(currentAliases),
	}).Info("sync aliases")

	updated, err := s.netlify.PatchAliases(ctx, next)
	if err != nil {
		s.log.WithFields(logrus.Fields{"event": "domains:sync_aliases:error", "error": err.Error()}).Warn("sync patch failed")
		return SyncResult{Error: err.Error()}
	}

	for _, d := range incoming {
		s.upsertOwned(ctx, d, userID)
		s.post.Run(ctx, postops.BlogSetup{Store: s.store, Domain: d, Log: s.log})
	}

	s.log.WithFields(logrus.Fields{"event": "domains:sync_aliases:patched", "final_count": len(updated.DomainAliases)}).Info("sync patched")
	return SyncResult{
		Success:        true,
		UpdatedAliases: updated.DomainAliases,
		Added:          countNew(currentAliases, incoming),
	}
}

// SyncFromDB converges Netlify toward the union of its aliases and every
// stored domain, then re-stamps netlify_site_id on the stored rows.
func (s *Service) SyncFromDB(ctx context.Context) SyncResult {
	if err := s.cfg.RequireNetlify(); err != nil {
		return SyncResult{Error: err.Error()}
	}
	site, err := s.netlify.GetSite(ctx)
	if err != nil {
		return SyncResult{Error: err.Error()}
	}
	currentAliases := site.DomainAliases

	dbDomains, err := s.store.ListDomainNames(ctx)
	if err != nil {
		return SyncResult{Error: fmt.Sprintf("Supabase read failed: %v", err)}
	}

	next := models.UnionAliases(currentAliases, dbDomains)
	updated, err := s.netlify.PatchAliases(ctx, next)
	if err != nil {
		return SyncResult{Error: err.Error()}
	}

	rows := make([]store.UpsertRow, 0, len(dbDomains))
	for _, d := range dbDomains {
		rows = append(rows, store.UpsertRow{Domain: d, NetlifySiteID: s.cfg.NetlifySiteID})
	}
	if err := s.store.UpsertDomains(ctx, rows); err != nil {
		s.log.WithField("error", err.Error()).Warn("site id re-stamp failed")
	}

	return SyncResult{
		Success:        true,
		UpdatedAliases: updated.DomainAliases,
		Added:          countNew(currentAliases, dbDomains),
	}
}

// CronResult is the outcome of the scheduler-driven convergence pass.
type CronResult struct {
	Success               bool     `json:"success"`
	TotalDomains          int      `json:"totalDomains,omitempty"`
	UpdatedNetlifyAliases []string `json:"updatedNetlifyAliases,omitempty"`
	SyncedDomains         int      `json:"syncedDomains"`
	Error                 string   `json:"error,omitempty"`
}

// CronSync is the periodic convergence pass: stamp every stored row with the
// site ID and patch Netlify only when some stored domain is missing there.
func (s *Service) CronSync(ctx context.Context) CronResult {
	if err := s.cfg.RequireNetlify(); err != nil {
		return CronResult{Error: err.Error()}
	}
	site, err := s.netlify.GetSite(ctx)
	if err != nil {
		return CronResult{Error: err.Error()}
	}
	netlifyAliases := site.DomainAliases

	dbDomains, err := s.store.ListDomainNames(ctx)
	if err != nil {
		return CronResult{Error: err.Error()}
	}

	rows := make([]store.UpsertRow, 0, len(dbDomains))
	for _, d := range dbDomains {
		rows = append(rows, store.UpsertRow{Domain: d, NetlifySiteID: s.cfg.NetlifySiteID})
	}
	if len(rows) > 0 {
		if err := s.store.UpsertDomains(ctx, rows); err != nil {
			return CronResult{Error: err.Error()}
		}
	}

	missing := make([]string, 0)
	for _, d := range dbDomains {
		if !contains(netlifyAliases, d) {
			missing = append(missing, d)
		}
	}

	updatedAliases := netlifyAliases
	if len(missing) > 0 {
		updated, err := s.netlify.PatchAliases(ctx, models.UnionAliases(netlifyAliases, missing))
		if err != nil {
			return CronResult{Error: err.Error()}
		}
		updatedAliases = updated.DomainAliases
	}

	return CronResult{
		Success:               true,
		TotalDomains:          len(dbDomains),
		UpdatedNetlifyAliases: updatedAliases,
		SyncedDomains:         len(missing),
	}
}

// upsertOwned writes the canonical row for a freshly attached domain. A
// persistence failure does not undo a Netlify change that already landed, so
// it is logged rather than surfaced.
func (s *Service) upsertOwned(ctx context.Context, domain, userID string) {
	err := s.store.UpsertDomain(ctx, store.UpsertRow{
		Domain:        domain,
		UserID:        userID,
		NetlifySiteID: s.cfg.NetlifySiteID,
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{"domain": domain, "error": err.Error()}).Warn("domain row upsert failed")
	}
}

// runFollowUps executes the best-effort post-commit steps.
func (s *Service) runFollowUps(ctx context.Context, domain string) {
	s.post.Run(ctx,
		postops.BlogSetup{Store: s.store, Domain: domain, Log: s.log},
		postops.CustomHostname{Registrar: s.registrar, Domain: domain},
	)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func countNew(current []string, incoming []string) int {
	n := 0
	for _, d := range incoming {
		if !contains(current, d) {
			n++
		}
	}
	return n
}
