package recon

import (
	"context"
	"errors"
	"sync"
	"time"

	"backlinkoo/domains/internal/models"
	"backlinkoo/domains/internal/netlify"
	"backlinkoo/domains/internal/store"

	"github.com/sirupsen/logrus"
)

// BulkAttempt records a non-fatal Netlify step that did not land.
type BulkAttempt struct {
	Action string `json:"action"`
	Status int    `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NetlifyOutcome is the detail of the bulk Netlify convergence branch.
type NetlifyOutcome struct {
	CustomSet      string        `json:"customSet,omitempty"`
	PatchedAliases []string      `json:"patchedAliases,omitempty"`
	Attempts       []BulkAttempt `json:"attempts,omitempty"`
}

// BulkBranch is one side of the settle-both join.
type BulkBranch struct {
	OK     bool            `json:"ok"`
	Error  string          `json:"error,omitempty"`
	Result *NetlifyOutcome `json:"result,omitempty"`
}

// BulkSummary reports both branch outcomes separately; one branch failing
// never cancels or masks the other.
type BulkSummary struct {
	Domains  []string   `json:"domains"`
	Supabase BulkBranch `json:"supabase"`
	Netlify  BulkBranch `json:"netlify"`
}

// BulkResult is the top-level bulk outcome. Except for validation and
// configuration failures it is always Success=true with per-branch detail;
// errors here are data, not transport failures.
type BulkResult struct {
	Success bool         `json:"success"`
	Summary *BulkSummary `json:"summary,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// AddBulk attaches a batch of domains: all rows are upserted as pending while
// the Netlify convergence runs concurrently, then rows are marked dns_ready
// when the Netlify branch settled clean. Netlify calls in this path retry
// transient failures with exponential backoff.
func (s *Service) AddBulk(ctx context.Context, rawDomains []string, userID string) BulkResult {
	if err := s.cfg.RequireNetlify(); err != nil {
		return BulkResult{Error: err.Error()}
	}
	incoming := models.NormalizeDomainSet(rawDomains)
	if len(incoming) == 0 {
		return BulkResult{Error: "No valid domains provided"}
	}

	now := time.Now().UTC()
	rows := make([]store.UpsertRow, 0, len(incoming))
	for _, d := range incoming {
		rows = append(rows, store.UpsertRow{
			Domain:        d,
			UserID:        userID,
			Status:        models.StatusPending,
			NetlifySiteID: s.cfg.NetlifySiteID,
			CreatedAt:     now,
		})
	}

	var (
		wg             sync.WaitGroup
		supabaseBranch BulkBranch
		netlifyBranch  BulkBranch
	)
	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := s.store.UpsertDomains(ctx, rows); err != nil {
			supabaseBranch = BulkBranch{Error: err.Error()}
			return
		}
		supabaseBranch = BulkBranch{OK: true}
	}()

	go func() {
		defer wg.Done()
		netlifyBranch = s.convergeBulk(ctx, incoming)
	}()

	wg.Wait()

	summary := &BulkSummary{Domains: incoming, Supabase: supabaseBranch, Netlify: netlifyBranch}

	if netlifyBranch.OK && netlifyBranch.Result != nil {
		if err := s.store.MarkVerified(ctx, incoming, time.Now().UTC()); err != nil {
			// non-critical: the convergence itself already settled
			s.log.WithField("error", err.Error()).Warn("post-bulk DB marking failed")
		}
	}

	return BulkResult{Success: true, Summary: summary}
}

// convergeBulk runs the Netlify side of a bulk add: optionally promote the
// first apex in the batch to the primary custom domain, then issue at most
// one alias PATCH with the union of current aliases and the whole batch.
func (s *Service) convergeBulk(ctx context.Context, incoming []string) BulkBranch {
	client := s.netlify.Retrying(s.cfg.RetryAttempts, s.cfg.RetryBaseDelay)

	site, err := client.GetSite(ctx)
	if err != nil {
		return BulkBranch{Error: err.Error()}
	}
	currentAliases := site.DomainAliases
	outcome := &NetlifyOutcome{}

	var firstApex string
	for _, d := range incoming {
		if models.IsApex(d) {
			firstApex = d
			break
		}
	}

	if firstApex != "" {
		_, err := client.PatchCustomDomain(ctx, firstApex)
		if err == nil {
			outcome.CustomSet = firstApex
			// a primary promotion can reshape the alias list; re-read
			// before computing the union
			refreshed, err := client.GetSite(ctx)
			if err == nil {
				currentAliases = refreshed.DomainAliases
			} else {
				outcome.Attempts = append(outcome.Attempts, BulkAttempt{Action: "refresh_site", Error: err.Error()})
			}
		} else {
			attempt := BulkAttempt{Action: "set_custom", Error: err.Error()}
			var patchErr *netlify.PatchError
			if errors.As(err, &patchErr) {
				attempt.Status = patchErr.Status
			}
			if netlify.IsOwnershipConflict(err) {
				attempt.Error = errOwnedByAnotherAccount
			}
			outcome.Attempts = append(outcome.Attempts, attempt)
		}
	}

	// the batch's promoted apex now lives in custom_domain; the union skips
	// anything already attached
	remaining := make([]string, 0, len(incoming))
	for _, d := range incoming {
		if d == outcome.CustomSet {
			continue
		}
		remaining = append(remaining, d)
	}
	next := models.UnionAliases(currentAliases, remaining)
	if len(next) > len(currentAliases) {
		patched, err := client.PatchAliases(ctx, next)
		if err != nil {
			outcome.Attempts = append(outcome.Attempts, BulkAttempt{Action: "patch_aliases_failed", Error: err.Error()})
		} else {
			outcome.PatchedAliases = patched.DomainAliases
		}
	}

	s.log.WithFields(logrus.Fields{
		"event":      "domains:add_bulk:converged",
		"custom_set": outcome.CustomSet,
		"patched":    len(outcome.PatchedAliases),
		"attempts":   len(outcome.Attempts),
	}).Info("bulk convergence settled")

	return BulkBranch{OK: true, Result: outcome}
}
