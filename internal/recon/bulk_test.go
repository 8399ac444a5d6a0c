package recon

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestAddBulkRejectsEmptyBatch(t *testing.T) {
	nf := &fakeNetlify{}
	fx := newFixture(t, nf, &fakeSupabase{})

	result := fx.svc.AddBulk(context.Background(), []string{"", "   ", "https://"}, "u1")
	if result.Success || result.Error != "No valid domains provided" {
		t.Fatalf("expected validation failure, got %+v", result)
	}
	if len(nf.callList()) != 0 {
		t.Fatal("validation failure must not reach the network")
	}
}

func TestAddBulkPromotesFirstApexAndSkipsItAsAlias(t *testing.T) {
	nf := &fakeNetlify{}
	sb := &fakeSupabase{}
	fx := newFixture(t, nf, sb)

	result := fx.svc.AddBulk(context.Background(), []string{"a.com", "b.co", "sub.a.com"}, "u1")
	if !result.Success {
		t.Fatalf("bulk failed: %+v", result)
	}
	if result.Summary.Netlify.Result == nil || result.Summary.Netlify.Result.CustomSet != "a.com" {
		t.Fatalf("expected a.com promoted to primary: %+v", result.Summary.Netlify)
	}
	aliases := nf.currentAliases()
	if contains(aliases, "a.com") {
		t.Fatalf("promoted apex must not appear as alias: %v", aliases)
	}
	if !contains(aliases, "b.co") || !contains(aliases, "sub.a.com") {
		t.Fatalf("expected remaining batch as aliases: %v", aliases)
	}
}

func TestAddBulkBranchesSettleIndependently(t *testing.T) {
	nf := &fakeNetlify{}
	sb := &fakeSupabase{writeFail: true}
	fx := newFixture(t, nf, sb)

	result := fx.svc.AddBulk(context.Background(), []string{"sub.a.com"}, "u1")
	if !result.Success {
		t.Fatalf("bulk must report success with per-branch detail: %+v", result)
	}
	if result.Summary.Supabase.OK {
		t.Fatal("supabase branch should have failed")
	}
	if result.Summary.Supabase.Error == "" {
		t.Fatal("supabase branch failure must carry its error")
	}
	if !result.Summary.Netlify.OK {
		t.Fatalf("netlify branch should have settled clean: %+v", result.Summary.Netlify)
	}
	if !contains(nf.currentAliases(), "sub.a.com") {
		t.Fatal("netlify convergence must proceed despite the database failure")
	}
}

func TestAddBulkNetlifyFailureReportedInBranch(t *testing.T) {
	nf := &fakeNetlify{getStatus: 500}
	sb := &fakeSupabase{}
	fx := newFixture(t, nf, sb)

	result := fx.svc.AddBulk(context.Background(), []string{"sub.a.com"}, "u1")
	if !result.Success {
		t.Fatalf("bulk must report success with per-branch detail: %+v", result)
	}
	if result.Summary.Netlify.OK || result.Summary.Netlify.Error == "" {
		t.Fatalf("netlify branch should carry the failure: %+v", result.Summary.Netlify)
	}
	if !result.Summary.Supabase.OK {
		t.Fatal("supabase branch must settle independently")
	}
	// exhausted retry: 3 GET attempts, no PATCH
	if got := len(nf.callList()); got != 3 {
		t.Fatalf("expected 3 retried GET attempts, got %d: %v", got, nf.callList())
	}
}

func TestAddBulkMarksRowsVerifiedAfterConvergence(t *testing.T) {
	nf := &fakeNetlify{}
	sb := &fakeSupabase{}
	fx := newFixture(t, nf, sb)

	result := fx.svc.AddBulk(context.Background(), []string{"sub.a.com", "Sub.A.com", "other.b.co"}, "u1")
	if !result.Success {
		t.Fatalf("bulk failed: %+v", result)
	}
	if got := result.Summary.Domains; len(got) != 2 {
		t.Fatalf("expected deduplicated batch, got %v", got)
	}

	var sawPending, sawVerified bool
	sb.mu.Lock()
	defer sb.mu.Unlock()
	for i, call := range sb.calls {
		if !strings.HasPrefix(call, "POST /rest/v1/domains") {
			continue
		}
		var rows []map[string]any
		if err := json.Unmarshal(sb.bodies[i], &rows); err != nil || len(rows) == 0 {
			continue
		}
		switch rows[0]["status"] {
		case "pending":
			sawPending = true
		case "dns_ready":
			sawVerified = true
			if rows[0]["netlify_verified"] != true {
				t.Fatalf("dns_ready rows must set netlify_verified: %v", rows[0])
			}
		}
	}
	if !sawPending {
		t.Fatal("expected an initial pending upsert")
	}
	if !sawVerified {
		t.Fatal("expected a post-convergence dns_ready upsert")
	}
}

func TestAddBulkOwnershipConflictRecordedInAttempts(t *testing.T) {
	nf := &fakeNetlify{
		customPatchStatus: 422,
		customPatchBody:   `{"errors":["a.com is owned by another account"]}`,
	}
	fx := newFixture(t, nf, &fakeSupabase{})

	result := fx.svc.AddBulk(context.Background(), []string{"a.com", "sub.b.co"}, "")
	if !result.Success {
		t.Fatalf("bulk failed: %+v", result)
	}
	outcome := result.Summary.Netlify.Result
	if outcome == nil || len(outcome.Attempts) == 0 {
		t.Fatalf("expected a recorded set_custom attempt: %+v", result.Summary.Netlify)
	}
	attempt := outcome.Attempts[0]
	if attempt.Action != "set_custom" || attempt.Error != "Domain is owned by another Netlify account" {
		t.Fatalf("unexpected attempt: %+v", attempt)
	}
	if attempt.Status != 422 {
		t.Fatalf("attempt must carry the HTTP status: %+v", attempt)
	}
	// the batch still converges as aliases, the apex included this time
	if !contains(nf.currentAliases(), "sub.b.co") {
		t.Fatalf("expected aliases patched despite primary failure: %v", nf.currentAliases())
	}
}
