// Package postops runs fire-and-forget follow-ups after a domain operation's
// outcome is already decided. Task failures are logged and swallowed; the
// primary operation's result never depends on them.
package postops

import (
	"context"
	"errors"
	"time"

	"backlinkoo/domains/internal/cloudflare"
	"backlinkoo/domains/internal/store"

	"github.com/sirupsen/logrus"
)

// Task is one best-effort post-commit step.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// Runner executes tasks in order, logging failures at Warn.
type Runner struct {
	log *logrus.Logger
}

// NewRunner builds a task runner.
func NewRunner(log *logrus.Logger) *Runner {
	return &Runner{log: log}
}

// Run executes every task regardless of earlier failures.
func (r *Runner) Run(ctx context.Context, tasks ...Task) {
	for _, t := range tasks {
		if err := t.Run(ctx); err != nil {
			r.log.WithFields(logrus.Fields{"task": t.Name(), "error": err.Error()}).Warn("post-op task failed")
		}
	}
}

// BlogSetup ensures a domain's row is blog-enabled with a theme assigned,
// and seeds an active theme row when the optional theme table exists.
type BlogSetup struct {
	Store  *store.Store
	Domain string
	Log    *logrus.Logger
}

// Name implements Task.
func (b BlogSetup) Name() string { return "blog-setup" }

// Run implements Task.
func (b BlogSetup) Run(ctx context.Context) error {
	rec, err := b.Store.GetDomain(ctx, b.Domain)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	if err := b.Store.EnableBlog(ctx, rec.ID, rec.SelectedTheme == "", time.Now().UTC()); err != nil {
		return err
	}

	active, err := b.Store.HasActiveTheme(ctx, rec.ID)
	if errors.Is(err, store.ErrTableMissing) {
		// older projects only carry the theme fields on the domain row
		b.Log.Warn("domain_blog_themes table not available; using domain.selected_theme only")
		return nil
	}
	if err != nil {
		return err
	}
	if active {
		return nil
	}
	if err := b.Store.InsertActiveTheme(ctx, rec.ID); err != nil && !errors.Is(err, store.ErrTableMissing) {
		return err
	}
	return nil
}

// CustomHostname registers the domain with the Cloudflare zone.
type CustomHostname struct {
	Registrar *cloudflare.Registrar
	Domain    string
}

// Name implements Task.
func (c CustomHostname) Name() string { return "cloudflare-custom-hostname" }

// Run implements Task.
func (c CustomHostname) Run(ctx context.Context) error {
	return c.Registrar.CreateCustomHostname(ctx, c.Domain)
}
