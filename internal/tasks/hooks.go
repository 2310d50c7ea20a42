package tasks

import (
	"context"
	"errors"

	"github.com/ShayCichocki/crew/pkg/models"
)

// Credentials are opaque key/value secrets resolved for a team member.
// The tracker never inspects them; it only hands them to hooks.
type Credentials map[string]string

// CredentialLookup resolves credentials for a roster id.
type CredentialLookup interface {
	Lookup(ctx context.Context, agentID string) (Credentials, error)
}

// CredentialLookupFunc adapts a function to CredentialLookup.
type CredentialLookupFunc func(ctx context.Context, agentID string) (Credentials, error)

// Lookup calls f.
func (f CredentialLookupFunc) Lookup(ctx context.Context, agentID string) (Credentials, error) {
	return f(ctx, agentID)
}

// HookContext is passed to every lifecycle hook.
type HookContext struct {
	// Task is a snapshot of the task after the local transition.
	Task *models.Task
	// AssigneeCredentials may be nil if no lookup is configured or it failed.
	AssigneeCredentials Credentials
	// AssignerCredentials may be nil if no lookup is configured or it failed.
	AssignerCredentials Credentials
}

// TicketRef identifies a ticket created in an external tracker.
type TicketRef struct {
	ExternalTicketID  string
	ExternalTicketURL string
}

// Hooks are best-effort side channels into external systems (ticket trackers
// and the like). Errors are logged and never affect local task state.
type Hooks interface {
	OnCreate(ctx context.Context, hc HookContext) (*TicketRef, error)
	OnStart(ctx context.Context, hc HookContext) error
	OnComplete(ctx context.Context, hc HookContext) error
	OnFail(ctx context.Context, hc HookContext) error
}

// HookFuncs implements Hooks with optional function fields. Nil fields are no-ops.
type HookFuncs struct {
	Create   func(ctx context.Context, hc HookContext) (*TicketRef, error)
	Start    func(ctx context.Context, hc HookContext) error
	Complete func(ctx context.Context, hc HookContext) error
	Fail     func(ctx context.Context, hc HookContext) error
}

func (h HookFuncs) OnCreate(ctx context.Context, hc HookContext) (*TicketRef, error) {
	if h.Create == nil {
		return nil, nil
	}
	return h.Create(ctx, hc)
}

func (h HookFuncs) OnStart(ctx context.Context, hc HookContext) error {
	if h.Start == nil {
		return nil
	}
	return h.Start(ctx, hc)
}

func (h HookFuncs) OnComplete(ctx context.Context, hc HookContext) error {
	if h.Complete == nil {
		return nil
	}
	return h.Complete(ctx, hc)
}

func (h HookFuncs) OnFail(ctx context.Context, hc HookContext) error {
	if h.Fail == nil {
		return nil
	}
	return h.Fail(ctx, hc)
}

// LoggingHooks writes one line per lifecycle transition.
type LoggingHooks struct {
	Logf func(format string, args ...interface{})
}

func (h LoggingHooks) logf(format string, args ...interface{}) {
	if h.Logf != nil {
		h.Logf(format, args...)
	}
}

func (h LoggingHooks) OnCreate(_ context.Context, hc HookContext) (*TicketRef, error) {
	h.logf("[tasks] created %s for %s by %s: %s", hc.Task.ID, hc.Task.Assignee, hc.Task.AssignedBy, hc.Task.Description)
	return nil, nil
}

func (h LoggingHooks) OnStart(_ context.Context, hc HookContext) error {
	h.logf("[tasks] started %s (%s)", hc.Task.ID, hc.Task.Assignee)
	return nil
}

func (h LoggingHooks) OnComplete(_ context.Context, hc HookContext) error {
	h.logf("[tasks] completed %s (%s)", hc.Task.ID, hc.Task.Assignee)
	return nil
}

func (h LoggingHooks) OnFail(_ context.Context, hc HookContext) error {
	h.logf("[tasks] failed %s (%s): %s", hc.Task.ID, hc.Task.Assignee, hc.Task.Error)
	return nil
}

// MultiHooks fans each call out to every hook in order. For OnCreate the first
// non-nil ticket wins; all errors are joined.
type MultiHooks []Hooks

func (m MultiHooks) OnCreate(ctx context.Context, hc HookContext) (*TicketRef, error) {
	var ref *TicketRef
	var errs []error
	for _, h := range m {
		r, err := h.OnCreate(ctx, hc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ref == nil && r != nil {
			ref = r
		}
	}
	return ref, errors.Join(errs...)
}

func (m MultiHooks) OnStart(ctx context.Context, hc HookContext) error {
	return m.each(func(h Hooks) error { return h.OnStart(ctx, hc) })
}

func (m MultiHooks) OnComplete(ctx context.Context, hc HookContext) error {
	return m.each(func(h Hooks) error { return h.OnComplete(ctx, hc) })
}

func (m MultiHooks) OnFail(ctx context.Context, hc HookContext) error {
	return m.each(func(h Hooks) error { return h.OnFail(ctx, hc) })
}

func (m MultiHooks) each(fn func(Hooks) error) error {
	var errs []error
	for _, h := range m {
		if err := fn(h); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
