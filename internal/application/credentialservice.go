// Package application contains the credential distribution engine and the
// use-case services that feed it snapshots.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/sharedlogin/internal/domain/model"
	"github.com/ericfisherdev/sharedlogin/internal/domain/port/driven"
)

const demoAlert = "Demo mode: fictitious data."

// CredentialService loads a fresh snapshot from the stores on every call and
// runs the distribution engine over it. It holds no assignment state.
type CredentialService struct {
	credStore    driven.CredentialStore
	subStore     driven.SubscriberStore
	observer     driven.AssignmentObserver
	demoPrefixes []string
	logger       *slog.Logger
	now          func() time.Time
}

// NewCredentialService creates a CredentialService. observer may be nil.
// Subscribers whose phone starts with one of demoPrefixes are served a
// synthetic credential instead of a real one.
func NewCredentialService(
	credStore driven.CredentialStore,
	subStore driven.SubscriberStore,
	observer driven.AssignmentObserver,
	demoPrefixes []string,
	logger *slog.Logger,
) *CredentialService {
	if observer == nil {
		observer = noopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialService{
		credStore:    credStore,
		subStore:     subStore,
		observer:     observer,
		demoPrefixes: demoPrefixes,
		logger:       logger,
		now:          time.Now,
	}
}

// Snapshot fetches credentials and subscribers concurrently. The two reads
// are not isolated from each other.
func (s *CredentialService) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		creds, err := s.credStore.List(gctx)
		if err != nil {
			return fmt.Errorf("fetch credentials: %w", err)
		}
		snap.Credentials = creds
		return nil
	})
	g.Go(func() error {
		subs, err := s.subStore.List(gctx)
		if err != nil {
			return fmt.Errorf("fetch subscribers: %w", err)
		}
		snap.Subscribers = subs
		return nil
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// AssignmentFor resolves the credential for the subscriber with the given
// phone. An unknown phone is not an error: the engine falls back to the
// oldest eligible credential.
func (s *CredentialService) AssignmentFor(ctx context.Context, phone, service string) (model.Assignment, error) {
	if s.isDemo(phone) {
		return s.demoAssignment(service), nil
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		return model.Assignment{}, err
	}

	sub, ok := findByPhone(snap.Subscribers, phone)
	if !ok {
		s.logger.Warn("subscriber not in snapshot, using fallback credential", "phone", phone, "service", service)
		sub = model.Subscriber{Phone: phone}
	}

	a := Assign(snap, sub, service, s.now())
	switch {
	case a.Credential == nil:
		s.logger.Warn("no credential available", "service", service)
	case a.Overflow:
		s.logger.Warn("credential pool over capacity", "service", service, "credential_id", a.Credential.ID)
	}
	s.observer.ObserveAssignment(cleanServiceName(service), a)
	return a, nil
}

// SubscribersOn returns the subscribers currently mapped to a credential.
func (s *CredentialService) SubscribersOn(ctx context.Context, credentialID string) ([]model.Subscriber, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range snap.Credentials {
		if c.ID == credentialID {
			return AssignedSubscribers(snap, c), nil
		}
	}
	return nil, fmt.Errorf("subscribers on credential %q: %w", credentialID, driven.ErrCredentialNotFound)
}

// CredentialLoads returns every credential, newest first, with its health and
// the number of subscribers mapped to it.
func (s *CredentialService) CredentialLoads(ctx context.Context) ([]model.CredentialLoad, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	assigned := AssignmentsByCredential(snap)
	loads := make([]model.CredentialLoad, 0, len(snap.Credentials))
	for _, c := range snap.Credentials {
		loads = append(loads, model.CredentialLoad{
			Credential:  c,
			Health:      ClassifyCredentialHealth(c.Service, c.PublishedAt, now),
			Subscribers: len(assigned[c.ID]),
		})
	}

	sort.SliceStable(loads, func(i, j int) bool {
		return loads[i].Credential.PublishedAt.After(loads[j].Credential.PublishedAt)
	})
	return loads, nil
}

// ImportCredentials parses bulk text and upserts each credential in order.
// Rows are independent: a failed row is logged and skipped. The returned
// error joins every row failure.
func (s *CredentialService) ImportCredentials(ctx context.Context, service, text string) (int, error) {
	creds := ParseBulkImport(service, text, s.now().UTC())

	var imported int
	var errs []error
	for _, c := range creds {
		if _, err := s.credStore.Upsert(ctx, c); err != nil {
			s.logger.Error("bulk import row failed", "service", service, "account", c.AccountID, "error", err)
			errs = append(errs, fmt.Errorf("import %q: %w", c.AccountID, err))
			continue
		}
		imported++
	}

	s.observer.ObserveImport(service, imported, len(errs))
	s.logger.Info("bulk import complete", "service", service, "imported", imported, "failed", len(errs))
	return imported, errors.Join(errs...)
}

// SubscriberStatus classifies every subscribed service of the active
// subscriber with the given phone.
func (s *CredentialService) SubscriberStatus(ctx context.Context, phone string) ([]model.ServiceStatus, error) {
	subs, err := s.subStore.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch subscribers: %w", err)
	}
	sub, ok := findByPhone(subs, phone)
	if !ok || sub.Deleted {
		return nil, fmt.Errorf("subscriber status %q: %w", phone, driven.ErrSubscriberNotFound)
	}
	return ClassifySubscriptions(sub, s.now()), nil
}

// RemoveService drops every entry for the service from all subscribers and
// returns how many subscribers changed. Changed subscribers are rewritten in
// the native list encoding.
func (s *CredentialService) RemoveService(ctx context.Context, service string) (int, error) {
	subs, err := s.subStore.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch subscribers: %w", err)
	}

	var changed int
	for _, sub := range subs {
		kept, removed := WithoutService(sub, service)
		if !removed {
			continue
		}
		sub.Subscriptions = model.NewSubscriptionList(kept)
		if _, err := s.subStore.Upsert(ctx, sub); err != nil {
			return changed, fmt.Errorf("remove %q from subscriber %q: %w", service, sub.ID, err)
		}
		changed++
	}
	return changed, nil
}

func (s *CredentialService) isDemo(phone string) bool {
	for _, p := range s.demoPrefixes {
		if p != "" && strings.HasPrefix(phone, p) {
			return true
		}
	}
	return false
}

func (s *CredentialService) demoAssignment(service string) model.Assignment {
	name := cleanServiceName(service)
	slug := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, strings.ToLower(name))

	return model.Assignment{
		Credential: &model.Credential{
			ID:          "demo-safe-cred",
			Service:     name,
			AccountID:   fmt.Sprintf("demo.%s@sharedlogin.local", slug),
			Secret:      "demo-protected-secret",
			PublishedAt: s.now().UTC(),
			Visible:     true,
		},
		Alert:      demoAlert,
		DaysActive: 1,
	}
}

// findByPhone returns the subscriber with a matching phone, comparing digits
// only. Active records are preferred over soft-deleted ones.
func findByPhone(subs []model.Subscriber, phone string) (model.Subscriber, bool) {
	want := digitsOnly(phone)
	var found model.Subscriber
	var ok bool
	for _, s := range subs {
		if digitsOnly(s.Phone) != want {
			continue
		}
		if !s.Deleted {
			return s, true
		}
		if !ok {
			found, ok = s, true
		}
	}
	return found, ok
}

type noopObserver struct{}

func (noopObserver) ObserveAssignment(string, model.Assignment) {}
func (noopObserver) ObserveImport(string, int, int)            {}
