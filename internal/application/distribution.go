package application

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/ericfisherdev/sharedlogin/internal/domain/model"
)

// noCredentialAlert is returned when a service has no eligible credential.
const noCredentialAlert = "No account available. Contact support."

// Snapshot is an immutable view of both record collections taken once by the
// caller. Every engine call recomputes from it; nothing is cached.
type Snapshot struct {
	Credentials []model.Credential
	Subscribers []model.Subscriber
}

// EligiblePool returns the visible credentials whose service cross-matches
// the given service name, oldest first. Credentials with equal PublishedAt
// keep their input order.
func EligiblePool(service string, creds []model.Credential) []model.Credential {
	pool := make([]model.Credential, 0, len(creds))
	for _, c := range creds {
		if c.Visible && servicesMatch(c.Service, service) {
			pool = append(pool, c)
		}
	}
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].PublishedAt.Before(pool[j].PublishedAt)
	})
	return pool
}

// EligibleRoster returns the non-deleted subscribers of the given service
// ordered by phone. Roster position is the single source of truth for both
// forward and reverse assignment.
func EligibleRoster(service string, subs []model.Subscriber) []model.Subscriber {
	roster := make([]model.Subscriber, 0, len(subs))
	for _, s := range subs {
		if !s.Deleted && subscribesTo(s, service) {
			roster = append(roster, s)
		}
	}
	sort.SliceStable(roster, func(i, j int) bool {
		return roster[i].Phone < roster[j].Phone
	})
	return roster
}

// Assign resolves the credential a subscriber uses for a service. A manual
// override wins outright. Otherwise the subscriber's roster position is mapped
// onto the eligible pool with the service's strategy. A subscriber missing
// from the roster falls back to the oldest credential. Only an empty pool
// yields a nil credential.
func Assign(snap Snapshot, sub model.Subscriber, service string, now time.Time) model.Assignment {
	service = cleanServiceName(service)

	if cred, ok := ResolveOverride(sub, service, snap.Credentials); ok {
		a := withAgeAlert(cred, service, now)
		a.Manual = true
		return a
	}

	pool := EligiblePool(service, snap.Credentials)
	if len(pool) == 0 {
		return model.Assignment{Alert: noCredentialAlert}
	}

	roster := EligibleRoster(service, snap.Subscribers)
	index := rosterIndex(roster, sub.Phone)
	if index < 0 {
		return withAgeAlert(pool[0], service, now)
	}

	slot, overflow := poolSlot(SelectStrategy(service), index, len(pool))
	a := withAgeAlert(pool[slot], service, now)
	if overflow {
		a.Overflow = true
		a.Alert = mergeAlerts(capacityAlert(service), a.Alert)
	}
	return a
}

// AssignedSubscribers returns the subscribers currently mapped to the
// credential, in phone order. It is the inverse of Assign: a subscriber is
// listed when Assign, asked about one of the subscriber's own entries,
// resolves to this credential.
func AssignedSubscribers(snap Snapshot, cred model.Credential) []model.Subscriber {
	if subs, ok := AssignmentsByCredential(snap)[cred.ID]; ok {
		return subs
	}
	return []model.Subscriber{}
}

// AssignmentsByCredential computes the reverse assignment of every
// credential at once, keyed by credential ID. Each non-deleted subscriber is
// placed under the credential Assign returns for each of its subscription
// entries, manual overrides included. A subscriber with entries on different
// credentials is listed under each of them once.
func AssignmentsByCredential(snap Snapshot) map[string][]model.Subscriber {
	active := make([]model.Subscriber, 0, len(snap.Subscribers))
	for _, s := range snap.Subscribers {
		if !s.Deleted {
			active = append(active, s)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Phone < active[j].Phone
	})

	slots := make(map[string]map[string]string)
	out := make(map[string][]model.Subscriber)
	for _, s := range active {
		seen := make(map[string]bool)
		for _, e := range SubscriptionEntries(s) {
			id := ownerFor(snap, s, e.Service, slots)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out[id] = append(out[id], s)
		}
	}
	return out
}

// ownerFor returns the ID of the credential Assign picks for sub and service,
// or "" when the pool is empty. slots caches, per cleaned service name, the
// credential of every roster phone.
func ownerFor(snap Snapshot, sub model.Subscriber, service string, slots map[string]map[string]string) string {
	service = cleanServiceName(service)

	if cred, ok := ResolveOverride(sub, service, snap.Credentials); ok {
		return cred.ID
	}

	key := strings.ToLower(service)
	byPhone, ok := slots[key]
	if !ok {
		byPhone = make(map[string]string)
		pool := EligiblePool(service, snap.Credentials)
		if len(pool) > 0 {
			strategy := SelectStrategy(service)
			for i, r := range EligibleRoster(service, snap.Subscribers) {
				phone := digitsOnly(r.Phone)
				if _, dup := byPhone[phone]; dup {
					// Assign matches the first roster entry for a phone.
					continue
				}
				slot, _ := poolSlot(strategy, i, len(pool))
				byPhone[phone] = pool[slot].ID
			}
		}
		slots[key] = byPhone
	}
	return byPhone[digitsOnly(sub.Phone)]
}

// poolSlot maps a roster index onto a pool index. overflow reports that the
// bucket strategy ran out of capacity and fell back to round robin.
func poolSlot(strategy model.Strategy, index, poolSize int) (slot int, overflow bool) {
	switch strategy.Kind {
	case model.StrategySingle:
		return 0, false
	case model.StrategyRoundRobin:
		return index % poolSize, false
	default:
		limit := bucketLimit(strategy)
		if index < poolSize*limit {
			return index / limit, false
		}
		return index % poolSize, true
	}
}

func bucketLimit(strategy model.Strategy) int {
	if strategy.Limit <= 0 {
		return defaultBucketLimit
	}
	return strategy.Limit
}

func withAgeAlert(cred model.Credential, service string, now time.Time) model.Assignment {
	alert, days := AccountAlert(service, cred.PublishedAt, now)
	return model.Assignment{Credential: &cred, Alert: alert, DaysActive: days}
}

// servicesMatch reports whether either service name contains the other,
// ignoring case.
func servicesMatch(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}

func subscribesTo(sub model.Subscriber, service string) bool {
	target := strings.ToLower(service)
	for _, e := range SubscriptionEntries(sub) {
		if strings.Contains(strings.ToLower(e.Service), target) {
			return true
		}
	}
	return false
}

func rosterIndex(roster []model.Subscriber, phone string) int {
	want := digitsOnly(phone)
	for i, s := range roster {
		if digitsOnly(s.Phone) == want {
			return i
		}
	}
	return -1
}

// digitsOnly strips every non-digit character from a phone number.
func digitsOnly(phone string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
}
