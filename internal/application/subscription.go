package application

import (
	"math"
	"strings"
	"time"

	"github.com/ericfisherdev/sharedlogin/internal/domain/model"
)

// expiringWindowDays is how many days before expiry a subscription counts
// as expiring rather than active.
const expiringWindowDays = 5

// entryTimeLayouts are the activation timestamp formats accepted after the
// "|" in a subscription entry.
var entryTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// NormalizeSubscriptions canonicalizes a subscription field into an ordered
// list of "service" or "service|timestamp" strings. A native list is returned
// unchanged; a legacy string is unwrapped from one brace pair and split on
// commas, or on plus signs when there are no commas. Anything else yields an
// empty list.
func NormalizeSubscriptions(field model.SubscriptionField) []string {
	switch field.Kind {
	case model.SubscriptionKindList:
		out := make([]string, len(field.List))
		copy(out, field.List)
		return out
	case model.SubscriptionKindLegacy:
		return splitLegacy(field.Legacy)
	default:
		return []string{}
	}
}

func splitLegacy(raw string) []string {
	cleaned := strings.TrimPrefix(raw, "{")
	cleaned = strings.TrimSuffix(cleaned, "}")
	if cleaned == "" {
		return []string{}
	}

	var parts []string
	switch {
	case strings.Contains(cleaned, ","):
		parts = strings.Split(cleaned, ",")
	case strings.Contains(cleaned, "+"):
		parts = strings.Split(cleaned, "+")
	default:
		parts = []string{cleaned}
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, unquote(p))
	}
	return out
}

// unquote trims whitespace and strips one leading and one trailing double quote.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, `"`)
	s = strings.TrimSuffix(s, `"`)
	return strings.TrimSpace(s)
}

// ParseSubscriptionEntry splits a "service|timestamp" entry. When the
// timestamp is missing or unparsable the purchase date is used instead.
func ParseSubscriptionEntry(raw string, purchaseDate time.Time) model.SubscriptionEntry {
	service, stamp, hasStamp := strings.Cut(raw, "|")
	entry := model.SubscriptionEntry{
		Service:     strings.TrimSpace(service),
		ActivatedAt: purchaseDate,
	}
	if !hasStamp {
		return entry
	}
	if t, ok := parseEntryTime(strings.TrimSpace(stamp)); ok {
		entry.ActivatedAt = t
	}
	return entry
}

func parseEntryTime(s string) (time.Time, bool) {
	for _, layout := range entryTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SubscriptionEntries returns the parsed, non-blank subscription entries of a
// subscriber in stored order.
func SubscriptionEntries(sub model.Subscriber) []model.SubscriptionEntry {
	raw := NormalizeSubscriptions(sub.Subscriptions)
	entries := make([]model.SubscriptionEntry, 0, len(raw))
	for _, r := range raw {
		e := ParseSubscriptionEntry(r, sub.PurchaseDate)
		if e.Service == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

// ClassifySubscriptions computes the expiry status of every subscribed
// service. Expiry is the activation date plus the subscriber's duration in
// months; the remaining days are rounded up.
func ClassifySubscriptions(sub model.Subscriber, now time.Time) []model.ServiceStatus {
	entries := SubscriptionEntries(sub)
	statuses := make([]model.ServiceStatus, 0, len(entries))
	for _, e := range entries {
		expiresAt := e.ActivatedAt.AddDate(0, sub.DurationMonths, 0)
		remaining := int(math.Ceil(expiresAt.Sub(now).Hours() / 24))

		status := model.SubscriptionActive
		switch {
		case remaining < 0:
			status = model.SubscriptionExpired
		case remaining <= expiringWindowDays:
			status = model.SubscriptionExpiring
		}

		statuses = append(statuses, model.ServiceStatus{
			Service:       e.Service,
			ActivatedAt:   e.ActivatedAt,
			ExpiresAt:     expiresAt,
			DaysRemaining: remaining,
			Status:        status,
		})
	}
	return statuses
}

// WithoutService returns the subscriber's entries minus any whose service
// contains the given name (case-insensitive), and whether anything was removed.
func WithoutService(sub model.Subscriber, service string) ([]string, bool) {
	raw := NormalizeSubscriptions(sub.Subscriptions)
	target := strings.ToLower(service)
	kept := make([]string, 0, len(raw))
	for _, r := range raw {
		if strings.Contains(strings.ToLower(r), target) {
			continue
		}
		kept = append(kept, r)
	}
	return kept, len(kept) != len(raw)
}
