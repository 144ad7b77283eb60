package model

import "time"

// Subscriber is a paying client. Phone is the stable external key and the
// roster sort key. DurationMonths applies to every subscribed service.
type Subscriber struct {
	ID              string
	Phone           string
	Name            string
	Subscriptions   SubscriptionField
	PurchaseDate    time.Time
	DurationMonths  int
	Deleted         bool
	Debtor          bool
	Contacted       bool
	ManualOverrides map[string]string // service name -> credential ID
}

// SubscriptionField holds a subscriber's subscription list in whichever
// encoding it was stored with. The zero value is treated as absent.
type SubscriptionField struct {
	Kind   SubscriptionKind
	List   []string
	Legacy string
}

// NewSubscriptionList wraps a native ordered list of "service" or
// "service|timestamp" entries.
func NewSubscriptionList(entries []string) SubscriptionField {
	return SubscriptionField{Kind: SubscriptionKindList, List: entries}
}

// NewLegacySubscriptions wraps a legacy single-string encoding.
func NewLegacySubscriptions(raw string) SubscriptionField {
	return SubscriptionField{Kind: SubscriptionKindLegacy, Legacy: raw}
}

// SubscriptionEntry is one parsed subscription: the service name and when it
// was activated.
type SubscriptionEntry struct {
	Service     string
	ActivatedAt time.Time
}

// ServiceStatus is the expiry classification of one subscribed service.
type ServiceStatus struct {
	Service       string
	ActivatedAt   time.Time
	ExpiresAt     time.Time
	DaysRemaining int
	Status        SubscriptionStatus
}
