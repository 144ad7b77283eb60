package model

// StrategyKind identifies how a service's subscribers are spread across its
// credential pool.
type StrategyKind string

const (
	StrategySingle     StrategyKind = "single"
	StrategyRoundRobin StrategyKind = "round_robin"
	StrategyBucket     StrategyKind = "bucket"
)

// HealthStatus is the operator-facing renewal state of a credential.
type HealthStatus string

const (
	HealthInfinite HealthStatus = "infinite"
	HealthExpired  HealthStatus = "expired"
	HealthWarning  HealthStatus = "warning"
	HealthOK       HealthStatus = "ok"
)

// SubscriptionStatus is the billing state of one subscribed service.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionExpiring SubscriptionStatus = "expiring"
	SubscriptionExpired  SubscriptionStatus = "expired"
)

// SubscriptionKind tags which encoding a SubscriptionField carries.
type SubscriptionKind int

const (
	subscriptionKindNone SubscriptionKind = iota
	// SubscriptionKindList is the native ordered list encoding.
	SubscriptionKindList
	// SubscriptionKindLegacy is a single encoded string: one value,
	// comma-joined or plus-joined, optionally brace-wrapped and quoted.
	SubscriptionKindLegacy
)
