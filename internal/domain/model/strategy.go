package model

// Strategy is a distribution strategy with its parameters. Limit is only
// meaningful for StrategyBucket.
type Strategy struct {
	Kind  StrategyKind
	Limit int
}
