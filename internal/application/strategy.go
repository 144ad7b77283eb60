package application

import (
	"strings"

	"github.com/ericfisherdev/sharedlogin/internal/domain/model"
)

// defaultBucketLimit is the per-credential capacity for services without a
// dedicated rule.
const defaultBucketLimit = 5

// strategyRule maps a lower-case service name fragment to a strategy.
type strategyRule struct {
	match    string
	strategy model.Strategy
}

// strategyRules is checked in order; the first matching rule wins.
var strategyRules = []strategyRule{
	{match: "viki", strategy: model.Strategy{Kind: model.StrategyBucket, Limit: 4}},
	{match: "kocowa", strategy: model.Strategy{Kind: model.StrategyBucket, Limit: 5}},
	{match: "iqiyi", strategy: model.Strategy{Kind: model.StrategyRoundRobin}},
	{match: "wetv", strategy: model.Strategy{Kind: model.StrategySingle}},
}

// SelectStrategy returns the distribution strategy for a service name.
// Unmatched services fall back to a bucket of defaultBucketLimit.
func SelectStrategy(service string) model.Strategy {
	s := strings.ToLower(service)
	for _, rule := range strategyRules {
		if strings.Contains(s, rule.match) {
			return rule.strategy
		}
	}
	return model.Strategy{Kind: model.StrategyBucket, Limit: defaultBucketLimit}
}
