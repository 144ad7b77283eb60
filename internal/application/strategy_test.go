package application

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ericfisherdev/sharedlogin/internal/domain/model"
)

func TestSelectStrategy(t *testing.T) {
	tests := []struct {
		service string
		want    model.Strategy
	}{
		{service: "Viki Pass", want: model.Strategy{Kind: model.StrategyBucket, Limit: 4}},
		{service: "VIKI", want: model.Strategy{Kind: model.StrategyBucket, Limit: 4}},
		{service: "Kocowa+", want: model.Strategy{Kind: model.StrategyBucket, Limit: 5}},
		{service: "iQIYI VIP", want: model.Strategy{Kind: model.StrategyRoundRobin}},
		{service: "WeTV", want: model.Strategy{Kind: model.StrategySingle}},
		{service: "DramaBox", want: model.Strategy{Kind: model.StrategyBucket, Limit: defaultBucketLimit}},
		{service: "", want: model.Strategy{Kind: model.StrategyBucket, Limit: defaultBucketLimit}},
	}

	for _, tt := range tests {
		t.Run(tt.service, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectStrategy(tt.service))
		})
	}
}
