package prometheus

import (
	"testing"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/sharedlogin/internal/domain/model"
)

func TestObserver_ObserveAssignment(t *testing.T) {
	reg := promclient.NewRegistry()
	obs, err := NewObserver("test", reg)
	require.NoError(t, err)

	cred := &model.Credential{ID: "c1"}
	obs.ObserveAssignment("Viki Pass", model.Assignment{Credential: cred})
	obs.ObserveAssignment("Viki Pass", model.Assignment{Credential: cred, Overflow: true})
	obs.ObserveAssignment("viki pass", model.Assignment{Credential: cred, Overflow: true})
	obs.ObserveAssignment("WeTV", model.Assignment{})
	obs.ObserveAssignment("WeTV", model.Assignment{Credential: cred, Manual: true})

	assert.Equal(t, 1.0, testutil.ToFloat64(obs.assignments.WithLabelValues("viki pass", "assigned")))
	assert.Equal(t, 2.0, testutil.ToFloat64(obs.assignments.WithLabelValues("viki pass", "overflow")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.assignments.WithLabelValues("wetv", "unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.assignments.WithLabelValues("wetv", "manual")))
}

func TestObserver_ObserveImport(t *testing.T) {
	reg := promclient.NewRegistry()
	obs, err := NewObserver("test", reg)
	require.NoError(t, err)

	obs.ObserveImport("IQIYI", 3, 1)
	obs.ObserveImport("IQIYI", 2, 0)

	assert.Equal(t, 5.0, testutil.ToFloat64(obs.imports.WithLabelValues("iqiyi", "imported")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.imports.WithLabelValues("iqiyi", "failed")))
}

func TestNewObserver_ReusesRegisteredCollectors(t *testing.T) {
	reg := promclient.NewRegistry()
	first, err := NewObserver("test", reg)
	require.NoError(t, err)
	second, err := NewObserver("test", reg)
	require.NoError(t, err)

	first.ObserveImport("WeTV", 1, 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(second.imports.WithLabelValues("wetv", "imported")))
}

func TestObserver_NilSafe(t *testing.T) {
	var obs *Observer
	assert.NotPanics(t, func() {
		obs.ObserveAssignment("WeTV", model.Assignment{})
		obs.ObserveImport("WeTV", 1, 1)
	})
}

func TestObserver_ObserveCredentialHealth(t *testing.T) {
	reg := promclient.NewRegistry()
	obs, err := NewObserver("test", reg)
	require.NoError(t, err)

	obs.ObserveCredentialHealth([]model.CredentialLoad{
		{Credential: model.Credential{ID: "a", Service: "Viki Pass", Visible: true}, Health: model.CredentialHealth{Status: model.HealthOK}, Subscribers: 4},
		{Credential: model.Credential{ID: "b", Service: "Viki Pass", Visible: true}, Health: model.CredentialHealth{Status: model.HealthWarning}, Subscribers: 2},
		{Credential: model.Credential{ID: "c", Service: "Viki Pass", Visible: false}, Health: model.CredentialHealth{Status: model.HealthExpired}, Subscribers: 0},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(obs.credentials.WithLabelValues("viki pass", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.credentials.WithLabelValues("viki pass", "warning")))
	assert.Equal(t, 6.0, testutil.ToFloat64(obs.subscribers.WithLabelValues("viki pass")))
	assert.Equal(t, 2, testutil.CollectAndCount(obs.credentials))

	// A later sweep replaces, not accumulates.
	obs.ObserveCredentialHealth([]model.CredentialLoad{
		{Credential: model.Credential{ID: "a", Service: "Viki Pass", Visible: true}, Health: model.CredentialHealth{Status: model.HealthOK}, Subscribers: 1},
	})
	assert.Equal(t, 1, testutil.CollectAndCount(obs.credentials))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.subscribers.WithLabelValues("viki pass")))
}
