package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/sharedlogin/internal/domain/model"
	"github.com/ericfisherdev/sharedlogin/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockCredentialStore struct {
	mu        sync.Mutex
	creds     []model.Credential
	listErr   error
	upsertErr map[string]error // keyed by AccountID
	upserts   []model.Credential
}

func (m *mockCredentialStore) Upsert(_ context.Context, cred model.Credential) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.upsertErr[cred.AccountID]; err != nil {
		return "", err
	}
	m.upserts = append(m.upserts, cred)
	return "id-" + cred.AccountID, nil
}

func (m *mockCredentialStore) Get(_ context.Context, id string) (model.Credential, error) {
	for _, c := range m.creds {
		if c.ID == id {
			return c, nil
		}
	}
	return model.Credential{}, driven.ErrCredentialNotFound
}

func (m *mockCredentialStore) List(_ context.Context) ([]model.Credential, error) {
	return m.creds, m.listErr
}

func (m *mockCredentialStore) Delete(_ context.Context, _ string) error {
	return nil
}

type mockSubscriberStore struct {
	mu      sync.Mutex
	subs    []model.Subscriber
	listErr error
	upserts []model.Subscriber
}

func (m *mockSubscriberStore) Upsert(_ context.Context, sub model.Subscriber) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts = append(m.upserts, sub)
	return sub.ID, nil
}

func (m *mockSubscriberStore) Get(_ context.Context, _ string) (model.Subscriber, error) {
	return model.Subscriber{}, driven.ErrSubscriberNotFound
}

func (m *mockSubscriberStore) List(_ context.Context) ([]model.Subscriber, error) {
	return m.subs, m.listErr
}

func (m *mockSubscriberStore) SetDeleted(_ context.Context, _ string, _ bool) error {
	return nil
}

func (m *mockSubscriberStore) Purge(_ context.Context, _ string) error {
	return nil
}

type importCall struct {
	service          string
	imported, failed int
}

type recordingObserver struct {
	assignments []model.Assignment
	imports     []importCall
}

func (r *recordingObserver) ObserveAssignment(_ string, a model.Assignment) {
	r.assignments = append(r.assignments, a)
}

func (r *recordingObserver) ObserveImport(service string, imported, failed int) {
	r.imports = append(r.imports, importCall{service: service, imported: imported, failed: failed})
}

// newTestService wires a CredentialService with a fixed clock.
func newTestService(creds *mockCredentialStore, subs *mockSubscriberStore, obs driven.AssignmentObserver) *CredentialService {
	svc := NewCredentialService(creds, subs, obs, []string{"00000000000", "99999"},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return testNow }
	return svc
}

// --- Tests ---

func TestCredentialService_AssignmentFor(t *testing.T) {
	creds := &mockCredentialStore{creds: makeCreds("IQIYI", 3)}
	subs := &mockSubscriberStore{subs: makeSubs("IQIYI", 7)}
	obs := &recordingObserver{}
	svc := newTestService(creds, subs, obs)

	a, err := svc.AssignmentFor(context.Background(), "5550000005", "IQIYI")
	require.NoError(t, err)
	require.NotNil(t, a.Credential)
	assert.Equal(t, "IQIYI-2", a.Credential.ID)
	require.Len(t, obs.assignments, 1)
	assert.Equal(t, "IQIYI-2", obs.assignments[0].Credential.ID)
}

func TestCredentialService_AssignmentFor_UnknownPhoneFallsBack(t *testing.T) {
	creds := &mockCredentialStore{creds: makeCreds("IQIYI", 3)}
	subs := &mockSubscriberStore{subs: makeSubs("IQIYI", 7)}
	svc := newTestService(creds, subs, nil)

	a, err := svc.AssignmentFor(context.Background(), "123", "IQIYI")
	require.NoError(t, err)
	require.NotNil(t, a.Credential)
	assert.Equal(t, "IQIYI-0", a.Credential.ID)
}

func TestCredentialService_AssignmentFor_Demo(t *testing.T) {
	storeErr := errors.New("store must not be read")
	creds := &mockCredentialStore{listErr: storeErr}
	subs := &mockSubscriberStore{listErr: storeErr}
	svc := newTestService(creds, subs, nil)

	for _, phone := range []string{"00000000000", "99999123"} {
		a, err := svc.AssignmentFor(context.Background(), phone, "Viki Pass|2024-01-01")
		require.NoError(t, err, phone)
		require.NotNil(t, a.Credential)
		assert.Equal(t, "demo-safe-cred", a.Credential.ID)
		assert.Equal(t, "Viki Pass", a.Credential.Service)
		assert.Equal(t, "demo.vikipass@sharedlogin.local", a.Credential.AccountID)
		assert.Equal(t, demoAlert, a.Alert)
		assert.Equal(t, 1, a.DaysActive)
	}
}

func TestCredentialService_AssignmentFor_StoreError(t *testing.T) {
	storeErr := errors.New("disk on fire")
	creds := &mockCredentialStore{listErr: storeErr}
	subs := &mockSubscriberStore{}
	svc := newTestService(creds, subs, nil)

	_, err := svc.AssignmentFor(context.Background(), "5550000001", "IQIYI")
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
}

func TestCredentialService_SubscribersOn(t *testing.T) {
	creds := &mockCredentialStore{creds: makeCreds("Viki Pass", 2)}
	subs := &mockSubscriberStore{subs: makeSubs("Viki Pass", 6)}
	svc := newTestService(creds, subs, nil)

	got, err := svc.SubscribersOn(context.Background(), "Viki Pass-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"5550000004", "5550000005"}, phones(got))

	_, err = svc.SubscribersOn(context.Background(), "missing")
	assert.ErrorIs(t, err, driven.ErrCredentialNotFound)
}

func TestCredentialService_CredentialLoads(t *testing.T) {
	viki := makeCreds("Viki Pass", 2)
	wetv := makeCreds("WeTV", 1)
	wetv[0].PublishedAt = testNow.Add(-time.Hour)
	creds := &mockCredentialStore{creds: append(viki, wetv...)}
	subs := &mockSubscriberStore{subs: append(makeSubs("Viki Pass", 6), makeSubs("WeTV", 3)...)}
	svc := newTestService(creds, subs, nil)

	loads, err := svc.CredentialLoads(context.Background())
	require.NoError(t, err)
	require.Len(t, loads, 3)

	assert.Equal(t, "WeTV-0", loads[0].Credential.ID, "newest first")
	assert.Equal(t, "Viki Pass-1", loads[1].Credential.ID)
	assert.Equal(t, "Viki Pass-0", loads[2].Credential.ID)

	// Phones repeat across services; each roster only holds its own service.
	assert.Equal(t, 3, loads[0].Subscribers)
	assert.Equal(t, 2, loads[1].Subscribers)
	assert.Equal(t, 4, loads[2].Subscribers)
	assert.Equal(t, model.HealthOK, loads[2].Health.Status)
}

func TestCredentialService_CredentialLoads_MixedServiceNames(t *testing.T) {
	snap := mixedVikiSnapshot()
	svc := newTestService(
		&mockCredentialStore{creds: snap.Credentials},
		&mockSubscriberStore{subs: snap.Subscribers},
		nil,
	)

	loads, err := svc.CredentialLoads(context.Background())
	require.NoError(t, err)
	require.Len(t, loads, 2)

	assert.Equal(t, "c-pass", loads[0].Credential.ID)
	assert.Equal(t, 1, loads[0].Subscribers)
	assert.Equal(t, "c-viki", loads[1].Credential.ID)
	assert.Equal(t, 7, loads[1].Subscribers)

	onPass, err := svc.SubscribersOn(context.Background(), "c-pass")
	require.NoError(t, err)
	assert.Equal(t, []string{"5550000004"}, phones(onPass))
}

func TestCredentialService_ImportCredentials(t *testing.T) {
	rowErr := errors.New("constraint failed")
	creds := &mockCredentialStore{upsertErr: map[string]error{"bad@example.com": rowErr}}
	obs := &recordingObserver{}
	svc := newTestService(creds, &mockSubscriberStore{}, obs)

	text := "a@example.com,pw1,2024-01-05\nbad@example.com,pw2\nc@example.com | pw3\n"
	n, err := svc.ImportCredentials(context.Background(), "Kocowa", text)

	assert.Equal(t, 2, n)
	require.Error(t, err)
	assert.ErrorIs(t, err, rowErr)
	require.Len(t, creds.upserts, 2)
	assert.Equal(t, "a@example.com", creds.upserts[0].AccountID)
	assert.Equal(t, "c@example.com", creds.upserts[1].AccountID)
	assert.Equal(t, []importCall{{service: "Kocowa", imported: 2, failed: 1}}, obs.imports)
}

func TestCredentialService_SubscriberStatus(t *testing.T) {
	subs := &mockSubscriberStore{subs: []model.Subscriber{
		{ID: "a", Phone: "111", DurationMonths: 1, Subscriptions: model.NewSubscriptionList([]string{"WeTV|2024-03-10T00:00:00Z"})},
		{ID: "b", Phone: "222", Deleted: true, Subscriptions: model.NewSubscriptionList([]string{"WeTV"})},
	}}
	svc := newTestService(&mockCredentialStore{}, subs, nil)

	statuses, err := svc.SubscriberStatus(context.Background(), "+111")
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "WeTV", statuses[0].Service)
	assert.Equal(t, model.SubscriptionActive, statuses[0].Status)

	_, err = svc.SubscriberStatus(context.Background(), "222")
	assert.ErrorIs(t, err, driven.ErrSubscriberNotFound)

	_, err = svc.SubscriberStatus(context.Background(), "333")
	assert.ErrorIs(t, err, driven.ErrSubscriberNotFound)
}

func TestCredentialService_RemoveService(t *testing.T) {
	subs := &mockSubscriberStore{subs: []model.Subscriber{
		{ID: "a", Phone: "1", Subscriptions: model.NewLegacySubscriptions("Viki Pass + IQIYI")},
		{ID: "b", Phone: "2", Subscriptions: model.NewSubscriptionList([]string{"IQIYI|2024-01-01"})},
		{ID: "c", Phone: "3", Subscriptions: model.NewSubscriptionList([]string{"WeTV"})},
	}}
	svc := newTestService(&mockCredentialStore{}, subs, nil)

	n, err := svc.RemoveService(context.Background(), "iqiyi")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, subs.upserts, 2)
	assert.Equal(t, model.NewSubscriptionList([]string{"Viki Pass"}), subs.upserts[0].Subscriptions)
	assert.Equal(t, model.NewSubscriptionList([]string{}), subs.upserts[1].Subscriptions)
}
