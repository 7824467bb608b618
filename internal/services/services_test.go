package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hermes-mma/hermes-backend/internal/cache"
	"github.com/hermes-mma/hermes-backend/internal/clients/hopauth"
	"github.com/hermes-mma/hermes-backend/internal/logger"
)

type fakeHopClient struct {
	topics        map[string]*hopauth.TopicPermissions
	tokenCalls    int
	topicCalls    int
	authorized    []string
	deauthorized  []string
	authorizeErr  error
	credentialNum int
}

func (f *fakeHopClient) ServiceAPIToken(ctx context.Context) (string, error) {
	return "service-token", nil
}

func (f *fakeHopClient) UserAPIToken(ctx context.Context, username string) (string, error) {
	f.tokenCalls++
	return "user-token-" + username, nil
}

func (f *fakeHopClient) AuthorizeUser(ctx context.Context, username string) (*hopauth.Credential, error) {
	if f.authorizeErr != nil {
		return nil, f.authorizeErr
	}
	f.authorized = append(f.authorized, username)
	f.credentialNum++
	return &hopauth.Credential{
		Username: fmt.Sprintf("%s-cred-%d", username, f.credentialNum),
		Password: "scram-secret",
	}, nil
}

func (f *fakeHopClient) DeauthorizeUser(ctx context.Context, username, credentialName string) error {
	f.deauthorized = append(f.deauthorized, credentialName)
	return nil
}

func (f *fakeHopClient) CreateCredential(ctx context.Context, username, userAPIToken string) (*hopauth.Credential, error) {
	return f.AuthorizeUser(ctx, username)
}

func (f *fakeHopClient) DeleteCredential(ctx context.Context, username, credentialName, userAPIToken string) error {
	return f.DeauthorizeUser(ctx, username, credentialName)
}

func (f *fakeHopClient) UserTopics(ctx context.Context, username, userAPIToken string) (*hopauth.TopicPermissions, error) {
	f.topicCalls++
	if topics, ok := f.topics[username]; ok {
		return topics, nil
	}
	return &hopauth.TopicPermissions{}, nil
}

type fakePublisher struct {
	topics   []string
	ids      []uuid.UUID
	payloads [][]byte
	err      error
}

func (f *fakePublisher) Publish(ctx context.Context, topic string, id uuid.UUID, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	f.ids = append(f.ids, id)
	f.payloads = append(f.payloads, payload)
	return nil
}

type fakeTNSService struct {
	converted int
}

func (f *fakeTNSService) Values(ctx context.Context) (map[string]interface{}, error) {
	return tnsOptionValues, nil
}

func (f *fakeTNSService) ReverseValues(ctx context.Context) (map[string]map[string]interface{}, error) {
	return ReverseTNSValues(tnsOptionValues), nil
}

func (f *fakeTNSService) ConvertDiscoveryMessage(ctx context.Context, message map[string]interface{}) (map[string]interface{}, error) {
	f.converted++
	return map[string]interface{}{}, nil
}

type fakeEmailService struct {
	to       []string
	subjects []string
	bodies   []string
}

func (f *fakeEmailService) Send(ctx context.Context, to, subject, body string) error {
	f.to = append(f.to, to)
	f.subjects = append(f.subjects, subject)
	f.bodies = append(f.bodies, body)
	return nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("dev")
	require.NoError(t, err)
	return log
}

func TestTopicServiceDefaultsForAnonymous(t *testing.T) {
	hop := &fakeHopClient{}
	svc := NewTopicService(testLogger(t), hop, cache.NewMemoryCache())

	topics, err := svc.UserTopics(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultTopics.Read, topics.Read)
	assert.Equal(t, DefaultTopics.Write, topics.Write)
	assert.Zero(t, hop.topicCalls)
}

func TestTopicServiceCachesPerUser(t *testing.T) {
	hop := &fakeHopClient{
		topics: map[string]*hopauth.TopicPermissions{
			"astronomer": {
				Read:  []string{"gcn.circular", "igwn.gwalert", "hermes.test"},
				Write: []string{"hermes.test"},
			},
		},
	}
	svc := NewTopicService(testLogger(t), hop, cache.NewMemoryCache())

	topics, err := svc.UserTopics(context.Background(), "astronomer")
	require.NoError(t, err)
	assert.Len(t, topics.Read, 3)
	assert.Equal(t, 1, hop.topicCalls)

	topics, err = svc.UserTopics(context.Background(), "astronomer")
	require.NoError(t, err)
	assert.Len(t, topics.Read, 3)
	assert.Equal(t, 1, hop.topicCalls, "second lookup must come from the cache")
}

func TestSubmitServicePublishes(t *testing.T) {
	publisher := &fakePublisher{}
	tnsSvc := &fakeTNSService{}
	svc := NewSubmitService(testLogger(t),
		func(creds *HopCredentials) (StreamPublisher, error) { return publisher, nil },
		tnsSvc, nil, "")

	id, err := svc.Submit(context.Background(), nil, &SubmittedMessage{
		Title:       "GRB 240211A optical counterpart",
		Topic:       "hermes.test",
		Submitter:   "observer",
		MessageText: "We observed the counterpart.",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	require.Len(t, publisher.topics, 1)
	assert.Equal(t, "hermes.test", publisher.topics[0])
	assert.Equal(t, id, publisher.ids[0])
	assert.Contains(t, string(publisher.payloads[0]), "GRB 240211A optical counterpart")
	assert.Zero(t, tnsSvc.converted)
}

func TestSubmitServiceForwardsToTNS(t *testing.T) {
	publisher := &fakePublisher{}
	tnsSvc := &fakeTNSService{}
	svc := NewSubmitService(testLogger(t),
		func(creds *HopCredentials) (StreamPublisher, error) { return publisher, nil },
		tnsSvc, nil, "")

	_, err := svc.Submit(context.Background(), nil, &SubmittedMessage{
		Title:       "AT2024abc discovery",
		Topic:       "hermes.test",
		Submitter:   "observer",
		MessageText: "New transient.",
		SubmitToTNS: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, tnsSvc.converted)
}

func TestSubmitServiceMailsCirculars(t *testing.T) {
	publisher := &fakePublisher{}
	email := &fakeEmailService{}
	svc := NewSubmitService(testLogger(t),
		func(creds *HopCredentials) (StreamPublisher, error) { return publisher, nil },
		&fakeTNSService{}, email, "circulars@example.org")

	_, err := svc.Submit(context.Background(), nil, &SubmittedMessage{
		Title:       "GRB 240211A: optical observations",
		Topic:       "gcn.circular",
		Submitter:   "observer",
		Authors:     "A. Observer (Example Observatory)",
		MessageText: "We report optical observations of GRB 240211A.",
	})
	require.NoError(t, err)
	require.Len(t, email.to, 1)
	assert.Equal(t, "circulars@example.org", email.to[0])
	assert.Equal(t, "GRB 240211A: optical observations", email.subjects[0])
	assert.Contains(t, email.bodies[0], "We report optical observations of GRB 240211A.")
}

func TestAuthServiceSessionRoundTrip(t *testing.T) {
	hop := &fakeHopClient{}
	svc := NewAuthService(testLogger(t), hop, cache.NewMemoryCache(), "test-secret")

	token, err := svc.Login(context.Background(), "astronomer", "astronomer@example.org")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, []string{"astronomer"}, hop.authorized)

	session, err := svc.ParseSessionToken(token)
	require.NoError(t, err)
	assert.Equal(t, "astronomer", session.Username)
	assert.Equal(t, "astronomer@example.org", session.Email)
	require.NotNil(t, session.Credentials)
	assert.Equal(t, "astronomer-cred-1", session.Credentials.Username)
	assert.Equal(t, "scram-secret", session.Credentials.Password)

	require.NoError(t, svc.Logout(context.Background(), token))
	assert.Equal(t, []string{"astronomer-cred-1"}, hop.deauthorized)
}

func TestAuthServiceRejectsTamperedTokens(t *testing.T) {
	svc := NewAuthService(testLogger(t), &fakeHopClient{}, cache.NewMemoryCache(), "test-secret")
	other := NewAuthService(testLogger(t), &fakeHopClient{}, cache.NewMemoryCache(), "different-secret")

	token, err := svc.Login(context.Background(), "astronomer", "astronomer@example.org")
	require.NoError(t, err)

	_, err = other.ParseSessionToken(token)
	assert.ErrorIs(t, err, ErrInvalidSessionToken)

	_, err = svc.ParseSessionToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidSessionToken)
}

func TestAuthServiceCSRFTokens(t *testing.T) {
	svc := NewAuthService(testLogger(t), &fakeHopClient{}, cache.NewMemoryCache(), "test-secret")

	token, err := svc.GenerateCSRFToken(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.NoError(t, svc.ValidateCSRFToken(context.Background(), token))
	assert.ErrorIs(t, svc.ValidateCSRFToken(context.Background(), "forged"), ErrInvalidCSRFToken)
	assert.ErrorIs(t, svc.ValidateCSRFToken(context.Background(), ""), ErrInvalidCSRFToken)
}
