package ecs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	calls int
	creds aws.Credentials
	err   error
}

func (p *countingProvider) Retrieve(context.Context) (aws.Credentials, error) {
	p.calls++
	return p.creds, p.err
}

func newTestSource(provider aws.CredentialsProvider, lifetime time.Duration, now *time.Time) *credentialsSource {
	return &credentialsSource{
		provider: provider,
		lifetime: lifetime,
		now:      func() time.Time { return *now },
	}
}

func TestCredentialsSource_CachesUntilLifetime(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	provider := &countingProvider{creds: aws.Credentials{
		AccessKeyID: "AKID", SecretAccessKey: "secret", SessionToken: "token",
		CanExpire: true, Expires: now.Add(time.Hour),
	}}
	source := newTestSource(provider, 10*time.Minute, &now)

	creds := source.get(context.Background())
	require.NotNil(t, creds)
	assert.Equal(t, "AKID", creds.AccessKeyID)
	assert.Equal(t, now.Add(10*time.Minute), creds.Expires)

	now = now.Add(5 * time.Minute)
	source.get(context.Background())
	assert.Equal(t, 1, provider.calls)

	now = now.Add(6 * time.Minute)
	source.get(context.Background())
	assert.Equal(t, 2, provider.calls)
}

func TestCredentialsSource_HonorsEarlierExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	provider := &countingProvider{creds: aws.Credentials{
		AccessKeyID: "AKID", CanExpire: true, Expires: now.Add(time.Minute),
	}}
	source := newTestSource(provider, 10*time.Minute, &now)

	creds := source.get(context.Background())
	require.NotNil(t, creds)
	assert.Equal(t, now.Add(time.Minute), creds.Expires)
}

func TestCredentialsSource_DisabledAfterFailure(t *testing.T) {
	now := time.Now()
	provider := &countingProvider{err: errors.New("connection refused")}
	source := newTestSource(provider, time.Minute, &now)

	assert.Nil(t, source.get(context.Background()))
	assert.Nil(t, source.get(context.Background()))
	assert.Equal(t, 1, provider.calls)
}

func TestCredentialsSource_NoRelativeURI(t *testing.T) {
	source := newCredentialsSource(Config{})
	assert.Nil(t, source.provider)
	assert.Equal(t, DefaultCredentialsLifetime, source.lifetime)
	assert.Nil(t, source.get(context.Background()))
}
