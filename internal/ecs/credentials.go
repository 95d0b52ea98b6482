package ecs

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials/endpointcreds"

	"inspector/pkg/logging"
)

// DefaultCredentialsEndpoint is the ECS agent's credentials endpoint.
const DefaultCredentialsEndpoint = "http://169.254.170.2"

// DefaultCredentialsLifetime caps how long credentials are reused.
const DefaultCredentialsLifetime = 10 * time.Minute

// credentialsSource caches credentials of the task role. Once the underlying
// provider fails it is dropped and no further attempts are made.
type credentialsSource struct {
	mu sync.Mutex

	provider    aws.CredentialsProvider
	lifetime    time.Duration
	credentials *aws.Credentials
	now         func() time.Time
}

func newCredentialsSource(cfg Config) *credentialsSource {
	s := &credentialsSource{
		lifetime: cfg.CredentialsLifetime,
		now:      time.Now,
	}
	if s.lifetime <= 0 {
		s.lifetime = DefaultCredentialsLifetime
	}

	if cfg.RelativeURI != "" {
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = DefaultCredentialsEndpoint
		}
		s.provider = endpointcreds.New(endpoint + cfg.RelativeURI)
	}
	return s
}

// get returns cached credentials, refreshing them once expired. It returns
// nil when credentials are unavailable.
func (s *credentialsSource) get(ctx context.Context) *aws.Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.provider == nil {
		return nil
	}

	now := s.now()
	if s.credentials != nil && now.Before(s.credentials.Expires) {
		return s.credentials
	}

	creds, err := s.provider.Retrieve(ctx)
	if err != nil {
		logging.Error(subsystem, err, "Failed to retrieve container credentials, task lookups are disabled")
		s.provider = nil
		s.credentials = nil
		return nil
	}

	expires := now.Add(s.lifetime)
	if creds.CanExpire && creds.Expires.Before(expires) {
		expires = creds.Expires
	}
	creds.CanExpire = true
	creds.Expires = expires

	s.credentials = &creds
	logging.Debug(subsystem, "Retrieved container credentials valid until %s", expires.Format(time.RFC3339))
	return s.credentials
}
