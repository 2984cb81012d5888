// Package config fetches and caches the server's runtime configuration:
// the available LLM models, the default model key, and stream tuning
// parameters.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Model describes one selectable LLM configuration.
type Model struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	IsDefault bool   `json:"is_default,omitempty"`
}

// Remote is the server-provided configuration document.
type Remote struct {
	Models                   []Model `json:"models"`
	DefaultModel             string  `json:"default_model"`
	HeartbeatIntervalSeconds int     `json:"heartbeat_interval_seconds,omitempty"`
}

// HeartbeatInterval returns the server's heartbeat cadence, or a 30s
// default when unreported.
func (r Remote) HeartbeatInterval() time.Duration {
	if r.HeartbeatIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(r.HeartbeatIntervalSeconds) * time.Second
}

// Model returns the model with the given id.
func (r Remote) Model(id string) (Model, bool) {
	for _, m := range r.Models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// Service lazily fetches the remote configuration and caches it until
// invalidated. It is safe for concurrent use.
type Service struct {
	baseURL    string
	httpClient *http.Client

	mu     sync.Mutex
	cached *Remote
}

// Option configures a Service.
type Option func(*Service)

// WithHTTPClient replaces the HTTP client used for fetches.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Service) { s.httpClient = hc }
}

// NewService creates a Service rooted at baseURL.
func NewService(baseURL string, opts ...Option) *Service {
	s := &Service{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the remote configuration, fetching it on first use. The
// returned value is a copy; callers may not see later invalidations.
func (s *Service) Get(ctx context.Context) (Remote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil {
		return s.copyLocked(), nil
	}

	remote, err := s.fetch(ctx)
	if err != nil {
		return Remote{}, err
	}
	s.cached = &remote
	return s.copyLocked(), nil
}

// Invalidate drops the cached configuration so the next Get refetches.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
}

func (s *Service) copyLocked() Remote {
	out := *s.cached
	out.Models = append([]Model(nil), s.cached.Models...)
	return out
}

func (s *Service) fetch(ctx context.Context) (Remote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/config", nil)
	if err != nil {
		return Remote{}, fmt.Errorf("build config request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Remote{}, fmt.Errorf("fetch config: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Remote{}, fmt.Errorf("fetch config: unexpected status %s", resp.Status)
	}

	var remote Remote
	if err := json.NewDecoder(resp.Body).Decode(&remote); err != nil {
		return Remote{}, fmt.Errorf("decode config: %w", err)
	}
	return remote, nil
}
