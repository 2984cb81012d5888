package config

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFetchesOnceAndCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/config", r.URL.Path)
		hits.Add(1)
		io.WriteString(w, `{
			"default_model": "gpt-5-mini",
			"heartbeat_interval_seconds": 15,
			"models": [
				{"id": "gpt-5-mini", "label": "GPT-5 Mini", "is_default": true},
				{"id": "gpt-5", "label": "GPT-5"}
			]
		}`)
	}))
	defer srv.Close()

	svc := NewService(srv.URL)
	ctx := context.Background()

	remote, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gpt-5-mini", remote.DefaultModel)
	assert.Len(t, remote.Models, 2)
	assert.Equal(t, 15*time.Second, remote.HeartbeatInterval())

	m, ok := remote.Model("gpt-5")
	require.True(t, ok)
	assert.Equal(t, "GPT-5", m.Label)

	_, err = svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	svc.Invalidate()
	_, err = svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestGetReturnsCopy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"default_model":"m","models":[{"id":"m","label":"M"}]}`)
	}))
	defer srv.Close()

	svc := NewService(srv.URL)
	first, err := svc.Get(context.Background())
	require.NoError(t, err)
	first.Models[0].Label = "mutated"

	second, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "M", second.Models[0].Label)
}

func TestGetServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	svc := NewService(srv.URL)
	_, err := svc.Get(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestHeartbeatIntervalDefault(t *testing.T) {
	assert.Equal(t, 30*time.Second, Remote{}.HeartbeatInterval())
}
