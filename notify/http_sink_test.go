package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Finn-coder2026/jolli-demo-sub011/internal/httpclient"
	"github.com/Finn-coder2026/jolli-demo-sub011/jobs"
	"github.com/Finn-coder2026/jolli-demo-sub011/tenant"
)

func TestHTTPSink_Send(t *testing.T) {
	var (
		mu     sync.Mutex
		got    Notification
		header http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		header = r.Header.Clone()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	sink, err := NewHTTPSink(srv.URL, httpclient.New(httpclient.Options{Timeout: 2 * time.Second, AllowPrivate: true}))
	require.NoError(t, err)

	n := Notification{
		Tenant: tenant.New("acme", "docs"),
		Event:  jobs.LifecycleEvent{Type: jobs.EventJobCompleted, JobID: "j-1", Name: "sync"},
	}
	require.NoError(t, sink.Send(context.Background(), n))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "acme", header.Get("X-Jolli-Tenant"))
	assert.Equal(t, "docs", header.Get("X-Jolli-Org"))
	assert.Equal(t, jobs.EventJobCompleted, header.Get("X-Jolli-Event"))
	assert.Equal(t, "j-1", got.Event.JobID)
	assert.Equal(t, "acme", got.Tenant.TenantID)
}

func TestHTTPSink_RejectsPrivateURL(t *testing.T) {
	_, err := NewHTTPSink("http://127.0.0.1:8080/hook", httpclient.New(httpclient.Options{}))
	require.ErrorIs(t, err, httpclient.ErrBlocked)
}

func TestHTTPSink_ReceiverErrorCountsAsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink, err := NewHTTPSink(srv.URL, httpclient.New(httpclient.Options{AllowPrivate: true}))
	require.NoError(t, err)

	err = sink.Send(context.Background(), Notification{Tenant: tenant.New("acme", "docs")})
	assert.Error(t, err)
}
