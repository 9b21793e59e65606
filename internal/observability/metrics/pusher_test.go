package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPusherDisabledWithoutEndpoint(t *testing.T) {
	p := NewPusher("  ", "payoutctl", nil, nil)
	assert.Nil(t, p)
	assert.NoError(t, p.Push(context.Background()))
}

func TestPusherPushesGroupedJob(t *testing.T) {
	var (
		gotPath string
		gotBody []byte
	)
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	registry := prometheus.NewRegistry()
	m := NewSettlementMetricsForRegistry(registry)
	m.IncBatchRun("settle_all")

	p := NewPusher(gateway.URL, "payoutctl", map[string]string{"command": "create-batch"}, registry)
	require.NoError(t, p.Push(context.Background()))

	assert.Equal(t, "/metrics/job/payoutctl/command/create-batch", gotPath)
	assert.NotEmpty(t, gotBody)
}
