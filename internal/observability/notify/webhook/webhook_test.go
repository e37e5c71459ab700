package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchd-io/punchd/internal/domain/model"
	"github.com/punchd-io/punchd/internal/observability/notify"
)

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{})
	assert.Error(t, err)

	client, err := NewClient(Config{URL: "http://hooks.example.test/run"})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestSendRunReport(t *testing.T) {
	t.Parallel()

	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL, Source: "ci"})
	require.NoError(t, err)

	payload := notify.RunPayload{
		AccountID:   "acct-1",
		MaskedPhone: "1*********1",
		Status:      model.RunAllSuccess,
		Results:     []model.TaskResult{{Task: model.TaskCheckin, Status: model.TaskSuccess}},
	}
	require.NoError(t, client.SendRunReport(context.Background(), payload))

	assert.Equal(t, "ci", got["source"])
	assert.Equal(t, "acct-1", got["account_id"])
	assert.Equal(t, "Run success for 1*********1", got["title"])
	assert.Equal(t, "success", got["status"])
}

func TestSendRunReportRetries(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL, RetryLimit: 3})
	require.NoError(t, err)

	require.NoError(t, client.SendRunReport(context.Background(), notify.RunPayload{}))
	assert.Equal(t, int32(3), hits.Load())
}

func TestSendRunReportExhaustsRetries(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL, RetryLimit: 1})
	require.NoError(t, err)

	err = client.SendRunReport(context.Background(), notify.RunPayload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
	assert.Equal(t, int32(2), hits.Load())
}
