package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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

	client, err := NewClient(Config{BotToken: "123:abc", ChatID: "42"})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestSendRunReport(t *testing.T) {
	t.Parallel()

	var gotPath string
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewClient(Config{BotToken: "123:abc", ChatID: "42", APIBase: server.URL})
	require.NoError(t, err)

	payload := notify.RunPayload{
		MaskedPhone: "1*********1",
		Status:      model.RunAllSuccess,
		Results:     []model.TaskResult{{Task: model.TaskCheckin, Status: model.TaskSuccess}},
	}
	require.NoError(t, client.SendRunReport(context.Background(), payload))

	assert.Equal(t, "/bot123:abc/sendMessage", gotPath)
	assert.Equal(t, "42", got["chat_id"])
	assert.Contains(t, got["text"], "Run success for 1*********1")
}

func TestSendToOverridesChat(t *testing.T) {
	t.Parallel()

	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer server.Close()

	client, err := NewClient(Config{BotToken: "123:abc", ChatID: "42", APIBase: server.URL})
	require.NoError(t, err)

	require.NoError(t, client.SendTo(context.Background(), "777", notify.RunPayload{}))
	assert.Equal(t, "777", got["chat_id"])
}

func TestSendToRequiresChatID(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{BotToken: "123:abc"})
	require.NoError(t, err)

	err = client.SendRunReport(context.Background(), notify.RunPayload{})
	assert.Error(t, err)
}
