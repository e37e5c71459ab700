package solver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresURL(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestSolveSlider(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/slider", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "jig-b64", req["jigsaw"])
		assert.Equal(t, "bg-b64", req["background"])

		fmt.Fprint(w, `{"point":"{\"x\":120,\"y\":5}"}`)
	}))
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL + "/"})
	require.NoError(t, err)

	point, err := client.SolveSlider(context.Background(), "jig-b64", "bg-b64")
	require.NoError(t, err)
	assert.Equal(t, `{"x":120,"y":5}`, point)
}

func TestSolveClickWords(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/click-words", r.URL.Path)

		var req struct {
			Image string   `json:"image"`
			Words []string `json:"words"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"一", "二"}, req.Words)

		fmt.Fprint(w, `{"point":"[{\"x\":1,\"y\":2}]"}`)
	}))
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL})
	require.NoError(t, err)

	points, err := client.SolveClickWords(context.Background(), "img-b64", []string{"一", "二"})
	require.NoError(t, err)
	assert.Equal(t, `[{"x":1,"y":2}]`, points)
}

func TestSolveErrors(t *testing.T) {
	t.Parallel()

	t.Run("upstream failure", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "recognition failed", http.StatusUnprocessableEntity)
		}))
		defer server.Close()

		client, err := NewClient(Config{URL: server.URL})
		require.NoError(t, err)

		_, err = client.SolveSlider(context.Background(), "a", "b")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "recognition failed")
	})

	t.Run("empty point", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"point":""}`)
		}))
		defer server.Close()

		client, err := NewClient(Config{URL: server.URL})
		require.NoError(t, err)

		_, err = client.SolveSlider(context.Background(), "a", "b")
		assert.Error(t, err)
	})
}
