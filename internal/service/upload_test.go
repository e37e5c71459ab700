package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchd-io/punchd/config"
	"github.com/punchd-io/punchd/internal/core"
)

func newTestUploader(t *testing.T, host string) *Uploader {
	t.Helper()
	u := NewUploader(UploaderOptions{
		Config: config.RemoteConfig{UploadHost: host, Timeout: 5 * time.Second},
		Logger: slog.New(slog.DiscardHandler),
	})
	u.now = func() time.Time {
		return time.Date(2026, time.March, 4, 9, 0, 0, 0, time.UTC)
	}
	u.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return u
}

func TestUploadStoresImagesAndStripsPrefix(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "store-token", r.FormValue("token"))
		assert.Equal(t, "report.jpg", r.FormValue("x-qn-meta-fname"))

		key := r.FormValue("key")
		assert.True(t, strings.HasPrefix(key, "upload/org-9/2026-03-04/report/u-1_"))
		assert.True(t, strings.HasSuffix(key, ".jpg"))

		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		fmt.Fprintf(w, `{"key":%q}`, key)
	}))
	defer server.Close()

	uploader := newTestUploader(t, server.URL)
	keys, err := uploader.Upload(context.Background(), core.UploadParams{
		Token:  "store-token",
		UserID: "u-1",
		OrgID:  "org-9",
		Count:  2,
	})
	require.NoError(t, err)

	parts := strings.Split(keys, ",")
	require.Len(t, parts, 2)
	for _, part := range parts {
		// The payload wants the key without the storage's "upload/" prefix.
		assert.True(t, strings.HasPrefix(part, "org-9/2026-03-04/report/u-1_"))
	}
}

func TestUploadRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		require.NoError(t, r.ParseMultipartForm(1<<20))
		fmt.Fprintf(w, `{"key":%q}`, r.FormValue("key"))
	}))
	defer server.Close()

	uploader := newTestUploader(t, server.URL)
	keys, err := uploader.Upload(context.Background(), core.UploadParams{
		Token: "tok", UserID: "u-1", OrgID: "org-1", Count: 1,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, keys)
	assert.Equal(t, int32(2), hits.Load())
}

func TestUploadGivesUpAfterRetryBudget(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	uploader := newTestUploader(t, server.URL)
	_, err := uploader.Upload(context.Background(), core.UploadParams{
		Token: "tok", UserID: "u-1", OrgID: "org-1", Count: 1,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 4 attempts")
	assert.Equal(t, int32(4), hits.Load())
}

func TestUploadValidation(t *testing.T) {
	t.Parallel()

	uploader := newTestUploader(t, "http://unused.invalid")

	_, err := uploader.Upload(context.Background(), core.UploadParams{Count: 1})
	assert.Error(t, err)

	keys, err := uploader.Upload(context.Background(), core.UploadParams{Token: "tok", Count: 0})
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRenderFillerImage(t *testing.T) {
	t.Parallel()

	img, err := renderFillerImage()
	require.NoError(t, err)
	// JPEG magic.
	require.Greater(t, len(img), 2)
	assert.Equal(t, []byte{0xFF, 0xD8}, img[:2])
}
