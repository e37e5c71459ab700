package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/punchd-io/punchd/config"
	"github.com/punchd-io/punchd/internal/core"
)

const (
	uploadRetryLimit  = 3
	uploadBackoffBase = 5 * time.Second
)

// UploaderOptions configures the image upload service.
type UploaderOptions struct {
	Config     config.RemoteConfig
	Logger     *slog.Logger
	HTTPClient *http.Client
}

// Uploader pushes generated report images to the platform's object storage
// and returns the attachment keys the report payload expects.
type Uploader struct {
	host       string
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
	sleep      func(context.Context, time.Duration) error
}

var _ core.ImageUploader = (*Uploader)(nil)

// NewUploader constructs the upload service.
func NewUploader(opts UploaderOptions) *Uploader {
	if opts.Config.UploadHost == "" {
		panic("upload host is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Config.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "uploader")
	}
	return &Uploader{
		host:       opts.Config.UploadHost,
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// Upload stores params.Count generated images under the account's storage
// prefix and returns the comma-joined keys. The storage strips the "upload/"
// prefix from the key it reports back; the report payload wants it stripped.
func (u *Uploader) Upload(ctx context.Context, params core.UploadParams) (string, error) {
	if params.Token == "" {
		return "", fmt.Errorf("upload token is empty")
	}
	if params.Count <= 0 {
		return "", nil
	}

	keys := make([]string, 0, params.Count)
	for i := 0; i < params.Count; i++ {
		key := fmt.Sprintf("upload/%s/%s/report/%s_%d.jpg",
			params.OrgID,
			u.now().Format("2006-01-02"),
			params.UserID,
			u.now().UnixMicro(),
		)

		img, err := renderFillerImage()
		if err != nil {
			return "", fmt.Errorf("rendering image: %w", err)
		}

		stored, err := u.uploadOne(ctx, params.Token, key, img)
		if err != nil {
			return "", fmt.Errorf("uploading image %d/%d: %w", i+1, params.Count, err)
		}
		keys = append(keys, strings.TrimPrefix(stored, "upload/"))
	}
	return strings.Join(keys, ","), nil
}

func (u *Uploader) uploadOne(ctx context.Context, token, key string, img []byte) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= uploadRetryLimit; attempt++ {
		if attempt > 0 {
			delay := uploadBackoffBase << (attempt - 1)
			u.logger.WarnContext(ctx, "upload retry",
				"attempt", attempt, "delay", delay, "error", lastErr)
			if err := u.sleep(ctx, delay); err != nil {
				return "", err
			}
		}

		stored, err := u.post(ctx, token, key, img)
		if err == nil {
			return stored, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("after %d attempts: %w", uploadRetryLimit+1, lastErr)
}

func (u *Uploader) post(ctx context.Context, token, key string, img []byte) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("token", token); err != nil {
		return "", err
	}
	if err := form.WriteField("key", key); err != nil {
		return "", err
	}
	if err := form.WriteField("x-qn-meta-fname", "report.jpg"); err != nil {
		return "", err
	}
	part, err := form.CreateFormFile("file", "report.jpg")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(img); err != nil {
		return "", err
	}
	if err := form.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.host, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	rsp, err := u.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, rsp.Body)
		_ = rsp.Body.Close()
	}()

	if rsp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(rsp.Body, 2048))
		return "", fmt.Errorf("storage returned status %d: %s", rsp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(rsp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding storage response: %w", err)
	}
	if result.Key == "" {
		return "", fmt.Errorf("storage response missing key")
	}
	return result.Key, nil
}

// renderFillerImage produces a small randomly-tinted JPEG. The platform only
// checks that an attachment exists, not what it depicts.
func renderFillerImage() ([]byte, error) {
	const size = 64
	tint := color.RGBA{
		R: uint8(180 + rand.IntN(60)),
		G: uint8(180 + rand.IntN(60)),
		B: uint8(180 + rand.IntN(60)),
		A: 255,
	}
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, tint)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 70}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
