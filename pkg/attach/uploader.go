package attach

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/valyala/fasthttp"

	"chatkit/pkg/logger"
)

// HTTPUploader posts local files to the backend's upload endpoint and
// decodes the returned {"url": "..."} body. It enforces a size ceiling
// before touching the network.
type HTTPUploader struct {
	endpoint string
	maxSize  int64
	client   *fasthttp.Client
	timeout  time.Duration
}

// NewHTTPUploader builds an uploader for endpoint. maxSize <= 0 disables
// the size check.
func NewHTTPUploader(endpoint string, maxSize int64, timeout time.Duration) *HTTPUploader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPUploader{
		endpoint: endpoint,
		maxSize:  maxSize,
		client:   &fasthttp.Client{},
		timeout:  timeout,
	}
}

func (u *HTTPUploader) upload(ctx context.Context, uri, name, kind string) (string, error) {
	data, err := os.ReadFile(uri)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", uri, err)
	}
	if u.maxSize > 0 && int64(len(data)) > u.maxSize {
		return "", fmt.Errorf("%w: %s > %s", ErrTooLarge,
			humanize.Bytes(uint64(len(data))), humanize.Bytes(uint64(u.maxSize)))
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	req := fasthttp.AcquireRequest()
	res := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(res)

	req.SetRequestURI(u.endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/octet-stream")
	req.Header.Set("X-Upload-Kind", kind)
	if name == "" {
		name = filepath.Base(uri)
	}
	req.Header.Set("X-Upload-Name", name)
	req.SetBody(data)

	if err := u.client.DoTimeout(req, res, u.timeout); err != nil {
		return "", fmt.Errorf("upload %s: %w", kind, err)
	}
	if res.StatusCode() < 200 || res.StatusCode() > 299 {
		return "", fmt.Errorf("upload %s: status %d", kind, res.StatusCode())
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(res.Body(), &out); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	logger.Debug("upload_done", "kind", kind, "name", name, "bytes", len(data))
	return out.URL, nil
}

// UploadPhoto implements Uploader.
func (u *HTTPUploader) UploadPhoto(ctx context.Context, uri string) (string, error) {
	return u.upload(ctx, uri, "", "photo")
}

// UploadFile implements Uploader.
func (u *HTTPUploader) UploadFile(ctx context.Context, uri, name string) (string, error) {
	return u.upload(ctx, uri, name, "file")
}

// UploadAudio implements Uploader.
func (u *HTTPUploader) UploadAudio(ctx context.Context, uri, name string) (string, error) {
	return u.upload(ctx, uri, name, "audio")
}
