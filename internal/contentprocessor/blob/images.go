package blob

import (
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// ImageFetcher retrieves and decodes a remote image. Fetches are best-effort
// on the caller's side: article images and source logos are optional.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (image.Image, error)
}

type HttpImageFetcher struct {
	client *http.Client
}

func NewHttpImageFetcher(timeout time.Duration) *HttpImageFetcher {
	return &HttpImageFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *HttpImageFetcher) Fetch(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "building image request for %s", url)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching image %s", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetching image %s: status %d", url, resp.StatusCode)
	}
	img, _, err := image.Decode(resp.Body)
	return img, errors.Wrapf(err, "decoding image %s", url)
}
