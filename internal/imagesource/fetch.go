package imagesource

import (
	"context"
	"fmt"

	"github.com/banshee-data/stemview/internal/httputil"
)

// MaxFetchSize bounds a fetched image body.
const MaxFetchSize = 64 << 20

// FetchImage GETs url and decodes a FetchedImage from the JSON body.
func FetchImage(ctx context.Context, client httputil.HTTPClient, url string) (FetchedImage, error) {
	var img FetchedImage
	if err := httputil.GetJSON(ctx, client, url, MaxFetchSize, &img); err != nil {
		return FetchedImage{}, fmt.Errorf("failed to fetch image: %w", err)
	}
	return img, nil
}

// LoadURL fetches url and assigns the result.
func (s *StaticSource) LoadURL(ctx context.Context, client httputil.HTTPClient, url string) error {
	img, err := FetchImage(ctx, client, url)
	if err != nil {
		return err
	}
	return s.Load(img)
}
