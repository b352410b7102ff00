// Package media deletes externally stored attachments. Cleanup is always
// best-effort: callers log failures and move on, a post removal never fails
// because the media provider is down.
package media

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bcetconnect/backend/internal/models"
)

// Cleaner removes uploaded media by provider-assigned id
type Cleaner interface {
	Delete(ctx context.Context, refs []models.Media) error
}

// CloudinaryCleaner deletes assets through the Cloudinary destroy endpoint
type CloudinaryCleaner struct {
	cloudName string
	apiKey    string
	apiSecret string
	baseURL   string
	client    *http.Client
}

// NewCloudinaryCleaner creates a CloudinaryCleaner for the given account
func NewCloudinaryCleaner(cloudName, apiKey, apiSecret string) *CloudinaryCleaner {
	return &CloudinaryCleaner{
		cloudName: cloudName,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   "https://api.cloudinary.com/v1_1",
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Delete destroys each referenced asset. Refs without a provider id are
// skipped. All failures are collected so the caller can log them in one line.
func (c *CloudinaryCleaner) Delete(ctx context.Context, refs []models.Media) error {
	var errs []error
	for _, ref := range refs {
		if ref.PublicID == "" {
			continue
		}
		if err := c.destroy(ctx, ref); err != nil {
			errs = append(errs, fmt.Errorf("destroy %s: %w", ref.PublicID, err))
		}
	}
	return errors.Join(errs...)
}

func (c *CloudinaryCleaner) destroy(ctx context.Context, ref models.Media) error {
	resourceType := "image"
	if ref.Type == "video" {
		resourceType = "video"
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	toSign := fmt.Sprintf("public_id=%s&timestamp=%s%s", ref.PublicID, timestamp, c.apiSecret)
	digest := sha1.Sum([]byte(toSign))

	form := url.Values{}
	form.Set("public_id", ref.PublicID)
	form.Set("timestamp", timestamp)
	form.Set("api_key", c.apiKey)
	form.Set("signature", hex.EncodeToString(digest[:]))

	endpoint := fmt.Sprintf("%s/%s/%s/destroy", c.baseURL, c.cloudName, resourceType)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}
	req.URL.RawQuery = form.Encode()

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// NopCleaner does nothing. Used when no media provider is configured and in
// tests.
type NopCleaner struct{}

func (NopCleaner) Delete(context.Context, []models.Media) error { return nil }
