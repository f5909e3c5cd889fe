package cloudinary

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
)

// ErrNotConfigured is returned by NewClientFromParams when credentials are missing.
var ErrNotConfigured = errors.New("cloudinary: credentials not configured")

// Client stores contract deliverables. Files of any type are accepted.
type Client interface {
	UploadFile(ctx context.Context, file io.Reader, folder, publicID string) (*UploadResult, error)
	Delete(ctx context.Context, publicID, resourceType string) error
}

type UploadResult struct {
	URL          string
	PublicID     string
	ResourceType string
	Bytes        int
}

// DeliverableFolder is where a contract's files are kept.
func DeliverableFolder(contractID uint) string {
	return fmt.Sprintf("hireloop/contracts/%d/deliverables", contractID)
}

type clientImpl struct {
	uploader *uploader.API
}

func (c *clientImpl) UploadFile(ctx context.Context, file io.Reader, folder, publicID string) (*UploadResult, error) {
	result, err := c.uploader.Upload(ctx, file, uploader.UploadParams{
		Folder:       folder,
		PublicID:     publicID,
		ResourceType: "auto",
	})
	if err != nil {
		return nil, err
	}
	if result.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary: %s", result.Error.Message)
	}
	return &UploadResult{
		URL:          result.SecureURL,
		PublicID:     result.PublicID,
		ResourceType: result.ResourceType,
		Bytes:        result.Bytes,
	}, nil
}

// Delete removes an uploaded asset; used to roll back an upload whose record could not be saved.
func (c *clientImpl) Delete(ctx context.Context, publicID, resourceType string) error {
	if resourceType == "" {
		resourceType = "image"
	}
	_, err := c.uploader.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType,
	})
	return err
}

// NewClientFromParams builds a Client from Cloudinary cloud name, API key, and secret.
func NewClientFromParams(cloudName, apiKey, apiSecret string) (Client, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, ErrNotConfigured
	}
	cfg, err := config.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, err
	}
	up, err := uploader.NewWithConfiguration(cfg)
	if err != nil {
		return nil, err
	}
	return &clientImpl{uploader: up}, nil
}
