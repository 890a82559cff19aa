// Package storage keeps uploaded payment proofs.
package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// ProofStore saves a proof file and returns where it can be viewed. hash is
// the file's SHA-256 and doubles as its public id, so uploading the same file
// twice overwrites rather than duplicates.
type ProofStore interface {
	Save(ctx context.Context, hash string, data []byte) (string, error)
	Delete(ctx context.Context, hash string) error
}

type CloudinaryProofStore struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryProofStore(cloudinaryURL, folder string) (*CloudinaryProofStore, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return &CloudinaryProofStore{cld: cld, folder: folder}, nil
}

func (s *CloudinaryProofStore) params(hash string) uploader.UploadParams {
	return uploader.UploadParams{
		Folder:       s.folder,
		PublicID:     hash,
		Overwrite:    api.Bool(true),
		ResourceType: "auto",
	}
}

func (s *CloudinaryProofStore) Save(ctx context.Context, hash string, data []byte) (string, error) {
	resp, err := s.cld.Upload.Upload(ctx, bytes.NewReader(data), s.params(hash))
	if err != nil {
		return "", err
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("cloudinary: %s", resp.Error.Message)
	}
	return resp.SecureURL, nil
}

func (s *CloudinaryProofStore) publicID(hash string) string {
	if s.folder == "" {
		return hash
	}
	return s.folder + "/" + hash
}

// Delete removes a stored proof. Images and PDFs live under the image
// resource type, anything else under raw.
func (s *CloudinaryProofStore) Delete(ctx context.Context, hash string) error {
	for _, resourceType := range []string{"image", "raw"} {
		resp, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
			PublicID:     s.publicID(hash),
			ResourceType: resourceType,
		})
		if err != nil {
			return err
		}
		if resp.Error.Message != "" {
			return fmt.Errorf("cloudinary: %s", resp.Error.Message)
		}
		if resp.Result == "ok" {
			return nil
		}
	}
	return nil
}
