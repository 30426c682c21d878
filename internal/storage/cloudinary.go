package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"wavehub/internal/config"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

// cloudinaryStore implements ObjectStore backed by Cloudinary. Audio files
// upload under Cloudinary's "video" resource type (its audio bucket);
// images under "image".
type cloudinaryStore struct {
	client *cloudinary.Cloudinary
	cfg    *config.StorageConfig
	logger *zap.Logger
}

// NewCloudinaryStore builds an ObjectStore from the configured Cloudinary URL.
func NewCloudinaryStore(cfg *config.StorageConfig, logger *zap.Logger) (ObjectStore, error) {
	if cfg.CloudinaryURL == "" {
		return nil, ErrNotConfigured
	}

	client, err := cloudinary.NewFromURL(cfg.CloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary client: %w", err)
	}
	client.Config.URL.Secure = true

	return &cloudinaryStore{
		client: client,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Put uploads a blob and returns its stable URL. Transient provider errors
// are retried with exponential backoff inside the upload timeout.
func (s *cloudinaryStore) Put(ctx context.Context, req *PutRequest) (*Object, error) {
	if req == nil || req.Body == nil {
		return nil, NewError("put", "empty upload body", nil)
	}
	if err := s.validate(req); err != nil {
		return nil, err
	}

	// Buffer the body once so every retry uploads the whole blob. Retrying
	// with the original reader would resume from wherever a failed attempt
	// stopped consuming it and publish a truncated blob.
	body, err := bufferBody(req.Body, s.maxBytesFor(req.Kind))
	if err != nil {
		return nil, err
	}

	uploadCtx, cancel := context.WithTimeout(ctx, s.cfg.UploadTimeout)
	defer cancel()

	params := uploader.UploadParams{
		Folder:         s.folderFor(req),
		PublicID:       s.publicIDFor(req),
		ResourceType:   resourceTypeFor(req.Kind),
		UseFilename:    boolPtr(false),
		UniqueFilename: boolPtr(true),
		Overwrite:      boolPtr(false),
		Tags:           []string{"wavehub", string(req.Kind)},
	}

	var result *uploader.UploadResult
	operation := func() error {
		if _, seekErr := body.Seek(0, io.SeekStart); seekErr != nil {
			return backoff.Permanent(seekErr)
		}
		var opErr error
		result, opErr = s.client.Upload.Upload(uploadCtx, body, params)
		if opErr != nil {
			return opErr
		}
		if result == nil || result.SecureURL == "" {
			return fmt.Errorf("upload returned no URL")
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = s.cfg.UploadTimeout / 2
	err = backoff.RetryNotify(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, 2), uploadCtx),
		func(err error, d time.Duration) {
			s.logger.Warn("Upload attempt failed",
				zap.String("path_hint", req.PathHint),
				zap.Error(err),
				zap.Duration("backoff", d),
			)
		},
	)
	if err != nil {
		s.logger.Error("Upload failed",
			zap.String("path_hint", req.PathHint),
			zap.String("kind", string(req.Kind)),
			zap.Error(err),
		)
		return nil, NewError("put", "upload failed", err)
	}

	s.logger.Info("Blob uploaded",
		zap.String("public_id", result.PublicID),
		zap.String("url", result.SecureURL),
		zap.Int("bytes", result.Bytes),
	)

	return &Object{
		URL:      result.SecureURL,
		PublicID: result.PublicID,
		Bytes:    int64(result.Bytes),
		Format:   result.Format,
	}, nil
}

// Delete removes a blob by its public ID.
func (s *cloudinaryStore) Delete(ctx context.Context, publicID string) error {
	if publicID == "" {
		return NewError("delete", "public ID is required", nil)
	}

	deleteCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	result, err := s.client.Upload.Destroy(deleteCtx, uploader.DestroyParams{
		PublicID: publicID,
	})
	if err != nil {
		s.logger.Error("Failed to delete blob",
			zap.String("public_id", publicID),
			zap.Error(err),
		)
		return NewError("delete", "provider error", err)
	}
	if result.Result != "ok" && result.Result != "not found" {
		return NewError("delete", fmt.Sprintf("unexpected result %q", result.Result), nil)
	}

	s.logger.Info("Blob deleted", zap.String("public_id", publicID))
	return nil
}

func (s *cloudinaryStore) validate(req *PutRequest) error {
	switch req.Kind {
	case KindAudio:
		if req.Size > s.cfg.MaxAudioSize {
			return NewError("put", fmt.Sprintf("audio exceeds %d bytes", s.cfg.MaxAudioSize), nil)
		}
		if !contains(s.cfg.AllowedAudio, req.ContentType) {
			return NewError("put", fmt.Sprintf("unsupported audio type %q", req.ContentType), nil)
		}
	case KindImage:
		if req.Size > s.cfg.MaxImageSize {
			return NewError("put", fmt.Sprintf("image exceeds %d bytes", s.cfg.MaxImageSize), nil)
		}
		if !contains(s.cfg.AllowedImages, req.ContentType) {
			return NewError("put", fmt.Sprintf("unsupported image type %q", req.ContentType), nil)
		}
	default:
		return NewError("put", fmt.Sprintf("unknown blob kind %q", req.Kind), nil)
	}
	return nil
}

func (s *cloudinaryStore) maxBytesFor(kind Kind) int64 {
	if kind == KindAudio {
		return s.cfg.MaxAudioSize
	}
	return s.cfg.MaxImageSize
}

// bufferBody drains the upload into a rewindable reader, rejecting bodies
// whose actual byte count exceeds the cap regardless of the declared size.
func bufferBody(r io.Reader, maxBytes int64) (*bytes.Reader, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, NewError("put", "failed to read upload body", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, NewError("put", fmt.Sprintf("upload exceeds %d bytes", maxBytes), nil)
	}
	return bytes.NewReader(data), nil
}

func (s *cloudinaryStore) folderFor(req *PutRequest) string {
	folder := s.cfg.UploadFolder
	if hint := strings.Trim(req.PathHint, "/"); hint != "" {
		if idx := strings.LastIndex(hint, "/"); idx > 0 {
			folder = folder + "/" + hint[:idx]
		} else {
			folder = folder + "/" + string(req.Kind)
		}
	}
	return folder
}

func (s *cloudinaryStore) publicIDFor(req *PutRequest) string {
	id, err := uuid.NewV4()
	if err != nil {
		return ""
	}
	hint := strings.Trim(req.PathHint, "/")
	if idx := strings.LastIndex(hint, "/"); idx >= 0 {
		hint = hint[idx+1:]
	}
	if hint == "" {
		return id.String()
	}
	return hint + "-" + id.String()
}

func resourceTypeFor(kind Kind) string {
	if kind == KindAudio {
		return "video" // Cloudinary stores audio under the video resource type
	}
	return "image"
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}

func boolPtr(b bool) *bool { return &b }
