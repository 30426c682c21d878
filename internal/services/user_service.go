// ===============================
// FILE: internal/services/user_service.go
// ===============================

package services

import (
	"context"
	"fmt"
	"strings"

	"wavehub/internal/events"
	"wavehub/internal/models"
	"wavehub/internal/repositories"
	"wavehub/internal/storage"

	"go.uber.org/zap"
)

// maxUsernameAttempts bounds the suffix loop when the preferred username
// keeps colliding.
const maxUsernameAttempts = 10

// userService implements UserService.
type userService struct {
	userRepo repositories.UserRepository
	store    storage.ObjectStore
	events   events.EventBus
	logger   *zap.Logger
}

// NewUserService creates a new user service.
func NewUserService(
	userRepo repositories.UserRepository,
	store storage.ObjectStore,
	eventBus events.EventBus,
	logger *zap.Logger,
) UserService {
	return &userService{
		userRepo: userRepo,
		store:    store,
		events:   eventBus,
		logger:   logger,
	}
}

// FetchOrProvision returns the profile for the identity, creating it on
// first contact. Concurrent first requests race on the conditional insert;
// the losers read back the winner's row, so every caller sees exactly one
// profile and nobody fails.
func (s *userService) FetchOrProvision(ctx context.Context, identity *models.Identity) (*ProvisionResult, error) {
	if identity == nil || identity.ID == "" {
		return nil, NewUnauthorizedError("authentication required")
	}

	existing, err := s.userRepo.GetByID(ctx, identity.ID)
	if err != nil {
		return nil, NewInternalError("failed to look up profile", err)
	}
	if existing != nil {
		return &ProvisionResult{User: existing, Created: false}, nil
	}

	base := usernameFromEmail(identity.Email)
	name := strings.TrimSpace(identity.DisplayName)
	if name == "" {
		name = base
	}

	user := &models.User{
		ID:    identity.ID,
		Email: identity.Email,
		Name:  name,
	}
	if identity.PhotoURL != "" {
		photo := identity.PhotoURL
		user.ProfileImageURL = &photo
	}

	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		user.Username = base
		if attempt > 0 {
			user.Username = fmt.Sprintf("%s%d", base, attempt)
		}

		created, err := s.userRepo.Insert(ctx, user)
		if err != nil {
			if repositories.IsUsernameTaken(err) {
				continue
			}
			return nil, NewInternalError("failed to provision profile", err)
		}
		if !created {
			// Lost the provisioning race; the winner's row is authoritative.
			winner, err := s.userRepo.GetByID(ctx, identity.ID)
			if err != nil {
				return nil, NewInternalError("failed to read provisioned profile", err)
			}
			if winner == nil {
				return nil, NewInternalError("profile vanished during provisioning", nil)
			}
			return &ProvisionResult{User: winner, Created: false}, nil
		}

		if err := s.events.PublishAsync(ctx, events.NewUserProvisionedEvent(user.ID, user.Username, user.Email)); err != nil {
			s.logger.Warn("failed to publish provisioning event",
				zap.String("user_id", user.ID), zap.Error(err))
		}
		s.logger.Info("profile provisioned",
			zap.String("user_id", user.ID),
			zap.String("username", user.Username))
		return &ProvisionResult{User: user, Created: true}, nil
	}

	return nil, NewConflictError("could not find a free username")
}

// GetUser returns a profile by ID.
func (s *userService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, NewValidationError("user id is required", nil)
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, NewInternalError("failed to get user", err)
	}
	if user == nil {
		return nil, NewNotFoundError("user not found")
	}
	return user, nil
}

// GetUserByUsername returns a profile by username.
func (s *userService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	if username == "" {
		return nil, NewValidationError("username is required", nil)
	}
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, NewInternalError("failed to get user", err)
	}
	if user == nil {
		return nil, NewNotFoundError("user not found")
	}
	return user, nil
}

// UpdateProfile patches the caller's profile. A replacement image is
// uploaded before the record is touched, so a storage failure leaves the
// profile exactly as it was; the replaced blob is deleted best-effort
// after the patch commits.
func (s *userService) UpdateProfile(ctx context.Context, identity *models.Identity, req *UpdateProfileRequest) (*models.User, error) {
	if identity == nil || identity.ID == "" {
		return nil, NewUnauthorizedError("authentication required")
	}
	if req.Name == nil && req.Bio == nil && req.Image == nil {
		return nil, NewValidationError("nothing to update", nil)
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if trimmed == "" {
			return nil, NewValidationError("name must not be blank", nil)
		}
		if len(trimmed) > 150 {
			return nil, NewValidationError("name exceeds 150 characters", nil)
		}
		req.Name = &trimmed
	}
	if req.Bio != nil && len(*req.Bio) > 1000 {
		return nil, NewValidationError("bio exceeds 1000 characters", nil)
	}

	current, err := s.userRepo.GetByID(ctx, identity.ID)
	if err != nil {
		return nil, NewInternalError("failed to look up profile", err)
	}
	if current == nil {
		return nil, NewNotFoundError("user not found")
	}

	params := repositories.UpdateUserParams{
		Name: req.Name,
		Bio:  req.Bio,
	}

	if req.Image != nil {
		obj, err := s.store.Put(ctx, &storage.PutRequest{
			Body:        req.Image.Body,
			Size:        req.Image.Size,
			ContentType: req.Image.ContentType,
			PathHint:    fmt.Sprintf("profiles/%s/%s", identity.ID, req.Image.Filename),
			Kind:        storage.KindImage,
		})
		if err != nil {
			if storage.IsStorageError(err) {
				return nil, NewStorageError("profile image upload failed", err)
			}
			return nil, NewValidationError("profile image rejected", err)
		}
		params.ProfileImageURL = &obj.URL
		params.ProfileImagePublicID = &obj.PublicID
	}

	updated, err := s.userRepo.Update(ctx, identity.ID, params)
	if err != nil {
		if req.Image != nil {
			s.cleanupBlob(params.ProfileImagePublicID, "profile patch failed")
		}
		if repositories.IsNotFound(err) {
			return nil, NewNotFoundError("user not found")
		}
		return nil, NewInternalError("failed to update profile", err)
	}

	if req.Image != nil && current.ProfileImagePublicID != nil &&
		(params.ProfileImagePublicID == nil || *current.ProfileImagePublicID != *params.ProfileImagePublicID) {
		s.cleanupBlob(current.ProfileImagePublicID, "replaced profile image")
	}

	s.logger.Info("profile updated", zap.String("user_id", identity.ID))
	return updated, nil
}

// cleanupBlob deletes a blob after a failed patch or a successful
// replacement. Failures are logged, never surfaced.
func (s *userService) cleanupBlob(publicID *string, reason string) {
	if publicID == nil || *publicID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), blobCleanupTimeout)
	defer cancel()
	if err := s.store.Delete(ctx, *publicID); err != nil {
		s.logger.Warn("blob cleanup failed",
			zap.String("public_id", *publicID),
			zap.String("reason", reason),
			zap.Error(err))
	}
}

// usernameFromEmail derives the preferred username from the email
// local-part, stripped down to the characters usernames allow.
func usernameFromEmail(email string) string {
	local := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		local = email[:at]
	}
	var b strings.Builder
	for _, r := range strings.ToLower(local) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == '.', r == '-':
			b.WriteByte('_')
		}
	}
	name := b.String()
	if len(name) < 3 {
		name = "listener"
	}
	if len(name) > 40 {
		name = name[:40]
	}
	return name
}
