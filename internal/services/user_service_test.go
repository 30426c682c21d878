// ===============================
// FILE: internal/services/user_service_test.go
// ===============================

package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"wavehub/internal/events"
	"wavehub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newUserServiceForTest(repo *fakeUserRepo, store *fakeObjectStore) UserService {
	bus := events.NewInMemoryEventBus(nil, zap.NewNop())
	return NewUserService(repo, store, bus, zap.NewNop())
}

func TestFetchOrProvisionCreatesProfile(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newUserServiceForTest(repo, &fakeObjectStore{})

	result, err := svc.FetchOrProvision(context.Background(), &models.Identity{
		ID:          "idp|abc123",
		Email:       "jordan.lee@example.com",
		DisplayName: "Jordan Lee",
	})
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, "idp|abc123", result.User.ID)
	assert.Equal(t, "jordan_lee", result.User.Username)
	assert.Equal(t, "Jordan Lee", result.User.Name)
}

func TestFetchOrProvisionIsIdempotent(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newUserServiceForTest(repo, &fakeObjectStore{})
	identity := testIdentity("idp|repeat")

	first, err := svc.FetchOrProvision(context.Background(), identity)
	require.NoError(t, err)
	require.True(t, first.Created)

	second, err := svc.FetchOrProvision(context.Background(), identity)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, first.User.Username, second.User.Username)
	assert.Equal(t, 1, repo.insertCalls, "second call must not attempt an insert")
}

func TestFetchOrProvisionLostRaceReadsWinner(t *testing.T) {
	repo := newFakeUserRepo()
	// The winner's row lands between this caller's lookup and insert; the
	// fake commits it when the losing insert comes through.
	repo.loseRaces = 1
	svc := newUserServiceForTest(repo, &fakeObjectStore{})

	result, err := svc.FetchOrProvision(context.Background(), &models.Identity{
		ID:    "idp|race",
		Email: "race@example.com",
	})
	require.NoError(t, err)
	assert.False(t, result.Created, "losing the insert race is success, not conflict")
	assert.Equal(t, "winner_race", result.User.Username, "the winner's row is returned")
}

func TestFetchOrProvisionResolvesUsernameCollision(t *testing.T) {
	repo := newFakeUserRepo()
	repo.taken["pat"] = true
	repo.taken["pat1"] = true

	svc := newUserServiceForTest(repo, &fakeObjectStore{})

	result, err := svc.FetchOrProvision(context.Background(), &models.Identity{
		ID:    "idp|pat",
		Email: "pat@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "pat2", result.User.Username)
}

func TestFetchOrProvisionConcurrentFirstRequests(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newUserServiceForTest(repo, &fakeObjectStore{})
	identity := testIdentity("idp|burst")

	const callers = 16
	results := make([]*ProvisionResult, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.FetchOrProvision(context.Background(), identity)
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		assert.Equal(t, identity.ID, results[i].User.ID)
		if results[i].Created {
			created++
		}
	}
	assert.Equal(t, 1, created, "exactly one caller creates the profile")
	assert.Len(t, repo.users, 1)
}

func TestUsernameFromEmail(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"jordan.lee@example.com", "jordan_lee"},
		{"UPPER@example.com", "upper"},
		{"a-b@example.com", "a_b"},
		{"x@example.com", "listener"}, // too short after stripping
		{"no-at-sign", "no_at_sign"},
		{strings.Repeat("a", 60) + "@example.com", strings.Repeat("a", 40)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, usernameFromEmail(tt.email), tt.email)
	}
}

func TestUpdateProfilePatchesFields(t *testing.T) {
	repo := newFakeUserRepo()
	store := &fakeObjectStore{}
	svc := newUserServiceForTest(repo, store)
	identity := testIdentity("idp|edit")

	_, err := svc.FetchOrProvision(context.Background(), identity)
	require.NoError(t, err)

	name := "New Name"
	bio := "making sounds"
	updated, err := svc.UpdateProfile(context.Background(), identity, &UpdateProfileRequest{
		Name: &name,
		Bio:  &bio,
	})
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.Name)
	require.NotNil(t, updated.Bio)
	assert.Equal(t, "making sounds", *updated.Bio)
	assert.Empty(t, store.deletedIDs(), "no image involved, nothing to clean up")
}

func TestUpdateProfileReplacesImageAndDeletesOldBlob(t *testing.T) {
	repo := newFakeUserRepo()
	store := &fakeObjectStore{}
	svc := newUserServiceForTest(repo, store)
	identity := testIdentity("idp|pic")

	_, err := svc.FetchOrProvision(context.Background(), identity)
	require.NoError(t, err)

	oldID := "old-blob"
	repo.users[identity.ID].ProfileImagePublicID = &oldID

	updated, err := svc.UpdateProfile(context.Background(), identity, &UpdateProfileRequest{
		Image: &ImageUpload{
			Body:        strings.NewReader("png bytes"),
			Size:        9,
			ContentType: "image/png",
			Filename:    "me.png",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, updated.ProfileImageURL)
	assert.Contains(t, *updated.ProfileImageURL, "cdn.example.com")
	assert.Contains(t, store.deletedIDs(), "old-blob", "replaced blob is cleaned up")
}

func TestUpdateProfileUploadFailureLeavesProfileUntouched(t *testing.T) {
	repo := newFakeUserRepo()
	store := &fakeObjectStore{putErr: assert.AnError}
	svc := newUserServiceForTest(repo, store)
	identity := testIdentity("idp|fail")

	result, err := svc.FetchOrProvision(context.Background(), identity)
	require.NoError(t, err)
	before := *result.User

	_, err = svc.UpdateProfile(context.Background(), identity, &UpdateProfileRequest{
		Image: &ImageUpload{Body: strings.NewReader("x"), Size: 1, ContentType: "image/png"},
	})
	require.Error(t, err)

	after, err := svc.GetUser(context.Background(), identity.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Name, after.Name)
	assert.Nil(t, after.ProfileImageURL)
}

func TestUpdateProfileRejectsEmptyPatch(t *testing.T) {
	svc := newUserServiceForTest(newFakeUserRepo(), &fakeObjectStore{})

	_, err := svc.UpdateProfile(context.Background(), testIdentity("idp|x"), &UpdateProfileRequest{})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}
