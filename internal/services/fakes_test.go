// ===============================
// FILE: internal/services/fakes_test.go
// ===============================

package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"wavehub/internal/models"
	"wavehub/internal/repositories"
	"wavehub/internal/storage"
)

// ===============================
// REPOSITORY FAKES
// ===============================

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
	taken map[string]bool // usernames that collide regardless of stored users

	insertCalls int
	// loseRaces makes the next N Inserts report "row already there".
	loseRaces int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users: make(map[string]*models.User),
		taken: make(map[string]bool),
	}
}

func (f *fakeUserRepo) Insert(ctx context.Context, user *models.User) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if f.loseRaces > 0 {
		f.loseRaces--
		// Simulate the concurrent winner committing first.
		if _, exists := f.users[user.ID]; !exists {
			f.users[user.ID] = &models.User{
				ID:       user.ID,
				Username: "winner_" + user.Username,
				Email:    user.Email,
				Name:     user.Name,
			}
		}
		return false, nil
	}
	if f.taken[user.Username] {
		return false, fmt.Errorf("insert user: %w", repositories.ErrUsernameTaken)
	}
	for _, u := range f.users {
		if u.Username == user.Username {
			return false, fmt.Errorf("insert user: %w", repositories.ErrUsernameTaken)
		}
	}
	if _, exists := f.users[user.ID]; exists {
		return false, nil
	}
	cp := *user
	f.users[user.ID] = &cp
	return true, nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.taken[username] {
		return true, nil
	}
	for _, u := range f.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserRepo) Update(ctx context.Context, id string, params repositories.UpdateUserParams) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("update user: %w", repositories.ErrNotFound)
	}
	if params.Name != nil {
		u.Name = *params.Name
	}
	if params.Bio != nil {
		u.Bio = params.Bio
	}
	if params.ProfileImageURL != nil {
		u.ProfileImageURL = params.ProfileImageURL
	}
	if params.ProfileImagePublicID != nil {
		u.ProfileImagePublicID = params.ProfileImagePublicID
	}
	cp := *u
	return &cp, nil
}

type fakePostRepo struct {
	mu     sync.Mutex
	posts  map[int64]*models.Post
	nextID int64

	createErr error
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{posts: make(map[int64]*models.Post)}
}

func (f *fakePostRepo) Create(ctx context.Context, post *models.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	post.ID = f.nextID
	cp := *post
	f.posts[post.ID] = &cp
	return nil
}

func (f *fakePostRepo) GetByID(ctx context.Context, id int64, viewerID string) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.posts[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (f *fakePostRepo) ListRecent(ctx context.Context, params models.PaginationParams, viewerID string) (*models.PaginatedResponse[*models.Post], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Post, 0, len(f.posts))
	for id := f.nextID; id > 0; id-- {
		if p, ok := f.posts[id]; ok {
			cp := *p
			out = append(out, &cp)
		}
	}
	return &models.PaginatedResponse[*models.Post]{
		Data:       out,
		Pagination: models.PaginationMeta{ItemsPerPage: params.Limit},
	}, nil
}

func (f *fakePostRepo) ListTrending(ctx context.Context, limit int, viewerID string) ([]*models.Post, error) {
	page, _ := f.ListRecent(ctx, models.PaginationParams{Limit: limit}, viewerID)
	return page.Data, nil
}

func (f *fakePostRepo) ListByAuthor(ctx context.Context, authorID string, params models.PaginationParams, viewerID string) (*models.PaginatedResponse[*models.Post], error) {
	return f.ListRecent(ctx, params, viewerID)
}

type fakeEngagementRepo struct {
	mu sync.Mutex
	// liked[entityID][userID] per relation
	postLikes    map[int64]map[string]bool
	commentLikes map[int64]map[string]bool
	counters     map[int64]*models.PostCounters

	err error // forced failure for every call
}

func newFakeEngagementRepo() *fakeEngagementRepo {
	return &fakeEngagementRepo{
		postLikes:    make(map[int64]map[string]bool),
		commentLikes: make(map[int64]map[string]bool),
		counters:     make(map[int64]*models.PostCounters),
	}
}

func (f *fakeEngagementRepo) addPost(postID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.postLikes[postID] = make(map[string]bool)
	f.counters[postID] = &models.PostCounters{PostID: postID}
}

func (f *fakeEngagementRepo) SetPostLike(ctx context.Context, postID int64, viewerID string, liked bool) (*repositories.LikeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	rel, ok := f.postLikes[postID]
	if !ok {
		return nil, fmt.Errorf("set like: %w", repositories.ErrNotFound)
	}
	changed := rel[viewerID] != liked
	rel[viewerID] = liked
	c := f.counters[postID]
	if changed {
		if liked {
			c.Likes++
		} else if c.Likes > 0 {
			c.Likes--
		}
		c.Version++
	}
	cp := *c
	return &repositories.LikeResult{Changed: changed, Liked: liked, Likes: c.Likes, Counters: &cp}, nil
}

func (f *fakeEngagementRepo) SetCommentLike(ctx context.Context, commentID int64, viewerID string, liked bool) (*repositories.LikeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	rel, ok := f.commentLikes[commentID]
	if !ok {
		return nil, fmt.Errorf("set comment like: %w", repositories.ErrNotFound)
	}
	changed := rel[viewerID] != liked
	rel[viewerID] = liked
	likes := 0
	for _, l := range rel {
		if l {
			likes++
		}
	}
	return &repositories.LikeResult{Changed: changed, Liked: liked, Likes: likes}, nil
}

func (f *fakeEngagementRepo) IncrementPlays(ctx context.Context, postID int64) (*models.PostCounters, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.counters[postID]
	if !ok {
		return nil, fmt.Errorf("increment plays: %w", repositories.ErrNotFound)
	}
	c.Plays++
	c.Version++
	cp := *c
	return &cp, nil
}

func (f *fakeEngagementRepo) IncrementCommentsTx(ctx context.Context, tx *sql.Tx, postID int64) (*models.PostCounters, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.counters[postID]
	if !ok {
		return nil, fmt.Errorf("increment comments: %w", repositories.ErrNotFound)
	}
	c.Comments++
	c.Version++
	cp := *c
	return &cp, nil
}

type fakeCommentRepo struct {
	mu         sync.Mutex
	engagement *fakeEngagementRepo
	comments   map[int64]*models.Comment
	nextID     int64
}

func newFakeCommentRepo(engagement *fakeEngagementRepo) *fakeCommentRepo {
	return &fakeCommentRepo{engagement: engagement, comments: make(map[int64]*models.Comment)}
}

func (f *fakeCommentRepo) Create(ctx context.Context, comment *models.Comment) (*models.PostCounters, error) {
	counters, err := f.engagement.IncrementCommentsTx(ctx, nil, comment.PostID)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	comment.ID = f.nextID
	cp := *comment
	f.comments[comment.ID] = &cp
	return counters, nil
}

func (f *fakeCommentRepo) GetByID(ctx context.Context, id int64, viewerID string) (*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.comments[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeCommentRepo) ListByPost(ctx context.Context, postID int64, params models.PaginationParams, descending bool, viewerID string) (*models.PaginatedResponse[*models.Comment], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Comment, 0)
	for id := int64(1); id <= f.nextID; id++ {
		if c, ok := f.comments[id]; ok && c.PostID == postID {
			cp := *c
			out = append(out, &cp)
		}
	}
	if descending {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return &models.PaginatedResponse[*models.Comment]{
		Data:       out,
		Pagination: models.PaginationMeta{ItemsPerPage: params.Limit},
	}, nil
}

type fakeChannelRepo struct {
	attached  map[int64][]int64
	attachErr error
}

func newFakeChannelRepo() *fakeChannelRepo {
	return &fakeChannelRepo{attached: make(map[int64][]int64)}
}

func (f *fakeChannelRepo) List(ctx context.Context, viewerID string) ([]*models.Channel, error) {
	return nil, nil
}

func (f *fakeChannelRepo) GetByID(ctx context.Context, id int64, viewerID string) (*models.Channel, error) {
	return nil, nil
}

func (f *fakeChannelRepo) SetSubscription(ctx context.Context, channelID int64, userID string, subscribed bool) (bool, error) {
	return true, nil
}

func (f *fakeChannelRepo) AttachPost(ctx context.Context, channelID, postID int64) error {
	if f.attachErr != nil {
		return f.attachErr
	}
	f.attached[channelID] = append(f.attached[channelID], postID)
	return nil
}

// ===============================
// STORAGE FAKE
// ===============================

type fakeObjectStore struct {
	mu      sync.Mutex
	puts    []*storage.PutRequest
	deleted []string

	putErr error
}

func (f *fakeObjectStore) Put(ctx context.Context, req *storage.PutRequest) (*storage.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.puts = append(f.puts, req)
	publicID := fmt.Sprintf("blob-%d", len(f.puts))
	return &storage.Object{
		URL:      "https://cdn.example.com/" + publicID,
		PublicID: publicID,
		Bytes:    req.Size,
	}, nil
}

func (f *fakeObjectStore) Delete(ctx context.Context, publicID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, publicID)
	return nil
}

func (f *fakeObjectStore) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// testIdentity returns a verified identity for tests.
func testIdentity(id string) *models.Identity {
	return &models.Identity{
		ID:          id,
		Email:       id + "@example.com",
		DisplayName: "Test " + id,
	}
}
