package identity

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ashureev/lexrelay/internal/domain"
	"github.com/ashureev/lexrelay/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func newSQLiteResolver(t *testing.T) (*Resolver, *store.SQLiteStore) {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "identity.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return NewResolver(repo), repo
}

func TestExplicitIDWinsWithoutValidation(t *testing.T) {
	r, _ := newSQLiteResolver(t)

	id, err := r.ResolveOrCreate(context.Background(), strPtr("Maria"), strPtr("m@x.test"), strPtr("does-not-exist"))
	require.NoError(t, err)
	assert.Equal(t, "does-not-exist", id)
}

func TestSameEmailResolvesToSameUserAndLastNameWins(t *testing.T) {
	r, repo := newSQLiteResolver(t)
	ctx := context.Background()

	first, err := r.ResolveOrCreate(ctx, strPtr("Maria"), strPtr("m@x.test"), nil)
	require.NoError(t, err)
	second, err := r.ResolveOrCreate(ctx, strPtr("María José"), strPtr("m@x.test"), nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	user, err := repo.GetUser(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "María José", user.Name)
}

func TestAnonymousUsersDefaultToGuest(t *testing.T) {
	r, repo := newSQLiteResolver(t)
	ctx := context.Background()

	a, err := r.ResolveOrCreate(ctx, nil, nil, nil)
	require.NoError(t, err)
	b, err := r.ResolveOrCreate(ctx, nil, nil, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	user, err := repo.GetUser(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultUserName, user.Name)
	assert.Nil(t, user.Email)
}

func TestConcurrentSameEmailCreatesOneUser(t *testing.T) {
	r, _ := newSQLiteResolver(t)
	ctx := context.Background()

	const workers = 8
	ids := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = r.ResolveOrCreate(ctx, strPtr("Maria"), strPtr("race@x.test"), nil)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
}

// racingUserStore reports the email as missing once, then rejects the insert
// as if another request had created the same user in between.
type racingUserStore struct {
	mu      sync.Mutex
	winner  *domain.User
	lookups int
	inserts int
	renamed string
}

func (s *racingUserStore) GetUser(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrNotFound
}

func (s *racingUserStore) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.lookups == 1 {
		return nil, &domain.NotFoundError{Entity: "user", ID: email}
	}
	u := *s.winner
	return &u, nil
}

func (s *racingUserStore) CreateUser(context.Context, *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	return domain.ErrConflict
}

func (s *racingUserStore) UpdateUserName(_ context.Context, _ string, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renamed = name
	return nil
}

func TestUniqueViolationIsResolvedByRefetch(t *testing.T) {
	winner := &domain.User{ID: uuid.New().String(), Name: "Winner", Email: strPtr("m@x.test")}
	fake := &racingUserStore{winner: winner}
	r := NewResolver(fake)

	id, err := r.ResolveOrCreate(context.Background(), strPtr("Maria"), strPtr("m@x.test"), nil)
	require.NoError(t, err)
	assert.Equal(t, winner.ID, id)
	assert.Equal(t, 1, fake.inserts)
	assert.Equal(t, 2, fake.lookups)
	assert.Equal(t, "Maria", fake.renamed)
}

func TestStoreFailurePropagates(t *testing.T) {
	boom := errors.New("disk full")
	r := NewResolver(&failingUserStore{err: boom})

	_, err := r.ResolveOrCreate(context.Background(), nil, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
}

type failingUserStore struct{ err error }

func (s *failingUserStore) GetUser(context.Context, string) (*domain.User, error) { return nil, s.err }
func (s *failingUserStore) GetUserByEmail(context.Context, string) (*domain.User, error) {
	return nil, s.err
}
func (s *failingUserStore) CreateUser(context.Context, *domain.User) error       { return s.err }
func (s *failingUserStore) UpdateUserName(context.Context, string, string) error { return s.err }
