package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/abahm00/shopwise-clone/src/identityservice/pkg/model"
	"github.com/abahm00/shopwise-clone/src/identityservice/pkg/repo"
)

type memRepo struct {
	mu    sync.Mutex
	users map[string]model.User
}

func newMemRepo() *memRepo {
	return &memRepo{users: make(map[string]model.User)}
}

func (m *memRepo) CreateUser(ctx context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = *user
	return nil
}

func (m *memRepo) GetUser(ctx context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &u, nil
}

func (m *memRepo) FindByEmail(ctx context.Context, email string) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.User
	for _, u := range m.users {
		if u.Email == email {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRepo) UpdateCart(ctx context.Context, id string, cart model.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	u.Cart = cart
	m.users[id] = u
	return nil
}

func (m *memRepo) SaveUser(ctx context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = *user
	return nil
}

func newLogic(r repo.UserRepository) *userServiceLogic {
	return &userServiceLogic{repo: r, cost: bcrypt.MinCost}
}

func TestRegisterHashesPasswordAndStartsEmptyCart(t *testing.T) {
	logic := newLogic(newMemRepo())
	u, err := logic.Register(context.Background(), "ana", "ana@shop.io", "Secret1!", nil)
	require.NoError(t, err)

	assert.NotEmpty(t, u.ID)
	assert.NotEqual(t, "Secret1!", u.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("Secret1!")))
	assert.NotNil(t, u.Cart)
	assert.Empty(t, u.Cart)
}

func TestRegisterRejectsTakenEmail(t *testing.T) {
	logic := newLogic(newMemRepo())
	_, err := logic.Register(context.Background(), "ana", "ana@shop.io", "Secret1!", nil)
	require.NoError(t, err)

	_, err = logic.Register(context.Background(), "other", "ana@shop.io", "Secret2!", nil)
	assert.True(t, errors.Is(err, ErrEmailTaken))
}

func TestRegisterRequiresFields(t *testing.T) {
	_, err := newLogic(newMemRepo()).Register(context.Background(), "", "ana@shop.io", "Secret1!", nil)
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestAuthenticate(t *testing.T) {
	logic := newLogic(newMemRepo())
	created, err := logic.Register(context.Background(), "ana", "ana@shop.io", "Secret1!", nil)
	require.NoError(t, err)

	users, err := logic.Authenticate(context.Background(), "ana@shop.io", "Secret1!")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, created.ID, users[0].ID)

	users, err = logic.Authenticate(context.Background(), "ana@shop.io", "wrong")
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.NotNil(t, users)

	users, err = logic.Authenticate(context.Background(), "nobody@shop.io", "Secret1!")
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestFindByEmailReturnsEmptySlice(t *testing.T) {
	users, err := newLogic(newMemRepo()).FindByEmail(context.Background(), "nobody@shop.io")
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestUpdateCartKeepsLinesVerbatim(t *testing.T) {
	logic := newLogic(newMemRepo())
	u, err := logic.Register(context.Background(), "ana", "ana@shop.io", "Secret1!", nil)
	require.NoError(t, err)

	line := json.RawMessage(`{"id":1,"title":"Backpack","price":10,"quantity":2,"selectedSize":"M","selectedColor":"red"}`)
	updated, err := logic.UpdateCart(context.Background(), u.ID, model.Cart{line})
	require.NoError(t, err)
	require.Len(t, updated.Cart, 1)
	assert.JSONEq(t, string(line), string(updated.Cart[0]))

	stored, err := logic.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Password, stored.Password)
	assert.Len(t, stored.Cart, 1)

	_, err = logic.UpdateCart(context.Background(), "missing", nil)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestReplace(t *testing.T) {
	logic := newLogic(newMemRepo())
	u, err := logic.Register(context.Background(), "ana", "ana@shop.io", "Secret1!", nil)
	require.NoError(t, err)

	t.Run("new password is hashed", func(t *testing.T) {
		got, err := logic.Replace(context.Background(), u.ID, "ana", "ana@shop.io", "Newpass1!", nil)
		require.NoError(t, err)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(got.Password), []byte("Newpass1!")))
	})

	t.Run("empty password keeps the stored hash", func(t *testing.T) {
		before, err := logic.GetUser(context.Background(), u.ID)
		require.NoError(t, err)
		got, err := logic.Replace(context.Background(), u.ID, "anna", "ana@shop.io", "", nil)
		require.NoError(t, err)
		assert.Equal(t, before.Password, got.Password)
		assert.Equal(t, "anna", got.Name)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := logic.Replace(context.Background(), "missing", "x", "x@y.z", "", nil)
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}
