package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abahm00/shopwise-clone/src/identityservice/pkg/model"
	"github.com/abahm00/shopwise-clone/src/identityservice/pkg/service"
)

// fakeLogic serves one user with id "u1" and password "Secret1!".
type fakeLogic struct {
	user      model.User
	patched   model.Cart
	replaced  string
	registers int
}

func newFakeLogic() *fakeLogic {
	return &fakeLogic{user: model.User{ID: "u1", Name: "ana", Email: "ana@shop.io", Password: "hash", Cart: model.Cart{}}}
}

func (f *fakeLogic) Register(ctx context.Context, name, email, password string, cart model.Cart) (*model.User, error) {
	f.registers++
	if email == f.user.Email {
		return nil, service.ErrEmailTaken
	}
	return &model.User{ID: "u2", Name: name, Email: email, Password: "hash", Cart: model.EmptyCart(cart)}, nil
}

func (f *fakeLogic) Authenticate(ctx context.Context, email, password string) ([]model.User, error) {
	if email == f.user.Email && password == "Secret1!" {
		return []model.User{f.user}, nil
	}
	return []model.User{}, nil
}

func (f *fakeLogic) FindByEmail(ctx context.Context, email string) ([]model.User, error) {
	if email == f.user.Email {
		return []model.User{f.user}, nil
	}
	return []model.User{}, nil
}

func (f *fakeLogic) GetUser(ctx context.Context, id string) (*model.User, error) {
	if id != f.user.ID {
		return nil, service.ErrNotFound
	}
	u := f.user
	return &u, nil
}

func (f *fakeLogic) UpdateCart(ctx context.Context, id string, cart model.Cart) (*model.User, error) {
	if id != f.user.ID {
		return nil, service.ErrNotFound
	}
	f.patched = cart
	f.user.Cart = cart
	u := f.user
	return &u, nil
}

func (f *fakeLogic) Replace(ctx context.Context, id, name, email, password string, cart model.Cart) (*model.User, error) {
	if id != f.user.ID {
		return nil, service.ErrNotFound
	}
	f.replaced = password
	f.user.Name = name
	u := f.user
	return &u, nil
}

func newServer(t *testing.T, logic service.UserServiceLogic) *httptest.Server {
	t.Helper()
	log := logrus.New()
	log.Out = io.Discard
	r := mux.NewRouter()
	(&UserService{Logic: logic, Log: log}).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestListUsersByCredentials(t *testing.T) {
	srv := newServer(t, newFakeLogic())

	code, body := do(t, http.MethodGet, srv.URL+"/users?email=ana@shop.io&password=Secret1!", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[{"id":"u1","name":"ana","email":"ana@shop.io","cart":[]}]`, body)

	code, body = do(t, http.MethodGet, srv.URL+"/users?email=ana@shop.io&password=nope", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, body)
}

func TestListUsersByEmail(t *testing.T) {
	srv := newServer(t, newFakeLogic())

	_, body := do(t, http.MethodGet, srv.URL+"/users?email=ana@shop.io", "")
	assert.NotContains(t, body, "password")
	assert.Contains(t, body, `"id":"u1"`)

	code, _ := do(t, http.MethodGet, srv.URL+"/users", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCreateUser(t *testing.T) {
	srv := newServer(t, newFakeLogic())

	code, body := do(t, http.MethodPost, srv.URL+"/users", `{"name":"bob","email":"bob@shop.io","password":"Secret1!","cart":[]}`)
	assert.Equal(t, http.StatusCreated, code)
	assert.JSONEq(t, `{"id":"u2","name":"bob","email":"bob@shop.io","cart":[]}`, body)

	code, _ = do(t, http.MethodPost, srv.URL+"/users", `{"name":"ana","email":"ana@shop.io","password":"Secret1!"}`)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = do(t, http.MethodPost, srv.URL+"/users", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGetUser(t *testing.T) {
	srv := newServer(t, newFakeLogic())

	code, _ := do(t, http.MethodGet, srv.URL+"/users/u1", "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = do(t, http.MethodGet, srv.URL+"/users/nobody", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPatchCart(t *testing.T) {
	logic := newFakeLogic()
	srv := newServer(t, logic)

	code, body := do(t, http.MethodPatch, srv.URL+"/users/u1",
		`{"cart":[{"id":3,"quantity":1,"selectedSize":"","selectedColor":""}],"name":"ignored"}`)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, logic.patched, 1)
	assert.JSONEq(t, `{"id":3,"quantity":1,"selectedSize":"","selectedColor":""}`, string(logic.patched[0]))

	var u map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(body), &u))
	assert.JSONEq(t, `"ana"`, string(u["name"]))

	code, _ = do(t, http.MethodPatch, srv.URL+"/users/u1", `{"name":"no cart"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, http.MethodPatch, srv.URL+"/users/nobody", `{"cart":[]}`)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestReplaceUser(t *testing.T) {
	logic := newFakeLogic()
	srv := newServer(t, logic)

	code, _ := do(t, http.MethodPut, srv.URL+"/users/u1", `{"name":"ana","email":"ana@shop.io","password":"Newpass1!","cart":[]}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Newpass1!", logic.replaced)
}
