// Package identity talks to the users/carts backend.
package identity

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/abahm00/shopwise-clone/src/frontend/model"
	"github.com/abahm00/shopwise-clone/src/frontend/restclient"
)

// ErrNotFound means no identity record matched.
var ErrNotFound = errors.New("identity: no matching user")

// Client is the identity backend contract the storefront depends on.
type Client interface {
	// Authenticate returns the first record matching both email and password.
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
	// FindByEmail returns every record with the given email (empty when none).
	FindByEmail(ctx context.Context, email string) ([]model.User, error)
	Get(ctx context.Context, id model.ID) (*model.User, error)
	// PatchCart replaces only the cart field of the record.
	PatchCart(ctx context.Context, id model.ID, cart []model.CartLine) error
	Create(ctx context.Context, name, email, password string) (*model.User, error)
	// Replace overwrites the whole record.
	Replace(ctx context.Context, u model.User) error
}

type httpClient struct {
	rc *restclient.Client
}

// NewHTTPClient returns a Client for a json-server style /users resource at baseURL.
func NewHTTPClient(baseURL string, log logrus.FieldLogger, opts ...restclient.Option) Client {
	return &httpClient{rc: restclient.New("IdentityService", baseURL, log, opts...)}
}

func (c *httpClient) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	var users []model.User
	q := url.Values{"email": {email}, "password": {password}}
	if err := c.rc.Do(ctx, http.MethodGet, "/users", q, nil, &users); err != nil {
		return nil, errors.Wrap(err, "authenticate")
	}
	if len(users) == 0 {
		return nil, ErrNotFound
	}
	return &users[0], nil
}

func (c *httpClient) FindByEmail(ctx context.Context, email string) ([]model.User, error) {
	var users []model.User
	if err := c.rc.Do(ctx, http.MethodGet, "/users", url.Values{"email": {email}}, nil, &users); err != nil {
		return nil, errors.Wrap(err, "find by email")
	}
	return users, nil
}

func (c *httpClient) Get(ctx context.Context, id model.ID) (*model.User, error) {
	var u model.User
	if err := c.rc.Do(ctx, http.MethodGet, userPath(id), nil, nil, &u); err != nil {
		if errors.Is(err, restclient.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "get user %s", id)
	}
	return &u, nil
}

func (c *httpClient) PatchCart(ctx context.Context, id model.ID, cart []model.CartLine) error {
	if cart == nil {
		cart = []model.CartLine{}
	}
	body := struct {
		Cart []model.CartLine `json:"cart"`
	}{cart}
	if err := c.rc.Do(ctx, http.MethodPatch, userPath(id), nil, body, nil); err != nil {
		if errors.Is(err, restclient.ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrapf(err, "patch cart of %s", id)
	}
	return nil
}

func (c *httpClient) Create(ctx context.Context, name, email, password string) (*model.User, error) {
	in := model.User{Name: name, Email: email, Password: password, Cart: []model.CartLine{}}
	var out model.User
	if err := c.rc.Do(ctx, http.MethodPost, "/users", nil, in, &out); err != nil {
		return nil, errors.Wrap(err, "create user")
	}
	return &out, nil
}

func (c *httpClient) Replace(ctx context.Context, u model.User) error {
	if u.Cart == nil {
		u.Cart = []model.CartLine{}
	}
	if err := c.rc.Do(ctx, http.MethodPut, userPath(u.ID), nil, u, nil); err != nil {
		if errors.Is(err, restclient.ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrapf(err, "replace user %s", u.ID)
	}
	return nil
}

func userPath(id model.ID) string {
	return "/users/" + url.PathEscape(id.String())
}
