package cartstore

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/abahm00/shopwise-clone/src/frontend/identity"
	"github.com/abahm00/shopwise-clone/src/frontend/localstore"
	"github.com/abahm00/shopwise-clone/src/frontend/model"
)

// backend is the authoritative copy of a cart. Every write replaces the whole cart.
type backend interface {
	read(ctx context.Context) ([]model.CartLine, error)
	write(ctx context.Context, lines []model.CartLine) error
}

// guestBackend keeps the cart under the "cart" key of the browser session's storage.
type guestBackend struct {
	storage localstore.Storage
	scope   string
}

func (b guestBackend) read(ctx context.Context) ([]model.CartLine, error) {
	raw, err := b.storage.Get(ctx, b.scope, localstore.KeyCart)
	if errors.Is(err, localstore.ErrNotFound) {
		return []model.CartLine{}, nil
	}
	if err != nil {
		return nil, err
	}
	var lines []model.CartLine
	if err := json.Unmarshal(raw, &lines); err != nil || lines == nil {
		return []model.CartLine{}, nil
	}
	return lines, nil
}

func (b guestBackend) write(ctx context.Context, lines []model.CartLine) error {
	if lines == nil {
		lines = []model.CartLine{}
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	return b.storage.Set(ctx, b.scope, localstore.KeyCart, raw)
}

// accountBackend keeps the cart on the signed-in user's identity record.
type accountBackend struct {
	ids identity.Client
	id  model.ID
}

func (b accountBackend) read(ctx context.Context) ([]model.CartLine, error) {
	u, err := b.ids.Get(ctx, b.id)
	if err != nil {
		return nil, err
	}
	if u.Cart == nil {
		return []model.CartLine{}, nil
	}
	return u.Cart, nil
}

func (b accountBackend) write(ctx context.Context, lines []model.CartLine) error {
	return b.ids.PatchCart(ctx, b.id, lines)
}
