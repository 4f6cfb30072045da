// Package catalog reads products from a fakestoreapi-compatible catalog service.
package catalog

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/abahm00/shopwise-clone/src/frontend/model"
	"github.com/abahm00/shopwise-clone/src/frontend/restclient"
)

// ErrNotFound is returned when a product id is unknown.
var ErrNotFound = errors.New("catalog: product not found")

// Service is the read-only catalog contract.
type Service interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	GetProduct(ctx context.Context, id model.ID) (*model.Product, error)
	ListCategories(ctx context.Context) ([]string, error)
}

type httpService struct {
	rc *restclient.Client
}

func NewHTTPService(baseURL string, log logrus.FieldLogger, opts ...restclient.Option) Service {
	return &httpService{rc: restclient.New("CatalogService", baseURL, log, opts...)}
}

func (s *httpService) ListProducts(ctx context.Context) ([]model.Product, error) {
	var ps []model.Product
	if err := s.rc.Do(ctx, http.MethodGet, "/products", nil, nil, &ps); err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return ps, nil
}

func (s *httpService) GetProduct(ctx context.Context, id model.ID) (*model.Product, error) {
	var p *model.Product
	err := s.rc.Do(ctx, http.MethodGet, "/products/"+url.PathEscape(id.String()), nil, nil, &p)
	if errors.Is(err, restclient.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get product %s", id)
	}
	// fakestoreapi answers an unknown id with 200 and an empty body
	if p == nil || p.ID == "" {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *httpService) ListCategories(ctx context.Context) ([]string, error) {
	var cs []string
	if err := s.rc.Do(ctx, http.MethodGet, "/products/categories", nil, nil, &cs); err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	return cs, nil
}
