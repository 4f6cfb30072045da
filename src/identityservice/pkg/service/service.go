package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/abahm00/shopwise-clone/src/identityservice/pkg/model"
	"github.com/abahm00/shopwise-clone/src/identityservice/pkg/repo"
)

var (
	ErrNotFound   = repo.ErrNotFound
	ErrEmailTaken = errors.New("email already registered")
	ErrInvalid    = errors.New("name, email and password are required")
)

type UserServiceLogic interface {
	Register(ctx context.Context, name, email, password string, cart model.Cart) (*model.User, error)
	// Authenticate returns the users whose email and password both match; none is not an error.
	Authenticate(ctx context.Context, email, password string) ([]model.User, error)
	FindByEmail(ctx context.Context, email string) ([]model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	UpdateCart(ctx context.Context, id string, cart model.Cart) (*model.User, error)
	// Replace overwrites the record. An empty password keeps the stored one.
	Replace(ctx context.Context, id, name, email, password string, cart model.Cart) (*model.User, error)
}

type userServiceLogic struct {
	repo repo.UserRepository
	cost int
}

func NewUserServiceLogic(repo repo.UserRepository) UserServiceLogic {
	return &userServiceLogic{repo: repo, cost: bcrypt.DefaultCost}
}

func (s *userServiceLogic) Register(ctx context.Context, name, email, password string, cart model.Cart) (*model.User, error) {
	if name == "" || email == "" || password == "" {
		return nil, ErrInvalid
	}
	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, ErrEmailTaken
	}

	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	user := &model.User{
		ID:       uuid.New().String(),
		Name:     name,
		Email:    email,
		Password: string(hashedPwd),
		Cart:     model.EmptyCart(cart),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, errors.Wrap(err, "create user")
	}
	return user, nil
}

func (s *userServiceLogic) Authenticate(ctx context.Context, email, password string) ([]model.User, error) {
	users, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	matched := make([]model.User, 0, 1)
	for _, u := range users {
		if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil {
			matched = append(matched, u)
		}
	}
	return matched, nil
}

func (s *userServiceLogic) FindByEmail(ctx context.Context, email string) ([]model.User, error) {
	users, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

func (s *userServiceLogic) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.repo.GetUser(ctx, id)
}

func (s *userServiceLogic) UpdateCart(ctx context.Context, id string, cart model.Cart) (*model.User, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Cart = model.EmptyCart(cart)
	if err := s.repo.UpdateCart(ctx, id, user.Cart); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userServiceLogic) Replace(ctx context.Context, id, name, email, password string, cart model.Cart) (*model.User, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if name == "" || email == "" {
		return nil, ErrInvalid
	}
	if password != "" {
		hashedPwd, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
		if err != nil {
			return nil, errors.Wrap(err, "hash password")
		}
		user.Password = string(hashedPwd)
	}
	user.Name = name
	user.Email = email
	user.Cart = model.EmptyCart(cart)
	if err := s.repo.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
