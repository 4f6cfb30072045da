package repo

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/abahm00/shopwise-clone/src/identityservice/pkg/model"
)

var ErrNotFound = errors.New("user not found")

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) ([]model.User, error)
	UpdateCart(ctx context.Context, id string, cart model.Cart) error
	SaveUser(ctx context.Context, user *model.User) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) CreateUser(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) GetUser(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get user %s", id)
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).Order("id").Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "find users by email")
	}
	return users, nil
}

// UpdateCart writes only the cart column. Callers check the user exists first.
func (r *userRepository) UpdateCart(ctx context.Context, id string, cart model.Cart) error {
	res := r.db.WithContext(ctx).Model(&model.User{ID: id}).Select("cart").Updates(&model.User{Cart: model.EmptyCart(cart)})
	return errors.Wrapf(res.Error, "update cart of %s", id)
}

func (r *userRepository) SaveUser(ctx context.Context, user *model.User) error {
	res := r.db.WithContext(ctx).Model(user).Select("*").Updates(user)
	return errors.Wrapf(res.Error, "save user %s", user.ID)
}
