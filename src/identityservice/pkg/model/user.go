package model

import "encoding/json"

// Cart holds the cart lines exactly as the storefront sent them.
type Cart []json.RawMessage

type User struct {
	ID       string `gorm:"primaryKey;type:varchar(64)" json:"id"` // UUID
	Name     string `gorm:"type:varchar(32);not null" json:"name"`
	Email    string `gorm:"index;type:varchar(128);not null" json:"email"`
	Password string `gorm:"type:varchar(128);not null" json:"-"` // bcrypt hash
	Cart     Cart   `gorm:"serializer:json;type:text" json:"cart"`
}

func (User) TableName() string {
	return "users"
}

// EmptyCart returns c, or an empty cart when c is nil, so the record never stores null.
func EmptyCart(c Cart) Cart {
	if c == nil {
		return Cart{}
	}
	return c
}
