package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a record id as the identity and catalog backends emit it. json-server hands out
// numeric ids, the Go identity service hands out UUID strings, so both decode here.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON keeps numeric ids numeric so a json-server backend matches them on PATCH.
// Only the canonical decimal form is written bare; "007" or "+5" stay strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte(`""`), nil
	}
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string { return string(id) }

type Rating struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

// Product is a catalog record.
type Product struct {
	ID          ID      `json:"id"`
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Image       string  `json:"image"`
	Rating      Rating  `json:"rating"`
}

// CartLine is one entry of a cart. The JSON layout is the one both backing stores
// persist: the product fields flattened next to quantity and the chosen variant.
type CartLine struct {
	ProductID     ID      `json:"id"`
	Title         string  `json:"title"`
	Price         float64 `json:"price"`
	Image         string  `json:"image"`
	Category      string  `json:"category"`
	Description   string  `json:"description,omitempty"`
	Quantity      int     `json:"quantity"`
	SelectedSize  string  `json:"selectedSize"`
	SelectedColor string  `json:"selectedColor"`
}

// LineKey identifies a cart line. Two lines for the same product with a different
// size or color are different lines.
type LineKey struct {
	ProductID ID
	Size      string
	Color     string
}

func (l CartLine) Key() LineKey {
	return LineKey{ProductID: l.ProductID, Size: l.SelectedSize, Color: l.SelectedColor}
}

// NewCartLine builds a line for product p with the given variant.
func NewCartLine(p Product, quantity int, size, color string) CartLine {
	return CartLine{
		ProductID:     p.ID,
		Title:         p.Title,
		Price:         p.Price,
		Image:         p.Image,
		Category:      p.Category,
		Description:   p.Description,
		Quantity:      quantity,
		SelectedSize:  size,
		SelectedColor: color,
	}
}

// User is an identity record as served by the identity backend.
type User struct {
	ID       ID         `json:"id"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Password string     `json:"password,omitempty"`
	Cart     []CartLine `json:"cart"`
}
