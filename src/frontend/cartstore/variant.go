package cartstore

import (
	"github.com/pkg/errors"

	"github.com/abahm00/shopwise-clone/src/frontend/model"
)

// Categories with their own option rules. Every other category needs both a size and a color.
const (
	CategoryElectronics = "electronics"
	CategoryJewelery    = "jewelery"
)

// Options tells which variant choices a category requires.
type Options struct {
	Size  bool
	Color bool
}

func OptionsFor(category string) Options {
	switch category {
	case CategoryElectronics:
		return Options{}
	case CategoryJewelery:
		return Options{Size: true}
	default:
		return Options{Size: true, Color: true}
	}
}

// ValidateSelection checks the variant and quantity chosen for p before any store is touched.
func ValidateSelection(p model.Product, quantity int, size, color string) error {
	opts := OptionsFor(p.Category)
	switch {
	case quantity < 1:
		return errors.Wrapf(ErrValidation, "quantity %d is below 1", quantity)
	case opts.Size && size == "":
		return errors.Wrapf(ErrValidation, "size is required for %q", p.Category)
	case opts.Color && color == "":
		return errors.Wrapf(ErrValidation, "color is required for %q", p.Category)
	}
	return nil
}
