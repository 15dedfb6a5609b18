// Package cart holds the session-scoped shopping cart. A Cart is plain data
// with a dirty flag; persisting it is left to the session middleware.
package cart

import (
	"cmp"
	"context"
	"digital-shop/internal/model"
	"errors"
	"iter"
	"math"
	"slices"

	"github.com/shopspring/decimal"
)

// MaxQuantity caps the units of one product in a cart.
const MaxQuantity = 999

var (
	ErrInvalidQuantity = errors.New("quantity must be between 1 and 999")
	ErrInvalidPrice    = errors.New("price out of range")
)

type Entry struct {
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"` // unit price snapshot taken when first added
}

// Line is an entry resolved against the live catalog.
type Line struct {
	Product   *model.Product
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

type Catalog interface {
	FindMany(ctx context.Context, productIDs []uint) ([]*model.Product, error)
}

type Cart struct {
	items    map[uint]*Entry
	modified bool
}

func New() *Cart {
	return &Cart{items: make(map[uint]*Entry)}
}

func (c *Cart) Add(product *model.Product, quantity int, override bool) error {
	// bounded inputs keep entry.Quantity + quantity from overflowing
	if quantity > MaxQuantity || quantity < -MaxQuantity {
		return ErrInvalidQuantity
	}

	entry, ok := c.items[product.ID]
	if !ok {
		if quantity <= 0 {
			return ErrInvalidQuantity
		}
		c.items[product.ID] = &Entry{Quantity: quantity, Price: product.CurrentPrice()}
		c.save()
		return nil
	}

	effective := entry.Quantity + quantity
	if override {
		effective = quantity
	}

	switch {
	case effective < 0, effective > MaxQuantity:
		return ErrInvalidQuantity
	case effective == 0:
		delete(c.items, product.ID)
	default:
		entry.Quantity = effective
	}
	c.save()
	return nil
}

func (c *Cart) Update(product *model.Product, quantity int) error {
	return c.Add(product, quantity, true)
}

func (c *Cart) Remove(productID uint) {
	if _, ok := c.items[productID]; ok {
		delete(c.items, productID)
		c.save()
	}
}

func (c *Cart) Clear() {
	if len(c.items) == 0 {
		return
	}
	c.items = make(map[uint]*Entry)
	c.save()
}

func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, entry := range c.items {
		total = total.Add(entry.Price.Mul(decimal.NewFromInt(int64(entry.Quantity))))
	}
	return total
}

// Len is the number of units in the cart.
func (c *Cart) Len() int {
	n := 0
	for _, entry := range c.items {
		n += entry.Quantity
	}
	return n
}

func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

func (c *Cart) Modified() bool {
	return c.modified
}

func (c *Cart) productIDs() []uint {
	ids := make([]uint, 0, len(c.items))
	for id := range c.items {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Entries returns a copy of the cart ordered by product id. Carts read back
// from the store are not trusted: out-of-range quantities or prices fail.
func (c *Cart) Entries() ([]model.CheckoutLine, error) {
	maxPence := decimal.NewFromInt(math.MaxInt64)

	lines := make([]model.CheckoutLine, 0, len(c.items))
	for _, id := range c.productIDs() {
		entry := c.items[id]
		if entry.Quantity < 1 || entry.Quantity > MaxQuantity {
			return nil, ErrInvalidQuantity
		}
		pence := entry.Price.Shift(2).Round(0)
		if pence.IsNegative() || pence.GreaterThan(maxPence) {
			return nil, ErrInvalidPrice
		}
		lines = append(lines, model.CheckoutLine{
			ProductID:      id,
			Quantity:       entry.Quantity,
			UnitPricePence: pence.IntPart(),
		})
	}
	return lines, nil
}

// Lines looks products up in the catalog on every iteration, so a fresh range
// over the sequence sees current catalog data. Products no longer in the
// catalog are skipped.
func (c *Cart) Lines(ctx context.Context, catalog Catalog) iter.Seq2[Line, error] {
	return func(yield func(Line, error) bool) {
		ids := c.productIDs()
		if len(ids) == 0 {
			return
		}

		products, err := catalog.FindMany(ctx, ids)
		if err != nil {
			yield(Line{}, err)
			return
		}
		slices.SortFunc(products, func(a, b *model.Product) int {
			return cmp.Compare(a.ID, b.ID)
		})

		for _, product := range products {
			entry, ok := c.items[product.ID]
			if !ok {
				continue
			}
			line := Line{
				Product:   product,
				Quantity:  entry.Quantity,
				UnitPrice: entry.Price,
				LineTotal: entry.Price.Mul(decimal.NewFromInt(int64(entry.Quantity))),
			}
			if !yield(line, nil) {
				return
			}
		}
	}
}

func (c *Cart) save() {
	c.modified = true
}
