package product

import (
	"context"
	"fmt"
	"sync"
)

type Catalog interface {
	List(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, productID string) (Product, error)
	Create(ctx context.Context, input ProductInput) (Product, error)
	Reset(ctx context.Context) error
}

// MemoryCatalog keeps insertion order; created products get sequential
// product_NNN ids after the seed.
type MemoryCatalog struct {
	mu       sync.Mutex
	template []Product
	products []Product
	nextID   int
}

func NewMemoryCatalog(template []Product) *MemoryCatalog {
	if template == nil {
		template = SeedProducts()
	}
	c := &MemoryCatalog{template: append([]Product(nil), template...)}
	c.resetLocked()
	return c
}

func (c *MemoryCatalog) List(_ context.Context) ([]Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Product(nil), c.products...), nil
}

func (c *MemoryCatalog) Get(_ context.Context, productID string) (Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.products {
		if p.ProductID == productID {
			return p, nil
		}
	}
	return Product{}, ErrProductNotFound
}

func (c *MemoryCatalog) Create(_ context.Context, input ProductInput) (Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	p := Product{
		ProductID: fmt.Sprintf("product_%03d", c.nextID),
		Name:      input.Name,
		Price:     input.Price,
		Stock:     0,
		Status:    StatusOnSale,
	}
	c.products = append(c.products, p)
	return p, nil
}

func (c *MemoryCatalog) Reset(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	return nil
}

func (c *MemoryCatalog) resetLocked() {
	c.products = append([]Product(nil), c.template...)
	c.nextID = len(c.template)
}
