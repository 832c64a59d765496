package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository is the real-backend Catalog over Postgres.
type Repository struct {
	db       *sql.DB
	template []Product
}

func NewRepository(db *sql.DB, template []Product) *Repository {
	if template == nil {
		template = SeedProducts()
	}
	return &Repository{db: db, template: template}
}

func (r *Repository) List(ctx context.Context) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, name, price, stock, status, category
		FROM harness_products
		ORDER BY created_at ASC, product_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		var p Product
		var status string
		if err := rows.Scan(&p.ProductID, &p.Name, &p.Price, &p.Stock, &status, &p.Category); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.Status = Status(status)
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return products, nil
}

func (r *Repository) Get(ctx context.Context, productID string) (Product, error) {
	var p Product
	var status string
	err := r.db.QueryRowContext(ctx, `
		SELECT product_id, name, price, stock, status, category
		FROM harness_products
		WHERE product_id = $1
	`, productID).Scan(&p.ProductID, &p.Name, &p.Price, &p.Stock, &status, &p.Category)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, fmt.Errorf("query product: %w", err)
	}
	p.Status = Status(status)
	return p, nil
}

func (r *Repository) Create(ctx context.Context, input ProductInput) (Product, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Product{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	p := Product{
		ProductID: id.String(),
		Name:      input.Name,
		Price:     input.Price,
		Stock:     0,
		Status:    StatusOnSale,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO harness_products (product_id, name, price, stock, status, category, seeded, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
	`, p.ProductID, p.Name, p.Price, p.Stock, string(p.Status), p.Category, time.Now().UTC())
	if err != nil {
		return Product{}, fmt.Errorf("insert product: %w", err)
	}

	return p, nil
}

func (r *Repository) Reset(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin product reset tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM harness_products`); err != nil {
		return fmt.Errorf("clear products: %w", err)
	}

	// Seed rows share one timestamp; List breaks the tie on product_id.
	now := time.Now().UTC()
	for _, p := range r.template {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO harness_products (product_id, name, price, stock, status, category, seeded, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7)
		`, p.ProductID, p.Name, p.Price, p.Stock, string(p.Status), p.Category, now); err != nil {
			return fmt.Errorf("insert seed product %s: %w", p.ProductID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit product reset tx: %w", err)
	}
	return nil
}
