package product

import "errors"

type Status string

const (
	StatusOnSale     Status = "on_sale"
	StatusOutOfStock Status = "out_of_stock"
	StatusOffSale    Status = "off_sale"
)

type Product struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Stock     int     `json:"stock"`
	Status    Status  `json:"status"`
	Category  string  `json:"category"`
}

type ProductInput struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

var ErrProductNotFound = errors.New("product not found")

func SeedProducts() []Product {
	return []Product{
		{ProductID: "product_001", Name: "Test Product 1", Price: 99.9, Stock: 100, Status: StatusOnSale, Category: "electronics"},
		{ProductID: "product_002", Name: "Test Product 2", Price: 199.9, Stock: 0, Status: StatusOutOfStock, Category: "clothes"},
		{ProductID: "product_003", Name: "Test Product 3", Price: 299.9, Stock: 50, Status: StatusOnSale, Category: "home"},
	}
}
