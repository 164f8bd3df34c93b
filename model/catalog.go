package models

import "github.com/shopspring/decimal"

type Category struct {
	ID          int64  `json:"category_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Product struct {
	ID          int64           `json:"product_id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	CategoryID  int64           `json:"category_id"`
	Description string          `json:"description"`
	Color       string          `json:"color"`
	ImageURL    string          `json:"image_url"`
	Featured    bool            `json:"featured"`
}
