package models

import (
	"github.com/shopspring/decimal"
)

// ItemType tells whether a menu item is cooked or poured.
type ItemType string

const (
	Food  ItemType = "food"
	Drink ItemType = "drink"
)

// Department routes category-tagged items to the view that fulfils them.
type Department string

const (
	Kitchen Department = "kitchen"
	Bar     Department = "bar"
)

// ParseDepartment accepts "kitchen" or "bar".
func ParseDepartment(s string) (Department, error) {
	switch Department(s) {
	case Kitchen, Bar:
		return Department(s), nil
	default:
		return "", ValidationError{Field: "department", Message: "department must be one of: kitchen, bar"}
	}
}

// DepartmentFor is the fallback routing used when a category carries no department.
func DepartmentFor(t ItemType) Department {
	if t == Drink {
		return Bar
	}
	return Kitchen
}

// Category groups menu items for display and routing
type Category struct {
	ID          string     `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	DisplayName string     `json:"display_name" db:"display_name"`
	Emoji       string     `json:"emoji" db:"emoji"`
	Department  Department `json:"department" db:"department"`
}

// MenuItem is a sellable dish or drink
type MenuItem struct {
	ID          string          `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Category    string          `json:"category" db:"category"`
	ItemType    ItemType        `json:"item_type" db:"item_type"`
	Department  Department      `json:"department,omitempty" db:"department"`
	Available   bool            `json:"available" db:"available"`
}
