package model

import "strings"

type Product struct {
	Meta
	Name      string `json:"name"`
	Price     Money  `json:"price"`
	Category  string `json:"category"`
	Available bool   `json:"available"`
}

func (*Product) Kind() Kind { return KindProduct }

func (p *Product) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return invalid("product name is required")
	case p.Price < 0:
		return invalid("product price must not be negative")
	}
	return nil
}
