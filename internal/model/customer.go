package model

import (
	"net/mail"
	"sort"
	"strings"
)

type Tier string

const (
	TierRegular Tier = "regular"
	TierVIP     Tier = "vip"
)

func (t Tier) Valid() bool { return t == TierRegular || t == TierVIP }

type Customer struct {
	Meta
	Name   string   `json:"name"`
	Email  string   `json:"email,omitempty"`
	Phone  string   `json:"phone,omitempty"`
	Labels []string `json:"labels"`
	Tier   Tier     `json:"tier"`
}

func (*Customer) Kind() Kind { return KindCustomer }

// Normalize applies defaults and turns Labels into a sorted set.
func (c *Customer) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	if c.Tier == "" {
		c.Tier = TierRegular
	}
	seen := make(map[string]struct{}, len(c.Labels))
	labels := make([]string, 0, len(c.Labels))
	for _, l := range c.Labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		labels = append(labels, l)
	}
	sort.Strings(labels)
	c.Labels = labels
}

func (c *Customer) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid("customer name is required")
	}
	if c.Email != "" {
		if _, err := mail.ParseAddress(c.Email); err != nil {
			return invalid("customer email %q", c.Email)
		}
	}
	if !c.Tier.Valid() {
		return invalid("customer tier %q", c.Tier)
	}
	return nil
}
