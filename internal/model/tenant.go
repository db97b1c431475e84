package model

import (
	"regexp"
	"strings"
	"time"
)

// Tenant is one restaurant account, the unit of data isolation. Tenants are
// never deleted; Active=false is the soft delete.
type Tenant struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Slug        string    `json:"slug"`
	Active      bool      `json:"active"`
	Locale      string    `json:"locale,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TenantPatch holds the mutable tenant attributes; nil fields are left alone.
type TenantPatch struct {
	DisplayName *string `json:"displayName,omitempty"`
	Locale      *string `json:"locale,omitempty"`
	Currency    *string `json:"currency,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

var (
	tenantID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)
	slugRe   = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	currency = regexp.MustCompile(`^[A-Z]{3}$`)
)

// ValidTenantID reports whether id can be used as a path segment.
func ValidTenantID(id string) bool { return tenantID.MatchString(id) }

func (t *Tenant) Validate() error {
	switch {
	case !ValidTenantID(t.ID):
		return invalid("tenant id %q", t.ID)
	case strings.TrimSpace(t.DisplayName) == "":
		return invalid("tenant display name is required")
	case !slugRe.MatchString(t.Slug):
		return invalid("tenant slug %q", t.Slug)
	case t.Currency != "" && !currency.MatchString(t.Currency):
		return invalid("tenant currency %q", t.Currency)
	}
	return nil
}

// Apply copies the set fields of p onto t.
func (t *Tenant) Apply(p TenantPatch) {
	if p.DisplayName != nil {
		t.DisplayName = *p.DisplayName
	}
	if p.Locale != nil {
		t.Locale = *p.Locale
	}
	if p.Currency != nil {
		t.Currency = *p.Currency
	}
	if p.Active != nil {
		t.Active = *p.Active
	}
}
