// Package layout resolves document addresses for tenant-scoped entities in
// the current layout and in the two legacy layouts the migrator reads.
//
//	current        clients/{tenantId}/{clientes|pedidos|reservas|productos}/{id}
//	tenant         clients/{tenantId}
//	legacy forms   clients/{businessId}/Formularios/{unixMillis}_{formType}_{contactId}
//	legacy nested  restaurantes/{tenantId}/{clientes|pedidos|reservas|productos}/{id}
//	id claims      idclaims/{plural}/ids/{id}
//	slug claims    tenantslugs/{slug}
//
// Every function here is pure.
package layout

import (
	"fmt"
	"strings"

	"github.com/jmehdipour/restaurant-crm/internal/model"
	"github.com/jmehdipour/restaurant-crm/internal/store"
)

const (
	TenantsRoot = "clients"
	ClaimsRoot  = "idclaims"
	SlugsRoot   = "tenantslugs"

	DefaultLegacyCollection = "Formularios"
	DefaultNestedRoot       = "restaurantes"
)

var plurals = map[model.Kind]string{
	model.KindCustomer:    "clientes",
	model.KindOrder:       "pedidos",
	model.KindReservation: "reservas",
	model.KindProduct:     "productos",
}

// Plural returns the storage collection name of k.
func Plural(k model.Kind) (string, error) {
	p, ok := plurals[k]
	if !ok {
		return "", fmt.Errorf("%w: %q", model.ErrUnknownKind, k)
	}
	return p, nil
}

// KindOf maps a storage collection name back to its kind.
func KindOf(collection string) (model.Kind, bool) {
	for k, p := range plurals {
		if p == collection {
			return k, true
		}
	}
	return "", false
}

// ValidSegment rejects values that would change the shape of a path.
func ValidSegment(s string) error {
	if s == "" || s == "." || s == ".." || strings.ContainsRune(s, '/') {
		return fmt.Errorf("%w: segment %q", store.ErrInvalidPath, s)
	}
	return nil
}

func segments(ss ...string) error {
	for _, s := range ss {
		if err := ValidSegment(s); err != nil {
			return err
		}
	}
	return nil
}

// TenantPath addresses the tenant document itself.
func TenantPath(tenantID string) (string, error) {
	if err := ValidSegment(tenantID); err != nil {
		return "", err
	}
	return store.Join(TenantsRoot, tenantID), nil
}

// CollectionPath addresses the current-layout collection of kind k for a tenant.
func CollectionPath(tenantID string, k model.Kind) (string, error) {
	p, err := Plural(k)
	if err != nil {
		return "", err
	}
	if err := ValidSegment(tenantID); err != nil {
		return "", err
	}
	return store.Join(TenantsRoot, tenantID, p), nil
}

// ResolveCurrentPath addresses one entity in the current layout.
func ResolveCurrentPath(tenantID string, k model.Kind, id string) (string, error) {
	coll, err := CollectionPath(tenantID, k)
	if err != nil {
		return "", err
	}
	if err := ValidSegment(id); err != nil {
		return "", err
	}
	return store.Join(coll, id), nil
}

// ClaimPath addresses the global claim that reserves id for a single tenant.
func ClaimPath(k model.Kind, id string) (string, error) {
	p, err := Plural(k)
	if err != nil {
		return "", err
	}
	if err := ValidSegment(id); err != nil {
		return "", err
	}
	return store.Join(ClaimsRoot, p, "ids", id), nil
}

// SlugPath addresses the claim that keeps tenant slugs unique.
func SlugPath(slug string) (string, error) {
	if err := ValidSegment(slug); err != nil {
		return "", err
	}
	return store.Join(SlugsRoot, slug), nil
}

// Legacy resolves addresses in the legacy layouts. The zero value uses the
// default collection names.
type Legacy struct {
	FormsCollection string
	NestedRoot      string
}

func (l Legacy) forms() string {
	if l.FormsCollection == "" {
		return DefaultLegacyCollection
	}
	return l.FormsCollection
}

func (l Legacy) nested() string {
	if l.NestedRoot == "" {
		return DefaultNestedRoot
	}
	return l.NestedRoot
}

// FormsCollectionID is the collection group name holding legacy forms.
func (l Legacy) FormsCollectionID() string { return l.forms() }

// NestedRootName is the root collection of the nested legacy layout.
func (l Legacy) NestedRootName() string { return l.nested() }

// ResolveLegacyPath returns the flat form collection of a business. Every
// form type shares that collection; formType only travels as the document's
// discriminator field and inside its key.
func (l Legacy) ResolveLegacyPath(tenantSlug, formType string) (string, error) {
	if err := ValidSegment(tenantSlug); err != nil {
		return "", err
	}
	if strings.TrimSpace(formType) == "" || strings.ContainsRune(formType, '/') {
		return "", fmt.Errorf("%w: form type %q", store.ErrInvalidPath, formType)
	}
	return store.Join(TenantsRoot, tenantSlug, l.forms()), nil
}

// LegacyDocPath addresses one legacy form document.
func (l Legacy) LegacyDocPath(tenantSlug, key string) (string, error) {
	if err := segments(tenantSlug, key); err != nil {
		return "", err
	}
	return store.Join(TenantsRoot, tenantSlug, l.forms(), key), nil
}

// NestedPath addresses one document of the nested legacy layout.
func (l Legacy) NestedPath(tenantID string, k model.Kind, id string) (string, error) {
	p, err := Plural(k)
	if err != nil {
		return "", err
	}
	if err := segments(tenantID, id); err != nil {
		return "", err
	}
	return store.Join(l.nested(), tenantID, p, id), nil
}
