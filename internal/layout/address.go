package layout

import (
	"fmt"
	"strings"

	"github.com/jmehdipour/restaurant-crm/internal/model"
	"github.com/jmehdipour/restaurant-crm/internal/store"
)

type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeTenant
	ShapeCurrent
	ShapeLegacyForm
	ShapeLegacyNested
	ShapeClaim
)

func (s Shape) String() string {
	switch s {
	case ShapeTenant:
		return "tenant"
	case ShapeCurrent:
		return "current"
	case ShapeLegacyForm:
		return "legacy_form"
	case ShapeLegacyNested:
		return "legacy_nested"
	case ShapeClaim:
		return "claim"
	}
	return "unknown"
}

// Address is a parsed document path.
type Address struct {
	Shape Shape
	// Owner is the second segment: a tenant id in the current and nested
	// layouts, a business id (tenant id or slug) for legacy forms.
	Owner      string
	Kind       model.Kind
	Collection string
	DocID      string
}

// ParseAddress recognises which layout a document path belongs to.
func (l Legacy) ParseAddress(path string) (Address, error) {
	if err := store.ValidateDocPath(path); err != nil {
		return Address{}, err
	}
	seg := strings.Split(path, "/")
	a := Address{DocID: seg[len(seg)-1]}

	switch {
	case len(seg) == 2 && seg[0] == TenantsRoot:
		a.Shape, a.Owner = ShapeTenant, seg[1]
	case len(seg) == 4 && seg[0] == TenantsRoot && seg[2] == l.forms():
		a.Shape, a.Owner, a.Collection = ShapeLegacyForm, seg[1], seg[2]
	case len(seg) == 4 && seg[0] == TenantsRoot:
		k, ok := KindOf(seg[2])
		if !ok {
			return a, nil
		}
		a.Shape, a.Owner, a.Collection, a.Kind = ShapeCurrent, seg[1], seg[2], k
	case len(seg) == 4 && seg[0] == l.nested():
		k, ok := KindOf(seg[2])
		if !ok {
			return a, nil
		}
		a.Shape, a.Owner, a.Collection, a.Kind = ShapeLegacyNested, seg[1], seg[2], k
	case len(seg) == 4 && seg[0] == ClaimsRoot && seg[2] == "ids":
		k, ok := KindOf(seg[1])
		if !ok {
			return Address{}, fmt.Errorf("%w: claim collection %q", store.ErrInvalidPath, seg[1])
		}
		a.Shape, a.Collection, a.Kind = ShapeClaim, seg[1], k
	}
	return a, nil
}
