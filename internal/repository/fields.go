package repository

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/jmehdipour/restaurant-crm/internal/model"
	"github.com/jmehdipour/restaurant-crm/internal/store"
)

// immutable fields are set on create and never patched; updatedAt is
// stamped by the repository.
var immutable = map[string]bool{
	"id":        true,
	"tenantId":  true,
	"createdAt": true,
	"updatedAt": true,
}

// documentFields lists the json field names of an entity kind.
func documentFields(k model.Kind) (map[string]bool, error) {
	e, err := model.New(k)
	if err != nil {
		return nil, err
	}
	out := map[string]bool{}
	collectFields(reflect.TypeOf(e).Elem(), out)
	return out, nil
}

func collectFields(t reflect.Type, out map[string]bool) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			collectFields(f.Type, out)
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name != "" && name != "-" {
			out[name] = true
		}
	}
}

// checkPatch rejects unknown and immutable fields.
func checkPatch(k model.Kind, patch store.Fields) error {
	if len(patch) == 0 {
		return fmt.Errorf("%w: empty patch", model.ErrInvalid)
	}
	known, err := documentFields(k)
	if err != nil {
		return err
	}
	var bad []string
	for f := range patch {
		if immutable[f] {
			return fmt.Errorf("%w: field %s cannot be changed", model.ErrInvalid, f)
		}
		if !known[f] {
			bad = append(bad, f)
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return fmt.Errorf("%w: unknown fields %s for %s", model.ErrInvalid, strings.Join(bad, ", "), k)
	}
	return nil
}

type filterType int

const (
	filterString filterType = iota
	filterInt
	filterBool
	filterEnum
)

type filterSpec struct {
	typ   filterType
	valid func(string) bool
}

var filterable = map[model.Kind]map[string]filterSpec{
	model.KindCustomer: {
		"name":  {typ: filterString},
		"email": {typ: filterString},
		"phone": {typ: filterString},
		"tier":  {typ: filterEnum, valid: func(s string) bool { return model.Tier(s).Valid() }},
	},
	model.KindOrder: {
		"contact":   {typ: filterString},
		"status":    {typ: filterEnum, valid: func(s string) bool { return model.OrderStatus(s).Valid() }},
		"orderType": {typ: filterEnum, valid: func(s string) bool { return model.OrderType(s).Valid() }},
	},
	model.KindReservation: {
		"contact":   {typ: filterString},
		"partySize": {typ: filterInt},
		"status":    {typ: filterEnum, valid: func(s string) bool { return model.ReservationStatus(s).Valid() }},
	},
	model.KindProduct: {
		"name":      {typ: filterString},
		"category":  {typ: filterString},
		"available": {typ: filterBool},
	},
}

// ParseFilter turns a raw query-string value into a typed equality filter.
func ParseFilter(k model.Kind, field, raw string) (store.Filter, error) {
	fs, ok := filterable[k][field]
	if !ok {
		return store.Filter{}, fmt.Errorf("%w: %s cannot be filtered by %q", model.ErrInvalid, k, field)
	}
	switch fs.typ {
	case filterInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return store.Filter{}, fmt.Errorf("%w: %s must be an integer", model.ErrInvalid, field)
		}
		return store.Filter{Field: field, Value: n}, nil
	case filterBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return store.Filter{}, fmt.Errorf("%w: %s must be true or false", model.ErrInvalid, field)
		}
		return store.Filter{Field: field, Value: b}, nil
	case filterEnum:
		if !fs.valid(raw) {
			return store.Filter{}, fmt.Errorf("%w: %s %q", model.ErrInvalid, field, raw)
		}
	}
	return store.Filter{Field: field, Value: raw}, nil
}
