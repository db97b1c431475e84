package migration

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/jmehdipour/restaurant-crm/internal/layout"
	"github.com/jmehdipour/restaurant-crm/internal/model"
	"github.com/jmehdipour/restaurant-crm/internal/store"
	"github.com/jmehdipour/restaurant-crm/internal/util"
)

// discriminators maps folded formType values to kinds. Anything else,
// including "restaurante" profile forms, is quarantined.
var discriminators = map[string]model.Kind{
	"cliente":               model.KindCustomer,
	"clientes":              model.KindCustomer,
	"pedido":                model.KindOrder,
	"pedidos":               model.KindOrder,
	"reserva":               model.KindReservation,
	"reservas":              model.KindReservation,
	"reservas particulares": model.KindReservation,
	"reservas grupos":       model.KindReservation,
	"producto":              model.KindProduct,
	"productos":             model.KindProduct,
	"carta":                 model.KindProduct,
}

// Classify maps a free-text discriminator to a kind, ignoring case, accents
// and repeated spaces.
func Classify(formType string) (model.Kind, bool) {
	k, ok := discriminators[util.Fold(formType)]
	return k, ok
}

// SplitKeyFormType corrects a key whose contact id contained underscores:
// "..._cliente_chat_123" parses with form type "cliente_chat". When the
// parsed form type is not a discriminator, the longest prefix ending before
// an underscore that is one wins and the rest moves back to the contact id.
func SplitKeyFormType(k layout.LegacyKey) layout.LegacyKey {
	if _, ok := Classify(k.FormType); ok {
		return k
	}
	for i := strings.LastIndexByte(k.FormType, '_'); i > 0; i = strings.LastIndexByte(k.FormType[:i], '_') {
		if _, ok := Classify(k.FormType[:i]); ok {
			k.ContactID = k.FormType[i+1:] + "_" + k.ContactID
			k.FormType = k.FormType[:i]
			return k
		}
	}
	return k
}

// aliases folds the label variants seen in legacy forms onto the field
// names the form variants declare.
var aliases = map[string]string{
	"name":            "nombre",
	"nombre_completo": "nombre",
	"nombre_cliente":  "nombre",
	"cliente":         "nombre",

	"e_mail":             "email",
	"mail":               "email",
	"correo":             "email",
	"correo_electronico": "email",

	"phone":                "telefono",
	"movil":                "telefono",
	"celular":              "telefono",
	"whatsapp":             "telefono",
	"telefono_de_contacto": "telefono",

	"labels": "etiquetas",
	"tags":   "etiquetas",

	"tier":              "tipo_cliente",
	"categoria_cliente": "tipo_cliente",

	"contact":    "contacto",
	"contactid":  "contacto",
	"contact_id": "contacto",
	"chat_id":    "contacto",

	"tipo_de_pedido": "tipo_pedido",
	"modalidad":      "tipo_pedido",
	"order_type":     "tipo_pedido",
	"entrega":        "tipo_pedido",

	"resumen":     "pedido",
	"detalle":     "pedido",
	"summary":     "pedido",
	"descripcion": "pedido",

	"direccion_de_entrega": "direccion",
	"address":              "direccion",

	"importe":      "total",
	"precio_total": "total",
	"monto":        "total",

	"status": "estado",

	"n_personas":         "personas",
	"numero_de_personas": "personas",
	"comensales":         "personas",
	"party_size":         "personas",
	"pax":                "personas",

	"dia":  "fecha",
	"date": "fecha",
	"time": "hora",

	"comentarios":   "notas",
	"observaciones": "notas",
	"notes":         "notas",

	"price":    "precio",
	"category": "categoria",
	"seccion":  "categoria",

	"available": "disponible",
	"activo":    "disponible",
}

// canonicalFields folds labels and aliases. When two labels land on the same
// name the first non-empty one in label order wins.
func canonicalFields(fields store.Fields) map[string]any {
	labels := make([]string, 0, len(fields))
	for k := range fields {
		labels = append(labels, k)
	}
	sort.Strings(labels)

	out := make(map[string]any, len(fields))
	for _, label := range labels {
		key := util.FieldKey(label)
		if a, ok := aliases[key]; ok {
			key = a
		}
		v := fields[label]
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		if v == nil {
			continue
		}
		if _, taken := out[key]; !taken {
			out[key] = v
		}
	}
	return out
}

// DecodeForm turns a legacy form document into its typed variant. Unknown
// discriminators produce Unclassified and no error.
func DecodeForm(formType string, fields store.Fields) (model.LegacyForm, error) {
	kind, ok := Classify(formType)
	if !ok {
		return model.Unclassified{FormType: formType, Raw: rawStrings(fields)}, nil
	}

	var target model.LegacyForm
	switch kind {
	case model.KindCustomer:
		target = &model.CustomerForm{}
	case model.KindOrder:
		target = &model.OrderForm{}
	case model.KindReservation:
		target = &model.ReservationForm{}
	case model.KindProduct:
		target = &model.ProductForm{}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "form",
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(canonicalFields(fields)); err != nil {
		return nil, fmt.Errorf("%w: decode %s form: %v", model.ErrInvalid, kind, err)
	}

	switch f := target.(type) {
	case *model.CustomerForm:
		return *f, nil
	case *model.OrderForm:
		return *f, nil
	case *model.ReservationForm:
		return *f, nil
	case *model.ProductForm:
		return *f, nil
	}
	return nil, fmt.Errorf("%w: %s", model.ErrUnknownKind, kind)
}

func rawStrings(fields store.Fields) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		if v == nil {
			out[k] = ""
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}
