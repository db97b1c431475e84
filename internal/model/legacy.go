package model

// LegacyForm is the closed set of decoded legacy form documents: one typed
// variant per known discriminator plus Unclassified.
type LegacyForm interface {
	FormKind() Kind
}

// Field tags name the normalised form labels (lower case, no accents,
// spaces as underscores). Aliases are folded onto these names before decoding.

type CustomerForm struct {
	Name   string   `form:"nombre"`
	Email  string   `form:"email"`
	Phone  string   `form:"telefono"`
	Labels []string `form:"etiquetas"`
	Tier   string   `form:"tipo_cliente"`
}

type OrderForm struct {
	CustomerName string `form:"nombre"`
	Contact      string `form:"contacto"`
	Phone        string `form:"telefono"`
	OrderType    string `form:"tipo_pedido"`
	Summary      string `form:"pedido"`
	Address      string `form:"direccion"`
	Total        string `form:"total"`
	Status       string `form:"estado"`
}

type ReservationForm struct {
	CustomerName string `form:"nombre"`
	Contact      string `form:"contacto"`
	Phone        string `form:"telefono"`
	PartySize    int    `form:"personas"`
	Date         string `form:"fecha"`
	Time         string `form:"hora"`
	Notes        string `form:"notas"`
	Status       string `form:"estado"`
}

type ProductForm struct {
	Name      string `form:"nombre"`
	Price     string `form:"precio"`
	Category  string `form:"categoria"`
	Available string `form:"disponible"`
}

// Unclassified keeps a document whose discriminator is unknown. It is
// quarantined and never written to the current layout.
type Unclassified struct {
	FormType string
	Raw      map[string]string
}

func (CustomerForm) FormKind() Kind    { return KindCustomer }
func (OrderForm) FormKind() Kind       { return KindOrder }
func (ReservationForm) FormKind() Kind { return KindReservation }
func (ProductForm) FormKind() Kind     { return KindProduct }
func (Unclassified) FormKind() Kind    { return "" }
