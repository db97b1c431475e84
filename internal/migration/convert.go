package migration

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmehdipour/restaurant-crm/internal/layout"
	"github.com/jmehdipour/restaurant-crm/internal/model"
	"github.com/jmehdipour/restaurant-crm/internal/util"
)

// converter turns decoded legacy forms into current-layout entities.
type converter struct {
	defaultCC string
}

func (c converter) entity(form model.LegacyForm, key layout.LegacyKey) (model.Entity, error) {
	var (
		e   model.Entity
		err error
	)
	switch f := form.(type) {
	case model.CustomerForm:
		e = c.customer(f, key)
	case model.OrderForm:
		e, err = c.order(f, key)
	case model.ReservationForm:
		e, err = c.reservation(f, key)
	case model.ProductForm:
		e, err = c.product(f)
	default:
		return nil, fmt.Errorf("%w: %T", model.ErrUnclassified, form)
	}
	if err != nil {
		return nil, err
	}
	e.Base().CreatedAt = key.Timestamp
	if n, ok := e.(interface{ Normalize() }); ok {
		n.Normalize()
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func (c converter) customer(f model.CustomerForm, key layout.LegacyKey) *model.Customer {
	phone := f.Phone
	if phone == "" && util.LooksLikePhone(key.ContactID) {
		phone = key.ContactID
	}
	var labels []string
	for _, l := range f.Labels {
		labels = append(labels, strings.Split(l, ",")...)
	}
	tier := model.TierRegular
	if util.Fold(f.Tier) == "vip" {
		tier = model.TierVIP
	}
	return &model.Customer{
		Name:   f.Name,
		Email:  f.Email,
		Phone:  util.NormalizePhone(phone, c.defaultCC),
		Labels: labels,
		Tier:   tier,
	}
}

// contact picks the first usable way to reach the customer.
func (c converter) contact(explicit, phone string, key layout.LegacyKey) string {
	switch {
	case strings.TrimSpace(explicit) != "":
		return strings.TrimSpace(explicit)
	case phone != "":
		return util.NormalizePhone(phone, c.defaultCC)
	case util.LooksLikePhone(key.ContactID):
		return util.NormalizePhone(key.ContactID, c.defaultCC)
	}
	return key.ContactID
}

var orderTypes = map[string]model.OrderType{
	"delivery":    model.OrderDelivery,
	"domicilio":   model.OrderDelivery,
	"a domicilio": model.OrderDelivery,
	"envio":       model.OrderDelivery,
	"pickup":      model.OrderPickup,
	"recoger":     model.OrderPickup,
	"recogida":    model.OrderPickup,
	"para llevar": model.OrderPickup,
	"dine in":     model.OrderDineIn,
	"dine_in":     model.OrderDineIn,
	"local":       model.OrderDineIn,
	"en el local": model.OrderDineIn,
	"mesa":        model.OrderDineIn,
}

var orderStatuses = map[string]model.OrderStatus{
	"pending":    model.OrderPending,
	"pendiente":  model.OrderPending,
	"accepted":   model.OrderAccepted,
	"aceptado":   model.OrderAccepted,
	"rejected":   model.OrderRejected,
	"rechazado":  model.OrderRejected,
	"completed":  model.OrderCompleted,
	"completado": model.OrderCompleted,
	"entregado":  model.OrderCompleted,
}

var reservationStatuses = map[string]model.ReservationStatus{
	"pending":    model.ReservationPending,
	"pendiente":  model.ReservationPending,
	"accepted":   model.ReservationAccepted,
	"aceptada":   model.ReservationAccepted,
	"confirmada": model.ReservationAccepted,
	"rejected":   model.ReservationRejected,
	"rechazada":  model.ReservationRejected,
	"cancelled":  model.ReservationCancelled,
	"cancelada":  model.ReservationCancelled,
}

func (c converter) order(f model.OrderForm, key layout.LegacyKey) (*model.Order, error) {
	o := &model.Order{
		Contact:         c.contact(f.Contact, f.Phone, key),
		CustomerName:    strings.TrimSpace(f.CustomerName),
		Summary:         strings.TrimSpace(f.Summary),
		DeliveryAddress: strings.TrimSpace(f.Address),
	}

	switch t := util.Fold(f.OrderType); {
	case t == "" && o.DeliveryAddress != "":
		o.OrderType = model.OrderDelivery
	case t == "":
		o.OrderType = model.OrderPickup
	default:
		ot, ok := orderTypes[t]
		if !ok {
			return nil, fmt.Errorf("%w: order type %q", model.ErrInvalid, f.OrderType)
		}
		o.OrderType = ot
	}

	if s := util.Fold(f.Status); s != "" {
		st, ok := orderStatuses[s]
		if !ok {
			return nil, fmt.Errorf("%w: order status %q", model.ErrInvalid, f.Status)
		}
		o.Status = st
	}

	if strings.TrimSpace(f.Total) != "" {
		m, err := model.ParseMoney(f.Total)
		if err != nil {
			return nil, err
		}
		o.Total = m
	}
	return o, nil
}

var (
	dateLayouts = []string{"2006-01-02", "02/01/2006", "2/1/2006", "02-01-2006", "2/1/06"}
	timeLayouts = []string{"15:04", "15:04:05", "15.04", "3:04 PM", "3:04PM"}
)

// requestedAt combines the separate date and time answers. A full RFC 3339
// timestamp in the date answer wins. Times without a zone are taken as UTC.
func requestedAt(date, clock string) (time.Time, error) {
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	if date == "" {
		return time.Time{}, fmt.Errorf("%w: reservation date is missing", model.ErrInvalid)
	}
	if t, err := time.Parse(time.RFC3339, date); err == nil {
		return t.UTC(), nil
	}

	var day time.Time
	var err error
	for _, l := range dateLayouts {
		if day, err = time.Parse(l, date); err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: reservation date %q", model.ErrInvalid, date)
	}
	if clock == "" {
		return day, nil
	}

	clock = strings.ToUpper(strings.ReplaceAll(strings.ToLower(clock), "h", ":"))
	for _, l := range timeLayouts {
		t, err := time.Parse(l, clock)
		if err == nil {
			return day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: reservation time %q", model.ErrInvalid, clock)
}

func (c converter) reservation(f model.ReservationForm, key layout.LegacyKey) (*model.Reservation, error) {
	at, err := requestedAt(f.Date, f.Time)
	if err != nil {
		return nil, err
	}
	r := &model.Reservation{
		Contact:      c.contact(f.Contact, f.Phone, key),
		CustomerName: strings.TrimSpace(f.CustomerName),
		PartySize:    f.PartySize,
		RequestedAt:  at,
		Notes:        strings.TrimSpace(f.Notes),
	}
	if s := util.Fold(f.Status); s != "" {
		st, ok := reservationStatuses[s]
		if !ok {
			return nil, fmt.Errorf("%w: reservation status %q", model.ErrInvalid, f.Status)
		}
		r.Status = st
	}
	return r, nil
}

func (c converter) product(f model.ProductForm) (*model.Product, error) {
	p := &model.Product{
		Name:      strings.TrimSpace(f.Name),
		Category:  strings.TrimSpace(f.Category),
		Available: true,
	}
	if strings.TrimSpace(f.Price) != "" {
		m, err := model.ParseMoney(f.Price)
		if err != nil {
			return nil, err
		}
		p.Price = m
	}
	switch util.Fold(f.Available) {
	case "", "si", "true", "1", "yes", "disponible":
	case "no", "false", "0", "agotado":
		p.Available = false
	default:
		return nil, fmt.Errorf("%w: product availability %q", model.ErrInvalid, f.Available)
	}
	return p, nil
}
