package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmehdipour/restaurant-crm/internal/app"
	"github.com/jmehdipour/restaurant-crm/internal/layout"
	"github.com/jmehdipour/restaurant-crm/internal/logger"
	"github.com/jmehdipour/restaurant-crm/internal/model"
	"github.com/jmehdipour/restaurant-crm/internal/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed demo tenants and legacy documents for a migration dry run",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		a, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		log := logger.Named("seed")
		log.Info(">> seeding demo tenants")
		if err := seedTenants(ctx, a); err != nil {
			return err
		}

		log.Info(">> seeding legacy documents")
		n, err := seedLegacy(ctx, a.Store, a.Legacy())
		if err != nil {
			return err
		}
		log.Info(">> seed completed", zap.Int("legacy_documents", n))
		return nil
	},
}

var demoTenants = []model.Tenant{
	{ID: "rest_donpepe_001", DisplayName: "Don Pepe", Slug: "donpepe", Active: true, Locale: "es-ES", Currency: "EUR"},
	{ID: "rest_lamar_002", DisplayName: "La Mar", Slug: "lamar", Active: true, Locale: "es-ES", Currency: "EUR"},
}

// seedTenants is idempotent; existing tenants are left as they are.
func seedTenants(ctx context.Context, a *app.App) error {
	for _, t := range demoTenants {
		if _, err := a.Tenants.Create(ctx, t); err != nil {
			if errors.Is(err, model.ErrAlreadyExists) {
				continue
			}
			return fmt.Errorf("seed tenant %s: %w", t.ID, err)
		}
	}
	return nil
}

type legacyDoc struct {
	owner  string // slug or tenant id
	key    string
	fields store.Fields
}

var demoForms = []legacyDoc{
	{"donpepe", "1700000000000_cliente_600111222", store.Fields{
		"formType": "cliente", "Nombre": "Pepe García", "Email": "pepe@example.com", "Etiquetas": "habitual, terraza",
	}},
	{"donpepe", "1700000000001_pedido_600111222", store.Fields{
		"Tipo de pedido": "A domicilio", "Dirección": "Calle Mayor 1", "Pedido": "2 pizzas", "Total": "23,50 €",
	}},
	{"rest_donpepe_001", "1700000000002_reservas particulares_chat9", store.Fields{
		"Nombre": "Ana", "Nº personas": "4", "Fecha": "24/12/2024", "Hora": "21:30",
	}},
	{"lamar", "1700000000003_carta_menu1", store.Fields{
		"Nombre": "Pulpo a la gallega", "Precio": "14,90", "Categoría": "raciones", "Disponible": "sí",
	}},
	// profile form, quarantined by the migration
	{"donpepe", "1700000000004_restaurante_x1", store.Fields{
		"formType": "restaurante", "nombre": "Don Pepe",
	}},
	// no such tenant, reported as an orphan
	{"cerrado", "1700000000005_cliente_699000000", store.Fields{
		"Nombre": "Sin dueño",
	}},
}

type nestedDoc struct {
	tenantID string
	kind     model.Kind
	id       string
	fields   store.Fields
}

var demoNested = []nestedDoc{
	{"rest_donpepe_001", model.KindProduct, "p1", store.Fields{
		"name": "Paella", "price": 1800, "category": "arroces", "available": true,
	}},
	{"rest_lamar_002", model.KindCustomer, "c1", store.Fields{
		"name": "Lucía", "phone": "+34611222333", "tier": "vip",
	}},
}

func seedLegacy(ctx context.Context, s store.Store, legacy layout.Legacy) (int, error) {
	n := 0
	for _, d := range demoForms {
		path, err := legacy.LegacyDocPath(d.owner, d.key)
		if err != nil {
			return n, err
		}
		if err := s.Set(ctx, path, d.fields, false); err != nil {
			return n, fmt.Errorf("seed %s: %w", path, err)
		}
		n++
	}
	for _, d := range demoNested {
		path, err := legacy.NestedPath(d.tenantID, d.kind, d.id)
		if err != nil {
			return n, err
		}
		if err := s.Set(ctx, path, d.fields, false); err != nil {
			return n, fmt.Errorf("seed %s: %w", path, err)
		}
		n++
	}
	return n, nil
}
