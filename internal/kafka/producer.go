package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jmehdipour/restaurant-crm/internal/model"
	"github.com/jmehdipour/restaurant-crm/internal/util"
)

// Producer writes change events. Messages are keyed by tenant id and hashed
// to partitions, so one tenant's events keep their order.
type Producer struct {
	w           *kafka.Writer
	entityTopic string
	tenantTopic string
}

func NewProducer(brokers []string, entityTopic, tenantTopic string) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
		entityTopic: entityTopic,
		tenantTopic: tenantTopic,
	}
}

// EntityChanged publishes ev on the entity topic.
func (p *Producer) EntityChanged(ctx context.Context, ev model.EntityChanged) error {
	return p.publish(ctx, p.entityTopic, "entity."+string(ev.Op), ev.TenantID, ev)
}

// TenantChanged publishes ev on the tenant topic.
func (p *Producer) TenantChanged(ctx context.Context, ev model.TenantChanged) error {
	return p.publish(ctx, p.tenantTopic, "tenant."+string(ev.Op), ev.TenantID, ev)
}

func (p *Producer) publish(ctx context.Context, topic, typ, tenant string, payload any) error {
	b, err := Marshal(model.Envelope{
		ID:      util.NewID(),
		Type:    typ,
		Tenant:  tenant,
		At:      time.Now().UTC(),
		Payload: payload,
	})
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, kafka.Message{Topic: topic, Key: []byte(tenant), Value: b}); err != nil {
		return fmt.Errorf("publish %s: %w", typ, err)
	}
	return nil
}

func (p *Producer) Close() error { return p.w.Close() }

func Marshal(env model.Envelope) ([]byte, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope %s: %w", env.Type, err)
	}
	return b, nil
}

// DecodeEnvelope reads an envelope and decodes its payload into out.
func DecodeEnvelope(b []byte, out any) (model.Envelope, error) {
	var raw struct {
		model.Envelope
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return model.Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if out != nil && len(raw.Payload) > 0 {
		if err := json.Unmarshal(raw.Payload, out); err != nil {
			return raw.Envelope, fmt.Errorf("decode payload %s: %w", raw.Type, err)
		}
	}
	env := raw.Envelope
	env.Payload = out
	return env, nil
}
