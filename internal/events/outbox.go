// Package events persists domain events to a transactional outbox.
package events

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TopicOrganizationCreated = "organization.created"
	TopicMembershipChanged   = "membership.changed"
	TopicInvitationAccepted  = "invitation.accepted"
)

// OutboxEvent is a pending event row consumed by an external relay.
type OutboxEvent struct {
	ID        snowflake.ID   `gorm:"primaryKey"`
	Topic     string         `gorm:"type:text;not null;index"`
	Payload   datatypes.JSON `gorm:"not null"`
	Published bool           `gorm:"not null;default:false;index"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (OutboxEvent) TableName() string { return "outbox_events" }

// Publisher appends events for an external relay. WithTx binds the publisher
// to a transaction so the event row commits or rolls back with the write that
// produced it.
type Publisher interface {
	WithTx(tx *gorm.DB) Publisher
	Publish(ctx context.Context, topic string, payload []byte) error
}

type outboxPublisher struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func NewOutboxPublisher(db *gorm.DB, genID *snowflake.Node) Publisher {
	return &outboxPublisher{db: db, genID: genID}
}

func (p *outboxPublisher) WithTx(tx *gorm.DB) Publisher {
	return &outboxPublisher{db: tx, genID: p.genID}
}

func (p *outboxPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	return p.db.WithContext(ctx).Create(&OutboxEvent{
		ID:        p.genID.Generate(),
		Topic:     topic,
		Payload:   datatypes.JSON(payload),
		Published: false,
		CreatedAt: time.Now().UTC(),
	}).Error
}
