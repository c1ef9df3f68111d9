// Package notify implements the best-effort ticket delivery collaborators.
// Delivery is advisory: the registration is durable before any of this runs.
package notify

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/robertarktes/event-admissions/internal/adapters/rabbit"
	"github.com/robertarktes/event-admissions/internal/domain"
	"github.com/robertarktes/event-admissions/internal/observability"
)

// RoutingKey is where ticket delivery requests are published; the notifier
// worker consumes it.
const RoutingKey = "registration.ticket"

// TicketMessage is the wire form of a delivery request. The artifact is not
// carried; the worker re-renders from the payload when it needs the image.
type TicketMessage struct {
	Code    string `json:"code"`
	Payload string `json:"payload"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
}

// RabbitNotifier hands delivery to the queue. The broker gives the
// best-effort path its at-least-once retry leg without blocking admission.
type RabbitNotifier struct {
	pub *rabbit.Publisher
}

func NewRabbitNotifier(pub *rabbit.Publisher) *RabbitNotifier {
	return &RabbitNotifier{pub: pub}
}

func (n *RabbitNotifier) SendTicket(ctx context.Context, contact domain.ContactInfo, tkt domain.Ticket) error {
	body, err := json.Marshal(TicketMessage{
		Code:    tkt.Code,
		Payload: tkt.Payload,
		Name:    contact.Name,
		Email:   contact.Email,
		Phone:   contact.Phone,
	})
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		MessageId:   uuid.New().String(),
		ContentType: "application/json",
		Body:        body,
	}
	return n.pub.Publish(ctx, RoutingKey, msg)
}

// LogNotifier is the no-broker fallback: it only records that a delivery
// would have happened.
type LogNotifier struct {
	logger observability.Logger
}

func NewLogNotifier(logger observability.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendTicket(ctx context.Context, contact domain.ContactInfo, tkt domain.Ticket) error {
	n.logger.WithField("code", tkt.Code).WithField("email", contact.Email).Info("ticket delivery (log only)")
	return nil
}
