package ciba

import (
	"context"

	"github.com/gatehouse-id/gatehouse/internal/domain/types"
	"github.com/gatehouse-id/gatehouse/internal/observability/logger"
)

// NotificationEvent nombra qué le pasó a una transacción.
type NotificationEvent string

const (
	EventAuthorized NotificationEvent = "authorized"
	EventDenied     NotificationEvent = "denied"
)

// ClientNotifier entrega los callbacks ping/push al notification endpoint
// registrado del cliente. La entrega en sí vive fuera del engine; esta es
// la costura donde se enchufa.
type ClientNotifier interface {
	Notify(ctx context.Context, client *types.ClientConfiguration, tx *types.BackchannelAuthenticationRequest, event NotificationEvent) error
}

// logNotifier registra el callback en vez de entregarlo. Implementación
// por defecto para despliegues sin adaptador de entrega.
type logNotifier struct{}

func NewLogNotifier() ClientNotifier { return logNotifier{} }

func (logNotifier) Notify(ctx context.Context, client *types.ClientConfiguration, tx *types.BackchannelAuthenticationRequest, event NotificationEvent) error {
	logger.From(ctx).Info("backchannel notification",
		logger.Layer("service"), logger.Op("ciba.notify"),
		logger.ClientID(client.ClientID), logger.AuthReqID(tx.AuthReqID),
		logger.String("delivery_mode", string(tx.DeliveryMode)), logger.String("event", string(event)))
	return nil
}
