package domain

import (
	"encoding/json"
	"time"
)

// EventoStripe é o registro de auditoria de um webhook aceito.
// O ID (atribuído pelo Stripe) é a chave primária: é isso que garante
// que cada evento seja aplicado no máximo uma vez.
type EventoStripe struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Object          string          `json:"object"`
	APIVersion      string          `json:"api_version"`
	Account         string          `json:"account,omitempty"`
	Created         time.Time       `json:"created"`
	Data            json.RawMessage `json:"data"`
	Livemode        bool            `json:"livemode"`
	PendingWebhooks int64           `json:"pending_webhooks"`
	RequestID       string          `json:"request_id,omitempty"`
	IdempotencyKey  string          `json:"idempotency_key,omitempty"`
	ReceivedAt      time.Time       `json:"received_at"`
}
