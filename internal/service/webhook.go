package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/willjrcristo/stripe-billing/internal/domain"
	"github.com/willjrcristo/stripe-billing/internal/repository"
)

// stripe_webhook_events_total conta cada entrega pelo tipo e pelo desfecho.
var webhookEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "stripe_webhook_events_total",
		Help: "Eventos de webhook da Stripe recebidos, por tipo e desfecho.",
	},
	[]string{"type", "outcome"},
)

const (
	desfechoProcessado = "processed"
	desfechoDuplicado  = "duplicate"
	desfechoRecusado   = "rejected"
	desfechoNaoTratado = "unhandled"
	desfechoFalhou     = "failed"
	tipoDesconhecido   = "unknown"
)

// HandleStripeWebhook verifica, interpreta e aplica um evento recebido da Stripe.
// Devolve duplicado=true quando o evento já tinha sido processado antes;
// nesse caso nada é alterado e a entrega deve ser confirmada mesmo assim.
func (s *UsuarioService) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) (duplicado bool, err error) {
	// 1. Verificar a assinatura do evento
	if strings.TrimSpace(signature) == "" {
		webhookEventsTotal.WithLabelValues(tipoDesconhecido, desfechoRecusado).Inc()
		return false, errors.Mark(errors.New("cabeçalho Stripe-Signature ausente"), ErrWebhookStripe)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		s.logger.Error("Erro ao verificar a assinatura do webhook", "error", err)
		webhookEventsTotal.WithLabelValues(tipoDesconhecido, desfechoRecusado).Inc()
		return false, errors.Mark(err, ErrWebhookStripe)
	}

	tipo := string(event.Type)
	log := s.logger.With("event_id", event.ID, "event_type", tipo)

	// 2. Interpretar o tipo; fora do conjunto conhecido, recusamos sem gravar nada
	evento, err := parseEvento(event)
	if err != nil {
		if errors.Is(err, ErrEventoNaoTratado) {
			log.Warn("Webhook da Stripe com tipo não tratado")
			webhookEventsTotal.WithLabelValues(tipo, desfechoNaoTratado).Inc()
		} else {
			log.Error("Evento da Stripe malformado", "error", err)
			webhookEventsTotal.WithLabelValues(tipo, desfechoRecusado).Inc()
		}
		return false, err
	}

	defer func() {
		switch {
		case err != nil:
			webhookEventsTotal.WithLabelValues(tipo, desfechoFalhou).Inc()
		case duplicado:
			webhookEventsTotal.WithLabelValues(tipo, desfechoDuplicado).Inc()
		default:
			webhookEventsTotal.WithLabelValues(tipo, desfechoProcessado).Inc()
		}
	}()

	// 3. Atalho para reenvios: evita chamadas à Stripe para um evento já aplicado.
	// A garantia de verdade é a reserva transacional no passo 5.
	existe, err := s.repo.EventExists(ctx, event.ID)
	if err != nil {
		return false, err
	}
	if existe {
		log.Info("Evento da Stripe já processado")
		return true, nil
	}

	// 4. Calcular o efeito do evento
	upd, err := evento.atualizacao(ctx, s)
	if err != nil {
		log.Error("Falha ao preparar atualização do evento", "error", err)
		return false, err
	}

	// 5. Reservar o id e aplicar o efeito atomicamente
	aplicado, err := s.repo.ApplyEvent(ctx, registroDoEvento(event), upd)
	if err != nil {
		if errors.Is(err, repository.ErrNaoEncontrado) {
			log.Warn("Nenhum usuário corresponde ao evento da Stripe")
			return false, errors.Mark(errors.Wrapf(err, "evento %s", event.ID), ErrUsuarioNaoEncontrado)
		}
		log.Error("Falha ao aplicar evento da Stripe", "error", err)
		return false, err
	}
	if !aplicado {
		log.Info("Evento da Stripe já processado por outra entrega")
		return true, nil
	}

	log.Info("Evento da Stripe processado")
	return false, nil
}

// registroDoEvento monta a linha de auditoria com o snapshot completo do evento.
func registroDoEvento(event stripe.Event) domain.EventoStripe {
	data, _ := json.Marshal(struct {
		Object             json.RawMessage `json:"object"`
		PreviousAttributes map[string]any  `json:"previous_attributes,omitempty"`
	}{
		Object:             event.Data.Raw,
		PreviousAttributes: event.Data.PreviousAttributes,
	})

	registro := domain.EventoStripe{
		ID:              event.ID,
		Type:            string(event.Type),
		Object:          event.Object,
		APIVersion:      event.APIVersion,
		Account:         event.Account,
		Created:         time.Unix(event.Created, 0).UTC(),
		Data:            data,
		Livemode:        event.Livemode,
		PendingWebhooks: event.PendingWebhooks,
	}
	if event.Request != nil {
		registro.RequestID = event.Request.ID
		registro.IdempotencyKey = event.Request.IdempotencyKey
	}
	return registro
}
