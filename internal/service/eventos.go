package service

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/stripe/stripe-go/v78"

	"github.com/willjrcristo/stripe-billing/internal/domain"
)

// eventoWebhook é o conjunto fechado de eventos que sabemos tratar.
// Cada variante precisa implementar atualizacao, então uma variante nova
// sem handler não compila.
type eventoWebhook interface {
	atualizacao(ctx context.Context, s *UsuarioService) (*domain.AtualizacaoAssinatura, error)
}

type (
	// invoice.paid
	faturaPaga struct{ fatura stripe.Invoice }
	// invoice.payment_failed: aceito, sem mudança de estado por enquanto.
	pagamentoFalhou struct{ fatura stripe.Invoice }
	// customer.subscription.created / customer.subscription.updated
	assinaturaAlterada struct{ sub stripe.Subscription }
	// customer.subscription.deleted
	assinaturaCancelada struct{ sub stripe.Subscription }
)

// parseEvento converte o evento verificado na variante correspondente.
// Tipos fora do conjunto são recusados com o nome do tipo na mensagem.
func parseEvento(ev stripe.Event) (eventoWebhook, error) {
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return nil, errors.Mark(errors.Newf("evento %s sem data.object", ev.ID), ErrEventoInvalido)
	}

	switch ev.Type {
	case stripe.EventTypeInvoicePaid:
		var inv stripe.Invoice
		if err := decodificar(ev, &inv); err != nil {
			return nil, err
		}
		return faturaPaga{fatura: inv}, nil

	case stripe.EventTypeInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := decodificar(ev, &inv); err != nil {
			return nil, err
		}
		return pagamentoFalhou{fatura: inv}, nil

	case stripe.EventTypeCustomerSubscriptionCreated, stripe.EventTypeCustomerSubscriptionUpdated:
		var sub stripe.Subscription
		if err := decodificar(ev, &sub); err != nil {
			return nil, err
		}
		return assinaturaAlterada{sub: sub}, nil

	case stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := decodificar(ev, &sub); err != nil {
			return nil, err
		}
		return assinaturaCancelada{sub: sub}, nil
	}

	return nil, errors.Mark(errors.Newf("tipo de evento não tratado: %s", ev.Type), ErrEventoNaoTratado)
}

func decodificar(ev stripe.Event, dst any) error {
	if err := json.Unmarshal(ev.Data.Raw, dst); err != nil {
		return errors.Mark(errors.Wrapf(err, "falha ao decodificar %s", ev.Type), ErrEventoInvalido)
	}
	return nil
}

// --- HANDLERS POR VARIANTE ---

func (e faturaPaga) atualizacao(ctx context.Context, s *UsuarioService) (*domain.AtualizacaoAssinatura, error) {
	if e.fatura.Subscription == nil || e.fatura.Subscription.ID == "" {
		// Fatura avulsa: nada a reconciliar.
		s.logger.Info("invoice.paid sem assinatura, ignorado", "invoice_id", e.fatura.ID)
		return nil, nil
	}

	// A fatura só traz o id; buscamos a assinatura para saber o preço atual.
	sub, err := s.stripe.GetSubscription(ctx, e.fatura.Subscription.ID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, respostaInvalida("assinatura da fatura não encontrada")
	}

	upd := s.atualizacaoDaAssinatura(sub)
	upd.Status = domain.StatusAtiva
	if upd.CustomerID == "" && e.fatura.Customer != nil {
		upd.CustomerID = e.fatura.Customer.ID
	}
	return upd, nil
}

func (e pagamentoFalhou) atualizacao(ctx context.Context, s *UsuarioService) (*domain.AtualizacaoAssinatura, error) {
	s.logger.Warn("Pagamento falhou", "invoice_id", e.fatura.ID)
	return nil, nil
}

func (e assinaturaAlterada) atualizacao(ctx context.Context, s *UsuarioService) (*domain.AtualizacaoAssinatura, error) {
	upd := s.atualizacaoDaAssinatura(&e.sub)
	upd.Status = string(e.sub.Status)
	return upd, nil
}

func (e assinaturaCancelada) atualizacao(ctx context.Context, s *UsuarioService) (*domain.AtualizacaoAssinatura, error) {
	return &domain.AtualizacaoAssinatura{
		UserID:              e.sub.Metadata["userId"],
		CustomerID:          customerID(&e.sub),
		Status:              domain.StatusCancelada,
		SomenteSeAssinatura: e.sub.ID,
	}, nil
}

// atualizacaoDaAssinatura monta a parte comum: correlação, id e plano.
// Só vale para o usuário sem assinatura salva ou com esta mesma; um evento
// atrasado de uma assinatura antiga não sobrescreve a atual.
func (s *UsuarioService) atualizacaoDaAssinatura(sub *stripe.Subscription) *domain.AtualizacaoAssinatura {
	id := sub.ID
	plano := s.planoDaAssinatura(sub)
	if plano == nil {
		s.logger.Warn("Assinatura com preço desconhecido", "subscription_id", sub.ID)
	}
	return &domain.AtualizacaoAssinatura{
		UserID:              sub.Metadata["userId"],
		CustomerID:          customerID(sub),
		SubscriptionID:      &id,
		Plan:                plano,
		SomenteSeAssinatura: sub.ID,
	}
}

// planoDaAssinatura usa o preço atual; a metadata "plan" é gravada no checkout
// e fica desatualizada depois de uma troca de plano, então é só o fallback.
func (s *UsuarioService) planoDaAssinatura(sub *stripe.Subscription) *domain.Plano {
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item == nil || item.Price == nil {
				continue
			}
			if p, ok := s.precos.Plano(item.Price.ID); ok {
				return &p
			}
		}
	}
	if p := domain.Plano(sub.Metadata["plan"]); p.Valido() {
		return &p
	}
	return nil
}

func customerID(sub *stripe.Subscription) string {
	if sub.Customer == nil {
		return ""
	}
	return sub.Customer.ID
}
