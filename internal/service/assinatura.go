package service

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/stripe/stripe-go/v78"

	"github.com/willjrcristo/stripe-billing/internal/domain"
	"github.com/willjrcristo/stripe-billing/internal/processor"
	"github.com/willjrcristo/stripe-billing/internal/repository"
)

// --- SESSÕES (CHECKOUT E PORTAL) ---

// CreateCheckoutSession cria uma sessão de pagamento na Stripe para o plano escolhido.
func (s *UsuarioService) CreateCheckoutSession(ctx context.Context, userID string, plano domain.Plano) (string, error) {
	priceID, err := s.priceID(plano)
	if err != nil {
		return "", err
	}

	cliente, err := s.ResolveCustomer(ctx, userID)
	if err != nil {
		return "", err
	}

	// Regra de negócio: uma assinatura por usuário.
	if cliente.AssinaturaAtiva {
		return "", ErrAssinaturaJaAtiva
	}

	sess, err := s.stripe.CreateCheckoutSession(ctx, processor.CheckoutRequest{
		CustomerID:        cliente.CustomerID,
		ClientReferenceID: userID,
		PriceID:           priceID,
		SuccessURL:        s.appURL + "/dashboard?checkoutSuccess=true",
		CancelURL:         s.appURL + "/dashboard?checkoutCanceled=true",
		TrialPeriodDays:   s.trialDays,
		// O webhook usa isso para achar o usuário antes de existir um subscription id salvo.
		SubscriptionMetadata: map[string]string{
			"userId": userID,
			"plan":   string(plano),
		},
	})
	if err != nil {
		s.logger.Error("Falha ao criar a sessão de checkout na Stripe", "user_id", userID, "error", err)
		return "", err
	}
	if sess == nil || sess.URL == "" {
		return "", respostaInvalida("sessão de checkout sem URL")
	}

	return sess.URL, nil
}

// CreateBillingPortalSession devolve a URL do portal de autoatendimento da Stripe.
func (s *UsuarioService) CreateBillingPortalSession(ctx context.Context, userID string) (string, error) {
	cliente, err := s.ResolveCustomer(ctx, userID)
	if err != nil {
		return "", err
	}

	sess, err := s.stripe.CreateBillingPortalSession(ctx, cliente.CustomerID, s.appURL+"/dashboard")
	if err != nil {
		s.logger.Error("Falha ao criar a sessão do portal na Stripe", "user_id", userID, "error", err)
		return "", err
	}
	if sess == nil || sess.URL == "" {
		return "", respostaInvalida("sessão do portal sem URL")
	}

	return sess.URL, nil
}

// --- TROCA DE PLANO ---

// UpdateSubscription troca o preço da assinatura atual pelo do novo plano.
// O status continua vindo do webhook; aqui só gravamos o plano escolhido.
func (s *UsuarioService) UpdateSubscription(ctx context.Context, userID string, plano domain.Plano) (*stripe.Subscription, error) {
	priceID, err := s.priceID(plano)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUsuarioNaoEncontrado
	}
	if user.StripeSubscriptionID == nil || *user.StripeSubscriptionID == "" {
		return nil, ErrAssinaturaNaoEncontrada
	}
	if user.StripeSubscriptionPlan != nil && *user.StripeSubscriptionPlan == plano {
		return nil, ErrPlanoJaAtivo
	}

	subID := *user.StripeSubscriptionID
	atual, err := s.stripe.GetSubscription(ctx, subID)
	if err != nil {
		return nil, err
	}
	if atual == nil || atual.Items == nil || len(atual.Items.Data) == 0 || atual.Items.Data[0].ID == "" {
		return nil, respostaInvalida("assinatura sem itens")
	}

	atualizada, err := s.stripe.UpdateSubscriptionItemPrice(ctx, subID, atual.Items.Data[0].ID, priceID)
	if err != nil {
		s.logger.Error("Falha ao trocar o plano na Stripe", "user_id", userID, "subscription_id", subID, "error", err)
		return nil, err
	}
	if atualizada == nil {
		return nil, respostaInvalida("assinatura não retornada após atualização")
	}

	if err := s.repo.UpdateSubscriptionPlan(ctx, userID, plano); err != nil {
		if errors.Is(err, repository.ErrNaoEncontrado) {
			return nil, ErrUsuarioNaoEncontrado
		}
		return nil, err
	}

	s.logger.Info("Plano alterado", "user_id", userID, "subscription_id", subID, "plano", plano)
	return atualizada, nil
}

// --- CONSULTAS ---

// SubscriptionStatus devolve o status salvo, ou nil se o usuário nunca assinou.
func (s *UsuarioService) SubscriptionStatus(ctx context.Context, userID string) (*string, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUsuarioNaoEncontrado
	}
	return user.StripeSubscriptionStatus, nil
}

// SubscriptionPlan devolve o plano salvo, ou "Free" quando não há nenhum.
func (s *UsuarioService) SubscriptionPlan(ctx context.Context, userID string) (string, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUsuarioNaoEncontrado
	}
	if user.StripeSubscriptionPlan == nil {
		return domain.PlanoGratuito, nil
	}
	return string(*user.StripeSubscriptionPlan), nil
}

func (s *UsuarioService) priceID(plano domain.Plano) (string, error) {
	if !plano.Valido() {
		return "", errors.Mark(errors.Newf("plano inválido: %q", plano), ErrPlanoInvalido)
	}
	id, ok := s.precos.PriceID(plano)
	if !ok {
		return "", errors.Mark(errors.Newf("plano sem preço configurado: %q", plano), ErrPlanoInvalido)
	}
	return id, nil
}
