// Package processor isola as chamadas à API do Stripe atrás de uma interface
// pequena, para que o serviço possa ser testado sem rede.
package processor

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// Processor é o que o serviço de assinaturas precisa do Stripe.
type Processor interface {
	CreateCustomer(ctx context.Context, req CustomerRequest) (*stripe.Customer, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*stripe.CheckoutSession, error)
	CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (*stripe.BillingPortalSession, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
	UpdateSubscriptionItemPrice(ctx context.Context, subscriptionID, itemID, priceID string) (*stripe.Subscription, error)
}

type CustomerRequest struct {
	UserID string
	Email  string
	// Chave de idempotência enviada ao Stripe; reenvios em até 24h devolvem o mesmo cliente.
	IdempotencyKey string
}

type CheckoutRequest struct {
	CustomerID        string
	ClientReferenceID string
	PriceID           string
	SuccessURL        string
	CancelURL         string
	TrialPeriodDays   int64
	// Metadata vai para a assinatura criada, não para a sessão.
	SubscriptionMetadata map[string]string
}

// StripeProcessor implementa Processor com o SDK oficial.
type StripeProcessor struct {
	sc *client.API
}

// NewStripeProcessor cria o cliente com a chave secreta informada.
// Não deixamos o SDK refazer chamadas: quem decide repetir é o chamador.
func NewStripeProcessor(secretKey string) *StripeProcessor {
	backends := stripe.NewBackendsWithConfig(&stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(0),
	})
	return &StripeProcessor{sc: client.New(secretKey, backends)}
}

// NewStripeProcessorWithClient é usado quando o chamador já montou o client.API
// (por exemplo, apontando para um servidor de testes).
func NewStripeProcessorWithClient(sc *client.API) *StripeProcessor {
	return &StripeProcessor{sc: sc}
}

func (p *StripeProcessor) CreateCustomer(ctx context.Context, req CustomerRequest) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{
		Metadata: map[string]string{"userId": req.UserID},
	}
	if req.Email != "" {
		params.Email = stripe.String(req.Email)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.Context = ctx

	c, err := p.sc.Customers.New(params)
	if err != nil {
		return nil, errors.Wrap(err, "stripe: falha ao criar cliente")
	}
	return c, nil
}

func (p *StripeProcessor) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(req.CustomerID),
		ClientReferenceID:  stripe.String(req.ClientReferenceID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: req.SubscriptionMetadata,
		},
	}
	if req.TrialPeriodDays > 0 {
		params.SubscriptionData.TrialPeriodDays = stripe.Int64(req.TrialPeriodDays)
	}
	params.Context = ctx

	s, err := p.sc.CheckoutSessions.New(params)
	if err != nil {
		return nil, errors.Wrap(err, "stripe: falha ao criar sessão de checkout")
	}
	return s, nil
}

func (p *StripeProcessor) CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (*stripe.BillingPortalSession, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	s, err := p.sc.BillingPortalSessions.New(params)
	if err != nil {
		return nil, errors.Wrap(err, "stripe: falha ao criar sessão do portal")
	}
	return s, nil
}

func (p *StripeProcessor) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := p.sc.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, errors.Wrapf(err, "stripe: falha ao buscar assinatura %s", subscriptionID)
	}
	return sub, nil
}

// UpdateSubscriptionItemPrice troca o preço do item no lugar; a assinatura continua a mesma.
func (p *StripeProcessor) UpdateSubscriptionItemPrice(ctx context.Context, subscriptionID, itemID, priceID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(itemID),
				Price: stripe.String(priceID),
			},
		},
	}
	params.Context = ctx

	sub, err := p.sc.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return nil, errors.Wrapf(err, "stripe: falha ao atualizar assinatura %s", subscriptionID)
	}
	return sub, nil
}
