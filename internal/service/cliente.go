package service

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/willjrcristo/stripe-billing/internal/processor"
	"github.com/willjrcristo/stripe-billing/internal/repository"
)

// ClienteStripe é o resultado da resolução do cliente de um usuário.
type ClienteStripe struct {
	CustomerID      string
	AssinaturaAtiva bool
}

// ResolveCustomer devolve o cliente da Stripe do usuário, criando-o na primeira vez.
//
// Chamadas simultâneas para o mesmo usuário compartilham a mesma execução, e a leitura
// do usuário acontece dentro dela: quem chega depois já enxerga o id gravado.
// Entre processos diferentes, a gravação condicional e a chave de idempotência
// enviada à Stripe garantem um único cliente.
//
// A execução compartilhada não herda o cancelamento de quem a iniciou; cada
// chamador desiste sozinho quando o próprio ctx termina.
func (s *UsuarioService) ResolveCustomer(ctx context.Context, userID string) (ClienteStripe, error) {
	flightCtx := context.WithoutCancel(ctx)
	ch := s.clientes.DoChan(userID, func() (any, error) {
		return s.resolverCliente(flightCtx, userID)
	})

	select {
	case <-ctx.Done():
		return ClienteStripe{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return ClienteStripe{}, res.Err
		}
		return res.Val.(ClienteStripe), nil
	}
}

func (s *UsuarioService) resolverCliente(ctx context.Context, userID string) (ClienteStripe, error) {
	// 1. Buscar o usuário no nosso banco
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return ClienteStripe{}, err
	}
	if user == nil {
		return ClienteStripe{}, ErrUsuarioNaoEncontrado
	}

	// 2. Já é cliente: só devolvemos o id
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return ClienteStripe{
			CustomerID:      *user.StripeCustomerID,
			AssinaturaAtiva: user.AssinaturaAtiva(),
		}, nil
	}

	// 3. Criar o cliente na Stripe, com o id do usuário na metadata para correlação futura
	c, err := s.stripe.CreateCustomer(ctx, processor.CustomerRequest{
		UserID:         user.ID,
		Email:          user.Email,
		IdempotencyKey: "customer-" + user.ID,
	})
	if err != nil {
		s.logger.Error("Falha ao criar cliente na Stripe", "user_id", userID, "error", err)
		return ClienteStripe{}, err
	}
	if c == nil || c.ID == "" {
		return ClienteStripe{}, respostaInvalida("cliente sem id")
	}

	// 4. Salvar o id; se outra requisição gravou antes, fica valendo o dela
	salvo, err := s.repo.SetStripeCustomerID(ctx, user.ID, c.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNaoEncontrado) {
			return ClienteStripe{}, ErrUsuarioNaoEncontrado
		}
		return ClienteStripe{}, err
	}
	if salvo != c.ID {
		s.logger.Warn("Customer id já gravado por outra requisição",
			"user_id", userID, "stripe_customer_id", salvo, "descartado", c.ID)
	} else {
		s.logger.Info("Cliente criado na Stripe", "user_id", userID, "stripe_customer_id", salvo)
	}

	return ClienteStripe{CustomerID: salvo}, nil
}
