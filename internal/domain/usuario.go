package domain

import "time"

// Plano é um dos níveis de assinatura vendidos. O conjunto é fechado.
type Plano string

const (
	PlanoBasic    Plano = "basic"
	PlanoPremium  Plano = "premium"
	PlanoPlatinum Plano = "platinum"
)

// PlanoGratuito é o que devolvemos quando o usuário não tem plano salvo.
const PlanoGratuito = "Free"

// Planos lista todos os planos válidos, na ordem de preço.
var Planos = []Plano{PlanoBasic, PlanoPremium, PlanoPlatinum}

// Valido informa se o plano pertence ao conjunto conhecido.
func (p Plano) Valido() bool {
	switch p {
	case PlanoBasic, PlanoPremium, PlanoPlatinum:
		return true
	}
	return false
}

// Status de assinatura que consideramos "ativos".
// Um usuário em período de teste também não pode abrir um segundo checkout.
const (
	StatusAtiva     = "active"
	StatusTrial     = "trialing"
	StatusCancelada = "canceled"
)

type Usuario struct {
	// ID vem do provedor de identidade; não é gerado por nós.
	ID    string `json:"id"`
	Email string `json:"email"`

	// --- CAMPOS DA ASSINATURA ---

	// ID do cliente no Stripe (ex: "cus_..."). Gravado uma única vez.
	StripeCustomerID *string `json:"-"`

	// ID da assinatura no Stripe (ex: "sub_...").
	StripeSubscriptionID *string `json:"-"`

	// Plano atual; nil significa plano gratuito.
	StripeSubscriptionPlan *Plano `json:"stripe_subscription_plan"`

	// Status da assinatura (ex: "active", "canceled", "past_due").
	StripeSubscriptionStatus *string `json:"stripe_subscription_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AssinaturaAtiva informa se o status salvo bloqueia uma nova assinatura.
func (u *Usuario) AssinaturaAtiva() bool {
	if u.StripeSubscriptionStatus == nil {
		return false
	}
	switch *u.StripeSubscriptionStatus {
	case StatusAtiva, StatusTrial:
		return true
	}
	return false
}

// AtualizacaoAssinatura descreve o que um evento do Stripe muda em um usuário.
// O usuário é localizado pelo UserID (metadata) e, se vazio, pelo CustomerID.
// SubscriptionID e Plan são sempre gravados juntos; nil limpa o campo.
type AtualizacaoAssinatura struct {
	UserID         string
	CustomerID     string
	SubscriptionID *string
	Plan           *Plano
	Status         string

	// SomenteSeAssinatura, quando preenchido, restringe a escrita ao usuário cuja
	// assinatura salva é esta (ou nenhuma). Um evento atrasado de uma
	// assinatura antiga não apaga nem substitui a atual.
	SomenteSeAssinatura string
}
