package service

import "github.com/cockroachdb/errors"

// Erros de negócio. O handler HTTP decide o status a partir deles com errors.Is,
// então detalhes extras são anexados com errors.Mark/Wrap sem perder a identidade.
var (
	// NotFound
	ErrUsuarioNaoEncontrado    = errors.New("usuário não encontrado")
	ErrAssinaturaNaoEncontrada = errors.New("usuário não possui assinatura")

	// Conflict
	ErrAssinaturaJaAtiva = errors.New("usuário já possui uma assinatura ativa")
	ErrPlanoJaAtivo      = errors.New("a assinatura já está neste plano")

	// Requisição inválida
	ErrPlanoInvalido    = errors.New("plano inválido")
	ErrEventoInvalido   = errors.New("evento da stripe malformado")
	ErrEventoNaoTratado = errors.New("tipo de evento não tratado")

	// Falha de autenticação do webhook
	ErrWebhookStripe = errors.New("falha na verificação da assinatura do webhook")

	// Internal: a Stripe respondeu algo que não conseguimos usar.
	ErrRespostaStripeInvalida = errors.New("resposta inesperada da stripe")
)

// respostaInvalida anexa um detalhe ao ErrRespostaStripeInvalida.
func respostaInvalida(detalhe string) error {
	return errors.Mark(errors.Newf("%s: %s", ErrRespostaStripeInvalida.Error(), detalhe), ErrRespostaStripeInvalida)
}
