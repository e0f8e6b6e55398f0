package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"

	"github.com/willjrcristo/stripe-billing/internal/auth"
	"github.com/willjrcristo/stripe-billing/internal/domain"
	"github.com/willjrcristo/stripe-billing/internal/service"
)

// --- Mocks ---

// MockBillingService é uma implementação falsa do BillingService.
// Nós controlamos o que cada função vai retornar para simular diferentes cenários.
type MockBillingService struct {
	CreateCheckoutSessionFn      func(ctx context.Context, userID string, plano domain.Plano) (string, error)
	CreateBillingPortalSessionFn func(ctx context.Context, userID string) (string, error)
	UpdateSubscriptionFn         func(ctx context.Context, userID string, plano domain.Plano) (*stripe.Subscription, error)
	SubscriptionStatusFn         func(ctx context.Context, userID string) (*string, error)
	SubscriptionPlanFn           func(ctx context.Context, userID string) (string, error)

	chamadas int
}

func (m *MockBillingService) CreateCheckoutSession(ctx context.Context, userID string, plano domain.Plano) (string, error) {
	m.chamadas++
	return m.CreateCheckoutSessionFn(ctx, userID, plano)
}

func (m *MockBillingService) CreateBillingPortalSession(ctx context.Context, userID string) (string, error) {
	m.chamadas++
	return m.CreateBillingPortalSessionFn(ctx, userID)
}

func (m *MockBillingService) UpdateSubscription(ctx context.Context, userID string, plano domain.Plano) (*stripe.Subscription, error) {
	m.chamadas++
	return m.UpdateSubscriptionFn(ctx, userID, plano)
}

func (m *MockBillingService) SubscriptionStatus(ctx context.Context, userID string) (*string, error) {
	m.chamadas++
	return m.SubscriptionStatusFn(ctx, userID)
}

func (m *MockBillingService) SubscriptionPlan(ctx context.Context, userID string) (string, error) {
	m.chamadas++
	return m.SubscriptionPlanFn(ctx, userID)
}

type MockWebhookService struct {
	HandleStripeWebhookFn func(ctx context.Context, payload []byte, signature string) (bool, error)
}

func (m *MockWebhookService) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) (bool, error) {
	return m.HandleStripeWebhookFn(ctx, payload, signature)
}

// autenticadorFixo aceita só o token "valido" e o associa ao user_1.
type autenticadorFixo struct{}

func (autenticadorFixo) UsuarioDaRequisicao(r *http.Request) (string, error) {
	if r.Header.Get("Authorization") == "Bearer valido" {
		return "user_1", nil
	}
	return "", errors.Mark(errors.New("token ruim"), auth.ErrNaoAutenticado)
}

func novoRouter(s BillingService) http.Handler {
	router := chi.NewRouter()
	router.Mount("/api/billing", NewBillingHandler(s, autenticadorFixo{}).Routes())
	return router
}

func requisicaoAutenticada(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer valido")
	return req
}

func decodificarErro(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error
}

// --- Testes das rotas autenticadas ---

func TestBillingHandler_Autenticacao(t *testing.T) {
	rotas := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/billing/checkout-session"},
		{http.MethodPost, "/api/billing/billing-portal-session"},
		{http.MethodPut, "/api/billing/subscription"},
		{http.MethodGet, "/api/billing/subscription/status"},
		{http.MethodGet, "/api/billing/subscription/plan"},
	}

	for _, rota := range rotas {
		t.Run(rota.method+" "+rota.path, func(t *testing.T) {
			mockService := &MockBillingService{}
			req := httptest.NewRequest(rota.method, rota.path, strings.NewReader(`{"plan":"basic"}`))
			req.Header.Set("Authorization", "Bearer invalido")
			rr := httptest.NewRecorder()

			novoRouter(mockService).ServeHTTP(rr, req)

			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, 0, mockService.chamadas, "o serviço não deve ser chamado sem autenticação")
		})
	}
}

func TestBillingHandler_CreateCheckoutSession(t *testing.T) {
	t.Run("sucesso - deve retornar a URL e status 200", func(t *testing.T) {
		mockService := &MockBillingService{
			CreateCheckoutSessionFn: func(ctx context.Context, userID string, plano domain.Plano) (string, error) {
				assert.Equal(t, "user_1", userID)
				assert.Equal(t, domain.PlanoPremium, plano)
				return "https://checkout.stripe.com/c/pay/cs_1", nil
			},
		}
		rr := httptest.NewRecorder()

		novoRouter(mockService).ServeHTTP(rr, requisicaoAutenticada(http.MethodPost, "/api/billing/checkout-session", `{"plan":"premium"}`))

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp CheckoutResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_1", resp.CheckoutURL)
	})

	t.Run("erro - plano inválido retorna 400 sem chamar o serviço", func(t *testing.T) {
		mockService := &MockBillingService{}
		rr := httptest.NewRecorder()

		novoRouter(mockService).ServeHTTP(rr, requisicaoAutenticada(http.MethodPost, "/api/billing/checkout-session", `{"plan":"gold"}`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, 0, mockService.chamadas)
	})

	t.Run("erro - corpo inválido retorna 400", func(t *testing.T) {
		rr := httptest.NewRecorder()

		novoRouter(&MockBillingService{}).ServeHTTP(rr, requisicaoAutenticada(http.MethodPost, "/api/billing/checkout-session", `{`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("erro - assinatura ativa retorna 409", func(t *testing.T) {
		mockService := &MockBillingService{
			CreateCheckoutSessionFn: func(ctx context.Context, userID string, plano domain.Plano) (string, error) {
				return "", service.ErrAssinaturaJaAtiva
			},
		}
		rr := httptest.NewRecorder()

		novoRouter(mockService).ServeHTTP(rr, requisicaoAutenticada(http.MethodPost, "/api/billing/checkout-session", `{"plan":"basic"}`))

		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, service.ErrAssinaturaJaAtiva.Error(), decodificarErro(t, rr))
	})

	t.Run("erro - falha da stripe retorna 500 sem vazar detalhes", func(t *testing.T) {
		mockService := &MockBillingService{
			CreateCheckoutSessionFn: func(ctx context.Context, userID string, plano domain.Plano) (string, error) {
				return "", errors.New("stripe: api_key sk_live_xxx inválida")
			},
		}
		rr := httptest.NewRecorder()

		novoRouter(mockService).ServeHTTP(rr, requisicaoAutenticada(http.MethodPost, "/api/billing/checkout-session", `{"plan":"basic"}`))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "sk_live")
	})
}

func TestBillingHandler_CreateBillingPortalSession(t *testing.T) {
	mockService := &MockBillingService{
		CreateBillingPortalSessionFn: func(ctx context.Context, userID string) (string, error) {
			return "https://billing.stripe.com/p/session/1", nil
		},
	}
	rr := httptest.NewRecorder()

	novoRouter(mockService).ServeHTTP(rr, requisicaoAutenticada(http.MethodPost, "/api/billing/billing-portal-session", ""))

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp PortalResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "https://billing.stripe.com/p/session/1", resp.BillingPortalURL)
}

func TestBillingHandler_UpdateSubscription(t *testing.T) {
	testCases := []struct {
		nome     string
		erro     error
		esperado int
	}{
		{nome: "sucesso", esperado: http.StatusOK},
		{nome: "mesmo plano", erro: service.ErrPlanoJaAtivo, esperado: http.StatusConflict},
		{nome: "sem assinatura", erro: service.ErrAssinaturaNaoEncontrada, esperado: http.StatusNotFound},
		{nome: "usuário não encontrado", erro: service.ErrUsuarioNaoEncontrado, esperado: http.StatusNotFound},
		{nome: "resposta inválida da stripe", erro: service.ErrRespostaStripeInvalida, esperado: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.nome, func(t *testing.T) {
			mockService := &MockBillingService{
				UpdateSubscriptionFn: func(ctx context.Context, userID string, plano domain.Plano) (*stripe.Subscription, error) {
					if tc.erro != nil {
						return nil, tc.erro
					}
					return &stripe.Subscription{ID: "sub_1"}, nil
				},
			}
			rr := httptest.NewRecorder()

			novoRouter(mockService).ServeHTTP(rr, requisicaoAutenticada(http.MethodPut, "/api/billing/subscription", `{"plan":"platinum"}`))

			assert.Equal(t, tc.esperado, rr.Code)
			if tc.erro == nil {
				assert.Contains(t, rr.Body.String(), `"sub_1"`)
			}
		})
	}
}

func TestBillingHandler_Consultas(t *testing.T) {
	t.Run("status nulo quando nunca assinou", func(t *testing.T) {
		mockService := &MockBillingService{
			SubscriptionStatusFn: func(ctx context.Context, userID string) (*string, error) {
				return nil, nil
			},
		}
		rr := httptest.NewRecorder()

		novoRouter(mockService).ServeHTTP(rr, requisicaoAutenticada(http.MethodGet, "/api/billing/subscription/status", ""))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"status":null}`, rr.Body.String())
	})

	t.Run("plano Free", func(t *testing.T) {
		mockService := &MockBillingService{
			SubscriptionPlanFn: func(ctx context.Context, userID string) (string, error) {
				return domain.PlanoGratuito, nil
			},
		}
		rr := httptest.NewRecorder()

		novoRouter(mockService).ServeHTTP(rr, requisicaoAutenticada(http.MethodGet, "/api/billing/subscription/plan", ""))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"plan":"Free"}`, rr.Body.String())
	})

	t.Run("usuário não encontrado retorna 404", func(t *testing.T) {
		mockService := &MockBillingService{
			SubscriptionPlanFn: func(ctx context.Context, userID string) (string, error) {
				return "", service.ErrUsuarioNaoEncontrado
			},
		}
		rr := httptest.NewRecorder()

		novoRouter(mockService).ServeHTTP(rr, requisicaoAutenticada(http.MethodGet, "/api/billing/subscription/plan", ""))

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

// --- Testes do webhook ---

func TestStripeWebhookHandler(t *testing.T) {
	novoWebhookRouter := func(s WebhookService) http.Handler {
		router := chi.NewRouter()
		router.HandleFunc("/webhooks/stripe", NewStripeWebhookHandler(s).HandleStripeWebhook)
		return router
	}

	t.Run("sucesso - repassa o corpo intacto e a assinatura", func(t *testing.T) {
		corpo := []byte(`{"id":"evt_1", "type":"invoice.paid"}`)
		mockService := &MockWebhookService{
			HandleStripeWebhookFn: func(ctx context.Context, payload []byte, signature string) (bool, error) {
				assert.Equal(t, corpo, payload)
				assert.Equal(t, "t=1,v1=abc", signature)
				return false, nil
			},
		}
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(corpo))
		req.Header.Set("Stripe-Signature", "t=1,v1=abc")
		rr := httptest.NewRecorder()

		novoWebhookRouter(mockService).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"received":true}`, rr.Body.String())
	})

	t.Run("reenvio também recebe 200", func(t *testing.T) {
		mockService := &MockWebhookService{
			HandleStripeWebhookFn: func(ctx context.Context, payload []byte, signature string) (bool, error) {
				return true, nil
			},
		}
		rr := httptest.NewRecorder()

		novoWebhookRouter(mockService).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`)))

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("método diferente de POST retorna 405 com Allow", func(t *testing.T) {
		for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
			rr := httptest.NewRecorder()

			novoWebhookRouter(&MockWebhookService{}).ServeHTTP(rr, httptest.NewRequest(method, "/webhooks/stripe", nil))

			assert.Equal(t, http.StatusMethodNotAllowed, rr.Code, method)
			assert.Equal(t, http.MethodPost, rr.Header().Get("Allow"), method)
		}
	})

	t.Run("corpo acima do limite retorna 413", func(t *testing.T) {
		rr := httptest.NewRecorder()
		grande := bytes.Repeat([]byte("a"), int(maxBodyBytes)+1)

		novoWebhookRouter(&MockWebhookService{}).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(grande)))

		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	})

	erros := []struct {
		nome     string
		erro     error
		esperado int
	}{
		{"assinatura inválida", errors.Mark(errors.New("no signatures found"), service.ErrWebhookStripe), http.StatusBadRequest},
		{"tipo não tratado", errors.Mark(errors.New("tipo de evento não tratado: charge.refunded"), service.ErrEventoNaoTratado), http.StatusBadRequest},
		{"evento malformado", errors.Mark(errors.New("sem data.object"), service.ErrEventoInvalido), http.StatusBadRequest},
		{"usuário não encontrado", errors.Mark(errors.New("evento evt_1"), service.ErrUsuarioNaoEncontrado), http.StatusNotFound},
		{"falha no banco", errors.New("database is locked"), http.StatusInternalServerError},
	}
	for _, tc := range erros {
		t.Run(tc.nome, func(t *testing.T) {
			mockService := &MockWebhookService{
				HandleStripeWebhookFn: func(ctx context.Context, payload []byte, signature string) (bool, error) {
					return false, tc.erro
				},
			}
			rr := httptest.NewRecorder()

			novoWebhookRouter(mockService).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`)))

			assert.Equal(t, tc.esperado, rr.Code)
		})
	}

	t.Run("tipo não tratado informa o nome do tipo", func(t *testing.T) {
		mockService := &MockWebhookService{
			HandleStripeWebhookFn: func(ctx context.Context, payload []byte, signature string) (bool, error) {
				return false, errors.Mark(errors.New("tipo de evento não tratado: charge.refunded"), service.ErrEventoNaoTratado)
			},
		}
		rr := httptest.NewRecorder()

		novoWebhookRouter(mockService).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`)))

		assert.Contains(t, decodificarErro(t, rr), "charge.refunded")
	})
}
