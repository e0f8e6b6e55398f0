package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v78"

	"github.com/willjrcristo/stripe-billing/internal/auth"
	"github.com/willjrcristo/stripe-billing/internal/domain"
	"github.com/willjrcristo/stripe-billing/internal/service"
)

// Para facilitar os testes, o handler depende destas interfaces e não do serviço concreto.
type BillingService interface {
	CreateCheckoutSession(ctx context.Context, userID string, plano domain.Plano) (string, error)
	CreateBillingPortalSession(ctx context.Context, userID string) (string, error)
	UpdateSubscription(ctx context.Context, userID string, plano domain.Plano) (*stripe.Subscription, error)
	SubscriptionStatus(ctx context.Context, userID string) (*string, error)
	SubscriptionPlan(ctx context.Context, userID string) (string, error)
}

type WebhookService interface {
	HandleStripeWebhook(ctx context.Context, payload []byte, signature string) (bool, error)
}

// Autenticador identifica o usuário de uma requisição.
type Autenticador interface {
	UsuarioDaRequisicao(r *http.Request) (string, error)
}

// --- DTOs ---

type PlanoRequest struct {
	Plan string `json:"plan" example:"premium"`
}

type CheckoutResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
}

type PortalResponse struct {
	BillingPortalURL string `json:"billingPortalUrl"`
}

type StatusResponse struct {
	Status *string `json:"status"`
}

type PlanoResponse struct {
	Plan string `json:"plan" example:"Free"`
}

type WebhookResponse struct {
	Received bool `json:"received"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// BillingHandler lida com as rotas autenticadas de /api/billing.
type BillingHandler struct {
	service BillingService
	auth    Autenticador
}

// NewBillingHandler cria uma nova instância do BillingHandler.
func NewBillingHandler(s BillingService, a Autenticador) *BillingHandler {
	return &BillingHandler{
		service: s,
		auth:    a,
	}
}

// Routes define e retorna todas as rotas que este handler gerencia.
// Todas passam pelo middleware de autenticação.
func (h *BillingHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.autenticar)

	r.Post("/checkout-session", h.CreateCheckoutSession)            // POST /api/billing/checkout-session
	r.Post("/billing-portal-session", h.CreateBillingPortalSession) // POST /api/billing/billing-portal-session
	r.Put("/subscription", h.UpdateSubscription)                    // PUT /api/billing/subscription
	r.Get("/subscription/status", h.SubscriptionStatus)             // GET /api/billing/subscription/status
	r.Get("/subscription/plan", h.SubscriptionPlan)                 // GET /api/billing/subscription/plan

	return r
}

// autenticar recusa com 401 antes de qualquer acesso ao banco.
func (h *BillingHandler) autenticar(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := h.auth.UsuarioDaRequisicao(r)
		if err != nil {
			slog.Warn("Requisição não autenticada", "path", r.URL.Path, "error", err)
			respondWithError(w, http.StatusUnauthorized, "não autenticado")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ComUsuario(r.Context(), userID)))
	})
}

// @Summary      Cria uma sessão de checkout na Stripe
// @Description  Gera uma URL de pagamento para o usuário autenticado assinar um plano
// @Tags         billing
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        plano  body      PlanoRequest  true  "Plano desejado"
// @Success      200    {object}  CheckoutResponse
// @Failure      400    {object}  ErrorResponse
// @Failure      401    {object}  ErrorResponse
// @Failure      404    {object}  ErrorResponse
// @Failure      409    {object}  ErrorResponse
// @Failure      500    {object}  ErrorResponse
// @Router       /api/billing/checkout-session [post]
func (h *BillingHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UsuarioDoContexto(r.Context())

	plano, ok := lerPlano(w, r)
	if !ok {
		return
	}

	checkoutURL, err := h.service.CreateCheckoutSession(r.Context(), userID, plano)
	if err != nil {
		respondWithServiceError(w, err, "Erro ao criar sessão de checkout")
		return
	}

	respondWithJSON(w, http.StatusOK, CheckoutResponse{CheckoutURL: checkoutURL})
}

// @Summary      Cria uma sessão do portal de cobrança
// @Description  Gera a URL do portal da Stripe onde o usuário gerencia a assinatura
// @Tags         billing
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  PortalResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /api/billing/billing-portal-session [post]
func (h *BillingHandler) CreateBillingPortalSession(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UsuarioDoContexto(r.Context())

	portalURL, err := h.service.CreateBillingPortalSession(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, err, "Erro ao criar sessão do portal")
		return
	}

	respondWithJSON(w, http.StatusOK, PortalResponse{BillingPortalURL: portalURL})
}

// @Summary      Troca o plano da assinatura
// @Description  Substitui o preço da assinatura atual pelo do novo plano
// @Tags         billing
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        plano  body      PlanoRequest  true  "Novo plano"
// @Success      200    {object}  map[string]interface{}
// @Failure      400    {object}  ErrorResponse
// @Failure      401    {object}  ErrorResponse
// @Failure      404    {object}  ErrorResponse
// @Failure      409    {object}  ErrorResponse
// @Failure      500    {object}  ErrorResponse
// @Router       /api/billing/subscription [put]
func (h *BillingHandler) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UsuarioDoContexto(r.Context())

	plano, ok := lerPlano(w, r)
	if !ok {
		return
	}

	sub, err := h.service.UpdateSubscription(r.Context(), userID, plano)
	if err != nil {
		respondWithServiceError(w, err, "Erro ao atualizar assinatura")
		return
	}

	respondWithJSON(w, http.StatusOK, sub)
}

// @Summary      Status da assinatura
// @Description  Retorna o status salvo da assinatura, ou null se o usuário nunca assinou
// @Tags         billing
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  StatusResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /api/billing/subscription/status [get]
func (h *BillingHandler) SubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UsuarioDoContexto(r.Context())

	status, err := h.service.SubscriptionStatus(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, err, "Erro ao buscar status da assinatura")
		return
	}

	respondWithJSON(w, http.StatusOK, StatusResponse{Status: status})
}

// @Summary      Plano da assinatura
// @Description  Retorna o plano salvo, ou "Free" quando não há nenhum
// @Tags         billing
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  PlanoResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /api/billing/subscription/plan [get]
func (h *BillingHandler) SubscriptionPlan(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UsuarioDoContexto(r.Context())

	plano, err := h.service.SubscriptionPlan(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, err, "Erro ao buscar plano da assinatura")
		return
	}

	respondWithJSON(w, http.StatusOK, PlanoResponse{Plan: plano})
}

// --- WEBHOOK ---
// (Struct separada: o webhook é autenticado pela assinatura da Stripe, não por token)

// Limite de 64KB para o corpo do webhook.
const maxBodyBytes = int64(65536)

type StripeWebhookHandler struct {
	service WebhookService
}

func NewStripeWebhookHandler(s WebhookService) *StripeWebhookHandler {
	return &StripeWebhookHandler{
		service: s,
	}
}

// @Summary      Recebe eventos da Stripe
// @Description  Verifica a assinatura do evento e reconcilia o estado da assinatura do usuário
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        Stripe-Signature  header    string  true  "Assinatura do evento"
// @Success      200               {object}  WebhookResponse
// @Failure      400               {object}  ErrorResponse
// @Failure      404               {object}  ErrorResponse
// @Failure      405               {object}  ErrorResponse
// @Failure      500               {object}  ErrorResponse
// @Router       /webhooks/stripe [post]
func (h *StripeWebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		respondWithError(w, http.StatusMethodNotAllowed, "método não permitido")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	// O corpo precisa chegar intacto: a assinatura é calculada sobre os bytes originais.
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, "corpo da requisição muito grande")
			return
		}
		slog.Error("Erro ao ler o corpo do webhook", "error", err)
		respondWithError(w, http.StatusServiceUnavailable, "Erro ao ler corpo da requisição")
		return
	}

	signature := r.Header.Get("Stripe-Signature")

	if _, err := h.service.HandleStripeWebhook(r.Context(), payload, signature); err != nil {
		respondWithServiceError(w, err, "Erro interno ao processar webhook")
		return
	}

	// Responda com 200 OK para a Stripe saber que recebemos o evento, inclusive em reenvios.
	respondWithJSON(w, http.StatusOK, WebhookResponse{Received: true})
}

// --- FUNÇÕES AUXILIARES ---

func lerPlano(w http.ResponseWriter, r *http.Request) (domain.Plano, bool) {
	var req PlanoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Corpo da requisição inválido")
		return "", false
	}
	plano := domain.Plano(req.Plan)
	if !plano.Valido() {
		respondWithError(w, http.StatusBadRequest, service.ErrPlanoInvalido.Error())
		return "", false
	}
	return plano, true
}

// statusDoErro traduz os erros de negócio do serviço em status HTTP.
func statusDoErro(err error) int {
	switch {
	case errors.Is(err, auth.ErrNaoAutenticado):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrWebhookStripe),
		errors.Is(err, service.ErrEventoInvalido),
		errors.Is(err, service.ErrEventoNaoTratado),
		errors.Is(err, service.ErrPlanoInvalido):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUsuarioNaoEncontrado),
		errors.Is(err, service.ErrAssinaturaNaoEncontrada):
		return http.StatusNotFound
	case errors.Is(err, service.ErrAssinaturaJaAtiva),
		errors.Is(err, service.ErrPlanoJaAtivo):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func respondWithServiceError(w http.ResponseWriter, err error, mensagemInterna string) {
	code := statusDoErro(err)
	if code == http.StatusInternalServerError {
		slog.Error(mensagemInterna, "error", err)
		respondWithError(w, code, mensagemInterna)
		return
	}
	respondWithError(w, code, err.Error())
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	slog.Error("API Error", "code", code, "message", message)
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
