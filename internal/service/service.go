package service

import (
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/willjrcristo/stripe-billing/internal/config"
	"github.com/willjrcristo/stripe-billing/internal/processor"
	"github.com/willjrcristo/stripe-billing/internal/repository"
)

// UsuarioService encapsula a lógica de negócio de clientes e assinaturas na Stripe.
type UsuarioService struct {
	repo   repository.UsuarioRepository
	stripe processor.Processor

	precos        config.PlanPrices
	webhookSecret string
	appURL        string
	trialDays     int64

	// Evita criar dois clientes na Stripe para o mesmo usuário
	// quando duas requisições chegam ao mesmo tempo.
	clientes singleflight.Group

	logger *slog.Logger
}

// NewUsuarioService cria uma nova instância do UsuarioService.
func NewUsuarioService(repo repository.UsuarioRepository, stripe processor.Processor, cfg config.Config) *UsuarioService {
	return &UsuarioService{
		repo:          repo,
		stripe:        stripe,
		precos:        cfg.Precos(),
		webhookSecret: cfg.Stripe.WebhookSecret,
		appURL:        strings.TrimRight(cfg.AppURL, "/"),
		trialDays:     cfg.Stripe.TrialDays,
		logger:        slog.Default().With("component", "usuario_service"),
	}
}
