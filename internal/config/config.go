package config

import (
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/samber/lo"

	"github.com/willjrcristo/stripe-billing/internal/domain"
)

// Config reúne tudo o que a aplicação lê do ambiente.
// É montada uma única vez na inicialização e passada por valor para quem precisa.
type Config struct {
	Port         string `env:"PORT" envDefault:"8080"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./sqlite-database.db"`
	// URL pública do frontend, usada nos redirecionamentos do Stripe.
	AppURL   string `env:"APP_URL" envDefault:"http://localhost:3000"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Stripe StripeConfig
	Auth   AuthConfig
}

type StripeConfig struct {
	SecretKey       string `env:"STRIPE_SECRET_KEY,required,notEmpty"`
	WebhookSecret   string `env:"STRIPE_WEBHOOK_SECRET,required,notEmpty"`
	BasicPriceID    string `env:"STRIPE_BASIC_PRICE_ID,required,notEmpty"`
	PremiumPriceID  string `env:"STRIPE_PREMIUM_PRICE_ID,required,notEmpty"`
	PlatinumPriceID string `env:"STRIPE_PLATINUM_PRICE_ID,required,notEmpty"`
	TrialDays       int64  `env:"STRIPE_TRIAL_DAYS" envDefault:"14"`
}

type AuthConfig struct {
	JWTSecret string `env:"AUTH_JWT_SECRET,required,notEmpty"`
}

// Load lê o arquivo .env (se existir) e depois as variáveis de ambiente.
func Load() (Config, error) {
	// O .env é opcional; em produção tudo vem do ambiente.
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, errors.Wrap(err, "falha ao ler configuração do ambiente")
	}
	return cfg, cfg.Validate()
}

// LoadFromMap é usada nos testes para não depender do ambiente do processo.
func LoadFromMap(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, errors.Wrap(err, "falha ao ler configuração")
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Stripe.TrialDays < 0 {
		return errors.Newf("STRIPE_TRIAL_DAYS não pode ser negativo: %d", c.Stripe.TrialDays)
	}
	ids := []string{c.Stripe.BasicPriceID, c.Stripe.PremiumPriceID, c.Stripe.PlatinumPriceID}
	if len(lo.Uniq(ids)) != len(ids) {
		return errors.New("cada plano precisa de um price id diferente")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel converte LOG_LEVEL ("debug", "info", ...) para slog.Level.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return slog.LevelInfo, errors.Wrapf(err, "LOG_LEVEL inválido %q", c.LogLevel)
	}
	return level, nil
}

// Precos devolve a tabela plano -> price id do Stripe.
func (c Config) Precos() PlanPrices {
	return NewPlanPrices(map[domain.Plano]string{
		domain.PlanoBasic:    c.Stripe.BasicPriceID,
		domain.PlanoPremium:  c.Stripe.PremiumPriceID,
		domain.PlanoPlatinum: c.Stripe.PlatinumPriceID,
	})
}

// PlanPrices é a tabela imutável entre planos e preços do Stripe,
// nos dois sentidos.
type PlanPrices struct {
	byPlan  map[domain.Plano]string
	byPrice map[string]domain.Plano
}

func NewPlanPrices(m map[domain.Plano]string) PlanPrices {
	byPlan := make(map[domain.Plano]string, len(m))
	for k, v := range m {
		byPlan[k] = v
	}
	return PlanPrices{
		byPlan:  byPlan,
		byPrice: lo.Invert(byPlan),
	}
}

// PriceID devolve o price id configurado para o plano.
func (p PlanPrices) PriceID(plan domain.Plano) (string, bool) {
	id, ok := p.byPlan[plan]
	return id, ok && id != ""
}

// Plano faz a busca inversa: qual plano usa este price id.
func (p PlanPrices) Plano(priceID string) (domain.Plano, bool) {
	plan, ok := p.byPrice[priceID]
	return plan, ok
}
