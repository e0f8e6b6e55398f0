package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/willjrcristo/stripe-billing/docs" // Importa a pasta docs gerada

	"github.com/willjrcristo/stripe-billing/internal/auth"
	"github.com/willjrcristo/stripe-billing/internal/config"
	"github.com/willjrcristo/stripe-billing/internal/domain"
	httphandler "github.com/willjrcristo/stripe-billing/internal/handler/http"
	"github.com/willjrcristo/stripe-billing/internal/processor"
	"github.com/willjrcristo/stripe-billing/internal/repository"
	"github.com/willjrcristo/stripe-billing/internal/service"
)

// @title           API de Assinaturas
// @version         1.0
// @description     Checkout, portal de cobrança e reconciliação de assinaturas da Stripe.
//
// @contact.name   Will Cristo
// @contact.url    https://linkedin.com/in/willjrcristo
// @contact.email  willjrcristo@gmail.com
//
// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html
//
// @host      localhost:8080
// @BasePath  /
//
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	issueToken := flag.String("issue-token", "", "emite um token de acesso para o usuário informado (\"new\" cria um usuário) e sai")
	email := flag.String("email", "", "email do usuário criado por -issue-token")
	flag.Parse()

	// --- 1. CONFIGURAÇÃO ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Configuração inválida", "error", err)
		os.Exit(1)
	}

	// --- 2. CONFIGURAÇÃO DO LOGGER ---
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// --- 3. CONEXÃO COM O BANCO DE DADOS ---
	db, err := repository.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		slog.Error("Erro ao inicializar o banco de dados", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("💾 Banco de dados pronto", "path", cfg.DatabasePath)

	// --- 4. INJEÇÃO DE DEPENDÊNCIAS (WIRING) ---
	// DB -> Repository -> Service -> Handler
	usuarioRepo := repository.NewSQLiteRepository(db)
	autenticador := auth.NewAutenticador(cfg.Auth.JWTSecret)

	if *issueToken != "" {
		if err := emitirTokenDeDesenvolvimento(usuarioRepo, autenticador, *issueToken, *email); err != nil {
			slog.Error("Falha ao emitir token", "error", err)
			os.Exit(1)
		}
		return
	}

	stripeProcessor := processor.NewStripeProcessor(cfg.Stripe.SecretKey)
	usuarioService := service.NewUsuarioService(usuarioRepo, stripeProcessor, cfg)

	billingHandler := httphandler.NewBillingHandler(usuarioService, autenticador)
	webhookHandler := httphandler.NewStripeWebhookHandler(usuarioService)

	// --- 5. CONFIGURAÇÃO DO ROTEADOR E ROTAS ---
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(prometheusMiddleware)

	// Rota de Health Check
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("API de Assinaturas está no ar! 🚀"))
	})

	r.Handle("/metrics", metricsHandler())

	// A URL será http://localhost:8080/swagger/index.html
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	// Todos os métodos chegam no handler, que responde 405 para o que não for POST.
	r.HandleFunc("/webhooks/stripe", webhookHandler.HandleStripeWebhook)
	r.Mount("/api/billing", billingHandler.Routes())
	slog.Info("🛰️  Rotas registradas", "webhook", "/webhooks/stripe", "billing", "/api/billing")

	// --- 6. INICIALIZAÇÃO DO SERVIDOR HTTP ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("✅ Servidor pronto para receber requisições", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Erro ao iniciar o servidor", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Encerrando o servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Erro ao encerrar o servidor", "error", err)
	}
}

// emitirTokenDeDesenvolvimento garante que o usuário existe e imprime um token de 24h.
func emitirTokenDeDesenvolvimento(repo repository.UsuarioRepository, a *auth.Autenticador, userID, email string) error {
	ctx := context.Background()
	if userID == "new" {
		userID = uuid.NewString()
	}

	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		if email == "" {
			email = userID + "@localhost"
		}
		if err := repo.Create(ctx, domain.Usuario{ID: userID, Email: email}); err != nil {
			return err
		}
		slog.Info("Usuário de desenvolvimento criado", "user_id", userID, "email", email)
	}

	token, err := a.EmitirToken(userID, 24*time.Hour)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
