package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willjrcristo/stripe-billing/internal/domain"
)

func novoRepoEmMemoria(t *testing.T) UsuarioRepository {
	t.Helper()
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLiteRepository(db)
}

func eventoDeTeste(id string) domain.EventoStripe {
	return domain.EventoStripe{
		ID:      id,
		Type:    "customer.subscription.updated",
		Object:  "event",
		Created: time.Unix(1700000000, 0).UTC(),
		Data:    json.RawMessage(`{"object":{"id":"sub_1"}}`),
	}
}

func strPtr(s string) *string { return &s }

func TestSQLiteRepository_Usuarios(t *testing.T) {
	ctx := context.Background()
	repo := novoRepoEmMemoria(t)

	require.NoError(t, repo.Create(ctx, domain.Usuario{ID: "user_1", Email: "a@b.com"}))

	t.Run("GetByID devolve nil para usuário inexistente", func(t *testing.T) {
		u, err := repo.GetByID(ctx, "nao_existe")
		assert.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("usuário novo não tem campos de assinatura", func(t *testing.T) {
		u, err := repo.GetByID(ctx, "user_1")
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, "a@b.com", u.Email)
		assert.Nil(t, u.StripeCustomerID)
		assert.Nil(t, u.StripeSubscriptionPlan)
		assert.Nil(t, u.StripeSubscriptionStatus)
	})

	t.Run("SetStripeCustomerID grava apenas uma vez", func(t *testing.T) {
		salvo, err := repo.SetStripeCustomerID(ctx, "user_1", "cus_A")
		require.NoError(t, err)
		assert.Equal(t, "cus_A", salvo)

		salvo, err = repo.SetStripeCustomerID(ctx, "user_1", "cus_B")
		require.NoError(t, err)
		assert.Equal(t, "cus_A", salvo, "o primeiro customer id deve prevalecer")

		u, err := repo.GetByStripeCustomerID(ctx, "cus_A")
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, "user_1", u.ID)
	})

	t.Run("SetStripeCustomerID em usuário inexistente", func(t *testing.T) {
		_, err := repo.SetStripeCustomerID(ctx, "fantasma", "cus_X")
		assert.ErrorIs(t, err, ErrNaoEncontrado)
	})

	t.Run("UpdateSubscriptionPlan", func(t *testing.T) {
		require.NoError(t, repo.UpdateSubscriptionPlan(ctx, "user_1", domain.PlanoPremium))
		u, err := repo.GetByID(ctx, "user_1")
		require.NoError(t, err)
		require.NotNil(t, u.StripeSubscriptionPlan)
		assert.Equal(t, domain.PlanoPremium, *u.StripeSubscriptionPlan)

		assert.ErrorIs(t, repo.UpdateSubscriptionPlan(ctx, "fantasma", domain.PlanoBasic), ErrNaoEncontrado)
	})
}

func TestSQLiteRepository_ApplyEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("aplica a atualização e registra o evento", func(t *testing.T) {
		repo := novoRepoEmMemoria(t)
		require.NoError(t, repo.Create(ctx, domain.Usuario{ID: "user_1"}))

		plano := domain.PlanoBasic
		aplicado, err := repo.ApplyEvent(ctx, eventoDeTeste("evt_1"), &domain.AtualizacaoAssinatura{
			UserID:         "user_1",
			SubscriptionID: strPtr("sub_1"),
			Plan:           &plano,
			Status:         domain.StatusAtiva,
		})
		require.NoError(t, err)
		assert.True(t, aplicado)

		existe, err := repo.EventExists(ctx, "evt_1")
		require.NoError(t, err)
		assert.True(t, existe)

		u, err := repo.GetByID(ctx, "user_1")
		require.NoError(t, err)
		assert.Equal(t, "sub_1", *u.StripeSubscriptionID)
		assert.Equal(t, domain.PlanoBasic, *u.StripeSubscriptionPlan)
		assert.Equal(t, domain.StatusAtiva, *u.StripeSubscriptionStatus)
	})

	t.Run("reenvio do mesmo evento não reaplica o efeito", func(t *testing.T) {
		repo := novoRepoEmMemoria(t)
		require.NoError(t, repo.Create(ctx, domain.Usuario{ID: "user_1"}))

		upd := &domain.AtualizacaoAssinatura{UserID: "user_1", SubscriptionID: strPtr("sub_1"), Status: "past_due"}
		aplicado, err := repo.ApplyEvent(ctx, eventoDeTeste("evt_1"), upd)
		require.NoError(t, err)
		require.True(t, aplicado)

		outro := &domain.AtualizacaoAssinatura{UserID: "user_1", SubscriptionID: strPtr("sub_2"), Status: domain.StatusAtiva}
		aplicado, err = repo.ApplyEvent(ctx, eventoDeTeste("evt_1"), outro)
		require.NoError(t, err)
		assert.False(t, aplicado)

		u, err := repo.GetByID(ctx, "user_1")
		require.NoError(t, err)
		assert.Equal(t, "sub_1", *u.StripeSubscriptionID)
		assert.Equal(t, "past_due", *u.StripeSubscriptionStatus)
	})

	t.Run("localiza o usuário pelo customer id quando não há metadata", func(t *testing.T) {
		repo := novoRepoEmMemoria(t)
		require.NoError(t, repo.Create(ctx, domain.Usuario{ID: "user_1"}))
		_, err := repo.SetStripeCustomerID(ctx, "user_1", "cus_1")
		require.NoError(t, err)

		aplicado, err := repo.ApplyEvent(ctx, eventoDeTeste("evt_9"), &domain.AtualizacaoAssinatura{
			CustomerID: "cus_1",
			Status:     domain.StatusCancelada,
		})
		require.NoError(t, err)
		assert.True(t, aplicado)

		u, err := repo.GetByID(ctx, "user_1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelada, *u.StripeSubscriptionStatus)
		assert.Nil(t, u.StripeSubscriptionID)
		assert.Nil(t, u.StripeSubscriptionPlan)
	})

	t.Run("usuário não encontrado desfaz a reserva do evento", func(t *testing.T) {
		repo := novoRepoEmMemoria(t)

		aplicado, err := repo.ApplyEvent(ctx, eventoDeTeste("evt_2"), &domain.AtualizacaoAssinatura{UserID: "fantasma"})
		assert.ErrorIs(t, err, ErrNaoEncontrado)
		assert.False(t, aplicado)

		existe, err := repo.EventExists(ctx, "evt_2")
		require.NoError(t, err)
		assert.False(t, existe, "o evento deve poder ser reprocessado no próximo envio")
	})

	t.Run("evento sem atualização só é registrado", func(t *testing.T) {
		repo := novoRepoEmMemoria(t)

		aplicado, err := repo.ApplyEvent(ctx, eventoDeTeste("evt_3"), nil)
		require.NoError(t, err)
		assert.True(t, aplicado)
	})
}

func TestSQLiteRepository_ApplyEvent_FalhaNoUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSQLiteRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO stripe_events").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id FROM usuarios WHERE id").
		WithArgs("user_1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("user_1"))
	mock.ExpectExec("UPDATE usuarios").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	aplicado, err := repo.ApplyEvent(context.Background(), eventoDeTeste("evt_1"), &domain.AtualizacaoAssinatura{
		UserID: "user_1",
		Status: domain.StatusAtiva,
	})
	assert.Error(t, err)
	assert.False(t, aplicado)
	assert.Contains(t, err.Error(), "falha ao atualizar assinatura")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteRepository_GetByID_ErroDoBanco(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSQLiteRepository(db)

	mock.ExpectQuery("FROM usuarios WHERE id").
		WithArgs("user_1").
		WillReturnError(errors.New("database is locked"))

	u, err := repo.GetByID(context.Background(), "user_1")
	assert.Error(t, err)
	assert.Nil(t, u)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteRepository_ApplyEvent_CancelamentoDeAssinaturaAntiga(t *testing.T) {
	ctx := context.Background()
	repo := novoRepoEmMemoria(t)
	require.NoError(t, repo.Create(ctx, domain.Usuario{ID: "user_1"}))

	plano := domain.PlanoPremium
	_, err := repo.ApplyEvent(ctx, eventoDeTeste("evt_novo"), &domain.AtualizacaoAssinatura{
		UserID:         "user_1",
		SubscriptionID: strPtr("sub_nova"),
		Plan:           &plano,
		Status:         domain.StatusAtiva,
	})
	require.NoError(t, err)

	aplicado, err := repo.ApplyEvent(ctx, eventoDeTeste("evt_velho"), &domain.AtualizacaoAssinatura{
		UserID:              "user_1",
		Status:              domain.StatusCancelada,
		SomenteSeAssinatura: "sub_antiga",
	})
	require.NoError(t, err)
	assert.True(t, aplicado, "o evento é registrado mesmo sem efeito")

	u, err := repo.GetByID(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, "sub_nova", *u.StripeSubscriptionID)
	assert.Equal(t, domain.StatusAtiva, *u.StripeSubscriptionStatus)
}

func TestSQLiteRepository_ApplyEvent_AtualizacaoDeAssinaturaAntiga(t *testing.T) {
	ctx := context.Background()
	repo := novoRepoEmMemoria(t)
	require.NoError(t, repo.Create(ctx, domain.Usuario{ID: "user_1"}))

	premium := domain.PlanoPremium
	_, err := repo.ApplyEvent(ctx, eventoDeTeste("evt_novo"), &domain.AtualizacaoAssinatura{
		UserID:              "user_1",
		SubscriptionID:      strPtr("sub_nova"),
		Plan:                &premium,
		Status:              domain.StatusAtiva,
		SomenteSeAssinatura: "sub_nova",
	})
	require.NoError(t, err)

	basic := domain.PlanoBasic
	aplicado, err := repo.ApplyEvent(ctx, eventoDeTeste("evt_velho"), &domain.AtualizacaoAssinatura{
		UserID:              "user_1",
		SubscriptionID:      strPtr("sub_antiga"),
		Plan:                &basic,
		Status:              domain.StatusCancelada,
		SomenteSeAssinatura: "sub_antiga",
	})
	require.NoError(t, err)
	assert.True(t, aplicado, "o evento é registrado mesmo sem efeito")

	existe, err := repo.EventExists(ctx, "evt_velho")
	require.NoError(t, err)
	assert.True(t, existe)

	u, err := repo.GetByID(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, "sub_nova", *u.StripeSubscriptionID)
	assert.Equal(t, domain.PlanoPremium, *u.StripeSubscriptionPlan)
	assert.Equal(t, domain.StatusAtiva, *u.StripeSubscriptionStatus)
}
