package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/willjrcristo/stripe-billing/internal/domain"
)

// ErrNaoEncontrado é devolvido quando uma escrita não acha o usuário alvo.
// Leituras simples seguem devolvendo (nil, nil), como sempre fizemos.
var ErrNaoEncontrado = errors.New("registro não encontrado")

// UsuarioRepository define a interface para as operações de persistência de usuários
// e dos eventos do Stripe. Usar uma interface nos permite 'mockar' o repositório em testes.
type UsuarioRepository interface {
	Create(ctx context.Context, usuario domain.Usuario) error
	GetByID(ctx context.Context, id string) (*domain.Usuario, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.Usuario, error)

	// SetStripeCustomerID grava o customer id apenas se ainda não houver um.
	// Devolve o id que ficou salvo, que pode ser o de outra requisição concorrente.
	SetStripeCustomerID(ctx context.Context, id, customerID string) (string, error)
	UpdateSubscriptionPlan(ctx context.Context, id string, plano domain.Plano) error

	EventExists(ctx context.Context, eventID string) (bool, error)
	// ApplyEvent reserva o id do evento e aplica a atualização na mesma transação.
	// Devolve false (sem erro) quando o evento já tinha sido processado.
	ApplyEvent(ctx context.Context, evento domain.EventoStripe, upd *domain.AtualizacaoAssinatura) (bool, error)
}

// sqliteRepository é a implementação do UsuarioRepository para SQLite.
type sqliteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository cria uma nova instância do repositório com a conexão informada.
func NewSQLiteRepository(db *sql.DB) UsuarioRepository {
	return &sqliteRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

const colunasUsuario = `id, email, stripe_customer_id, stripe_subscription_id,
	stripe_subscription_plan, stripe_subscription_status, created_at, updated_at`

// --- USUÁRIOS ---

func (r *sqliteRepository) Create(ctx context.Context, usuario domain.Usuario) error {
	agora := r.now()
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO usuarios(id, email, created_at, updated_at) VALUES(?, ?, ?, ?)",
		usuario.ID, usuario.Email, agora, agora)
	if err != nil {
		return errors.Wrap(err, "falha ao inserir usuário")
	}
	return nil
}

func (r *sqliteRepository) GetByID(ctx context.Context, id string) (*domain.Usuario, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+colunasUsuario+" FROM usuarios WHERE id = ?", id)
	return scanUsuario(row)
}

func (r *sqliteRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.Usuario, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+colunasUsuario+" FROM usuarios WHERE stripe_customer_id = ?", customerID)
	return scanUsuario(row)
}

func (r *sqliteRepository) SetStripeCustomerID(ctx context.Context, id, customerID string) (string, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE usuarios SET stripe_customer_id = ?, updated_at = ? WHERE id = ? AND stripe_customer_id IS NULL",
		customerID, r.now(), id)
	if err != nil {
		return "", errors.Wrap(err, "falha ao gravar customer id")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", errors.Wrap(err, "falha ao gravar customer id")
	}
	if n == 1 {
		return customerID, nil
	}

	// Nada foi alterado: ou o usuário não existe, ou alguém gravou antes.
	var salvo sql.NullString
	err = r.db.QueryRowContext(ctx, "SELECT stripe_customer_id FROM usuarios WHERE id = ?", id).Scan(&salvo)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNaoEncontrado
	}
	if err != nil {
		return "", errors.Wrap(err, "falha ao ler customer id")
	}
	return salvo.String, nil
}

func (r *sqliteRepository) UpdateSubscriptionPlan(ctx context.Context, id string, plano domain.Plano) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE usuarios SET stripe_subscription_plan = ?, updated_at = ? WHERE id = ?",
		string(plano), r.now(), id)
	if err != nil {
		return errors.Wrap(err, "falha ao atualizar plano")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNaoEncontrado
	}
	return nil
}

// --- EVENTOS DO STRIPE ---

func (r *sqliteRepository) EventExists(ctx context.Context, eventID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM stripe_events WHERE id = ?", eventID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "falha ao consultar evento")
	}
	return true, nil
}

func (r *sqliteRepository) ApplyEvent(ctx context.Context, evento domain.EventoStripe, upd *domain.AtualizacaoAssinatura) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "falha ao iniciar transação")
	}
	// Depois do Commit o Rollback vira no-op.
	defer tx.Rollback()

	if evento.ReceivedAt.IsZero() {
		evento.ReceivedAt = r.now()
	}

	// A reserva vem antes de qualquer efeito: um reenvio do mesmo evento
	// não insere nada aqui e sai sem tocar no usuário.
	res, err := tx.ExecContext(ctx, `
		INSERT INTO stripe_events (id, type, object, api_version, account, created, data,
			livemode, pending_webhooks, request_id, idempotency_key, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		evento.ID, evento.Type, evento.Object, nullString(evento.APIVersion), nullString(evento.Account),
		evento.Created, string(evento.Data), evento.Livemode, evento.PendingWebhooks,
		nullString(evento.RequestID), nullString(evento.IdempotencyKey), evento.ReceivedAt)
	if err != nil {
		return false, errors.Wrap(err, "falha ao reservar evento")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "falha ao reservar evento")
	}
	if n == 0 {
		return false, nil
	}

	if upd != nil {
		userID, err := localizarUsuario(ctx, tx, upd)
		if err != nil {
			return false, err
		}

		var plano *string
		if upd.Plan != nil {
			p := string(*upd.Plan)
			plano = &p
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE usuarios
			SET stripe_subscription_id = ?, stripe_subscription_plan = ?,
				stripe_subscription_status = ?, updated_at = ?
			WHERE id = ?
				AND (? = '' OR stripe_subscription_id IS NULL OR stripe_subscription_id = ?)`,
			upd.SubscriptionID, plano, upd.Status, r.now(), userID,
			upd.SomenteSeAssinatura, upd.SomenteSeAssinatura)
		if err != nil {
			return false, errors.Wrap(err, "falha ao atualizar assinatura")
		}
	}

	if err := tx.Commit(); err != nil {
		return false, errors.Wrap(err, "falha ao confirmar transação")
	}
	return true, nil
}

// localizarUsuario acha o usuário pelo id da metadata e, na falta dele, pelo customer id.
func localizarUsuario(ctx context.Context, tx *sql.Tx, upd *domain.AtualizacaoAssinatura) (string, error) {
	var id string
	if upd.UserID != "" {
		err := tx.QueryRowContext(ctx, "SELECT id FROM usuarios WHERE id = ?", upd.UserID).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", errors.Wrap(err, "falha ao buscar usuário")
		}
	}
	if upd.CustomerID != "" {
		err := tx.QueryRowContext(ctx, "SELECT id FROM usuarios WHERE stripe_customer_id = ?", upd.CustomerID).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", errors.Wrap(err, "falha ao buscar usuário")
		}
	}
	return "", ErrNaoEncontrado
}

// --- AUXILIARES ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUsuario(row rowScanner) (*domain.Usuario, error) {
	var u domain.Usuario
	var customer, subID, plano, status sql.NullString
	err := row.Scan(&u.ID, &u.Email, &customer, &subID, &plano, &status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Retorna nil, nil se o usuário não for encontrado.
		}
		return nil, errors.Wrap(err, "falha ao ler usuário")
	}

	u.StripeCustomerID = ptrFromNull(customer)
	u.StripeSubscriptionID = ptrFromNull(subID)
	u.StripeSubscriptionStatus = ptrFromNull(status)
	if plano.Valid {
		p := domain.Plano(plano.String)
		u.StripeSubscriptionPlan = &p
	}
	return &u, nil
}

func ptrFromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
