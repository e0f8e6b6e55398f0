package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v4"
)

// ErrNaoAutenticado indica uma requisição sem credencial válida.
var ErrNaoAutenticado = errors.New("não autenticado")

// Autenticador valida tokens HS256 emitidos pelo provedor de identidade.
// O "sub" do token é o id do usuário.
type Autenticador struct {
	segredo []byte
	agora   func() time.Time
}

func NewAutenticador(segredo string) *Autenticador {
	return &Autenticador{segredo: []byte(segredo), agora: time.Now}
}

// UsuarioDaRequisicao extrai e valida o bearer token do cabeçalho Authorization.
func (a *Autenticador) UsuarioDaRequisicao(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	tipo, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(tipo, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errors.Mark(errors.New("cabeçalho Authorization ausente ou malformado"), ErrNaoAutenticado)
	}
	return a.ValidarToken(strings.TrimSpace(token))
}

// ValidarToken devolve o id do usuário do token.
func (a *Autenticador) ValidarToken(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.segredo, nil
	})
	if err != nil {
		return "", errors.Mark(errors.Wrap(err, "token inválido"), ErrNaoAutenticado)
	}
	if !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", errors.Mark(errors.New("token sem usuário"), ErrNaoAutenticado)
	}
	return claims.Subject, nil
}

// EmitirToken assina um token para o usuário. Usado em desenvolvimento e nos testes.
func (a *Autenticador) EmitirToken(userID string, validade time.Duration) (string, error) {
	agora := a.agora()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(agora),
		ExpiresAt: jwt.NewNumericDate(agora.Add(validade)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.segredo)
	if err != nil {
		return "", errors.Wrap(err, "falha ao assinar token")
	}
	return token, nil
}

// --- CONTEXTO ---

type chaveUsuario struct{}

// ComUsuario guarda o id do usuário autenticado no contexto.
func ComUsuario(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, chaveUsuario{}, userID)
}

// UsuarioDoContexto devolve o id guardado por ComUsuario.
func UsuarioDoContexto(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(chaveUsuario{}).(string)
	return id, ok && id != ""
}
