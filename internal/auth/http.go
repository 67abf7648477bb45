package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"MiniPOS/pkg/kit"
)

const DefaultTokenTTL = 12 * time.Hour

type Server struct {
	Log      *zap.Logger
	Operator *Operator
	JWT      *TokenMaker
	TTL      time.Duration
}

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResp struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Password) == "" {
		kit.WriteError(w, r, http.StatusBadRequest, "username/password required", nil)
		return
	}

	if err := s.Operator.Verify(req.Username, req.Password); err != nil {
		s.Log.Warn("login rejected", zap.String("username", req.Username))
		kit.WriteError(w, r, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}

	ttl := s.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	tok, exp, err := s.JWT.New(s.Operator.Name, RoleOperator, ttl)
	if err != nil {
		s.Log.Error("token issue", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}

	s.Log.Info("operator logged in", zap.String("operator", s.Operator.Name))
	kit.WriteJSON(w, http.StatusOK, loginResp{AccessToken: tok, ExpiresAt: exp})
}

type ctxKey string

const operatorKey ctxKey = "operator"

func OperatorFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(operatorKey).(string)
	return name, ok
}

// RequireOperator rejects requests without a valid operator bearer token.
func RequireOperator(jwt *TokenMaker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := kit.BearerToken(r)
			if !ok {
				kit.WriteError(w, r, http.StatusUnauthorized, "missing token", nil)
				return
			}

			claims, err := jwt.Parse(tok)
			if err != nil || claims.Role != RoleOperator {
				kit.WriteError(w, r, http.StatusUnauthorized, "invalid token", nil)
				return
			}

			ctx := context.WithValue(r.Context(), operatorKey, claims.Operator)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
