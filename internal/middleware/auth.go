// Package middleware содержит HTTP middleware сервиса учёта тренировок.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"

	"github.com/mmeshcher/traintrack-system/internal/model"
)

type contextKey string

const (
	userIDKey   contextKey = "userID"
	userRoleKey contextKey = "userRole"
)

// AuthMiddleware выполняет проверку аутентификации пользователя
// по подписанному bearer-токену в заголовке Authorization.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
	}
}

// Middleware проверяет bearer-токен и кладёт идентификатор и роль
// пользователя в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		userID, role, ok := a.ParseToken(token)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		ctx = context.WithValue(ctx, userRoleKey, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminOnly пропускает дальше только пользователей с ролью администратора.
// Должен использоваться после Middleware.
func (a *AuthMiddleware) AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, ok := GetRoleFromContext(r.Context())
		if !ok || role != model.RoleAdmin {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// IssueToken выпускает подписанный токен для пользователя с указанной ролью.
func (a *AuthMiddleware) IssueToken(userID int64, role model.Role) string {
	payload := tokenPayload(userID, role)
	return payload + "." + a.sign(payload)
}

// ParseToken проверяет подпись токена и возвращает идентификатор и роль пользователя.
func (a *AuthMiddleware) ParseToken(token string) (int64, model.Role, bool) {
	payload, signature, found := strings.Cut(token, ".")
	if !found {
		return 0, 0, false
	}

	if !hmac.Equal([]byte(signature), []byte(a.sign(payload))) {
		return 0, 0, false
	}

	idStr, roleStr, found := strings.Cut(payload, ":")
	if !found {
		return 0, 0, false
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, 0, false
	}

	roleVal, err := strconv.Atoi(roleStr)
	if err != nil {
		return 0, 0, false
	}

	role := model.Role(roleVal)
	if !role.Valid() {
		return 0, 0, false
	}

	return id, role, true
}

func tokenPayload(userID int64, role model.Role) string {
	return strconv.FormatInt(userID, 10) + ":" + strconv.Itoa(int(role))
}

func (a *AuthMiddleware) sign(payload string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// GetUserIDFromContext извлекает идентификатор пользователя из контекста запроса.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// GetRoleFromContext извлекает роль пользователя из контекста запроса.
func GetRoleFromContext(ctx context.Context) (model.Role, bool) {
	role, ok := ctx.Value(userRoleKey).(model.Role)
	return role, ok
}
