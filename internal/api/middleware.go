package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/UkralStul/civic-forum-service/internal/identity"
)

// Auth разбирает Bearer-токен и кладет личность вызывающего в контекст.
// При required == false запрос без токена проходит анонимно (списки и
// чтение тредов); битый токен отклоняется в любом случае.
func Auth(secret string, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				if required {
					http.Error(w, `{"error":"authorization required"}`, http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			raw := strings.TrimPrefix(header, "Bearer ")
			token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, `{"error":"invalid token claims"}`, http.StatusUnauthorized)
				return
			}
			sub, err := claims.GetSubject()
			if err != nil || sub == "" {
				http.Error(w, `{"error":"token subject missing"}`, http.StatusUnauthorized)
				return
			}
			name, _ := claims["name"].(string)

			ctx := identity.WithContext(r.Context(), &identity.Identity{ID: sub, DisplayName: name})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
