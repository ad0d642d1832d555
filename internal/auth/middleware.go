// backend/internal/auth/middleware.go
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/dgrijalva/jwt-go"

	"chat-funnel/pkg/apierr"
)

type contextKey struct{}

// Claims identifies the operator behind a request.
type Claims struct {
	OperatorID uint
	Username   string
}

// OperatorFrom returns the claims stored by JWTMiddleware.
func OperatorFrom(ctx context.Context) Claims {
	c, _ := ctx.Value(contextKey{}).(Claims)
	return c
}

func unauthorized(w http.ResponseWriter, msg string) {
	apierr.JSON(w, http.StatusUnauthorized, map[string]string{"error": msg})
}

func JWTMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "Authorization header required")
				return
			}

			bearerToken := strings.Split(authHeader, " ")
			if len(bearerToken) != 2 || bearerToken[0] != "Bearer" {
				unauthorized(w, "Invalid token format")
				return
			}

			token, err := jwt.ParseWithClaims(bearerToken[1], &jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
				}
				return []byte(jwtSecret), nil
			})
			if err != nil {
				unauthorized(w, "Invalid token")
				return
			}

			claims, ok := token.Claims.(*jwt.MapClaims)
			if !ok || !token.Valid {
				unauthorized(w, "Invalid token claims")
				return
			}

			operatorID, ok := (*claims)["operator_id"].(float64)
			if !ok {
				unauthorized(w, "Invalid operator ID in token")
				return
			}
			username, _ := (*claims)["username"].(string)

			ctx := context.WithValue(r.Context(), contextKey{}, Claims{OperatorID: uint(operatorID), Username: username})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
