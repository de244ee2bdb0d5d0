package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/honeynil/AssetMarketplace/internal/infrastructure/redis"
)

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}

// AuthMiddleware accepts a bearer token only if it is valid and is still the
// active session token stored in Redis.
func AuthMiddleware(redisClient redis.RedisClient, jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "authorization header missing")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				unauthorized(w, "invalid authorization header")
				return
			}

			tokenStr := parts[1]
			userID, err := ValidateJWT(jwtSecret, tokenStr)
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}

			storedToken, err := redisClient.Get(r.Context(), TokenKey(userID))
			if err != nil || storedToken != tokenStr {
				slog.Error("invalid or revoked token", "user_id", userID, "error", err)
				unauthorized(w, "invalid or revoked token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}
