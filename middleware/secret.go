package middleware

import (
	"net/http"

	"music-bot-go/logcolors"

	log "github.com/sirupsen/logrus"
)

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// SecretTokenMiddleware rejects webhook calls that do not carry the secret
// token Telegram was told to send. With no secret configured all requests
// pass, with a warning once per request.
func SecretTokenMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				log.Warnf("%s Webhook secret not configured, accepting unverified request", logcolors.LogServer)
				next.ServeHTTP(w, r)
				return
			}

			if r.Header.Get(secretTokenHeader) != secret {
				log.Warnf("%s Webhook call with bad secret token from %s", logcolors.LogServer, r.RemoteAddr)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
