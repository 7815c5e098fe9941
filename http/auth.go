package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	httpcmn "github.com/aukilabs/hagall-common/http"
	"golang.org/x/net/websocket"
)

const (
	ErrTypeUnauthorized = "unauthorized"
)

var headerClientID = httpcmn.HeaderPosemeshClientID

// VerifyAPIKey returns a WebSocket handshake that rejects connections without
// the given API key. An empty key accepts every connection.
func VerifyAPIKey(apiKey string) func(*websocket.Config, *http.Request) error {
	return func(c *websocket.Config, r *http.Request) error {
		if err := checkAPIKey(apiKey, r); err != nil {
			logs.WithTag(logs.ClientIDTag, r.Header.Get(headerClientID)).Error(err)
			return err
		}
		return nil
	}
}

// VerifyAPIKeyHandler responds with 401 to requests without the given API
// key. An empty key accepts every request.
func VerifyAPIKeyHandler(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := checkAPIKey(apiKey, r); err != nil {
			logs.WithTag(logs.ClientIDTag, r.Header.Get(headerClientID)).Error(err)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func checkAPIKey(apiKey string, r *http.Request) error {
	if apiKey == "" {
		return nil
	}

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
		return errors.New("invalid api key").
			WithType(ErrTypeUnauthorized).
			WithTag("path", r.URL.Path)
	}
	return nil
}
