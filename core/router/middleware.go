package router

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/searchktools/swerve/core/http"
)

// Logging returns a middleware that records each request and the shape of
// its response.
func Logging(log zerolog.Logger) Middleware {
	return func(req *http.Request, jsonBody any, next Next) *http.Response {
		log.Info().Str("method", req.Method.String()).Str("path", req.Path).Msg("request")
		resp := next()
		if resp.IsStream() {
			log.Info().Int("status", resp.Status).Uint64("bytes", resp.Stream.Size).
				Bool("streamed", true).Msg("response")
		} else {
			log.Info().Int("status", resp.Status).Int("bytes", len(resp.Body)).Msg("response")
		}
		return resp
	}
}

// BearerAuth returns a middleware that guards paths under pathPrefix with
// a single bearer token. Requests elsewhere pass through untouched.
func BearerAuth(pathPrefix, token string) Middleware {
	expect := "Bearer " + token
	return func(req *http.Request, jsonBody any, next Next) *http.Response {
		if strings.HasPrefix(req.Path, pathPrefix) && req.Header.Get("Authorization") != expect {
			return http.NewJSONResponse(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}
		return next()
	}
}
