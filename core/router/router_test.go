package router

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/searchktools/swerve/core/http"
)

func newTestRequest(method http.Method, path string) *http.Request {
	return &http.Request{
		Method:  method,
		Version: http.Version11,
		Path:    path,
		Header:  http.NewHeader(),
		Query:   make(http.Params),
		Form:    make(http.Params),
	}
}

func textHandler(body string) Handler {
	return func(req *http.Request, params PathParams, jsonBody any) *http.Response {
		return http.NewResponse(http.StatusOK, http.ContentTypePlain, []byte(body))
	}
}

func TestRouter_StaticRouteMatch(t *testing.T) {
	r := New(nil, 0, zerolog.Nop())
	if err := r.Handle(http.MethodGet, "/about", textHandler("about")); err != nil {
		t.Fatal(err)
	}

	resp := r.Route(newTestRequest(http.MethodGet, "/about"), nil)
	if resp.Status != http.StatusOK || string(resp.Body) != "about" {
		t.Errorf("resp = %d %q", resp.Status, resp.Body)
	}
}

func TestRouter_PathParams(t *testing.T) {
	r := New(nil, 0, zerolog.Nop())
	var got PathParams
	r.Handle(http.MethodGet, "/user/:id/posts/:post", func(req *http.Request, params PathParams, jsonBody any) *http.Response {
		got = params
		return http.NewResponse(http.StatusOK, http.ContentTypePlain, nil)
	})

	resp := r.Route(newTestRequest(http.MethodGet, "/user/42/posts/seven"), nil)

	if resp.Status != http.StatusOK {
		t.Fatalf("status = %d", resp.Status)
	}
	if got["id"] != "42" || got["post"] != "seven" {
		t.Errorf("params = %v", got)
	}
}

func TestRouter_ParamDoesNotSpanSegments(t *testing.T) {
	r := New(nil, 0, zerolog.Nop())
	r.Handle(http.MethodGet, "/user/:id", textHandler("user"))

	resp := r.Route(newTestRequest(http.MethodGet, "/user/42/extra"), nil)
	if resp.Status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.Status)
	}
}

func TestRouter_RegistrationOrderWins(t *testing.T) {
	r := New(nil, 0, zerolog.Nop())
	r.Handle(http.MethodGet, "/user/:id", textHandler("param"))
	r.Handle(http.MethodGet, "/user/me", textHandler("literal"))

	resp := r.Route(newTestRequest(http.MethodGet, "/user/me"), nil)
	if string(resp.Body) != "param" {
		t.Errorf("body = %q, want first-registered route to win", resp.Body)
	}
}

func TestRouter_NotFoundVersusMethodNotAllowed(t *testing.T) {
	r := New(nil, 0, zerolog.Nop())
	r.Handle(http.MethodGet, "/only", textHandler("x"))

	if resp := r.Route(newTestRequest(http.MethodGet, "/missing"), nil); resp.Status != http.StatusNotFound {
		t.Errorf("GET /missing = %d, want 404", resp.Status)
	}
	if resp := r.Route(newTestRequest(http.MethodDelete, "/only"), nil); resp.Status != http.StatusMethodNotAllowed {
		t.Errorf("DELETE /only = %d, want 405 (no DELETE routes at all)", resp.Status)
	}
}

func TestRouter_ErrorNegotiation(t *testing.T) {
	r := New(nil, 0, zerolog.Nop())
	r.Handle(http.MethodGet, "/only", textHandler("x")) // GET has routes, so a miss is 404

	req := newTestRequest(http.MethodGet, "/nope")
	resp := r.Route(req, nil)
	if resp.ContentType != http.ContentTypeJSON || !strings.Contains(string(resp.Body), `"error"`) {
		t.Errorf("default error body = %s %q, want JSON", resp.ContentType, resp.Body)
	}

	req = newTestRequest(http.MethodGet, "/nope")
	req.Header.Set("Accept", "TEXT/HTML,application/xhtml+xml")
	resp = r.Route(req, nil)
	if resp.ContentType != http.ContentTypeHTML || !strings.Contains(string(resp.Body), "404") {
		t.Errorf("html error body = %s %q", resp.ContentType, resp.Body)
	}
}

func TestRouter_MiddlewareOrder(t *testing.T) {
	r := New(nil, 0, zerolog.Nop())
	var trace []string

	r.Use(func(req *http.Request, jsonBody any, next Next) *http.Response {
		trace = append(trace, "outer-in")
		resp := next()
		trace = append(trace, "outer-out")
		return resp
	})
	r.Use(func(req *http.Request, jsonBody any, next Next) *http.Response {
		trace = append(trace, "inner-in")
		resp := next()
		trace = append(trace, "inner-out")
		return resp
	})
	r.Handle(http.MethodGet, "/", func(req *http.Request, params PathParams, jsonBody any) *http.Response {
		trace = append(trace, "handler")
		return http.NewResponse(http.StatusOK, http.ContentTypePlain, nil)
	})

	r.Route(newTestRequest(http.MethodGet, "/"), nil)

	want := "outer-in,inner-in,handler,inner-out,outer-out"
	if strings.Join(trace, ",") != want {
		t.Errorf("trace = %v, want %s", trace, want)
	}
}

func TestRouter_MiddlewareShortCircuit(t *testing.T) {
	r := New(nil, 0, zerolog.Nop())
	handlerRan := false

	r.Use(func(req *http.Request, jsonBody any, next Next) *http.Response {
		return http.NewResponse(http.StatusTooManyRequests, http.ContentTypePlain, []byte("slow down"))
	})
	r.Handle(http.MethodGet, "/", func(req *http.Request, params PathParams, jsonBody any) *http.Response {
		handlerRan = true
		return http.NewResponse(http.StatusOK, http.ContentTypePlain, nil)
	})

	resp := r.Route(newTestRequest(http.MethodGet, "/"), nil)

	if resp.Status != http.StatusTooManyRequests || handlerRan {
		t.Errorf("status = %d handlerRan = %v", resp.Status, handlerRan)
	}
}

func TestBearerAuth(t *testing.T) {
	r := New(nil, 0, zerolog.Nop())
	r.Use(BearerAuth("/user/", "dummy_token"))
	r.Handle(http.MethodGet, "/user/:id", textHandler("found"))
	r.Handle(http.MethodGet, "/open", textHandler("open"))

	// Missing token.
	resp := r.Route(newTestRequest(http.MethodGet, "/user/42"), nil)
	if resp.Status != http.StatusUnauthorized || !strings.Contains(string(resp.Body), "Unauthorized") {
		t.Errorf("no token: %d %q", resp.Status, resp.Body)
	}

	// Correct token.
	req := newTestRequest(http.MethodGet, "/user/42")
	req.Header.Set("Authorization", "Bearer dummy_token")
	if resp := r.Route(req, nil); resp.Status != http.StatusOK {
		t.Errorf("with token: %d", resp.Status)
	}

	// Unguarded path needs no token.
	if resp := r.Route(newTestRequest(http.MethodGet, "/open"), nil); resp.Status != http.StatusOK {
		t.Errorf("open path: %d", resp.Status)
	}
}

func TestCompilePattern_Invalid(t *testing.T) {
	for _, pattern := range []string{"", "noslash", "/a/:/b"} {
		if _, err := compilePattern(pattern); err == nil {
			t.Errorf("compilePattern(%q) succeeded, want error", pattern)
		}
	}
}
