package router

import (
	"strings"

	"github.com/searchktools/swerve/core/http"
)

// Fixed error pages served to clients that prefer HTML.
const (
	error403HTML = `<!DOCTYPE html><html><head><title>403 Forbidden</title></head><body><h1>403 Forbidden</h1><p>Access denied.</p></body></html>`
	error404HTML = `<!DOCTYPE html><html><head><title>404 Not Found</title></head><body><h1>404 Not Found</h1><p>The requested resource was not found.</p></body></html>`
	error416HTML = `<!DOCTYPE html><html><head><title>416 Range Not Satisfiable</title></head><body><h1>416 Range Not Satisfiable</h1><p>The requested range is invalid.</p></body></html>`
	error500HTML = `<!DOCTYPE html><html><head><title>500 Internal Server Error</title></head><body><h1>500 Internal Server Error</h1><p>Something went wrong.</p></body></html>`
)

var errorPages = map[int]string{
	http.StatusForbidden:           error403HTML,
	http.StatusNotFound:            error404HTML,
	http.StatusRangeNotSatisfiable: error416HTML,
	http.StatusInternalServerError: error500HTML,
}

// PrefersHTML reports whether the client's Accept header asks for HTML.
func PrefersHTML(req *http.Request) bool {
	return strings.Contains(strings.ToLower(req.Header.Get("Accept")), "text/html")
}

// errorResponse builds a negotiated error body: an HTML page when the
// client prefers HTML, a JSON {"error": ...} object otherwise. Statuses
// without their own page borrow the 500 one.
func (r *Router) errorResponse(req *http.Request, status int, message string) *http.Response {
	if PrefersHTML(req) {
		page, ok := errorPages[status]
		if !ok {
			page = error500HTML
		}
		return http.NewResponse(status, http.ContentTypeHTML, []byte(page))
	}
	return http.NewJSONResponse(status, map[string]string{"error": message})
}
