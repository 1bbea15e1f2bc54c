package http

import (
	"strconv"
	"strings"
)

// Build serializes a full wire response: status line, Content-Type,
// Content-Length derived from the body variant, user headers in insertion
// order, then the inline body for in-memory responses. The builder is
// authoritative for Content-Type and Content-Length; values of those names
// in the header map are never emitted.
func Build(resp *Response) []byte {
	out := buildHead(resp, resp.ContentLength())
	out = append(out, crlf...)
	if !resp.IsStream() {
		out = append(out, resp.Body...)
	}
	return out
}

// BuildHeaders serializes the status line and headers only; the caller
// then sends the stream bytes itself.
func BuildHeaders(resp *Response) []byte {
	out := buildHead(resp, resp.ContentLength())
	return append(out, crlf...)
}

func buildHead(resp *Response, contentLength uint64) []byte {
	out := make([]byte, 0, 256+len(resp.Body))

	out = append(out, "HTTP/1.1 "...)
	out = strconv.AppendInt(out, int64(resp.Status), 10)
	out = append(out, ' ')
	out = append(out, StatusText(resp.Status)...)
	out = append(out, crlf...)

	out = append(out, "Content-Type: "...)
	out = append(out, resp.ContentType...)
	out = append(out, crlf...)

	out = append(out, "Content-Length: "...)
	out = strconv.AppendUint(out, contentLength, 10)
	out = append(out, crlf...)

	resp.Header.Each(func(name, value string) {
		switch strings.ToLower(name) {
		case "content-type", "content-length":
			return
		}
		out = append(out, name...)
		out = append(out, ": "...)
		out = append(out, value...)
		out = append(out, crlf...)
	})

	return out
}
