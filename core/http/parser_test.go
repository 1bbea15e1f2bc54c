package http

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func parseString(t *testing.T, raw string) *Request {
	t.Helper()
	req, err := Parse([]byte(raw), zerolog.Nop())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return req
}

func TestParse_RequestLine(t *testing.T) {
	req := parseString(t, "GET /index.html HTTP/1.1\r\nHost: x\r\n\r\n")

	if req.Method != MethodGet {
		t.Errorf("method = %v, want GET", req.Method)
	}
	if req.Path != "/index.html" {
		t.Errorf("path = %q, want /index.html", req.Path)
	}
	if req.Version != Version11 {
		t.Errorf("version = %v, want HTTP/1.1", req.Version)
	}
}

func TestParse_UnknownMethodAndVersionFallback(t *testing.T) {
	req := parseString(t, "BREW /pot HTTP/9.9\r\nHost: x\r\n\r\n")

	if req.Method != MethodUnknown {
		t.Errorf("method = %v, want UNKNOWN", req.Method)
	}
	if req.Version != Version11 {
		t.Errorf("version = %v, want fallback HTTP/1.1", req.Version)
	}
}

func TestParse_QueryParams(t *testing.T) {
	req := parseString(t, "GET /search?q=hello+world&lang=en&q=x%20y HTTP/1.1\r\nHost: x\r\n\r\n")

	if req.Path != "/search" {
		t.Errorf("path = %q, want /search", req.Path)
	}
	if got := req.Query["q"]; len(got) != 2 || got[0] != "hello world" || got[1] != "x y" {
		t.Errorf("q = %v, want [hello world, x y]", got)
	}
	if req.Query.Get("lang") != "en" {
		t.Errorf("lang = %q, want en", req.Query.Get("lang"))
	}
}

func TestParse_InvalidPercentPreserved(t *testing.T) {
	req := parseString(t, "GET /p?k=%zz HTTP/1.1\r\nHost: x\r\n\r\n")

	if req.Query.Get("k") != "%zz" {
		t.Errorf("k = %q, want literal %%zz", req.Query.Get("k"))
	}
}

func TestParse_HeaderLookupIsCaseInsensitive(t *testing.T) {
	req := parseString(t, "GET / HTTP/1.1\r\nHost: example\r\nX-Custom-Thing: abc\r\n\r\n")

	for _, name := range []string{"x-custom-thing", "X-CUSTOM-THING", "X-Custom-Thing"} {
		if req.Header.Get(name) != "abc" {
			t.Errorf("Get(%q) = %q, want abc", name, req.Header.Get(name))
		}
	}
}

func TestParse_DuplicateHeaderLaterWins(t *testing.T) {
	req := parseString(t, "GET / HTTP/1.1\r\nHost: x\r\nX-Tag: one\r\nX-Tag: two\r\n\r\n")

	if req.Header.Get("X-Tag") != "two" {
		t.Errorf("X-Tag = %q, want two", req.Header.Get("X-Tag"))
	}
	if vs := req.Header.Values("X-Tag"); len(vs) != 2 {
		t.Errorf("values = %v, want both kept", vs)
	}
}

func TestParse_MultipleContentLengthIsError(t *testing.T) {
	_, err := Parse([]byte("POST / HTTP/1.1\r\nHost: x\r\nContent-Length: 2\r\nContent-Length: 2\r\n\r\nhi"), zerolog.Nop())
	if !errors.Is(err, ErrDuplicateContentLength) {
		t.Fatalf("err = %v, want ErrDuplicateContentLength", err)
	}
}

func TestParse_Body(t *testing.T) {
	raw := "POST /echo HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\nhello"
	req := parseString(t, raw)

	if !bytes.Equal(req.Body, []byte("hello")) {
		t.Errorf("body = %q, want hello", req.Body)
	}
	if !bytes.Equal(req.Raw, []byte(raw)) {
		t.Errorf("raw bytes not preserved")
	}
}

func TestParse_FormBody(t *testing.T) {
	body := "name=John+Doe&tag=a&tag=b%21"
	raw := "POST /form HTTP/1.1\r\nHost: x\r\nContent-Type: application/x-www-form-urlencoded\r\n\r\n" + body
	req := parseString(t, raw)

	if req.Form.Get("name") != "John Doe" {
		t.Errorf("name = %q, want John Doe", req.Form.Get("name"))
	}
	if got := req.Form["tag"]; len(got) != 2 || got[1] != "b!" {
		t.Errorf("tag = %v, want [a b!]", got)
	}
}

func TestParse_FormIgnoredForOtherContentTypes(t *testing.T) {
	raw := "POST /form HTTP/1.1\r\nHost: x\r\nContent-Type: text/plain\r\n\r\na=b"
	req := parseString(t, raw)

	if len(req.Form) != 0 {
		t.Errorf("form = %v, want empty", req.Form)
	}
}

func TestParse_Range(t *testing.T) {
	req := parseString(t, "GET /f HTTP/1.1\r\nHost: x\r\nRange: bytes=2-5\r\n\r\n")
	if req.Range == nil || req.Range.Start != 2 || req.Range.End != 5 {
		t.Fatalf("range = %+v, want 2-5", req.Range)
	}

	req = parseString(t, "GET /f HTTP/1.1\r\nHost: x\r\nRange: bytes=7-\r\n\r\n")
	if req.Range == nil || req.Range.Start != 7 || req.Range.End != 0 {
		t.Fatalf("range = %+v, want 7 with open end", req.Range)
	}
}

func TestParse_MalformedRange(t *testing.T) {
	for _, value := range []string{"bytes=a-b", "bytes=5", "chunks=1-2", "bytes=-5"} {
		_, err := Parse([]byte("GET /f HTTP/1.1\r\nHost: x\r\nRange: "+value+"\r\n\r\n"), zerolog.Nop())
		if !errors.Is(err, ErrMalformedRange) {
			t.Errorf("Range %q: err = %v, want ErrMalformedRange", value, err)
		}
	}
}

func TestParse_MalformedRequestLine(t *testing.T) {
	for _, raw := range []string{
		"GET\r\n\r\n",
		"GET /\r\n\r\n",
		"\r\n\r\n",
		"GET noslash HTTP/1.1\r\n\r\n",
	} {
		if _, err := Parse([]byte(raw), zerolog.Nop()); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", raw)
		}
	}
}
