package http

import (
	"bytes"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

var (
	// ErrMalformedRequest reports a request line or header block that
	// cannot be parsed.
	ErrMalformedRequest = errors.New("malformed HTTP request")
	// ErrMalformedRange reports a Range header that is not of the form
	// bytes=<start>-<end?>.
	ErrMalformedRange = errors.New("malformed Range header")
)

var rangeRe = regexp.MustCompile(`^bytes=(\d+)-(\d*)$`)

var (
	crlf     = []byte("\r\n")
	crlfcrlf = []byte("\r\n\r\n")
)

// Parse parses exactly one request: a CRLF-terminated request line, a
// header block terminated by CRLFCRLF, and a body of exactly
// Content-Length bytes following it. The caller has already normalized
// bare-LF terminators and sized the body.
func Parse(data []byte, log zerolog.Logger) (*Request, error) {
	lineEnd := bytes.Index(data, crlf)
	if lineEnd == -1 {
		return nil, ErrMalformedRequest
	}
	headerEnd := bytes.Index(data, crlfcrlf)
	if headerEnd == -1 {
		return nil, ErrMalformedRequest
	}

	req := &Request{
		Header: NewHeader(),
		Query:  make(Params),
		Form:   make(Params),
		Raw:    append([]byte(nil), data...),
	}

	if err := parseRequestLine(req, string(data[:lineEnd]), log); err != nil {
		return nil, err
	}

	// With no header lines the request line's CRLF is the first half of the
	// terminator, so the header block is empty.
	var headerBlock []byte
	if lineEnd+2 <= headerEnd {
		headerBlock = data[lineEnd+2 : headerEnd]
	}
	if err := parseHeaderBlock(req, headerBlock, log); err != nil {
		return nil, err
	}

	if err := parseRange(req, log); err != nil {
		return nil, err
	}

	body := data[headerEnd+4:]
	if len(body) > 0 {
		req.Body = append([]byte(nil), body...)
		if req.Method == MethodPost &&
			strings.HasPrefix(req.Header.Get("Content-Type"), ContentTypeForm) {
			parseParams(string(req.Body), req.Form, log)
		}
	}

	log.Debug().Str("method", req.Method.String()).Str("path", req.Path).
		Str("version", req.Version.String()).Msg("parsed request")
	return req, nil
}

func parseRequestLine(req *Request, line string, log zerolog.Logger) error {
	methodEnd := strings.IndexByte(line, ' ')
	if methodEnd == -1 {
		return ErrMalformedRequest
	}
	pathEnd := strings.IndexByte(line[methodEnd+1:], ' ')
	if pathEnd == -1 {
		return ErrMalformedRequest
	}
	pathEnd += methodEnd + 1

	req.Method = ParseMethod(line[:methodEnd])
	req.Version = ParseVersion(line[pathEnd+1:])

	target := line[methodEnd+1 : pathEnd]
	path := target
	if q := strings.IndexByte(target, '?'); q != -1 {
		path = target[:q]
		parseParams(target[q+1:], req.Query, log)
	}

	decoded, clean := DecodeURL(path)
	if !clean {
		log.Warn().Str("path", path).Msg("invalid percent-encoding preserved in path")
	}
	req.Path = decoded

	if req.Path == "" || req.Path[0] != '/' {
		return ErrMalformedRequest
	}
	return nil
}

func parseHeaderBlock(req *Request, block []byte, log zerolog.Logger) error {
	for _, line := range bytes.Split(block, crlf) {
		if len(line) == 0 {
			continue
		}
		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			log.Warn().Msg("malformed header line skipped")
			continue
		}
		name := strings.TrimSpace(string(line[:colon]))
		value := strings.TrimSpace(string(line[colon+1:]))
		if err := req.Header.Add(name, value); err != nil {
			return err
		}
	}
	return nil
}

func parseRange(req *Request, log zerolog.Logger) error {
	value := req.Header.Get("Range")
	if value == "" {
		return nil
	}
	m := rangeRe.FindStringSubmatch(value)
	if m == nil {
		log.Error().Str("range", value).Msg("malformed Range header")
		return ErrMalformedRange
	}
	start, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return ErrMalformedRange
	}
	var end uint64
	if m[2] != "" {
		end, err = strconv.ParseUint(m[2], 10, 64)
		if err != nil {
			return ErrMalformedRange
		}
	}
	req.Range = &Range{Start: start, End: end}
	return nil
}

// parseParams parses a query string or urlencoded form body into params.
// Keys and values are percent-decoded; pairs with empty keys are dropped.
func parseParams(s string, params Params, log zerolog.Logger) {
	for _, pair := range strings.Split(s, "&") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		var rawKey, rawValue string
		if eq := strings.IndexByte(pair, '='); eq != -1 {
			rawKey, rawValue = pair[:eq], pair[eq+1:]
		} else {
			rawKey = pair
		}

		key, keyClean := DecodeURL(strings.TrimSpace(rawKey))
		value, valueClean := DecodeURL(strings.TrimSpace(rawValue))
		if !keyClean || !valueClean {
			log.Warn().Str("pair", pair).Msg("invalid percent-encoding preserved in parameter")
		}
		if key == "" {
			log.Warn().Str("pair", pair).Msg("empty parameter key dropped")
			continue
		}
		params.Add(key, value)
	}
}
