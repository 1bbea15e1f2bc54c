// Package conn carries one accepted connection through its request
// lifecycle: incremental header reads, bounded body reads, pipelining,
// keep-alive accounting, and variant-sensitive response writes.
package conn

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/searchktools/swerve/core/http"
	"github.com/searchktools/swerve/core/pools"
	"github.com/searchktools/swerve/core/router"
	"github.com/searchktools/swerve/core/wire"
)

// Config bounds one connection's resource use.
type Config struct {
	RecvTimeout      time.Duration
	SendTimeout      time.Duration
	MaxHeaderSize    int
	MaxContentLength int
	MaxRequests      int
	StreamBufferSize int
	Debug            bool
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		RecvTimeout:      5 * time.Second,
		SendTimeout:      5 * time.Second,
		MaxHeaderSize:    8 * 1024,
		MaxContentLength: 1024 * 1024,
		MaxRequests:      100,
		StreamBufferSize: 64 * 1024,
	}
}

var (
	// ErrHeadersTooLarge reports a header block exceeding MaxHeaderSize.
	ErrHeadersTooLarge = errors.New("request headers too large")
	// ErrContentTooLarge reports a Content-Length above MaxContentLength.
	ErrContentTooLarge = errors.New("content length too large")
	// ErrBadContentLength reports an unparseable Content-Length value.
	ErrBadContentLength = errors.New("invalid Content-Length value")
	// ErrBodyIncomplete reports a connection that died mid-body.
	ErrBodyIncomplete = errors.New("request body incomplete")
)

// result is the outcome of one processed request.
type result int

const (
	resultKeepAlive result = iota // loop continues
	resultClose                   // clean terminal
	resultFail                    // error already answered best-effort; close
)

// Handler owns one client socket for its lifetime.
type Handler struct {
	sock   *wire.Socket
	peer   wire.Addr
	cfg    Config
	router *router.Router
	bufs   *pools.BytePool
	log    zerolog.Logger

	buf []byte // unconsumed bytes carried across pipelined requests
}

// NewHandler wraps an accepted socket. connID correlates all of the
// connection's log records.
func NewHandler(sock *wire.Socket, peer wire.Addr, rt *router.Router, cfg Config, bufs *pools.BytePool, connID uint64, log zerolog.Logger) *Handler {
	if bufs == nil {
		bufs = pools.NewBytePool()
	}
	return &Handler{
		sock:   sock,
		peer:   peer,
		cfg:    cfg,
		router: rt,
		bufs:   bufs,
		log:    log.With().Uint64("conn", connID).Str("peer", peer.String()).Logger(),
	}
}

// Handle runs the per-connection loop and always closes the socket before
// returning.
func (h *Handler) Handle() {
	defer h.sock.Close()

	if err := h.sock.SetRecvTimeout(h.cfg.RecvTimeout); err != nil {
		h.log.Error().Err(err).Msg("failed to set recv timeout")
	}
	if err := h.sock.SetSendTimeout(h.cfg.SendTimeout); err != nil {
		h.log.Error().Err(err).Msg("failed to set send timeout")
	}
	h.log.Info().Msg("connection accepted")

	for handled := 0; handled < h.cfg.MaxRequests; handled++ {
		switch h.processSingleRequest() {
		case resultKeepAlive:
			continue
		case resultClose:
			h.logTrailingFragment()
			h.log.Info().Int("requests", handled+1).Msg("connection closed")
			return
		case resultFail:
			h.log.Info().Int("requests", handled).Msg("connection failed")
			return
		}
	}
	h.logTrailingFragment()
	h.log.Info().Int("requests", h.cfg.MaxRequests).Msg("max requests reached, closing")
}

func (h *Handler) logTrailingFragment() {
	if len(h.buf) > 0 {
		h.log.Warn().Int("bytes", len(h.buf)).Msg("partial pipeline data remaining")
	}
}

// processSingleRequest consumes exactly one request from the connection:
// headers, a body of exactly Content-Length bytes, and nothing more. Bytes
// past the request stay buffered for the next pipelined iteration.
func (h *Handler) processSingleRequest() result {
	reqID := rand.Uint64()
	log := h.log.With().Uint64("req", reqID).Logger()

	headerBlock, consumed, err := h.readHeaders(log)
	if err != nil {
		return h.failReadHeaders(err, log)
	}

	contentLength, err := h.contentLength(headerBlock, log)
	if err != nil {
		if errors.Is(err, ErrContentTooLarge) {
			h.sendError(http.StatusPayloadTooLarge, "Content too large", log)
		} else {
			h.sendError(http.StatusBadRequest, "Invalid Content-Length", log)
		}
		return resultFail
	}

	body, err := h.readBody(consumed, contentLength, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to read request body")
		return resultFail
	}

	requestBytes := make([]byte, 0, len(headerBlock)+len(body))
	requestBytes = append(requestBytes, headerBlock...)
	requestBytes = append(requestBytes, body...)

	// Consume the request; whatever follows starts the next one.
	h.buf = append([]byte(nil), h.buf[consumed+contentLength:]...)

	req, err := http.Parse(requestBytes, log)
	if err != nil {
		log.Error().Err(err).Msg("request parse failed")
		h.sendError(http.StatusBadRequest, "Malformed request", log)
		return resultFail
	}

	var jsonBody any
	if contentLength > 0 && strings.HasPrefix(req.Header.Get("Content-Type"), http.ContentTypeJSON) {
		if err := json.Unmarshal(bytes.TrimSpace(req.Body), &jsonBody); err != nil {
			log.Error().Err(err).Msg("JSON parse error")
			h.sendError(http.StatusBadRequest, "Invalid JSON", log)
			return resultFail
		}
		log.Debug().Msg("parsed JSON body")
	}

	if req.Version == http.Version11 && !req.Header.Has("Host") {
		log.Error().Msg("missing Host header on HTTP/1.1 request")
		h.sendError(http.StatusBadRequest, "Missing Host header", log)
		return resultFail
	}

	keepAlive := shouldKeepAlive(req)

	resp := h.dispatch(req, jsonBody, log)
	if keepAlive {
		resp.SetHeader("Connection", "keep-alive")
	} else {
		resp.SetHeader("Connection", "close")
	}

	if err := h.send(resp, log); err != nil {
		log.Error().Err(err).Msg("send failed")
		return resultFail
	}
	log.Info().Int("status", resp.Status).Bool("keep_alive", keepAlive).Msg("request processed")

	if !keepAlive {
		return resultClose
	}
	return resultKeepAlive
}

func (h *Handler) failReadHeaders(err error, log zerolog.Logger) result {
	switch {
	case errors.Is(err, io.EOF):
		log.Info().Msg("connection closed by client")
		return resultClose
	case errors.Is(err, wire.ErrTimeout):
		log.Warn().Msg("recv timeout while reading headers")
	case errors.Is(err, ErrHeadersTooLarge):
		log.Error().Msg("request headers too large")
		h.sendError(http.StatusPayloadTooLarge, "Headers too large", log)
	default:
		log.Error().Err(err).Msg("recv error while reading headers")
	}
	return resultFail
}

// shouldKeepAlive honors an explicit Connection header, then falls back to
// the protocol default: keep-alive for 1.1, close for 1.0 and below.
func shouldKeepAlive(req *http.Request) bool {
	switch strings.ToLower(req.Header.Get("Connection")) {
	case "keep-alive":
		return true
	case "close":
		return false
	}
	return req.Version >= http.Version11
}

// readHeaders accumulates bytes until a header terminator is buffered and
// returns the normalized header block (CRLF line endings, CRLFCRLF
// terminated) plus how many buffered bytes it spans.
func (h *Handler) readHeaders(log zerolog.Logger) ([]byte, int, error) {
	for {
		if block, consumed, ok := h.findHeaderEnd(); ok {
			if consumed > h.cfg.MaxHeaderSize {
				return nil, 0, ErrHeadersTooLarge
			}
			return block, consumed, nil
		}
		if len(h.buf) >= h.cfg.MaxHeaderSize {
			return nil, 0, ErrHeadersTooLarge
		}

		chunk := h.bufs.Get(4096)
		n, err := h.sock.Recv(chunk)
		if err != nil {
			h.bufs.Put(chunk)
			if errors.Is(err, io.EOF) && len(h.buf) > 0 {
				return nil, 0, ErrBodyIncomplete
			}
			return nil, 0, err
		}
		if h.cfg.Debug {
			log.Debug().Int("bytes", n).Str("chunk", escapeString(chunk[:n])).Msg("received chunk")
			log.Debug().Str("hex", hexDump(chunk[:n])).Msg("received chunk hex")
		}
		h.buf = append(h.buf, chunk[:n]...)
		h.bufs.Put(chunk)
	}
}

// findHeaderEnd looks for CRLFCRLF or bare LFLF in the buffer, whichever
// comes first, and normalizes the block's line endings to CRLF.
func (h *Handler) findHeaderEnd() ([]byte, int, bool) {
	idxCRLF := bytes.Index(h.buf, []byte("\r\n\r\n"))
	idxLF := bytes.Index(h.buf, []byte("\n\n"))

	switch {
	case idxCRLF == -1 && idxLF == -1:
		return nil, 0, false
	case idxCRLF != -1 && (idxLF == -1 || idxCRLF < idxLF):
		return normalizeHeaderBlock(h.buf[:idxCRLF]), idxCRLF + 4, true
	default:
		return normalizeHeaderBlock(h.buf[:idxLF]), idxLF + 2, true
	}
}

// normalizeHeaderBlock rewrites every line ending in raw (which excludes
// the terminator) to CRLF and appends the CRLFCRLF terminator.
func normalizeHeaderBlock(raw []byte) []byte {
	lines := bytes.Split(raw, []byte("\n"))
	out := make([]byte, 0, len(raw)+len(lines)+4)
	for _, line := range lines {
		out = append(out, bytes.TrimSuffix(line, []byte("\r"))...)
		out = append(out, "\r\n"...)
	}
	return append(out, "\r\n"...)
}

// contentLength scans the raw header block. Absent means zero; more than
// one occurrence is a hard error; values above the cap are rejected.
func (h *Handler) contentLength(headerBlock []byte, log zerolog.Logger) (int, error) {
	lower := bytes.ToLower(headerBlock)
	needle := []byte("\r\ncontent-length:")

	count := 0
	valueStart := -1
	for pos := 0; ; {
		idx := bytes.Index(lower[pos:], needle)
		if idx == -1 {
			break
		}
		count++
		pos += idx + len(needle)
		valueStart = pos
	}
	if count == 0 {
		return 0, nil
	}
	if count > 1 {
		log.Error().Msg("multiple Content-Length headers")
		return 0, http.ErrDuplicateContentLength
	}

	lineEnd := bytes.Index(headerBlock[valueStart:], []byte("\r\n"))
	if lineEnd == -1 {
		lineEnd = len(headerBlock) - valueStart
	}
	value := strings.TrimSpace(string(headerBlock[valueStart : valueStart+lineEnd]))
	if value == "" {
		log.Error().Msg("empty Content-Length value")
		return 0, ErrBadContentLength
	}

	length, err := strconv.Atoi(value)
	if err != nil || length < 0 {
		log.Error().Str("value", value).Msg("invalid Content-Length value")
		return 0, ErrBadContentLength
	}
	if length > h.cfg.MaxContentLength {
		log.Error().Int("length", length).Msg("Content-Length too large")
		return 0, ErrContentTooLarge
	}
	return length, nil
}

// readBody ensures the buffer holds the whole body and returns it without
// consuming. Exactly one body read pass happens per request.
func (h *Handler) readBody(headerEnd, contentLength int, log zerolog.Logger) ([]byte, error) {
	need := headerEnd + contentLength
	for len(h.buf) < need {
		chunk := h.bufs.Get(4096)
		n, err := h.sock.Recv(chunk)
		if err != nil {
			h.bufs.Put(chunk)
			if errors.Is(err, io.EOF) {
				return nil, ErrBodyIncomplete
			}
			return nil, err
		}
		h.buf = append(h.buf, chunk[:n]...)
		h.bufs.Put(chunk)
		if h.cfg.Debug {
			log.Debug().Int("have", len(h.buf)-headerEnd).Int("want", contentLength).Msg("reading body")
		}
	}
	return h.buf[headerEnd:need], nil
}

// dispatch routes the request; a panic escaping a handler or middleware is
// the router boundary's problem to absorb here, as a 500.
func (h *Handler) dispatch(req *http.Request, jsonBody any, log zerolog.Logger) (resp *http.Response) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("handler panicked")
			resp = http.NewJSONResponse(http.StatusInternalServerError,
				map[string]string{"error": "Internal server error"})
		}
	}()
	return h.router.Route(req, jsonBody)
}

// sendError writes a best-effort plain-text error response.
func (h *Handler) sendError(status int, message string, log zerolog.Logger) {
	resp := http.NewResponse(status, http.ContentTypePlain, []byte(message))
	resp.SetHeader("Connection", "close")
	if err := h.sock.SendAll(http.Build(resp)); err != nil {
		log.Error().Err(err).Msg("failed to send error response")
	}
}

// send writes the response. In-memory bodies go out as one wire blob;
// streams send headers first and then copy the file in bounded chunks.
func (h *Handler) send(resp *http.Response, log zerolog.Logger) error {
	if !resp.IsStream() {
		if err := h.sock.SendAll(http.Build(resp)); err != nil {
			return err
		}
		log.Debug().Uint64("bytes", resp.ContentLength()).Msg("sent response")
		return nil
	}
	return h.sendStream(resp, log)
}

func (h *Handler) sendStream(resp *http.Response, log zerolog.Logger) error {
	f, err := os.Open(resp.Stream.Path)
	if err != nil {
		// Headers not sent yet, so a full replacement response is safe.
		log.Error().Err(err).Str("path", resp.Stream.Path).Msg("failed to open file for streaming")
		errResp := http.NewJSONResponse(http.StatusInternalServerError,
			map[string]string{"error": "Failed to stream file"})
		errResp.SetHeader("Connection", "close")
		return h.sock.SendAll(http.Build(errResp))
	}
	defer f.Close()

	if _, err := f.Seek(int64(resp.Stream.Offset), io.SeekStart); err != nil {
		log.Error().Err(err).Msg("seek failed before streaming")
		errResp := http.NewJSONResponse(http.StatusInternalServerError,
			map[string]string{"error": "Failed to stream file"})
		errResp.SetHeader("Connection", "close")
		return h.sock.SendAll(http.Build(errResp))
	}

	if err := h.sock.SendAll(http.BuildHeaders(resp)); err != nil {
		return err
	}

	// From here on the headers are on the wire; any failure aborts the
	// connection rather than producing a second response.
	buf := h.bufs.Get(h.cfg.StreamBufferSize)
	defer h.bufs.Put(buf)

	remaining := resp.Stream.Size
	var sent uint64
	for remaining > 0 {
		chunk := uint64(len(buf))
		if remaining < chunk {
			chunk = remaining
		}
		n, err := f.Read(buf[:chunk])
		if n > 0 {
			if serr := h.sock.SendAll(buf[:n]); serr != nil {
				return serr
			}
			sent += uint64(n)
			remaining -= uint64(n)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		if n == 0 {
			break
		}
	}
	log.Debug().Uint64("bytes", sent).Str("path", resp.Stream.Path).Msg("streamed response body")
	return nil
}
