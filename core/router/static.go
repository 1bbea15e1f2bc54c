package router

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/searchktools/swerve/core/http"
)

// lastModifiedFormat is the RFC 7231 IMF-fixdate layout, always GMT.
const lastModifiedFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

var mimeTypes = map[string]string{
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".json": "application/json",
	".ico":  "image/x-icon",
	".txt":  http.ContentTypePlain,
}

// SetStaticDir configures static file serving: fsPath is canonicalized now
// and urlPrefix is '/'-terminated. GET requests under the prefix resolve
// beneath the root only.
func (r *Router) SetStaticDir(fsPath, urlPrefix string) error {
	if fsPath == "" || urlPrefix == "" || urlPrefix[0] != '/' {
		return fmt.Errorf("invalid static files configuration: dir=%q prefix=%q", fsPath, urlPrefix)
	}

	abs, err := filepath.Abs(fsPath)
	if err != nil {
		return fmt.Errorf("resolve static dir %q: %w", fsPath, err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return fmt.Errorf("resolve static dir %q: %w", fsPath, err)
	}
	info, err := os.Stat(canonical)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("static dir %q is not a directory", fsPath)
	}

	if !strings.HasSuffix(urlPrefix, "/") {
		urlPrefix += "/"
	}
	r.staticRoot = canonical
	r.staticPrefix = urlPrefix
	r.log.Info().Str("dir", canonical).Str("prefix", urlPrefix).Msg("static files configured")
	return nil
}

// serveStatic handles GET requests under the static prefix. The second
// return is false when the request is not a static-file request at all.
func (r *Router) serveStatic(req *http.Request) (*http.Response, bool) {
	if r.staticRoot == "" || req.Method != http.MethodGet || !strings.HasPrefix(req.Path, r.staticPrefix) {
		return nil, false
	}

	rel := strings.TrimPrefix(req.Path, r.staticPrefix)
	if strings.Contains(rel, "..") {
		r.log.Error().Str("path", req.Path).Msg("path traversal attempt rejected")
		return r.errorResponse(req, http.StatusForbidden, "Access denied"), true
	}

	full := filepath.Join(r.staticRoot, filepath.FromSlash(rel))

	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		r.log.Debug().Str("path", full).Msg("static file not found or is directory")
		return r.errorResponse(req, http.StatusNotFound, "File not found"), true
	}

	canonical, err := filepath.EvalSymlinks(full)
	if err != nil {
		r.log.Error().Err(err).Str("path", full).Msg("failed to canonicalize static path")
		return r.errorResponse(req, http.StatusInternalServerError, "Failed to resolve file"), true
	}
	if canonical != r.staticRoot && !strings.HasPrefix(canonical, r.staticRoot+string(filepath.Separator)) {
		r.log.Error().Str("path", canonical).Str("root", r.staticRoot).Msg("path escapes static root")
		return r.errorResponse(req, http.StatusForbidden, "Access denied"), true
	}

	contentType := mimeTypes[strings.ToLower(filepath.Ext(canonical))]
	if contentType == "" {
		contentType = http.ContentTypeOctet
	}

	size := uint64(info.Size())
	modTime := info.ModTime()

	var resp *http.Response
	if info.Size() <= r.streamThreshold {
		content, ok := r.cachedContent(canonical, modTime)
		if !ok {
			content, err = os.ReadFile(canonical)
			if err != nil {
				r.log.Error().Err(err).Str("path", canonical).Msg("failed to read static file")
				return r.errorResponse(req, http.StatusInternalServerError, "Failed to read file"), true
			}
			if r.fileCache != nil {
				r.fileCache.Put(canonical, content, modTime)
			}
		}

		if req.Range != nil {
			start, end, ok := validRange(req.Range, size)
			if !ok {
				return r.rangeError(req, size), true
			}
			resp = http.NewResponse(http.StatusPartialContent, contentType, content[start:end+1])
			resp.SetHeader("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
		} else {
			resp = http.NewResponse(http.StatusOK, contentType, content)
		}
	} else {
		if req.Range != nil {
			start, end, ok := validRange(req.Range, size)
			if !ok {
				return r.rangeError(req, size), true
			}
			resp = http.NewStreamResponse(http.StatusPartialContent, contentType,
				http.Stream{Path: canonical, Size: end - start + 1, Offset: start})
			resp.SetHeader("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
		} else {
			resp = http.NewStreamResponse(http.StatusOK, contentType,
				http.Stream{Path: canonical, Size: size, Offset: 0})
		}
	}

	resp.SetHeader("Cache-Control", "max-age=3600")
	resp.SetHeader("Accept-Ranges", "bytes")
	resp.SetHeader("Last-Modified", modTime.UTC().Format(lastModifiedFormat))
	return resp, true
}

func (r *Router) cachedContent(path string, modTime time.Time) ([]byte, bool) {
	if r.fileCache == nil {
		return nil, false
	}
	entry, ok := r.fileCache.Get(path, modTime)
	if !ok {
		return nil, false
	}
	return entry.Content, true
}

// validRange resolves the End == 0 "to end" sentinel and checks the range
// against the file size.
func validRange(rg *http.Range, size uint64) (start, end uint64, ok bool) {
	start = rg.Start
	end = rg.End
	if end == 0 {
		if size == 0 {
			return 0, 0, false
		}
		end = size - 1
	}
	if start >= size || start > end || end >= size {
		return 0, 0, false
	}
	return start, end, true
}

func (r *Router) rangeError(req *http.Request, size uint64) *http.Response {
	r.log.Debug().Uint64("size", size).Msg("invalid range request")
	resp := r.errorResponse(req, http.StatusRangeNotSatisfiable, "Invalid range")
	resp.SetHeader("Content-Range", fmt.Sprintf("bytes */%d", size))
	return resp
}
