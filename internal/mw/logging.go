package mw

import (
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ctxguard/ctxguard/internal/httpx"
	"github.com/ctxguard/ctxguard/internal/trace"
)

type LogOpts struct {
	CheckSkipEvery int // e.g. 4 logs only every 4th permission check
	SkipPaths      []string
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions
}

// checks arrive on every user action, so they dominate the log volume
func isCheckPath(p string) bool {
	return p == "/permissions/check"
}

var checkCounter uint64

func Logger(opts LogOpts) func(http.Handler) http.Handler {
	if opts.CheckSkipEvery <= 0 {
		opts.CheckSkipEvery = 1
	}
	skip := make(map[string]bool, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPreflight(r) || skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			// throttle the chatty check endpoint
			if isCheckPath(r.URL.Path) && opts.CheckSkipEvery > 1 {
				if atomic.AddUint64(&checkCounter, 1)%uint64(opts.CheckSkipEvery) != 0 {
					next.ServeHTTP(w, r)
					return
				}
			}

			start := time.Now()
			rec := httpx.NewRecorder(w)
			next.ServeHTTP(rec, r)
			dur := time.Since(start)

			// one-liner summary
			slog.Info("req",
				"trace", trace.From(r.Context()),
				"m", r.Method,
				"path", r.URL.Path,
				"status", rec.Status,
				"ms", dur.Milliseconds(),
				"bytes", rec.Bytes,
			)

			if rec.Status >= 400 {
				h := map[string]string{}
				for k, vv := range r.Header {
					if len(vv) == 0 {
						continue
					}
					vl := vv[0]
					if strings.EqualFold(k, "Authorization") || strings.HasPrefix(strings.ToLower(k), "x-api-key") {
						vl = "***redacted***"
					}
					h[k] = vl
				}
				slog.Error("req_detail",
					"trace", trace.From(r.Context()),
					"m", r.Method, "path", r.URL.Path,
					"status", rec.Status, "ms", dur.Milliseconds(),
					"headers", h,
				)
			}
		})
	}
}
