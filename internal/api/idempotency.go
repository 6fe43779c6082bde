package api

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/atmx/vault-engine/internal/store"
)

// IdempotencyHeader carries the client-chosen key of a mutating request.
const IdempotencyHeader = "Idempotency-Key"

// idempotent records the first response for each Idempotency-Key and
// replays it on retry. A retry that arrives while the first request is
// still running gets 409. Server errors are not recorded so that the
// request can be retried.
func (h *Handler) idempotent(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(IdempotencyHeader)
		if key == "" || h.idem == nil {
			next(w, r)
			return
		}
		scoped := r.Method + " " + r.URL.Path + " " + key
		ctx := r.Context()

		rec, ok, err := h.idem.Reserve(ctx, scoped, h.idemTTL)
		if err != nil {
			slog.Error("idempotency reserve failed", "key", key, "err", err)
			writeError(w, "idempotency store unavailable", "internal", http.StatusServiceUnavailable)
			return
		}
		if !ok {
			if rec.Pending {
				writeError(w, "a request with this idempotency key is in progress", "request_in_progress", http.StatusConflict)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(rec.Status)
			w.Write(rec.Body)
			return
		}

		cw := &captureWriter{header: make(http.Header), status: http.StatusOK}
		next(cw, r)

		if cw.status >= 500 {
			if err := h.idem.Release(ctx, scoped); err != nil {
				slog.Error("idempotency release failed", "key", key, "err", err)
			}
		} else {
			done := store.Recorded{Status: cw.status, Body: cw.body.Bytes()}
			if err := h.idem.Complete(ctx, scoped, done, h.idemTTL); err != nil {
				slog.Error("idempotency complete failed", "key", key, "err", err)
			}
		}

		for k, v := range cw.header {
			w.Header()[k] = v
		}
		w.WriteHeader(cw.status)
		w.Write(cw.body.Bytes())
	}
}

// captureWriter buffers a response so it can be recorded before it is sent.
type captureWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (c *captureWriter) Header() http.Header { return c.header }

func (c *captureWriter) WriteHeader(status int) { c.status = status }

func (c *captureWriter) Write(b []byte) (int, error) { return c.body.Write(b) }
