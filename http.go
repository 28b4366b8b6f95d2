package pagesync

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/pagesync/engine"
	"github.com/hazyhaar/pagesync/hydrate"
	"github.com/hazyhaar/pagesync/internal/httpmw"
	"github.com/hazyhaar/pagesync/protocol"
	"github.com/hazyhaar/pagesync/section"
	"github.com/hazyhaar/pagesync/surface"
	"github.com/hazyhaar/pagesync/transport"
)

// SocketPath is where browser surfaces open their websocket.
const SocketPath = "/surface/ws"

// Handler returns the HTTP host.
func (ed *Editor) Handler() http.Handler {
	r := chi.NewRouter()
	for _, mw := range httpmw.Stack(ed.logger, ed.cfg.MaxBody) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sections": len(ed.store.Sections())})
	})

	r.Get("/surface", func(w http.ResponseWriter, _ *http.Request) {
		doc, err := surface.Bootstrap(surface.BootstrapConfig{
			Title:       ed.cfg.Surface.Title,
			SocketURL:   SocketPath,
			Debounce:    ed.cfg.Surface.Debounce,
			Interval:    ed.cfg.Surface.Interval,
			TailwindURL: ed.cfg.Surface.TailwindURL,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(doc))
	})

	r.Get(SocketPath, func(w http.ResponseWriter, r *http.Request) {
		log := httpmw.Logger(r.Context())
		conn, err := transport.Accept(w, r, log)
		if err != nil {
			log.Warn("pagesync: websocket upgrade", "error", err)
			return
		}
		if err := ed.Attach(r.Context(), conn); err != nil {
			log.Warn("pagesync: session ended", "error", err)
		}
	})

	r.Handle("/mcp", ed.mcpHandler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/sections", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, ed.Sections())
			})
			r.Put("/", func(w http.ResponseWriter, r *http.Request) {
				var in []section.Section
				if !decode(w, r, &in) {
					return
				}
				out, err := ed.Replace(r.Context(), in)
				if err != nil {
					writeError(w, statusOf(err), err)
					return
				}
				writeJSON(w, http.StatusOK, out)
			})
			r.Post("/", func(w http.ResponseWriter, r *http.Request) {
				var in section.Section
				if !decode(w, r, &in) {
					return
				}
				out, err := ed.Create(r.Context(), in)
				if err != nil {
					writeError(w, statusOf(err), err)
					return
				}
				writeJSON(w, http.StatusCreated, out)
			})
			r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
				s, err := ed.Section(chi.URLParam(r, "id"))
				if err != nil {
					writeError(w, statusOf(err), err)
					return
				}
				writeJSON(w, http.StatusOK, s)
			})
			r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
				var in section.Section
				if !decode(w, r, &in) {
					return
				}
				in.ID = chi.URLParam(r, "id")
				if in.Type == "" {
					if cur, ok := ed.store.Get(in.ID); ok {
						in.Type = cur.Type
					}
				}
				out, err := ed.Put(r.Context(), in)
				if err != nil {
					writeError(w, statusOf(err), err)
					return
				}
				writeJSON(w, http.StatusOK, out)
			})
			r.Get("/{id}/history", func(w http.ResponseWriter, r *http.Request) {
				limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
				revs, err := ed.History(r.Context(), chi.URLParam(r, "id"), limit)
				if err != nil {
					writeError(w, statusOf(err), err)
					return
				}
				writeJSON(w, http.StatusOK, revs)
			})
			r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
				if err := ed.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
					writeError(w, statusOf(err), err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})
		})

		r.Post("/hydrate", func(w http.ResponseWriter, r *http.Request) {
			var in section.Section
			if !decode(w, r, &in) {
				return
			}
			writeJSON(w, http.StatusOK, ed.Hydrate(in))
		})

		r.Post("/select", func(w http.ResponseWriter, r *http.Request) {
			var in struct {
				ID string `json:"id"`
			}
			if !decode(w, r, &in) {
				return
			}
			if err := ed.Select(r.Context(), in.ID); err != nil {
				writeError(w, statusOf(err), err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		r.Get("/active", func(w http.ResponseWriter, r *http.Request) {
			el, ok, err := ed.Active(r.Context())
			if err != nil {
				writeError(w, statusOf(err), err)
				return
			}
			var out *section.ActiveElement
			if ok {
				out = &el
			}
			writeJSON(w, http.StatusOK, map[string]any{"active": out})
		})
		r.Post("/active", func(w http.ResponseWriter, r *http.Request) {
			var in struct {
				Action protocol.Action `json:"action"`
				Value  string          `json:"value"`
			}
			if !decode(w, r, &in) {
				return
			}
			if !in.Action.Valid() {
				writeError(w, http.StatusBadRequest, fmt.Errorf("invalid action %q", in.Action))
				return
			}
			if err := ed.Command(r.Context(), in.Action, in.Value); err != nil {
				writeError(w, statusOf(err), err)
				return
			}
			w.WriteHeader(http.StatusAccepted)
		})

		r.Get("/outline", func(w http.ResponseWriter, _ *http.Request) {
			md, err := ed.Outline()
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
			w.Write([]byte(md))
		})

		r.Get("/records", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, ed.Records())
		})
		r.Put("/records", func(w http.ResponseWriter, r *http.Request) {
			var rec hydrate.Records
			if !decode(w, r, &rec) {
				return
			}
			if err := ed.SetRecords(r.Context(), rec); err != nil {
				writeError(w, statusOf(err), err)
				return
			}
			writeJSON(w, http.StatusOK, rec)
		})
	})
	return r
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
		} else {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		}
		return false
	}
	return true
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, ErrExists), errors.Is(err, ErrNoSession), errors.Is(err, engine.ErrNoActiveElement):
		return http.StatusConflict
	case errors.Is(err, engine.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
