package api

import "net/http"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.Ping != nil {
		ctx, cancel := timeoutCtx(r)
		defer cancel()
		if err := s.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "db": "unreachable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
