package api

import "net/http"

// handleInitDB applies the schema. Safe to call repeatedly: migrations are
// recorded and tables are create-if-not-exists.
func (s *Server) handleInitDB(w http.ResponseWriter, r *http.Request) {
	if s.InitDB == nil {
		writeError(w, http.StatusNotImplemented, "init-db not configured")
		return
	}
	if err := s.InitDB(r.Context()); err != nil {
		s.log.Error("init-db failed")
		writeError(w, http.StatusInternalServerError, "schema init failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
