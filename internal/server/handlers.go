package server

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcstatus/internal/models"
	"github.com/woozymasta/mcstatus/internal/vars"
)

// handleIndex serves the landing page with usage examples.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.renderTemplate(w, http.StatusOK, "index.html", map[string]string{
		"Name":    vars.Name,
		"Version": vars.Version,
		"BaseURL": s.publicURL(r),
	})
}

// handleVersion returns the build information.
func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, vars.Ver())
}

// handleStatus resolves a server and renders it as a link preview, HTML page or JSON.
// Online servers answer 200, offline servers 400.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	q, rerr := s.parseQuery(r)
	if rerr != nil {
		writeError(w, rerr.status, rerr.Error())
		return
	}

	f := negotiate(r)
	if f == formatUnsupported {
		writeError(w, http.StatusBadRequest, "Unsupported Accept Headers")
		return
	}

	res := s.engine.Resolve(r.Context(), q)
	s.enqueue(q, res)
	s.renderStatus(w, r, f, q, res)
}

// handleIcon serves the server favicon as PNG, or the default icon when there is none.
func (s *Server) handleIcon(w http.ResponseWriter, r *http.Request) {
	q, rerr := s.parseQuery(r)
	if rerr != nil {
		writeError(w, rerr.status, rerr.Error())
		return
	}

	res := s.engine.Resolve(r.Context(), q)
	s.enqueue(q, res)

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(decodeFavicon(res.Favicon))
}

// handleServers returns a JSON list of all tracked servers.
// This endpoint is protected by AdminAuthMiddleware.
func (s *Server) handleServers(w http.ResponseWriter, _ *http.Request) {
	if s.storage == nil {
		writeError(w, http.StatusServiceUnavailable, "Registry disabled")
		return
	}

	servers, err := s.storage.GetServers()
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch servers")
		writeError(w, http.StatusInternalServerError, "Database Error")
		return
	}

	if servers == nil {
		servers = []models.Server{}
	}

	writeJSON(w, http.StatusOK, servers)
}

// adminTarget reads the host and port parameters of the admin endpoints.
func adminTarget(r *http.Request) (string, int, error) {
	host := r.URL.Query().Get("host")
	if host == "" {
		return "", 0, errMissingHost
	}

	port := 0
	if v := r.URL.Query().Get("port"); v != "" {
		p, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return "", 0, errInvalidPort
		}
		port = int(p)
	}

	return host, port, nil
}

// handleGetServer returns a tracked server.
// Query params: ?host=mc.example.com&port=25565 (port 0 or absent for discovered ports)
func (s *Server) handleGetServer(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		writeError(w, http.StatusServiceUnavailable, "Registry disabled")
		return
	}

	host, port, err := adminTarget(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	srv, err := s.storage.GetServer(host, port)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch server")
		writeError(w, http.StatusInternalServerError, "Database Error")
		return
	}
	if srv == nil {
		writeError(w, http.StatusNotFound, "Server not found")
		return
	}

	writeJSON(w, http.StatusOK, srv)
}

// handleDeleteServer removes a tracked server.
// Query params: ?host=mc.example.com&port=25565
func (s *Server) handleDeleteServer(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		writeError(w, http.StatusServiceUnavailable, "Registry disabled")
		return
	}

	host, port, err := adminTarget(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.storage.DeleteServer(host, port); err != nil {
		log.Error().Err(err).
			Str("host", host).
			Int("port", port).
			Msg("Failed to delete server")

		writeError(w, http.StatusInternalServerError, "Database Error")
		return
	}

	log.Info().
		Str("host", host).
		Int("port", port).
		Msg("Server deleted manually")

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Server deleted"})
}
