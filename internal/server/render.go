package server

import (
	"encoding/base64"
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcstatus/assets"
	"github.com/woozymasta/mcstatus/internal/models"
	"github.com/woozymasta/mcstatus/internal/motd"
	"github.com/woozymasta/mcstatus/internal/vars"
)

const faviconPrefix = "data:image/png;base64,"

// format is a negotiated response representation.
type format int

const (
	formatUnsupported format = iota
	formatEmbed
	formatHTML
	formatJSON
)

var templateFuncs = template.FuncMap{
	// markup marks engine-rendered MOTD HTML as safe; it is built from escaped text only.
	"markup": func(s string) template.HTML { return template.HTML(s) }, //nolint:gosec
}

// negotiate picks the representation from the Accept header. A missing header
// gets the link-preview block chat clients expect.
func negotiate(r *http.Request) format {
	accept, ok := r.Header["Accept"]
	if !ok {
		return formatEmbed
	}

	value := strings.Join(accept, ",")
	switch {
	case strings.Contains(value, "text/html"):
		return formatHTML
	case strings.Contains(value, "application/json"):
		return formatJSON
	default:
		return formatUnsupported
	}
}

// statusCode maps the online flag to the response code.
func statusCode(res *models.StatusResult) int {
	if res.Online {
		return http.StatusOK
	}
	return http.StatusBadRequest
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the JSON error body used by all endpoints.
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]any{"message": message, "error": map[string]any{}})
}

func (s *Server) renderTemplate(w http.ResponseWriter, code int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("Failed to render template")
	}
}

type statusPage struct {
	Status *models.StatusResult
	Title  string
	Icon   template.URL
}

type embedPage struct {
	Address     string
	SiteName    string
	Description string
	URL         string
	Icon        string
}

// renderStatus writes res in the negotiated representation.
func (s *Server) renderStatus(w http.ResponseWriter, r *http.Request, f format, q models.ServerQuery, res *models.StatusResult) {
	base := s.publicURL(r)
	path := addressPath(q)

	switch f {
	case formatJSON:
		writeJSON(w, statusCode(res), res)

	case formatHTML:
		title := q.Host
		if q.Port != 0 {
			title = models.JoinHostPort(q.Host, q.Port)
		}

		icon := template.URL(base + "/icon/" + path) //nolint:gosec
		if res.Favicon != "" {
			icon = template.URL(faviconDataURL(res.Favicon)) //nolint:gosec
		}

		s.renderTemplate(w, statusCode(res), "status.html", statusPage{Status: res, Title: title, Icon: icon})

	default:
		description := motd.Strip(res.Name) +
			"\nPlayers: " + strconv.Itoa(res.OnlinePlayers) + "/" + strconv.Itoa(res.MaxPlayers) +
			"\nVersion: " + res.Version

		s.renderTemplate(w, statusCode(res), "embed.html", embedPage{
			Address:     q.Host,
			SiteName:    vars.Name,
			Description: description,
			URL:         base + "/" + path,
			Icon:        base + "/icon/" + path,
		})
	}
}

func faviconDataURL(favicon string) string {
	if strings.HasPrefix(favicon, "data:") {
		return favicon
	}
	return faviconPrefix + favicon
}

// decodeFavicon returns the PNG bytes of a favicon, or the bundled default icon
// when the favicon is empty or undecodable.
func decodeFavicon(favicon string) []byte {
	if favicon != "" {
		raw := strings.TrimPrefix(favicon, faviconPrefix)
		// some servers wrap the base64 payload
		raw = strings.NewReplacer("\n", "", "\r", "").Replace(raw)
		if data, err := base64.StdEncoding.DecodeString(raw); err == nil && len(data) > 0 {
			return data
		}
	}

	data, err := assets.ReadFile(assets.DefaultIcon)
	if err != nil {
		log.Error().Err(err).Msg("Default icon missing from assets")
	}
	return data
}
