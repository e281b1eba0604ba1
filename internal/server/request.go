package server

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/woozymasta/mcstatus/internal/models"
)

var (
	errMissingHost = errors.New("missing server address")
	errInvalidPort = errors.New("invalid port")
	errDeniedHost  = errors.New("server address is not allowed")
)

// requestError is a client error with the status code to answer.
type requestError struct {
	err    error
	status int
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) *requestError {
	return &requestError{err: err, status: http.StatusBadRequest}
}

// parseQuery builds a ServerQuery from the {address} path value ("host" or "host:port")
// and the port, query and is_bedrock parameters. The port parameter wins over the address port.
func (s *Server) parseQuery(r *http.Request) (models.ServerQuery, *requestError) {
	address := strings.TrimSpace(r.PathValue("address"))
	params := r.URL.Query()

	q := models.ServerQuery{Host: address, Family: models.FamilyJava}
	if host, port, err := net.SplitHostPort(address); err == nil {
		p, err := parsePort(port)
		if err != nil {
			return q, badRequest(err)
		}
		q.Host, q.Port = host, p
	}
	q.Host = strings.TrimSuffix(strings.Trim(q.Host, "[]"), ".")

	if q.Host == "" || q.Host == "undefined" {
		return q, badRequest(errMissingHost)
	}
	if _, denied := s.deniedHosts[hostHash(q.Host)]; denied {
		return q, &requestError{err: errDeniedHost, status: http.StatusForbidden}
	}

	if v := params.Get("port"); v != "" {
		p, err := parsePort(v)
		if err != nil {
			return q, badRequest(err)
		}
		q.Port = p
	}
	if v := params.Get("query"); v != "" {
		p, err := parsePort(v)
		if err != nil {
			return q, badRequest(err)
		}
		q.QueryPort = p
	}
	if v := params.Get("is_bedrock"); v != "" {
		if bedrock, err := strconv.ParseBool(v); err == nil && bedrock {
			q.Family = models.FamilyBedrock
		}
	}

	return q, nil
}

func parsePort(s string) (uint16, error) {
	p, err := strconv.ParseUint(s, 10, 16)
	if err != nil || p == 0 {
		return 0, errInvalidPort
	}
	return uint16(p), nil
}

// addressPath returns the path and parameters that reproduce q, e.g. "mc.example.com?port=25566".
func addressPath(q models.ServerQuery) string {
	params := url.Values{}
	if q.Port != 0 {
		params.Set("port", strconv.Itoa(int(q.Port)))
	}
	if q.QueryPort != 0 {
		params.Set("query", strconv.Itoa(int(q.QueryPort)))
	}
	if q.Family == models.FamilyBedrock {
		params.Set("is_bedrock", "true")
	}

	path := url.PathEscape(q.Host)
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}

// publicURL returns the base URL for rendered links.
func (s *Server) publicURL(r *http.Request) string {
	if s.baseURL != "" {
		return s.baseURL
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if s.trustProxy {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
	}
	return scheme + "://" + r.Host
}
