package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Proxy forwards a request to a backend service and relays the
// response. One outbound request, fixed timeout, no retries: a slow
// upstream surfaces as 504 and the client decides what to do.
type Proxy struct {
	client *http.Client
}

func NewProxy(timeout time.Duration) *Proxy {
	return &Proxy{client: &http.Client{Timeout: timeout}}
}

// Forward sends the incoming request to baseURL, preserving method,
// path, query string, body and auth/identity headers, then relays the
// backend's status code and body.
func (p *Proxy) Forward(w http.ResponseWriter, r *http.Request, baseURL string) {
	target := baseURL + r.URL.RequestURI()

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	// Only the bearer token crosses the boundary. X-User-* identity
	// headers are an internal-only trust path and must never be
	// relayed from the public edge.
	copyHeader(r.Header, req.Header, "Authorization")
	copyHeader(r.Header, req.Header, "Content-Type")

	resp, err := p.client.Do(req)
	if err != nil {
		status, detail := classifyTransportError(err)
		log.Error().Err(err).Str("target", target).Int("status", status).Msg("upstream request failed")
		writeError(w, status, detail)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Warn().Err(err).Str("target", target).Msg("relaying response body failed")
	}
}

func classifyTransportError(err error) (int, string) {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return http.StatusGatewayTimeout, "service did not respond"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return http.StatusServiceUnavailable, "service unavailable"
	}
	return http.StatusInternalServerError, "internal server error"
}

func copyHeader(src, dst http.Header, key string) {
	if v := src.Get(key); v != "" {
		dst.Set(key, v)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
