package server

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
)

// frameBlockingHeaders are response headers that prevent a page from
// being rendered inside an iframe. Stream backends commonly set them;
// the proxy strips them so the viewer can be embedded in the dashboard.
var frameBlockingHeaders = []string{
	"X-Frame-Options",
	"Content-Security-Policy",
	"X-Content-Type-Options",
}

// handleViewerProxy forwards a request to an agent's stream backend,
// making the response safe to embed.
//
// The route is /viewer/{agent}/{path...}: the agent's current session URL
// supplies the upstream origin, the wildcard path and the request's query
// string are forwarded as-is. Only the origin from the session is ever
// contacted, so the proxy cannot be steered at arbitrary hosts.
func (s *Server) handleViewerProxy(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agent")
	c := s.cfg.Hub.Get(agentID)
	if c == nil {
		http.Error(w, fmt.Sprintf("no viewport for agent %q", agentID), http.StatusNotFound)
		return
	}

	upstream, err := url.Parse(c.Session().URL)
	if err != nil || upstream.Host == "" {
		http.Error(w, "stream target unavailable", http.StatusBadGateway)
		return
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Scheme = upstream.Scheme
			pr.Out.URL.Host = upstream.Host
			pr.Out.URL.Path = "/" + r.PathValue("path")
			pr.Out.URL.RawQuery = r.URL.RawQuery
			pr.Out.Host = upstream.Host
		},
		ModifyResponse: func(resp *http.Response) error {
			for _, h := range frameBlockingHeaders {
				resp.Header.Del(h)
			}
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			s.logger.Warn("viewer proxy failed",
				"agent", agentID,
				"upstream", upstream.Host,
				"error", err.Error(),
			)
			http.Error(w, "stream backend unreachable", http.StatusBadGateway)
		},
	}
	proxy.ServeHTTP(w, r)
}
