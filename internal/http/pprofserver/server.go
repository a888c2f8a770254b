// Package pprofserver exposes runtime profiles on a separate listener.
package pprofserver

import (
	"crypto/subtle"
	"net"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"
)

// Config stores pprof server settings.
type Config struct {
	Addr string
	User string
	Pass string
}

var namedProfiles = []string{"heap", "goroutine", "allocs", "block", "mutex", "threadcreate"}

// NewServer returns a server for cfg.Addr, or nil when Addr is empty.
func NewServer(cfg Config) *http.Server {
	if cfg.Addr == "" {
		return nil
	}
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           Handler(cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Handler returns pprof handlers. Loopback callers skip basic auth.
func Handler(cfg Config) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	for _, name := range namedProfiles {
		mux.Handle("/debug/pprof/"+name, pprof.Handler(name))
	}
	return authOrLocalOnly(mux, cfg)
}

func authOrLocalOnly(next http.Handler, cfg Config) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isLoopback(r.RemoteAddr) || authorized(r, cfg) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("WWW-Authenticate", `Basic realm="pprof"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
}

func authorized(r *http.Request, cfg Config) bool {
	if cfg.User == "" || cfg.Pass == "" {
		return false
	}
	u, p, ok := r.BasicAuth()
	return ok && secureEq(u, cfg.User) && secureEq(p, cfg.Pass)
}

func secureEq(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func isLoopback(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	ip := net.ParseIP(strings.TrimSpace(host))
	return ip != nil && ip.IsLoopback()
}
