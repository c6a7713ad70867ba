package httpx

import (
	"net/http"
	"strings"

	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/service/gate"
)

// Protected prefixes require a granted gate decision. Exempt prefixes are
// webhook receivers, which bypass identity and gate checks entirely so an
// upstream delivery is never blocked by our own access state.
var (
	protectedPrefixes = []string{"/team", "/billing", "/settings", "/dashboard"}
	exemptPrefixes    = []string{"/webhooks/"}
)

func gateProtectedPath(path string) bool {
	for _, prefix := range exemptPrefixes {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	for _, prefix := range protectedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// withGate enforces the access gate on protected paths. Denied answers 403
// with a redirect target; an unresolved decision answers 503 so clients
// retry rather than treating the moment as a denial.
func (r *Router) withGate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if !gateProtectedPath(req.URL.Path) {
			next(w, req)
			return
		}
		info, ok := authInfoFromContext(req.Context())
		if !ok {
			r.logger.Error("auth context missing for gated route", "path", req.URL.Path)
			writeError(w, http.StatusInternalServerError, "authorization context missing")
			return
		}
		decision := r.gate.CheckUser(req.Context(), info.User)
		r.recordGateDecision(string(decision.State))
		switch decision.State {
		case gate.StateGranted:
			next(w, req)
		case gate.StateDenied:
			writeJSON(w, http.StatusForbidden, decision)
		default:
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusServiceUnavailable, decision)
		}
	}
}
