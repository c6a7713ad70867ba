package httpx

import (
	"bufio"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/domain"
	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/repository"
	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/service/auth"
	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/service/billing"
	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/service/gate"
	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/service/tenant"
	"github.com/Tallen231210/sequ3nce-ai-sub003/internal/ws"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	auth     auth.Service
	tenant   tenant.Service
	billing  *billing.Service
	hook     *billing.Webhook
	gate     *gate.Service
	verifier auth.IdentityVerifier
	hub      *ws.Hub
	upgrader websocket.Upgrader
	limiter  RateLimiter
	dbHealth func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
	gateDecisions      *prometheus.CounterVec
	webhookEvents      *prometheus.CounterVec
	provisionTotal     *prometheus.CounterVec
}

const (
	rateWindowDefault    = time.Minute
	rateWindowRealtime   = 30 * time.Second
	rateLimitLogin       = 12
	rateLimitUserRead    = 120
	rateLimitUserWrite   = 60
	rateLimitRealtime    = 30
	healthCheckTimeout   = 2 * time.Second
	webhookBodyLimit     = 1 << 20
	sseHeartbeatInterval = 15 * time.Second
	oidcStateCookie      = "sequence_oidc_state"
	oidcStateTTL         = 10 * time.Minute
)

// NewRouter assembles routes with dependencies. verifier may be nil when SSO
// is not configured; the OIDC endpoints then answer 503.
func NewRouter(logger *slog.Logger, authSvc auth.Service, tenantSvc tenant.Service, billingSvc *billing.Service, hook *billing.Webhook, gateSvc *gate.Service, verifier auth.IdentityVerifier, hub *ws.Hub, limiter RateLimiter, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		logger:   logger,
		auth:     authSvc,
		tenant:   tenantSvc,
		billing:  billingSvc,
		hook:     hook,
		gate:     gateSvc,
		verifier: verifier,
		hub:      hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:  limiter,
		dbHealth: dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("healthz", r.handleHealthz))
	r.mux.HandleFunc("/readyz", r.audit("readyz", r.handleReadyz))
	r.mux.Handle("/metrics", promhttp.Handler())

	r.mux.HandleFunc("/auth/login", r.audit("auth_login", r.withRateLimit("auth_login", rateLimitLogin, rateWindowDefault, rateLimitKeyIP, r.handleLogin)))
	r.mux.HandleFunc("/auth/oidc/login", r.audit("oidc_login", r.withRateLimit("oidc_login", rateLimitLogin, rateWindowDefault, rateLimitKeyIP, r.handleOIDCLogin)))
	r.mux.HandleFunc("/auth/oidc/callback", r.audit("oidc_callback", r.withRateLimit("oidc_callback", rateLimitLogin, rateWindowDefault, rateLimitKeyIP, r.handleOIDCCallback)))

	r.mux.HandleFunc("/me", r.audit("me", r.handlerAuthRate("me", rateLimitUserRead, rateWindowDefault, r.handleMe)))
	r.mux.HandleFunc("/gate", r.audit("gate", r.handlerAuthRate("gate", rateLimitUserRead, rateWindowDefault, r.handleGate)))
	r.mux.HandleFunc("/gate/stream", r.audit("gate_stream", r.handlerAuthRate("gate_stream", rateLimitRealtime, rateWindowRealtime, r.handleGateStream)))
	r.mux.HandleFunc("/ws", r.audit("ws", r.withRateLimit("ws", rateLimitRealtime, rateWindowRealtime, rateLimitKeyIP, r.handleWS)))

	r.mux.HandleFunc("/team", r.audit("team", r.handlerAuthRate("team", rateLimitUserWrite, rateWindowDefault, r.withGate(r.handleTeam))))
	r.mux.HandleFunc("/billing/snapshot", r.audit("billing_snapshot", r.handlerAuthRate("billing_snapshot", rateLimitUserRead, rateWindowDefault, r.withGate(r.handleBillingSnapshot))))
	r.mux.HandleFunc("/billing/refresh", r.audit("billing_refresh", r.handlerAuthRate("billing_refresh", rateLimitUserWrite, rateWindowDefault, r.withGate(r.handleBillingRefresh))))

	// Webhook deliveries bypass auth, gate, and rate limiting; the
	// signature check is the only admission control.
	r.mux.HandleFunc("/webhooks/", r.audit("webhooks", r.handleWebhooks))
}

func (r *Router) handleWebhooks(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.TrimPrefix(req.URL.Path, "/webhooks/")
	if trimmed == "billing" {
		r.handleBillingWebhook(w, req)
		return
	}
	r.notFound(w)
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		IDToken    string `json:"id_token"`
		ExternalID string `json:"external_id"`
		Email      string `json:"email"`
		Name       string `json:"name"`
		TeamName   string `json:"team_name"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if payload.IDToken != "" {
		if r.verifier == nil {
			writeError(w, http.StatusServiceUnavailable, "sso not configured")
			return
		}
		claims, err := r.verifier.VerifyIDToken(req.Context(), payload.IDToken)
		if err != nil {
			r.logger.Warn("id token verification failed", "error", err)
			writeError(w, http.StatusUnauthorized, "authentication failed")
			return
		}
		r.completeLogin(w, req, claims, payload.TeamName)
		return
	}
	// Raw identity assertions are accepted only while no identity provider
	// is configured.
	if r.verifier != nil {
		writeError(w, http.StatusBadRequest, "id_token is required")
		return
	}
	claims := auth.IdentityClaims{Subject: payload.ExternalID, Email: payload.Email, Name: payload.Name}
	r.completeLogin(w, req, claims, payload.TeamName)
}

// completeLogin provisions the tenant for a verified identity and issues a
// session. Shared by the direct login endpoint and the OIDC callback.
func (r *Router) completeLogin(w http.ResponseWriter, req *http.Request, claims auth.IdentityClaims, teamNameHint string) {
	membership, err := r.tenant.EnsureTenant(req.Context(), tenant.EnsureTenantInput{
		ExternalID:   claims.Subject,
		Email:        claims.Email,
		DisplayName:  claims.Name,
		TeamNameHint: teamNameHint,
	})
	if err != nil {
		r.recordProvisionOutcome("error")
		writeError(w, errStatus(err), err.Error())
		return
	}
	r.recordProvisionOutcome("ok")
	session, err := r.auth.IssueSession(membership.UserID, membership.TeamID)
	if err != nil {
		r.logger.Error("session issue failed", "error", err, "user_id", membership.UserID)
		writeError(w, http.StatusInternalServerError, "could not issue session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      session.Token,
		"expires_in": int64(session.ExpiresIn.Seconds()),
		"user_id":    membership.UserID,
		"team_id":    membership.TeamID,
	})
}

func (r *Router) handleOIDCLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	if r.verifier == nil {
		writeError(w, http.StatusServiceUnavailable, "sso not configured")
		return
	}
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     oidcStateCookie,
		Value:    state,
		Path:     "/auth/oidc",
		MaxAge:   int(oidcStateTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, req, r.verifier.AuthCodeURL(state), http.StatusFound)
}

func (r *Router) handleOIDCCallback(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	if r.verifier == nil {
		writeError(w, http.StatusServiceUnavailable, "sso not configured")
		return
	}
	query := req.URL.Query()
	if errParam := query.Get("error"); errParam != "" {
		writeError(w, http.StatusBadRequest, "authentication rejected: "+errParam)
		return
	}
	state := query.Get("state")
	cookie, err := req.Cookie(oidcStateCookie)
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
		writeError(w, http.StatusBadRequest, "state mismatch")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oidcStateCookie, Value: "", Path: "/auth/oidc", MaxAge: -1, HttpOnly: true})

	code := query.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}
	claims, err := r.verifier.Exchange(req.Context(), code)
	if err != nil {
		r.logger.Warn("oidc exchange failed", "error", err)
		writeError(w, http.StatusUnauthorized, "authentication failed")
		return
	}
	r.completeLogin(w, req, claims, "")
}

func (r *Router) handleMe(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for profile", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": userPayload(info.User)})
}

func (r *Router) handleGate(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for gate check", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	// Reports the decision without enforcing it; enforcement lives on the
	// protected prefixes. Check re-resolves the identity so a row deleted
	// after session issue surfaces as the onboarding redirect.
	writeJSON(w, http.StatusOK, r.gate.Check(req.Context(), info.User.ExternalID))
}

func (r *Router) handleGateStream(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for gate stream", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := ws.NewSSEClient(w, flusher, r.logger)
	defer client.Close()
	sess := r.gate.Subscribe(req.Context(), info.User)
	defer r.gate.Unsubscribe(sess)

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-req.Context().Done():
			return
		case <-sess.Done():
			return
		case decision := <-sess.Updates():
			if err := client.Send(gateEventPayload(decision)); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}

func (r *Router) handleWS(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	// Browsers cannot set Authorization on websocket dials, so the token
	// may arrive as a query parameter instead.
	token, err := bearerToken(req.Header.Get("Authorization"))
	if err != nil {
		token = strings.TrimSpace(req.URL.Query().Get("token"))
	}
	user, _, err := r.auth.Authorize(req.Context(), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication failed")
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	sess := r.gate.Subscribe(context.WithoutCancel(req.Context()), user)
	r.hub.Register(user.TeamID, client)

	go func() {
		for {
			select {
			case <-sess.Done():
				return
			case decision := <-sess.Updates():
				if err := client.Send(gateEventPayload(decision)); err != nil {
					return
				}
			}
		}
	}()

	go func() {
		defer func() {
			r.gate.Unsubscribe(sess)
			r.hub.Unregister(user.TeamID, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (r *Router) handleTeam(w http.ResponseWriter, req *http.Request) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for team route", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	switch req.Method {
	case http.MethodGet:
		overview, err := r.tenant.Overview(req.Context(), info.User.TeamID)
		if err != nil {
			writeError(w, errStatus(err), err.Error())
			return
		}
		members := make([]map[string]any, 0, len(overview.Members))
		for i := range overview.Members {
			members = append(members, userPayload(&overview.Members[i]))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"team":    teamPayload(overview.Team),
			"members": members,
		})
	case http.MethodPatch:
		var payload struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := r.tenant.Rename(req.Context(), info.User.TeamID, info.User.ID, payload.Name); err != nil {
			writeError(w, errStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "renamed"})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleBillingSnapshot(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for billing snapshot", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	snap, err := r.billing.Snapshot(req.Context(), info.User.TeamID)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snapshotPayload(snap))
}

func (r *Router) handleBillingRefresh(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for billing refresh", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	snap, err := r.billing.Refresh(req.Context(), info.User.TeamID)
	if err != nil {
		writeError(w, errStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snapshotPayload(snap))
}

func (r *Router) handleBillingWebhook(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	req.Body = http.MaxBytesReader(w, req.Body, webhookBodyLimit)
	payload, err := io.ReadAll(req.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read body")
		return
	}
	eventType, err := r.hook.Process(req.Context(), payload, req.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
	case errors.Is(err, billing.ErrWebhookNotConfigured):
		r.recordWebhookEvent(eventType, "not_configured")
		writeError(w, http.StatusServiceUnavailable, "webhook secret not configured")
		return
	case errors.Is(err, billing.ErrInvalidSignature):
		r.recordWebhookEvent(eventType, "invalid_signature")
		writeError(w, http.StatusBadRequest, "invalid webhook signature")
		return
	default:
		r.recordWebhookEvent(eventType, "error")
		r.logger.Error("billing webhook processing failed", "error", err, "type", eventType)
		writeError(w, http.StatusInternalServerError, "processing failed")
		return
	}
	r.recordWebhookEvent(eventType, "ok")
	r.logger.Info("billing webhook processed", "type", eventType)
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) handleReadyz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok && info.User != nil {
			actor = "user"
			fields = append(fields, "user_id", info.User.ID, "team_id", info.User.TeamID)
		} else if strings.HasPrefix(req.URL.Path, "/webhooks/") {
			actor = "webhook"
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (sr *statusRecorder) Push(target string, opts *http.PushOptions) error {
	if p, ok := sr.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

// errStatus maps service errors onto HTTP statuses. Unavailable maps to 503
// so clients treat the failure as retryable rather than as a verdict.
func errStatus(err error) int {
	switch {
	case errors.Is(err, tenant.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, tenant.ErrNotAdmin):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, repository.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func userPayload(user *domain.User) map[string]any {
	payload := map[string]any{
		"id":          user.ID,
		"external_id": user.ExternalID,
		"email":       user.Email,
		"team_id":     user.TeamID,
		"role":        user.Role,
	}
	if user.Name != "" {
		payload["name"] = user.Name
	}
	return payload
}

func teamPayload(team domain.Team) map[string]any {
	return map[string]any{
		"id":         team.ID,
		"name":       team.Name,
		"plan":       team.Plan,
		"created_at": team.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func snapshotPayload(snap domain.BillingSnapshot) map[string]any {
	return map[string]any{
		"team_id":             snap.TeamID,
		"status":              snap.Status,
		"seat_count":          snap.SeatCount,
		"active_member_count": snap.ActiveMemberCount,
		"synced_at":           snap.SyncedAt.UTC().Format(time.RFC3339Nano),
		"stale":               snap.Stale,
		"has_billing_issue":   snap.HasBillingIssue(),
		"exceeds_seats":       snap.ExceedsSeats(),
	}
}

func gateEventPayload(decision gate.Decision) []byte {
	payload, _ := json.Marshal(map[string]any{
		"type": "gate.decision",
		"data": decision,
	})
	return payload
}

// BillingEventPayload is the hub broadcast body for a refreshed snapshot.
func BillingEventPayload(snap domain.BillingSnapshot) []byte {
	payload, _ := json.Marshal(map[string]any{
		"type": "billing.updated",
		"data": snapshotPayload(snap),
	})
	return payload
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
