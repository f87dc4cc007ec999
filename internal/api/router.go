package api

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/middleware"
	"github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/models"
	"github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/services"
)

type Router struct {
	feedback  *services.FeedbackService
	analytics *services.AnalyticsService
	auth      *services.AuthService
	export    *services.ExportService
	authn     *middleware.Authenticator
}

func NewRouter(
	feedback *services.FeedbackService,
	analytics *services.AnalyticsService,
	auth *services.AuthService,
	export *services.ExportService,
	authn *middleware.Authenticator,
) *Router {
	return &Router{feedback: feedback, analytics: analytics, auth: auth, export: export, authn: authn}
}

func (rt *Router) Register(mux *http.ServeMux) {
	user := func(h http.HandlerFunc) http.Handler { return rt.authn.RequireUser(h) }
	admin := func(h http.HandlerFunc) http.Handler { return rt.authn.RequireAdmin(h) }

	mux.HandleFunc("GET /health", rt.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/auth/register", rt.handleRegister)
	mux.HandleFunc("POST /api/auth/login", rt.handleLogin)
	mux.HandleFunc("GET /api/questions", rt.handleQuestions)

	mux.HandleFunc("POST /api/feedback/guest", rt.handleGuestFeedback)
	mux.Handle("POST /api/feedback", user(rt.handleUserFeedback))
	mux.Handle("GET /api/feedback/user/{id}", user(rt.handleUserFeedbacks))
	mux.Handle("GET /api/feedback/{id}", user(rt.handleGetFeedback))
	mux.Handle("GET /api/analytics", user(rt.handleUserAnalytics))

	mux.Handle("DELETE /api/feedback/{id}", admin(rt.handleDeleteFeedback))
	mux.Handle("GET /api/admin/analytics", admin(rt.handleGlobalAnalytics))
	mux.Handle("GET /api/admin/feedbacks", admin(rt.handleAllFeedbacks))
	mux.Handle("GET /api/admin/feedbacks/export", admin(rt.handleExport))
}

// Handler returns the fully wrapped application handler.
func (rt *Router) Handler(corsOrigin string) http.Handler {
	mux := http.NewServeMux()
	rt.Register(mux)
	var h http.Handler = mux
	h = middleware.Observe(h)
	h = middleware.NoStore(h)
	h = middleware.SecureHeaders(h)
	h = middleware.CORS(corsOrigin)(h)
	return middleware.RequestID(h)
}

func requesterFrom(r *http.Request) services.Requester {
	c, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return services.Requester{}
	}
	return services.Requester{UserID: c.UID, Role: c.Role}
}

// GET /health
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "name": "Smart Feedback API"})
}

// POST /api/auth/register
func (rt *Router) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := rt.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered", "id": id})
}

// POST /api/auth/login
func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := rt.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /api/questions
func (rt *Router) handleQuestions(w http.ResponseWriter, r *http.Request) {
	qs, err := rt.feedback.ListQuestions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qs)
}

type submitResponse struct {
	Message string `json:"message"`
	*services.SubmitResult
}

func (rt *Router) submit(w http.ResponseWriter, r *http.Request, req services.SubmitRequest) {
	res, err := rt.feedback.Submit(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{Message: "Feedback submitted", SubmitResult: res})
}

// POST /api/feedback/guest
func (rt *Router) handleGuestFeedback(w http.ResponseWriter, r *http.Request) {
	var p submitPayload
	if err := decodeAndValidate(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	req := p.toSubmitRequest()
	if req.Kind == "" {
		req.Kind = models.SubmitterGuest
	}
	if req.Kind != models.SubmitterGuest {
		writeMessage(w, http.StatusBadRequest, "Invalid submitter_type")
		return
	}
	rt.submit(w, r, req)
}

// POST /api/feedback
// A user-kind submission is always attributed to the token holder.
func (rt *Router) handleUserFeedback(w http.ResponseWriter, r *http.Request) {
	var p submitPayload
	if err := decodeAndValidate(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	req := p.toSubmitRequest()
	if req.Kind == "" {
		req.Kind = models.SubmitterUser
	}
	if req.Kind == models.SubmitterUser {
		me := requesterFrom(r)
		switch strings.TrimSpace(req.SubmitterID) {
		case "":
			req.SubmitterID = me.UserID
		case me.UserID:
		default:
			writeMessage(w, http.StatusForbidden, "Access denied")
			return
		}
	}
	rt.submit(w, r, req)
}

// GET /api/feedback/user/{id}
func (rt *Router) handleUserFeedbacks(w http.ResponseWriter, r *http.Request) {
	subs, err := rt.feedback.ListUserFeedbacks(r.Context(), requesterFrom(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// GET /api/feedback/{id}
func (rt *Router) handleGetFeedback(w http.ResponseWriter, r *http.Request) {
	sub, err := rt.feedback.GetFeedback(r.Context(), requesterFrom(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// GET /api/analytics
func (rt *Router) handleUserAnalytics(w http.ResponseWriter, r *http.Request) {
	sum, err := rt.analytics.UserAnalytics(r.Context(), requesterFrom(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// DELETE /api/feedback/{id}
func (rt *Router) handleDeleteFeedback(w http.ResponseWriter, r *http.Request) {
	if err := rt.feedback.DeleteFeedback(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Feedback deleted")
}

// GET /api/admin/analytics
func (rt *Router) handleGlobalAnalytics(w http.ResponseWriter, r *http.Request) {
	sum, err := rt.analytics.GlobalAnalytics(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// GET /api/admin/feedbacks
func (rt *Router) handleAllFeedbacks(w http.ResponseWriter, r *http.Request) {
	subs, err := rt.feedback.ListAllFeedbacks(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// GET /api/admin/feedbacks/export?format=long|wide
func (rt *Router) handleExport(w http.ResponseWriter, r *http.Request) {
	res, err := rt.export.ExportCSV(r.Context(), r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+res.Filename)
	_, _ = w.Write(res.Data)
}
