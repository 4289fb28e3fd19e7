package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

const (
	loginPath     = "/login/"
	dashboardPath = "/dashboard/"
)

type route struct {
	method  string
	path    string
	handler http.HandlerFunc
}

func (s *HTTPServer) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.recoverMiddleware, s.loggingMiddleware, s.metrics.Middleware)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	requireToken := s.requireIdentity(bearerResolver{users: s.users}, s.denyJSON)
	requireSession := s.requireIdentity(sessionResolver{users: s.users}, s.denyRedirect)

	public := []route{
		{http.MethodPost, "/api/auth/register", s.handleRegister},
		{http.MethodPost, "/api/auth/login", s.handleLogin},
		{http.MethodPost, "/api/auth/refresh", s.handleRefresh},
		{http.MethodPost, "/web/login", s.handleWebLogin},
		{http.MethodPost, "/web/register", s.handleWebRegister},
	}
	for _, rt := range public {
		r.Handle(rt.path, s.limiter.Middleware(rt.handler)).Methods(rt.method)
	}

	api := []route{
		{http.MethodPost, "/api/auth/logout", s.handleLogout},
		{http.MethodGet, "/api/auth/profile", s.handleProfile},
		{http.MethodGet, "/api/imagesets", s.handleListImageSets},
		{http.MethodPost, "/api/imagesets", s.handleCreateImageSet},
		{http.MethodGet, "/api/imagesets/{id:[0-9]+}", s.handleGetImageSet},
		{http.MethodPut, "/api/imagesets/{id:[0-9]+}", s.handleUpdateImageSet},
		{http.MethodPatch, "/api/imagesets/{id:[0-9]+}", s.handleUpdateImageSet},
		{http.MethodDelete, "/api/imagesets/{id:[0-9]+}", s.handleDeleteImageSet},
		{http.MethodPost, "/api/imagesets/{id:[0-9]+}/images", s.handleAddImage},
		{http.MethodDelete, "/api/images/{id:[0-9]+}", s.handleDeleteImage},
	}
	for _, rt := range api {
		r.Handle(rt.path, requireToken(rt.handler)).Methods(rt.method)
	}

	web := []route{
		{http.MethodGet, dashboardPath, s.handleDashboard},
		{http.MethodGet, "/browse/", s.handleDashboard},
		{http.MethodPost, "/upload/", s.handleUpload},
	}
	for _, rt := range web {
		r.Handle(rt.path, requireSession(rt.handler)).Methods(rt.method)
	}
	r.HandleFunc("/logout/", s.handleWebLogout).Methods(http.MethodGet, http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Code: "not_found", Error: "Not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Code: "method_not_allowed", Error: "Method not allowed"})
	})
	return r
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
