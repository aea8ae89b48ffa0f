package http

import (
	"net/http"

	"github.com/SajivJess/Wally/pkg/httputil"
)

type rootResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

type serviceHealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// rootHandler handles GET /api/
func rootHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, rootResponse{
		Message: "Wally SmartCommerce+ API is running",
		Status:  "healthy",
	})
}

// serviceHealthHandler handles GET /api/health. It only reports that the
// process is serving; dependency checks live under /health/ready.
func serviceHealthHandler(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, serviceHealthResponse{Status: "healthy", Service: service})
	}
}
