package http

import (
	"net/http"
	"strings"
)

// RouterConfig lists the handlers and middleware served by NewRouter.
type RouterConfig struct {
	Appointments *AppointmentHandler
	Health       *HealthHandler
	// Auth guards every /api/ route.
	Auth func(http.Handler) http.Handler
	// API middleware runs after Auth on /api/ routes only.
	API        []func(http.Handler) http.Handler
	Middleware []func(http.Handler) http.Handler
}

const appointmentsPath = "/api/appointments"

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	api := http.NewServeMux()

	if cfg.Health != nil {
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Health.Live(w, r)
		})
		mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Health.Ready(w, r)
		})
	}

	if cfg.Appointments != nil {
		api.HandleFunc(appointmentsPath, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Appointments.Create(w, r)
		})
		api.HandleFunc(appointmentsPath+"/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.Trim(strings.TrimPrefix(r.URL.Path, appointmentsPath+"/"), "/")
			if rest == "" {
				http.NotFound(w, r)
				return
			}
			if rest == "availability" {
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Appointments.Availability(w, r)
				return
			}
			if id, ok := strings.CutSuffix(rest, "/complete"); ok {
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				cfg.Appointments.Complete(w, r, id)
				return
			}
			if strings.Contains(rest, "/") {
				http.NotFound(w, r)
				return
			}
			switch r.Method {
			case http.MethodGet:
				cfg.Appointments.Get(w, r, rest)
			case http.MethodDelete:
				cfg.Appointments.Cancel(w, r, rest)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodDelete)
			}
		})
	}

	var apiHandler http.Handler = api
	apiHandler = chain(apiHandler, cfg.API)
	if cfg.Auth != nil {
		apiHandler = cfg.Auth(apiHandler)
	}
	mux.Handle("/api/", apiHandler)

	return chain(mux, cfg.Middleware)
}

// chain wraps handler so that middleware[0] runs first.
func chain(handler http.Handler, middleware []func(http.Handler) http.Handler) http.Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		if middleware[i] != nil {
			handler = middleware[i](handler)
		}
	}
	return handler
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
