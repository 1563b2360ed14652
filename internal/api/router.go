package api

import (
	"log"
	"net/http"
	"strings"

	"github.com/example/storefront-orders/internal/api/middleware"
	"github.com/example/storefront-orders/internal/auth"
)

type RouterConfig struct {
	Handlers *Handlers
	Webhook  http.Handler
	Verifier *auth.Verifier
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	authed := middleware.AuthMiddleware(cfg.Verifier)
	admin := func(next http.Handler) http.Handler {
		return authed(middleware.RequireRole(auth.RoleAdmin)(next))
	}
	handlers := cfg.Handlers

	// Checkout
	mux.Handle("/checkout", authed(methodHandler(map[string]http.HandlerFunc{
		http.MethodPost: handlers.Checkout,
	})))

	// Orders
	mux.Handle("/orders", authed(methodHandler(map[string]http.HandlerFunc{
		http.MethodGet: handlers.GetOrders,
	})))
	mux.Handle("/orders/", authed(methodHandler(map[string]http.HandlerFunc{
		http.MethodGet: handlers.GetOrder,
	})))

	// Payments
	mux.Handle("/payments/intent", authed(methodHandler(map[string]http.HandlerFunc{
		http.MethodPost: handlers.CreatePaymentIntent,
	})))
	mux.Handle("/payments/confirm", authed(methodHandler(map[string]http.HandlerFunc{
		http.MethodPost: handlers.ConfirmPayment,
	})))

	// Admin back-office
	mux.Handle("/admin/orders", admin(methodHandler(map[string]http.HandlerFunc{
		http.MethodGet: handlers.AdminListOrders,
	})))
	mux.Handle("/admin/orders/", admin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/status") && r.Method == http.MethodPatch:
			handlers.AdminUpdateStatus(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))

	// Provider webhook: authenticated by its signature, not a bearer token.
	if cfg.Webhook != nil {
		mux.Handle("/webhooks/payment", methodHandler(map[string]http.HandlerFunc{
			http.MethodPost: cfg.Webhook.ServeHTTP,
		}))
	}

	return withLogging(mux)
}

func methodHandler(methods map[string]http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := methods[r.Method]; ok {
			handler(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[API] %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
