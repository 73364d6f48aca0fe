package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/storefront-api/internal/application/auth"
	"github.com/storefront-api/internal/application/cart"
	"github.com/storefront-api/internal/application/notification"
	"github.com/storefront-api/internal/application/order"
	"github.com/storefront-api/internal/application/otp"
	"github.com/storefront-api/internal/application/user"
	"github.com/storefront-api/internal/config"
	"github.com/storefront-api/internal/transport/http/handler"
	appmiddleware "github.com/storefront-api/internal/transport/http/middleware"
	"github.com/storefront-api/internal/transport/websocket"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWTProvider)

	// 5 requests/second, burst of 10, on OTP, credential and contact endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	ledger := otp.NewLedger(otp.LedgerDeps{
		Store:       deps.OTPRepo,
		Dispatcher:  deps.Dispatcher,
		StoreName:   cfg.StoreName,
		TTL:         cfg.OTPTTL,
		MaxAttempts: cfg.OTPMaxAttempts,
		Clock:       deps.Clock,
	})
	authSvc := auth.NewService(auth.ServiceDeps{
		UserRepo:    deps.UserRepo,
		Ledger:      ledger,
		JWTProvider: deps.JWTProvider,
	})
	userSvc := user.NewService(user.ServiceDeps{UserRepo: deps.UserRepo, Ledger: ledger})
	cartSvc := cart.NewService(deps.UserRepo)
	supportSvc := notification.NewSupportService(notification.SupportDeps{
		Dispatcher:   deps.Dispatcher,
		StoreName:    cfg.StoreName,
		SupportEmail: cfg.SupportEmail,
		Location:     cfg.Location(),
		Clock:        deps.Clock,
	})
	orderDeps := order.ServiceDeps{
		PendingRepo: deps.PendingRepo,
		HistoryRepo: deps.HistoryRepo,
		UserRepo:    deps.UserRepo,
		CartRepo:    deps.UserRepo,
		Gateway:     deps.Gateway,
		Dispatcher:  deps.Dispatcher,
		Currency:    cfg.Razorpay.Currency,
		StoreName:   cfg.StoreName,
		SMSEnabled:  cfg.SMSEnabled,
		Location:    cfg.Location(),
		Clock:       deps.Clock,
	}
	if deps.Hub != nil {
		orderDeps.Publisher = deps.Hub
	}
	if deps.InvoiceStore != nil {
		orderDeps.Invoices = deps.InvoiceStore
	}
	orderSvc := order.NewService(orderDeps)

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc)
	profileH := handler.NewProfileHandler(userSvc)
	cartH := handler.NewCartHandler(cartSvc)
	orderH := handler.NewOrderHandler(orderSvc, cfg.Razorpay.KeyID, cfg.Location())
	contactH := handler.NewContactHandler(supportSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/otp/{action}", authH.OTP)
		r.With(sensitiveRL.Limit).Post("/register", authH.Register)
		r.With(sensitiveRL.Limit).Post("/login", authH.Login)
		r.With(sensitiveRL.Limit).Post("/password/{action}", authH.Password)
		r.With(sensitiveRL.Limit).Post("/contact", contactH.Submit)
		r.Post("/payments/verify", orderH.VerifyPayment)
		if deps.Hub != nil {
			r.Get("/orders/stream", websocket.NewHandler(deps.Hub, deps.JWTProvider, cfg.AllowedOrigins).ServeWS)
		}

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/profile", profileH.Get)
			r.Put("/profile", profileH.Update)
			r.Get("/wishlist", profileH.Wishlist)
			r.Post("/wishlist", profileH.ToggleWishlist)

			r.Get("/cart", cartH.View)
			r.Post("/cart", cartH.Add)
			r.Delete("/cart/{key}", cartH.Remove)

			r.Post("/orders", orderH.Create)
			r.Get("/orders", orderH.List)
			r.Get("/orders/{id}/invoice", orderH.Invoice)
			r.Get("/orders/{id}/invoice/link", orderH.InvoiceLink)
		})
	})

	return r
}
