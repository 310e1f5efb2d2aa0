package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/taskhive/taskhive-be/internal/api/handlers"
	"github.com/taskhive/taskhive-be/internal/auth"
	"github.com/taskhive/taskhive-be/internal/services"
	"github.com/taskhive/taskhive-be/internal/websocket"
)

// Deps bundles everything the router needs.
type Deps struct {
	JWT          *auth.Manager
	Hub          *websocket.Hub
	Users        services.UserServiceProvider
	Tasks        services.TaskServiceProvider
	Categories   services.CategoryServiceProvider
	Transactions services.TransactionServiceProvider
	Events       services.EventServiceProvider

	FrontendOrigin string
}

// NewRouter creates and configures a new Chi router.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{deps.FrontendOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(deps.Users, deps.JWT)
	taskHandler := handlers.NewTaskHandler(deps.Tasks)
	categoryHandler := handlers.NewCategoryHandler(deps.Categories, deps.Tasks)
	transactionHandler := handlers.NewTransactionHandler(deps.Transactions)
	eventHandler := handlers.NewEventHandler(deps.Events)
	wsHandler := handlers.NewWebSocketHandler(deps.Hub)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/send-otp", authHandler.SendOTP)
			r.Post("/verify-otp", authHandler.VerifyOTP)
			r.Post("/resend-otp", authHandler.ResendOTP)
			r.Post("/reset-password", authHandler.ResetPassword)

			r.Group(func(r chi.Router) {
				r.Use(deps.JWT.Middleware())
				r.Get("/me", authHandler.GetMe)
				r.Put("/profile", authHandler.UpdateProfile)
				r.Put("/change-password", authHandler.ChangePassword)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(deps.JWT.Middleware())

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", taskHandler.List)
				r.Post("/", taskHandler.Create)
				r.Get("/statistics", taskHandler.Statistics)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", taskHandler.Get)
					r.Put("/", taskHandler.Update)
					r.Delete("/", taskHandler.Delete)
					r.Put("/restore", taskHandler.Restore)
				})
			})

			r.Route("/categories", func(r chi.Router) {
				r.Get("/", categoryHandler.List)
				r.Post("/", categoryHandler.Create)
				r.Get("/statistics/compare", categoryHandler.Compare)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", categoryHandler.Get)
					r.Put("/", categoryHandler.Update)
					r.Delete("/", categoryHandler.Delete)
					r.Put("/restore", categoryHandler.Restore)
					r.Get("/statistics", categoryHandler.Statistics)
				})
			})

			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", transactionHandler.List)
				r.Post("/", transactionHandler.Create)
				r.Get("/summary", transactionHandler.Summary)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", transactionHandler.Get)
					r.Put("/", transactionHandler.Update)
					r.Delete("/", transactionHandler.Delete)
					r.Put("/restore", transactionHandler.Restore)
				})
			})

			r.Get("/events", eventHandler.GetRecent)
			r.Get("/ws", wsHandler.Serve)
		})
	})

	return r
}
