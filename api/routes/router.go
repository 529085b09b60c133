package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/feiralivre/marketplace-backend/api/controllers"
	"github.com/feiralivre/marketplace-backend/api/middleware"
	cartsvc "github.com/feiralivre/marketplace-backend/internal/cart"
	checkoutsvc "github.com/feiralivre/marketplace-backend/internal/checkout"
	"github.com/feiralivre/marketplace-backend/internal/notifications"
	ordersvc "github.com/feiralivre/marketplace-backend/internal/orders"
	"github.com/feiralivre/marketplace-backend/pkg/config"
	"github.com/feiralivre/marketplace-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type Services struct {
	Cart          cartsvc.Service
	Checkout      checkoutsvc.Service
	Orders        ordersvc.Service
	Notifications notifications.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, db pinger, cache pinger, svcs Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, db, cache))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Extract(logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.GetCart(svcs.Cart, logg))
			r.Post("/items", controllers.AddCartItem(svcs.Cart, logg))
			r.Patch("/items/{itemId}", controllers.UpdateCartItem(svcs.Cart, logg))
			r.Delete("/items/{itemId}", controllers.RemoveCartItem(svcs.Cart, logg))
			r.Delete("/", controllers.ClearCart(svcs.Cart, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser(logg))

			r.Post("/checkout", controllers.Checkout(svcs.Checkout, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.ListMyOrders(svcs.Orders, logg))
				r.Get("/{orderId}", controllers.GetOrder(svcs.Orders, logg))
				r.Post("/{orderId}/status", controllers.TransitionOrder(svcs.Orders, logg))
			})

			r.Get("/vendor/orders", controllers.ListVendorOrders(svcs.Orders, logg))

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(svcs.Notifications, logg))
				r.Get("/unread-count", controllers.UnreadNotificationsCount(svcs.Notifications, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(svcs.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(svcs.Notifications, logg))
			})
		})
	})

	return r
}
