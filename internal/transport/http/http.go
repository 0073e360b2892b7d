package httptransport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/corray333/backend-labs/delivery/internal/metrics"
	"github.com/corray333/backend-labs/delivery/internal/otel"
	"github.com/corray333/backend-labs/delivery/internal/service/models/auditlog"
	"github.com/corray333/backend-labs/delivery/internal/service/models/deliveryperson"
	"github.com/corray333/backend-labs/delivery/internal/service/models/order"
	"github.com/corray333/backend-labs/delivery/internal/service/services/deliverypersonsvc"
	"github.com/corray333/backend-labs/delivery/internal/service/services/matchingsvc"
	"github.com/corray333/backend-labs/delivery/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/delivery/internal/transport/http/v1/delivery"
	"github.com/corray333/backend-labs/delivery/internal/transport/http/v1/deliverypersons"
	"github.com/corray333/backend-labs/delivery/internal/transport/http/v1/items"
	"github.com/corray333/backend-labs/delivery/internal/transport/http/v1/orders"
	"github.com/corray333/backend-labs/delivery/internal/transport/http/v1/payment"
	"github.com/corray333/backend-labs/delivery/pkg/http/middleware/trace"
	"github.com/corray333/backend-labs/delivery/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type orderService interface {
	CreateOrder(ctx context.Context, model ordersvc.CreateOrderModel) (*order.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	GetAuditTrail(ctx context.Context, id uuid.UUID) ([]auditlog.AuditLogOrder, error)

	AddOrderItem(ctx context.Context, orderID uuid.UUID, item ordersvc.ItemModel) (order.OrderItem, error)
	UpdateOrderItem(
		ctx context.Context,
		orderID, orderItemID uuid.UUID,
		quantity int,
		price decimal.Decimal,
	) (*order.Order, error)
	RemoveOrderItem(ctx context.Context, orderID, orderItemID uuid.UUID) (*order.Order, error)

	SetPayment(ctx context.Context, orderID uuid.UUID, model ordersvc.SetPaymentModel) (order.Payment, error)
	CompletePayment(ctx context.Context, orderID uuid.UUID) (*order.Order, error)
	FailPayment(ctx context.Context, orderID uuid.UUID, reason string) (*order.Order, error)

	CreateDelivery(ctx context.Context, orderID uuid.UUID) (order.Delivery, error)
	AssignDeliveryPerson(
		ctx context.Context,
		orderID uuid.UUID,
		estimatedDuration time.Duration,
	) (*matchingsvc.Match, error)
	CompleteDelivery(ctx context.Context, orderID uuid.UUID) (*order.Order, error)
}

type deliveryPersonService interface {
	Register(ctx context.Context, model deliverypersonsvc.RegisterModel) (*deliveryperson.DeliveryPerson, error)
	List(ctx context.Context) ([]deliveryperson.DeliveryPerson, error)
	AddAvailability(
		ctx context.Context,
		deliveryPersonID uuid.UUID,
		start, end time.Time,
	) (*deliveryperson.Availability, error)
}

type HTTPTransport struct {
	server            *http.Server
	router            *chi.Mux
	orderSvc          orderService
	deliveryPersonSvc deliveryPersonService
}

func NewHTTPTransport(orderSvc orderService, deliveryPersonSvc deliveryPersonService) *HTTPTransport {
	router := newRouter()
	server := newServer(router)

	return &HTTPTransport{
		server:            server,
		router:            router,
		orderSvc:          orderSvc,
		deliveryPersonSvc: deliveryPersonSvc,
	}
}

// Run blocks until the server stops. A graceful Shutdown is not an error.
func (h *HTTPTransport) Run() error {
	slog.Info("HTTP server listening", "addr", h.server.Addr)
	if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// Handler exposes the router, mostly for tests.
func (h *HTTPTransport) Handler() http.Handler {
	return h.router
}

// RegisterRoutes registers the routes for the HTTPTransport.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Handle("/metrics", promhttp.Handler())

	h.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.createOrder)
			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", h.getOrder)
				r.Delete("/", h.deleteOrder)
				r.Get("/audit", h.auditTrail)

				r.Post("/items", h.addItem)
				r.Put("/items/{itemId}", h.updateItem)
				r.Delete("/items/{itemId}", h.removeItem)

				r.Post("/payment", h.setPayment)
				r.Post("/payment/complete", h.completePayment)
				r.Post("/payment/fail", h.failPayment)

				r.Post("/delivery", h.createDelivery)
				r.Post("/delivery/assign", h.assignDelivery)
				r.Post("/delivery/complete", h.completeDelivery)
			})
		})

		r.Route("/delivery-persons", func(r chi.Router) {
			r.Post("/", h.registerDeliveryPerson)
			r.Get("/", h.listDeliveryPersons)
			r.Post("/{deliveryPersonId}/availabilities", h.addAvailability)
		})
	})
}

func (h *HTTPTransport) createOrder(w http.ResponseWriter, r *http.Request) {
	orders.Create(w, r, h.orderSvc)
}

func (h *HTTPTransport) getOrder(w http.ResponseWriter, r *http.Request) {
	orders.Get(w, r, h.orderSvc)
}

func (h *HTTPTransport) deleteOrder(w http.ResponseWriter, r *http.Request) {
	orders.Delete(w, r, h.orderSvc)
}

func (h *HTTPTransport) auditTrail(w http.ResponseWriter, r *http.Request) {
	orders.AuditTrail(w, r, h.orderSvc)
}

func (h *HTTPTransport) addItem(w http.ResponseWriter, r *http.Request) {
	items.Add(w, r, h.orderSvc)
}

func (h *HTTPTransport) updateItem(w http.ResponseWriter, r *http.Request) {
	items.Update(w, r, h.orderSvc)
}

func (h *HTTPTransport) removeItem(w http.ResponseWriter, r *http.Request) {
	items.Remove(w, r, h.orderSvc)
}

func (h *HTTPTransport) setPayment(w http.ResponseWriter, r *http.Request) {
	payment.Set(w, r, h.orderSvc)
}

func (h *HTTPTransport) completePayment(w http.ResponseWriter, r *http.Request) {
	payment.Complete(w, r, h.orderSvc)
}

func (h *HTTPTransport) failPayment(w http.ResponseWriter, r *http.Request) {
	payment.Fail(w, r, h.orderSvc)
}

func (h *HTTPTransport) createDelivery(w http.ResponseWriter, r *http.Request) {
	delivery.Create(w, r, h.orderSvc)
}

func (h *HTTPTransport) assignDelivery(w http.ResponseWriter, r *http.Request) {
	delivery.Assign(w, r, h.orderSvc)
}

func (h *HTTPTransport) completeDelivery(w http.ResponseWriter, r *http.Request) {
	delivery.Complete(w, r, h.orderSvc)
}

func (h *HTTPTransport) registerDeliveryPerson(w http.ResponseWriter, r *http.Request) {
	deliverypersons.Register(w, r, h.deliveryPersonSvc)
}

func (h *HTTPTransport) listDeliveryPersons(w http.ResponseWriter, r *http.Request) {
	deliverypersons.List(w, r, h.deliveryPersonSvc)
}

func (h *HTTPTransport) addAvailability(w http.ResponseWriter, r *http.Request) {
	deliverypersons.AddAvailability(w, r, h.deliveryPersonSvc)
}

func newRouter() *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(trace.NewTraceMiddleware(otel.ServiceName))
	router.Use(metrics.NewMetricsMiddleware)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))

	c := cors.New(cors.Options{
		AllowedOrigins:   viper.GetStringSlice("server.http.cors.allowed_origins"),
		AllowedMethods:   viper.GetStringSlice("server.http.cors.allowed_methods"),
		AllowedHeaders:   viper.GetStringSlice("server.http.cors.allowed_headers"),
		ExposedHeaders:   viper.GetStringSlice("server.http.cors.exposed_headers"),
		AllowCredentials: viper.GetBool("server.http.cors.allow_credentials"),
		MaxAge:           viper.GetInt("server.http.cors.max_age"),
	})

	router.Use(c.Handler)

	return router
}

func newServer(router http.Handler) *http.Server {
	port := viper.GetString("server.http.port")
	if port == "" {
		port = "8080"
	}

	return &http.Server{
		Addr:              "0.0.0.0:" + port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
