package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/Leerm14/restaurant-back-end/internal/analytics"
	"github.com/Leerm14/restaurant-back-end/internal/analytics/analytics_api"
	"github.com/Leerm14/restaurant-back-end/internal/booking"
	"github.com/Leerm14/restaurant-back-end/internal/booking/booking_api"
	bookingdb "github.com/Leerm14/restaurant-back-end/internal/booking/db"
	bookingredis "github.com/Leerm14/restaurant-back-end/internal/booking/redis"
	"github.com/Leerm14/restaurant-back-end/internal/config"
	"github.com/Leerm14/restaurant-back-end/internal/database"
	"github.com/Leerm14/restaurant-back-end/internal/database/migrations"
	"github.com/Leerm14/restaurant-back-end/internal/directory"
	"github.com/Leerm14/restaurant-back-end/internal/kafka"
	"github.com/Leerm14/restaurant-back-end/internal/logger"
	"github.com/Leerm14/restaurant-back-end/internal/order"
	orderdb "github.com/Leerm14/restaurant-back-end/internal/order/db"
	"github.com/Leerm14/restaurant-back-end/internal/order/order_api"
	"github.com/Leerm14/restaurant-back-end/internal/payment"
	paymentdb "github.com/Leerm14/restaurant-back-end/internal/payment/db"
	"github.com/Leerm14/restaurant-back-end/internal/payment/payment_api"
	"github.com/Leerm14/restaurant-back-end/internal/tables"
	tablesdb "github.com/Leerm14/restaurant-back-end/internal/tables/db"
	"github.com/Leerm14/restaurant-back-end/internal/tables/table_api"
)

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting restaurant core service")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	bunDB, err := database.Connect(cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := runner.MigrateUp(); err != nil {
		log.Fatal("DATABASE", "migrations failed: "+err.Error())
	}
	log.Info("DATABASE", "Schema migrations applied")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	var tableLock *bookingredis.Redis
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Redis unavailable, booking requests fall back to database locking: %v", err))
	} else {
		tableLock = bookingredis.NewRedis(redisClient, cfg.Redis.TableLockTTL)
		log.Info("REDIS", "Redis connection successful, table locks enabled")
	}
	defer redisClient.Close()

	var producer *kafka.Producer
	var gatewayConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		requiredTopics := []string{
			cfg.Kafka.Topics.BookingEvents,
			cfg.Kafka.Topics.OrderEvents,
			cfg.Kafka.Topics.PaymentEvents,
			cfg.Kafka.Topics.GatewayEvents,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer = kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
		gatewayConsumer = kafka.NewGatewayConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
		defer gatewayConsumer.Close()
		log.Info("KAFKA", "Kafka producer and gateway consumer initialized")
	} else {
		log.Warn("KAFKA", "Kafka disabled, lifecycle events will not be published")
	}

	tablesStore := tablesdb.New(bunDB)
	bookingStore := bookingdb.New(bunDB)
	orderStore := orderdb.New(bunDB)
	paymentStore := paymentdb.New(bunDB)
	dir := directory.New(bunDB)

	var stripeGateway *payment.StripeGateway
	if cfg.Stripe.SecretKey != "" {
		stripeGateway, err = payment.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.Currency, log)
		if err != nil {
			log.Fatal("STRIPE", err.Error())
		}
	} else {
		log.Warn("STRIPE", "STRIPE_SECRET_KEY not set, card payments disabled")
	}

	tableService := tables.NewService(tablesStore, bookingStore, log)
	bookingService := booking.NewService(bookingStore, tablesStore, dir, bunDB, tableLock, producer, log)
	orderService := order.NewService(orderStore, bookingStore, tablesStore, dir, bunDB, producer, log)
	paymentService := payment.NewService(paymentStore, orderStore, bookingStore, tablesStore, bunDB, stripeGateway, producer, log)
	analyticsService := analytics.NewService(bunDB)

	tableHandler := table_api.NewHandler(tableService, log)
	bookingHandler := booking_api.NewHandler(bookingService, log)
	orderHandler := order_api.NewHandler(orderService, log)
	paymentHandler := payment_api.NewHandler(paymentService, log)
	analyticsHandler := analytics_api.NewHandler(analyticsService, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Route("/tables", func(r chi.Router) {
			r.Post("/", tableHandler.CreateTable)
			r.Get("/", tableHandler.ListTables)
			r.Get("/statistics", tableHandler.GetStatistics)
			r.Get("/status-at", tableHandler.GetStatusAtTime)
			r.Get("/number/{number}", tableHandler.GetTableByNumber)
			r.Get("/{tableId}", tableHandler.GetTable)
			r.Put("/{tableId}", tableHandler.UpdateTable)
			r.Patch("/{tableId}/status", tableHandler.UpdateTableStatus)
			r.Delete("/{tableId}", tableHandler.DeleteTable)
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", bookingHandler.CreateBooking)
			r.Get("/", bookingHandler.ListBookings)
			r.Get("/{bookingId}", bookingHandler.GetBooking)
			r.Put("/{bookingId}", bookingHandler.UpdateBooking)
			r.Patch("/{bookingId}/status", bookingHandler.UpdateBookingStatus)
			r.Post("/{bookingId}/checkin", bookingHandler.CheckIn)
			r.Post("/{bookingId}/cancel", bookingHandler.CancelBooking)
			r.Delete("/{bookingId}", bookingHandler.DeleteBooking)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", orderHandler.CreateOrder)
			r.Get("/", orderHandler.ListOrders)
			r.Get("/{orderId}", orderHandler.GetOrder)
			r.Put("/{orderId}", orderHandler.UpdateOrder)
			r.Patch("/{orderId}/status", orderHandler.UpdateOrderStatus)
			r.Post("/{orderId}/cancel", orderHandler.CancelOrder)
			r.Delete("/{orderId}", orderHandler.DeleteOrder)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", paymentHandler.CreatePayment)
			r.Get("/", paymentHandler.ListPayments)
			r.Get("/order/{orderId}", paymentHandler.GetPaymentByOrder)
			r.Get("/{paymentId}", paymentHandler.GetPayment)
			r.Get("/{paymentId}/qr", paymentHandler.GetQRCode)
			r.Post("/{paymentId}/confirm", paymentHandler.ConfirmPayment)
			r.Post("/{paymentId}/fail", paymentHandler.FailPayment)
			r.Post("/{paymentId}/charge", paymentHandler.ChargeCard)
			r.Patch("/{paymentId}/status", paymentHandler.UpdatePaymentStatus)
			r.Delete("/{paymentId}", paymentHandler.DeletePayment)
		})

		r.Post("/gateway/webhook", paymentHandler.GatewayWebhook)

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/revenue", analyticsHandler.GetRevenue)
			r.Get("/monthly", analyticsHandler.GetMonthlyStats)
		})
	})

	if gatewayConsumer != nil {
		go gatewayConsumer.Start(ctx, paymentService.HandleGatewayEvent)
		log.Info("KAFKA", "Gateway consumer started on topic "+cfg.Kafka.Topics.GatewayEvents)
	}

	reconciler := booking.NewReconciler(bookingService, orderStore, cfg.Reconciler.GracePeriod)
	go reconciler.Start(ctx, cfg.Reconciler.Interval)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", "Restaurant core service running on "+cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("APP", "Shutdown signal received")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	}
	log.Info("APP", "Service stopped")
}
