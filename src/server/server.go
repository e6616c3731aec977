package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"openbroker/src/broker"
	"openbroker/src/handler"
)

// NewRouter builds the broker API router.
func NewRouter(service *broker.Service) *chi.Mux {
	r := chi.NewRouter()

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("\"/healthcheck\" error")
		}
	})

	r.Route("/api/broker", func(r chi.Router) {
		r.Post("/orders", handler.PlaceOrderHandler(service))
		r.Delete("/orders/{orderId}", handler.CancelOrderHandler(service))
		r.Get("/orders/{userId}", handler.GetOrdersHandler(service))
		r.Get("/positions/{userId}", handler.GetPositionsHandler(service))
		r.Get("/trades/{orderId}", handler.GetTradesHandler(service))
	})

	return r
}

// StartServer serves the broker API until SIGINT/SIGTERM, then shuts down
// gracefully.
func StartServer(port string, service *broker.Service) {
	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: NewRouter(service),
	}

	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
