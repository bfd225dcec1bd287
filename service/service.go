package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"boxoffice/gateway"
	"boxoffice/http"
	"boxoffice/message"
	"boxoffice/postgres"
	"boxoffice/reconcile"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Service struct {
	forwarder  *message.Forwarder
	msgRouter  *message.Router
	httpRouter *echo.Echo
	addr       string
}

func New(
	logger watermill.LoggerAdapter,
	redisClient *redis.Client,
	dbConn *sqlx.DB,
	paymentGateway gateway.PaymentGateway,
	deliverer message.ConfirmationDeliverer,
) (*Service, error) {
	eventRepo := postgres.NewEventRepo(dbConn)
	bookingRepo := postgres.NewBookingRepo(dbConn, logger)
	salesRepo := postgres.NewSalesRepo(dbConn)

	forwarder, err := message.NewForwarder(dbConn, redisClient, logger)
	if err != nil {
		return nil, fmt.Errorf("creating forwarder: %w", err)
	}

	msgRouter, err := message.NewRouter(message.RouterDeps{
		BookingCanceller:      bookingRepo,
		ConfirmationDeliverer: deliverer,
		Logger:                logger,
		RedisClient:           redisClient,
		SalesRecorder:         salesRepo,
	})
	if err != nil {
		return nil, fmt.Errorf("creating message router: %w", err)
	}

	reconciler := reconcile.New(bookingRepo)
	httpRouter := http.NewRouter(eventRepo, bookingRepo, paymentGateway, reconciler)

	return &Service{
		forwarder:  forwarder,
		msgRouter:  msgRouter,
		httpRouter: httpRouter,
		addr:       ":8080",
	}, nil
}

func (s Service) Run(ctx context.Context) error {
	g, runCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.forwarder.Run(runCtx); err != nil {
			return fmt.Errorf("running forwarder: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		if err := s.msgRouter.Run(runCtx); err != nil {
			return fmt.Errorf("running messaging router: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		// Wait for message router
		<-s.msgRouter.Running()

		logrus.Info("Starting HTTP server...")
		err := s.httpRouter.Start(s.addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("starting http server: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-runCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		logrus.Info("Shutting down HTTP server...")
		if err := s.httpRouter.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("waiting for shutdown: %w", err)
	}
	logrus.Info("Shutdown complete.")

	return nil
}
