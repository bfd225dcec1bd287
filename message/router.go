package message

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/redis/go-redis/v9"
)

const commandTopicPrefix = "commands."

type RouterDeps struct {
	BookingCanceller      BookingCanceller
	ConfirmationDeliverer ConfirmationDeliverer
	Logger                watermill.LoggerAdapter
	RedisClient           *redis.Client
	SalesRecorder         SalesRecorder
}

type Router struct {
	*message.Router
}

func NewRouter(deps RouterDeps) (*Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating router: %w", err)
	}

	router.AddMiddleware(correlationIDMiddleware)
	router.AddMiddleware(loggerMiddleware)
	router.AddMiddleware(handlerLogMiddleware)
	router.AddMiddleware(middleware.Retry{
		MaxRetries:      10,
		InitialInterval: time.Millisecond * 100,
		MaxInterval:     time.Second,
		Multiplier:      2,
		Logger:          deps.Logger,
	}.Middleware)

	ep, err := cqrs.NewEventProcessorWithConfig(router, eventProcessorConfig(deps.Logger, deps.RedisClient))
	if err != nil {
		return nil, fmt.Errorf("creating event processor: %w", err)
	}

	eventHandlers := []cqrs.EventHandler{
		cqrs.NewEventHandler("deliver-confirmation", handleDeliverConfirmation(deps.ConfirmationDeliverer)),
		cqrs.NewEventHandler("record-sale", handleRecordSale(deps.SalesRecorder)),
		cqrs.NewEventHandler("remove-cancelled-sale", handleRemoveCancelledSale(deps.SalesRecorder)),
	}

	if err := ep.AddHandlers(eventHandlers...); err != nil {
		return nil, fmt.Errorf("adding event handlers: %w", err)
	}

	cp, err := cqrs.NewCommandProcessorWithConfig(router, commandProcessorConfig(deps.Logger, deps.RedisClient))
	if err != nil {
		return nil, fmt.Errorf("creating command processor: %w", err)
	}

	commandHandlers := []cqrs.CommandHandler{
		cqrs.NewCommandHandler("cancel-booking", handleCancelBooking(deps.BookingCanceller)),
	}

	if err := cp.AddHandlers(commandHandlers...); err != nil {
		return nil, fmt.Errorf("adding command handlers: %w", err)
	}

	return &Router{router}, nil
}

func eventProcessorConfig(logger watermill.LoggerAdapter, redisClient *redis.Client) cqrs.EventProcessorConfig {
	return cqrs.EventProcessorConfig{
		SubscriberConstructor: func(params cqrs.EventProcessorSubscriberConstructorParams) (message.Subscriber, error) {
			return redisstream.NewSubscriber(redisstream.SubscriberConfig{
				Client:        redisClient,
				ConsumerGroup: "svc-boxoffice." + params.HandlerName,
			}, logger)
		},
		GenerateSubscribeTopic: func(params cqrs.EventProcessorGenerateSubscribeTopicParams) (string, error) {
			return params.EventName, nil
		},
		Marshaler: cqrs.JSONMarshaler{
			GenerateName: cqrs.StructName,
		},
		Logger: logger,
	}
}

func commandProcessorConfig(logger watermill.LoggerAdapter, redisClient *redis.Client) cqrs.CommandProcessorConfig {
	return cqrs.CommandProcessorConfig{
		SubscriberConstructor: func(params cqrs.CommandProcessorSubscriberConstructorParams) (message.Subscriber, error) {
			return redisstream.NewSubscriber(redisstream.SubscriberConfig{
				Client:        redisClient,
				ConsumerGroup: "svc-boxoffice." + params.HandlerName,
			}, logger)
		},
		GenerateSubscribeTopic: func(params cqrs.CommandProcessorGenerateSubscribeTopicParams) (string, error) {
			return commandTopicPrefix + params.CommandName, nil
		},
		Marshaler: cqrs.JSONMarshaler{
			GenerateName: cqrs.StructName,
		},
		Logger: logger,
	}
}

// NewCommandBus builds the publisher side of the command topics. The expiry
// sweep scheduler uses it to submit CancelBooking commands.
func NewCommandBus(publisher message.Publisher, logger watermill.LoggerAdapter) (*cqrs.CommandBus, error) {
	return cqrs.NewCommandBusWithConfig(publisher, cqrs.CommandBusConfig{
		GeneratePublishTopic: func(params cqrs.CommandBusGeneratePublishTopicParams) (string, error) {
			return commandTopicPrefix + params.CommandName, nil
		},
		Marshaler: cqrs.JSONMarshaler{
			GenerateName: cqrs.StructName,
		},
		Logger: logger,
	})
}
