package http

import (
	"context"
	"time"

	"github.com/storefront-api/internal/domain"
	"github.com/storefront-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/storefront-api/internal/infrastructure/jwt"
	"github.com/storefront-api/internal/infrastructure/razorpay"
	s3infra "github.com/storefront-api/internal/infrastructure/s3"
	"github.com/storefront-api/internal/transport/websocket"
)

// Dispatcher queues background notifications. Satisfied by the in-process
// worker pool and by the RabbitMQ publisher.
type Dispatcher interface {
	Dispatch(ctx context.Context, t domain.NotificationTask) error
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo     *dynamo.UserRepo
	OTPRepo      *dynamo.OTPRepo
	PendingRepo  *dynamo.PendingOrderRepo
	HistoryRepo  *dynamo.HistoryRepo
	InvoiceStore *s3infra.Store // optional
	Dispatcher   Dispatcher
	Gateway      *razorpay.Client
	JWTProvider  *jwtinfra.Provider
	Hub          *websocket.Hub
	Clock        func() time.Time
}
