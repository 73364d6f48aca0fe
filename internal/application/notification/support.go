package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/storefront-api/internal/domain"
)

type dispatcher interface {
	Dispatch(ctx context.Context, t domain.NotificationTask) error
}

// SupportService forwards contact-form messages to the support inbox.
type SupportService interface {
	Submit(ctx context.Context, req domain.ContactRequest) error
}

type SupportDeps struct {
	Dispatcher   dispatcher
	StoreName    string
	SupportEmail string
	Location     *time.Location
	Clock        func() time.Time
}

type supportService struct {
	dispatcher dispatcher
	store      string
	inbox      string
	loc        *time.Location
	now        func() time.Time
}

func NewSupportService(deps SupportDeps) SupportService {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &supportService{
		dispatcher: deps.Dispatcher,
		store:      deps.StoreName,
		inbox:      deps.SupportEmail,
		loc:        deps.Location,
		now:        deps.Clock,
	}
}

// Submit queues the inbox message and the customer acknowledgement. Only a
// failure to queue the inbox message is reported.
func (s *supportService) Submit(ctx context.Context, req domain.ContactRequest) error {
	req.Email = domain.NormalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if strings.TrimSpace(req.Subject) == "" {
		req.Subject = "Contact form"
	}
	received := s.now().In(s.loc).Format("2006-01-02 15:04:05")

	toSupport, toCustomer, err := SupportEmails(s.store, s.inbox, req, received)
	if err != nil {
		return err
	}
	if err := s.dispatcher.Dispatch(ctx, domain.NotificationTask{Kind: "support", Email: &toSupport}); err != nil {
		return fmt.Errorf("queue support request: %w", err)
	}
	if err := s.dispatcher.Dispatch(ctx, domain.NotificationTask{Kind: "support_ack", Email: &toCustomer}); err != nil {
		slog.Warn("could not queue support acknowledgement", "email", req.Email, "err", err)
	}
	return nil
}
