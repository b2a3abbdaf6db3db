package customer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"credit-engine/internal/event"
	"credit-engine/internal/infrastructure/monitoring"

	"github.com/shopspring/decimal"
)

const customerNotFound = "Customer not found by repository"

type Registration struct {
	FirstName     string
	LastName      string
	Age           int
	PhoneNumber   string
	MonthlyIncome decimal.Decimal
}

type CustomerService interface {
	RegisterCustomer(ctx context.Context, reg Registration) (*Customer, error)
	GetCustomer(ctx context.Context, customerID int64) (*Customer, error)
}

var _ CustomerService = (*customerService)(nil)

type customerService struct {
	repo   CustomerRepository
	pub    event.EventPublisher
	logger *slog.Logger
}

func NewCustomerService(repo CustomerRepository, eventPublisher event.EventPublisher, logger *slog.Logger) CustomerService {
	if repo == nil {
		panic("customer repository cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewCustomerService, using default stderr handler")
	}
	if eventPublisher == nil {
		eventPublisher = event.NopEventPublisher{}
		logger.Warn("Warning: No event publisher provided to NewCustomerService, events will be dropped")
	}

	return &customerService{
		repo:   repo,
		pub:    eventPublisher,
		logger: logger.With(slog.String("component", "customerService")),
	}
}

func newCustomerEventPayload(cust *Customer) event.CustomerEventPayload {
	if cust == nil {
		return event.CustomerEventPayload{}
	}
	return event.CustomerEventPayload{
		CustomerID:    cust.CustomerID,
		Name:          cust.FullName(),
		Age:           cust.Age,
		PhoneNumber:   cust.PhoneNumber,
		MonthlyIncome: cust.MonthlyIncome.StringFixed(2),
		ApprovedLimit: cust.ApprovedLimit.StringFixed(2),
	}
}

func (s *customerService) RegisterCustomer(ctx context.Context, reg Registration) (*Customer, error) {
	s.logger.InfoContext(ctx, "Attempting to register new customer")

	reg.FirstName = strings.TrimSpace(reg.FirstName)
	reg.LastName = strings.TrimSpace(reg.LastName)
	reg.PhoneNumber = strings.TrimSpace(reg.PhoneNumber)

	cust, err := NewCustomer(reg.FirstName, reg.LastName, reg.Age, reg.PhoneNumber, reg.MonthlyIncome)
	if err != nil {
		s.logger.WarnContext(ctx, "Customer registration failed validation", slog.Any("error", err))
		return nil, err
	}
	s.logger.InfoContext(ctx, "Customer domain object created",
		slog.String("approvedLimit", cust.ApprovedLimit.String()))

	if err := s.repo.Save(ctx, cust); err != nil {
		s.logger.ErrorContext(ctx, "Repository failed to save new customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save new customer: %w", err)
	}
	monitoring.RecordCustomerRegistered()

	registeredEvent := event.CustomerRegisteredEvent{
		Timestamp: time.Now(),
		Payload:   newCustomerEventPayload(cust),
	}
	if pubErr := s.pub.PublishCustomerRegistered(ctx, registeredEvent); pubErr != nil {
		s.logger.ErrorContext(ctx, "Customer registered, but FAILED to publish registration event", slog.Any("error", pubErr))
	}

	s.logger.InfoContext(ctx, "Successfully registered new customer", slog.Int64("customerID", cust.CustomerID))
	return cust, nil
}

func (s *customerService) GetCustomer(ctx context.Context, customerID int64) (*Customer, error) {
	s.logger.InfoContext(ctx, "Attempting to get customer by ID", slog.Int64("customerID", customerID))

	cust, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.WarnContext(ctx, customerNotFound)
			return nil, ErrNotFound
		}
		s.logger.ErrorContext(ctx, "Repository error finding customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get customer %d: %w", customerID, err)
	}

	return cust, nil
}
