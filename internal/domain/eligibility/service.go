package eligibility

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/domain/loan"
	"credit-engine/internal/event"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

const (
	MessageApproved     = "Loan approved successfully"
	MessageLowScore     = "Loan not approved due to low credit score"
	MessageEMIBurden    = "Loan not approved due to EMI constraint (>50% of monthly income)"
	outcomeApproved     = "approved"
	outcomeLowScore     = "rejected_low_score"
	outcomeEMIBurden    = "rejected_emi_burden"
	outcomeNotEvaluated = "validation_failed"
)

// emiIncomeCap caps total monthly obligations at half of monthly income.
var emiIncomeCap = decimal.NewFromFloat(0.5)

type Request struct {
	CustomerID   int64
	LoanAmount   decimal.Decimal
	InterestRate decimal.Decimal
	TenureMonths int
}

func (r Request) validate() error {
	if r.CustomerID <= 0 {
		return fmt.Errorf("%w: customer ID must be positive", apperrors.ErrValidation)
	}
	if r.LoanAmount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: loan amount must be positive", apperrors.ErrValidation)
	}
	if r.InterestRate.IsNegative() {
		return fmt.Errorf("%w: interest rate cannot be negative", apperrors.ErrValidation)
	}
	if r.TenureMonths <= 0 {
		return fmt.Errorf("%w: tenure must be a positive number of months", apperrors.ErrValidation)
	}
	return nil
}

// CheckResult is a dry-run decision. When the application is rejected
// the corrected rate echoes the requested rate; the resolver's "no
// rate" case is never surfaced to callers.
type CheckResult struct {
	CustomerID            int64
	Approved              bool
	InterestRate          decimal.Decimal
	CorrectedInterestRate decimal.Decimal
	TenureMonths          int
	MonthlyInstallment    decimal.Decimal
}

// CreateResult carries the decision of the persisting path. LoanID is
// nil on rejection; rejections are normal outcomes, not errors.
type CreateResult struct {
	LoanID             *int64
	CustomerID         int64
	Approved           bool
	Message            string
	MonthlyInstallment decimal.Decimal
}

type Service interface {
	// CreditScore computes the 0-100 creditworthiness score from the
	// customer's full loan history. Unknown customers score 0; callers
	// that need a not-found error must resolve the customer themselves.
	CreditScore(ctx context.Context, customerID int64) (int, error)

	// WithinEMIBudget reports whether the customer's active installments
	// plus an additional candidate installment stay within half their
	// monthly income. Unknown customers fail closed.
	WithinEMIBudget(ctx context.Context, customerID int64, additionalEMI decimal.Decimal) (bool, error)

	CheckEligibility(ctx context.Context, req Request) (*CheckResult, error)

	CreateLoan(ctx context.Context, req Request) (*CreateResult, error)
}

var _ Service = (*eligibilityService)(nil)

type eligibilityService struct {
	customerRepo customer.CustomerRepository
	loanRepo     loan.Repository
	pub          event.EventPublisher
	logger       *slog.Logger
}

func NewService(customerRepo customer.CustomerRepository, loanRepo loan.Repository, eventPublisher event.EventPublisher, logger *slog.Logger) Service {
	if customerRepo == nil || loanRepo == nil {
		panic("eligibility service repositories cannot be nil")
	}
	if eventPublisher == nil {
		eventPublisher = event.NopEventPublisher{}
	}
	return &eligibilityService{
		customerRepo: customerRepo,
		loanRepo:     loanRepo,
		pub:          eventPublisher,
		logger:       logger.With(slog.String("component", "eligibilityService")),
	}
}

func (s *eligibilityService) CreditScore(ctx context.Context, customerID int64) (int, error) {
	cust, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			// Defensive fallback: an unknown customer scores 0 here.
			// The pipeline resolves the customer first and surfaces
			// not-found before this can matter.
			s.logger.WarnContext(ctx, "Credit score requested for unknown customer", "customerID", customerID)
			return 0, nil
		}
		return 0, fmt.Errorf("failed to load customer %d for scoring: %w", customerID, err)
	}

	loans, err := s.loanRepo.FindByCustomerID(ctx, customerID)
	if err != nil {
		return 0, fmt.Errorf("failed to load loan history for customer %d: %w", customerID, err)
	}

	score := computeScore(scoreInput{customer: cust, loans: loans, now: time.Now()})
	monitoring.RecordCreditScore(score)
	s.logger.InfoContext(ctx, "Computed credit score", "customerID", customerID, "score", score, "loans", len(loans))
	return score, nil
}

func (s *eligibilityService) WithinEMIBudget(ctx context.Context, customerID int64, additionalEMI decimal.Decimal) (bool, error) {
	cust, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			s.logger.WarnContext(ctx, "EMI budget check for unknown customer, failing closed", "customerID", customerID)
			return false, nil
		}
		return false, fmt.Errorf("failed to load customer %d for EMI check: %w", customerID, err)
	}
	return s.withinEMIBudget(ctx, cust, additionalEMI)
}

func (s *eligibilityService) withinEMIBudget(ctx context.Context, cust *customer.Customer, additionalEMI decimal.Decimal) (bool, error) {
	active, err := s.loanRepo.FindActiveByCustomerID(ctx, cust.CustomerID)
	if err != nil {
		return false, fmt.Errorf("failed to load active loans for customer %d: %w", cust.CustomerID, err)
	}

	total := additionalEMI
	for _, l := range active {
		total = total.Add(l.MonthlyInstallment)
	}
	budget := cust.MonthlyIncome.Mul(emiIncomeCap)
	within := total.LessThanOrEqual(budget)

	s.logger.InfoContext(ctx, "EMI burden evaluated",
		"customerID", cust.CustomerID,
		"totalEMI", total.StringFixed(2),
		"budget", budget.StringFixed(2),
		"within", within)
	return within, nil
}

// evaluation is the shared outcome of the decision sequence both call
// shapes run before they diverge on persistence.
type evaluation struct {
	customer      *customer.Customer
	score         int
	requestedRate decimal.Decimal
	correctedRate decimal.Decimal
	rateApproved  bool
}

func (s *eligibilityService) evaluate(ctx context.Context, req Request) (*evaluation, error) {
	if err := req.validate(); err != nil {
		monitoring.RecordEligibilityDecision(outcomeNotEvaluated)
		return nil, err
	}

	cust, err := s.customerRepo.FindByID(ctx, req.CustomerID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return nil, fmt.Errorf("%w: customer %d not found", apperrors.ErrNotFound, req.CustomerID)
		}
		return nil, fmt.Errorf("failed to resolve customer %d: %w", req.CustomerID, err)
	}

	loans, err := s.loanRepo.FindByCustomerID(ctx, req.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load loan history for customer %d: %w", req.CustomerID, err)
	}

	score := computeScore(scoreInput{customer: cust, loans: loans, now: time.Now()})
	monitoring.RecordCreditScore(score)

	corrected, ok := ResolveInterestRate(score, req.InterestRate)

	return &evaluation{
		customer:      cust,
		score:         score,
		requestedRate: req.InterestRate,
		correctedRate: corrected,
		rateApproved:  ok,
	}, nil
}

// lowScore applies the resolver's terminal branch plus the score<=10
// double check. The second check is redundant with the resolver but is
// kept deliberately; removing it would change observable behavior if
// the slab table ever diverges from the terminal floor.
func (ev *evaluation) lowScore() bool {
	return !ev.rateApproved || ev.score <= MinApprovableScore
}

func (s *eligibilityService) CheckEligibility(ctx context.Context, req Request) (*CheckResult, error) {
	s.logger.InfoContext(ctx, "Checking loan eligibility", "customerID", req.CustomerID)

	ev, err := s.evaluate(ctx, req)
	if err != nil {
		return nil, err
	}

	approved := true
	correctedRate := ev.correctedRate
	if ev.lowScore() {
		approved = false
		correctedRate = ev.requestedRate
	}

	installment, err := loan.CalculateMonthlyInstallment(req.LoanAmount, correctedRate, req.TenureMonths)
	if err != nil {
		return nil, err
	}

	if approved {
		within, err := s.withinEMIBudget(ctx, ev.customer, installment)
		if err != nil {
			return nil, err
		}
		if !within {
			approved = false
		}
	}

	if approved {
		monitoring.RecordEligibilityDecision(outcomeApproved)
	} else if ev.lowScore() {
		monitoring.RecordEligibilityDecision(outcomeLowScore)
	} else {
		monitoring.RecordEligibilityDecision(outcomeEMIBurden)
	}

	s.logger.InfoContext(ctx, "Eligibility decision made",
		"customerID", req.CustomerID,
		"score", ev.score,
		"approved", approved,
		"correctedRate", correctedRate.String())

	return &CheckResult{
		CustomerID:            req.CustomerID,
		Approved:              approved,
		InterestRate:          ev.requestedRate,
		CorrectedInterestRate: correctedRate,
		TenureMonths:          req.TenureMonths,
		MonthlyInstallment:    installment,
	}, nil
}

func (s *eligibilityService) CreateLoan(ctx context.Context, req Request) (*CreateResult, error) {
	s.logger.InfoContext(ctx, "Processing loan application", "customerID", req.CustomerID)

	ev, err := s.evaluate(ctx, req)
	if err != nil {
		return nil, err
	}

	// The installment is quoted at the corrected rate when one exists,
	// otherwise at the requested rate, matching the dry-run response.
	installmentRate := ev.correctedRate
	if !ev.rateApproved {
		installmentRate = ev.requestedRate
	}
	installment, err := loan.CalculateMonthlyInstallment(req.LoanAmount, installmentRate, req.TenureMonths)
	if err != nil {
		return nil, err
	}

	result := &CreateResult{
		CustomerID:         req.CustomerID,
		MonthlyInstallment: installment,
	}

	if ev.lowScore() {
		monitoring.RecordEligibilityDecision(outcomeLowScore)
		result.Message = MessageLowScore
		s.logger.InfoContext(ctx, "Loan rejected", "customerID", req.CustomerID, "score", ev.score, "reason", "low credit score")
		return result, nil
	}

	within, err := s.withinEMIBudget(ctx, ev.customer, installment)
	if err != nil {
		return nil, err
	}
	if !within {
		monitoring.RecordEligibilityDecision(outcomeEMIBurden)
		result.Message = MessageEMIBurden
		s.logger.InfoContext(ctx, "Loan rejected", "customerID", req.CustomerID, "reason", "EMI burden")
		return result, nil
	}

	startDate := time.Now().Truncate(24 * time.Hour)
	newLoan, err := loan.NewLoan(req.CustomerID, req.LoanAmount, ev.correctedRate, req.TenureMonths, startDate)
	if err != nil {
		return nil, err
	}

	created, err := s.loanRepo.CreateLoan(ctx, newLoan)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist approved loan", "customerID", req.CustomerID, "error", err)
		return nil, fmt.Errorf("%w: failed to save approved loan: %v", apperrors.ErrInternalServer, err)
	}
	monitoring.RecordEligibilityDecision(outcomeApproved)
	monitoring.RecordLoanCreated()

	approvedEvent := event.LoanApprovedEvent{
		Timestamp:   time.Now(),
		CreditScore: ev.score,
		Payload: event.LoanEventPayload{
			LoanID:             created.LoanID,
			CustomerID:         created.CustomerID,
			LoanAmount:         created.LoanAmount.StringFixed(2),
			InterestRate:       created.InterestRate.StringFixed(2),
			TenureMonths:       created.TenureMonths,
			MonthlyInstallment: created.MonthlyInstallment.StringFixed(2),
			StartDate:          created.StartDate.Format(time.DateOnly),
			EndDate:            created.EndDate.Format(time.DateOnly),
		},
	}
	if pubErr := s.pub.PublishLoanApproved(ctx, approvedEvent); pubErr != nil {
		s.logger.ErrorContext(ctx, "Loan created, but FAILED to publish approval event", slog.Any("error", pubErr))
	}

	result.LoanID = &created.LoanID
	result.Approved = true
	result.Message = MessageApproved
	s.logger.InfoContext(ctx, "Loan approved and created",
		"customerID", req.CustomerID,
		"loanID", created.LoanID,
		"rate", created.InterestRate.String())
	return result, nil
}
