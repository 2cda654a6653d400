package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"expenses/internal/amqp"
	"expenses/internal/core"
	"expenses/internal/export"
	applog "expenses/internal/log"
	"expenses/internal/metrics"
)

// Store is the persistence the service needs. *storage.SQLiteRepository
// satisfies it.
type Store interface {
	ListAll(ctx context.Context) ([]core.Expense, error)
	Get(ctx context.Context, id int64) (core.Expense, error)
	Insert(ctx context.Context, s core.Submission) (int64, error)
	Update(ctx context.Context, id int64, s core.Submission) error
	Delete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
	Close() error
}

// EventPublisher announces committed changes. *amqp.Client satisfies it.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, eventType amqp.EventType, id int64) error
	Close() error
}

// ExpenseService orchestrates expense operations across the store, the
// event publisher and metrics. Publishing never fails a request: the row
// is already committed when the event goes out.
type ExpenseService struct {
	store     Store
	publisher EventPublisher
	logger    *applog.Logger
	metrics   *metrics.Metrics
}

// NewExpenseService wires the service. publisher, logger and m may be nil.
func NewExpenseService(store Store, publisher EventPublisher, logger *applog.Logger, m *metrics.Metrics) *ExpenseService {
	if logger == nil {
		logger = applog.Discard()
	}
	return &ExpenseService{
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent(applog.ComponentExpense),
		metrics:   m,
	}
}

// List returns every expense, newest first, with its aggregate summary.
func (s *ExpenseService) List(ctx context.Context) ([]core.Expense, core.Summary, error) {
	rows, err := s.store.ListAll(ctx)
	if err != nil {
		s.metrics.ObserveOperation(applog.OpList, metrics.ResultError)
		return nil, core.Summary{}, fmt.Errorf("list expenses: %w", err)
	}
	s.metrics.ObserveOperation(applog.OpList, metrics.ResultOK)
	return rows, core.Summarize(rows), nil
}

// Get returns one expense or core.ErrNotFound.
func (s *ExpenseService) Get(ctx context.Context, id int64) (core.Expense, error) {
	e, err := s.store.Get(ctx, id)
	s.metrics.ObserveOperation(applog.OpRead, resultOf(err))
	if err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// Create validates the form and stores it. Validation failures are
// returned as *core.ValidationError and leave the store untouched.
func (s *ExpenseService) Create(ctx context.Context, form core.ExpenseForm) (int64, error) {
	sub, err := s.validate(ctx, form)
	if err != nil {
		s.metrics.ObserveOperation(applog.OpCreate, metrics.ResultInvalid)
		return 0, err
	}

	id, err := s.store.Insert(ctx, sub)
	if err != nil {
		s.metrics.ObserveOperation(applog.OpCreate, metrics.ResultError)
		return 0, err
	}
	s.metrics.ObserveOperation(applog.OpCreate, metrics.ResultOK)

	s.logger.InfoContext(ctx, "Expense created",
		applog.NewFields().WithExpenseID(id).WithExpense(sub.Title, sub.Amount, sub.Category, sub.Date).ToSlice()...)
	s.publish(ctx, amqp.EventCreated, id)
	return id, nil
}

// Update checks the expense exists, validates the form and replaces the
// stored fields. A missing expense wins over a validation failure.
func (s *ExpenseService) Update(ctx context.Context, id int64, form core.ExpenseForm) error {
	if _, err := s.store.Get(ctx, id); err != nil {
		s.metrics.ObserveOperation(applog.OpUpdate, resultOf(err))
		return err
	}

	sub, err := s.validate(ctx, form)
	if err != nil {
		s.metrics.ObserveOperation(applog.OpUpdate, metrics.ResultInvalid)
		return err
	}

	if err := s.store.Update(ctx, id, sub); err != nil {
		s.metrics.ObserveOperation(applog.OpUpdate, resultOf(err))
		return err
	}
	s.metrics.ObserveOperation(applog.OpUpdate, metrics.ResultOK)

	s.logger.InfoContext(ctx, "Expense updated",
		applog.NewFields().WithExpenseID(id).WithExpense(sub.Title, sub.Amount, sub.Category, sub.Date).ToSlice()...)
	s.publish(ctx, amqp.EventUpdated, id)
	return nil
}

// Delete removes the expense; deleting a missing id succeeds.
func (s *ExpenseService) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		s.metrics.ObserveOperation(applog.OpDelete, metrics.ResultError)
		return err
	}
	s.metrics.ObserveOperation(applog.OpDelete, metrics.ResultOK)

	s.logger.InfoContext(ctx, "Expense deleted", applog.FieldExpenseID, id)
	s.publish(ctx, amqp.EventDeleted, id)
	return nil
}

// Export writes every expense as CSV and returns the number of rows written.
func (s *ExpenseService) Export(ctx context.Context, w io.Writer) (int, error) {
	rows, err := s.store.ListAll(ctx)
	if err != nil {
		s.metrics.ObserveOperation(applog.OpExport, metrics.ResultError)
		return 0, fmt.Errorf("list expenses for export: %w", err)
	}
	if err := export.WriteCSV(w, rows); err != nil {
		s.metrics.ObserveOperation(applog.OpExport, metrics.ResultError)
		return 0, err
	}
	s.metrics.ObserveOperation(applog.OpExport, metrics.ResultOK)
	s.metrics.AddRowsExported(len(rows))

	s.logger.DebugContext(ctx, "Expenses exported", applog.FieldCount, len(rows))
	return len(rows), nil
}

// Ready reports whether the store answers.
func (s *ExpenseService) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *ExpenseService) validate(ctx context.Context, form core.ExpenseForm) (core.Submission, error) {
	sub, err := core.ParseSubmission(form)
	if err != nil {
		reason := "other"
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			reason = verr.Reason()
		}
		s.metrics.ObserveValidationFailure(reason)
		s.logger.InfoContext(ctx, "Expense submission rejected",
			applog.FieldOperation, applog.OpValidate,
			applog.FieldReason, reason)
		return core.Submission{}, err
	}
	return sub, nil
}

func (s *ExpenseService) publish(ctx context.Context, eventType amqp.EventType, id int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, eventType, id); err != nil {
		s.metrics.ObserveEvent(string(eventType), metrics.ResultError)
		s.logger.LogError(ctx, "Failed to publish expense event", err, applog.OpPublish,
			applog.NewFields().WithExpenseID(id))
		return
	}
	s.metrics.ObserveEvent(string(eventType), metrics.ResultOK)
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, core.ErrNotFound):
		return metrics.ResultNotFound
	default:
		return metrics.ResultError
	}
}

// Close closes both the store and the publisher
func (s *ExpenseService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %w", errors.Join(errs...))
	}

	return nil
}
