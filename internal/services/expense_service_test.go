package services

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/amqp"
	"expenses/internal/core"
	"expenses/internal/export"
	"expenses/internal/metrics"
	"expenses/internal/storage"
)

type publishedEvent struct {
	Type amqp.EventType
	ID   int64
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
	closed bool
}

func (p *fakePublisher) PublishExpenseEvent(_ context.Context, t amqp.EventType, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{Type: t, ID: id})
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

func newTestService(t *testing.T, pub EventPublisher) (*ExpenseService, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "expenses.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return NewExpenseService(repo, pub, nil, metrics.New()), repo
}

func form(title, amount, date string) core.ExpenseForm {
	return core.ExpenseForm{Title: title, Amount: amount, Date: date}
}

func TestCreateAndList(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc, _ := newTestService(t, pub)

	coffee, err := svc.Create(ctx, core.ExpenseForm{Title: " Coffee ", Amount: "3.50", Category: "Food", Date: "2024-01-05"})
	require.NoError(t, err)
	rent, err := svc.Create(ctx, form("Rent", "1200", "2024-02-01"))
	require.NoError(t, err)

	rows, summary, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, rent, rows[0].ID)
	assert.Equal(t, "Coffee", rows[1].Title)
	assert.Equal(t, 2, summary.Count)
	assert.True(t, decimal.RequireFromString("1203.5").Equal(summary.Total), "total %s", summary.Total)
	assert.True(t, decimal.NewFromInt(1200).Equal(summary.MonthTotal), "month total %s", summary.MonthTotal)

	assert.Equal(t, []publishedEvent{{amqp.EventCreated, coffee}, {amqp.EventCreated, rent}}, pub.events)
}

func TestCreateRejectsInvalidForms(t *testing.T) {
	tests := []struct {
		name    string
		form    core.ExpenseForm
		wantErr error
		message string
	}{
		{"missing title", form("", "3", "2024-01-01"), core.ErrRequiredFields, "Title, amount and date are required."},
		{"blank amount", form("Tea", "   ", "2024-01-01"), core.ErrRequiredFields, "Title, amount and date are required."},
		{"amount not a number", form("Tea", "abc", "2024-01-01"), core.ErrAmountNotNumber, "Amount must be a number."},
		{"bad date", form("Tea", "2", "01/02/2024"), core.ErrInvalidDate, "Date format should be YYYY-MM-DD."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			pub := &fakePublisher{}
			svc, repo := newTestService(t, pub)

			_, err := svc.Create(ctx, tt.form)
			require.ErrorIs(t, err, tt.wantErr)

			var verr *core.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.message, verr.Message())

			n, err := repo.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
			assert.Empty(t, pub.events)
		})
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc, _ := newTestService(t, pub)

	id, err := svc.Create(ctx, form("Coffee", "3.5", "2024-01-05"))
	require.NoError(t, err)

	require.NoError(t, svc.Update(ctx, id, core.ExpenseForm{Title: "Latte", Amount: "4", Category: "Food", Date: "2024-01-06", Notes: "oat"}))

	got, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.Expense{ID: id, Title: "Latte", Amount: 4, Category: "Food", Date: "2024-01-06", Notes: "oat"}, got)

	err = svc.Update(ctx, id, form("Latte", "four", "2024-01-06"))
	require.ErrorIs(t, err, core.ErrAmountNotNumber)
	got, err = svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4.0, got.Amount, "a rejected update must not change the row")

	assert.Equal(t, []publishedEvent{{amqp.EventCreated, id}, {amqp.EventUpdated, id}}, pub.events)
}

func TestUpdateMissingWinsOverValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)

	err := svc.Update(context.Background(), 999, form("", "", ""))
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = svc.Get(context.Background(), 999)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc, repo := newTestService(t, pub)

	id, err := svc.Create(ctx, form("Coffee", "3.5", "2024-01-05"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, id))
	require.NoError(t, svc.Delete(ctx, id))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, summary, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Count)
	assert.True(t, summary.Total.IsZero())
	assert.True(t, summary.MonthTotal.IsZero())
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{err: errors.New("circuit breaker is open")}
	svc, repo := newTestService(t, pub)

	id, err := svc.Create(ctx, form("Coffee", "3.5", "2024-01-05"))
	require.NoError(t, err)
	require.NoError(t, svc.Update(ctx, id, form("Coffee", "4", "2024-01-05")))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	_, err := svc.Create(ctx, core.ExpenseForm{Title: "Coffee", Amount: "3.5", Category: "Food", Date: "2024-01-05"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, core.ExpenseForm{Title: "Rent, flat", Amount: "1200", Date: "2024-02-01"})
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := svc.Export(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, export.Header, lines[0])
	assert.Equal(t, `2,"Rent, flat",1200,,2024-02-01,`, lines[1])
	assert.Equal(t, "1,Coffee,3.5,Food,2024-01-05,", lines[2])
}

func TestReadyAndClose(t *testing.T) {
	pub := &fakePublisher{}
	svc, _ := newTestService(t, pub)

	require.NoError(t, svc.Ready(context.Background()))
	require.NoError(t, svc.Close())
	assert.True(t, pub.closed)
	assert.Error(t, svc.Ready(context.Background()))
}
