package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/mkazantsev/invoicer-system/internal/engine"
	"github.com/mkazantsev/invoicer-system/internal/model"
	"github.com/mkazantsev/invoicer-system/internal/notify"
	"github.com/mkazantsev/invoicer-system/internal/repository"
)

type stubRepo struct {
	createUserID  uuid.UUID
	createUserErr error

	getUser    *model.User
	getUserErr error

	client    *model.Client
	clientErr error

	createdInvoice   *model.Invoice
	createdDelta     *model.ClientDelta
	assignedNumber   string
	createInvoiceErr error

	invoice    *model.Invoice
	invoiceErr error

	addedPayment   *model.Payment
	paymentInvoice model.Invoice
	addPaymentErr  error

	summaries    []repository.InvoiceSummary
	summariesErr error

	clientCount int

	revenueSince time.Time
	revenue      []model.RevenuePoint

	overdueCandidates []repository.OverdueCandidate
	markedOverdue     []uuid.UUID
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateUser(ctx context.Context, fullName, email string, passwordHash []byte) (uuid.UUID, error) {
	return s.createUserID, s.createUserErr
}

func (s *stubRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser, s.getUserErr
}

func (s *stubRepo) CreateClient(ctx context.Context, c model.Client) (uuid.UUID, error) {
	return uuid.New(), s.clientErr
}

func (s *stubRepo) GetClientsByUser(ctx context.Context, userID uuid.UUID, filter repository.ClientFilter) ([]model.Client, int, error) {
	return nil, 0, nil
}

func (s *stubRepo) GetClientByID(ctx context.Context, userID, clientID uuid.UUID) (*model.Client, error) {
	return s.client, s.clientErr
}

func (s *stubRepo) UpdateClient(ctx context.Context, c model.Client) error { return s.clientErr }

func (s *stubRepo) DeleteClient(ctx context.Context, userID, clientID uuid.UUID) error {
	return s.clientErr
}

func (s *stubRepo) CreateInvoice(ctx context.Context, inv model.Invoice, delta model.ClientDelta) (model.Invoice, error) {
	s.createdInvoice = &inv
	s.createdDelta = &delta
	if s.createInvoiceErr != nil {
		return model.Invoice{}, s.createInvoiceErr
	}
	inv.InvoiceNumber = "INV-0001"
	if s.assignedNumber != "" {
		inv.InvoiceNumber = s.assignedNumber
	}
	return inv, nil
}

func (s *stubRepo) GetInvoicesByUser(ctx context.Context, userID uuid.UUID, filter repository.InvoiceFilter) ([]model.Invoice, int, error) {
	return nil, 0, nil
}

func (s *stubRepo) GetInvoiceByID(ctx context.Context, userID, invoiceID uuid.UUID) (*model.Invoice, error) {
	if s.invoice == nil {
		return nil, s.invoiceErr
	}
	inv := *s.invoice
	return &inv, s.invoiceErr
}

func (s *stubRepo) UpdateInvoice(ctx context.Context, inv model.Invoice) error { return s.invoiceErr }

func (s *stubRepo) UpdateInvoiceStatus(ctx context.Context, userID, invoiceID uuid.UUID, status model.InvoiceStatus) error {
	return s.invoiceErr
}

func (s *stubRepo) DeleteInvoice(ctx context.Context, userID, invoiceID uuid.UUID) ([]uuid.UUID, error) {
	return nil, s.invoiceErr
}

func (s *stubRepo) AddPayment(ctx context.Context, userID, invoiceID uuid.UUID, p model.Payment) (model.Invoice, model.Payment, error) {
	s.addedPayment = &p
	return s.paymentInvoice, p, s.addPaymentErr
}

func (s *stubRepo) GetPaymentsByInvoice(ctx context.Context, userID, invoiceID uuid.UUID) ([]model.Payment, error) {
	return nil, nil
}

func (s *stubRepo) GetInvoiceSummaries(ctx context.Context, userID uuid.UUID) ([]repository.InvoiceSummary, error) {
	return s.summaries, s.summariesErr
}

func (s *stubRepo) CountClientsByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.clientCount, nil
}

func (s *stubRepo) GetRevenueByMonth(ctx context.Context, userID uuid.UUID, since time.Time) ([]model.RevenuePoint, error) {
	s.revenueSince = since
	return s.revenue, nil
}

func (s *stubRepo) GetOverdueCandidates(ctx context.Context, now time.Time, limit int) ([]repository.OverdueCandidate, error) {
	return s.overdueCandidates, nil
}

func (s *stubRepo) MarkInvoiceOverdue(ctx context.Context, invoiceID uuid.UUID, sentDate time.Time) (bool, error) {
	s.markedOverdue = append(s.markedOverdue, invoiceID)
	return true, nil
}

type stubNotifier struct {
	events []notify.ReminderEvent
	err    error
}

func (n *stubNotifier) SendReminder(ctx context.Context, event notify.ReminderEvent) error {
	n.events = append(n.events, event)
	return n.err
}

func TestRegisterUser_PropagatesDuplicateError(t *testing.T) {
	repo := &stubRepo{
		createUserErr: repository.ErrUserExists,
	}
	svc := NewService(repo, nil, nil)

	_, err := svc.RegisterUser(context.Background(), "Ivan Petrov", "ivan@example.com", "secret1")
	if !errors.Is(err, repository.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthenticateUser_InvalidPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	repo := &stubRepo{
		getUser: &model.User{
			ID:           uuid.New(),
			Email:        "ivan@example.com",
			PasswordHash: hash,
		},
	}
	svc := NewService(repo, nil, nil)

	_, err = svc.AuthenticateUser(context.Background(), "ivan@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateUser_UnknownEmail(t *testing.T) {
	repo := &stubRepo{
		getUserErr: repository.ErrUserNotFound,
	}
	svc := NewService(repo, nil, nil)

	_, err := svc.AuthenticateUser(context.Background(), "nobody@example.com", "secret1")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestCreateInvoice_UnknownClient(t *testing.T) {
	repo := &stubRepo{
		clientErr: repository.ErrClientNotFound,
	}
	svc := NewService(repo, nil, nil)

	_, err := svc.CreateInvoice(context.Background(), uuid.New(), CreateInvoiceParams{
		ClientID: uuid.New(),
		Items: []model.LineItem{
			{Description: "Consulting", Quantity: decimal.NewFromInt(1), Rate: decimal.NewFromInt(100)},
		},
		DueDate: time.Now().Add(24 * time.Hour),
	})
	if !errors.Is(err, repository.ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}
}

func TestCreateInvoice_DraftWithClientDelta(t *testing.T) {
	repo := &stubRepo{
		client: &model.Client{ID: uuid.New()},
	}
	svc := NewService(repo, nil, nil)

	inv, err := svc.CreateInvoice(context.Background(), uuid.New(), CreateInvoiceParams{
		ClientID: repo.client.ID,
		Items: []model.LineItem{
			{Description: "Consulting", Quantity: decimal.NewFromInt(10), Rate: decimal.NewFromInt(50)},
		},
		Tax:     model.TaxSpec{RatePercent: decimal.NewFromInt(10)},
		DueDate: time.Now().Add(14 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateInvoice error: %v", err)
	}

	if inv.Status != model.InvoiceStatusDraft {
		t.Fatalf("status = %s, want draft", inv.Status)
	}
	if inv.InvoiceNumber != "INV-0001" {
		t.Fatalf("invoice number = %q, want INV-0001", inv.InvoiceNumber)
	}

	if repo.createdDelta == nil {
		t.Fatal("expected client delta to be passed to repository")
	}
	if !repo.createdDelta.TotalBilledIncrement.Equal(decimal.NewFromInt(550)) {
		t.Fatalf("billed increment = %s, want 550", repo.createdDelta.TotalBilledIncrement)
	}
	if repo.createdDelta.LastInvoiceDate == nil {
		t.Fatal("expected last invoice date in delta")
	}
}

func TestCreateInvoice_MalformedAssignedNumber(t *testing.T) {
	repo := &stubRepo{
		client:         &model.Client{ID: uuid.New()},
		assignedNumber: "2026/07",
	}
	svc := NewService(repo, nil, nil)

	_, err := svc.CreateInvoice(context.Background(), uuid.New(), CreateInvoiceParams{
		ClientID: repo.client.ID,
		Items: []model.LineItem{
			{Description: "Consulting", Quantity: decimal.NewFromInt(1), Rate: decimal.NewFromInt(100)},
		},
		DueDate: time.Now().Add(24 * time.Hour),
	})
	if !errors.Is(err, engine.ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity, got %v", err)
	}
}

func TestUpdateInvoice_MissingDueDate(t *testing.T) {
	repo := &stubRepo{
		invoice: &model.Invoice{ID: uuid.New(), InvoiceNumber: "INV-0001"},
	}
	svc := NewService(repo, nil, nil)

	_, err := svc.UpdateInvoice(context.Background(), uuid.New(), repo.invoice.ID, UpdateInvoiceParams{
		ClientID: uuid.New(),
		Items: []model.LineItem{
			{Description: "Consulting", Quantity: decimal.NewFromInt(1), Rate: decimal.NewFromInt(100)},
		},
	})
	if !errors.Is(err, engine.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAddPayment_BuildsCompletedPayment(t *testing.T) {
	repo := &stubRepo{
		paymentInvoice: model.Invoice{Status: model.InvoiceStatusPaid},
	}
	svc := NewService(repo, nil, nil)

	_, payment, err := svc.AddPayment(context.Background(), uuid.New(), uuid.New(), AddPaymentParams{
		Amount: decimal.NewFromInt(550),
		Method: model.PaymentMethodBankTransfer,
	})
	if err != nil {
		t.Fatalf("AddPayment error: %v", err)
	}

	if payment.Status != model.PaymentStatusCompleted {
		t.Fatalf("payment status = %s, want completed", payment.Status)
	}
	if payment.ProcessedDate.IsZero() {
		t.Fatal("expected processed date to be set")
	}
	if repo.addedPayment == nil || !repo.addedPayment.Amount.Equal(decimal.NewFromInt(550)) {
		t.Fatalf("unexpected payment passed to repository: %+v", repo.addedPayment)
	}
}

func TestGetDashboardStats_RecomputesStatuses(t *testing.T) {
	pastDue := time.Now().UTC().Add(-48 * time.Hour)
	futureDue := time.Now().UTC().Add(48 * time.Hour)

	repo := &stubRepo{
		summaries: []repository.InvoiceSummary{
			{
				ID:         uuid.New(),
				Status:     model.InvoiceStatusPaid,
				Total:      decimal.NewFromInt(1000),
				PaidAmount: decimal.NewFromInt(1000),
				DueDate:    pastDue,
			},
			{
				// хранится как sent, но срок истёк: должен учитываться как overdue
				ID:      uuid.New(),
				Status:  model.InvoiceStatusSent,
				Total:   decimal.NewFromInt(300),
				DueDate: pastDue,
			},
			{
				ID:      uuid.New(),
				Status:  model.InvoiceStatusSent,
				Total:   decimal.NewFromInt(200),
				DueDate: futureDue,
			},
		},
		clientCount: 2,
	}
	svc := NewService(repo, nil, nil)

	stats, err := svc.GetDashboardStats(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("GetDashboardStats error: %v", err)
	}

	if !stats.TotalRevenue.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("total revenue = %s, want 1000", stats.TotalRevenue)
	}
	if !stats.OverdueAmount.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("overdue amount = %s, want 300", stats.OverdueAmount)
	}
	if !stats.PendingAmount.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("pending amount = %s, want 200", stats.PendingAmount)
	}
	if stats.StatusCounts[model.InvoiceStatusOverdue] != 1 {
		t.Fatalf("overdue count = %d, want 1", stats.StatusCounts[model.InvoiceStatusOverdue])
	}
	if stats.ClientCount != 2 {
		t.Fatalf("client count = %d, want 2", stats.ClientCount)
	}
}

func TestGetRevenueChart_DefaultsToSixMonths(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, nil, nil)

	if _, err := svc.GetRevenueChart(context.Background(), uuid.New(), 0); err != nil {
		t.Fatalf("GetRevenueChart error: %v", err)
	}

	wantSince := time.Now().UTC().AddDate(0, -6, 0)
	if diff := repo.revenueSince.Sub(wantSince); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("since = %v, want about %v", repo.revenueSince, wantSince)
	}
}

func TestProcessOverdueBatch_MarksAndNotifies(t *testing.T) {
	candidate := repository.OverdueCandidate{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		InvoiceNumber: "INV-0007",
		DueDate:       time.Now().UTC().Add(-24 * time.Hour),
		Outstanding:   decimal.NewFromInt(150),
	}

	repo := &stubRepo{
		overdueCandidates: []repository.OverdueCandidate{candidate},
	}
	notifier := &stubNotifier{}
	svc := NewService(repo, notifier, nil)

	svc.processOverdueBatch(context.Background())

	if len(repo.markedOverdue) != 1 || repo.markedOverdue[0] != candidate.ID {
		t.Fatalf("unexpected marked invoices: %v", repo.markedOverdue)
	}
	if len(notifier.events) != 1 {
		t.Fatalf("events = %d, want 1", len(notifier.events))
	}
	if notifier.events[0].InvoiceNumber != "INV-0007" {
		t.Fatalf("event invoice = %q, want INV-0007", notifier.events[0].InvoiceNumber)
	}
}

func TestProcessOverdueBatch_NotifierErrorStillMarks(t *testing.T) {
	repo := &stubRepo{
		overdueCandidates: []repository.OverdueCandidate{
			{ID: uuid.New(), InvoiceNumber: "INV-0008", DueDate: time.Now().UTC().Add(-time.Hour)},
		},
	}
	notifier := &stubNotifier{err: errors.New("connection refused")}
	svc := NewService(repo, notifier, nil)

	// ошибка доставки напоминания не откатывает смену статуса
	svc.processOverdueBatch(context.Background())

	if len(repo.markedOverdue) != 1 {
		t.Fatalf("marked = %d, want 1", len(repo.markedOverdue))
	}
}

func TestStartStatusReconciliation_ZeroInterval(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// нулевой интервал означает, что фоновый процесс не запускается
	svc.StartStatusReconciliation(ctx, 0)
	<-ctx.Done()
}
