// Package service реализует бизнес-логику сервиса выставления счетов.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mkazantsev/invoicer-system/internal/engine"
	"github.com/mkazantsev/invoicer-system/internal/model"
	"github.com/mkazantsev/invoicer-system/internal/notify"
	"github.com/mkazantsev/invoicer-system/internal/repository"
	"github.com/mkazantsev/invoicer-system/internal/validation"
)

// ErrInvalidCredentials возвращается при неверной паре email/пароль.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, fullName, email string, passwordHash []byte) (uuid.UUID, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateClient(ctx context.Context, c model.Client) (uuid.UUID, error)
	GetClientsByUser(ctx context.Context, userID uuid.UUID, filter repository.ClientFilter) ([]model.Client, int, error)
	GetClientByID(ctx context.Context, userID, clientID uuid.UUID) (*model.Client, error)
	UpdateClient(ctx context.Context, c model.Client) error
	DeleteClient(ctx context.Context, userID, clientID uuid.UUID) error
	CreateInvoice(ctx context.Context, inv model.Invoice, delta model.ClientDelta) (model.Invoice, error)
	GetInvoicesByUser(ctx context.Context, userID uuid.UUID, filter repository.InvoiceFilter) ([]model.Invoice, int, error)
	GetInvoiceByID(ctx context.Context, userID, invoiceID uuid.UUID) (*model.Invoice, error)
	UpdateInvoice(ctx context.Context, inv model.Invoice) error
	UpdateInvoiceStatus(ctx context.Context, userID, invoiceID uuid.UUID, status model.InvoiceStatus) error
	DeleteInvoice(ctx context.Context, userID, invoiceID uuid.UUID) ([]uuid.UUID, error)
	AddPayment(ctx context.Context, userID, invoiceID uuid.UUID, p model.Payment) (model.Invoice, model.Payment, error)
	GetPaymentsByInvoice(ctx context.Context, userID, invoiceID uuid.UUID) ([]model.Payment, error)
	GetInvoiceSummaries(ctx context.Context, userID uuid.UUID) ([]repository.InvoiceSummary, error)
	CountClientsByUser(ctx context.Context, userID uuid.UUID) (int, error)
	GetRevenueByMonth(ctx context.Context, userID uuid.UUID, since time.Time) ([]model.RevenuePoint, error)
	GetOverdueCandidates(ctx context.Context, now time.Time, limit int) ([]repository.OverdueCandidate, error)
	MarkInvoiceOverdue(ctx context.Context, invoiceID uuid.UUID, sentDate time.Time) (bool, error)
}

// Notifier описывает контракт доставки напоминаний по счетам.
type Notifier interface {
	SendReminder(ctx context.Context, event notify.ReminderEvent) error
}

// Service содержит бизнес-логику сервиса выставления счетов.
type Service struct {
	repo     Repository
	notifier Notifier
	logger   *zap.Logger
}

// NewService создаёт новый сервис с указанным репозиторием и клиентом уведомлений.
func NewService(repo Repository, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя.
func (s *Service) RegisterUser(ctx context.Context, fullName, email, password string) (uuid.UUID, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return uuid.Nil, err
	}
	return s.repo.CreateUser(ctx, fullName, email, hash)
}

// AuthenticateUser проверяет email и пароль пользователя и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (uuid.UUID, error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return uuid.Nil, ErrInvalidCredentials
		}
		return uuid.Nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return uuid.Nil, ErrInvalidCredentials
	}

	return u.ID, nil
}

// CreateClient создаёт клиента пользователя.
func (s *Service) CreateClient(ctx context.Context, c model.Client) (*model.Client, error) {
	if c.Status == "" {
		c.Status = model.ClientStatusActive
	}

	id, err := s.repo.CreateClient(ctx, c)
	if err != nil {
		return nil, err
	}
	return s.repo.GetClientByID(ctx, c.UserID, id)
}

// GetClientsByUser возвращает страницу клиентов пользователя.
func (s *Service) GetClientsByUser(ctx context.Context, userID uuid.UUID, filter repository.ClientFilter) ([]model.Client, int, error) {
	return s.repo.GetClientsByUser(ctx, userID, filter)
}

// GetClientByID возвращает клиента вместе с его счетами.
func (s *Service) GetClientByID(ctx context.Context, userID, clientID uuid.UUID) (*model.Client, []model.Invoice, error) {
	client, err := s.repo.GetClientByID(ctx, userID, clientID)
	if err != nil {
		return nil, nil, err
	}

	invoices, _, err := s.repo.GetInvoicesByUser(ctx, userID, repository.InvoiceFilter{
		ClientID: clientID,
		Limit:    100,
	})
	if err != nil {
		return nil, nil, err
	}

	return client, s.withRecomputedStatuses(invoices), nil
}

// UpdateClient обновляет атрибуты клиента.
func (s *Service) UpdateClient(ctx context.Context, c model.Client) (*model.Client, error) {
	if err := s.repo.UpdateClient(ctx, c); err != nil {
		return nil, err
	}
	return s.repo.GetClientByID(ctx, c.UserID, c.ID)
}

// DeleteClient удаляет клиента без счетов.
func (s *Service) DeleteClient(ctx context.Context, userID, clientID uuid.UUID) error {
	return s.repo.DeleteClient(ctx, userID, clientID)
}

// CreateInvoiceParams содержит параметры создания счёта.
type CreateInvoiceParams struct {
	ClientID  uuid.UUID
	Items     []model.LineItem
	Tax       model.TaxSpec
	Discount  model.DiscountSpec
	IssueDate time.Time
	DueDate   time.Time
	Notes     string
	Terms     string
}

// CreateInvoice собирает снимок счёта через движок и сохраняет его,
// применяя дельту агрегатов клиента той же транзакцией.
func (s *Service) CreateInvoice(ctx context.Context, userID uuid.UUID, params CreateInvoiceParams) (*model.Invoice, error) {
	if _, err := s.repo.GetClientByID(ctx, userID, params.ClientID); err != nil {
		return nil, err
	}

	inv, err := engine.NewInvoice(userID, params.ClientID, params.Items, params.Tax, params.Discount, params.DueDate, engine.InvoiceOptions{
		IssueDate: params.IssueDate,
		Notes:     params.Notes,
		Terms:     params.Terms,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	delta := model.ClientDelta{
		TotalBilledIncrement: inv.Totals.Total,
		LastInvoiceDate:      &now,
	}

	created, err := s.repo.CreateInvoice(ctx, inv, delta)
	if err != nil {
		return nil, err
	}
	if !validation.IsValidInvoiceNumber(created.InvoiceNumber) {
		return nil, fmt.Errorf("%w: assigned invoice number %q", engine.ErrIntegrity, created.InvoiceNumber)
	}
	return &created, nil
}

// GetInvoicesByUser возвращает страницу счетов пользователя. Статусы в
// ответе пересчитаны на текущий момент, сохранённое значение не
// используется как есть.
func (s *Service) GetInvoicesByUser(ctx context.Context, userID uuid.UUID, filter repository.InvoiceFilter) ([]model.Invoice, int, error) {
	invoices, total, err := s.repo.GetInvoicesByUser(ctx, userID, filter)
	if err != nil {
		return nil, 0, err
	}
	return s.withRecomputedStatuses(invoices), total, nil
}

func (s *Service) withRecomputedStatuses(invoices []model.Invoice) []model.Invoice {
	now := time.Now().UTC()
	return lo.Map(invoices, func(inv model.Invoice, _ int) model.Invoice {
		inv.Status = engine.RecomputeStatus(inv, now)
		return inv
	})
}

// GetInvoiceByID возвращает счёт вместе с платежами по нему.
func (s *Service) GetInvoiceByID(ctx context.Context, userID, invoiceID uuid.UUID) (*model.Invoice, []model.Payment, error) {
	inv, err := s.repo.GetInvoiceByID(ctx, userID, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	inv.Status = engine.RecomputeStatus(*inv, time.Now().UTC())

	payments, err := s.repo.GetPaymentsByInvoice(ctx, userID, invoiceID)
	if err != nil {
		return nil, nil, err
	}

	return inv, payments, nil
}

// UpdateInvoiceParams содержит редактируемые поля счёта.
type UpdateInvoiceParams struct {
	ClientID  uuid.UUID
	Items     []model.LineItem
	Tax       model.TaxSpec
	Discount  model.DiscountSpec
	IssueDate time.Time
	DueDate   time.Time
	Notes     string
	Terms     string
}

// UpdateInvoice заменяет позиции и параметры счёта, пересчитывая суммы
// через движок. Номер счёта и история оплат не затрагиваются.
func (s *Service) UpdateInvoice(ctx context.Context, userID, invoiceID uuid.UUID, params UpdateInvoiceParams) (*model.Invoice, error) {
	existing, err := s.repo.GetInvoiceByID(ctx, userID, invoiceID)
	if err != nil {
		return nil, err
	}

	if params.DueDate.IsZero() {
		return nil, fmt.Errorf("%w: due date is required", engine.ErrInvalidInput)
	}

	totals, err := engine.ComputeTotals(params.Items, params.Tax, params.Discount)
	if err != nil {
		return nil, err
	}

	existing.ClientID = params.ClientID
	existing.Items = params.Items
	existing.Tax = params.Tax
	existing.Discount = params.Discount
	existing.Totals = totals
	existing.DueDate = params.DueDate
	if !params.IssueDate.IsZero() {
		existing.IssueDate = params.IssueDate
	}
	existing.Notes = params.Notes
	existing.Terms = params.Terms

	if err := s.repo.UpdateInvoice(ctx, *existing); err != nil {
		return nil, err
	}
	return s.getRecomputed(ctx, userID, invoiceID)
}

func (s *Service) getRecomputed(ctx context.Context, userID, invoiceID uuid.UUID) (*model.Invoice, error) {
	inv, err := s.repo.GetInvoiceByID(ctx, userID, invoiceID)
	if err != nil {
		return nil, err
	}
	inv.Status = engine.RecomputeStatus(*inv, time.Now().UTC())
	return inv, nil
}

// SetInvoiceStatus выполняет явную смену статуса счёта: отправку, отмену
// или возврат из отмены. Это единственный путь, которым счёт покидает
// поглощающие состояния.
func (s *Service) SetInvoiceStatus(ctx context.Context, userID, invoiceID uuid.UUID, status model.InvoiceStatus) (*model.Invoice, error) {
	if !status.Valid() {
		return nil, engine.ErrInvalidInput
	}

	if err := s.repo.UpdateInvoiceStatus(ctx, userID, invoiceID, status); err != nil {
		return nil, err
	}
	return s.repo.GetInvoiceByID(ctx, userID, invoiceID)
}

// DeleteInvoice удаляет счёт вместе с его платежами.
func (s *Service) DeleteInvoice(ctx context.Context, userID, invoiceID uuid.UUID) error {
	paymentIDs, err := s.repo.DeleteInvoice(ctx, userID, invoiceID)
	if err != nil {
		return err
	}
	if len(paymentIDs) > 0 {
		s.logger.Info("cascade-deleted invoice payments",
			zap.String("invoiceID", invoiceID.String()),
			zap.Int("payments", len(paymentIDs)),
		)
	}
	return nil
}

// AddPaymentParams содержит параметры платежа по счёту.
type AddPaymentParams struct {
	Amount        decimal.Decimal
	Method        model.PaymentMethod
	TransactionID string
	Notes         string
}

// AddPayment применяет платёж к счёту и возвращает обновлённый счёт и
// созданный платёж.
func (s *Service) AddPayment(ctx context.Context, userID, invoiceID uuid.UUID, params AddPaymentParams) (*model.Invoice, *model.Payment, error) {
	payment := model.Payment{
		Amount:        params.Amount,
		Method:        params.Method,
		TransactionID: params.TransactionID,
		Notes:         params.Notes,
		Status:        model.PaymentStatusCompleted,
		ProcessedDate: time.Now().UTC(),
	}

	inv, created, err := s.repo.AddPayment(ctx, userID, invoiceID, payment)
	if err != nil {
		return nil, nil, err
	}
	return &inv, &created, nil
}

// GetPaymentsByInvoice возвращает платежи по счёту.
func (s *Service) GetPaymentsByInvoice(ctx context.Context, userID, invoiceID uuid.UUID) ([]model.Payment, error) {
	return s.repo.GetPaymentsByInvoice(ctx, userID, invoiceID)
}

// GetDashboardStats возвращает агрегированную статистику по счетам
// пользователя. Перед агрегацией статус каждого счёта пересчитывается:
// сохранённым значениям без пересчёта доверять нельзя.
func (s *Service) GetDashboardStats(ctx context.Context, userID uuid.UUID) (*model.DashboardStats, error) {
	summaries, err := s.repo.GetInvoiceSummaries(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	statuses := lo.Map(summaries, func(sum repository.InvoiceSummary, _ int) model.InvoiceStatus {
		return engine.RecomputeStatus(model.Invoice{
			Status:     sum.Status,
			PaidAmount: sum.PaidAmount,
			Totals:     model.InvoiceTotals{Total: sum.Total},
			DueDate:    sum.DueDate,
		}, now)
	})

	stats := &model.DashboardStats{
		TotalRevenue:  decimal.Zero,
		PendingAmount: decimal.Zero,
		OverdueAmount: decimal.Zero,
		StatusCounts:  lo.CountValues(statuses),
	}

	for i, sum := range summaries {
		switch statuses[i] {
		case model.InvoiceStatusPaid:
			stats.TotalRevenue = stats.TotalRevenue.Add(sum.Total)
		case model.InvoiceStatusSent, model.InvoiceStatusViewed:
			stats.PendingAmount = stats.PendingAmount.Add(sum.Total)
		case model.InvoiceStatusOverdue:
			stats.OverdueAmount = stats.OverdueAmount.Add(sum.Total)
		}
	}

	if stats.ClientCount, err = s.repo.CountClientsByUser(ctx, userID); err != nil {
		return nil, err
	}

	return stats, nil
}

// GetRevenueChart возвращает помесячную выручку за последние months месяцев.
func (s *Service) GetRevenueChart(ctx context.Context, userID uuid.UUID, months int) ([]model.RevenuePoint, error) {
	if months <= 0 {
		months = 6
	}
	since := time.Now().UTC().AddDate(0, -months, 0)
	return s.repo.GetRevenueByMonth(ctx, userID, since)
}

// StartStatusReconciliation запускает фоновый процесс перевода отправленных
// счетов с истёкшим сроком в просроченные.
func (s *Service) StartStatusReconciliation(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.processOverdueBatch(ctx)
			}
		}
	}()
}

func (s *Service) processOverdueBatch(ctx context.Context) {
	now := time.Now().UTC()

	candidates, err := s.repo.GetOverdueCandidates(ctx, now, 100)
	if err != nil {
		s.logger.Error("select overdue candidates", zap.Error(err))
		return
	}

	for _, c := range candidates {
		marked, err := s.repo.MarkInvoiceOverdue(ctx, c.ID, now)
		if err != nil {
			s.logger.Error("mark invoice overdue", zap.Error(err), zap.String("invoice", c.InvoiceNumber))
			continue
		}
		if !marked {
			continue
		}

		s.logger.Info("invoice became overdue",
			zap.String("invoice", c.InvoiceNumber),
			zap.Time("dueDate", c.DueDate),
		)

		if s.notifier == nil {
			continue
		}
		event := notify.ReminderEvent{
			InvoiceID:     c.ID,
			InvoiceNumber: c.InvoiceNumber,
			Type:          model.ReminderTypeOverdue,
			DueDate:       c.DueDate,
			Outstanding:   c.Outstanding.StringFixed(2),
			SentDate:      now,
		}
		if err := s.notifier.SendReminder(ctx, event); err != nil {
			// Доставка напоминаний — best effort, просрочка уже зафиксирована.
			s.logger.Warn("send reminder", zap.Error(err), zap.String("invoice", c.InvoiceNumber))
		}
	}
}
