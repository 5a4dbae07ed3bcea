// Package handler содержит HTTP-обработчики API сервиса счетов.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mkazantsev/invoicer-system/internal/engine"
	"github.com/mkazantsev/invoicer-system/internal/middleware"
	"github.com/mkazantsev/invoicer-system/internal/model"
	"github.com/mkazantsev/invoicer-system/internal/repository"
	"github.com/mkazantsev/invoicer-system/internal/service"
	"github.com/mkazantsev/invoicer-system/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, fullName, email, password string) (uuid.UUID, error)
	AuthenticateUser(ctx context.Context, email, password string) (uuid.UUID, error)
	CreateClient(ctx context.Context, c model.Client) (*model.Client, error)
	GetClientsByUser(ctx context.Context, userID uuid.UUID, filter repository.ClientFilter) ([]model.Client, int, error)
	GetClientByID(ctx context.Context, userID, clientID uuid.UUID) (*model.Client, []model.Invoice, error)
	UpdateClient(ctx context.Context, c model.Client) (*model.Client, error)
	DeleteClient(ctx context.Context, userID, clientID uuid.UUID) error
	CreateInvoice(ctx context.Context, userID uuid.UUID, params service.CreateInvoiceParams) (*model.Invoice, error)
	GetInvoicesByUser(ctx context.Context, userID uuid.UUID, filter repository.InvoiceFilter) ([]model.Invoice, int, error)
	GetInvoiceByID(ctx context.Context, userID, invoiceID uuid.UUID) (*model.Invoice, []model.Payment, error)
	UpdateInvoice(ctx context.Context, userID, invoiceID uuid.UUID, params service.UpdateInvoiceParams) (*model.Invoice, error)
	SetInvoiceStatus(ctx context.Context, userID, invoiceID uuid.UUID, status model.InvoiceStatus) (*model.Invoice, error)
	DeleteInvoice(ctx context.Context, userID, invoiceID uuid.UUID) error
	AddPayment(ctx context.Context, userID, invoiceID uuid.UUID, params service.AddPaymentParams) (*model.Invoice, *model.Payment, error)
	GetPaymentsByInvoice(ctx context.Context, userID, invoiceID uuid.UUID) ([]model.Payment, error)
	GetDashboardStats(ctx context.Context, userID uuid.UUID) (*model.DashboardStats, error)
	GetRevenueChart(ctx context.Context, userID uuid.UUID, months int) ([]model.RevenuePoint, error)
}

// Handler реализует HTTP-обработчики API сервиса счетов.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

type errorResponse struct {
	Message string `json:"message"`
}

// writeError отображает ошибки нижних слоёв в HTTP-статусы: ошибки входных
// данных — 400, конфликты состояния и целостности — 409, отсутствие
// сущности — 404, всё остальное — 500 с записью в лог.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var statusCode int
	switch {
	case errors.Is(err, engine.ErrInvalidInput):
		statusCode = http.StatusBadRequest
	case errors.Is(err, engine.ErrInvalidState),
		errors.Is(err, engine.ErrIntegrity),
		errors.Is(err, repository.ErrUserExists),
		errors.Is(err, repository.ErrClientHasInvoices):
		statusCode = http.StatusConflict
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrClientNotFound),
		errors.Is(err, repository.ErrInvoiceNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidCredentials):
		statusCode = http.StatusUnauthorized
	default:
		h.logger.Error("internal error", zap.Error(err))
		statusCode = http.StatusInternalServerError
	}

	h.writeJSON(w, statusCode, errorResponse{Message: err.Error()})
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return uuid.Nil, false
	}
	return userID, true
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, name))
}

type registerRequest struct {
	FullName string `json:"full_name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Register обрабатывает регистрацию нового пользователя и выдаёт токен.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := validation.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.FullName, req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}

	token, err := h.authMiddleware.IssueToken(userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, tokenResponse{Token: token})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login выполняет аутентификацию пользователя и выдаёт токен.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := validation.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}

	token, err := h.authMiddleware.IssueToken(userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

type clientRequest struct {
	Name    string        `json:"name" validate:"required,max=100"`
	Email   string        `json:"email" validate:"required,email"`
	Phone   string        `json:"phone" validate:"omitempty,max=30"`
	Company string        `json:"company" validate:"omitempty,max=100"`
	Address model.Address `json:"address"`
	Status  string        `json:"status" validate:"omitempty,oneof=active inactive"`
	Notes   string        `json:"notes" validate:"omitempty,max=500"`
}

func (req clientRequest) toModel(userID uuid.UUID) model.Client {
	return model.Client{
		UserID:  userID,
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Company: req.Company,
		Address: req.Address,
		Status:  model.ClientStatus(req.Status),
		Notes:   req.Notes,
	}
}

// CreateClient создаёт клиента текущего пользователя.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req clientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := validation.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
		return
	}

	client, err := h.service.CreateClient(r.Context(), req.toModel(userID))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, client)
}

func parsePaging(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return page, limit
}

type clientListResponse struct {
	Clients     []model.Client `json:"clients"`
	TotalPages  int            `json:"total_pages"`
	CurrentPage int            `json:"current_page"`
	Total       int            `json:"total"`
}

// GetClients возвращает страницу клиентов текущего пользователя.
func (h *Handler) GetClients(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	page, limit := parsePaging(r)
	filter := repository.ClientFilter{
		Status: model.ClientStatus(r.URL.Query().Get("status")),
		Search: r.URL.Query().Get("search"),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	clients, total, err := h.service.GetClientsByUser(r.Context(), userID, filter)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, clientListResponse{
		Clients:     clients,
		TotalPages:  (total + limit - 1) / limit,
		CurrentPage: page,
		Total:       total,
	})
}

// GetClient возвращает клиента вместе с его счетами.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	clientID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	client, invoices, err := h.service.GetClientByID(r.Context(), userID, clientID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"client":   client,
		"invoices": invoices,
	})
}

// UpdateClient обновляет атрибуты клиента.
func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	clientID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	var req clientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := validation.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
		return
	}

	c := req.toModel(userID)
	c.ID = clientID

	client, err := h.service.UpdateClient(r.Context(), c)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, client)
}

// DeleteClient удаляет клиента без счетов.
func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	clientID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	if err := h.service.DeleteClient(r.Context(), userID, clientID); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "client deleted"})
}

type lineItemRequest struct {
	Description string  `json:"description" validate:"required"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	Rate        float64 `json:"rate" validate:"gte=0"`
}

type invoiceRequest struct {
	Client    string            `json:"client" validate:"required,uuid"`
	Items     []lineItemRequest `json:"items" validate:"required,min=1,dive"`
	DueDate   string            `json:"due_date" validate:"required"`
	IssueDate string            `json:"issue_date"`
	Tax       struct {
		Rate float64 `json:"rate" validate:"gte=0,lte=100"`
	} `json:"tax"`
	Discount struct {
		Type  string  `json:"type" validate:"omitempty,oneof=percentage fixed"`
		Value float64 `json:"value" validate:"gte=0"`
	} `json:"discount"`
	Notes string `json:"notes" validate:"omitempty,max=1000"`
	Terms string `json:"terms" validate:"omitempty,max=1000"`
}

func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

func (req invoiceRequest) toItems() []model.LineItem {
	return lo.Map(req.Items, func(item lineItemRequest, _ int) model.LineItem {
		return model.LineItem{
			Description: item.Description,
			Quantity:    decimal.NewFromFloat(item.Quantity),
			Rate:        decimal.NewFromFloat(item.Rate),
		}
	})
}

func (req invoiceRequest) discountKind() model.DiscountKind {
	if req.Discount.Type == "" {
		return model.DiscountPercentage
	}
	return model.DiscountKind(req.Discount.Type)
}

// CreateInvoice создаёт счёт текущего пользователя.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req invoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := validation.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
		return
	}

	clientID, err := uuid.Parse(req.Client)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid client id"})
		return
	}
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid due date"})
		return
	}

	var issueDate time.Time
	if req.IssueDate != "" {
		if issueDate, err = parseDate(req.IssueDate); err != nil {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid issue date"})
			return
		}
	}

	invoice, err := h.service.CreateInvoice(r.Context(), userID, service.CreateInvoiceParams{
		ClientID:  clientID,
		Items:     req.toItems(),
		Tax:       model.TaxSpec{RatePercent: decimal.NewFromFloat(req.Tax.Rate)},
		Discount:  model.DiscountSpec{Kind: req.discountKind(), Value: decimal.NewFromFloat(req.Discount.Value)},
		IssueDate: issueDate,
		DueDate:   dueDate,
		Notes:     req.Notes,
		Terms:     req.Terms,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, invoice)
}

type invoiceListResponse struct {
	Invoices    []model.Invoice `json:"invoices"`
	TotalPages  int             `json:"total_pages"`
	CurrentPage int             `json:"current_page"`
	Total       int             `json:"total"`
}

// GetInvoices возвращает страницу счетов текущего пользователя.
func (h *Handler) GetInvoices(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	page, limit := parsePaging(r)
	filter := repository.InvoiceFilter{
		Status:    model.InvoiceStatus(r.URL.Query().Get("status")),
		Limit:     limit,
		Offset:    (page - 1) * limit,
		SortBy:    r.URL.Query().Get("sort_by"),
		SortOrder: r.URL.Query().Get("sort_order"),
	}
	if clientParam := r.URL.Query().Get("client"); clientParam != "" {
		clientID, err := uuid.Parse(clientParam)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid client id"})
			return
		}
		filter.ClientID = clientID
	}

	invoices, total, err := h.service.GetInvoicesByUser(r.Context(), userID, filter)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, invoiceListResponse{
		Invoices:    invoices,
		TotalPages:  (total + limit - 1) / limit,
		CurrentPage: page,
		Total:       total,
	})
}

// GetInvoice возвращает счёт вместе с платежами по нему.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	invoiceID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	invoice, payments, err := h.service.GetInvoiceByID(r.Context(), userID, invoiceID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"invoice":  invoice,
		"payments": payments,
	})
}

// UpdateInvoice заменяет позиции и параметры счёта.
func (h *Handler) UpdateInvoice(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	invoiceID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	var req invoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := validation.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
		return
	}

	clientID, err := uuid.Parse(req.Client)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid client id"})
		return
	}
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid due date"})
		return
	}

	var issueDate time.Time
	if req.IssueDate != "" {
		if issueDate, err = parseDate(req.IssueDate); err != nil {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid issue date"})
			return
		}
	}

	invoice, err := h.service.UpdateInvoice(r.Context(), userID, invoiceID, service.UpdateInvoiceParams{
		ClientID:  clientID,
		Items:     req.toItems(),
		Tax:       model.TaxSpec{RatePercent: decimal.NewFromFloat(req.Tax.Rate)},
		Discount:  model.DiscountSpec{Kind: req.discountKind(), Value: decimal.NewFromFloat(req.Discount.Value)},
		IssueDate: issueDate,
		DueDate:   dueDate,
		Notes:     req.Notes,
		Terms:     req.Terms,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, invoice)
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft sent viewed paid overdue cancelled"`
}

// SetInvoiceStatus выполняет явную смену статуса счёта.
func (h *Handler) SetInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	invoiceID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := validation.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
		return
	}

	invoice, err := h.service.SetInvoiceStatus(r.Context(), userID, invoiceID, model.InvoiceStatus(req.Status))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, invoice)
}

// DeleteInvoice удаляет счёт вместе с его платежами.
func (h *Handler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	invoiceID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	if err := h.service.DeleteInvoice(r.Context(), userID, invoiceID); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "invoice deleted"})
}

type paymentRequest struct {
	Amount        float64 `json:"amount" validate:"gt=0"`
	Method        string  `json:"method" validate:"required,oneof=cash check bank_transfer paypal stripe other"`
	TransactionID string  `json:"transaction_id" validate:"omitempty,max=100"`
	Notes         string  `json:"notes" validate:"omitempty,max=500"`
}

// AddPayment применяет платёж к счёту текущего пользователя.
func (h *Handler) AddPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	invoiceID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := validation.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
		return
	}

	invoice, payment, err := h.service.AddPayment(r.Context(), userID, invoiceID, service.AddPaymentParams{
		Amount:        decimal.NewFromFloat(req.Amount),
		Method:        model.PaymentMethod(req.Method),
		TransactionID: req.TransactionID,
		Notes:         req.Notes,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{
		"invoice": invoice,
		"payment": payment,
	})
}

// GetPayments возвращает платежи по счёту.
func (h *Handler) GetPayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	invoiceID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	payments, err := h.service.GetPaymentsByInvoice(r.Context(), userID, invoiceID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if len(payments) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, http.StatusOK, payments)
}

// GetDashboardStats возвращает статистику по счетам текущего пользователя.
func (h *Handler) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	stats, err := h.service.GetDashboardStats(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// GetRevenueChart возвращает помесячную выручку за указанный период.
func (h *Handler) GetRevenueChart(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	months, _ := strconv.Atoi(r.URL.Query().Get("months"))

	points, err := h.service.GetRevenueChart(r.Context(), userID, months)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, points)
}
