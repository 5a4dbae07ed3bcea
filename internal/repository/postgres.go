// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"github.com/mkazantsev/invoicer-system/internal/engine"
	"github.com/mkazantsev/invoicer-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже занятым email.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrClientNotFound возвращается, если клиент не найден или принадлежит другому пользователю.
	ErrClientNotFound = errors.New("client not found")
	// ErrClientHasInvoices возвращается при попытке удалить клиента с существующими счетами.
	ErrClientHasInvoices = errors.New("client has existing invoices")
	// ErrInvoiceNotFound возвращается, если счёт не найден или принадлежит другому пользователю.
	ErrInvoiceNotFound = errors.New("invoice not found")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет операцию при сериализационных конфликтах, дедлоках и
// транзиентных сетевых ошибках. Конфликты уникальности и прочие ошибки
// целостности не повторяются никогда.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	backoff := retry.WithMaxRetries(3, retry.NewConstant(time.Second))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn()
		if err == nil {
			return nil
		}
		if isRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}

	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, fullName, email string, passwordHash []byte) (uuid.UUID, error) {
	id := uuid.New()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, full_name, email, password_hash) VALUES ($1, $2, $3, $4)`,
		id, fullName, email, passwordHash,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return uuid.Nil, fmt.Errorf("%w: %s", ErrUserExists, email)
		}
		return uuid.Nil, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByEmail возвращает пользователя по email.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, full_name, email, password_hash, created_at FROM users WHERE email = $1`,
		email,
	)

	var u model.User
	err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

// ClientFilter описывает параметры выборки клиентов.
type ClientFilter struct {
	Status model.ClientStatus
	Search string
	Limit  int
	Offset int
}

const clientColumns = `id, user_id, name, email, phone, company,
	street, city, state, zip_code, country,
	status, notes, total_billed, total_paid, last_invoice_date, created_at`

func scanClient(row pgx.Row) (model.Client, error) {
	var c model.Client
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Phone, &c.Company,
		&c.Address.Street, &c.Address.City, &c.Address.State, &c.Address.ZipCode, &c.Address.Country,
		&c.Status, &c.Notes, &c.TotalBilled, &c.TotalPaid, &c.LastInvoiceDate, &c.CreatedAt)
	return c, err
}

// CreateClient создаёт нового клиента пользователя.
func (r *PostgresRepository) CreateClient(ctx context.Context, c model.Client) (uuid.UUID, error) {
	id := uuid.New()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO clients (id, user_id, name, email, phone, company,
		    street, city, state, zip_code, country, status, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		id, c.UserID, c.Name, c.Email, c.Phone, c.Company,
		c.Address.Street, c.Address.City, c.Address.State, c.Address.ZipCode, c.Address.Country,
		c.Status, c.Notes,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create client: %w", err)
	}
	return id, nil
}

// GetClientsByUser возвращает страницу клиентов пользователя и их общее количество.
func (r *PostgresRepository) GetClientsByUser(ctx context.Context, userID uuid.UUID, filter ClientFilter) ([]model.Client, int, error) {
	where := []string{"user_id = $1"}
	args := []any{userID}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d OR company ILIKE $%d)", n, n, n))
	}

	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count clients: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM clients WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		clientColumns, cond, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("select clients: %w", err)
	}
	defer rows.Close()

	var clients []model.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return clients, total, nil
}

// GetClientByID возвращает клиента пользователя по идентификатору.
func (r *PostgresRepository) GetClientByID(ctx context.Context, userID, clientID uuid.UUID) (*model.Client, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = $1 AND user_id = $2`,
		clientID, userID,
	)

	c, err := scanClient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return &c, nil
}

// UpdateClient обновляет атрибуты клиента. Агрегаты total_billed/total_paid
// этим путём не изменяются.
func (r *PostgresRepository) UpdateClient(ctx context.Context, c model.Client) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE clients SET name = $3, email = $4, phone = $5, company = $6,
		    street = $7, city = $8, state = $9, zip_code = $10, country = $11,
		    status = $12, notes = $13
		 WHERE id = $1 AND user_id = $2`,
		c.ID, c.UserID, c.Name, c.Email, c.Phone, c.Company,
		c.Address.Street, c.Address.City, c.Address.State, c.Address.ZipCode, c.Address.Country,
		c.Status, c.Notes,
	)
	if err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrClientNotFound
	}
	return nil
}

// DeleteClient удаляет клиента без счетов. Клиент с существующими счетами
// не удаляется.
func (r *PostgresRepository) DeleteClient(ctx context.Context, userID, clientID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var invoiceCount int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM invoices WHERE client_id = $1 AND user_id = $2`,
		clientID, userID,
	).Scan(&invoiceCount)
	if err != nil {
		return fmt.Errorf("count client invoices: %w", err)
	}
	if invoiceCount > 0 {
		return ErrClientHasInvoices
	}

	cmdTag, err := tx.Exec(ctx,
		`DELETE FROM clients WHERE id = $1 AND user_id = $2`,
		clientID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrClientNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const invoiceColumns = `id, user_id, client_id, invoice_number,
	subtotal, discount_kind, discount_value, discount_amount, tax_rate, tax_amount, total,
	status, issue_date, due_date, paid_date, paid_amount, payment_method, notes, terms, created_at`

func scanInvoice(row pgx.Row) (model.Invoice, error) {
	var inv model.Invoice
	err := row.Scan(&inv.ID, &inv.UserID, &inv.ClientID, &inv.InvoiceNumber,
		&inv.Totals.Subtotal, &inv.Discount.Kind, &inv.Discount.Value, &inv.Totals.DiscountAmount,
		&inv.Tax.RatePercent, &inv.Totals.TaxAmount, &inv.Totals.Total,
		&inv.Status, &inv.IssueDate, &inv.DueDate, &inv.PaidDate, &inv.PaidAmount,
		&inv.PaymentMethod, &inv.Notes, &inv.Terms, &inv.CreatedAt)
	return inv, err
}

func insertInvoiceItems(ctx context.Context, tx pgx.Tx, invoiceID uuid.UUID, items []model.LineItem) error {
	for i, item := range items {
		_, err := tx.Exec(ctx,
			`INSERT INTO invoice_items (invoice_id, position, description, quantity, rate)
			 VALUES ($1, $2, $3, $4, $5)`,
			invoiceID, i, item.Description, item.Quantity, item.Rate,
		)
		if err != nil {
			return fmt.Errorf("insert invoice item: %w", err)
		}
	}
	return nil
}

// CreateInvoice сохраняет новый счёт, назначая ему номер внутри транзакции.
//
// Строка пользователя блокируется на время подсчёта существующих счетов,
// поэтому назначение номера сериализовано в рамках одного аккаунта.
// Дельта агрегатов клиента применяется той же транзакцией. Конфликт по
// уникальному номеру, если он всё же случился, отображается в
// engine.ErrIntegrity и не повторяется.
func (r *PostgresRepository) CreateInvoice(ctx context.Context, inv model.Invoice, delta model.ClientDelta) (model.Invoice, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Invoice{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var dummy int
	err = tx.QueryRow(ctx, `SELECT 1 FROM users WHERE id = $1 FOR UPDATE`, inv.UserID).Scan(&dummy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Invoice{}, ErrUserNotFound
		}
		return model.Invoice{}, fmt.Errorf("lock user for update: %w", err)
	}

	var priorCount int
	err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE user_id = $1`, inv.UserID).Scan(&priorCount)
	if err != nil {
		return model.Invoice{}, fmt.Errorf("count invoices: %w", err)
	}

	inv.ID = uuid.New()
	inv.InvoiceNumber = engine.AssignInvoiceNumber(priorCount)

	_, err = tx.Exec(ctx,
		`INSERT INTO invoices (id, user_id, client_id, invoice_number,
		    subtotal, discount_kind, discount_value, discount_amount, tax_rate, tax_amount, total,
		    status, issue_date, due_date, paid_amount, payment_method, notes, terms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		inv.ID, inv.UserID, inv.ClientID, inv.InvoiceNumber,
		inv.Totals.Subtotal, string(inv.Discount.Kind), inv.Discount.Value, inv.Totals.DiscountAmount,
		inv.Tax.RatePercent, inv.Totals.TaxAmount, inv.Totals.Total,
		string(inv.Status), inv.IssueDate, inv.DueDate, inv.PaidAmount,
		string(inv.PaymentMethod), inv.Notes, inv.Terms,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.UniqueViolation {
				return model.Invoice{}, fmt.Errorf("%w: invoice number %s", engine.ErrIntegrity, inv.InvoiceNumber)
			}
			if pgErr.Code == pgerrcode.ForeignKeyViolation {
				return model.Invoice{}, ErrClientNotFound
			}
		}
		return model.Invoice{}, fmt.Errorf("insert invoice: %w", err)
	}

	if err := insertInvoiceItems(ctx, tx, inv.ID, inv.Items); err != nil {
		return model.Invoice{}, err
	}

	cmdTag, err := tx.Exec(ctx,
		`UPDATE clients SET total_billed = total_billed + $3, last_invoice_date = $4
		 WHERE id = $1 AND user_id = $2`,
		inv.ClientID, inv.UserID, delta.TotalBilledIncrement, delta.LastInvoiceDate,
	)
	if err != nil {
		return model.Invoice{}, fmt.Errorf("apply client delta: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return model.Invoice{}, ErrClientNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Invoice{}, fmt.Errorf("commit tx: %w", err)
	}

	return inv, nil
}

// InvoiceFilter описывает параметры выборки счетов.
type InvoiceFilter struct {
	Status    model.InvoiceStatus
	ClientID  uuid.UUID
	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
}

var invoiceSortColumns = map[string]string{
	"created_at":     "created_at",
	"issue_date":     "issue_date",
	"due_date":       "due_date",
	"total":          "total",
	"invoice_number": "invoice_number",
}

// GetInvoicesByUser возвращает страницу счетов пользователя (без позиций)
// и их общее количество.
func (r *PostgresRepository) GetInvoicesByUser(ctx context.Context, userID uuid.UUID, filter InvoiceFilter) ([]model.Invoice, int, error) {
	where := []string{"user_id = $1"}
	args := []any{userID}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.ClientID != uuid.Nil {
		args = append(args, filter.ClientID)
		where = append(where, fmt.Sprintf("client_id = $%d", len(args)))
	}

	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	sortColumn, ok := invoiceSortColumns[filter.SortBy]
	if !ok {
		sortColumn = "created_at"
	}
	sortOrder := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		sortOrder = "ASC"
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		invoiceColumns, cond, sortColumn, sortOrder, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("select invoices: %w", err)
	}
	defer rows.Close()

	var invoices []model.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return invoices, total, nil
}

func (r *PostgresRepository) loadInvoiceItems(ctx context.Context, invoiceID uuid.UUID) ([]model.LineItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT description, quantity, rate FROM invoice_items WHERE invoice_id = $1 ORDER BY position`,
		invoiceID,
	)
	if err != nil {
		return nil, fmt.Errorf("select invoice items: %w", err)
	}
	defer rows.Close()

	var items []model.LineItem
	for rows.Next() {
		var item model.LineItem
		if err := rows.Scan(&item.Description, &item.Quantity, &item.Rate); err != nil {
			return nil, fmt.Errorf("scan invoice item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return items, nil
}

func (r *PostgresRepository) loadReminders(ctx context.Context, invoiceID uuid.UUID) ([]model.Reminder, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT sent_date, type FROM reminders WHERE invoice_id = $1 ORDER BY sent_date`,
		invoiceID,
	)
	if err != nil {
		return nil, fmt.Errorf("select reminders: %w", err)
	}
	defer rows.Close()

	var reminders []model.Reminder
	for rows.Next() {
		var rem model.Reminder
		if err := rows.Scan(&rem.SentDate, &rem.Type); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		reminders = append(reminders, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return reminders, nil
}

// GetInvoiceByID возвращает счёт пользователя вместе с позициями и напоминаниями.
func (r *PostgresRepository) GetInvoiceByID(ctx context.Context, userID, invoiceID uuid.UUID) (*model.Invoice, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 AND user_id = $2`,
		invoiceID, userID,
	)

	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}

	if inv.Items, err = r.loadInvoiceItems(ctx, inv.ID); err != nil {
		return nil, err
	}
	if inv.Reminders, err = r.loadReminders(ctx, inv.ID); err != nil {
		return nil, err
	}

	return &inv, nil
}

// UpdateInvoice перезаписывает редактируемые поля счёта и его позиции.
// Номер счёта, paidAmount и paidDate этим путём не изменяются.
func (r *PostgresRepository) UpdateInvoice(ctx context.Context, inv model.Invoice) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	cmdTag, err := tx.Exec(ctx,
		`UPDATE invoices SET client_id = $3,
		    subtotal = $4, discount_kind = $5, discount_value = $6, discount_amount = $7,
		    tax_rate = $8, tax_amount = $9, total = $10,
		    status = $11, issue_date = $12, due_date = $13, notes = $14, terms = $15
		 WHERE id = $1 AND user_id = $2`,
		inv.ID, inv.UserID, inv.ClientID,
		inv.Totals.Subtotal, string(inv.Discount.Kind), inv.Discount.Value, inv.Totals.DiscountAmount,
		inv.Tax.RatePercent, inv.Totals.TaxAmount, inv.Totals.Total,
		string(inv.Status), inv.IssueDate, inv.DueDate, inv.Notes, inv.Terms,
	)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, inv.ID); err != nil {
		return fmt.Errorf("delete invoice items: %w", err)
	}
	if err := insertInvoiceItems(ctx, tx, inv.ID, inv.Items); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// UpdateInvoiceStatus выполняет явную смену статуса (отправка, отмена,
// возврат из отмены). Автоматические переходы идут через AddPayment и
// MarkInvoiceOverdue, а не этим путём.
func (r *PostgresRepository) UpdateInvoiceStatus(ctx context.Context, userID, invoiceID uuid.UUID, status model.InvoiceStatus) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE invoices SET status = $3 WHERE id = $1 AND user_id = $2`,
		invoiceID, userID, string(status),
	)
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

// DeleteInvoice удаляет счёт вместе с его платежами и возвращает
// идентификаторы удалённых платежей.
func (r *PostgresRepository) DeleteInvoice(ctx context.Context, userID, invoiceID uuid.UUID) ([]uuid.UUID, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`SELECT id FROM payments WHERE invoice_id = $1 AND user_id = $2`,
		invoiceID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}

	var paymentIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan payment id: %w", err)
		}
		paymentIDs = append(paymentIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM payments WHERE invoice_id = $1 AND user_id = $2`, invoiceID, userID); err != nil {
		return nil, fmt.Errorf("delete payments: %w", err)
	}

	cmdTag, err := tx.Exec(ctx, `DELETE FROM invoices WHERE id = $1 AND user_id = $2`, invoiceID, userID)
	if err != nil {
		return nil, fmt.Errorf("delete invoice: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return nil, ErrInvoiceNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return paymentIDs, nil
}

// AddPayment применяет платёж к счёту. Строка счёта блокируется на время
// применения, поэтому конкурентные платежи по одному счёту сериализованы;
// сам расчёт выполняет движок, и его ошибки возвращаются без изменений.
func (r *PostgresRepository) AddPayment(ctx context.Context, userID, invoiceID uuid.UUID, p model.Payment) (model.Invoice, model.Payment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Invoice{}, model.Payment{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		invoiceID, userID,
	)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Invoice{}, model.Payment{}, ErrInvoiceNotFound
		}
		return model.Invoice{}, model.Payment{}, fmt.Errorf("lock invoice for update: %w", err)
	}

	updated, delta, err := engine.ApplyPayment(inv, p)
	if err != nil {
		return model.Invoice{}, model.Payment{}, err
	}

	p.ID = uuid.New()
	p.UserID = userID
	p.InvoiceID = invoiceID

	_, err = tx.Exec(ctx,
		`INSERT INTO payments (id, user_id, invoice_id, amount, method, transaction_id, notes, status, processed_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.UserID, p.InvoiceID, p.Amount, string(p.Method), p.TransactionID, p.Notes, string(p.Status), p.ProcessedDate,
	)
	if err != nil {
		return model.Invoice{}, model.Payment{}, fmt.Errorf("insert payment: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE invoices SET paid_amount = $3, status = $4, paid_date = $5, payment_method = $6
		 WHERE id = $1 AND user_id = $2`,
		updated.ID, userID, updated.PaidAmount, string(updated.Status), updated.PaidDate, string(updated.PaymentMethod),
	)
	if err != nil {
		return model.Invoice{}, model.Payment{}, fmt.Errorf("update invoice: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE clients SET total_paid = total_paid + $3 WHERE id = $1 AND user_id = $2`,
		updated.ClientID, userID, delta.TotalPaidIncrement,
	)
	if err != nil {
		return model.Invoice{}, model.Payment{}, fmt.Errorf("apply client delta: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Invoice{}, model.Payment{}, fmt.Errorf("commit tx: %w", err)
	}

	return updated, p, nil
}

// GetPaymentsByInvoice возвращает платежи по счёту, новые первыми.
func (r *PostgresRepository) GetPaymentsByInvoice(ctx context.Context, userID, invoiceID uuid.UUID) ([]model.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, invoice_id, amount, method, transaction_id, notes, status, processed_date
		 FROM payments
		 WHERE invoice_id = $1 AND user_id = $2
		 ORDER BY processed_date DESC`,
		invoiceID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	var payments []model.Payment
	for rows.Next() {
		var p model.Payment
		if err := rows.Scan(&p.ID, &p.UserID, &p.InvoiceID, &p.Amount, &p.Method,
			&p.TransactionID, &p.Notes, &p.Status, &p.ProcessedDate); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return payments, nil
}

// InvoiceSummary содержит минимальный срез счёта для пересчёта статуса
// и агрегации.
type InvoiceSummary struct {
	ID         uuid.UUID
	Status     model.InvoiceStatus
	Total      decimal.Decimal
	PaidAmount decimal.Decimal
	DueDate    time.Time
}

// GetInvoiceSummaries возвращает срезы всех счетов пользователя.
func (r *PostgresRepository) GetInvoiceSummaries(ctx context.Context, userID uuid.UUID) ([]InvoiceSummary, error) {
	var summaries []InvoiceSummary

	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT id, status, total, paid_amount, due_date FROM invoices WHERE user_id = $1`,
			userID,
		)
		if err != nil {
			return fmt.Errorf("select invoice summaries: %w", err)
		}
		defer rows.Close()

		summaries = summaries[:0]
		for rows.Next() {
			var s InvoiceSummary
			if err := rows.Scan(&s.ID, &s.Status, &s.Total, &s.PaidAmount, &s.DueDate); err != nil {
				return fmt.Errorf("scan invoice summary: %w", err)
			}
			summaries = append(summaries, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return summaries, nil
}

// CountClientsByUser возвращает количество клиентов пользователя.
func (r *PostgresRepository) CountClientsByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count clients: %w", err)
	}
	return count, nil
}

// GetRevenueByMonth возвращает помесячную выручку по оплаченным счетам
// начиная с указанной даты.
func (r *PostgresRepository) GetRevenueByMonth(ctx context.Context, userID uuid.UUID, since time.Time) ([]model.RevenuePoint, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT EXTRACT(YEAR FROM paid_date)::int, EXTRACT(MONTH FROM paid_date)::int,
		        COALESCE(SUM(total), 0), COUNT(*)
		 FROM invoices
		 WHERE user_id = $1 AND status = $2 AND paid_date >= $3
		 GROUP BY 1, 2
		 ORDER BY 1, 2`,
		userID, string(model.InvoiceStatusPaid), since,
	)
	if err != nil {
		return nil, fmt.Errorf("select revenue: %w", err)
	}
	defer rows.Close()

	var points []model.RevenuePoint
	for rows.Next() {
		var (
			year, month int
			p           model.RevenuePoint
		)
		if err := rows.Scan(&year, &month, &p.Revenue, &p.InvoiceCount); err != nil {
			return nil, fmt.Errorf("scan revenue point: %w", err)
		}
		p.Year = year
		p.Month = time.Month(month)
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return points, nil
}

// OverdueCandidate описывает отправленный счёт с истёкшим сроком оплаты,
// ожидающий перевода в просроченные.
type OverdueCandidate struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	InvoiceNumber string
	DueDate       time.Time
	Outstanding   decimal.Decimal
}

// GetOverdueCandidates возвращает счета, для которых нужно зафиксировать просрочку.
func (r *PostgresRepository) GetOverdueCandidates(ctx context.Context, now time.Time, limit int) ([]OverdueCandidate, error) {
	var candidates []OverdueCandidate

	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT id, user_id, invoice_number, due_date, total - paid_amount
			 FROM invoices
			 WHERE status IN ($1, $2) AND due_date < $3 AND paid_amount < total
			 ORDER BY due_date
			 LIMIT $4`,
			string(model.InvoiceStatusSent), string(model.InvoiceStatusViewed), now, limit,
		)
		if err != nil {
			return fmt.Errorf("select overdue candidates: %w", err)
		}
		defer rows.Close()

		candidates = candidates[:0]
		for rows.Next() {
			var c OverdueCandidate
			if err := rows.Scan(&c.ID, &c.UserID, &c.InvoiceNumber, &c.DueDate, &c.Outstanding); err != nil {
				return fmt.Errorf("scan overdue candidate: %w", err)
			}
			candidates = append(candidates, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return candidates, nil
}

// MarkInvoiceOverdue переводит счёт в просроченные и записывает напоминание.
// Возвращает false, если счёт уже ушёл из состояния sent/viewed (например,
// был оплачен между выборкой и пометкой).
func (r *PostgresRepository) MarkInvoiceOverdue(ctx context.Context, invoiceID uuid.UUID, sentDate time.Time) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	cmdTag, err := tx.Exec(ctx,
		`UPDATE invoices SET status = $2
		 WHERE id = $1 AND status IN ($3, $4)`,
		invoiceID, string(model.InvoiceStatusOverdue),
		string(model.InvoiceStatusSent), string(model.InvoiceStatusViewed),
	)
	if err != nil {
		return false, fmt.Errorf("mark invoice overdue: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO reminders (invoice_id, sent_date, type) VALUES ($1, $2, $3)`,
		invoiceID, sentDate, string(model.ReminderTypeOverdue),
	)
	if err != nil {
		return false, fmt.Errorf("insert reminder: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}
	return true, nil
}
