package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/radieske/tour-booking-client-poc/pkg/contracts/dto"
	"github.com/radieske/tour-booking-client-poc/pkg/contracts/status"
)

var (
	ErrNotFound = errors.New("not found")
)

// Postgres implementa a persistência do simulador: reservas, contas de
// carteira, transações de moeda e jobs de cancelamento
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Migrate cria o schema mínimo do simulador
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS bookings(
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			tour_name TEXT NOT NULL,
			price_paid BIGINT NOT NULL,
			status TEXT NOT NULL DEFAULT 'CONFIRMED',
			departure_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS wallet_accounts(
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			bank_code TEXT NOT NULL,
			account_number TEXT NOT NULL,
			balance BIGINT NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS coin_transactions(
			payment_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			account_id TEXT NOT NULL,
			tx_type TEXT NOT NULL,
			amount BIGINT NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS cancellation_jobs(
			id TEXT PRIMARY KEY,
			booking_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			supplier_cancel BOOLEAN NOT NULL DEFAULT FALSE,
			status TEXT NOT NULL DEFAULT 'PENDING',
			refunded_amount BIGINT NOT NULL DEFAULT 0,
			reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

// GetBooking carrega uma reserva pelo id
func (p *Postgres) GetBooking(ctx context.Context, bookingID string) (dto.Booking, error) {
	var b dto.Booking
	var departure sql.NullTime
	err := p.db.QueryRowContext(ctx, `
		SELECT id, user_id, tour_name, price_paid, status, departure_at
		FROM bookings WHERE id=$1`, bookingID).
		Scan(&b.ID, &b.UserID, &b.TourName, &b.PricePaid, &b.Status, &departure)
	if err == sql.ErrNoRows {
		return dto.Booking{}, ErrNotFound
	}
	if err != nil {
		return dto.Booking{}, err
	}
	if departure.Valid {
		b.DepartureAt = departure.Time.Unix()
	}
	return b, nil
}

// CreateJob insere um job de cancelamento PENDING
func (p *Postgres) CreateJob(ctx context.Context, jobID, bookingID, userID string, supplierCancel bool) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO cancellation_jobs(id, booking_id, user_id, supplier_cancel, status)
		VALUES($1,$2,$3,$4,'PENDING')`, jobID, bookingID, userID, supplierCancel)
	return err
}

// GetJob devolve o status corrente de um job
func (p *Postgres) GetJob(ctx context.Context, jobID string) (dto.JobStatus, error) {
	var j dto.JobStatus
	err := p.db.QueryRowContext(ctx, `
		SELECT id, status, refunded_amount, reason FROM cancellation_jobs WHERE id=$1`, jobID).
		Scan(&j.JobID, &j.Status, &j.RefundedAmount, &j.Reason)
	if err == sql.ErrNoRows {
		return dto.JobStatus{}, ErrNotFound
	}
	return j, err
}

// FinishJob grava o desfecho terminal de um job; idempotente para jobs já
// encerrados
func (p *Postgres) FinishJob(ctx context.Context, jobID, jobStatus string, refunded int64, reason string) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE cancellation_jobs
		SET status=$1, refunded_amount=$2, reason=$3, updated_at=NOW()
		WHERE id=$4 AND status='PENDING'`, jobStatus, refunded, reason, jobID)
	return err
}

// SettleCancellation cancela a reserva e credita o reembolso na conta do
// usuário numa única transação, com lock pessimista na reserva. Retorna
// false quando a reserva já não estava CONFIRMED e nada foi creditado.
func (p *Postgres) SettleCancellation(ctx context.Context, bookingID string, refund int64) (bool, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var userID, bookingStatus string
	if err = tx.QueryRowContext(ctx, `
		SELECT user_id, status FROM bookings WHERE id=$1 FOR UPDATE`, bookingID).
		Scan(&userID, &bookingStatus); err != nil {
		if err == sql.ErrNoRows {
			return false, ErrNotFound
		}
		return false, err
	}

	if bookingStatus != "CONFIRMED" {
		return false, nil
	} // já liquidado por outro job

	if _, err = tx.ExecContext(ctx, `UPDATE bookings SET status='CANCELLED' WHERE id=$1`, bookingID); err != nil {
		return false, err
	}

	if refund > 0 {
		if _, err = tx.ExecContext(ctx, `
			UPDATE wallet_accounts SET balance = balance + $1 WHERE user_id=$2`, refund, userID); err != nil {
			return false, err
		}
	}

	return true, tx.Commit()
}

// CreateTransaction registra uma movimentação de moeda PENDING
func (p *Postgres) CreateTransaction(ctx context.Context, userID, accountID, txType string, amount int64) (paymentID string, err error) {
	paymentID = uuid.New().String()
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO coin_transactions(payment_id, user_id, account_id, tx_type, amount, status)
		VALUES($1,$2,$3,$4,$5,'PENDING')`, paymentID, userID, accountID, txType, amount)
	if err != nil {
		return "", err
	}
	return paymentID, nil
}

// GetTransaction devolve a transação pelo paymentId
func (p *Postgres) GetTransaction(ctx context.Context, paymentID string) (dto.Transaction, error) {
	var t dto.Transaction
	var created sql.NullTime
	err := p.db.QueryRowContext(ctx, `
		SELECT payment_id, user_id, tx_type, amount, status, created_at
		FROM coin_transactions WHERE payment_id=$1`, paymentID).
		Scan(&t.PaymentID, &t.UserID, &t.Type, &t.Amount, &t.Status, &created)
	if err == sql.ErrNoRows {
		return dto.Transaction{}, ErrNotFound
	}
	if err != nil {
		return dto.Transaction{}, err
	}
	if created.Valid {
		t.CreatedAt = created.Time.Unix()
	}
	return t, nil
}

// ConfirmTransaction marca a transação como SUCCESS e credita a carteira.
// Idempotente: uma transação fora de PENDING não é creditada de novo;
// changed indica se esta chamada fez a transição.
func (p *Postgres) ConfirmTransaction(ctx context.Context, paymentID string) (t dto.Transaction, changed bool, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return dto.Transaction{}, false, err
	}
	defer tx.Rollback()

	var accountID string
	err = tx.QueryRowContext(ctx, `
		SELECT payment_id, user_id, account_id, tx_type, amount, status
		FROM coin_transactions WHERE payment_id=$1 FOR UPDATE`, paymentID).
		Scan(&t.PaymentID, &t.UserID, &accountID, &t.Type, &t.Amount, &t.Status)
	if err == sql.ErrNoRows {
		return dto.Transaction{}, false, ErrNotFound
	}
	if err != nil {
		return dto.Transaction{}, false, err
	}

	if t.Status != status.Pending {
		return t, false, nil
	} // já tratado

	if _, err = tx.ExecContext(ctx, `
		UPDATE coin_transactions SET status='SUCCESS' WHERE payment_id=$1`, paymentID); err != nil {
		return dto.Transaction{}, false, err
	}
	if _, err = tx.ExecContext(ctx, `
		UPDATE wallet_accounts SET balance = balance + $1 WHERE id=$2`, t.Amount, accountID); err != nil {
		return dto.Transaction{}, false, err
	}

	if err = tx.Commit(); err != nil {
		return dto.Transaction{}, false, err
	}
	t.Status = status.Success
	return t, true, nil
}

// ExpireTransaction marca como EXPIRED uma transação ainda PENDING.
// Retorna false quando o pagamento já tinha desfecho.
func (p *Postgres) ExpireTransaction(ctx context.Context, paymentID string) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE coin_transactions SET status='EXPIRED'
		WHERE payment_id=$1 AND status='PENDING'`, paymentID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListTransactions pagina o histórico, opcionalmente filtrado por usuário
func (p *Postgres) ListTransactions(ctx context.Context, userID string, page, pageSize int) (dto.TransactionPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	out := dto.TransactionPage{Items: []dto.Transaction{}, Page: page, PageSize: pageSize}

	countQuery := `SELECT COUNT(*) FROM coin_transactions`
	listQuery := `
		SELECT payment_id, user_id, tx_type, amount, status, created_at
		FROM coin_transactions ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	args := []any{pageSize, (page - 1) * pageSize}

	if userID != "" {
		countQuery = `SELECT COUNT(*) FROM coin_transactions WHERE user_id=$1`
		listQuery = `
			SELECT payment_id, user_id, tx_type, amount, status, created_at
			FROM coin_transactions WHERE user_id=$1
			ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = []any{userID, pageSize, (page - 1) * pageSize}
	}

	if userID != "" {
		if err := p.db.QueryRowContext(ctx, countQuery, userID).Scan(&out.Total); err != nil {
			return out, err
		}
	} else {
		if err := p.db.QueryRowContext(ctx, countQuery).Scan(&out.Total); err != nil {
			return out, err
		}
	}

	rows, err := p.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return out, err
	}
	defer rows.Close()

	for rows.Next() {
		var t dto.Transaction
		var created sql.NullTime
		if err := rows.Scan(&t.PaymentID, &t.UserID, &t.Type, &t.Amount, &t.Status, &created); err != nil {
			return out, err
		}
		if created.Valid {
			t.CreatedAt = created.Time.Unix()
		}
		out.Items = append(out.Items, t)
	}
	return out, rows.Err()
}

// WalletAccounts lista as contas de recebimento de um usuário
func (p *Postgres) WalletAccounts(ctx context.Context, userID string) ([]dto.WalletAccount, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, bank_code, account_number, balance
		FROM wallet_accounts WHERE user_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []dto.WalletAccount{}
	for rows.Next() {
		var a dto.WalletAccount
		if err := rows.Scan(&a.ID, &a.UserID, &a.BankCode, &a.AccountNumber, &a.Balance); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
