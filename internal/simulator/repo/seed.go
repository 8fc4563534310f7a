package repo

import (
	"context"
	"time"
)

// SeedDemo insere os dados de demonstração usados pelo booking-client:
// um cliente com conta de carteira e reservas em situações distintas de
// política de cancelamento. Idempotente.
func (p *Postgres) SeedDemo(ctx context.Context) error {
	now := time.Now().UTC()

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO wallet_accounts(id, user_id, bank_code, account_number, balance)
		VALUES
			('acc-demo-1', 'user-demo-1', 'VCB', '0071000123456', 0),
			('acc-demo-2', 'supplier-demo-1', 'TCB', '19032100987654', 0)
		ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return err
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO bookings(id, user_id, tour_name, price_paid, status, departure_at)
		VALUES
			($1, 'user-demo-1', 'Ha Long Bay Cruise', 300000, 'CONFIRMED', $2),
			($3, 'user-demo-1', 'Sapa Trekking', 150000, 'CONFIRMED', $4)
		ON CONFLICT (id) DO NOTHING`,
		"booking-refundable", now.Add(10*24*time.Hour),
		"booking-too-late", now.Add(2*time.Hour),
	)
	return err
}
