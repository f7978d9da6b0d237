package main

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/ledger-recon/internal/app"
	"github.com/odyssey-erp/ledger-recon/internal/platform/db"
)

//go:embed schema.sql
var schema string

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx := context.Background()
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	fmt.Println("→ Applying ledger schema...")
	if _, err := pool.Exec(ctx, schema); err != nil {
		log.Fatalf("apply schema: %v", err)
	}

	steps := []struct {
		name string
		fn   func(context.Context, pgx.Tx) error
	}{
		{"counterparties", seedCounterparties},
		{"billing documents", seedBillingDocuments},
		{"quotes", seedQuotes},
		{"tax retentions", seedTaxRetentions},
		{"payment orders", seedPaymentOrders},
		{"negotiable instruments", seedInstruments},
	}

	err = db.WithTx(ctx, pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		for _, step := range steps {
			fmt.Printf("→ Seeding %s...\n", step.name)
			if err := step.fn(ctx, tx); err != nil {
				return fmt.Errorf("seed %s: %w", step.name, err)
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("%v", err)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func day(month time.Month, d int) time.Time {
	return time.Date(2024, month, d, 9, 0, 0, 0, time.UTC)
}

func seedCounterparties(ctx context.Context, tx pgx.Tx) error {
	customers := []struct {
		id   int64
		name string
	}{
		{7, "Acme Trading"},
		{8, "Zenith Retail"},
	}
	for _, c := range customers {
		if _, err := tx.Exec(ctx, `
			INSERT INTO customers (id, name) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`, c.id, c.name); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO suppliers (id, name) VALUES (3, 'Borneo Logistics')
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`); err != nil {
		return err
	}
	return nil
}

func seedBillingDocuments(ctx context.Context, tx pgx.Tx) error {
	ar := []struct {
		id         int64
		customerID int64
		number     string
		total      string
		status     string
		createdAt  time.Time
	}{
		{11, 7, "INV-2024-011", "1000.000", "confirmed", day(time.March, 1)},
		{12, 7, "INV-2024-012", "250.500", "draft", day(time.March, 12)},
		{13, 7, "INV-2024-013", "80.000", "void", day(time.March, 14)},
		{21, 8, "INV-2024-021", "4200.000", "sent", day(time.February, 20)},
	}
	for _, inv := range ar {
		if _, err := tx.Exec(ctx, `
			INSERT INTO ar_invoices (id, customer_id, number, total, status, created_at, due_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6 + INTERVAL '30 days')
			ON CONFLICT (id) DO NOTHING`,
			inv.id, inv.customerID, inv.number, inv.total, inv.status, inv.createdAt); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO ap_invoices (id, supplier_id, number, total, status, created_at, due_at)
		VALUES (31, 3, 'BL-7781', 1500.000, 'approved', $1, $1 + INTERVAL '45 days')
		ON CONFLICT (id) DO NOTHING`, day(time.March, 2)); err != nil {
		return err
	}
	return nil
}

func seedQuotes(ctx context.Context, tx pgx.Tx) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO quotations (id, customer_id, doc_number, total_amount, status, quote_date, notes)
		VALUES (5, 7, 'QT-0005', 640.000, 'accepted', $1, 'Spring restock')
		ON CONFLICT (id) DO NOTHING`, day(time.February, 25)); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO purchase_quotations (id, supplier_id, doc_number, total_amount, status, quote_date, notes)
		VALUES (6, 3, 'PQ-0006', 1500.000, 'sent', $1, NULL)
		ON CONFLICT (id) DO NOTHING`, day(time.February, 27)); err != nil {
		return err
	}
	return nil
}

func seedTaxRetentions(ctx context.Context, tx pgx.Tx) error {
	rows := []struct {
		id          int64
		name        string
		kind        string
		certificate string
		amount      string
		status      string
		retainedAt  time.Time
	}{
		{2, "Acme Trading", "customer", "RET-0002", "100.000", "final-confirmed", day(time.March, 10)},
		{3, "Borneo Logistics", "vendor", "RET-0003", "45.000", "draft", day(time.March, 4)},
	}
	for _, r := range rows {
		if _, err := tx.Exec(ctx, `
			INSERT INTO tax_retentions (id, counterparty_name, counterparty_kind, certificate_number, amount, status, retained_at, tax_code)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 'PPH23')
			ON CONFLICT (id) DO NOTHING`,
			r.id, r.name, r.kind, r.certificate, r.amount, r.status, r.retainedAt); err != nil {
			return err
		}
	}
	return nil
}

func seedPaymentOrders(ctx context.Context, tx pgx.Tx) error {
	rows := []struct {
		id     int64
		name   string
		kind   string
		number string
		amount string
		status string
		date   time.Time
	}{
		{4, "Acme Trading", "customer", "PO-0004", "600.000", "confirmed-paid", day(time.March, 10)},
		{9, "Borneo Logistics", "vendor", "PO-0009", "900.000", "confirmed_paid", day(time.March, 15)},
		{10, "Borneo Logistics", "vendor", "PO-0010", "600.000", "requested", day(time.March, 18)},
	}
	for _, r := range rows {
		if _, err := tx.Exec(ctx, `
			INSERT INTO payment_orders (id, counterparty_name, counterparty_kind, order_number, amount, status, order_date, concept)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 'Settlement')
			ON CONFLICT (id) DO NOTHING`,
			r.id, r.name, r.kind, r.number, r.amount, r.status, r.date); err != nil {
			return err
		}
	}
	return nil
}

func seedInstruments(ctx context.Context, tx pgx.Tx) error {
	rows := []struct {
		id        int64
		name      string
		direction string
		number    string
		amount    string
		status    string
		issuedAt  time.Time
	}{
		{1, "Zenith Retail", "received", "CHQ-88120", "2000.000", "deposited", day(time.March, 5)},
		{2, "Borneo Logistics", "issued", "CHQ-10017", "300.000", "in-portfolio", day(time.March, 20)},
	}
	for _, r := range rows {
		if _, err := tx.Exec(ctx, `
			INSERT INTO negotiable_instruments (id, counterparty_name, direction, instrument_number, amount, status, issued_at, bank_name)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 'Bank Mandiri')
			ON CONFLICT (id) DO NOTHING`,
			r.id, r.name, r.direction, r.number, r.amount, r.status, r.issuedAt); err != nil {
			return err
		}
	}
	return nil
}
