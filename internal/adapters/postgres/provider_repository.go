package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kevin07696/newebpay-service/internal/domain"
	"github.com/kevin07696/newebpay-service/internal/domain/ports"
)

// ProviderRepository implements ports.ProviderRepository using pgx
type ProviderRepository struct {
	db *DBExecutor
}

// NewProviderRepository creates a new provider repository
func NewProviderRepository(db *DBExecutor) *ProviderRepository {
	return &ProviderRepository{db: db}
}

var _ ports.ProviderRepository = (*ProviderRepository)(nil)

// FindByCode returns the stored provider account, active or not
func (r *ProviderRepository) FindByCode(ctx context.Context, code string) (*domain.ProviderAccount, error) {
	var a domain.ProviderAccount
	err := r.db.conn().QueryRow(ctx, `
		SELECT code, merchant_id, hash_key_path, hash_iv_path, test_mode, active,
			enable_credit, enable_webatm, enable_vacc, enable_cvs, enable_barcode
		FROM payment_providers
		WHERE code = $1`,
		code,
	).Scan(
		&a.Code, &a.MerchantID, &a.HashKeyPath, &a.HashIVPath, &a.TestMode, &a.Active,
		&a.Credit, &a.WebATM, &a.VACC, &a.CVS, &a.Barcode,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewDomainError(domain.ErrorCodeProviderNotFound, "payment provider not found").
				WithDetail("code", code)
		}
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "load provider", err)
	}
	return &a, nil
}

// Upsert inserts or replaces a provider account
func (r *ProviderRepository) Upsert(ctx context.Context, a *domain.ProviderAccount) error {
	_, err := r.db.conn().Exec(ctx, `
		INSERT INTO payment_providers (
			code, merchant_id, hash_key_path, hash_iv_path, test_mode, active,
			enable_credit, enable_webatm, enable_vacc, enable_cvs, enable_barcode
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (code) DO UPDATE SET
			merchant_id = EXCLUDED.merchant_id,
			hash_key_path = EXCLUDED.hash_key_path,
			hash_iv_path = EXCLUDED.hash_iv_path,
			test_mode = EXCLUDED.test_mode,
			active = EXCLUDED.active,
			enable_credit = EXCLUDED.enable_credit,
			enable_webatm = EXCLUDED.enable_webatm,
			enable_vacc = EXCLUDED.enable_vacc,
			enable_cvs = EXCLUDED.enable_cvs,
			enable_barcode = EXCLUDED.enable_barcode,
			updated_at = NOW()`,
		a.Code, a.MerchantID, a.HashKeyPath, a.HashIVPath, a.TestMode, a.Active,
		a.Credit, a.WebATM, a.VACC, a.CVS, a.Barcode,
	)
	if err != nil {
		return fmt.Errorf("upsert provider: %w", err)
	}
	return nil
}
