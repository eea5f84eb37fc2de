package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/robumart/platform/internal/domain"
)

type auditRepo struct{}

// NewAuditRepository returns a pgx-backed AuditRepository.
func NewAuditRepository() AuditRepository {
	return &auditRepo{}
}

func (r *auditRepo) Insert(ctx context.Context, db DBTX, userID uuid.UUID, action string, details any) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	_, err = db.Exec(ctx, `
		INSERT INTO audit_logs (user_id, action, details) VALUES ($1, $2, $3)`,
		userID, action, payload)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// FindOrderRefund uses JSONB containment on details; the GIN index on
// details keeps this cheap. Both refund actions are matched so requested
// cancellations show up too.
func (r *auditRepo) FindOrderRefund(ctx context.Context, db DBTX, orderID uuid.UUID) (*domain.AuditRecord, error) {
	match, _ := json.Marshal(map[string]string{"orderId": orderID.String()})

	var rec domain.AuditRecord
	err := db.QueryRow(ctx, `
		SELECT id, user_id, action, details, created_at
		FROM audit_logs
		WHERE action = ANY($1) AND details @> $2::jsonb
		ORDER BY created_at DESC
		LIMIT 1`,
		[]string{domain.AuditOrderRefund, domain.AuditOrderCancelRefund}, match).
		Scan(&rec.ID, &rec.UserID, &rec.Action, &rec.Details, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find order refund: %w", err)
	}
	return &rec, nil
}
