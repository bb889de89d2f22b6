package service

import (
	"context"
	"time"

	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/repository"
)

// AuditService answers compliance queries over the audit trail.
// Writing happens in the audit worker, never here.
type AuditService struct {
	auditRepo *repository.AuditRepository
}

func NewAuditService(auditRepo *repository.AuditRepository) *AuditService {
	return &AuditService{auditRepo: auditRepo}
}

// List filters the school's audit trail by entity type, action, and
// time window. Empty filters match everything.
func (s *AuditService) List(ctx context.Context, scope model.TenantScope, entityType, action string, from, to *time.Time, limit, offset int) ([]model.AuditEvent, int, error) {
	return s.auditRepo.ListPaginated(ctx, scope, entityType, action, from, to, limit, offset)
}
