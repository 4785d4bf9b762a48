package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/dekont-api/internal/models"
	"github.com/noah-isme/dekont-api/pkg/middleware/requestid"
)

// Actor identifies the authenticated caller of a receipt operation.
type Actor struct {
	UserID    string
	Role      models.UserRole
	IP        string
	UserAgent string
}

// ActorFromClaims builds an Actor from JWT claims plus request metadata.
func ActorFromClaims(claims *models.JWTClaims, ip, userAgent string) Actor {
	if claims == nil {
		return Actor{IP: ip, UserAgent: userAgent}
	}
	return Actor{UserID: claims.UserID, Role: claims.Role, IP: ip, UserAgent: userAgent}
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// recordAudit persists an audit entry for a receipt. Failures are logged, never returned.
func recordAudit(ctx context.Context, audit auditLogger, logger *zap.Logger, actor Actor, action, receiptID string, before, after interface{}) {
	if audit == nil {
		return
	}
	entry := &models.AuditLog{
		Action:     action,
		Resource:   models.AuditResourceReceipt,
		ResourceID: &receiptID,
		IPAddress:  actor.IP,
		UserAgent:  actor.UserAgent,
	}
	if actor.UserID != "" {
		userID := actor.UserID
		entry.UserID = &userID
	}
	if before != nil {
		entry.OldValues, _ = json.Marshal(before)
	}
	if after != nil {
		entry.NewValues, _ = json.Marshal(after)
	}
	if err := audit.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to persist audit log", zap.String("action", action), zap.String("receipt_id", receiptID), zap.String("request_id", requestid.FromContext(ctx)), zap.Error(err))
	}
}
