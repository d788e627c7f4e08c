package goSession

import (
	"context"
	"errors"
)

const (
	auditEventSessionIssued         = "session_issued"
	auditEventAccessRejected        = "access_rejected"
	auditEventRefreshRotated        = "refresh_rotated"
	auditEventRefreshReplayDetected = "refresh_replay_detected"
	auditEventSessionRevoked        = "session_revoked"
	auditEventSubjectRevoked        = "subject_revoked"
	auditEventTokenIssued           = "token_issued"
	auditEventTokenRedeemed         = "token_redeemed"
)

// AuditErrorCode is the stable, client-safe reason recorded in AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidSubject    AuditErrorCode = "invalid_subject"
	auditErrPurposeNotAllowed AuditErrorCode = "purpose_not_allowed"
	auditErrInternal          AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subject string,
	tokenID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Subject:   subject,
		TokenID:   tokenID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// auditErrorCode uses the failure kind name, so the codes match FailureKind.String.
func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}
	if kind := KindOf(err); kind != FailureNone {
		return AuditErrorCode(kind.String())
	}

	switch {
	case errors.Is(err, ErrInvalidSubject):
		return auditErrInvalidSubject
	case errors.Is(err, ErrPurposeNotAllowed):
		return auditErrPurposeNotAllowed
	default:
		return auditErrInternal
	}
}
