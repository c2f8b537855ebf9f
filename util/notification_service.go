// util/notification_service.go

package util

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	logger "github.com/veildata/veil/logging"
	"github.com/veildata/veil/model"
)

type NotificationService struct {
	// You might want to add dependencies here, such as a message queue client
}

func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

func (n *NotificationService) NotifyConsentChange(ctx context.Context, changeType string, policy model.ConsentPolicy) error {
	// In a real implementation, you might send this to a message queue or external notification service
	switch changeType {
	case "created", "updated":
		logger.Info("NOTIFICATION: Consent policy "+changeType,
			zap.String("policyID", policy.ID),
			zap.String("subjectID", policy.SubjectID),
			zap.String("category", policy.CategoryKey),
			zap.String("status", policy.Status))
	case "deleted":
		logger.Info("NOTIFICATION: Consent policy deleted",
			zap.String("policyID", policy.ID))
	default:
		return fmt.Errorf("unknown change type: %s", changeType)
	}

	return nil
}

func (n *NotificationService) NotifyTokenRevoked(ctx context.Context, record model.TokenRecord) error {
	logger.Info("NOTIFICATION: Consent token revoked",
		zap.String("tokenID", record.ID),
		zap.String("subjectID", record.SubjectID),
		zap.String("purpose", record.Purpose))
	return nil
}

func (n *NotificationService) NotifyAdmins(ctx context.Context, message string) error {
	// Logic to notify all system administrators
	logger.Info("Notifying admins", zap.String("message", message))
	return nil
}
