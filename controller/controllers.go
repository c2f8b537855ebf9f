// controller/controllers.go
package controller

import (
	"github.com/veildata/veil/audit"
	"github.com/veildata/veil/service"
)

type Controllers struct {
	Query    *QueryController
	Consent  *ConsentController
	Token    *TokenController
	Category *CategoryController
	Record   *RecordController
	Audit    *AuditController
}

func InitializeControllers(services *service.Services, auditService audit.Service) *Controllers {
	return &Controllers{
		Query:    NewQueryController(services.Query),
		Consent:  NewConsentController(services.Consent),
		Token:    NewTokenController(services.Token),
		Category: NewCategoryController(services.Category),
		Record:   NewRecordController(services.Record),
		Audit:    NewAuditController(auditService),
	}
}
