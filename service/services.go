// service/services.go
package service

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/veildata/veil/audit"
	"github.com/veildata/veil/consent"
	"github.com/veildata/veil/dao"
	"github.com/veildata/veil/privacy"
	"github.com/veildata/veil/ratelimit"
	"github.com/veildata/veil/token"
	"github.com/veildata/veil/util"
)

type Services struct {
	Query    IQueryService
	Consent  IConsentService
	Token    ITokenService
	Category ICategoryService
	Record   IRecordService
}

// PrivacySettings carries the noise engine defaults from configuration.
type PrivacySettings struct {
	DefaultEpsilon float64
	MaxEpsilon     float64
	TokenTTL       time.Duration
}

func InitializeServices(
	driver neo4j.Driver,
	auditService audit.Service,
	tokenService *token.Service,
	limiter *ratelimit.Limiter,
	validationUtil *util.ValidationUtil,
	cacheService *util.CacheService,
	notificationSvc *util.NotificationService,
	eventBus *util.EventBus,
	settings PrivacySettings,
) (*Services, error) {
	policyDAO := dao.NewConsentPolicyDAO(driver, auditService)
	categoryDAO := dao.NewCategoryDAO(driver)
	recordDAO := dao.NewRecordDAO(driver)
	tokenDAO := dao.NewTokenDAO(driver)

	evaluator := consent.NewEvaluator(policyDAO)
	engine := privacy.NewEngine()
	bounds := privacy.NewBoundsRegistry()

	services := &Services{
		Query: NewQueryService(
			tokenService,
			tokenDAO,
			evaluator,
			categoryDAO,
			recordDAO,
			limiter,
			engine,
			bounds,
			auditService,
			cacheService,
			validationUtil,
			settings.DefaultEpsilon,
			settings.MaxEpsilon,
		),
		Consent:  NewConsentService(policyDAO, validationUtil, cacheService, notificationSvc, eventBus),
		Token:    NewTokenService(tokenService, tokenDAO, evaluator, cacheService, notificationSvc, settings.TokenTTL),
		Category: NewCategoryService(categoryDAO, validationUtil, cacheService),
		Record:   NewRecordService(recordDAO, validationUtil),
	}

	return services, nil
}
