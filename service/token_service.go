// service/token_service.go
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/veildata/veil/consent"
	"github.com/veildata/veil/dao"
	veil_errors "github.com/veildata/veil/errors"
	logger "github.com/veildata/veil/logging"
	"github.com/veildata/veil/model"
	"github.com/veildata/veil/token"
	"github.com/veildata/veil/util"
)

// IssuedToken is the response to a successful token issue request.
type IssuedToken struct {
	Token     string `json:"token"`
	TokenID   string `json:"token_id"`
	ExpiresAt int64  `json:"expires_at"`
}

// Introspection reports the live state of a token: the decoded claims plus
// the persisted record the signature alone cannot reveal.
type Introspection struct {
	Active     bool       `json:"active"`
	TokenID    string     `json:"token_id,omitempty"`
	SubjectID  string     `json:"subject_id,omitempty"`
	Purpose    string     `json:"purpose,omitempty"`
	Categories []string   `json:"categories,omitempty"`
	Scopes     []string   `json:"scopes,omitempty"`
	ExpiresAt  int64      `json:"expires_at,omitempty"`
	Revoked    bool       `json:"revoked"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

// ITokenService defines the interface for consent token operations
type ITokenService interface {
	IssueToken(ctx context.Context, subjectID, purpose string, categories, scopes []string, ttl time.Duration) (*IssuedToken, error)
	RevokeToken(ctx context.Context, tokenID string) error
	Introspect(ctx context.Context, bearerToken string) (*Introspection, error)
}

// TokenService mints, revokes and introspects consent tokens. Issuance is
// gated on the subject's standing consent so a token can never grant more
// than the policies allow at issue time.
type TokenService struct {
	tokenService *token.Service
	tokenDAO     *dao.TokenDAO
	evaluator    *consent.Evaluator
	cacheService *util.CacheService
	notifySvc    *util.NotificationService
	defaultTTL   time.Duration
}

var _ ITokenService = &TokenService{}

// NewTokenService creates a new instance of TokenService
func NewTokenService(tokenService *token.Service, tokenDAO *dao.TokenDAO, evaluator *consent.Evaluator, cacheService *util.CacheService, notifySvc *util.NotificationService, defaultTTL time.Duration) *TokenService {
	return &TokenService{
		tokenService: tokenService,
		tokenDAO:     tokenDAO,
		evaluator:    evaluator,
		cacheService: cacheService,
		notifySvc:    notifySvc,
		defaultTTL:   defaultTTL,
	}
}

// IssueToken mints a signed consent token after checking the subject's
// standing consent covers every requested category and scope.
func (s *TokenService) IssueToken(ctx context.Context, subjectID, purpose string, categories, scopes []string, ttl time.Duration) (*IssuedToken, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	if err := s.evaluator.EnsureAllowed(ctx, subjectID, categories, purpose, scopes); err != nil {
		return nil, err
	}

	signed, tokenID, expiresAt, err := s.tokenService.Issue(subjectID, purpose, categories, scopes, ttl)
	if err != nil {
		logger.Error("Failed to sign consent token", zap.Error(err), zap.String("subjectID", subjectID))
		return nil, veil_errors.ErrInternalServer
	}

	now := time.Now().UTC()
	record := model.TokenRecord{
		ID:         tokenID,
		SubjectID:  subjectID,
		Purpose:    purpose,
		Categories: categories,
		Scopes:     scopes,
		IssuedAt:   now,
		ExpiresAt:  time.Unix(expiresAt, 0).UTC(),
	}
	if err := s.tokenDAO.SaveToken(ctx, record); err != nil {
		logger.Error("Failed to persist token record", zap.Error(err), zap.String("tokenID", tokenID))
		return nil, veil_errors.ErrInternalServer
	}
	if err := s.cacheService.SetTokenRecord(ctx, record); err != nil {
		logger.Warn("Failed to cache token record", zap.Error(err), zap.String("tokenID", tokenID))
	}

	logger.Info("Consent token issued",
		zap.String("tokenID", tokenID),
		zap.String("subjectID", subjectID),
		zap.String("purpose", purpose))
	return &IssuedToken{Token: signed, TokenID: tokenID, ExpiresAt: expiresAt}, nil
}

// RevokeToken flips the persisted revoked flag. Verification of the signed
// token keeps succeeding; the persisted state is what takes it out of use.
func (s *TokenService) RevokeToken(ctx context.Context, tokenID string) error {
	if err := s.tokenDAO.RevokeToken(ctx, tokenID); err != nil {
		if errors.Is(err, veil_errors.ErrTokenNotFound) {
			return veil_errors.ErrTokenNotFound
		}
		logger.Error("Failed to revoke token", zap.Error(err), zap.String("tokenID", tokenID))
		return veil_errors.ErrInternalServer
	}

	// Drop the cached record so the revocation propagates immediately.
	if err := s.cacheService.DeleteTokenRecord(ctx, tokenID); err != nil {
		logger.Warn("Failed to evict cached token record", zap.Error(err), zap.String("tokenID", tokenID))
	}

	record, err := s.tokenDAO.GetToken(ctx, tokenID)
	if err == nil {
		if err := s.notifySvc.NotifyTokenRevoked(ctx, *record); err != nil {
			logger.Warn("Failed to send revocation notification", zap.Error(err), zap.String("tokenID", tokenID))
		}
	}

	logger.Info("Consent token revoked", zap.String("tokenID", tokenID))
	return nil
}

// Introspect decodes the token without failing on verification problems and
// reports whether it is currently usable.
func (s *TokenService) Introspect(ctx context.Context, bearerToken string) (*Introspection, error) {
	claims, err := s.tokenService.Verify(bearerToken)
	if err != nil {
		var verr *veil_errors.Error
		if errors.As(err, &verr) {
			// Expired or revoked tokens still decode; report their claims.
			if decoded := s.tokenService.Decode(bearerToken); decoded != nil {
				return &Introspection{
					Active:     false,
					TokenID:    decoded.ID,
					SubjectID:  decoded.Subject,
					Purpose:    decoded.Purpose,
					Categories: decoded.Categories,
					Scopes:     decoded.Scopes,
					ExpiresAt:  expiryUnix(decoded),
					Reason:     verr.Code,
				}, nil
			}
			return &Introspection{Active: false, Reason: verr.Code}, nil
		}
		return nil, err
	}

	out := &Introspection{
		Active:     true,
		TokenID:    claims.ID,
		SubjectID:  claims.Subject,
		Purpose:    claims.Purpose,
		Categories: claims.Categories,
		Scopes:     claims.Scopes,
		ExpiresAt:  expiryUnix(claims),
	}

	record, err := s.tokenDAO.GetToken(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, veil_errors.ErrTokenNotFound) {
			out.Active = false
			out.Reason = veil_errors.ErrTokenInvalid.Code
			return out, nil
		}
		logger.Error("Failed to load token record", zap.Error(err), zap.String("tokenID", claims.ID))
		return nil, veil_errors.ErrInternalServer
	}
	if record.Revoked {
		out.Active = false
		out.Revoked = true
		out.RevokedAt = record.RevokedAt
		out.Reason = veil_errors.ErrTokenRevoked.Code
	}

	return out, nil
}

func expiryUnix(claims *token.ConsentClaims) int64 {
	if claims.ExpiresAt == nil {
		return 0
	}
	return claims.ExpiresAt.Unix()
}
