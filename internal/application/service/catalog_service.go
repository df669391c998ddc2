package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/garyjia/erp-workflow/internal/application/port"
	"github.com/garyjia/erp-workflow/internal/domain/entity"
	"github.com/garyjia/erp-workflow/internal/domain/form"
	apperrors "github.com/garyjia/erp-workflow/internal/pkg/errors"
)

// CatalogService exposes the application-code registry and form validation
type CatalogService interface {
	ListApplicationCodes(ctx context.Context) ([]*entity.ApplicationCode, error)
	GetApplicationCode(ctx context.Context, id string) (*entity.ApplicationCode, error)
	GetApplicationCodeByCode(ctx context.Context, code string) (*entity.ApplicationCode, error)
	// FormDefinition resolves codeID to its form schema without checking a payload
	FormDefinition(ctx context.Context, codeID string) (*entity.ApplicationCode, form.Definition, error)
	// ValidateForm resolves codeID and checks raw against its form schema.
	// Drafts only need a well-formed JSON object.
	ValidateForm(ctx context.Context, codeID string, raw json.RawMessage, draft bool) (*entity.ApplicationCode, form.Definition, error)
}

type catalogServiceImpl struct {
	codeRepo port.ApplicationCodeRepository
	forms    *form.Registry
	logger   Logger
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(codeRepo port.ApplicationCodeRepository, forms *form.Registry, logger Logger) CatalogService {
	return &catalogServiceImpl{
		codeRepo: codeRepo,
		forms:    forms,
		logger:   logger,
	}
}

func (s *catalogServiceImpl) ListApplicationCodes(ctx context.Context) ([]*entity.ApplicationCode, error) {
	return s.codeRepo.List(ctx)
}

func (s *catalogServiceImpl) GetApplicationCode(ctx context.Context, id string) (*entity.ApplicationCode, error) {
	code, err := s.codeRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get application code", "error", err, "application_code_id", id)
		return nil, err
	}
	if code == nil {
		return nil, apperrors.ApplicationCodeNotFound(id)
	}
	return code, nil
}

func (s *catalogServiceImpl) GetApplicationCodeByCode(ctx context.Context, code string) (*entity.ApplicationCode, error) {
	ac, err := s.codeRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if ac == nil {
		return nil, apperrors.ApplicationCodeNotFound(code)
	}
	return ac, nil
}

func (s *catalogServiceImpl) FormDefinition(ctx context.Context, codeID string) (*entity.ApplicationCode, form.Definition, error) {
	code, err := s.GetApplicationCode(ctx, codeID)
	if err != nil {
		return nil, form.Definition{}, err
	}

	def, ok := s.forms.Lookup(code.Code)
	if !ok {
		s.logger.Error("Application code has no form definition", "application_code", code.Code)
		return nil, form.Definition{}, apperrors.FormDefinitionMissing(code.Code)
	}
	return code, def, nil
}

func (s *catalogServiceImpl) ValidateForm(ctx context.Context, codeID string, raw json.RawMessage, draft bool) (*entity.ApplicationCode, form.Definition, error) {
	code, def, err := s.FormDefinition(ctx, codeID)
	if err != nil {
		return nil, form.Definition{}, err
	}

	if draft {
		if err := form.WellFormed(raw); err != nil {
			return nil, form.Definition{}, apperrors.Validation(err.Error())
		}
		return code, def, nil
	}

	if _, err := s.forms.Decode(code.Code, raw); err != nil {
		return nil, form.Definition{}, formError(err)
	}
	return code, def, nil
}

func formError(err error) error {
	var verr *form.ValidationError
	if errors.As(err, &verr) {
		appErr := apperrors.Validation(verr.Error())
		if len(verr.Fields) > 0 {
			appErr = appErr.WithParams(map[string]interface{}{"fields": verr.Fields})
		}
		return appErr
	}
	if errors.Is(err, form.ErrNoDefinition) {
		return apperrors.FormDefinitionMissing(err.Error())
	}
	return err
}
