package appointment

import (
	"context"
	"strconv"
	"strings"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

// Operation labels for decision metrics
const (
	opList         = "list_appointments"
	opCreate       = "create_appointment"
	opUpdateStatus = "update_appointment_status"
)

// PatientRegistrar registers a new patient inside an open transaction.
type PatientRegistrar interface {
	CreatePatient(ctx context.Context, q repository.Queries, actor *model.Actor, req *model.NewPatientRequest) (int64, error)
}

type Service struct {
	store     repository.Store
	patients  PatientRegistrar
	validator validator.Validator
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewService(store repository.Store, patients PatientRegistrar, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:     store,
		patients:  patients,
		validator: validator.New(),
		logger:    log,
		metrics:   m,
	}
}

func parseID(raw, message string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, apperrors.ValidationWrap(message, err)
	}
	return id, nil
}

// finish records the decision outcome and converts storage failures into
// internal errors.
func (s *Service) finish(op string, err error) error {
	if err == nil {
		s.metrics.RecordDecision(op, metrics.OutcomeAllowed)
		return nil
	}

	appErr := apperrors.As(err)
	switch appErr.Code {
	case apperrors.ErrForbidden:
		s.metrics.RecordDecision(op, metrics.OutcomeDenied)
	case apperrors.ErrInternal:
		s.metrics.RecordDecision(op, metrics.OutcomeFailed)
		s.logger.Error(err, "appointment operation failed", "operation", op)
	default:
		s.metrics.RecordDecision(op, metrics.OutcomeRejected)
	}
	return appErr
}
