package services

import (
	"errors"
	"log"

	"github.com/authwave/authwave/internal/credentials"
	"github.com/authwave/authwave/internal/metrics"
	"github.com/authwave/authwave/internal/models"
	"github.com/authwave/authwave/internal/store"

	"gorm.io/gorm"
)

// GateService authorizes API requests by app credential pair. Every end-user
// facing request passes through it before any business logic runs.
type GateService struct {
	store   *store.Store
	metrics metrics.Recorder
}

func NewGateService(st *store.Store, rec metrics.Recorder) *GateService {
	return &GateService{store: st, metrics: rec}
}

// GateResult carries the resolved app context into the request
type GateResult struct {
	App  *models.App
	Plan *models.PlanRegistration
}

// Authorize resolves an (apiKey, apiSecret) pair to an App and checks the
// owning developer's plan. Both credential failures collapse to
// ErrInvalidCredentials so a caller cannot probe which half was wrong.
// A usage record is written on success, best-effort.
func (s *GateService) Authorize(apiKey, apiSecret, endpoint string) (*GateResult, error) {
	if apiKey == "" || apiSecret == "" {
		s.metrics.RecordGateDecision("missing_credentials")
		return nil, ErrMissingCredentials
	}

	// Single indexed query: the secret is hashed client-side of the DB and
	// matched together with the key.
	app, err := s.store.GetAppByCredentials(apiKey, credentials.HashSecret(apiSecret))
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[Gate] App lookup failed: %v", err)
		}
		s.metrics.RecordGateDecision("invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	plan, err := s.store.GetActivePlan(app.DeveloperID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[Gate] Plan lookup failed for developer %s: %v", app.DeveloperID, err)
		}
		s.metrics.RecordGateDecision("plan_inactive")
		return nil, ErrPlanInactive
	}

	s.metrics.RecordGateDecision("success")

	go func() {
		record := &models.UsageRecord{
			AppID:       app.ID,
			DeveloperID: app.DeveloperID,
			Endpoint:    endpoint,
		}
		if err := s.store.CreateUsageRecord(record); err != nil {
			log.Printf("[Gate] Usage record write failed for app %s: %v", app.ID, err)
		}
	}()

	return &GateResult{App: app, Plan: plan}, nil
}
