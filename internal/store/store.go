package store

import (
	"fmt"
	"time"

	"github.com/authwave/authwave/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

func New(driver, dsn string) (*Store, error) {
	dialector, err := openDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// With :memory: every pooled connection opens its own empty database,
	// so keep the pool at a single connection.
	if driver == DriverSQLite && dsn == ":memory:" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	// Auto migrate
	if err := db.AutoMigrate(
		&models.Developer{},
		&models.DeveloperRefreshToken{},
		&models.PlanRegistration{},
		&models.App{},
		&models.AppGroup{},
		&models.EndUser{},
		&models.VerificationToken{},
		&models.LoginHistory{},
		&models.PasswordHistory{},
		&models.DeletionHistory{},
		&models.UsageRecord{},
	); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Developer operations

func (s *Store) GetDeveloperByID(id string) (*models.Developer, error) {
	var dev models.Developer
	if err := s.db.Where("id = ?", id).First(&dev).Error; err != nil {
		return nil, err
	}
	return &dev, nil
}

func (s *Store) GetDeveloperByEmail(email string) (*models.Developer, error) {
	var dev models.Developer
	if err := s.db.Where("email = ?", email).First(&dev).Error; err != nil {
		return nil, err
	}
	return &dev, nil
}

func (s *Store) CreateDeveloper(dev *models.Developer) error {
	return s.db.Create(dev).Error
}

func (s *Store) UpdateDeveloper(dev *models.Developer) error {
	return s.db.Save(dev).Error
}

// GetActivePlan returns the developer's current plan registration, or
// gorm.ErrRecordNotFound when no active plan exists.
func (s *Store) GetActivePlan(developerID string) (*models.PlanRegistration, error) {
	var reg models.PlanRegistration
	err := s.db.Where("developer_id = ? AND status = ?", developerID, "active").
		Order("created_at DESC").
		First(&reg).Error
	if err != nil {
		return nil, err
	}
	if !reg.IsCurrent() {
		return nil, gorm.ErrRecordNotFound
	}
	return &reg, nil
}

func (s *Store) CreatePlanRegistration(reg *models.PlanRegistration) error {
	return s.db.Create(reg).Error
}

// App operations

// GetAppByCredentials resolves an app by API key AND secret digest in a
// single query. A mismatch on either column yields the same not-found error,
// so callers cannot distinguish a wrong key from a wrong secret.
func (s *Store) GetAppByCredentials(apiKey, secretHash string) (*models.App, error) {
	var app models.App
	err := s.db.Where("api_key = ? AND api_secret_hash = ?", apiKey, secretHash).
		First(&app).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (s *Store) GetAppByID(id string) (*models.App, error) {
	var app models.App
	if err := s.db.Where("id = ?", id).First(&app).Error; err != nil {
		return nil, err
	}
	return &app, nil
}

func (s *Store) GetAppsByDeveloper(developerID string) ([]models.App, error) {
	var apps []models.App
	err := s.db.Where("developer_id = ?", developerID).
		Order("created_at DESC").
		Find(&apps).Error
	return apps, err
}

func (s *Store) CreateApp(app *models.App) error {
	return s.db.Create(app).Error
}

func (s *Store) UpdateApp(app *models.App) error {
	return s.db.Save(app).Error
}

func (s *Store) GetAppGroup(id uint) (*models.AppGroup, error) {
	var group models.AppGroup
	if err := s.db.Where("id = ?", id).First(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

func (s *Store) CreateAppGroup(group *models.AppGroup) error {
	return s.db.Create(group).Error
}

// End-user operations

func (s *Store) GetEndUser(appID, email string) (*models.EndUser, error) {
	var user models.EndUser
	err := s.db.Where("app_id = ? AND email = ?", appID, email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) GetEndUserByID(id string) (*models.EndUser, error) {
	var user models.EndUser
	if err := s.db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) GetEndUserByGoogleID(appID, googleID string) (*models.EndUser, error) {
	var user models.EndUser
	err := s.db.Where("app_id = ? AND google_id = ?", appID, googleID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) CreateEndUser(user *models.EndUser) error {
	return s.db.Create(user).Error
}

func (s *Store) UpdateEndUser(user *models.EndUser) error {
	return s.db.Save(user).Error
}

// DeleteEndUserWithAudit hard-deletes an end-user and all dependent rows
// inside one transaction, writing the audit snapshot first. Partial
// application (snapshot without deletion, or vice versa) must be impossible.
func (s *Store) DeleteEndUserWithAudit(user *models.EndUser) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		snapshot := &models.DeletionHistory{
			AppID:        user.AppID,
			Name:         user.Name,
			Username:     user.Username,
			Email:        user.Email,
			RegisteredAt: user.CreatedAt,
			DeletedAt:    time.Now(),
		}
		if err := tx.Create(snapshot).Error; err != nil {
			return fmt.Errorf("failed to write deletion snapshot: %w", err)
		}
		if err := tx.Where("subject_id = ?", user.ID).
			Delete(&models.PasswordHistory{}).Error; err != nil {
			return err
		}
		if err := tx.Where("subject_id = ?", user.ID).
			Delete(&models.VerificationToken{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).
			Delete(&models.LoginHistory{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.EndUser{}, "id = ?", user.ID).Error; err != nil {
			return err
		}
		return nil
	})
}

// Verification token operations

func (s *Store) CreateVerificationToken(token *models.VerificationToken) error {
	return s.db.Create(token).Error
}

func (s *Store) GetVerificationToken(token string) (*models.VerificationToken, error) {
	var vt models.VerificationToken
	if err := s.db.Where("token = ?", token).First(&vt).Error; err != nil {
		return nil, err
	}
	return &vt, nil
}

// ConsumeVerificationToken atomically flips used=false to true and returns
// the consumed row. The conditional UPDATE is the single-use guarantee: two
// near-simultaneous calls see exactly one RowsAffected=1. A read-then-write
// here would be a race.
func (s *Store) ConsumeVerificationToken(
	token string,
	verifyType models.VerifyType,
) (*models.VerificationToken, error) {
	res := s.db.Model(&models.VerificationToken{}).
		Where("token = ? AND verify_type = ? AND used = ? AND expires_at > ?",
			token, verifyType, false, time.Now()).
		Update("used", true)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrTokenConsumed
	}

	var vt models.VerificationToken
	if err := s.db.Where("token = ?", token).First(&vt).Error; err != nil {
		return nil, err
	}
	return &vt, nil
}

// InvalidateVerificationTokens marks every outstanding token of one type for
// a subject as used, preventing multiple valid links from coexisting.
func (s *Store) InvalidateVerificationTokens(
	subjectID string,
	verifyType models.VerifyType,
) error {
	return s.db.Model(&models.VerificationToken{}).
		Where("subject_id = ? AND verify_type = ? AND used = ?", subjectID, verifyType, false).
		Update("used", true).Error
}

func (s *Store) DeleteExpiredVerificationTokens() error {
	return s.db.Where("expires_at < ?", time.Now()).
		Delete(&models.VerificationToken{}).Error
}

// Developer refresh token operations

func (s *Store) CreateRefreshToken(token *models.DeveloperRefreshToken) error {
	return s.db.Create(token).Error
}

func (s *Store) GetRefreshTokenByHash(tokenHash string) (*models.DeveloperRefreshToken, error) {
	var rt models.DeveloperRefreshToken
	if err := s.db.Where("token_hash = ?", tokenHash).First(&rt).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

func (s *Store) DeleteRefreshToken(id string) error {
	return s.db.Delete(&models.DeveloperRefreshToken{}, "id = ?", id).Error
}

// DeleteRefreshTokensByDeveloper revokes every refresh token for a developer
// (used on password change and logout-everywhere).
func (s *Store) DeleteRefreshTokensByDeveloper(developerID string) error {
	return s.db.Where("developer_id = ?", developerID).
		Delete(&models.DeveloperRefreshToken{}).Error
}

func (s *Store) DeleteExpiredRefreshTokens() error {
	return s.db.Where("expires_at < ?", time.Now()).
		Delete(&models.DeveloperRefreshToken{}).Error
}

// History operations

func (s *Store) CreateLoginHistory(entry *models.LoginHistory) error {
	return s.db.Create(entry).Error
}

func (s *Store) CreatePasswordHistory(entry *models.PasswordHistory) error {
	return s.db.Create(entry).Error
}

func (s *Store) CreateUsageRecord(record *models.UsageRecord) error {
	return s.db.Create(record).Error
}

// Health checks the database connection
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// DB returns the underlying GORM database connection (for transactions)
func (s *Store) DB() *gorm.DB {
	return s.db
}
