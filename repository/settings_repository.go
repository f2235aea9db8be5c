package repository

import (
	"errors"
	"fmt"
	"strconv"

	"cuebase/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsRepository is the key-value settings store (normalization target
// and similar small knobs).
type SettingsRepository interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	GetFloat(key string, fallback float64) float64
	SetFloat(key string, value float64) error
}

type gormSettingsRepository struct {
	Gorm *gorm.DB
}

// NewGormSettingsRepository creates a new instance of gormSettingsRepository.
func NewGormSettingsRepository(gdb *gorm.DB) SettingsRepository {
	return &gormSettingsRepository{Gorm: gdb}
}

func (r *gormSettingsRepository) Get(key string) (string, bool, error) {
	var setting model.Setting
	err := r.Gorm.First(&setting, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %q: %w", key, err)
	}
	return setting.Value, true, nil
}

func (r *gormSettingsRepository) Set(key, value string) error {
	setting := model.Setting{Key: key, Value: value}
	err := r.Gorm.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&setting).Error
	if err != nil {
		return fmt.Errorf("failed to write setting %q: %w", key, err)
	}
	return nil
}

func (r *gormSettingsRepository) GetFloat(key string, fallback float64) float64 {
	value, ok, err := r.Get(key)
	if err != nil || !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return f
}

func (r *gormSettingsRepository) SetFloat(key string, value float64) error {
	return r.Set(key, strconv.FormatFloat(value, 'f', -1, 64))
}
