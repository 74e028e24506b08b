package repository

import (
	"context"
	"errors"
	"fmt"

	"usdtshop/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrSettingNotFound = errors.New("配置项不存在")

// SettingRepository 业务配置的唯一可信来源
// 定价引擎和对账任务每次用时现读，不做进程内缓存，
// 运营更新后下一次读取即生效
type SettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

func (r *SettingRepository) Get(ctx context.Context, key string) (string, error) {
	var setting model.Setting
	err := r.db.WithContext(ctx).Where("`key` = ?", key).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrSettingNotFound
		}
		return "", err
	}
	return setting.Value, nil
}

func (r *SettingRepository) GetDecimal(ctx context.Context, key string) (decimal.Decimal, error) {
	value, err := r.Get(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("配置项 %s 不是合法数字: %w", key, err)
	}
	return d, nil
}

func (r *SettingRepository) Set(ctx context.Context, key, value string) error {
	setting := &model.Setting{Key: key, Value: value}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).
		Create(setting).Error
}

// SeedDefaults 写入缺省配置，已有的键不动
func (r *SettingRepository) SeedDefaults(ctx context.Context) error {
	defaults := map[string]string{
		model.SettingKeyRate:                 "7.2",
		model.SettingKeyFiatFeePercent:       "3",
		model.SettingKeyReceivingAddress:     "",
		model.SettingKeyReferralBonusPercent: "5",
		model.SettingKeyMinWithdrawal:        "10",
		model.SettingKeyWithdrawalFeePercent: "1",
	}
	for key, value := range defaults {
		setting := &model.Setting{Key: key, Value: value}
		err := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoNothing: true,
			}).
			Create(setting).Error
		if err != nil {
			return err
		}
	}
	return nil
}
