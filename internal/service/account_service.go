package service

import (
	"context"
	"errors"
	"fmt"

	"usdtshop/internal/model"
	"usdtshop/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AccountService struct {
	accountRepo *repository.AccountRepository
}

func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{
		accountRepo: repository.NewAccountRepository(db),
	}
}

type RegisterRequest struct {
	Contact      string
	PasswordHash string // 认证由外部解决，这里只存契约里的哈希
	ReferralCode string // 选填，注册即绑定推荐关系
}

// Register 注册账户
// 推荐关系只在注册时绑定一次；返佣只付一跳，注册时校验推荐码
// 不属于账户本人即可，环在一跳口径下无害
func (s *AccountService) Register(ctx context.Context, req *RegisterRequest) (*model.Account, error) {
	if _, err := s.accountRepo.GetByContact(ctx, req.Contact); err == nil {
		return nil, repository.ErrContactTaken
	} else if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, err
	}

	var referrerID *int64
	if req.ReferralCode != "" {
		referrer, err := s.accountRepo.GetByReferralCode(ctx, req.ReferralCode)
		if err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				return nil, ErrReferralCodeInvalid
			}
			return nil, err
		}
		referrerID = &referrer.ID
	}

	code := uuid.NewString()
	account := &model.Account{
		Contact:      req.Contact,
		PasswordHash: req.PasswordHash,
		ReferrerID:   referrerID,
		ReferralCode: &code,
	}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("创建账户失败: %w", err)
	}

	return account, nil
}

func (s *AccountService) GetAccount(ctx context.Context, accountID int64) (*model.Account, error) {
	return s.accountRepo.GetByID(ctx, accountID)
}
