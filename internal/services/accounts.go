package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/elbourki/paymentkit/internal/models"
)

var (
	// ErrAccountNotFound is returned when no account exists for an id.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidCredentials is returned when the gateway rejects a key pair
	// during onboarding.
	ErrInvalidCredentials = errors.New("gateway rejected the credentials")
	// ErrGatewayUnavailable is returned when the credential check could not
	// reach the gateway at all, so nothing is known about the key pair.
	ErrGatewayUnavailable = errors.New("gateway unavailable")
)

const accountCacheTTL = 10 * time.Minute

// AccountService resolves merchant accounts and their gateway credentials.
// Credentials are cached and explicitly invalidated whenever settings change,
// so a handler never works with stale keys for long. The credential check is
// swappable for tests.
type AccountService struct {
	db       *gorm.DB
	cache    Cache
	validate func(ctx context.Context, accessKey, secretKey string, sandbox bool) error
}

// NewAccountService creates an AccountService
func NewAccountService(db *gorm.DB, cache Cache) *AccountService {
	return &AccountService{
		db:    db,
		cache: cache,
		validate: func(ctx context.Context, accessKey, secretKey string, sandbox bool) error {
			_, err := NewRapydService(accessKey, secretKey, sandbox).GetCurrencies(ctx)
			return err
		},
	}
}

func accountCacheKey(accountID uint) string {
	return fmt.Sprintf("account:%d", accountID)
}

// accountCacheEntry is the cache representation of an account. The API model
// hides the key pair from JSON, so caching the model directly would drop the
// credentials on the round trip; the entry carries them explicitly.
type accountCacheEntry struct {
	Account   models.Account `json:"account"`
	AccessKey string         `json:"access_key"`
	SecretKey string         `json:"secret_key"`
}

func (e accountCacheEntry) restore() *models.Account {
	account := e.Account
	account.AccessKey = e.AccessKey
	account.SecretKey = e.SecretKey
	return &account
}

// Get fetches an account by id, through the cache when one is configured.
// Cache hits carry the gateway key pair just like store reads do.
func (s *AccountService) Get(ctx context.Context, accountID uint) (*models.Account, error) {
	entry, err := GetOrSet(s.cache, ctx, accountCacheKey(accountID), accountCacheTTL, func() (accountCacheEntry, error) {
		var account models.Account
		if err := s.db.First(&account, accountID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return accountCacheEntry{}, ErrAccountNotFound
			}
			return accountCacheEntry{}, err
		}
		return accountCacheEntry{
			Account:   account,
			AccessKey: account.AccessKey,
			SecretKey: account.SecretKey,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return entry.restore(), nil
}

// Invalidate drops the cached copy of an account.
func (s *AccountService) Invalidate(ctx context.Context, accountID uint) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, accountCacheKey(accountID))
}

// RapydClient builds a signed gateway client for an account, resolving the
// key pair from the data store. This is the only point where the gateway
// client touches account storage.
func (s *AccountService) RapydClient(ctx context.Context, accountID uint) (*RapydService, error) {
	account, err := s.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return NewRapydService(account.AccessKey, account.SecretKey, account.Sandbox), nil
}

// ClientForAccount builds a gateway client directly from an account row.
func ClientForAccount(account *models.Account) *RapydService {
	return NewRapydService(account.AccessKey, account.SecretKey, account.Sandbox)
}

// Connect onboards a user with a gateway key pair. The pair is validated with
// a currencies lookup before anything is stored. Only an auth-class gateway
// rejection maps to ErrInvalidCredentials; a check that never reached the
// gateway maps to ErrGatewayUnavailable instead, so an outage is not reported
// to the merchant as a bad key pair.
func (s *AccountService) Connect(ctx context.Context, user *models.User, accessKey, secretKey string, sandbox bool) (*models.Account, error) {
	if err := s.validate(ctx, accessKey, secretKey, sandbox); err != nil {
		var gatewayErr *GatewayError
		if errors.As(err, &gatewayErr) &&
			(gatewayErr.StatusCode == http.StatusUnauthorized || gatewayErr.StatusCode == http.StatusForbidden) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	account := models.Account{
		AccessKey: accessKey,
		SecretKey: secretKey,
		Sandbox:   sandbox,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&account).Error; err != nil {
			return err
		}
		return tx.Model(user).Update("account_id", account.ID).Error
	})
	if err != nil {
		return nil, err
	}
	user.AccountID = &account.ID
	user.Account = &account
	return &account, nil
}

// AccountSettings are the merchant-tunable collection preferences.
type AccountSettings struct {
	PaymentMethodsCategories []string `json:"payment_methods_categories"`
	DefaultCurrency          string   `json:"default_currency"`
	AllowTips                bool     `json:"allow_tips"`
}

// UpdateSettings persists new collection preferences and invalidates the
// cached account so the next credential fetch sees them.
func (s *AccountService) UpdateSettings(ctx context.Context, accountID uint, settings AccountSettings) (*models.Account, error) {
	var account models.Account
	if err := s.db.First(&account, accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	account.PaymentMethodsCategories = settings.PaymentMethodsCategories
	account.DefaultCurrency = settings.DefaultCurrency
	account.AllowTips = settings.AllowTips
	if err := s.db.Save(&account).Error; err != nil {
		return nil, err
	}

	s.Invalidate(ctx, accountID)
	return &account, nil
}

// Currencies lists the gateway's supported currencies for an account. The
// list changes rarely, so it is cached aggressively.
func (s *AccountService) Currencies(ctx context.Context, accountID uint) ([]Currency, error) {
	return GetOrSet(s.cache, ctx, fmt.Sprintf("account:%d:currencies", accountID), time.Hour, func() ([]Currency, error) {
		client, err := s.RapydClient(ctx, accountID)
		if err != nil {
			return nil, err
		}
		return client.GetCurrencies(ctx)
	})
}

// Countries lists the gateway's supported countries for an account.
func (s *AccountService) Countries(ctx context.Context, accountID uint) ([]Country, error) {
	return GetOrSet(s.cache, ctx, fmt.Sprintf("account:%d:countries", accountID), time.Hour, func() ([]Country, error) {
		client, err := s.RapydClient(ctx, accountID)
		if err != nil {
			return nil, err
		}
		return client.GetCountries(ctx)
	})
}
