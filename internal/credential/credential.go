// Package credential implements account signup sanitization and login
// verification: username/password validation, salted password hashing,
// uniqueness checks, and deposit wallet allocation.
package credential

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/klingon-exchange/accountcore/internal/config"
	"github.com/klingon-exchange/accountcore/internal/store"
	"github.com/klingon-exchange/accountcore/internal/wallet"
	"github.com/klingon-exchange/accountcore/pkg/helpers"
)

// Error kinds surfaced by the credential service. Login deliberately
// collapses unknown-username and wrong-password into ErrInvalidCredentials
// to avoid an enumeration oracle.
var (
	ErrNoCredentialsProvided = errors.New("no credentials provided")
	ErrInvalidUsername       = errors.New("invalid username")
	ErrInvalidPassword       = errors.New("invalid password")
	ErrBadAccountLookup      = errors.New("account lookup failed")
	ErrSignUpUsernameTaken   = errors.New("username already taken")
	ErrAccountCreate         = errors.New("could not allocate account")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAccountInactive       = errors.New("account is inactive")
)

// Service performs signup and login against a store and a wallet
// generator. It never touches transport concerns.
type Service struct {
	store   *store.Store
	wallets wallet.Generator
}

// New constructs a credential Service.
func New(s *store.Store, wallets wallet.Generator) *Service {
	return &Service{store: s, wallets: wallets}
}

// SignupRequest is the raw, unvalidated signup input.
type SignupRequest struct {
	Username string
	Password string
}

// Signup validates and persists a new account, allocating a deposit wallet
// in the process. This is sanitizeSignupCredentials plus the store insert:
// the uniqueness probe in step 7 narrows the common case, but the insert
// itself is the race's actual resolution point (see DESIGN.md).
func (s *Service) Signup(req SignupRequest) (*store.Account, error) {
	if req.Username == "" || req.Password == "" {
		return nil, ErrNoCredentialsProvided
	}

	username := strings.TrimSpace(req.Username)
	if len(username) < config.MinUsernameLength || len(username) > config.MaxUsernameLength {
		return nil, ErrInvalidUsername
	}

	if len(req.Password) < config.MinPasswordLength || len(req.Password) > config.MaxPasswordLength {
		return nil, ErrInvalidPassword
	}

	salt, err := helpers.GenerateSecureRandom(config.SaltSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate password salt: %w", err)
	}
	saltHex := hex.EncodeToString(salt)
	passwordHash := hashPassword(req.Password, saltHex)

	existing, err := s.store.GetAccountByUsername(username)
	if err != nil && !errors.Is(err, store.ErrAccountNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrBadAccountLookup, err)
	}
	if existing != nil {
		return nil, ErrSignUpUsernameTaken
	}

	material, err := s.allocateWallet()
	if err != nil {
		return nil, err
	}

	account := &store.Account{
		ID:                      uuid.NewString(),
		Username:                username,
		Password:                passwordHash,
		PasswordSalt:            saltHex,
		Active:                  true,
		CreatedDate:             time.Now(),
		DepositWalletAddress:    material.Address,
		DepositWalletPassphrase: material.EncryptedMnemonic,
		DepositWalletPrivateKey: material.EncryptedPrivateKey,
		DepositWalletPublicKey:  material.PublicKeyHex,
	}

	if err := s.store.CreateAccount(account); err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			return nil, ErrSignUpUsernameTaken
		}
		if errors.Is(err, store.ErrDepositAddressTaken) {
			return nil, ErrAccountCreate
		}
		return nil, fmt.Errorf("%w: %v", ErrAccountCreate, err)
	}

	return account, nil
}

// allocateWallet calls the wallet generator and retries on an address
// collision up to config.MaxWalletCreateAttempts times.
func (s *Service) allocateWallet() (*wallet.Material, error) {
	for attempt := 0; attempt < config.MaxWalletCreateAttempts; attempt++ {
		material, err := s.wallets.Generate()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAccountCreate, err)
		}

		_, err = s.store.GetAccountByDepositAddress(material.Address)
		if errors.Is(err, store.ErrAccountNotFound) {
			return material, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAccountCreate, err)
		}
		// Address already assigned to another account; retry.
	}
	return nil, ErrAccountCreate
}

// LoginRequest is the raw login input.
type LoginRequest struct {
	Username string
	Password string
}

// Login verifies a username/password pair against the store.
func (s *Service) Login(req LoginRequest) (*store.Account, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, ErrInvalidCredentials
	}

	account, err := s.store.GetAccountByUsername(username)
	if errors.Is(err, store.ErrAccountNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadAccountLookup, err)
	}

	if !account.Active {
		return nil, ErrAccountInactive
	}

	expected := hashPassword(req.Password, account.PasswordSalt)
	if !helpers.ConstantTimeCompare([]byte(expected), []byte(account.Password)) {
		return nil, ErrInvalidCredentials
	}

	return account, nil
}

// hashPassword computes hex(SHA256(password || saltHex)). Preserved
// verbatim from the original scheme: the testable property in spec.md §8
// requires this exact construction, not Argon2id.
func hashPassword(password, saltHex string) string {
	sum := sha256.Sum256([]byte(password + saltHex))
	return hex.EncodeToString(sum[:])
}
