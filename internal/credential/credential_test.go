package credential

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/accountcore/internal/store"
	"github.com/klingon-exchange/accountcore/internal/wallet"
)

// fakeGenerator hands out sequential addresses, optionally repeating one
// address a fixed number of times to exercise the collision-retry path.
type fakeGenerator struct {
	calls         int
	repeatAddress string
	repeatCount   int
}

func (f *fakeGenerator) Generate() (*wallet.Material, error) {
	f.calls++
	addr := fmt.Sprintf("bc1qaddr%d", f.calls)
	if f.repeatCount > 0 {
		addr = f.repeatAddress
		f.repeatCount--
	}
	return &wallet.Material{
		Address:             addr,
		PublicKeyHex:        "pub" + addr,
		EncryptedMnemonic:   "enc-mnemonic-" + addr,
		EncryptedPrivateKey: "enc-key-" + addr,
	}, nil
}

type failingGenerator struct{}

func (failingGenerator) Generate() (*wallet.Material, error) {
	return nil, errors.New("generator unavailable")
}

func newTestService(t *testing.T, gen wallet.Generator) *Service {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "accountcore-credential-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	s, err := store.New(&store.Config{DataDir: tmpDir})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return New(s, gen)
}

func TestSignupHappyPath(t *testing.T) {
	svc := newTestService(t, &fakeGenerator{})

	account, err := svc.Signup(SignupRequest{Username: "alice", Password: "hunter22"})
	require.NoError(t, err)
	require.Equal(t, "alice", account.Username)
	require.True(t, account.Active)

	expected := hashPassword("hunter22", account.PasswordSalt)
	require.Equal(t, expected, account.Password)

	saltBytes, err := hex.DecodeString(account.PasswordSalt)
	require.NoError(t, err)
	require.Len(t, saltBytes, 32)
}

func TestSignupNoCredentials(t *testing.T) {
	svc := newTestService(t, &fakeGenerator{})

	_, err := svc.Signup(SignupRequest{Username: "", Password: "hunter22"})
	require.ErrorIs(t, err, ErrNoCredentialsProvided)

	_, err = svc.Signup(SignupRequest{Username: "alice", Password: ""})
	require.ErrorIs(t, err, ErrNoCredentialsProvided)
}

func TestSignupInvalidUsername(t *testing.T) {
	svc := newTestService(t, &fakeGenerator{})

	_, err := svc.Signup(SignupRequest{Username: "ab", Password: "hunter22"})
	require.ErrorIs(t, err, ErrInvalidUsername)
}

func TestSignupInvalidPassword(t *testing.T) {
	svc := newTestService(t, &fakeGenerator{})

	_, err := svc.Signup(SignupRequest{Username: "alice", Password: "short"})
	require.ErrorIs(t, err, ErrInvalidPassword)
}

func TestSignupUsernameTaken(t *testing.T) {
	svc := newTestService(t, &fakeGenerator{})

	_, err := svc.Signup(SignupRequest{Username: "alice", Password: "hunter22"})
	require.NoError(t, err)

	_, err = svc.Signup(SignupRequest{Username: "alice", Password: "different1"})
	require.ErrorIs(t, err, ErrSignUpUsernameTaken)
}

func TestSignupWalletCollisionRetries(t *testing.T) {
	gen := &fakeGenerator{repeatAddress: "bc1qcollide", repeatCount: 1}
	svc := newTestService(t, gen)

	_, err := svc.Signup(SignupRequest{Username: "bob", Password: "hunter22"})
	require.NoError(t, err)

	gen2 := &fakeGenerator{repeatAddress: "bc1qcollide", repeatCount: 3}
	svc2 := &Service{store: svc.store, wallets: gen2}

	account, err := svc2.Signup(SignupRequest{Username: "carol", Password: "hunter22"})
	require.NoError(t, err)
	require.NotEqual(t, "bc1qcollide", account.DepositWalletAddress, "expected the colliding address to have been rejected and retried past")
}

func TestSignupWalletAllocationExhausted(t *testing.T) {
	svc := newTestService(t, &fakeGenerator{repeatAddress: "bc1qstuck", repeatCount: 1000})

	// The first signup takes bc1qstuck; every later attempt collides with it.
	_, err := svc.Signup(SignupRequest{Username: "dave", Password: "hunter22"})
	require.NoError(t, err)

	_, err = svc.Signup(SignupRequest{Username: "dan", Password: "hunter22"})
	require.ErrorIs(t, err, ErrAccountCreate)
}

func TestSignupGeneratorFailure(t *testing.T) {
	svc := newTestService(t, failingGenerator{})

	_, err := svc.Signup(SignupRequest{Username: "erin", Password: "hunter22"})
	require.ErrorIs(t, err, ErrAccountCreate)
}

func TestLoginHappyPath(t *testing.T) {
	svc := newTestService(t, &fakeGenerator{})

	_, err := svc.Signup(SignupRequest{Username: "frank", Password: "correctpw1"})
	require.NoError(t, err)

	account, err := svc.Login(LoginRequest{Username: "frank", Password: "correctpw1"})
	require.NoError(t, err)
	require.Equal(t, "frank", account.Username)
}

func TestLoginOracleResistance(t *testing.T) {
	svc := newTestService(t, &fakeGenerator{})

	_, err := svc.Signup(SignupRequest{Username: "grace", Password: "correctpw1"})
	require.NoError(t, err)

	_, unknownErr := svc.Login(LoginRequest{Username: "nosuchuser", Password: "whatever12"})
	_, wrongPwErr := svc.Login(LoginRequest{Username: "grace", Password: "wrongpassword"})

	require.ErrorIs(t, unknownErr, ErrInvalidCredentials)
	require.ErrorIs(t, wrongPwErr, ErrInvalidCredentials)
}

func TestLoginInactiveAccount(t *testing.T) {
	svc := newTestService(t, &fakeGenerator{})

	account, err := svc.Signup(SignupRequest{Username: "heidi", Password: "correctpw1"})
	require.NoError(t, err)

	account.Active = false
	require.NoError(t, svc.store.DeactivateAccount(account.ID))

	_, err = svc.Login(LoginRequest{Username: "heidi", Password: "correctpw1"})
	require.ErrorIs(t, err, ErrAccountInactive)
}
