package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"food-admin/internal/config"
	"food-admin/internal/service"
)

func testConfig() *config.Config {
	return &config.Config{
		StoreConfig: config.StoreConfig{
			StoreDriver:    "sqlite",
			SQLitePath:     "",
			PasswordHasher: "bcrypt",
			BcryptCost:     4,
		},
		JWTSecret:             "secret",
		SessionTTLHours:       168,
		OTPTTLMinutes:         15,
		OTPRequestsPerWindow:  3,
		OTPAttemptsPerWindow:  5,
		OTPLimitWindowMinutes: 15,
	}
}

func TestOpenStore_SQLite(t *testing.T) {
	ctx := context.Background()
	store, err := OpenStore(ctx, &testConfig().StoreConfig, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Admins.Ping(ctx))
}

func TestNewEmailSender_DisabledWithoutSMTP(t *testing.T) {
	sender := NewEmailSender(testConfig(), zap.NewNop())
	err := sender.SendWelcome(context.Background(), "a@x.com", "admin")
	assert.Error(t, err)
}

func TestNewRedisClient_NotConfigured(t *testing.T) {
	assert.Nil(t, NewRedisClient(context.Background(), testConfig(), zap.NewNop()))
}

func TestNewServices_EndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	store, err := OpenStore(ctx, &cfg.StoreConfig, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	svcs, err := NewServices(cfg, zap.NewNop(), store.Admins, NewEmailSender(cfg, zap.NewNop()), nil)
	require.NoError(t, err)

	account, err := svcs.Auth.Register(ctx, service.RegisterInput{Name: "admin", Email: "a@x.com", Password: "p1"})
	require.NoError(t, err)

	token, err := svcs.JWT.Issue(account.ID)
	require.NoError(t, err)
	id, err := svcs.JWT.Verify(ctx, token.Value)
	require.NoError(t, err)
	assert.Equal(t, account.ID, id)
	assert.Equal(t, cfg.SessionTTL(), svcs.JWT.TTL())
}

func TestNewServices_UnknownHasher(t *testing.T) {
	cfg := testConfig()
	cfg.PasswordHasher = "md5"
	_, err := NewServices(cfg, zap.NewNop(), nil, nil, nil)
	assert.Error(t, err)
}

func TestNewOperatorAuth_SetPassword(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	store, err := OpenStore(ctx, &cfg.StoreConfig, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	auth, err := NewOperatorAuth(&cfg.StoreConfig, zap.NewNop(), store.Admins)
	require.NoError(t, err)

	_, err = auth.Register(ctx, service.RegisterInput{Name: "admin", Email: "a@x.com", Password: "p1"})
	require.NoError(t, err)
	require.NoError(t, auth.SetPassword(ctx, "a@x.com", "p2"))

	_, err = auth.Login(ctx, "a@x.com", "p2")
	assert.NoError(t, err)
}
