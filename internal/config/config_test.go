package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("P24_MERCHANT_ID", "12345")
	t.Setenv("P24_CRC", "secret")
	t.Setenv("P24_SITE_DOMAIN", "shop.example.com")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvLocal, cfg.AppEnv)
	assert.Equal(t, "12345", cfg.Gateway.PosID, "pos id defaults to merchant id")
	assert.Equal(t, "3.2", cfg.Gateway.APIVersion)
	assert.Equal(t, 10*time.Second, cfg.Gateway.HTTPTimeout)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, ExecutorMemory, cfg.Executor.Kind)
	assert.Equal(t, DefaultAllowedIPs, cfg.Gateway.AllowList())
	assert.Equal(t, "https://secure.przelewy24.pl/trnRegister", cfg.Gateway.RegisterURL())
	assert.Equal(t, "http://shop.example.com/przelewy24/online", cfg.Gateway.SiteURL("/przelewy24/online"))
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "docker")
	t.Setenv("P24_POS_ID", "777")
	t.Setenv("P24_SANDBOX", "true")
	t.Setenv("P24_SSL_RETURN", "true")
	t.Setenv("P24_ALLOWED_IPS", "10.0.0.1,10.0.0.2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "777", cfg.Gateway.PosID)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "https://sandbox.przelewy24.pl/trnVerify", cfg.Gateway.VerifyURL())
	assert.Equal(t, "https://sandbox.przelewy24.pl/trnRequest/", cfg.Gateway.RequestURL())
	assert.Equal(t, "https", cfg.Gateway.Scheme())
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.Gateway.AllowList())
}

func TestLoad_BaseURLOverride(t *testing.T) {
	setRequired(t)
	t.Setenv("P24_SANDBOX", "true")
	t.Setenv("P24_BASE_URL", "http://127.0.0.1:9999/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9999/trnRegister", cfg.Gateway.RegisterURL())
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("P24_MERCHANT_ID", "")
	t.Setenv("P24_CRC", "")
	t.Setenv("P24_SITE_DOMAIN", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "P24_MERCHANT_ID is required")
	assert.Contains(t, err.Error(), "P24_CRC is required")
	assert.Contains(t, err.Error(), "P24_SITE_DOMAIN is required")
}

func TestLoad_InvalidExecutor(t *testing.T) {
	setRequired(t)
	t.Setenv("EXECUTOR", "sqs")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid EXECUTOR")
}

func TestDatabase_DSN(t *testing.T) {
	d := Database{Host: "db", Port: "5432", Database: "pay", Username: "u", Password: "p", Schema: "public"}
	assert.Equal(t, "postgres://u:p@db:5432/pay?sslmode=disable&search_path=public", d.DSN())
}

func TestLoadDatabase_IgnoresGatewaySettings(t *testing.T) {
	t.Setenv("BLUEPRINT_DB_HOST", "pg")
	t.Setenv("P24_MERCHANT_ID", "")

	db, err := LoadDatabase()
	require.NoError(t, err)
	assert.Equal(t, "pg", db.Host)
	assert.Equal(t, "5432", db.Port)
}

func TestLoad_AllowListIsTrimmed(t *testing.T) {
	setRequired(t)
	t.Setenv("P24_ALLOWED_IPS", "10.0.0.1, 10.0.0.2 ,,")
	t.Setenv("TRUSTED_PROXIES", " 10.1.0.0/16 ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.Gateway.AllowList())
	assert.Equal(t, []string{"10.1.0.0/16"}, cfg.TrustedProxies)
}

func TestLoad_BlankAllowListFallsBackToDefault(t *testing.T) {
	setRequired(t)
	t.Setenv("P24_ALLOWED_IPS", " , ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultAllowedIPs, cfg.Gateway.AllowList())
}

func TestLoad_InvalidAllowListEntry(t *testing.T) {
	setRequired(t)
	t.Setenv("P24_ALLOWED_IPS", "10.0.0.1,not-an-ip")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "P24_ALLOWED_IPS")
}
