package core

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Retake policies decide what happens when a subject who already has a
// persisted attempt for a graded assessment tries to start a new one.
const (
	RetakeDeny      = "deny"      // refuse a new session (default)
	RetakeOverwrite = "overwrite" // allow; the store's upsert replaces the prior record
)

// Conf is set by NewConfig. Leaf helpers (e.g. user token generation) read it
// directly; everything else takes a *Config.
var Conf *Config

type (
	Config struct {
		AppName          string
		Env              string // DEV (default), TEST, QA, PROD
		Build            string
		Debug            bool
		TestMode         bool
		SecretKey        []byte
		FrontendBaseURL  string
		DefaultFromEmail string
		SendgridAPIKey   string
		RollbarToken     string

		PasswordResetTimeoutDelta time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		Assess   AssessConfig
	}

	ServerConfig struct {
		Host                      string
		Port                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		DisableTLS    bool
	}

	// AssessConfig carries the attempt engine policy knobs. They are named
	// configuration on purpose: retake overwriting and integrity enforcement
	// are product decisions, not storage side effects.
	AssessConfig struct {
		// UpsertRetries bounds the automatic retries of the attempt store
		// write during finalize. The scoring result is never recomputed.
		UpsertRetries int
		// RetakePolicy is one of RetakeDeny | RetakeOverwrite.
		RetakePolicy string
		// EnforceIntegrity turns the integrity monitor on for graded kinds.
		EnforceIntegrity bool
	}
)

func (c ServerConfig) Address() string   { return c.Host + ":" + c.Port }
func (c DatabaseConfig) Address() string { return c.Host + ":" + c.Port }

func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Facillit Hub")
	v.SetDefault("build", "dev")
	v.SetDefault("secretKey", "w#2c^t8e)$ax!u+yq5n&0m(h7z*kd4r_vj9s=lf3%gp1ob6i")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 4*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.name", "facillithub")
	v.SetDefault("database.user", "facillithub")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("assess.upsertRetries", 3)
	v.SetDefault("assess.retakePolicy", RetakeDeny)
	v.SetDefault("assess.enforceIntegrity", true)

	env := os.Getenv("ENV")
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		AppName:                   v.GetString("appName"),
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		SecretKey:                 []byte(v.GetString("secretKey")),
		FrontendBaseURL:           v.GetString("frontendBaseURL"),
		DefaultFromEmail:          v.GetString("defaultFromEmail"),
		SendgridAPIKey:            v.GetString("sendgridAPIKey"),
		RollbarToken:              v.GetString("rollbarToken"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Port:                      v.GetString("server.port"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Assess: AssessConfig{
			UpsertRetries:    v.GetInt("assess.upsertRetries"),
			RetakePolicy:     v.GetString("assess.retakePolicy"),
			EnforceIntegrity: v.GetBool("assess.enforceIntegrity"),
		},
	}
	if conf.Assess.RetakePolicy != RetakeDeny && conf.Assess.RetakePolicy != RetakeOverwrite {
		log.Fatalf("config: unknown assess.retakePolicy %q", conf.Assess.RetakePolicy)
	}

	Conf = conf
	return conf
}

// NewTestConfig returns a Config suitable for unit tests: debug+test mode on,
// short deltas, no external credentials.
func NewTestConfig() *Config {
	conf := &Config{
		AppName:                   "Facillit Hub",
		Env:                       "TEST",
		Build:                     "test",
		Debug:                     false,
		TestMode:                  true,
		SecretKey:                 []byte(fmt.Sprintf("test-secret-%d", time.Now().UnixNano())),
		FrontendBaseURL:           "http://localhost:3000",
		DefaultFromEmail:          "noreply@test.local",
		PasswordResetTimeoutDelta: 24 * time.Hour,
		Server: ServerConfig{
			Host:                      "127.0.0.1",
			Port:                      "0",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 2 * time.Hour,
		},
		Assess: AssessConfig{
			UpsertRetries:    3,
			RetakePolicy:     RetakeDeny,
			EnforceIntegrity: true,
		},
	}
	Conf = conf
	return conf
}
