package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Secrets struct {
	Db     DbSecrets     `json:"db"`
	Alpaca AlpacaSecrets `json:"alpaca"`
	Jwt    string        `json:"jwt"`
	Port   int           `json:"port"`
}

type DbSecrets struct {
	// Url takes precedence over the individual fields
	Url       string `json:"url"`
	Host      string `json:"host"`
	User      string `json:"user"`
	Port      string `json:"port"`
	Password  string `json:"password"`
	Database  string `json:"database"`
	EnableSsl bool   `json:"enableSsl"`
}

type AlpacaSecrets struct {
	ApiKey         string `json:"apiKey"`
	ApiSecret      string `json:"apiSecret"`
	Endpoint       string `json:"endpoint"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
	RetryLimit     int    `json:"retryLimit"`
}

func (a AlpacaSecrets) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

func (t DbSecrets) ToConnectionStr() string {
	if t.Url != "" {
		return t.Url
	}
	x := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s",
		t.Host, t.Port, t.User, t.Password, t.Database)
	if !t.EnableSsl {
		x += " sslmode=disable"
	}
	return x
}

const (
	defaultPort           = 3009
	defaultTimeoutSeconds = 10
	defaultRetryLimit     = 3
	defaultAlpacaEndpoint = "https://paper-api.alpaca.markets"
)

func secretsPath() string {
	if p := os.Getenv("SECRETS_PATH"); p != "" {
		return p
	}
	switch strings.ToLower(os.Getenv("ALPHA_ENV")) {
	case "dev":
		return "secrets-dev.json"
	case "test":
		return "secrets-test.json"
	}
	return "secrets.json"
}

// LoadSecrets reads the secrets file and then lets the environment (and a
// .env file, if present) override individual values. A missing secrets file
// is fine as long as the environment supplies what is needed.
func LoadSecrets() (*Secrets, error) {
	_ = godotenv.Load()

	secrets := Secrets{}
	f, err := os.ReadFile(secretsPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("could not open secrets file: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal(f, &secrets); err != nil {
			return nil, fmt.Errorf("failed to parse secrets file: %w", err)
		}
	}

	if err := applyEnv(&secrets); err != nil {
		return nil, err
	}
	applyDefaults(&secrets)

	return &secrets, nil
}

func applyEnv(s *Secrets) error {
	setString := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = i
		return nil
	}

	setString(&s.Alpaca.ApiKey, "ALPACA_API_KEY")
	setString(&s.Alpaca.ApiSecret, "ALPACA_API_SECRET")
	setString(&s.Alpaca.Endpoint, "ALPACA_ENDPOINT")
	setString(&s.Db.Url, "DATABASE_URL")
	setString(&s.Jwt, "JWT_SECRET")

	if err := setInt(&s.Port, "PORT"); err != nil {
		return err
	}
	if err := setInt(&s.Alpaca.TimeoutSeconds, "ALPACA_TIMEOUT_SECONDS"); err != nil {
		return err
	}
	return setInt(&s.Alpaca.RetryLimit, "ALPACA_RETRY_LIMIT")
}

func applyDefaults(s *Secrets) {
	if s.Port == 0 {
		s.Port = defaultPort
	}
	if s.Alpaca.Endpoint == "" {
		s.Alpaca.Endpoint = defaultAlpacaEndpoint
	}
	if s.Alpaca.TimeoutSeconds <= 0 {
		s.Alpaca.TimeoutSeconds = defaultTimeoutSeconds
	}
	if s.Alpaca.RetryLimit < 0 {
		s.Alpaca.RetryLimit = 0
	} else if s.Alpaca.RetryLimit == 0 {
		s.Alpaca.RetryLimit = defaultRetryLimit
	}
}
