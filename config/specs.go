package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/goliatone/go-membership"
	"github.com/goliatone/go-membership/mail"
)

// Prefix is the environment variable prefix, e.g. MEMBERSHIP_SECRET_KEY
const Prefix = "membership"

// EnvSpec is the environment configuration needed for the tools to start
type EnvSpec struct {
	SecretKey string `envconfig:"secret_key" required:"true"`
	BaseURL   string `envconfig:"base_url" default:"http://localhost:8080"`
	SiteName  string `envconfig:"site_name" default:"Mecenaten"`

	LogLevel string `envconfig:"log_level" default:"info"`
	Debug    bool   `envconfig:"debug" default:"false"`

	DBDriver string `envconfig:"db_driver" default:"sqlite"`
	DSN      string `envconfig:"dsn" default:"file:membership.db?cache=shared"`

	BcryptCost int `envconfig:"bcrypt_cost" default:"14"`

	RedisAddr     string `envconfig:"redis_addr" default:"localhost:6379"`
	RedisPassword string `envconfig:"redis_password"`
	RedisDB       int    `envconfig:"redis_db" default:"0"`
	MailQueue     string `envconfig:"mail_queue" default:"mail"`
	MailWorkers   int    `envconfig:"mail_workers" default:"2"`

	SMTPHost     string        `envconfig:"smtp_host"`
	SMTPPort     int           `envconfig:"smtp_port" default:"587"`
	SMTPUser     string        `envconfig:"smtp_user"`
	SMTPPassword string        `envconfig:"smtp_password"`
	MailFrom     string        `envconfig:"mail_from" default:"noreply@localhost"`
	SendTimeout  time.Duration `envconfig:"send_timeout" default:"30s"`

	MetricsAddr string `envconfig:"metrics_addr" default:":9090"`
}

var _ membership.Config = (*EnvSpec)(nil)

// Load reads the spec from the environment
func Load() (*EnvSpec, error) {
	specs := new(EnvSpec)
	if err := envconfig.Process(Prefix, specs); err != nil {
		return nil, fmt.Errorf("issues with environment sourcing: %w", err)
	}
	specs.BaseURL = strings.TrimRight(specs.BaseURL, "/")
	return specs, nil
}

func (s *EnvSpec) GetSecretKey() string {
	return s.SecretKey
}

func (s *EnvSpec) GetBaseURL() string {
	return s.BaseURL
}

// SMTP returns the relay settings
func (s *EnvSpec) SMTP() mail.SMTPConfig {
	return mail.SMTPConfig{
		Host:     s.SMTPHost,
		Port:     s.SMTPPort,
		Username: s.SMTPUser,
		Password: s.SMTPPassword,
		From:     s.MailFrom,
	}
}

// Worker returns the asynq worker settings
func (s *EnvSpec) Worker() mail.WorkerConfig {
	return mail.WorkerConfig{
		RedisAddr:     s.RedisAddr,
		RedisPassword: s.RedisPassword,
		RedisDB:       s.RedisDB,
		Queue:         s.MailQueue,
		Concurrency:   s.MailWorkers,
	}
}

// String hides secrets when the spec is logged
func (s EnvSpec) String() string {
	s.SecretKey = redact(s.SecretKey)
	s.SMTPPassword = redact(s.SMTPPassword)
	s.RedisPassword = redact(s.RedisPassword)
	type plain EnvSpec
	return fmt.Sprintf("%+v", plain(s))
}

func redact(v string) string {
	if v == "" {
		return ""
	}
	return "********"
}
