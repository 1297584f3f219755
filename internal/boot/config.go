package boot

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
	"github.com/sethvargo/go-envconfig"

	"uk.co.dudmesh.todo/internal/store"
)

const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreDynamoDB = "dynamodb"
	StoreRedis    = "redis"
)

type Config struct {
	Env    string `env:"ENV,default=dev"`
	Server struct {
		Port             string        `env:"PORT,default=3000"`
		MetricsPort      string        `env:"METRICS_PORT,default=8081"`
		Origins          string        `env:"ALLOWED_ORIGINS,default=*"`
		RequestTimeout   time.Duration `env:"REQUEST_TIMEOUT,default=10s"`
		ErrorStatusCodes bool          `env:"ERROR_STATUS_CODES,default=false"`
	}
	Store struct {
		Driver      string `env:"STORE_DRIVER,default=sqlite"`
		DatabaseURL string `env:"DATABASE_URL,default=file:todo.db"`
		RedisURL    string `env:"REDIS_URL,default=redis://localhost:6379/0"`
		TodoTable   string `env:"TODO_TABLE,default=todo"`
		UserTable   string `env:"USER_TABLE,default=user"`
	}
	AWS struct {
		Region          string `env:"AWS_REGION,default=us-west-2"`
		Endpoint        string `env:"DYNAMODB_ENDPOINT"`
		AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
		SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	}
	Auth struct {
		Secret       string        `env:"JWT_SECRET,required"`
		Issuer       string        `env:"JWT_ISSUER,default=todo-api.shiftedhelix.com"`
		TokenTTL     time.Duration `env:"TOKEN_TTL,default=168h"`
		PasswordCost int           `env:"PASSWORD_COST,default=10"`
	}
}

// Load reads the configuration from the environment. Outside production a
// .env file in the working directory is honoured first.
func Load() (*Config, error) {
	if !isProduction(os.Getenv("ENV")) {
		if err := godotenv.Load(); err != nil {
			log.Debugf("no .env file loaded: %v", err)
		}
	}
	return LoadWith(envconfig.OsLookuper())
}

func LoadWith(lookuper envconfig.Lookuper) (*Config, error) {
	config := &Config{}
	if err := envconfig.ProcessWith(context.Background(), config, lookuper); err != nil {
		return nil, fmt.Errorf("parsing env vars: %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case StoreSQLite, StorePostgres, StoreDynamoDB, StoreRedis:
	default:
		return fmt.Errorf("unsupported store driver: %q", c.Store.Driver)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return isProduction(c.Env)
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "dev"
}

func (c *Config) Tables() store.Tables {
	return store.Tables{
		store.CollectionUser: c.Store.UserTable,
		store.CollectionTodo: c.Store.TodoTable,
	}
}

func isProduction(env string) bool {
	return strings.EqualFold(env, "prod")
}
