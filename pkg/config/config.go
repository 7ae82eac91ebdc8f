package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App       AppConfig
	DB        DBConfig
	JWT       JWTConfig
	HTTP      HTTPConfig
	Ledger    LedgerConfig
	Migration MigrationConfig
	Redis     RedisConfig
	Operator  OperatorConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// DBConfig configuración de PostgreSQL.
// Si DatabaseURL no está vacío, se usa como connection string completo.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
}

// ConnectionString devuelve el DSN a usar: DATABASE_URL si está definido, si no el construido con DSN().
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN connection string con URL encoding para caracteres especiales en la contraseña.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// JWTConfig configuración de JWT.
type JWTConfig struct {
	Secret     string
	Expiration int // minutos
	Issuer     string
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LedgerConfig acceso a la API REST del ledger externo.
type LedgerConfig struct {
	BaseURL        string
	AccessToken    string
	Source         string
	PageSize       int
	MaxRetries     int
	RequestTimeout time.Duration
	RatePerSecond  float64
}

// MigrationConfig reglas y tolerancias de la migración.
type MigrationConfig struct {
	Types               []int
	IntermediaryAccount string // código local; vacío desactiva la regla de cobradores
	CollectorPatterns   []string
	ReceivableAccount   string
	PayableAccount      string
	AmountTolerance     decimal.Decimal
	DateWindow          time.Duration
	Concurrency         int
	Schedule            string // expresión cron; vacío = sin programación
	LockTTL             time.Duration
	DryRun              bool
	DateFrom            time.Time // cero = sin límite
	DateTo              time.Time
}

// RedisConfig candado distribuido de corridas. Addr vacío = candado solo en proceso.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// OperatorConfig credenciales de la consola de operación (hash bcrypt).
type OperatorConfig struct {
	Username       string
	PasswordHash   string
	ViewerUsername string
	ViewerHash     string
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo).
// Las env vars tienen prioridad.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.SetConfigName("config")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	tolerance, err := decimal.NewFromString(getString(v, "MIGRATION_AMOUNT_TOLERANCE", "0.01"))
	if err != nil {
		return nil, fmt.Errorf("MIGRATION_AMOUNT_TOLERANCE: %w", err)
	}
	types, err := getInts(v, "MIGRATION_TYPES")
	if err != nil {
		return nil, fmt.Errorf("MIGRATION_TYPES: %w", err)
	}
	dateFrom, err := getDate(v, "MIGRATION_DATE_FROM")
	if err != nil {
		return nil, fmt.Errorf("MIGRATION_DATE_FROM: %w", err)
	}
	dateTo, err := getDate(v, "MIGRATION_DATE_TO")
	if err != nil {
		return nil, fmt.Errorf("MIGRATION_DATE_TO: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "ledger-migration"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
		},
		DB: DBConfig{
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", "localhost"),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "ledger_migration"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:     getString(v, "JWT_SECRET", ""),
			Expiration: getInt(v, "JWT_EXPIRATION_MINUTES", 60),
			Issuer:     getString(v, "JWT_ISSUER", "ledger-migration"),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		Ledger: LedgerConfig{
			BaseURL:        getString(v, "LEDGER_BASE_URL", "https://api.e-boekhouden.nl"),
			AccessToken:    getString(v, "LEDGER_ACCESS_TOKEN", ""),
			Source:         getString(v, "LEDGER_SOURCE", "ledger-migration"),
			PageSize:       getInt(v, "LEDGER_PAGE_SIZE", 500),
			MaxRetries:     getInt(v, "LEDGER_MAX_RETRIES", 5),
			RequestTimeout: time.Duration(getInt(v, "LEDGER_REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
			RatePerSecond:  getFloat(v, "LEDGER_RATE_LIMIT_PER_SECOND", 5),
		},
		Migration: MigrationConfig{
			Types:               types,
			IntermediaryAccount: getString(v, "MIGRATION_INTERMEDIARY_ACCOUNT", ""),
			CollectorPatterns:   getList(v, "MIGRATION_COLLECTOR_PATTERNS"),
			ReceivableAccount:   getString(v, "MIGRATION_RECEIVABLE_ACCOUNT", "1300"),
			PayableAccount:      getString(v, "MIGRATION_PAYABLE_ACCOUNT", "1600"),
			AmountTolerance:     tolerance,
			DateWindow:          time.Duration(getInt(v, "MIGRATION_DATE_WINDOW_DAYS", 30)) * 24 * time.Hour,
			Concurrency:         getInt(v, "MIGRATION_CONCURRENCY", 1),
			Schedule:            getString(v, "MIGRATION_SCHEDULE", ""),
			LockTTL:             time.Duration(getInt(v, "MIGRATION_LOCK_TTL_MINUTES", 30)) * time.Minute,
			DryRun:              v.GetBool("MIGRATION_DRY_RUN"),
			DateFrom:            dateFrom,
			DateTo:              dateTo,
		},
		Redis: RedisConfig{
			Addr:     getString(v, "REDIS_ADDR", ""),
			Password: getString(v, "REDIS_PASSWORD", ""),
			DB:       getInt(v, "REDIS_DB", 0),
		},
		Operator: OperatorConfig{
			Username:       getString(v, "OPERATOR_USERNAME", "admin"),
			PasswordHash:   getString(v, "OPERATOR_PASSWORD_HASH", ""),
			ViewerUsername: getString(v, "VIEWER_USERNAME", ""),
			ViewerHash:     getString(v, "VIEWER_PASSWORD_HASH", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate acota los valores que la API del ledger o la conciliación no aceptan.
func (c *Config) Validate() error {
	if c.Ledger.PageSize <= 0 || c.Ledger.PageSize > 500 {
		return fmt.Errorf("LEDGER_PAGE_SIZE debe estar entre 1 y 500 (actual %d)", c.Ledger.PageSize)
	}
	if c.Ledger.MaxRetries < 0 {
		return fmt.Errorf("LEDGER_MAX_RETRIES no puede ser negativo")
	}
	if c.Ledger.RatePerSecond <= 0 {
		return fmt.Errorf("LEDGER_RATE_LIMIT_PER_SECOND debe ser positivo")
	}
	if c.Migration.AmountTolerance.IsNegative() {
		return fmt.Errorf("MIGRATION_AMOUNT_TOLERANCE no puede ser negativa")
	}
	if !c.Migration.DateFrom.IsZero() && !c.Migration.DateTo.IsZero() && c.Migration.DateFrom.After(c.Migration.DateTo) {
		return fmt.Errorf("MIGRATION_DATE_FROM posterior a MIGRATION_DATE_TO")
	}
	if c.Migration.Concurrency < 1 {
		c.Migration.Concurrency = 1
	}
	return nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
			if err != nil {
				return def
			}
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}

func getFloat(v *viper.Viper, key string, def float64) float64 {
	if !v.IsSet(key) {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.GetString(key)), 64)
	if err != nil {
		return def
	}
	return f
}

// getList separa un valor por comas; vacío devuelve nil.
func getList(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v.GetString(key), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getDate interpreta YYYY-MM-DD; ausente o vacío devuelve la fecha cero.
func getDate(v *viper.Viper, key string) (time.Time, error) {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("fecha %q no tiene formato YYYY-MM-DD", s)
	}
	return t, nil
}

func getInts(v *viper.Viper, key string) ([]int, error) {
	var out []int
	for _, p := range getList(v, key) {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("valor %q no es entero", p)
		}
		out = append(out, n)
	}
	return out, nil
}
