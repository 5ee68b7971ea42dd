package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App     AppConfig
	HTTP    HTTPConfig
	JWT     JWTConfig
	Backend BackendConfig
	Profile ProfileConfig
	Listing ListingConfig
	Cache   CacheConfig
	DB      DBConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
	// Límite de refrescos forzados de perfil por usuario y segundo.
	RefreshRatePerSecond int
	RefreshBurst         int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// JWTConfig configuración de JWT. El secreto es compartido con el backend que emite los tokens.
type JWTConfig struct {
	Secret string
	Issuer string
}

// BackendConfig backend REST envuelto por este servicio.
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

// ProfileConfig política de caché y de autoselección de empresa.
type ProfileConfig struct {
	CacheTTL       time.Duration // 10 min por defecto
	SwitchAttempts int           // intentos de switchCompany durante la autoselección
	SwitchDelay    time.Duration // espera fija entre intentos
	IdleTTL        time.Duration // inactividad tras la cual se desaloja la sesión de memoria
	SweepInterval  time.Duration // frecuencia del barrido de sesiones inactivas
}

// ListingConfig caché del listado del marketplace.
type ListingConfig struct {
	CacheTTL time.Duration // 5 min por defecto
}

// CacheConfig almacenamiento clave/valor del estado de sesión.
type CacheConfig struct {
	Driver     string // memory, file, redis, postgres
	Prefix     string
	QuotaBytes int // solo memory; 0 = sin límite
	FileDir    string
	RedisAddr  string
	RedisPass  string
	RedisDB    int
	TTL        time.Duration // expiración de claves en redis; 0 = sin expiración
}

// DBConfig configuración de PostgreSQL (driver de caché "postgres").
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

// DSN devuelve el connection string para PostgreSQL con URL encoding para caracteres especiales.
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

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo).
// Las env vars tienen prioridad. Nombres esperados: APP_ENV, BACKEND_URL, JWT_SECRET, CACHE_DRIVER, etc.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "mercado-bff"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
		},
		HTTP: HTTPConfig{
			Host:                 getString(v, "HTTP_HOST", "0.0.0.0"),
			Port:                 getInt(v, "HTTP_PORT", 8080),
			RefreshRatePerSecond: getInt(v, "HTTP_REFRESH_RATE", 2),
			RefreshBurst:         getInt(v, "HTTP_REFRESH_BURST", 5),
		},
		JWT: JWTConfig{
			Secret: getString(v, "JWT_SECRET", ""),
			Issuer: getString(v, "JWT_ISSUER", "mercado-api"),
		},
		Backend: BackendConfig{
			BaseURL: strings.TrimRight(getString(v, "BACKEND_URL", "http://localhost:3000/api"), "/"),
			Timeout: getDuration(v, "BACKEND_TIMEOUT", 15*time.Second),
		},
		Profile: ProfileConfig{
			CacheTTL:       getDuration(v, "PROFILE_CACHE_TTL", 10*time.Minute),
			SwitchAttempts: getInt(v, "PROFILE_SWITCH_ATTEMPTS", 3),
			SwitchDelay:    getDuration(v, "PROFILE_SWITCH_DELAY", time.Second),
			IdleTTL:        getDuration(v, "SESSION_IDLE_TTL", 30*time.Minute),
			SweepInterval:  getDuration(v, "SESSION_SWEEP_INTERVAL", time.Minute),
		},
		Listing: ListingConfig{
			CacheTTL: getDuration(v, "LISTING_CACHE_TTL", 5*time.Minute),
		},
		Cache: CacheConfig{
			Driver:     getString(v, "CACHE_DRIVER", "memory"),
			Prefix:     getString(v, "CACHE_PREFIX", "mercado"),
			QuotaBytes: getInt(v, "CACHE_QUOTA_BYTES", 5*1024*1024),
			FileDir:    getString(v, "CACHE_FILE_DIR", "./data/sessions"),
			RedisAddr:  getString(v, "REDIS_ADDR", "localhost:6379"),
			RedisPass:  getString(v, "REDIS_PASSWORD", ""),
			RedisDB:    getInt(v, "REDIS_DB", 0),
			TTL:        getDuration(v, "CACHE_TTL", 24*time.Hour),
		},
		DB: DBConfig{
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", "localhost"),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "mercado_bff"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Cache.Driver {
	case "memory", "file", "redis", "postgres":
	default:
		return fmt.Errorf("CACHE_DRIVER desconocido: %q", c.Cache.Driver)
	}
	if c.Profile.SwitchAttempts < 1 {
		return fmt.Errorf("PROFILE_SWITCH_ATTEMPTS debe ser >= 1")
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("BACKEND_URL es requerido")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET es requerido")
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
			n, err := strconv.Atoi(v.GetString(key))
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

// getDuration acepta "90s", "10m" o un entero en segundos.
func getDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	if !v.IsSet(key) {
		return def
	}
	raw := strings.TrimSpace(v.GetString(key))
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
