package config

import "time"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL"`

	Database     Database     `envPrefix:"DB_"`
	Redis        Redis        `envPrefix:"REDIS_"`
	Kafka        Kafka        `envPrefix:"KAFKA_"`
	Notify       Notify       `envPrefix:"NOTIFY_"`
	Mpesa        Mpesa        `envPrefix:"MPESA_"`
	Fiscal       Fiscal       `envPrefix:"FISCAL_"`
	Sales        Sales        `envPrefix:"SALES_"`
	Auth         Auth         `envPrefix:"AUTH_"`
	Tracing      Tracing      `envPrefix:"TRACING_"`
	ExchangeRate ExchangeRate `envPrefix:"FX_"`
}

type Database struct {
	Driver       string        `env:"DRIVER" envDefault:"mysql"` // mysql, sqlite
	URL          string        `env:"URL"`
	MaxIdleConns int           `env:"MAX_IDLE_CONNS" envDefault:"10"`
	MaxOpenConns int           `env:"MAX_OPEN_CONNS" envDefault:"50"`
	ConnLifetime time.Duration `env:"CONN_LIFETIME" envDefault:"1h"`
}

type Redis struct {
	Enabled  bool   `env:"ENABLED" envDefault:"true"`
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type Kafka struct {
	Enabled     bool     `env:"ENABLED" envDefault:"false"`
	Brokers     []string `env:"BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	TopicPrefix string   `env:"TOPIC_PREFIX" envDefault:"storecore"`
	GroupID     string   `env:"GROUP_ID" envDefault:"storecore-notifier"`
}

type Notify struct {
	QueueSize    int    `env:"QUEUE_SIZE" envDefault:"1024"`
	StaffAddress string `env:"STAFF_ADDRESS" envDefault:"ops@localhost"`
}

type Mpesa struct {
	BaseApiURL     string        `env:"BASE_API_URL" envDefault:"https://sandbox.safaricom.co.ke"`
	ConsumerKey    string        `env:"CONSUMER_KEY"`
	ConsumerSecret string        `env:"CONSUMER_SECRET"`
	ShortCode      string        `env:"SHORTCODE"`
	PassKey        string        `env:"PASSKEY"`
	CallbackURL    string        `env:"CALLBACK_URL"`
	TokenTTL       time.Duration `env:"TOKEN_TTL" envDefault:"55m"`
	Timeout        time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

type Fiscal struct {
	DeviceURL        string        `env:"DEVICE_URL"`
	Timeout          time.Duration `env:"TIMEOUT" envDefault:"3s"`
	BreakerFailures  int           `env:"BREAKER_FAILURES" envDefault:"3"`
	BreakerResetTime time.Duration `env:"BREAKER_RESET" envDefault:"1m"`
}

type Sales struct {
	VATRate        string `env:"VAT_RATE" envDefault:"0.16"`
	OnlineBranchID string `env:"ONLINE_BRANCH_ID" envDefault:"online"`
	SystemCashier  string `env:"SYSTEM_CASHIER" envDefault:"system"`
	Currency       string `env:"CURRENCY" envDefault:"KES"`
}

type Auth struct {
	JWTSecret string `env:"JWT_SECRET"`
}

type Tracing struct {
	JaegerEndpoint string `env:"JAEGER_ENDPOINT"`
	ServiceName    string `env:"SERVICE_NAME" envDefault:"storecore"`
}

type ExchangeRate struct {
	APIURL string        `env:"API_URL"`
	TTL    time.Duration `env:"TTL" envDefault:"1h"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
