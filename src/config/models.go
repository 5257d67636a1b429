package config

type EnvConfig struct {
	ConfigFilePath string `env:"BAKKY_CONFIG_FILE_PATH" envDefault:"/etc/bakky/config.yaml" validate:"omitempty,filepath"`
	// Optional: raw configuration content (YAML or JSON). If set, it takes precedence over ConfigFilePath.
	ConfigContent string `env:"BAKKY_CONFIG_CONTENT" validate:"omitempty"`
	// Optional: explicit config format when using ConfigContent. One of: yaml, yml, json.
	ConfigFormat string `env:"BAKKY_CONFIG_FORMAT" validate:"omitempty,oneof=yaml yml json"`
}

type Config struct {
	Log      LogConfig      `yaml:"log" json:"log"`
	Postgres PostgresConfig `yaml:"postgres" json:"postgres"`
	Mongo    MongoConfig    `yaml:"mongo" json:"mongo"`
	Redis    RedisConfig    `yaml:"redis" json:"redis"`
	Tasks    TasksConfig    `yaml:"tasks" json:"tasks"`
}

type LogConfig struct {
	Level string `yaml:"level" json:"level" default:"info" validate:"omitempty,oneof=debug info warn error"`
}

type PostgresConfig struct {
	Host     string `yaml:"host" json:"host" default:"localhost"`
	Port     int    `yaml:"port" json:"port" default:"5432" validate:"gt=0,lte=65535"`
	Database string `yaml:"database" json:"database" default:"bakky"`
	User     string `yaml:"user" json:"user" default:"postgres"`
	Password string `yaml:"password" json:"password" default:"postgres"`
	SSLMode  string `yaml:"sslmode" json:"sslmode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	MaxConns int32  `yaml:"maxConns" json:"maxConns" default:"10" validate:"gte=0"`
	MinConns int32  `yaml:"minConns" json:"minConns" validate:"gte=0"`
}

type MongoConfig struct {
	URI            string `yaml:"uri" json:"uri" default:"mongodb://localhost:27017"`
	Database       string `yaml:"database" json:"database" default:"bakky"`
	MaxPoolSize    uint64 `yaml:"maxPoolSize" json:"maxPoolSize" default:"100"`
	MinPoolSize    uint64 `yaml:"minPoolSize" json:"minPoolSize"`
	ConnectTimeout int    `yaml:"connectTimeoutMs" json:"connectTimeoutMs" default:"20000" validate:"gte=0"`
	RetryWrites    bool   `yaml:"retryWrites" json:"retryWrites" default:"true"`
	RetryReads     bool   `yaml:"retryReads" json:"retryReads" default:"true"`
}

type RedisConfig struct {
	Address    string `yaml:"address" json:"address" default:"localhost:6379" validate:"hostname_port"`
	Password   string `yaml:"password" json:"password"`
	DB         int    `yaml:"db" json:"db" validate:"gte=0"`
	DefaultTTL int    `yaml:"defaultTtlSeconds" json:"defaultTtlSeconds" default:"3600" validate:"gte=0"`
}

type TasksConfig struct {
	URL     string `yaml:"url" json:"url" default:"nats://localhost:4222"`
	Subject string `yaml:"subject" json:"subject" default:"bakky.tasks"`
	Queue   string `yaml:"queue" json:"queue" default:"bakky-workers"`
}
