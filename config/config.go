package config

import (
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kairoscomputer/pkg/configs"
	"github.com/kairoscomputer/pkg/utils"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	productionApiHost  = "https://api.kairos.computer"
	developmentApiHost = "https://api-dev.kairos.computer"
	productionWsHost   = "wss://api.kairos.computer"
	developmentWsHost  = "wss://api-dev.kairos.computer"

	screenSharePath = "/core/v1/websocket/homepage/screenshare"
)

// Live streaming session settings.
type LivestreamConfig struct {
	SocketURL         string `mapstructure:"socket_url"`
	Model             string `mapstructure:"model" validate:"required"`
	ResponseModality  string `mapstructure:"response_modality" validate:"required,oneof=text audio image"`
	FrameIntervalMs   int    `mapstructure:"frame_interval_ms" validate:"required,gt=0"`
	MaxFrameDimension int    `mapstructure:"max_frame_dimension" validate:"required,gt=0"`
	JpegQuality       int    `mapstructure:"jpeg_quality" validate:"required,gt=0,lte=100"`
	RequireMicrophone bool   `mapstructure:"require_microphone"`
}

func (c LivestreamConfig) FrameInterval() time.Duration {
	return time.Duration(c.FrameIntervalMs) * time.Millisecond
}

// Workflow upload flow settings.
type WorkflowConfig struct {
	SiteURL        string `mapstructure:"site_url" validate:"required,url"`
	PollIntervalMs int    `mapstructure:"poll_interval_ms" validate:"required,gt=0"`
	PollAttempts   int    `mapstructure:"poll_attempts" validate:"required,gt=0"`
	CookieDomain   string `mapstructure:"cookie_domain"`
	DefaultMime    string `mapstructure:"default_mime" validate:"required"`
}

func (c WorkflowConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// Application config structure
type AppConfig struct {
	Name            string   `mapstructure:"service_name" validate:"required"`
	Version         string   `mapstructure:"version" validate:"required"`
	Host            string   `mapstructure:"host" validate:"required"`
	Port            int      `mapstructure:"port" validate:"required"`
	LogLevel        string   `mapstructure:"log_level" validate:"required"`
	LogPath         string   `mapstructure:"log_path"`
	Environment     string   `mapstructure:"environment" validate:"required"`
	CorsAllowOrigin []string `mapstructure:"cors_allow_origin"`

	// ApiHost overrides the environment-derived core API host.
	ApiHost string `mapstructure:"api_host"`

	PostgresConfig configs.PostgresConfig `mapstructure:"postgres" validate:"required"`
	RedisConfig    configs.RedisConfig    `mapstructure:"redis" validate:"required"`

	Livestream LivestreamConfig `mapstructure:"livestream" validate:"required"`
	Workflow   WorkflowConfig   `mapstructure:"workflow" validate:"required"`
}

func (cfg *AppConfig) Env() utils.Environment {
	return utils.FromEnvironmentStr(cfg.Environment)
}

// CoreApiHost is the REST base of the backend the site proxies to.
func (cfg *AppConfig) CoreApiHost() string {
	if cfg.ApiHost != "" {
		return cfg.ApiHost
	}
	if cfg.Env().IsProduction() {
		return productionApiHost
	}
	return developmentApiHost
}

// ScreenShareSocketURL is the realtime endpoint the live session dials.
func (cfg *AppConfig) ScreenShareSocketURL() string {
	if cfg.Livestream.SocketURL != "" {
		return cfg.Livestream.SocketURL
	}
	if cfg.Env().IsProduction() {
		return productionWsHost + screenSharePath
	}
	return developmentWsHost + screenSharePath
}

// reading config and intializing configs for application
func InitConfig() (*viper.Viper, error) {
	vConfig := viper.NewWithOptions(viper.KeyDelimiter("__"))

	vConfig.AddConfigPath(".")
	vConfig.SetConfigName(".env")
	path := os.Getenv("ENV_PATH")
	if path != "" {
		log.Printf("env path %v", path)
		vConfig.SetConfigFile(path)
	}
	vConfig.SetConfigType("env")
	vConfig.AutomaticEnv()

	setDefault(vConfig)
	if err := vConfig.ReadInConfig(); err != nil {
		log.Printf("Reading from env variables: %v", err)
	}
	return vConfig, nil
}

func setDefault(v *viper.Viper) {
	// keys must be known to viper for AutomaticEnv to reach Unmarshal
	// keeping watch on https://github.com/spf13/viper/issues/188

	v.SetDefault("SERVICE_NAME", "web-api")
	v.SetDefault("VERSION", "0.0.1")
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 9090)
	v.SetDefault("LOG_LEVEL", "debug")
	v.SetDefault("LOG_PATH", "")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("CORS_ALLOW_ORIGIN", "*")
	v.SetDefault("API_HOST", "")

	v.SetDefault("POSTGRES__HOST", "localhost")
	v.SetDefault("POSTGRES__PORT", 5432)
	v.SetDefault("POSTGRES__DB_NAME", "kairos")
	v.SetDefault("POSTGRES__AUTH__USER", "<>")
	v.SetDefault("POSTGRES__AUTH__PASSWORD", "<>")
	v.SetDefault("POSTGRES__MAX_OPEN_CONNECTION", 10)
	v.SetDefault("POSTGRES__MAX_IDEAL_CONNECTION", 10)
	v.SetDefault("POSTGRES__SSL_MODE", "disable")

	v.SetDefault("REDIS__HOST", "localhost")
	v.SetDefault("REDIS__PORT", 6379)
	v.SetDefault("REDIS__PASSWORD", "")
	v.SetDefault("REDIS__DB", 0)
	v.SetDefault("REDIS__MAX_CONNECTION", 10)

	v.SetDefault("LIVESTREAM__SOCKET_URL", "")
	v.SetDefault("LIVESTREAM__MODEL", "models/gemini-2.0-flash-exp")
	v.SetDefault("LIVESTREAM__RESPONSE_MODALITY", "audio")
	v.SetDefault("LIVESTREAM__FRAME_INTERVAL_MS", 500)
	v.SetDefault("LIVESTREAM__MAX_FRAME_DIMENSION", 640)
	v.SetDefault("LIVESTREAM__JPEG_QUALITY", 100)
	v.SetDefault("LIVESTREAM__REQUIRE_MICROPHONE", true)

	v.SetDefault("WORKFLOW__SITE_URL", "http://localhost:9090")
	v.SetDefault("WORKFLOW__POLL_INTERVAL_MS", 2000)
	v.SetDefault("WORKFLOW__POLL_ATTEMPTS", 60)
	v.SetDefault("WORKFLOW__COOKIE_DOMAIN", "")
	v.SetDefault("WORKFLOW__DEFAULT_MIME", "video/mp4")
}

// Getting application config from viper
func GetApplicationConfig(v *viper.Viper) (*AppConfig, error) {
	var config AppConfig
	err := v.Unmarshal(&config, viper.DecodeHook(mapstructure.StringToSliceHookFunc(",")))
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}

	// valdating the app config
	validate := validator.New()
	err = validate.Struct(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}
	return &config, nil
}
