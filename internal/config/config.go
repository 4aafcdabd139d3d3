package config

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/spf13/viper"

	"github.com/zhouzirui/kids-tutor/backend/internal/model/chat"
)

// ErrConfiguration marks configuration that must stop startup.
var ErrConfiguration = errors.New("configuration error")

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Chat   ChatConfig
	Log    LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	v := newViper()

	server, err := loadServerConfig(v)
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig(v)
	if err != nil {
		return nil, err
	}

	chatCfg, err := loadChatConfig(v)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		AI:     ai,
		Chat:   chatCfg,
		Log:    loadLogConfig(v),
	}, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3")
	v.SetDefault("ARK_REGION", "cn-beijing")
	v.SetDefault("ARK_TIMEOUT_SECONDS", "60")
	v.SetDefault("PIPELINE_MODE", string(chat.GeneratorOnly))
	v.SetDefault("MAX_INPUT_CHARS", "200")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	// Model keeps the variable name used by earlier deployments.
	_ = v.BindEnv("ARK_MODEL", "ARK_MODEL", "Model")
	return v
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig(v *viper.Viper) (ServerConfig, error) {
	port := getString(v, "PORT")
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("%w: invalid PORT value: %q", ErrConfiguration, port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string
	Timeout   time.Duration
	MaxTokens *int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// Validate reports missing credentials or model as a configuration error.
func (c AIConfig) Validate() error {
	if c.APIKey == "" && (c.AccessKey == "" || c.SecretKey == "") {
		return fmt.Errorf("%w: completion credential missing, set ARK_API_KEY or ARK_ACCESS_KEY + ARK_SECRET_KEY", ErrConfiguration)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: completion model missing, set ARK_MODEL", ErrConfiguration)
	}
	return nil
}

// NewChatModel 使用配置创建一个模型实例。Sampling parameters are left to
// each call; the transport never retries.
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	var timeout *time.Duration
	if c.Timeout > 0 {
		val := c.Timeout
		timeout = &val
	}

	retryTimes := 0
	cfg := &ark.ChatModelConfig{
		BaseURL:    c.BaseURL,
		Region:     c.Region,
		APIKey:     c.APIKey,
		AccessKey:  c.AccessKey,
		SecretKey:  c.SecretKey,
		Model:      c.Model,
		MaxTokens:  maxTokens,
		Timeout:    timeout,
		RetryTimes: &retryTimes,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig(v *viper.Viper) (AIConfig, error) {
	maxTokens, err := parseOptionalInt(v, "ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	timeoutSeconds, err := parseInt(v, "ARK_TIMEOUT_SECONDS")
	if err != nil {
		return AIConfig{}, err
	}
	if timeoutSeconds < 0 {
		return AIConfig{}, fmt.Errorf("%w: ARK_TIMEOUT_SECONDS must not be negative", ErrConfiguration)
	}

	return AIConfig{
		APIKey:    getString(v, "ARK_API_KEY"),
		AccessKey: getString(v, "ARK_ACCESS_KEY"),
		SecretKey: getString(v, "ARK_SECRET_KEY"),
		Model:     getString(v, "ARK_MODEL"),
		BaseURL:   getString(v, "ARK_BASE_URL"),
		Region:    getString(v, "ARK_REGION"),
		Timeout:   time.Duration(timeoutSeconds) * time.Second,
		MaxTokens: maxTokens,
	}, nil
}

// ChatConfig 描述对话流水线配置。
type ChatConfig struct {
	Pipeline      chat.Pipeline
	MaxInputChars int
}

func loadChatConfig(v *viper.Viper) (ChatConfig, error) {
	pipeline, err := chat.ParsePipeline(getString(v, "PIPELINE_MODE"))
	if err != nil {
		return ChatConfig{}, fmt.Errorf("%w: PIPELINE_MODE: %v", ErrConfiguration, err)
	}

	maxInput, err := parseInt(v, "MAX_INPUT_CHARS")
	if err != nil {
		return ChatConfig{}, err
	}
	if maxInput < 0 {
		return ChatConfig{}, fmt.Errorf("%w: MAX_INPUT_CHARS must not be negative", ErrConfiguration)
	}

	return ChatConfig{Pipeline: pipeline, MaxInputChars: maxInput}, nil
}

// LogConfig 描述日志输出配置。
type LogConfig struct {
	Level  string
	Format string
}

func loadLogConfig(v *viper.Viper) LogConfig {
	return LogConfig{
		Level:  strings.ToLower(getString(v, "LOG_LEVEL")),
		Format: strings.ToLower(getString(v, "LOG_FORMAT")),
	}
}

func getString(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

func parseInt(v *viper.Viper, key string) (int, error) {
	raw := getString(v, key)
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s value %q: %v", ErrConfiguration, key, raw, err)
	}
	return val, nil
}

func parseOptionalInt(v *viper.Viper, key string) (*int, error) {
	raw := getString(v, key)
	if raw == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s value %q: %v", ErrConfiguration, key, raw, err)
	}
	return &val, nil
}
