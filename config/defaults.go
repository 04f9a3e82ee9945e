// =============================================================================
// smart-router default configuration
// =============================================================================
// Provides sane defaults for every configuration section.
// =============================================================================
package config

import "time"

// DefaultConfig returns the router's built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:     DefaultServerConfig(),
		Dispatcher: DefaultDispatcherConfig(),
		Selector:   DefaultSelectorConfig(),
		Database:   DefaultDatabaseConfig(),
		Admin:      DefaultAdminConfig(),
		Log:        DefaultLogConfig(),
		Telemetry:  DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		GRPCPort:        9090,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// DefaultDispatcherConfig returns the dispatcher's defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		ProfileStorePath: "./data/profiles.json",
		RequestTimeout:   0, // no embedder-imposed deadline by default
		Prefetch:         false,
	}
}

// DefaultSelectorConfig returns the built-in tier->model config registry:
// SIMPLE tier routes "hi" to google/gemini-2.0-flash by default.
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		TierModels: map[string][]CandidateConfig{
			"SIMPLE": {
				{Provider: "google", Model: "gemini-2.0-flash"},
				{Provider: "groq", Model: "llama-3.3-70b"},
				{Provider: "deepseek", Model: "deepseek-chat"},
			},
			"MEDIUM": {
				{Provider: "openai", Model: "gpt-4.1-mini"},
				{Provider: "google", Model: "gemini-2.0-flash"},
				{Provider: "dashscope", Model: "qwen-max"},
			},
			"COMPLEX": {
				{Provider: "anthropic", Model: "claude-sonnet-4.5"},
				{Provider: "openai", Model: "gpt-4.1"},
				{Provider: "google", Model: "gemini-2.5-pro"},
			},
			"REASONING": {
				{Provider: "openai", Model: "o4-mini"},
				{Provider: "deepseek", Model: "deepseek-reasoner"},
				{Provider: "xai", Model: "grok-4"},
			},
		},
		GlobalFallbackOrder: []string{
			"anthropic", "openai", "google", "antigravity", "codex",
			"deepseek", "xai", "groq", "dashscope", "openrouter",
		},
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "smart_router",
		Password:        "",
		Name:            "./data/request_log.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultAdminConfig 返回默认管理配置
func DefaultAdminConfig() AdminConfig {
	return AdminConfig{
		JWTSecret: "",
		Password:  "",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "smart-router",
		SampleRate:   0.1,
	}
}
