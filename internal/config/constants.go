package config

import "time"

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort = 2333
	defaultEnv  = "development"

	defaultDBDriver   = DriverMySQL
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultPGPort     = 5432
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "wiki"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultSQLitePath = "wiki.db"

	defaultRedisHost = "localhost"
	defaultRedisPort = 6379
	defaultRedisDB   = 0

	defaultStorageRegion = "us-east-1"
	defaultImagesBucket  = "wiki_images"
	defaultAvatarsBucket = "avatars"

	defaultAIProvider      = ProviderGemini
	defaultGeminiModel     = "gemini-flash-latest"
	defaultOpenAIModel     = "gpt-4o-mini"
	defaultAnthropicModel  = "claude-3-5-haiku-latest"
	defaultAIStreamTimeout = 2 * time.Minute

	defaultWikiFolder   = "General"
	defaultPaletteLimit = 10
	defaultHistoryLimit = 10
	defaultDraftTTL     = 7 * 24 * time.Hour

	envJWTSecret = "WIKI_JWT_SECRET"
	envAIAPIKey  = "WIKI_AI_API_KEY"
)

// Database drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// AI providers.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)
