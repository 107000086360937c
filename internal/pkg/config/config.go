package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chouha-community/gatekeeper/internal/pkg/env"
)

// Storage backend selectors. Exactly one backend is active per process;
// selection happens here, never via source branching in the callers.
const (
	StorageMySQL    = "mysql"
	StorageMongo    = "mongo"
	StorageS3       = "s3"
	StorageAirtable = "airtable"
	StorageFile     = "file"
	StorageNone     = "none"
)

// Config collects every environment-driven option the two processes recognize.
// Built once at startup via FromEnv and passed by reference into components.
type Config struct {
	// Discord bot / guild
	BotToken         string
	GuildID          string
	WelcomeChannelID string
	VerifiedRoleName string
	LogChannelID     string

	// OAuth2 application
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// Verification link shown in the welcome message. When empty the watcher
	// constructs the OAuth authorize URL itself.
	SiteURL string

	// Storage backend
	StorageBackend string
	MongoURI       string
	MongoDatabase  string

	AirtableBaseID   string
	AirtableTable    string
	AirtableAPIKey   string
	UsersFilePath    string
	S3Bucket         string
	S3Region         string
	S3AccessKeyID    string
	S3SecretKey      string
	S3EndpointURL    string

	// Administrative export endpoint
	ExportToken string

	// HTTP listener
	AppHost string
	AppPort string
}

// FromEnv reads the full configuration from the environment. env.SetupEnvFile
// must have been called before.
func FromEnv() *Config {
	return &Config{
		BotToken:         env.GetEnv("DISCORD_BOT_TOKEN", ""),
		GuildID:          env.GetEnv("DISCORD_GUILD_ID", ""),
		WelcomeChannelID: env.GetEnv("DISCORD_WELCOME_CHANNEL_ID", ""),
		VerifiedRoleName: env.GetEnv("VERIFIED_ROLE_NAME", "Verified"),
		LogChannelID:     env.GetEnv("DISCORD_LOG_CHANNEL_ID", ""),

		ClientID:     env.GetEnv("DISCORD_CLIENT_ID", ""),
		ClientSecret: env.GetEnv("DISCORD_CLIENT_SECRET", ""),
		RedirectURI:  env.GetEnv("DISCORD_REDIRECT_URI", ""),
		SiteURL:      env.GetEnv("SITE_URL", ""),

		StorageBackend: strings.ToLower(env.GetEnv("STORAGE_BACKEND", StorageMySQL)),
		MongoURI:       env.GetEnv("MONGODB_URI", ""),
		MongoDatabase:  env.GetEnv("MONGODB_DATABASE", "gatekeeper"),

		AirtableBaseID: env.GetEnv("AIRTABLE_BASE_ID", ""),
		AirtableTable:  env.GetEnv("AIRTABLE_TABLE_NAME", "Verified Users"),
		AirtableAPIKey: env.GetEnv("AIRTABLE_API_KEY", ""),
		UsersFilePath:  env.GetEnv("USERS_FILE_PATH", "./data/users.json"),
		S3Bucket:       env.GetEnv("S3_BUCKET_NAME", ""),
		S3Region:       env.GetEnv("S3_REGION", "us-east-1"),
		S3AccessKeyID:  env.GetEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretKey:    env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		S3EndpointURL:  env.GetEnv("S3_ENDPOINT_URL", ""),

		ExportToken: env.GetEnv("EXPORT_API_TOKEN", ""),

		AppHost: env.GetEnv("APP_HOST", "localhost"),
		AppPort: env.GetEnv("APP_PORT", "4000"),
	}
}

// ValidateWeb checks the options the callback web service cannot run without.
// Missing values here are fatal at startup.
func (c *Config) ValidateWeb() error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "DISCORD_CLIENT_ID")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "DISCORD_CLIENT_SECRET")
	}
	if c.RedirectURI == "" {
		missing = append(missing, "DISCORD_REDIRECT_URI")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return c.validateStorage()
}

// ValidateWatcher checks the options the membership watcher cannot run without.
func (c *Config) ValidateWatcher() error {
	var missing []string
	if c.BotToken == "" {
		missing = append(missing, "DISCORD_BOT_TOKEN")
	}
	if c.GuildID == "" {
		missing = append(missing, "DISCORD_GUILD_ID")
	}
	if c.WelcomeChannelID == "" {
		missing = append(missing, "DISCORD_WELCOME_CHANNEL_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.StorageBackend {
	case StorageMySQL, StorageFile, StorageNone:
		return nil
	case StorageMongo:
		if c.MongoURI == "" {
			return errors.New("STORAGE_BACKEND=mongo requires MONGODB_URI")
		}
	case StorageS3:
		if c.S3Bucket == "" || c.S3AccessKeyID == "" || c.S3SecretKey == "" {
			return errors.New("STORAGE_BACKEND=s3 requires S3_BUCKET_NAME, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY")
		}
	case StorageAirtable:
		if c.AirtableBaseID == "" || c.AirtableAPIKey == "" {
			return errors.New("STORAGE_BACKEND=airtable requires AIRTABLE_BASE_ID and AIRTABLE_API_KEY")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	return nil
}

// HasBotCredentials reports whether this process can call the Discord REST API
// with bot authorization directly. Without them the callback service delegates
// role assignment to the watcher via the job queue.
func (c *Config) HasBotCredentials() bool {
	return c.BotToken != "" && c.GuildID != ""
}
