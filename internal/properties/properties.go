package properties

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func RootPath() string {
	root := os.Getenv("ROOT_PATH")
	if root == "" {
		return os.TempDir()
	}
	return root
}

func ScratchPath() string {
	return filepath.Join(RootPath(), "data", "scratch")
}

func CachePath() string {
	return filepath.Join(RootPath(), "data", "cache")
}

type Color struct {
	R, G, B uint8
}

// ThumbnailRamp is the diverging FMC ramp: dry (red), mid (pale yellow), wet (blue).
var ThumbnailRamp = []Color{
	{222, 0, 0},
	{255, 255, 186},
	{42, 157, 244},
}

var ThumbnailBackground = Color{255, 255, 255}

type DatabaseSettings struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

func Database() DatabaseSettings {
	port, err := strconv.Atoi(os.Getenv("ODC_DB_PORT"))
	if err != nil || port == 0 {
		port = 5432
	}
	return DatabaseSettings{
		Host:     os.Getenv("ODC_DB_HOSTNAME"),
		Port:     port,
		User:     os.Getenv("ODC_DB_USERNAME"),
		Password: os.Getenv("ODC_DB_PASSWORD"),
		Database: os.Getenv("ODC_DB_DATABASE"),
	}
}

func AWSRegion() string {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		return "ap-southeast-2"
	}
	return region
}

// AnonymousRead reports whether source imagery should be read without signing requests.
func AnonymousRead() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("FMC_ANONYMOUS_READ"))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

type ModelCredentials struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
}

func (c ModelCredentials) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.TokenURL != ""
}

func ModelAuth() ModelCredentials {
	return ModelCredentials{
		ClientID:     os.Getenv("MODEL_CLIENT_ID"),
		ClientSecret: os.Getenv("MODEL_CLIENT_SECRET"),
		TokenURL:     os.Getenv("MODEL_TOKEN_URL"),
	}
}

func DiscordErrorNotificationUrl() string {
	return os.Getenv("DISCORD_ERROR_NOTIFICATION_URL")
}
func DiscordSuccessNotificationUrl() string {
	return os.Getenv("DISCORD_SUCCESS_NOTIFICATION_URL")
}
