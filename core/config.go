package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppName         string
	Env             string // DEV (default), TEST, QA, PROD
	Build           string
	Debug           bool
	TestMode        bool
	WorkDir         string
	SecretKey       string
	FrontendBaseURL string

	DefaultFromEmail mail.Address
	SendgridApiKey   string
	RollbarToken     string

	PasswordResetTimeoutDelta time.Duration

	Server struct {
		Host                      string
		Port                      string
		DebugHost                 string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
	}

	Database struct {
		URI  string
		Name string
	}

	AI struct {
		GeminiApiKey   string
		GeminiModel    string
		EmbeddingModel string

		ChromaURL        string
		ChromaCollection string

		FaceRecognitionURL string
	}

	Cloudinary struct {
		CloudName string
		ApiKey    string
		ApiSecret string
		Folder    string
	}

	WhatsApp struct {
		Token         string
		PhoneNumberID string
		VerifyToken   string
	}
}

// NewConfig loads the app configuration: defaults first, then an optional
// config/.env.<env> file, then environment variables (which always win).
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Elimu")
	v.SetDefault("build", "dev")
	v.SetDefault("secretKey", "w3ak-d3v-s3cret-ch@nge-me-in-pr0d")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("serverHost", "0.0.0.0")
	v.SetDefault("serverPort", "8000")
	v.SetDefault("serverDebugHost", "0.0.0.0:4000")
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("mongoURI", "mongodb://localhost:27017")
	v.SetDefault("mongoName", "elimu")
	v.SetDefault("geminiModel", "gemini-1.5-flash")
	v.SetDefault("geminiEmbeddingModel", "text-embedding-004")
	v.SetDefault("chromaURL", "http://localhost:8200")
	v.SetDefault("chromaCollection", "educational_content")
	v.SetDefault("faceRecognitionURL", "http://localhost:8100")
	v.SetDefault("cloudinaryFolder", "elimu")

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		AppName:         v.GetString("appName"),
		Env:             env,
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        env == "TEST",
		WorkDir:         wd,
		SecretKey:       v.GetString("secretKey"),
		FrontendBaseURL: v.GetString("frontendBaseURL"),

		DefaultFromEmail: mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		RollbarToken:     v.GetString("rollbarToken"),

		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
	}

	conf.Server.Host = v.GetString("serverHost")
	conf.Server.Port = v.GetString("serverPort")
	conf.Server.DebugHost = v.GetString("serverDebugHost")
	conf.Server.JWTExpirationDelta = v.GetDuration("jwtExpirationDelta")
	conf.Server.JWTRefreshExpirationDelta = v.GetDuration("jwtRefreshExpirationDelta")
	conf.Server.ShutdownTimeout = v.GetDuration("serverShutdownTimeout")

	conf.Database.URI = v.GetString("mongoURI")
	conf.Database.Name = v.GetString("mongoName")

	conf.AI.GeminiApiKey = v.GetString("geminiApiKey")
	conf.AI.GeminiModel = v.GetString("geminiModel")
	conf.AI.EmbeddingModel = v.GetString("geminiEmbeddingModel")
	conf.AI.ChromaURL = v.GetString("chromaURL")
	conf.AI.ChromaCollection = v.GetString("chromaCollection")
	conf.AI.FaceRecognitionURL = v.GetString("faceRecognitionURL")

	conf.Cloudinary.CloudName = v.GetString("cloudinaryCloudName")
	conf.Cloudinary.ApiKey = v.GetString("cloudinaryApiKey")
	conf.Cloudinary.ApiSecret = v.GetString("cloudinaryApiSecret")
	conf.Cloudinary.Folder = v.GetString("cloudinaryFolder")

	conf.WhatsApp.Token = v.GetString("whatsappToken")
	conf.WhatsApp.PhoneNumberID = v.GetString("whatsappPhoneNumberID")
	conf.WhatsApp.VerifyToken = v.GetString("whatsappVerifyToken")

	return conf
}

func (conf *Config) ServerAddress() string {
	return conf.Server.Host + ":" + conf.Server.Port
}
