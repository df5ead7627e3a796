package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env              string // DEV (local; default), TEST, QA, PROD
		Build            string
		Debug            bool
		TestMode         bool
		AppName          string
		SecretKey        string
		WorkDir          string
		DefaultFromEmail mail.Address
		RollbarToken     string
		SendgridApiKey   string

		Server   ServerConfig
		Database DatabaseConfig
		Canteen  CanteenConfig
	}

	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | sqlite
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		Path          string // sqlite only
	}

	CanteenConfig struct {
		AbsenceWindowDays int
		Timezone          string
		Location          *time.Location
		AlertCron         string
		AlertRecipients   []mail.Address
		ScanCooldown      time.Duration
	}
)

func (c DatabaseConfig) Address() string {
	if c.Port == "" {
		return c.Host
	}
	return net.JoinHostPort(c.Host, c.Port)
}

// IsSQLite reports whether the configured engine is the embedded one.
func (c DatabaseConfig) IsSQLite() bool {
	return c.Engine == "sqlite" || c.Engine == "sqlite3"
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Canteen")
	v.SetDefault("secretKey", "w3e!k&0q9c=n2#j-tu8s^dbh)7r4lz+x(y5g*a1m6vfi$op@e")
	v.SetDefault("defaultFromEmail", "Canteen <noreply@localhost>")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("database.engine", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "canteen")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.path", "canteen.db")

	v.SetDefault("canteen.absenceWindowDays", 15)
	v.SetDefault("canteen.timezone", "Local")
	v.SetDefault("canteen.alertCron", "0 18 * * 1-5")
	v.SetDefault("canteen.alertRecipients", "")
	v.SetDefault("canteen.scanCooldown", 4*time.Second)
}

// NewConfig loads the configuration from the environment.
// Variables are prefixed by the current ENV, eg: DEV_DATABASE_ENGINE=postgres
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
		v.SetDefault("database.path", ":memory:")
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.os.Getwd(): %v", err)
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err = os.Stat(dotEnvPath); err == nil {
		if err = godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return configFromViper(v, env, wd)
}

func configFromViper(v *viper.Viper, env, wd string) *Config {
	conf := &Config{
		Env:            env,
		Build:          v.GetString("build"),
		Debug:          v.GetBool("debug"),
		TestMode:       v.GetBool("testMode"),
		AppName:        v.GetString("appName"),
		SecretKey:      v.GetString("secretKey"),
		WorkDir:        wd,
		RollbarToken:   v.GetString("rollbarToken"),
		SendgridApiKey: v.GetString("sendgridApiKey"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        strings.ToLower(v.GetString("database.engine")),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			Path:          v.GetString("database.path"),
		},
		Canteen: CanteenConfig{
			AbsenceWindowDays: v.GetInt("canteen.absenceWindowDays"),
			Timezone:          v.GetString("canteen.timezone"),
			AlertCron:         v.GetString("canteen.alertCron"),
			ScanCooldown:      v.GetDuration("canteen.scanCooldown"),
		},
	}

	from, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatalf("config.defaultFromEmail: %v", err)
	}
	conf.DefaultFromEmail = *from

	if raw := CleanString(v.GetString("canteen.alertRecipients")); raw != "" {
		addrs, err := mail.ParseAddressList(raw)
		if err != nil {
			log.Fatalf("config.canteen.alertRecipients: %v", err)
		}
		for _, addr := range addrs {
			conf.Canteen.AlertRecipients = append(conf.Canteen.AlertRecipients, *addr)
		}
	}

	loc, err := time.LoadLocation(conf.Canteen.Timezone)
	if err != nil {
		log.Fatalf("config.canteen.timezone(%s): %v", conf.Canteen.Timezone, err)
	}
	conf.Canteen.Location = loc

	if conf.Canteen.AbsenceWindowDays < 1 {
		conf.Canteen.AbsenceWindowDays = 15
	}
	return conf
}
