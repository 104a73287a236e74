package main

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/arloliu/fanout"
	"github.com/arloliu/fanout/internal/killswitch"
	"github.com/arloliu/fanout/source"
)

const envPrefix = "FANOUT"

// Source, directory and effect kinds.
const (
	kindPostgres        = "postgres"
	kindJetStream       = "jetstream"
	kindStatic          = "static"
	kindIdentityToolkit = "identitytoolkit"
	kindMemory          = "memory"
	kindLog             = "log"
)

// appConfig is everything the CLI reads from the config file and environment.
type appConfig struct {
	Engine    fanout.Config   `mapstructure:"engine"`
	Source    sourceConfig    `mapstructure:"source"`
	Directory directoryConfig `mapstructure:"directory"`
	Effect    effectConfig    `mapstructure:"effect"`
	NATS      natsConfig      `mapstructure:"nats"`
	Metrics   metricsConfig   `mapstructure:"metrics"`
	Log       logConfig       `mapstructure:"log"`
}

type sourceConfig struct {
	// Kind is postgres, jetstream or static.
	Kind      string                 `mapstructure:"kind"`
	Postgres  postgresConfig         `mapstructure:"postgres"`
	JetStream source.JetStreamConfig `mapstructure:"jetstream"`
	Items     []string               `mapstructure:"items"`
}

type postgresConfig struct {
	URL           string `mapstructure:"url"`
	ClaimFunction string `mapstructure:"claimFunction"`
	Table         string `mapstructure:"table"`
	OfferID       int64  `mapstructure:"offerId"`
	BatchQuery    string `mapstructure:"batchQuery"`
}

type directoryConfig struct {
	// Kind is identitytoolkit or memory.
	Kind            string `mapstructure:"kind"`
	ProjectID       string `mapstructure:"projectId"`
	CredentialsFile string `mapstructure:"credentialsFile"`
	CredentialsJSON string `mapstructure:"credentialsJson"`
	BaseURL         string `mapstructure:"baseUrl"`
}

type effectConfig struct {
	// Kind is identitytoolkit or log.
	Kind   string `mapstructure:"kind"`
	APIKey string `mapstructure:"apiKey"`
}

type natsConfig struct {
	URL string `mapstructure:"url"`

	// KillSwitchBucket enables the remote kill switch when set.
	KillSwitchBucket string `mapstructure:"killSwitchBucket"`
	KillSwitchKey    string `mapstructure:"killSwitchKey"`

	// StatusBucket enables periodic status snapshots under "status.<run id>".
	StatusBucket   string        `mapstructure:"statusBucket"`
	StatusInterval time.Duration `mapstructure:"statusInterval"`
}

type metricsConfig struct {
	// Addr enables the /metrics endpoint when set (e.g., ":9090").
	Addr      string `mapstructure:"addr"`
	Namespace string `mapstructure:"namespace"`
}

type logConfig struct {
	// Format is json, console or logfmt.
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

func defaultAppConfig() appConfig {
	return appConfig{
		Engine:    fanout.DefaultConfig(),
		Source:    sourceConfig{Kind: kindPostgres},
		Directory: directoryConfig{Kind: kindIdentityToolkit},
		Effect:    effectConfig{Kind: kindIdentityToolkit},
		NATS:      natsConfig{KillSwitchKey: "kill", StatusInterval: 10 * time.Second},
		Metrics:   metricsConfig{Namespace: "fanout"},
		Log:       logConfig{Format: "json", Level: "info"},
	}
}

// legacyEnv maps config keys to the environment variable names used by
// earlier deployments. They are consulted after the FANOUT_ names.
var legacyEnv = map[string][]string{
	"engine.killswitch":            {"KILL_SWITCH"},
	"engine.batchsizeperpartition": {"EMAILS_PER_TENANT"},
	"engine.maxworkers":            {"MAX_TENANT_WORKERS"},
	"engine.roundinterval":         {"SLEEP_BETWEEN_ROUNDS"},
	"source.postgres.url":          {"DATABASE_URL"},
	"source.postgres.offerid":      {"OFFER_ID"},
	"directory.projectid":          {"PROJECT_ID"},
	"directory.credentialsfile":    {"SERVICE_ACCOUNT_JSON", "SERVICE_ACCOUNT_FILE"},
	"effect.apikey":                {"API_KEY"},
}

// durationKeys accept bare numbers, meaning seconds.
var durationKeys = []string{
	"engine.roundInterval",
	"engine.emptyBackoff",
	"engine.dequeueTimeout",
	"engine.idleInterval",
	"engine.itemTimeout",
	"engine.itemPacing",
	"engine.failurePause",
	"engine.shutdownTimeout",
	"source.jetstream.fetchWait",
	"source.jetstream.ackWait",
	"nats.statusInterval",
}

// loadConfig reads the optional config file and the environment.
//
// Environment variables use the prefix FANOUT and the dot in keys is replaced
// by an underscore, so "engine.batchSize" becomes FANOUT_ENGINE_BATCHSIZE.
func loadConfig(path string) (*appConfig, error) {
	cfg := defaultAppConfig()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("fanout")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	for _, key := range durationKeys {
		if raw := strings.TrimSpace(v.GetString(key)); raw != "" {
			if secs, err := strconv.ParseFloat(raw, 64); err == nil {
				v.Set(key, strconv.FormatFloat(secs, 'f', -1, 64)+"s")
			}
		}
	}
	if v.IsSet("engine.killSwitch") {
		v.Set("engine.killSwitch", killswitch.ParseValue(v.GetString("engine.killSwitch")))
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &cfg, nil
}

// bindEnvs registers every key of cfg so that viper looks up the matching
// environment variable (and any legacy alias) when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = f.Name
		}
		key := append(append([]string{}, parts...), tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)

			continue
		}

		name := strings.ToLower(strings.Join(key, "."))
		envs := []string{envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))}
		envs = append(envs, legacyEnv[name]...)
		_ = v.BindEnv(append([]string{name}, envs...)...)
	}
}
