// ABOUTME: Process configuration loaded from defaults, an optional YAML file, and the environment.
// ABOUTME: Values are written once at startup and read-only afterwards.

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/jfeddern/ScanRelay/internal/validation"

	"github.com/spf13/viper"
)

const (
	ModeCluster = "cluster"
	ModeLocal   = "local"
)

// Config holds all service configuration. JSON names double as the
// environment variable names reported in validation errors.
type Config struct {
	Mode        string        `json:"MODE" validate:"oneof=cluster local"`
	Port        int           `json:"PORT" validate:"gt=0,lte=65535"`
	MockMode    bool          `json:"MOCK_MODE"`
	LogLevel    string        `json:"LOG_LEVEL"`
	HTTPTimeout time.Duration `json:"HTTP_TIMEOUT" validate:"gt=0"`

	SonarQube  SonarQubeConfig
	Submission SubmissionConfig
	Auth0      Auth0Config
	AWS        AWSConfig
	Kube       KubeConfig
	Webhook    WebhookConfig

	// ArtifactDir enables the local filesystem artifact store when no bucket is set
	ArtifactDir string `json:"ARTIFACT_DIR"`
}

type SonarQubeConfig struct {
	Host     string `json:"SONARQUBE_HOST" validate:"required,url"`
	Token    string `json:"SONARQUBE_TOKEN"`
	PageSize int    `json:"SONARQUBE_PAGE_SIZE" validate:"gt=0,lte=500"`
}

type SubmissionConfig struct {
	APIURL   string `json:"SUBMISSION_API_URL" validate:"required,url"`
	RetryMax int    `json:"SUBMISSION_RETRY_MAX" validate:"gte=0"`
}

type Auth0Config struct {
	URL          string `json:"AUTH0_URL" validate:"required,url"`
	Audience     string `json:"AUTH0_AUDIENCE"`
	ClientID     string `json:"AUTH0_CLIENT_ID" validate:"required"`
	ClientSecret string `json:"AUTH0_CLIENT_SECRET" validate:"required"`
}

type AWSConfig struct {
	S3Bucket      string `json:"AWS_S3_BUCKET"`
	S3Prefix      string `json:"AWS_S3_PREFIX"`
	Region        string `json:"AWS_REGION"`
	AssumeRoleARN string `json:"AWS_IAM_ASSUME_ROLE_ARN"`
}

type KubeConfig struct {
	SecretName      string `json:"KUBE_SECRET_NAME"`
	SecretNamespace string `json:"KUBE_SECRET_NAMESPACE"`
}

type WebhookConfig struct {
	RateLimitPerMin int   `json:"WEBHOOK_RATE_LIMIT_PER_MIN" validate:"gte=0"`
	MaxBodyBytes    int64 `json:"WEBHOOK_MAX_BODY_BYTES" validate:"gt=0"`
}

// Overrides carries values from explicitly passed command line flags
type Overrides struct {
	Mode     *string
	Port     *int
	MockMode *bool
}

// Load reads configuration. configFile may be empty, in which case config.yaml
// is searched in ./config, . and /etc/scanrelay/; a missing file is not an error.
// Explicit flag overrides win over every other source.
func Load(configFile string, overrides Overrides) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/scanrelay/")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if overrides.Mode != nil {
		v.Set("mode", *overrides.Mode)
	}
	if overrides.Port != nil {
		v.Set("port", *overrides.Port)
	}
	if overrides.MockMode != nil {
		v.Set("mock_mode", *overrides.MockMode)
	}

	cfg := &Config{}

	cfg.Mode = strings.ToLower(strings.TrimSpace(v.GetString("mode")))
	cfg.Port = v.GetInt("port")
	cfg.MockMode = v.GetBool("mock_mode")
	cfg.LogLevel = v.GetString("log_level")
	cfg.HTTPTimeout = v.GetDuration("http_timeout")
	cfg.ArtifactDir = v.GetString("artifact_dir")

	cfg.SonarQube.Host = strings.TrimSpace(v.GetString("sonarqube.host"))
	cfg.SonarQube.Token = v.GetString("sonarqube.token")
	cfg.SonarQube.PageSize = v.GetInt("sonarqube.page_size")

	cfg.Submission.APIURL = strings.TrimSpace(v.GetString("submission.api_url"))
	cfg.Submission.RetryMax = v.GetInt("submission.retry_max")

	cfg.Auth0.URL = strings.TrimSpace(v.GetString("auth0.url"))
	cfg.Auth0.Audience = v.GetString("auth0.audience")
	cfg.Auth0.ClientID = v.GetString("auth0.client_id")
	cfg.Auth0.ClientSecret = v.GetString("auth0.client_secret")

	cfg.AWS.S3Bucket = v.GetString("aws.s3_bucket")
	cfg.AWS.S3Prefix = v.GetString("aws.s3_prefix")
	cfg.AWS.Region = v.GetString("aws.region")
	cfg.AWS.AssumeRoleARN = v.GetString("aws.iam_assume_role_arn")

	cfg.Kube.SecretName = v.GetString("kube.secret_name")
	cfg.Kube.SecretNamespace = v.GetString("kube.secret_namespace")

	cfg.Webhook.RateLimitPerMin = v.GetInt("webhook.rate_limit_per_min")
	cfg.Webhook.MaxBodyBytes = v.GetInt64("webhook.max_body_bytes")

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", ModeLocal)
	v.SetDefault("port", 3000)
	v.SetDefault("mock_mode", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("artifact_dir", "")

	v.SetDefault("sonarqube.host", "")
	v.SetDefault("sonarqube.token", "")
	v.SetDefault("sonarqube.page_size", 100)

	v.SetDefault("submission.api_url", "https://api.topcoder-dev.com/v5")
	v.SetDefault("submission.retry_max", 3)

	v.SetDefault("auth0.url", "")
	v.SetDefault("auth0.audience", "")
	v.SetDefault("auth0.client_id", "")
	v.SetDefault("auth0.client_secret", "")

	v.SetDefault("aws.s3_bucket", "")
	v.SetDefault("aws.s3_prefix", "")
	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.iam_assume_role_arn", "")

	v.SetDefault("kube.secret_name", "")
	v.SetDefault("kube.secret_namespace", "default")

	v.SetDefault("webhook.rate_limit_per_min", 0)
	v.SetDefault("webhook.max_body_bytes", 10<<20)
}

// ApplyCredentials overlays credentials loaded from a secret store.
// Unknown keys are ignored.
func (c *Config) ApplyCredentials(creds map[string]string) {
	if token, ok := creds["SONARQUBE_TOKEN"]; ok {
		c.SonarQube.Token = token
	}
	if id, ok := creds["AUTH0_CLIENT_ID"]; ok {
		c.Auth0.ClientID = id
	}
	if secret, ok := creds["AUTH0_CLIENT_SECRET"]; ok {
		c.Auth0.ClientSecret = secret
	}
}

// UsesSecretStore reports whether credentials should be read from a Kubernetes Secret
func (c *Config) UsesSecretStore() bool {
	return c.Mode == ModeCluster && !c.MockMode && c.Kube.SecretName != ""
}

// Validate checks the configuration. External endpoints and credentials are
// only required outside mock mode.
func (c *Config) Validate() error {
	v := validation.Must()

	if err := v.Struct(&struct {
		Mode        string        `json:"MODE" validate:"oneof=cluster local"`
		Port        int           `json:"PORT" validate:"gt=0,lte=65535"`
		HTTPTimeout time.Duration `json:"HTTP_TIMEOUT" validate:"gt=0"`
		Webhook     WebhookConfig
	}{c.Mode, c.Port, c.HTTPTimeout, c.Webhook}); err != nil {
		return err
	}

	if c.MockMode {
		return nil
	}
	return v.Struct(c)
}
