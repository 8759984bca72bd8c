// Package cfg resolves configuration for the CLIs: the rdap.env dotenv
// file in the configuration directory first, then process environment
// variables, which win. Flag handling stays in the commands.
package cfg

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v7"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvFile is the dotenv file read from the configuration directory.
const EnvFile = "rdap.env"

// Client holds the RDAP_* variables for the query CLI.
type Client struct {
	Base         string `env:"RDAP_BASE"`
	BaseURL      string `env:"RDAP_BASE_URL"`
	Output       string `env:"RDAP_OUTPUT" envDefault:"auto"`
	Log          string `env:"RDAP_LOG" envDefault:"info"`
	Paging       string `env:"RDAP_PAGING" envDefault:"none"`
	NoCache      bool   `env:"RDAP_NO_CACHE"`
	MaxRetries   int    `env:"RDAP_MAX_RETRIES" envDefault:"1"`
	MaxRetrySecs int    `env:"RDAP_MAX_RETRY_SECS" envDefault:"120"`
	DefRetrySecs int    `env:"RDAP_DEF_RETRY_SECS" envDefault:"60"`

	AllowHTTP                bool `env:"RDAP_ALLOW_HTTP"`
	AllowInvalidHostNames    bool `env:"RDAP_ALLOW_INVALID_HOST_NAMES"`
	AllowInvalidCertificates bool `env:"RDAP_ALLOW_INVALID_CERTIFICATES"`

	RedactionFlags []string `env:"RDAP_REDACTION_FLAGS" envSeparator:","`
}

// Server holds the RDAP_SRV_* variables for the server binary.
type Server struct {
	ListenAddr string `env:"RDAP_SRV_LISTEN_ADDR" envDefault:"127.0.0.1"`
	ListenPort int    `env:"RDAP_SRV_LISTEN_PORT" envDefault:"3000"`
	DataDir    string `env:"RDAP_SRV_DATA_DIR"`
	Log        string `env:"RDAP_SRV_LOG" envDefault:"info"`

	Bootstrap         bool `env:"RDAP_SRV_BOOTSTRAP"`
	UpdateOnBootstrap bool `env:"RDAP_SRV_UPDATE_ON_BOOTSTRAP"`

	JSContactConversion string `env:"RDAP_SRV_JSCONTACT_CONVERSION" envDefault:"none"`

	DomainSearchByName     bool `env:"RDAP_SRV_DOMAIN_SEARCH_BY_NAME"`
	NameserverSearchByName bool `env:"RDAP_SRV_NAMESERVER_SEARCH_BY_NAME"`
	NameserverSearchByIP   bool `env:"RDAP_SRV_NAMESERVER_SEARCH_BY_IP"`
}

// ConfigDir returns the rdap configuration directory. It holds rdap.env
// and the bootstrap override registries.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cfg: locating config dir: %w", err)
	}
	return filepath.Join(base, "rdap"), nil
}

// CacheDir returns the rdap cache directory, holding the IANA registry
// cache files.
func CacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("cfg: locating cache dir: %w", err)
	}
	return filepath.Join(base, "rdap"), nil
}

// LoadEnvFile reads rdap.env from dir and exports every key that the
// process environment does not already set, so that real environment
// variables always win over the file.
func LoadEnvFile(dir string) error {
	path := filepath.Join(dir, EnvFile)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("cfg: %s: %w", path, err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("cfg: reading %s: %w", path, err)
	}
	for _, key := range v.AllKeys() {
		name := envName(key)
		if _, present := os.LookupEnv(name); present {
			continue
		}
		if err := os.Setenv(name, v.GetString(key)); err != nil {
			return fmt.Errorf("cfg: exporting %s: %w", name, err)
		}
	}
	return nil
}

// viper lowercases keys; the variables in rdap.env are upper snake case
func envName(key string) string {
	b := []byte(key)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

// LoadClient parses the client configuration from the environment after
// loading rdap.env from dir (pass "" to skip the file).
func LoadClient(dir string) (*Client, error) {
	if dir != "" {
		if err := LoadEnvFile(dir); err != nil {
			return nil, err
		}
	}
	c := &Client{}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("cfg: %w", err)
	}
	return c, nil
}

// LoadServer is LoadClient for the server variables.
func LoadServer(dir string) (*Server, error) {
	if dir != "" {
		if err := LoadEnvFile(dir); err != nil {
			return nil, err
		}
	}
	s := &Server{}
	if err := env.Parse(s); err != nil {
		return nil, fmt.Errorf("cfg: %w", err)
	}
	return s, nil
}

// Logger builds a logrus logger at the named level, defaulting to info on
// an unknown name.
func Logger(level string) *logrus.Logger {
	log := logrus.New()
	lv, err := logrus.ParseLevel(level)
	if err != nil {
		lv = logrus.InfoLevel
	}
	log.SetLevel(lv)
	return log
}
