package relaylib

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/aws/aws-sdk-go/service/ssm/ssmiface"
	"github.com/joho/godotenv"
	pkgerrors "github.com/pkg/errors"

	"github.com/cdl-rdv/formrelay/pkg/trace"
)

// Bounds of the wait on the external API.
const (
	DefaultTimeout = 10 * time.Second
	MaxTimeout     = 15 * time.Second
)

// Environment variables read by LoadConfig.
const (
	EnvAPIURL        = "API_URL"
	EnvLogin         = "CONTACT_LOGIN"
	EnvPassword      = "CONTACT_PASSWORD"
	EnvPasswordParam = "CONTACT_PASSWORD_PARAM"
	EnvResellerCode  = "CODE_REVENDEUR"
	EnvTimeout       = "RELAY_TIMEOUT"
	EnvTraceEndpoint = "TRACE_ENDPOINT"
	EnvTraceEnv      = "TRACE_ENVIRONMENT"
	EnvTraceDisabled = "TRACE_DISABLED"
)

var (
	ErrNoAPIURL      = errors.New("API_URL manquante")
	ErrNoCredentials = errors.New("Identifiants manquants")
)

// Config is the process configuration of the relay. Credentials never leave
// the server.
type Config struct {
	APIURL       string
	Login        string
	Password     string
	ResellerCode string
	Timeout      time.Duration
	Trace        trace.ProviderConfig
}

// Check reports the first required setting that is absent.
func (c Config) Check() error {
	if c.APIURL == "" {
		return ErrNoAPIURL
	}
	if c.Login == "" || c.Password == "" {
		return ErrNoCredentials
	}
	return nil
}

type configLoader struct {
	envFiles []string
	lookup   func(string) string
	store    ssmiface.SSMAPI
}

// ConfigOption customises LoadConfig.
type ConfigOption func(*configLoader)

// WithEnvFiles sets the dotenv files loaded before reading the environment.
func WithEnvFiles(paths ...string) ConfigOption {
	return func(l *configLoader) { l.envFiles = paths }
}

// WithLookup replaces os.Getenv.
func WithLookup(lookup func(string) string) ConfigOption {
	return func(l *configLoader) { l.lookup = lookup }
}

// WithParameterStore sets the SSM client used to resolve the password.
func WithParameterStore(store ssmiface.SSMAPI) ConfigOption {
	return func(l *configLoader) { l.store = store }
}

// LoadConfig reads the relay configuration from the environment. Values
// from a .env file fill in variables the process does not already define.
// Required settings that are absent are not an error here: the relay
// reports them per request. The returned Config is usable even when err is
// set.
func LoadConfig(ctx context.Context, opts ...ConfigOption) (Config, error) {
	l := &configLoader{
		envFiles: []string{".env"},
		lookup:   os.Getenv,
	}
	for _, opt := range opts {
		opt(l)
	}
	for _, path := range l.envFiles {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return Config{}, pkgerrors.Wrapf(err, "loading %s", path)
		}
	}

	cfg := Config{
		APIURL:       l.lookup(EnvAPIURL),
		Login:        l.lookup(EnvLogin),
		Password:     l.lookup(EnvPassword),
		ResellerCode: l.lookup(EnvResellerCode),
		Timeout:      DefaultTimeout,
		Trace: trace.ProviderConfig{
			JaegerEndpoint: l.lookup(EnvTraceEndpoint),
			ServiceName:    "formrelay",
			Environment:    l.lookup(EnvTraceEnv),
		},
	}

	var errs []error
	if raw := l.lookup(EnvTimeout); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, pkgerrors.Wrapf(err, "%s", EnvTimeout))
		} else {
			cfg.Timeout = ClampTimeout(d)
		}
	}
	if raw := l.lookup(EnvTraceDisabled); raw != "" {
		disabled, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, pkgerrors.Wrapf(err, "%s", EnvTraceDisabled))
		}
		cfg.Trace.Disabled = disabled
	}

	if param := l.lookup(EnvPasswordParam); cfg.Password == "" && param != "" {
		if l.store == nil {
			sess, err := session.NewSessionWithOptions(session.Options{
				SharedConfigState: session.SharedConfigEnable,
			})
			if err != nil {
				errs = append(errs, pkgerrors.Wrap(err, "aws session"))
				return cfg, errors.Join(errs...)
			}
			l.store = ssm.New(sess)
		}
		password, err := fetchParameter(ctx, l.store, param)
		if err != nil {
			errs = append(errs, err)
		}
		cfg.Password = password
	}

	return cfg, errors.Join(errs...)
}

// ClampTimeout keeps d within [DefaultTimeout, MaxTimeout].
func ClampTimeout(d time.Duration) time.Duration {
	switch {
	case d < DefaultTimeout:
		return DefaultTimeout
	case d > MaxTimeout:
		return MaxTimeout
	default:
		return d
	}
}

func fetchParameter(ctx context.Context, store ssmiface.SSMAPI, name string) (string, error) {
	out, err := store.GetParameterWithContext(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", pkgerrors.Wrapf(err, "reading parameter %s", name)
	}
	if out.Parameter == nil {
		return "", pkgerrors.Errorf("parameter %s has no value", name)
	}
	return aws.StringValue(out.Parameter.Value), nil
}
