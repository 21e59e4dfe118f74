package cmdutil

import (
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment variables which set flags, so --results-url
// may be set by DATADIFF_RESULTS_URL.
const EnvPrefix = "DATADIFF"

var configFile string

func RegisterConfigFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&configFile,
		"config",
		"",
		"YAML file of flag values, keyed by flag name",
	)
}

// ApplyConfig sets each flag of cmd which was not given on the command line
// from the environment or the config file.
func ApplyConfig(cmd *cobra.Command) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "error reading config file %s", configFile)
		}
	}
	var retErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if retErr != nil || f.Changed || f.Name == "config" || !v.IsSet(f.Name) {
			return
		}
		val := v.GetString(f.Name)
		if strings.HasSuffix(f.Value.Type(), "Slice") {
			val = strings.Join(v.GetStringSlice(f.Name), ",")
		}
		if err := cmd.Flags().Set(f.Name, val); err != nil {
			retErr = errors.Wrapf(err, "invalid value for %s", f.Name)
		}
	})
	return retErr
}

// ExitError carries the exit code a command finished with. A nil Err means
// the command ran successfully but its result warrants a non-zero code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Exit returns an error carrying code, or nil if code is zero.
func Exit(code int, err error) error {
	if code == 0 && err == nil {
		return nil
	}
	return &ExitError{Code: code, Err: err}
}

// ExitCode returns the process exit code for err: the code an ExitError
// carries, or 2 for any other error.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 2
}

// LogConfigSource logs where configuration was read from.
func LogConfigSource(logger zerolog.Logger) {
	if configFile != "" {
		logger.Debug().Str("config", configFile).Msgf("using config file")
	}
	for _, kv := range os.Environ() {
		if name, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(name, EnvPrefix+"_") {
			logger.Debug().Str("env", name).Msgf("using environment variable")
		}
	}
}
