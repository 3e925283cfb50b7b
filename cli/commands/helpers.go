package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/satishbabariya/sqlsrv-go/cli/internal/config"
	"github.com/satishbabariya/sqlsrv-go/cli/internal/ui"
	"github.com/satishbabariya/sqlsrv-go/internal/debug"
	"github.com/satishbabariya/sqlsrv-go/query"
	"github.com/satishbabariya/sqlsrv-go/query/rewrite"
	"github.com/satishbabariya/sqlsrv-go/query/sqlgen"
	"github.com/satishbabariya/sqlsrv-go/runtime/client"
)

// state is shared by the commands of one root command.
type state struct {
	v       *viper.Viper
	cfg     *config.Config
	out     *ui.Printer
	cfgFile string
	noColor bool

	// confirm asks a yes/no question.
	confirm func(message string) (bool, error)
}

func newState() *state {
	return &state{
		v:       viper.New(),
		confirm: surveyConfirm,
	}
}

// load resolves the configuration once flags are parsed.
func (s *state) load(cmd *cobra.Command) error {
	config.LoadEnvFiles()
	if err := config.Setup(s.v, s.cfgFile); err != nil {
		return err
	}
	cfg, err := config.LoadConfig(s.v)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	s.cfg = cfg

	if s.noColor {
		ui.DisableColor()
	}
	debug.Init(cfg.LogOptions())
	s.out = ui.New(cmd.OutOrStdout(), cmd.ErrOrStderr())
	return nil
}

func (s *state) rewriter() *rewrite.Rewriter {
	return rewrite.New(append(s.cfg.RewriteOptions(), rewrite.WithLogger(debug.Logger()))...)
}

func (s *state) connect(ctx context.Context) (*client.Connection, error) {
	opts := append(s.cfg.ClientOptions(), client.WithLogger(debug.Logger()))
	if debug.Enabled() {
		opts = append(opts, client.WithMiddleware(client.LoggingMiddleware(debug.Logger())))
	}
	conn, err := client.Open(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return conn, nil
}

func surveyConfirm(message string) (bool, error) {
	ok := false
	err := survey.AskOne(&survey.Confirm{Message: message, Default: false}, &ok)
	return ok, err
}

// readSQL returns the statement from file, from stdin when the only
// argument is "-", or from the joined arguments.
func readSQL(cmd *cobra.Command, args []string, file string) (string, error) {
	var text string
	switch {
	case file != "":
		data, err := afero.ReadFile(config.AppFs, file)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", file, err)
		}
		text = string(data)
	case len(args) == 1 && args[0] == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", err
		}
		text = string(data)
	default:
		text = strings.Join(args, " ")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("no SQL statement given")
	}
	return text, nil
}

// parseValue turns a command line value into a bind value. null, integers
// and booleans are typed; a value wrapped in single quotes is always a
// string.
func parseValue(raw string) interface{} {
	if len(raw) >= 2 && raw[0] == '\'' && raw[len(raw)-1] == '\'' {
		return raw[1 : len(raw)-1]
	}
	switch strings.ToLower(raw) {
	case "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	return raw
}

func splitPair(pair string) (string, string, error) {
	name, value, ok := strings.Cut(pair, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("invalid assignment %q: expected name=value", pair)
	}
	return name, value, nil
}

// parseFields parses name=value pairs in order.
func parseFields(pairs []string) ([]sqlgen.Field, error) {
	fields := make([]sqlgen.Field, 0, len(pairs))
	for _, pair := range pairs {
		name, value, err := splitPair(pair)
		if err != nil {
			return nil, err
		}
		fields = append(fields, sqlgen.Field{Name: name, Value: parseValue(value)})
	}
	return fields, nil
}

// parseExpressions parses name=expression pairs. Expressions are raw SQL.
func parseExpressions(pairs []string) ([]sqlgen.Expression, error) {
	exprs := make([]sqlgen.Expression, 0, len(pairs))
	for _, pair := range pairs {
		name, value, err := splitPair(pair)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, sqlgen.Expression{Name: name, SQL: value})
	}
	return exprs, nil
}

// parseArgs parses name=value bind arguments.
func parseArgs(pairs []string) ([]query.Arg, error) {
	fields, err := parseFields(pairs)
	if err != nil {
		return nil, err
	}
	args := make([]query.Arg, len(fields))
	for i, f := range fields {
		args[i] = query.Named(f.Name, f.Value)
	}
	return args, nil
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}
