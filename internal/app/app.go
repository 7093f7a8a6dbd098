// Package app implements the oatest command routing and execution.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/saiaj/openapitest/internal/config"
	"github.com/saiaj/openapitest/internal/logging"
	"github.com/saiaj/openapitest/openapitest"
	"golang.org/x/term"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// Run executes the oatest CLI and returns a process exit code. args[0] is the
// program name.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(args) < 2 {
		printUsage(stderr)
		return exitUsage
	}

	switch args[1] {
	case "lint":
		return runLint(ctx, args[2:], stdout, stderr)
	case "call":
		return runCall(ctx, args[2:], stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return exitOK
	default:
		writef(stderr, "unknown command: %s\n", args[1])
		printUsage(stderr)
		return exitUsage
	}
}

func printUsage(w io.Writer) {
	writeLine(w, "usage: oatest <command> [flags]")
	writeLine(w, "commands:")
	writeLine(w, "  lint   load and validate an OpenAPI schema, list its operations")
	writeLine(w, "  call   send one validated request to a running server")
}

// commonFlags are shared by every command. Values set on the command line
// win over the config file and environment.
type commonFlags struct {
	configPath string
	schemaPath string
	logLevel   string
	output     config.OutputFormat
}

func (c *commonFlags) register(flags *flag.FlagSet) {
	flags.StringVar(&c.configPath, "config", config.DefaultPath, "Config file path")
	flags.StringVar(&c.schemaPath, "schema", "", "OpenAPI schema path")
	flags.StringVar(&c.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	flags.Var(&c.output, "output", "Output format: auto|text|json")
}

// resolve loads the config file and overlays the flags the user set.
func (c *commonFlags) resolve(flags *flag.FlagSet) (config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.Config{}, err
	}

	var flagErr error
	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "schema":
			cfg.SchemaPath = c.schemaPath
		case "log-level":
			if !logging.ValidLevel(c.logLevel) {
				flagErr = fmt.Errorf("invalid log level: %q", c.logLevel)
				return
			}
			cfg.LogLevel = c.logLevel
		case "output":
			cfg.Output = c.output
		}
	})
	if flagErr != nil {
		return config.Config{}, flagErr
	}
	return cfg, nil
}

type lintResult struct {
	Schema     string   `json:"schema"`
	Operations []string `json:"operations"`
}

func runLint(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("lint", flag.ContinueOnError)
	flags.SetOutput(stderr)
	var common commonFlags
	common.register(flags)
	if err := flags.Parse(args); err != nil {
		return exitUsage
	}
	if flags.NArg() != 0 {
		return usageError(stderr, "lint does not accept arguments")
	}

	cfg, err := common.resolve(flags)
	if err != nil {
		return usageError(stderr, err.Error())
	}
	format := resolveOutput(cfg.Output, stdout)

	select {
	case <-ctx.Done():
		writeLine(stderr, ctx.Err())
		return exitError
	default:
	}

	schema, err := openapitest.LoadSchemaFile(cfg.SchemaPath)
	if err != nil {
		return writeError(stderr, format, err)
	}

	ops := schema.Operations()
	result := lintResult{Schema: schema.Path(), Operations: make([]string, 0, len(ops))}
	for _, op := range ops {
		result.Operations = append(result.Operations, op.String())
	}
	return writeOutput(stdout, format, result)
}

type callResult struct {
	Operation string          `json:"operation,omitempty"`
	Status    int             `json:"status"`
	Body      json.RawMessage `json:"body,omitempty"`
	RawBody   string          `json:"raw_body,omitempty"`
}

func runCall(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("call", flag.ContinueOnError)
	flags.SetOutput(stderr)
	var common commonFlags
	common.register(flags)

	var (
		baseURL        string
		method         string
		path           string
		data           string
		skipValidation bool
		headers        headerFlags
	)
	flags.StringVar(&baseURL, "url", "", "Server base URL")
	flags.StringVar(&method, "method", http.MethodGet, "HTTP method")
	flags.StringVar(&path, "path", "", "Request path, optionally with a query string (required)")
	flags.StringVar(&data, "data", "", "JSON request body")
	flags.BoolVar(&skipValidation, "skip-validation", false, "Skip request validation; the response is still validated")
	flags.Var(&headers, "header", "Request header as 'Name: value' (repeatable)")

	if err := flags.Parse(args); err != nil {
		return exitUsage
	}
	if flags.NArg() != 0 {
		return usageError(stderr, "call does not accept arguments")
	}
	if strings.TrimSpace(path) == "" {
		return usageError(stderr, "path is required")
	}

	var body any
	if data != "" {
		if !json.Valid([]byte(data)) {
			return usageError(stderr, "data must be valid JSON")
		}
		body = json.RawMessage(data)
	}

	cfg, err := common.resolve(flags)
	if err != nil {
		return usageError(stderr, err.Error())
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	format := resolveOutput(cfg.Output, stdout)

	client := openapitest.NewRemote(cfg.BaseURL, &http.Client{Timeout: cfg.Timeout},
		openapitest.WithLogger(logging.New(stderr, cfg.LogLevel)),
		openapitest.WithServerVariables(cfg.Server),
	)
	if err := client.LoadSchema(cfg.SchemaPath); err != nil {
		return writeError(stderr, format, err)
	}
	if skipValidation {
		client.SkipNextValidation()
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	res, err := client.JSON(ctx, strings.ToUpper(method), path, body, headers)
	if err != nil {
		return writeError(stderr, format, err)
	}

	result := callResult{Status: res.StatusCode}
	if json.Valid(res.Body) {
		result.Body = json.RawMessage(res.Body)
	} else if len(res.Body) > 0 {
		result.RawBody = string(res.Body)
	}
	return writeOutput(stdout, format, result)
}

// headerFlags collects repeated -header values.
type headerFlags map[string]string

func (h *headerFlags) Set(value string) error {
	name, val, ok := strings.Cut(value, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return fmt.Errorf("header must be 'Name: value', got %q", value)
	}
	if *h == nil {
		*h = make(headerFlags)
	}
	(*h)[name] = strings.TrimSpace(val)
	return nil
}

func (h *headerFlags) String() string {
	if h == nil || len(*h) == 0 {
		return ""
	}
	parts := make([]string, 0, len(*h))
	for name, value := range *h {
		parts = append(parts, name+": "+value)
	}
	return strings.Join(parts, ", ")
}

// resolveOutput picks text on a terminal and JSON otherwise when the format
// is auto.
func resolveOutput(format config.OutputFormat, w io.Writer) config.OutputFormat {
	if format != config.OutputAuto {
		return format
	}
	if isTerminal(w) {
		return config.OutputText
	}
	return config.OutputJSON
}

// isTerminal reports whether the writer is a terminal.
func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

type errorPayload struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Body    string `json:"body,omitempty"`
	Crumbs  string `json:"crumbs,omitempty"`
}

// writeError reports err on stderr and returns exitError.
func writeError(w io.Writer, format config.OutputFormat, err error) int {
	if format != config.OutputJSON {
		writeLine(w, err)
		return exitError
	}

	detail := errorDetail{Kind: "error", Message: err.Error()}
	var (
		cfgErr *openapitest.ConfigurationError
		reqErr *openapitest.RequestError
		resErr *openapitest.ResponseError
	)
	switch {
	case errors.As(err, &cfgErr):
		detail.Kind, detail.Code = "configuration", string(cfgErr.Code)
	case errors.As(err, &reqErr):
		detail.Kind, detail.Code = "request", string(reqErr.Code)
	case errors.As(err, &resErr):
		detail.Kind, detail.Code = "response", string(resErr.Code)
		detail.Body, detail.Crumbs = string(resErr.Body), resErr.Crumbs
	}
	if writeErr := writeJSON(w, errorPayload{Error: detail}); writeErr != nil {
		writeLine(w, err)
	}
	return exitError
}

func writeOutput(w io.Writer, format config.OutputFormat, data any) int {
	switch format {
	case config.OutputJSON:
		if err := writeJSON(w, data); err != nil {
			return exitError
		}
		return exitOK
	case config.OutputText:
		return writeText(w, data)
	default:
		return exitError
	}
}

func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func writeText(w io.Writer, data any) int {
	switch value := data.(type) {
	case lintResult:
		writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		writef(writer, "schema\t%s\n", value.Schema)
		writeLine(writer, "METHOD\tPATH")
		for _, op := range value.Operations {
			method, path, _ := strings.Cut(op, " ")
			writef(writer, "%s\t%s\n", method, path)
		}
		if err := writer.Flush(); err != nil {
			return exitError
		}
		return exitOK
	case callResult:
		writef(w, "HTTP %d %s\n", value.Status, http.StatusText(value.Status))
		switch {
		case len(value.Body) > 0:
			writeLine(w, string(value.Body))
		case value.RawBody != "":
			writeLine(w, value.RawBody)
		}
		return exitOK
	default:
		return exitError
	}
}

// usageError writes a usage error message and returns exitUsage.
func usageError(w io.Writer, message string) int {
	writeLine(w, message)
	return exitUsage
}

// writeLine writes a line and ignores failures because there's no recovery path.
func writeLine(w io.Writer, args ...any) {
	if _, err := fmt.Fprintln(w, args...); err != nil {
		// Best-effort output only.
		_ = err
	}
}

// writef writes formatted output and ignores failures because there's no recovery path.
func writef(w io.Writer, format string, args ...any) {
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		// Best-effort output only.
		_ = err
	}
}
