// Command sqlclient manages SQLite databases described by schema files:
// migrating them, querying rows and moving snapshots in and out.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/sqlclient/core/client"
	"github.com/FocuswithJustin/sqlclient/core/sqlite"
	"github.com/FocuswithJustin/sqlclient/internal/config"
	"github.com/FocuswithJustin/sqlclient/internal/logging"
	"github.com/FocuswithJustin/sqlclient/internal/schemafile"
)

const version = "0.1.0"

// CLI defines the command-line interface for sqlclient.
type CLI struct {
	// Global flags
	Config    string `name:"config" short:"c" help:"Configuration file (YAML)" type:"path"`
	LogLevel  string `name:"log-level" help:"Override log level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" help:"Override log format (json, text)"`

	Migrate MigrateCmd  `cmd:"" help:"Create the schema tables when the database does not match"`
	Export  ExportCmd   `cmd:"" help:"Export the database image to a snapshot target"`
	Import  ImportCmd   `cmd:"" help:"Restore a snapshot into a database file"`
	Count   CountCmd    `cmd:"" help:"Count the rows of a table"`
	Find    FindCmd     `cmd:"" help:"Print the rows of a table as JSON lines"`
	Schema  SchemaGroup `cmd:"" help:"Schema file operations"`
	Info    InfoCmd     `cmd:"" help:"Show SQLite driver information"`
	Version VersionCmd  `cmd:"" help:"Print version information"`
}

// SchemaGroup contains schema file operations.
type SchemaGroup struct {
	Fmt SchemaFmtCmd `cmd:"" help:"Parse a schema file and print it in canonical form"`
}

// runtime is bound into every command's Run method.
type runtime struct {
	cfg    *config.Config
	out    io.Writer
	logger *slog.Logger
}

func newRuntime(cli *CLI, stdout, stderr io.Writer) (*runtime, error) {
	cfg, err := config.LoadConfig(cli.Config)
	if err != nil {
		return nil, err
	}
	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		cfg.Log.Format = cli.LogFormat
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	logging.InitLoggerTo(stderr, level, format)

	return &runtime{cfg: cfg, out: stdout, logger: logging.GetLogger()}, nil
}

// openDB opens the configured database. A non-empty path selects that file
// instead.
func (rt *runtime) openDB(ctx context.Context, path string) (*sqlite.Conn, error) {
	opts := sqlite.Options{Retry: rt.cfg.RetryPolicy(), Logger: rt.logger}
	driver := rt.cfg.Database.Driver
	if path != "" {
		driver = config.DriverFile
	} else {
		path = rt.cfg.Database.Path
	}

	if driver == config.DriverFile {
		return sqlite.OpenFile(ctx, rt.cfg.Database.Name, path, opts)
	}
	return sqlite.OpenMemory(ctx, rt.cfg.Database.Name, opts)
}

// newClient wraps db with the schema declared in schemaPath.
func (rt *runtime) newClient(db *sqlite.Conn, schemaPath string) (*client.Client, error) {
	s, err := schemafile.Load(schemaPath)
	if err != nil {
		return nil, err
	}
	return client.New(db, s,
		client.WithLogger(rt.logger),
		client.WithMaxVariables(rt.cfg.Database.MaxVariables))
}

// run parses args and executes the selected command.
func run(args []string, stdout, stderr io.Writer, options ...kong.Option) error {
	var cli CLI
	options = append([]kong.Option{
		kong.Name("sqlclient"),
		kong.Description("Schema-aware SQLite client"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Writers(stdout, stderr),
	}, options...)

	parser, err := kong.New(&cli, options...)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	rt, err := newRuntime(&cli, stdout, stderr)
	if err != nil {
		return err
	}
	return kctx.Run(rt)
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "sqlclient: %v\n", err)
		os.Exit(1)
	}
}
