package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/FocuswithJustin/sqlclient/core/cache"
	"github.com/FocuswithJustin/sqlclient/core/schema"
	"github.com/FocuswithJustin/sqlclient/core/sqlite"
	"github.com/FocuswithJustin/sqlclient/internal/config"
	"github.com/FocuswithJustin/sqlclient/internal/schemafile"
	"github.com/FocuswithJustin/sqlclient/internal/snapshot"
)

// MigrateCmd creates the schema tables.
type MigrateCmd struct {
	Schema string `required:"" help:"Schema declaration file" type:"existingfile"`
	DB     string `name:"db" help:"Database file (overrides the configured database)" type:"path"`
}

func (c *MigrateCmd) Run(rt *runtime) error {
	ctx := context.Background()
	db, err := rt.openDB(ctx, c.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	cl, err := rt.newClient(db, c.Schema)
	if err != nil {
		return err
	}
	migrated, err := cl.MigrateIfNeeded(ctx)
	if err != nil {
		return err
	}

	if !migrated {
		fmt.Fprintln(rt.out, "Schema up to date")
		return nil
	}
	fmt.Fprintf(rt.out, "Migrated: %d tables\n", cl.Schema().Len())
	for _, name := range cl.Schema().TableNames() {
		fmt.Fprintf(rt.out, "  %s\n", name)
	}
	return nil
}

// ExportCmd writes the database image to a snapshot target.
type ExportCmd struct {
	Out      string `help:"Snapshot target: path, file:// or s3://bucket/key (default: export.target)"`
	Compress bool   `help:"xz-compress the image (default: export.compress)"`
	DB       string `name:"db" help:"Database file (overrides the configured database)" type:"path"`
}

func (c *ExportCmd) Run(rt *runtime) error {
	target := c.Out
	if target == "" {
		target = rt.cfg.Export.Target
	}
	if target == "" {
		return errors.New("no export target: pass --out or set export.target")
	}

	ctx := context.Background()
	db, err := rt.openDB(ctx, c.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	image, err := db.Export(ctx)
	if err != nil {
		return err
	}
	m, err := snapshot.Write(ctx, target, image, rt.snapshotOptions(c.Compress || rt.cfg.Export.Compress))
	if err != nil {
		return err
	}
	return printJSON(rt, m)
}

// ImportCmd restores a snapshot into a database file.
type ImportCmd struct {
	From   string `required:"" help:"Snapshot source: path, file:// or s3://bucket/key"`
	DB     string `name:"db" help:"Database file to write (default: database.path)" type:"path"`
	BLAKE3 string `name:"blake3" help:"Expected BLAKE3 digest of the image"`
	Force  bool   `help:"Replace an existing database file"`
}

func (c *ImportCmd) Run(rt *runtime) error {
	path := c.DB
	if path == "" && rt.cfg.Database.Driver == config.DriverFile {
		path = rt.cfg.Database.Path
	}
	if path == "" {
		return errors.New("no database file: pass --db or configure a file database")
	}
	if _, err := os.Stat(path); err == nil && !c.Force {
		return fmt.Errorf("%s already exists (use --force to replace it)", path)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	ctx := context.Background()
	opts := rt.snapshotOptions(false)
	opts.ExpectBLAKE3 = c.BLAKE3
	data, m, err := snapshot.Read(ctx, c.From, opts)
	if err != nil {
		return err
	}

	// Make sure the engine accepts the image before it replaces anything.
	check, err := sqlite.OpenMemory(ctx, "import", sqlite.Options{InitialData: data, Logger: rt.logger})
	if err != nil {
		return fmt.Errorf("snapshot is not a usable database: %w", err)
	}
	check.Close()

	if _, err := snapshot.Write(ctx, path, data, snapshot.Options{Database: rt.cfg.Database.Name, Logger: rt.logger}); err != nil {
		return err
	}
	fmt.Fprintf(rt.out, "Imported %s into %s (%d bytes, blake3 %s)\n", m.Target, path, m.Size, m.BLAKE3)
	return nil
}

// CountCmd counts the rows of a table.
type CountCmd struct {
	Table  string   `arg:"" help:"Table name"`
	Schema string   `required:"" help:"Schema declaration file" type:"existingfile"`
	Where  []string `short:"w" sep:"none" help:"Condition col=value, col>value or col<value (repeatable)"`
	DB     string   `name:"db" help:"Database file (overrides the configured database)" type:"path"`
}

func (c *CountCmd) Run(rt *runtime) error {
	ctx := context.Background()
	db, err := rt.openDB(ctx, c.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	cl, err := rt.newClient(db, c.Schema)
	if err != nil {
		return err
	}
	where, err := parseWhere(cl.Schema(), c.Table, c.Where)
	if err != nil {
		return err
	}
	n, err := cl.Count(ctx, c.Table, where)
	if err != nil {
		return err
	}
	fmt.Fprintln(rt.out, n)
	return nil
}

// FindCmd prints matching rows as JSON lines.
type FindCmd struct {
	Table  string   `arg:"" help:"Table name"`
	Schema string   `required:"" help:"Schema declaration file" type:"existingfile"`
	Where  []string `short:"w" sep:"none" help:"Condition col=value, col>value or col<value (repeatable)"`
	Limit  int      `short:"n" help:"Maximum number of rows (0 for all)" default:"0"`
	DB     string   `name:"db" help:"Database file (overrides the configured database)" type:"path"`
}

func (c *FindCmd) Run(rt *runtime) error {
	ctx := context.Background()
	db, err := rt.openDB(ctx, c.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	cl, err := rt.newClient(db, c.Schema)
	if err != nil {
		return err
	}
	where, err := parseWhere(cl.Schema(), c.Table, c.Where)
	if err != nil {
		return err
	}
	rows, err := cl.FindMany(ctx, c.Table, where, c.Limit)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(rt.out)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return nil
}

// SchemaFmtCmd prints a schema file in canonical form.
type SchemaFmtCmd struct {
	File  string `arg:"" help:"Schema declaration file" type:"existingfile"`
	Write bool   `short:"w" help:"Rewrite the file in place instead of printing it"`
}

func (c *SchemaFmtCmd) Run(rt *runtime) error {
	s, err := schemafile.Load(c.File)
	if err != nil {
		return err
	}
	out := schemafile.Format(s)
	if c.Write {
		return os.WriteFile(c.File, []byte(out), 0o644)
	}
	_, err = fmt.Fprint(rt.out, out)
	return err
}

// InfoCmd prints driver and codec cache information.
type InfoCmd struct {
	Schema string `help:"Schema declaration file whose codecs are resolved and listed" type:"existingfile"`
}

type infoOutput struct {
	Driver     sqlite.Info `json:"driver"`
	Tables     []string    `json:"tables,omitempty"`
	CodecCache cache.Stats `json:"codec_cache"`
}

func (c *InfoCmd) Run(rt *runtime) error {
	out := infoOutput{Driver: sqlite.GetInfo()}
	if c.Schema != "" {
		s, err := schemafile.Load(c.Schema)
		if err != nil {
			return err
		}
		out.Tables = s.TableNames()
		for _, name := range out.Tables {
			s.Codecs(name)
		}
	}
	out.CodecCache = schema.CodecCacheStats()
	return printJSON(rt, out)
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(rt *runtime) error {
	fmt.Fprintf(rt.out, "sqlclient version %s\n", version)
	return nil
}

// Helper functions

func (rt *runtime) snapshotOptions(compress bool) snapshot.Options {
	s3 := rt.cfg.Export.S3
	return snapshot.Options{
		Compress: compress,
		S3: snapshot.S3Config{
			Region:    s3.Region,
			Endpoint:  s3.Endpoint,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
		},
		Database: rt.cfg.Database.Name,
		Logger:   rt.logger,
	}
}

func printJSON(rt *runtime, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(rt.out, string(data))
	return err
}
