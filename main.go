package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var configPath string

// translate command flags
var (
	translateOpts      = defaultTranslateOptions()
	translateSchemaArg string
	translateOnError   string
	translateDialect   string
)

var rootCmd = &cobra.Command{
	Use:           "ddlferry",
	Short:         "MySQL DDL to PostgreSQL translation and migration tool",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate [config.toml]",
	Short: "Translate the source schema, create it in PostgreSQL and copy the rows",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMigration,
}

var translateCmd = &cobra.Command{
	Use:   "translate <dump.sql>",
	Short: "Translate the CREATE TABLE statements of a SQL dump and print the PostgreSQL DDL",
	Long: "Translate reads a mysqldump-style file offline. The PostgreSQL script is\n" +
		"written to stdout; the translation report goes to stderr.",
	Args: cobra.ExactArgs(1),
	RunE: runTranslate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the ddlferry version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), versionString())
	},
}

func init() {
	migrateCmd.Flags().StringVar(&configPath, "config", "", "path to migration TOML config file")

	f := translateCmd.Flags()
	f.BoolVar(&translateOpts.TinyInt1AsBoolean, "tinyint1-as-boolean", translateOpts.TinyInt1AsBoolean, "map TINYINT(1) to BOOLEAN")
	f.BoolVar(&translateOpts.WidenUnsignedIntegers, "widen-unsigned-integers", translateOpts.WidenUnsignedIntegers, "map unsigned integers to the next wider type")
	f.BoolVar(&translateOpts.SerialNotNull, "serial-not-null", translateOpts.SerialNotNull, "keep NOT NULL on auto-increment columns")
	f.StringVar(&translateOpts.UnrecognizedClauses, "unrecognized-clauses", translateOpts.UnrecognizedClauses, "skip|error")
	f.IntVar(&translateOpts.Workers, "workers", translateOpts.Workers, "parallel table translations")
	f.StringVar(&translateSchemaArg, "schema", "", "qualify table names with this schema")
	f.StringVar(&translateOnError, "on-parse-error", "skip", "skip|abort")
	f.StringVar(&translateDialect, "dialect", "mysql", "mysql|sqlite, how the dump's DDL is read")

	rootCmd.AddCommand(migrateCmd, translateCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runTranslate(cmd *cobra.Command, args []string) error {
	switch translateOpts.UnrecognizedClauses {
	case "skip", "error":
	default:
		return fmt.Errorf("--unrecognized-clauses must be one of: skip, error")
	}
	switch translateOnError {
	case "skip", "abort":
	default:
		return fmt.Errorf("--on-parse-error must be one of: skip, abort")
	}

	dialect, err := parseSourceDialect(translateDialect)
	if err != nil {
		return fmt.Errorf("--dialect: %w", err)
	}

	raws, objs, err := readDumpFile(args[0])
	if err != nil {
		return err
	}
	log.Printf("found %d tables in %s", len(raws), args[0])

	opts := translateOpts
	opts.Dialect = dialect
	res := translateSchema(raws, opts)
	logReport(translationReport(res, objs))
	if len(res.Errors) > 0 && translateOnError == "abort" {
		return fmt.Errorf("translate schema: %w", res.Err())
	}

	return writeSchemaScript(cmd.OutOrStdout(), res.Tables, translateSchemaArg)
}

func runMigration(cmd *cobra.Command, args []string) error {
	// Resolve config path: positional arg takes precedence over --config flag
	cfgPath := configPath
	if len(args) > 0 {
		cfgPath = args[0]
	}
	if cfgPath == "" {
		return fmt.Errorf("config file required: ddlferry migrate <config.toml> or ddlferry migrate --config <config.toml>")
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return migrate(ctx, cfg)
}

// migrate runs the whole pipeline: read and translate the source schema,
// create it in PostgreSQL, copy the rows and finish with the post-data steps.
func migrate(ctx context.Context, cfg *MigrationConfig) error {
	start := time.Now()

	log.Printf("ddlferry %s: %s to PostgreSQL migration", versionString(), cfg.Source.Type)
	log.Printf(
		"config: workers=%d batch_size=%d schema=%s on_schema_exists=%s schema_only=%t data_only=%t tinyint1_as_boolean=%t widen_unsigned_integers=%t",
		cfg.Workers,
		cfg.BatchSize,
		cfg.Schema,
		cfg.OnSchemaExists,
		cfg.SchemaOnly,
		cfg.DataOnly,
		cfg.Translation.TinyInt1AsBoolean,
		cfg.Translation.WidenUnsignedIntegers,
	)

	// 1. Read the source schema
	source, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer source.Close()
	log.Printf("found %d tables", len(source.raws))

	// 2. Translate and report
	opts := cfg.Translation.options(cfg.Workers)
	opts.Dialect = source.dialect()
	res := translateSchema(source.raws, opts)
	for _, t := range res.Tables {
		log.Printf("  %s → %s (%d cols, %d constraints)", t.Name, t.TargetName, len(t.Columns), len(t.Constraints))
	}
	logReport(translationReport(res, source.objs))
	if len(res.Errors) > 0 {
		if cfg.OnParseError == "abort" {
			return fmt.Errorf("translate schema: %w", res.Err())
		}
		log.Printf("continuing without %d untranslated table(s) (on_parse_error=skip)", len(res.Errors))
	}

	// 3. Connect to PostgreSQL
	log.Printf("connecting to PostgreSQL...")
	pgPool, err := connectTarget(ctx, cfg)
	if err != nil {
		return err
	}
	defer pgPool.Close()

	// 4. Schema and tables
	var created *creationResult
	if cfg.DataOnly {
		log.Printf("data_only: skipping schema and table creation")
		created = &creationResult{}
	} else {
		log.Printf("preparing schema '%s'...", cfg.Schema)
		if err := prepareTargetSchema(ctx, pgPool, cfg.Schema, cfg.OnSchemaExists); err != nil {
			return err
		}

		log.Printf("creating tables...")
		err := withConn(ctx, pgPool, func(conn *pgxpool.Conn) error {
			var err error
			created, err = createTables(ctx, conn, res.Tables, cfg.Schema)
			return err
		})
		if err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
		log.Printf("created %d tables (%d already existed)", len(created.Created), len(created.Existing))
	}

	// 5. before_data hooks, data, after_data hooks
	if !cfg.SchemaOnly {
		if err := runHooks(ctx, pgPool, cfg, cfg.Hooks.BeforeData, "before_data"); err != nil {
			return err
		}

		log.Printf("copying data with %d workers...", cfg.Workers)
		stats, err := copyTables(ctx, pgPool, source.db, source.src, res.Tables, copyOptions{
			Schema:    cfg.Schema,
			Workers:   cfg.Workers,
			BatchSize: cfg.BatchSize,
		})
		copied, failed := copySummary(stats)
		if err != nil {
			return fmt.Errorf("copy data (%d rows copied so far): %w", copied, err)
		}
		log.Printf("copied %d rows across %d tables, %d rows skipped", copied, len(stats), failed)

		if err := runHooks(ctx, pgPool, cfg, cfg.Hooks.AfterData, "after_data"); err != nil {
			return err
		}
	}

	// 6. Post-migration: deferred FKs, sequences, after_all hooks
	log.Printf("running post-migration steps...")
	err = withConn(ctx, pgPool, func(conn *pgxpool.Conn) error {
		return postMigrate(ctx, conn, res.Tables, created.Deferred, cfg)
	})
	if err != nil {
		return fmt.Errorf("post-migrate: %w", err)
	}

	log.Printf("migration completed in %s", time.Since(start).Round(time.Millisecond))
	return nil
}

// migrationSource is the opened source: its translated-to-be tables and, for
// database sources, the connection rows are copied from.
type migrationSource struct {
	src  SourceDB
	db   *sql.DB
	raws []RawTableDDL
	objs *SourceObjects
}

// dialect is MySQL for dump files, which are mysqldump output.
func (s *migrationSource) dialect() sourceDialect {
	if s.src == nil {
		return dialectMySQL
	}
	return s.src.Dialect()
}

func (s *migrationSource) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

func openSource(ctx context.Context, cfg *MigrationConfig) (*migrationSource, error) {
	if cfg.Source.Type == "dump" {
		log.Printf("reading dump %s...", cfg.Source.DSN)
		raws, objs, err := readDumpFile(cfg.Source.DSN)
		if err != nil {
			return nil, err
		}
		return &migrationSource{raws: raws, objs: objs}, nil
	}

	src, err := newSourceDB(cfg.Source.Type)
	if err != nil {
		return nil, err
	}
	src.SetCharset(cfg.Source.Charset)

	log.Printf("connecting to %s...", src.Name())
	db, err := src.OpenDB(cfg.Source.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.Workers)
	s := &migrationSource{src: src, db: db}

	if err := db.PingContext(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("ping %s: %w", src.Name(), err)
	}

	dbName, err := src.ExtractDBName(cfg.Source.DSN)
	if err != nil {
		s.Close()
		return nil, err
	}

	log.Printf("extracting %s schema '%s'...", src.Name(), dbName)
	if s.raws, err = src.ExtractTables(ctx, db, dbName); err != nil {
		s.Close()
		return nil, fmt.Errorf("extract tables: %w", err)
	}
	if s.objs, err = src.IntrospectSourceObjects(ctx, db, dbName); err != nil {
		s.Close()
		return nil, fmt.Errorf("introspect source objects: %w", err)
	}
	return s, nil
}

// connectTarget opens the PostgreSQL pool with room for every copy worker
// plus the connection running DDL and hooks.
func connectTarget(ctx context.Context, cfg *MigrationConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Target.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse target dsn: %w", err)
	}
	if want := int32(cfg.Workers + 1); poolCfg.MaxConns < want {
		poolCfg.MaxConns = want
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// withConn runs fn on one pooled connection. Statement sequences that open
// their own transactions must not be spread over several connections.
func withConn(ctx context.Context, pool *pgxpool.Pool, fn func(conn *pgxpool.Conn) error) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()
	return fn(conn)
}

func runHooks(ctx context.Context, pool *pgxpool.Pool, cfg *MigrationConfig, files []string, phase string) error {
	err := withConn(ctx, pool, func(conn *pgxpool.Conn) error {
		return loadAndExecSQLFiles(ctx, conn, cfg, files, phase)
	})
	if err != nil {
		return fmt.Errorf("%s hooks: %w", phase, err)
	}
	return nil
}

type schemaExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func prepareTargetSchema(ctx context.Context, exec schemaExecutor, schema, onSchemaExists string) error {
	switch onSchemaExists {
	case "recreate":
		if _, err := exec.Exec(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", pgIdent(schema))); err != nil {
			return fmt.Errorf("drop schema: %w", err)
		}
		if _, err := exec.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", pgIdent(schema))); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	case "error":
		var exists bool
		if err := exec.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM pg_namespace WHERE nspname = $1)", schema).Scan(&exists); err != nil {
			return fmt.Errorf("check schema existence: %w", err)
		}
		if exists {
			return fmt.Errorf("schema %q already exists in target database (on_schema_exists=error)", schema)
		}
		if _, err := exec.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", pgIdent(schema))); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	case "reuse":
		// Existing tables are skipped by createTables.
		if _, err := exec.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgIdent(schema))); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	default:
		return fmt.Errorf("unsupported on_schema_exists value %q", onSchemaExists)
	}
	return nil
}
