package main

import (
	"fmt"
	"io"
	"os"
	"path"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/simiotics/sqlcli/catalog"
	"github.com/simiotics/sqlcli/database"
	"github.com/simiotics/sqlcli/internal"
	"github.com/simiotics/sqlcli/records"
	"github.com/simiotics/sqlcli/scanner"
	"github.com/simiotics/sqlcli/state"
	"github.com/simiotics/sqlcli/utils"
)

// Version denotes the current version of the sqlcli tool and library
var Version = "0.1.0"

// ErrNoQuery - query run was given neither --sql nor --file
var ErrNoQuery = errors.New("Specify a query with --sql or a query file with --file")

// defaultAppDir is <user config dir>/sqlcli, or .sqlcli when there is no user config dir.
func defaultAppDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil || configDir == "" {
		return ".sqlcli"
	}
	return path.Join(configDir, "sqlcli")
}

// sqlcliCommand builds the sqlcli command tree. Results are written to stdout, logs and prompts
// to stderr.
func sqlcliCommand(stdin *os.File, stdout, stderr io.Writer) *cobra.Command {
	var appDir, sqlQuery, queryFile, format, schemaName, tableName, sourceName string
	var showVersion, askPassword bool

	var cfg *internal.Config
	var log *logrus.Logger

	render := func(header []string, rows []*records.Record) error {
		if format == "" {
			format = cfg.Format
		}
		return internal.Render(stdout, format, header, rows)
	}

	openCatalog := func() (*catalog.Catalog, error) {
		return internal.OpenCatalog(appDir, cfg, log)
	}

	sqlcliCmd := &cobra.Command{
		Use:              "sqlcli",
		Short:            "Query databases and browse their metadata",
		Long:             "sqlcli runs SQL against databases given by URL and keeps a local catalog of their schemata, tables and columns.",
		TraverseChildren: true,
		SilenceUsage:     true,
		SilenceErrors:    true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = internal.LoadConfig(appDir)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("appdir") && cfg.AppDir != "" {
				appDir = cfg.AppDir
			}

			log = internal.GenerateLogger(cfg.LogLevel)
			log.SetOutput(stderr)
			utils.Logger().SetOutput(stderr)

			logger := log.WithField("appDir", appDir)
			logger.Debug("Creating application directory")
			if err := os.MkdirAll(appDir, 0755); err != nil {
				logger.WithField("error", err).Error("Could not create application directory")
				return err
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintln(stdout, Version)
				return nil
			}
			return cmd.Help()
		},
	}

	sqlcliCmd.SetOut(stdout)
	sqlcliCmd.SetErr(stderr)
	sqlcliCmd.PersistentFlags().StringVarP(&appDir, "appdir", "A", defaultAppDir(), "Path to sqlcli application directory")
	sqlcliCmd.Flags().BoolVar(&showVersion, "version", false, "Print the sqlcli version and exit")

	// sqlcli version
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "sqlcli version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(stdout, Version)
		},
	}

	// sqlcli completion
	completionCmd := &cobra.Command{
		Use:   "completion",
		Short: "Generate shell completions for the sqlcli command (for supported shells)",
	}

	bashCompletionCmd := &cobra.Command{
		Use:   "bash",
		Short: "bash completion for sqlcli",
		Long: `bash completion for sqlcli

If you are using bash and want command completion for the sqlcli CLI, run (omitting the $):
	$ . <(sqlcli completion bash)
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sqlcliCmd.GenBashCompletion(stdout)
		},
	}

	completionCmd.AddCommand(bashCompletionCmd)

	// sqlcli state
	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Interact with the sqlcli catalog database",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initializes the catalog database in the application directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.WithField("appDir", appDir)
			logger.Info("Initializing catalog")
			if cfg.Catalog.URI != "" {
				cat, err := openCatalog()
				if err != nil {
					return err
				}
				defer cat.Close()
				fmt.Fprintln(stdout, cat.URI)
				return nil
			}
			dbPath, err := state.Init(appDir)
			if err != nil {
				logger.WithField("error", err).Error("Initialization failed")
				return err
			}
			logger.Info("Done")
			fmt.Fprintln(stdout, dbPath)
			return nil
		},
	}

	stateCmd.AddCommand(initCmd)

	// sqlcli query
	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "Run SQL against a database",
	}

	runQueryCmd := &cobra.Command{
		Use:   "run [URL]",
		Short: "Executes a SQL query or a file of SQL",
		Long: `Executes a SQL query (--sql) or the contents of a file (--file) against the database at URL
and prints the resulting rows. Files ending in .gz are decompressed. If URL is omitted, the
configured database_url or the DATABASE_URL environment variable is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sqlQuery == "" && queryFile == "" {
				return ErrNoQuery
			}
			dbURL, err := internal.ResolveURL(args, cfg, askPassword, stdin, stderr)
			if err != nil {
				return err
			}

			db, err := database.Open(dbURL)
			if err != nil {
				return err
			}
			defer db.Close()
			logger := log.WithField("url", db.URL.Redacted())

			ctx := cmd.Context()
			var collection *records.Collection
			if sqlQuery != "" {
				collection, err = db.Execute(ctx, sqlQuery)
			} else {
				collection, err = db.QueryFile(ctx, queryFile)
			}
			if err != nil {
				logger.WithField("error", err).Error("Query failed")
				return err
			}
			defer collection.Close()

			if format == "" {
				format = cfg.Format
			}
			return internal.RenderCollection(stdout, format, collection)
		},
	}

	runQueryCmd.Flags().StringVar(&sqlQuery, "sql", "", "SQL to execute")
	runQueryCmd.Flags().StringVar(&queryFile, "file", "", "File of SQL to execute")
	runQueryCmd.Flags().BoolVar(&askPassword, "password", false, "Prompt for the database password")

	queryCmd.AddCommand(runQueryCmd)

	// sqlcli catalog
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse the metadata catalog",
		Long: `Browse the metadata catalog

The catalog records the schemata, tables and columns of every database sqlcli has scanned. The
list commands scan a database the first time they see its URL.
`,
	}

	scanCmd := &cobra.Command{
		Use:   "scan URL",
		Short: "Scans a database into the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := openCatalog()
			if err != nil {
				return err
			}
			defer cat.Close()

			ctx := cmd.Context()
			if err := scanner.ScanDatabase(ctx, cat, args[0]); err != nil {
				log.WithField("error", err).Error("Scan failed")
				return err
			}
			source, err := cat.GetSourceByURI(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, source.Name)
			return nil
		},
	}

	listSchemaCmd := &cobra.Command{
		Use:   "list-schema URL",
		Short: "Lists the schemata of a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := openCatalog()
			if err != nil {
				return err
			}
			defer cat.Close()

			schemata, err := scanner.GetSchemas(cmd.Context(), cat, args[0])
			if err != nil {
				return err
			}
			header := []string{"Schema"}
			rows := make([]*records.Record, len(schemata))
			for i, schema := range schemata {
				rows[i] = records.NewRecord(header, []interface{}{schema.Name})
			}
			return render(header, rows)
		},
	}

	listTablesCmd := &cobra.Command{
		Use:   "list-tables URL",
		Short: "Lists the tables of a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := openCatalog()
			if err != nil {
				return err
			}
			defer cat.Close()

			tables, err := scanner.GetTables(cmd.Context(), cat, args[0], schemaName)
			if err != nil {
				return err
			}
			header := []string{"Schema", "Table"}
			rows := make([]*records.Record, len(tables))
			for i, table := range tables {
				rows[i] = records.NewRecord(header, []interface{}{table.Schema.Name, table.Name})
			}
			return render(header, rows)
		},
	}

	listTablesCmd.Flags().StringVar(&schemaName, "schema", "", "Only list tables in this schema")

	listColumnsCmd := &cobra.Command{
		Use:   "list-columns URL",
		Short: "Lists the columns of a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := openCatalog()
			if err != nil {
				return err
			}
			defer cat.Close()

			columns, err := scanner.GetColumns(cmd.Context(), cat, args[0], schemaName, tableName)
			if err != nil {
				return err
			}
			return render(columnsTable(false, columns))
		},
	}

	listColumnsCmd.Flags().StringVar(&schemaName, "schema", "", "Only list columns in this schema")
	listColumnsCmd.Flags().StringVar(&tableName, "table", "", "Only list columns of this table")

	listSourcesCmd := &cobra.Command{
		Use:   "list-sources",
		Short: "Lists the databases in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := openCatalog()
			if err != nil {
				return err
			}
			defer cat.Close()

			sources, err := cat.GetSources(cmd.Context())
			if err != nil {
				return err
			}
			header := []string{"Source", "URI"}
			rows := make([]*records.Record, len(sources))
			for i, source := range sources {
				rows[i] = records.NewRecord(header, []interface{}{source.Name, source.URI})
			}
			return render(header, rows)
		},
	}

	searchTablesCmd := &cobra.Command{
		Use:   "search-tables PATTERN",
		Short: "Searches the catalog for tables",
		Long:  "Searches the catalog for tables whose names match PATTERN. Patterns use SQL LIKE syntax (% and _).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := openCatalog()
			if err != nil {
				return err
			}
			defer cat.Close()

			tables, err := cat.SearchTables(cmd.Context(), args[0], schemaName, sourceName)
			if err != nil {
				return err
			}
			header := []string{"Source", "Schema", "Table"}
			rows := make([]*records.Record, len(tables))
			for i, table := range tables {
				rows[i] = records.NewRecord(header, []interface{}{table.Schema.Source.Name, table.Schema.Name, table.Name})
			}
			return render(header, rows)
		},
	}

	searchTablesCmd.Flags().StringVar(&schemaName, "schema", "", "Pattern for schema names")
	searchTablesCmd.Flags().StringVar(&sourceName, "source", "", "Pattern for source names")

	searchColumnsCmd := &cobra.Command{
		Use:   "search-columns PATTERN",
		Short: "Searches the catalog for columns",
		Long:  "Searches the catalog for columns whose names match PATTERN. Patterns use SQL LIKE syntax (% and _).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := openCatalog()
			if err != nil {
				return err
			}
			defer cat.Close()

			columns, err := cat.SearchColumn(cmd.Context(), args[0], tableName, schemaName, sourceName)
			if err != nil {
				return err
			}
			return render(columnsTable(true, columns))
		},
	}

	searchColumnsCmd.Flags().StringVar(&tableName, "table", "", "Pattern for table names")
	searchColumnsCmd.Flags().StringVar(&schemaName, "schema", "", "Pattern for schema names")
	searchColumnsCmd.Flags().StringVar(&sourceName, "source", "", "Pattern for source names")

	removeSourceCmd := &cobra.Command{
		Use:   "remove-source NAME",
		Short: "Removes a database and everything recorded about it from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := openCatalog()
			if err != nil {
				return err
			}
			defer cat.Close()

			if err := cat.RemoveSource(cmd.Context(), args[0]); err != nil {
				log.WithFields(logrus.Fields{"source": args[0], "error": err}).Error("Could not remove source")
				return err
			}
			fmt.Fprintln(stdout, args[0])
			return nil
		},
	}

	for _, cmd := range []*cobra.Command{listSchemaCmd, listTablesCmd, listColumnsCmd, listSourcesCmd, searchTablesCmd, searchColumnsCmd} {
		cmd.Flags().StringVarP(&format, "format", "f", "", "Output format (table, csv, markdown or json)")
	}
	runQueryCmd.Flags().StringVarP(&format, "format", "f", "", "Output format (table, csv, markdown or json)")

	catalogCmd.AddCommand(scanCmd, listSchemaCmd, listTablesCmd, listColumnsCmd, listSourcesCmd, searchTablesCmd, searchColumnsCmd, removeSourceCmd)

	sqlcliCmd.AddCommand(versionCmd, completionCmd, stateCmd, queryCmd, catalogCmd)

	return sqlcliCmd
}

// columnsTable lays out columns for display, prefixed with their source when withSource is set.
func columnsTable(withSource bool, columns []catalog.Column) ([]string, []*records.Record) {
	header := []string{"Schema", "Table", "Column", "Data Type", "Sort Order"}
	if withSource {
		header = append([]string{"Source"}, header...)
	}
	rows := make([]*records.Record, len(columns))
	for i, column := range columns {
		values := []interface{}{column.Table.Schema.Name, column.Table.Name, column.Name, column.DataType, strconv.Itoa(column.SortOrder)}
		if withSource {
			values = append([]interface{}{column.Table.Schema.Source.Name}, values...)
		}
		rows[i] = records.NewRecord(header, values)
	}
	return header, rows
}

func main() {
	err := sqlcliCommand(os.Stdin, os.Stdout, os.Stderr).Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
