package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/turingdb/turingdb/pkg/api"
	"github.com/turingdb/turingdb/pkg/client"
	"github.com/turingdb/turingdb/pkg/events"
	"github.com/turingdb/turingdb/pkg/log"
	"github.com/turingdb/turingdb/pkg/metrics"
	"github.com/turingdb/turingdb/pkg/protocol"
	"github.com/turingdb/turingdb/pkg/storage"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "turingdb",
	Short: "TuringDB - Networked document-oriented key/value database",
	Long: `TuringDB is a document-oriented key/value database. Databases hold
documents, documents hold timestamped fields, and everything persists
through an embedded bbolt key/value store under a single repository
directory. Clients speak a compact length-prefixed binary protocol
over a loopback TCP port.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"TuringDB version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("addr", api.DefaultAddr, "Server address for client commands")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(repoCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(documentCmd)
	rootCmd.AddCommand(fieldCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// Server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the TuringDB server",
	Long: `Run the TuringDB server: recover the repository from disk, then
serve the binary protocol until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		listen, _ := cmd.Flags().GetString("listen")
		repoDir, _ := cmd.Flags().GetString("repo-dir")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		metrics.SetVersion(Version)

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()

		engine, err := storage.New(repoDir, broker)
		if err != nil {
			return err
		}
		defer engine.Close()

		journal := events.NewJournal(engine.Root(), broker)
		defer journal.Close()

		if err := engine.RepoInit(); err != nil {
			return fmt.Errorf("repository recovery failed: %w", err)
		}
		metrics.RegisterComponent("storage", true, "repository at "+engine.Root())

		if metricsAddr != "" {
			go func() {
				if err := metrics.Serve(metricsAddr); err != nil {
					log.Errorf("metrics endpoint failed", err)
				}
			}()
		}

		srv := api.NewServer(engine)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigCh
			log.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
			srv.Stop()
		}()

		return srv.Start(listen)
	},
}

// Repo commands
var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage the repository",
}

var repoCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *client.Client) (*protocol.Result, error) {
			return c.RepoCreate()
		})
	},
}

var repoDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Drop the repository and everything in it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *client.Client) (*protocol.Result, error) {
			return c.RepoDrop()
		})
	},
}

// Database commands
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage databases",
}

var dbCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *client.Client) (*protocol.Result, error) {
			return c.DbCreate(args[0])
		})
	},
}

var dbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List databases",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *client.Client) (*protocol.Result, error) {
			return c.DbList()
		})
	},
}

var dbDropCmd = &cobra.Command{
	Use:   "drop <name>",
	Short: "Drop a database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *client.Client) (*protocol.Result, error) {
			return c.DbDrop(args[0])
		})
	},
}

// Document commands
var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage documents",
}

var documentCreateCmd = &cobra.Command{
	Use:   "create <db> <name>",
	Short: "Create a document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *client.Client) (*protocol.Result, error) {
			return c.DocumentCreate(args[0], args[1])
		})
	},
}

var documentListCmd = &cobra.Command{
	Use:   "list <db>",
	Short: "List documents in a database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *client.Client) (*protocol.Result, error) {
			return c.DocumentList(args[0])
		})
	},
}

var documentDropCmd = &cobra.Command{
	Use:   "drop <db> <name>",
	Short: "Drop a document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *client.Client) (*protocol.Result, error) {
			return c.DocumentDrop(args[0], args[1])
		})
	},
}

// Field commands
var fieldCmd = &cobra.Command{
	Use:   "field",
	Short: "Manage fields",
}

var fieldInsertCmd = &cobra.Command{
	Use:   "insert <db> <document> <key> <value>",
	Short: "Insert a field",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *client.Client) (*protocol.Result, error) {
			return c.FieldInsert(args[0], args[1], args[2], []byte(args[3]))
		})
	},
}

var fieldGetCmd = &cobra.Command{
	Use:   "get <db> <document> <key>",
	Short: "Read a field",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *client.Client) (*protocol.Result, error) {
			return c.FieldGet(args[0], args[1], args[2])
		})
	},
}

var fieldModifyCmd = &cobra.Command{
	Use:   "modify <db> <document> <key> <value>",
	Short: "Replace a field's value",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *client.Client) (*protocol.Result, error) {
			return c.FieldModify(args[0], args[1], args[2], []byte(args[3]))
		})
	},
}

var fieldRemoveCmd = &cobra.Command{
	Use:   "remove <db> <document> <key>",
	Short: "Remove a field",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *client.Client) (*protocol.Result, error) {
			return c.FieldRemove(args[0], args[1], args[2])
		})
	},
}

var fieldListCmd = &cobra.Command{
	Use:   "list <db> <document>",
	Short: "List the field keys of a document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *client.Client) (*protocol.Result, error) {
			return c.FieldList(args[0], args[1])
		})
	},
}

func init() {
	serverCmd.Flags().String("listen", api.DefaultAddr, "Address to listen on")
	serverCmd.Flags().String("repo-dir", "", "Repository directory (default ~/"+storage.RepoDirName+")")
	serverCmd.Flags().String("metrics-addr", "", "Address for /metrics and /healthz (disabled if empty)")

	repoCmd.AddCommand(repoCreateCmd)
	repoCmd.AddCommand(repoDropCmd)
	dbCmd.AddCommand(dbCreateCmd)
	dbCmd.AddCommand(dbListCmd)
	dbCmd.AddCommand(dbDropCmd)
	documentCmd.AddCommand(documentCreateCmd)
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentDropCmd)
	fieldCmd.AddCommand(fieldInsertCmd)
	fieldCmd.AddCommand(fieldGetCmd)
	fieldCmd.AddCommand(fieldModifyCmd)
	fieldCmd.AddCommand(fieldRemoveCmd)
	fieldCmd.AddCommand(fieldListCmd)
}

// withClient dials the configured server, runs one operation, and prints
// the outcome.
func withClient(op func(*client.Client) (*protocol.Result, error)) error {
	addr, _ := rootCmd.PersistentFlags().GetString("addr")

	c, err := client.Connect(addr)
	if err != nil {
		return err
	}
	defer c.Close()

	res, err := op(c)
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

func printResult(res *protocol.Result) {
	switch res.Kind {
	case protocol.DbListed, protocol.DocumentListed:
		for _, name := range res.Names {
			fmt.Println(name)
		}
	case protocol.FieldListed:
		for _, key := range res.Fields {
			fmt.Println(string(key))
		}
	case protocol.FieldContents:
		os.Stdout.Write(res.Data)
		fmt.Println()
	case protocol.EncounteredErrors:
		fmt.Println(res.Message)
	default:
		fmt.Println(res.Kind.String())
	}
}
