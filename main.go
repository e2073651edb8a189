package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stevemurr/zeno/config"
	"github.com/stevemurr/zeno/query"
	"github.com/stevemurr/zeno/store"
	"github.com/stevemurr/zeno/zeno"
)

var (
	configPath string
	table      string
	backend    string
	dataDir    string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "zeno",
		Short:        "Embedded JSON document store",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&table, "table", "", "table name (overrides config)")
	root.PersistentFlags().StringVar(&backend, "backend", "", "storage backend: memory, json, sqlite, bolt")
	root.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory for durable backends")

	root.AddCommand(
		&cobra.Command{
			Use:   "insert <json>",
			Short: "Insert a document and print its position",
			Args:  cobra.ExactArgs(1),
			RunE: withDB(func(cmd *cobra.Command, db *zeno.Zeno, args []string) error {
				var doc any
				if err := json.Unmarshal([]byte(args[0]), &doc); err != nil {
					return fmt.Errorf("invalid document JSON: %w", err)
				}
				pos, err := db.Insert(doc)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{"position": pos})
			}),
		},
		&cobra.Command{
			Use:   "find <query-json>",
			Short: "Print documents matching a query",
			Args:  cobra.ExactArgs(1),
			RunE: withDB(func(cmd *cobra.Command, db *zeno.Zeno, args []string) error {
				q, err := query.ParseJSON([]byte(args[0]))
				if err != nil {
					return err
				}
				docs, err := db.Find(q)
				if err != nil {
					return err
				}
				return printJSON(cmd, docs)
			}),
		},
		&cobra.Command{
			Use:   "all",
			Short: "Print every document",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, db *zeno.Zeno, _ []string) error {
				docs, err := db.All()
				if err != nil {
					return err
				}
				return printJSON(cmd, docs)
			}),
		},
		&cobra.Command{
			Use:   "get <position>",
			Short: "Print the document at a position",
			Args:  cobra.ExactArgs(1),
			RunE: withDB(func(cmd *cobra.Command, db *zeno.Zeno, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid position %q: %w", args[0], err)
				}
				doc, ok, err := db.Get(store.Position(n))
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no document at position %d", n)
				}
				return printJSON(cmd, doc)
			}),
		},
		&cobra.Command{
			Use:   "delete <query-json>",
			Short: "Delete documents matching a query",
			Args:  cobra.ExactArgs(1),
			RunE: withDB(func(cmd *cobra.Command, db *zeno.Zeno, args []string) error {
				q, err := query.ParseJSON([]byte(args[0]))
				if err != nil {
					return err
				}
				n, err := db.Delete(q)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{"deleted": n})
			}),
		},
		&cobra.Command{
			Use:   "update <query-json> <fields-json>",
			Short: "Set top-level fields on documents matching a query",
			Args:  cobra.ExactArgs(2),
			RunE: withDB(func(cmd *cobra.Command, db *zeno.Zeno, args []string) error {
				q, err := query.ParseJSON([]byte(args[0]))
				if err != nil {
					return err
				}
				var fields any
				if err := json.Unmarshal([]byte(args[1]), &fields); err != nil {
					return fmt.Errorf("invalid fields JSON: %w", err)
				}
				n, err := db.Update(q, fields)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{"updated": n})
			}),
		},
		&cobra.Command{
			Use:   "truncate",
			Short: "Remove every document and reset positions",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, db *zeno.Zeno, _ []string) error {
				if err := db.Truncate(); err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{"truncated": db.Table()})
			}),
		},
		&cobra.Command{
			Use:   "demo",
			Short: "Insert a sample document and query it back",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, db *zeno.Zeno, _ []string) error {
				pos, err := db.Insert(map[string]any{"name": "mario", "age": 28, "info": map[string]any{"phone": 123}})
				if err != nil {
					return err
				}
				docs, err := db.Find(map[string]any{"name": "mario", "info": map[string]any{"phone": 123}})
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{"table": db.Table(), "position": pos, "found": docs})
			}),
		},
	)
	return root
}

// withDB opens the configured table for the duration of one command.
func withDB(fn func(cmd *cobra.Command, db *zeno.Zeno, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if table != "" {
			cfg.Table = table
		}
		if backend != "" {
			cfg.Backend = backend
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, err := cfg.Logger()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		db, err := zeno.Open(cfg.Options(logger))
		if err != nil {
			return err
		}
		defer db.Close()
		logger.Debug("Opened table",
			zap.String("table", cfg.Table),
			zap.String("backend", cfg.Backend),
			zap.String("dataDir", cfg.DataDir))

		return fn(cmd, db, args)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}
