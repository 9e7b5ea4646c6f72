package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/cuemby/monarch"
	"github.com/cuemby/monarch/internal/adapter"
	"github.com/cuemby/monarch/internal/collection"
	"github.com/cuemby/monarch/internal/config"
	"github.com/cuemby/monarch/internal/monerr"
	"github.com/cuemby/monarch/internal/query"
	"github.com/cuemby/monarch/internal/record"
)

// stateAdapter returns the file adapter the single-blob CLI persistence
// mode uses for the data directory (spec.md §6 "Persistence adapter
// contract").
func stateAdapter(dir string) (adapter.Adapter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ioErr(fmt.Errorf("create data directory %s: %w", dir, err))
	}
	ad, err := adapter.NewFileAdapter(filepath.Join(dir, "state.blob"))
	if err != nil {
		return nil, usageErr("%v", err)
	}
	return ad, nil
}

// openLoaded opens a fresh in-memory Database and loads it from dir's
// state blob, ready for read or write.
func openLoaded(cmd *cobra.Command) (*monarch.Database, adapter.Adapter, error) {
	dir := dataPath(cmd)
	ad, err := stateAdapter(dir)
	if err != nil {
		return nil, nil, err
	}
	db, err := monarch.Open(monarch.Options{Config: config.Defaults(), Log: cmdLogger(cmd), Version: Version})
	if err != nil {
		return nil, nil, classifyErr(err)
	}
	if err := db.Load(context.Background(), ad); err != nil {
		db.Close()
		return nil, nil, classifyErr(err)
	}
	return db, ad, nil
}

// classifyErr maps an internal monerr.Error into the CLI's exit-code
// taxonomy (spec.md §6 exit codes 1/2/3).
func classifyErr(err error) error {
	var me *monerr.Error
	if !errors.As(err, &me) {
		return internalErr(err)
	}
	switch me.Kind {
	case monerr.KindValidation, monerr.KindNotFound, monerr.KindConflict, monerr.KindResourceLimit:
		return &exitError{code: 1, err: err}
	case monerr.KindIO:
		return &exitError{code: 2, err: err}
	default:
		return &exitError{code: 3, err: err}
	}
}

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Initialize a new data directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := dataPath(cmd)
		if len(args) == 1 {
			dir = args[0]
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return ioErr(fmt.Errorf("create data directory %s: %w", dir, err))
		}
		ad, err := adapter.NewFileAdapter(filepath.Join(dir, "state.blob"))
		if err != nil {
			return usageErr("%v", err)
		}
		db, err := monarch.Open(monarch.Options{Config: config.Defaults(), Log: cmdLogger(cmd), Version: Version})
		if err != nil {
			return classifyErr(err)
		}
		defer db.Close()
		if err := db.Save(context.Background(), ad); err != nil {
			return classifyErr(err)
		}
		fmt.Printf("Initialized empty monarch database at %s\n", dir)
		return nil
	},
}

var createCmd = &cobra.Command{
	Use:   "create <collection>",
	Short: "Create a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, ad, err := openLoaded(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		if _, err := db.AddCollection(args[0]); err != nil {
			return classifyErr(err)
		}
		if err := db.Save(context.Background(), ad); err != nil {
			return classifyErr(err)
		}
		fmt.Printf("Created collection: %s\n", args[0])
		return nil
	},
}

var insertCmd = &cobra.Command{
	Use:   "insert <collection> <file>",
	Short: "Insert records from a JSON file (object or array of objects)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := readRecordsFile(args[1])
		if err != nil {
			return err
		}

		db, ad, err := openLoaded(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		c, ok := db.Collection(args[0])
		if !ok {
			c, err = db.AddCollection(args[0])
			if err != nil {
				return classifyErr(err)
			}
		}
		ids, err := c.InsertMany(records)
		if err != nil {
			return classifyErr(err)
		}
		if err := db.Save(context.Background(), ad); err != nil {
			return classifyErr(err)
		}
		fmt.Printf("Inserted %d record(s): %s\n", len(ids), strings.Join(ids, ", "))
		return nil
	},
}

var batchInsertCmd = &cobra.Command{
	Use:   "batch-insert <collection> <files...>",
	Short: "Insert records from several JSON files",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var all []record.Record
		for _, file := range args[1:] {
			records, err := readRecordsFile(file)
			if err != nil {
				return err
			}
			all = append(all, records...)
		}

		db, ad, err := openLoaded(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		c, ok := db.Collection(args[0])
		if !ok {
			c, err = db.AddCollection(args[0])
			if err != nil {
				return classifyErr(err)
			}
		}
		ids, err := c.InsertMany(all)
		if err != nil {
			return classifyErr(err)
		}
		if err := db.Save(context.Background(), ad); err != nil {
			return classifyErr(err)
		}
		fmt.Printf("Inserted %d record(s) from %d file(s)\n", len(ids), len(args)-1)
		return nil
	},
}

func readRecordsFile(path string) ([]record.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ioErr(fmt.Errorf("read %s: %w", path, err))
	}
	var single record.Record
	if err := json.Unmarshal(data, &single); err == nil && len(single) > 0 {
		return []record.Record{single}, nil
	}
	var many []record.Record
	if err := json.Unmarshal(data, &many); err != nil {
		return nil, usageErr("parse %s: %v", path, err)
	}
	return many, nil
}

var queryCmd = &cobra.Command{
	Use:   "query <collection> [json]",
	Short: "Query a collection",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := query.Query{}
		if len(args) == 2 {
			if err := json.Unmarshal([]byte(args[1]), &q); err != nil {
				return usageErr("parse query: %v", err)
			}
		}
		sortFlag, _ := cmd.Flags().GetString("sort")
		limit, _ := cmd.Flags().GetInt("limit")
		fields, _ := cmd.Flags().GetString("fields")

		opts := collection.FindOptions{Limit: limit}
		if sortFlag != "" {
			for _, part := range strings.Split(sortFlag, ",") {
				desc := strings.HasPrefix(part, "-")
				opts.Sort = append(opts.Sort, collection.SortKey{Field: strings.TrimPrefix(part, "-"), Desc: desc})
			}
		}
		if fields != "" {
			opts.Projection = strings.Split(fields, ",")
		}

		db, _, err := openLoaded(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		c, ok := db.Collection(args[0])
		if !ok {
			return classifyErr(monerr.NotFound("collection %q does not exist", args[0]))
		}
		results := c.Find(q, opts)
		out, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return internalErr(err)
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	queryCmd.Flags().String("sort", "", "Comma-separated sort fields, prefix with - for descending")
	queryCmd.Flags().Int("limit", 0, "Maximum number of results")
	queryCmd.Flags().String("fields", "", "Comma-separated projection fields")
}

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List all collections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openLoaded(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		for _, name := range db.ListCollections() {
			fmt.Println(name)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show engine statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		detailed, _ := cmd.Flags().GetBool("detailed")

		db, _, err := openLoaded(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		st := db.GetStats()
		out, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return internalErr(err)
		}
		fmt.Println(string(out))

		if detailed {
			health := db.HealthCheck()
			healthOut, err := json.MarshalIndent(health, "", "  ")
			if err != nil {
				return internalErr(err)
			}
			fmt.Println(string(healthOut))
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().Bool("detailed", false, "Include health-check output")
}
