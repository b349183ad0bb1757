package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"invoicematch/internal/catalog"
	"invoicematch/internal/config"
	"invoicematch/internal/index"
	"invoicematch/internal/logging"
	"invoicematch/internal/matching"
	"invoicematch/internal/storage"
)

type app struct {
	configPath string
	asJSON     bool
	cfg        config.Config
	log        *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Maintain the product catalog and its match index",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			a.cfg, a.log = cfg, log
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", os.Getenv("INVOICEMATCH_CONFIG"), "YAML config file")
	root.PersistentFlags().BoolVar(&a.asJSON, "json", false, "print JSON output")

	root.AddCommand(a.refreshCmd(), a.indexCmd(), a.classifyCmd(), a.evaluateCmd())
	return root
}

// backend is the storage a refresh or index rebuild writes through.
type backend struct {
	db       *storage.DB
	rdb      *redis.Client
	catalog  *storage.CatalogRepo
	provider *index.Provider
}

func (a *app) openBackend(ctx context.Context) (*backend, error) {
	dbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(dbCtx, a.cfg.Postgres.URL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(dbCtx); err != nil {
		db.Close()
		return nil, err
	}
	rdb := redis.NewClient(&redis.Options{Addr: a.cfg.Redis.Addr, Password: a.cfg.Redis.Password, DB: a.cfg.Redis.DB})
	repo := storage.NewCatalogRepo(db)
	return &backend{
		db:      db,
		rdb:     rdb,
		catalog: repo,
		provider: index.NewProvider(repo, a.log,
			index.NewRedisStore(rdb, a.cfg.Catalog.RedisKey, a.cfg.Redis.TTL),
			index.FileStore{Path: a.cfg.Catalog.SnapshotPath},
		),
	}, nil
}

func (b *backend) Close() {
	_ = b.rdb.Close()
	b.db.Close()
}

func (a *app) refreshCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Import source rows, rewrite the catalog and publish a new index snapshot",
		Long: "Reads product master rows from the catalog_source_rows table, or from a JSON\n" +
			"export with --file, canonicalizes them and replaces the stored catalog.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			b, err := a.openBackend(ctx)
			if err != nil {
				return err
			}
			defer b.Close()

			var source catalog.Source = b.catalog
			if file != "" {
				source = catalog.FileSource{Path: file}
			}
			res, err := catalog.NewRefresher(source, b.catalog, b.provider, a.cfg.Catalog.CSVPath, a.log).Run(ctx)
			if err != nil {
				return err
			}
			if a.asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "read %d, imported %d, skipped %d\n", res.Read, res.Imported, res.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSON export to import instead of catalog_source_rows")
	return cmd
}

func (a *app) indexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Rebuild the index snapshot from the stored catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := a.openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()
			snap, err := b.provider.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			if a.asJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"entries": snap.Len(), "path": a.cfg.Catalog.SnapshotPath})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d entries into %s\n", snap.Len(), a.cfg.Catalog.SnapshotPath)
			return nil
		},
	}
}

// snapshotFlags choose where classify and evaluate read the index from.
type snapshotFlags struct {
	csv      string
	snapshot string
}

func (f *snapshotFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.csv, "catalog-csv", "", "build the index from a matnr;verketten CSV")
	cmd.Flags().StringVar(&f.snapshot, "snapshot", "", "index snapshot file (default catalog.snapshot_path)")
}

func (a *app) loadSnapshot(ctx context.Context, f snapshotFlags) (*index.Snapshot, error) {
	if f.csv != "" {
		fh, err := os.Open(f.csv)
		if err != nil {
			return nil, err
		}
		defer fh.Close()
		entries, err := catalog.DecodeCSV(fh)
		if err != nil {
			return nil, err
		}
		return index.Build(entries), nil
	}
	path := f.snapshot
	if path == "" {
		path = a.cfg.Catalog.SnapshotPath
	}
	snap, err := index.FileStore{Path: path}.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w (run catalogctl index or pass --catalog-csv)", err)
	}
	return snap, nil
}

func (a *app) classifyCmd() *cobra.Command {
	var flags snapshotFlags
	cmd := &cobra.Command{
		Use:   "classify <description>",
		Short: "Classify one line item description and show its signals",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.loadSnapshot(cmd.Context(), flags)
			if err != nil {
				return err
			}
			cfg := a.cfg.Matching.Engine()
			out := matching.Match(snap, strings.Join(args, " "), cfg)
			if a.asJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"outcome": out, "valid": out.Valid(cfg)})
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "catalog_id\t%s\n", out.CatalogID)
			fmt.Fprintf(tw, "confidence\t%.4f\n", out.Confidence)
			fmt.Fprintf(tw, "valid\t%t\n", out.Valid(cfg))
			fmt.Fprintf(tw, "matched_text\t%s\n", out.MatchedText)
			s := out.Signals
			fmt.Fprintf(tw, "signals\ttoken=%.3f jaccard=%.3f dice=%.3f cosine=%.3f levenshtein=%.3f\n",
				s.Token, s.Jaccard, s.Dice, s.Cosine, s.Levenshtein)
			return tw.Flush()
		},
	}
	flags.bind(cmd)
	return cmd
}

func (a *app) evaluateCmd() *cobra.Command {
	var flags snapshotFlags
	cmd := &cobra.Command{
		Use:   "evaluate <labeled.csv>",
		Short: "Measure accuracy against query;expected_id rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.loadSnapshot(cmd.Context(), flags)
			if err != nil {
				return err
			}
			fh, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer fh.Close()
			queries, err := matching.ReadLabeledQueries(fh)
			if err != nil {
				return err
			}
			ev := matching.Evaluate(snap, queries, a.cfg.Matching.Engine())
			if a.asJSON {
				return writeJSON(cmd.OutOrStdout(), ev)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "total %d  correct %d  accuracy %.3f  none rate %.3f\n", ev.Total, ev.Correct, ev.Accuracy, ev.NoneRate)
			if len(ev.Mismatches) == 0 {
				return nil
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "QUERY\tEXPECTED\tPREDICTED\tCONFIDENCE")
			for _, m := range ev.Mismatches {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f\n", m.Query, m.ExpectedID, m.Predicted, m.Confidence)
			}
			return tw.Flush()
		},
	}
	flags.bind(cmd)
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
