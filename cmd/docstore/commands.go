package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/likearthian/docstore"
	"github.com/likearthian/docstore/query"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"
)

type rootOptions struct {
	configFile string
	envPrefix  string
}

type paramOptions struct {
	args   []string
	params []string
	fields []string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "docstore",
		Short:         "Translate document queries and inspect MongoDB collections",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "configuration file")
	cmd.PersistentFlags().StringVar(&opts.envPrefix, "env-prefix", "DOCSTORE", "environment variable prefix")

	cmd.AddCommand(
		newTranslateCommand(),
		newPingCommand(opts),
		newCountCommand(opts),
	)
	return cmd
}

func (p *paramOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&p.args, "arg", nil, "positional parameter value, repeat in order (?1, ?2, ...)")
	cmd.Flags().StringArrayVar(&p.params, "param", nil, "named parameter as name=value (:name)")
	cmd.Flags().StringArrayVar(&p.fields, "field", nil, "field mapping as logical=stored")
}

// bind turns flag values into query parameters. Values are parsed as document
// literals, so 30 is an int, '30' a string; anything unparsable is taken verbatim.
func (p *paramOptions) bind() (query.Params, error) {
	if len(p.args) > 0 && len(p.params) > 0 {
		return nil, errors.New("--arg and --param cannot be combined")
	}

	if len(p.params) > 0 {
		named := query.Parameters{}
		for _, kv := range p.params {
			name, value, ok := strings.Cut(kv, "=")
			if !ok || name == "" {
				return nil, fmt.Errorf("invalid --param %q, expected name=value", kv)
			}
			named = named.And(name, parseFlagValue(value))
		}
		return named, nil
	}

	if len(p.args) > 0 {
		return query.Args(docstore.Map(p.args, parseFlagValue)), nil
	}

	return nil, nil
}

func (p *paramOptions) fieldMap() (query.FieldMapper, error) {
	if len(p.fields) == 0 {
		return nil, nil
	}

	fields := query.FieldMap{}
	for _, kv := range p.fields {
		logical, stored, ok := strings.Cut(kv, "=")
		if !ok || logical == "" || stored == "" {
			return nil, fmt.Errorf("invalid --field %q, expected logical=stored", kv)
		}
		fields[logical] = stored
	}
	return fields, nil
}

func parseFlagValue(value string) any {
	v, err := query.ParseValue(value)
	if err != nil {
		return value
	}
	return v
}

func newTranslateCommand() *cobra.Command {
	params := &paramOptions{}
	var update bool

	cmd := &cobra.Command{
		Use:   "translate TEMPLATE",
		Short: "Bind parameters into a filter or update template and print the document",
		Example: `  docstore translate "name = :n and age > :a" --param n="'Ada'" --param a=30
  docstore translate "{'status': ?1}" --arg active
  docstore translate --update "name = ?1" --arg Ada`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bound, err := params.bind()
			if err != nil {
				return err
			}
			fields, err := params.fieldMap()
			if err != nil {
				return err
			}

			translate := query.TranslateFilter
			if update {
				translate = query.TranslateUpdate
			}

			doc, err := translate(args[0], bound, fields)
			if err != nil {
				return err
			}

			out, err := bson.MarshalExtJSON(doc, true, false)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", query.DetectDialect(args[0]), out)
			return nil
		},
	}
	params.register(cmd)
	cmd.Flags().BoolVar(&update, "update", false, "translate an update instead of a filter")
	return cmd
}

func newPingCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Connect to every configured client and ping it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), opts, func(ctx context.Context, s *docstore.Store) error {
				if err := s.Ping(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok: %s\n", strings.Join(s.ClientNames(), ", "))
				return nil
			})
		},
	}
}

func newCountCommand(opts *rootOptions) *cobra.Command {
	params := &paramOptions{}
	var collection, database, client string

	cmd := &cobra.Command{
		Use:   "count [FILTER]",
		Short: "Count documents of a collection matching an optional filter template",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bound, err := params.bind()
			if err != nil {
				return err
			}
			fields, err := params.fieldMap()
			if err != nil {
				return err
			}

			filter := bson.D{}
			if len(args) == 1 {
				filter, err = query.TranslateFilter(args[0], bound, fields)
				if err != nil {
					return err
				}
			}

			return withStore(cmd.Context(), opts, func(ctx context.Context, s *docstore.Store) error {
				coll, err := s.Collection(&docstore.Entity{
					Collection: collection,
					Database:   database,
					Client:     client,
				})
				if err != nil {
					return err
				}

				n, err := coll.CountDocuments(ctx, filter)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", coll.Name(), n)
				return nil
			})
		},
	}
	params.register(cmd)
	cmd.Flags().StringVar(&collection, "collection", "", "collection name")
	cmd.Flags().StringVar(&database, "database", "", "database name, defaults to the client's database")
	cmd.Flags().StringVar(&client, "client", docstore.DefaultClient, "configured client name")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}

func withStore(ctx context.Context, opts *rootOptions, fn func(context.Context, *docstore.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := docstore.LoadConfig(opts.configFile, opts.envPrefix)
	if err != nil {
		return err
	}

	logger, err := docstore.NewZapLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	s, err := docstore.Connect(ctx, cfg.MongoDB, nil, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Close(closeCtx); err != nil {
			logger.Warn("failed to close store", "error", err)
		}
	}()

	return fn(ctx, s)
}
