// Package main implements landctl, a CLI that runs landrag's ingestion,
// selection and chat operations directly against the configured stores,
// without going through the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/landrag/internal/app"
	"github.com/fyrsmithlabs/landrag/internal/config"
	httpserver "github.com/fyrsmithlabs/landrag/internal/http"
	"github.com/fyrsmithlabs/landrag/internal/ingest"
	"github.com/fyrsmithlabs/landrag/internal/rag"
)

var version = "dev"

// errFailed marks an operation whose result was printed with an error status.
var errFailed = errors.New("operation failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, buildApp).ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// builder creates the application for one command invocation.
type builder func(ctx context.Context, configPath string) (*app.App, error)

func buildApp(ctx context.Context, configPath string) (*app.App, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, app.WithVersion(version))
}

type cli struct {
	out        io.Writer
	build      builder
	configPath string
	collection string
}

func newRootCmd(out io.Writer, build builder) *cobra.Command {
	c := &cli{out: out, build: build}

	root := &cobra.Command{
		Use:   "landctl",
		Short: "Ingest land plots and documents, and query them",
		Long: `landctl runs landrag operations in-process against the vector store
named in the configuration. Every command prints its result as JSON.

Examples:
  # Load a GeoJSON export into the default plot collection
  landctl ingest-plots plots.geojson

  # Upsert a PDF into a named collection
  landctl update-doc --collection regulations rules.pdf

  # Ask a question over the plots
  landctl ask "Which plots have electricity?"`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to YAML config file")
	root.PersistentFlags().StringVarP(&c.collection, "collection", "c", "", "target collection")

	root.AddCommand(
		c.plotsCmd("ingest-plots", "Replace a collection with the features of a GeoJSON file", false),
		c.plotsCmd("update-plots", "Upsert the features of a GeoJSON file into an existing collection", true),
		c.docCmd("ingest-doc", "Chunk and add a PDF to a collection", false),
		c.docCmd("update-doc", "Chunk and upsert a PDF into an existing collection", true),
		c.deleteCmd(),
		c.selectCmd(),
		c.getCmd(),
		c.askCmd(),
	)
	return root
}

// withApp builds the application, runs fn and releases it.
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	a, err := c.build(ctx, c.configPath)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))
	return fn(ctx, a)
}

func (c *cli) target(fallback string) string {
	if c.collection != "" {
		return c.collection
	}
	return fallback
}

func (c *cli) print(v any, ok bool) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	if !ok {
		return errFailed
	}
	return nil
}

func (c *cli) plotsCmd(use, short string, update bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <file.geojson>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				collection := c.target(httpserver.DefaultPlotCollection)
				var res ingest.GeoResult
				if update {
					res = a.Plots.UpdateFeatures(ctx, payload, collection)
				} else {
					res = a.Plots.IngestFeatures(ctx, payload, collection)
				}
				return c.print(res, res.OK())
			})
		},
	}
}

func (c *cli) docCmd(use, short string, update bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <file.pdf>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return fmt.Errorf("failed to stat %s: %w", args[0], err)
			}
			src := ingest.Source{Name: filepath.Base(args[0]), Reader: f, Size: info.Size()}

			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				collection := c.target(httpserver.DefaultDocumentCollection)
				var res ingest.DocumentResult
				if update {
					res = a.Documents.UpdateDocument(ctx, src, collection)
				} else {
					res = a.Documents.IngestDocument(ctx, src, collection)
				}
				return c.print(res, res.OK())
			})
		},
	}
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Delete the collection given by --collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.collection == "" {
				return errors.New("--collection is required")
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res := a.Collections.Delete(ctx, c.collection)
				return c.print(res, res.OK())
			})
		},
	}
}

func (c *cli) selectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select <field> <value>",
		Short: "List points whose payload field equals value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res := a.Collections.SelectByValue(ctx, c.target(httpserver.DefaultPlotCollection), args[0], args[1])
				return c.print(res, res.OK())
			})
		},
	}
}

func (c *cli) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Fetch one point by numeric id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", args[0], err)
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res := a.Collections.GetPoint(ctx, c.target(httpserver.DefaultPlotCollection), id)
				return c.print(res, res.OK())
			})
		},
	}
}

func (c *cli) askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the collection's content",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				answer := a.Engine.Answer(ctx, c.target(httpserver.DefaultPlotCollection),
					[]rag.Message{{Role: "user", Content: question}})
				return c.print(answer, true)
			})
		},
	}
}
