package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"blobbench/internal/app"
	"blobbench/internal/bench"
	"blobbench/pkg/storage"
)

func newUploadCmd(opts *rootOptions) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file to both stores and compare the write latency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if name == "" {
				name = filepath.Base(args[0])
			}

			return opts.withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				f := bench.NewFile(name, data, mime.TypeByExtension(filepath.Ext(name)))
				res, err := a.Bench.RunUpload(ctx, f)
				if err != nil {
					return err
				}
				return printResult(out, res)
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "store under this name instead of the file's base name")
	return cmd
}

func newDownloadCmd(opts *rootOptions) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "download <name>",
		Short: "Read a file from both stores and compare the read latency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				res, err := a.Bench.RunDownload(ctx, args[0])
				if err != nil {
					return err
				}
				if err := printResult(out, res); err != nil {
					return err
				}
				if outDir == "" {
					return nil
				}
				return savePayloads(out, outDir, res)
			})
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "", "write each store's copy of the payload into this directory")
	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove every relational row and the object with this name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				report, err := a.Bench.DeleteByName(ctx, args[0])
				if err != nil {
					return err
				}

				fmt.Fprintf(out, "deleted %d relational row(s) named %q\n", report.RowsDeleted, report.Name)
				switch {
				case report.ObjectDeleted:
					fmt.Fprintln(out, "object removed")
				case errors.Is(report.ObjectErr, storage.ErrObjectNotFound):
					fmt.Fprintln(out, "no object with that key")
				default:
					fmt.Fprintf(out, "object delete failed: %v\n", report.ObjectErr)
				}
				return nil
			})
		},
	}
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every name held by either store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				names, err := a.Bench.ListAvailable(ctx)
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(out, name)
				}
				return nil
			})
		},
	}
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search [substring]",
		Short: "Search relational rows by name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}

			return opts.withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				records, err := a.Bench.SearchByName(ctx, query)
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tSIZE")
				for _, rec := range records {
					fmt.Fprintf(tw, "%d\t%s\t%s\n", rec.ID, rec.Name, humanize.IBytes(uint64(rec.Size)))
				}
				return tw.Flush()
			})
		},
	}
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify both stores are reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App, out io.Writer) error {
				if err := a.Table.Ping(ctx); err != nil {
					return fmt.Errorf("relational store: %w", err)
				}
				names, err := a.Table.Names(ctx)
				if err != nil {
					return fmt.Errorf("relational store: %w", err)
				}
				fmt.Fprintf(out, "relational store ok: %s, %d name(s)\n", a.Table.Driver(), len(names))

				keys, err := a.Objects.List(ctx)
				if err != nil {
					return fmt.Errorf("object store: %w", err)
				}
				fmt.Fprintf(out, "object store ok: %s, %d object(s)\n", a.Config.ObjectStore.Driver, len(keys))
				return nil
			})
		},
	}
}

func printResult(out io.Writer, res bench.Result) error {
	fmt.Fprintf(out, "%s %s (%s) run %s\n", res.Operation, res.Name, humanize.IBytes(uint64(res.Size)), res.RunID)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, m := range []bench.Measurement{res.Object, res.Relational} {
		if m.Err != nil {
			cause := m.Err.Error()
			var relErr *bench.RelationalStoreError
			if errors.As(m.Err, &relErr) {
				cause = relErr.Cause()
			}
			fmt.Fprintf(tw, "  %s\tfailed\t%s\n", m.Backend, cause)
			continue
		}
		fmt.Fprintf(tw, "  %s\t%.4fs\t\n", m.Backend, m.Elapsed.Seconds())
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	ratio := "n/a"
	if r, ok := res.Ratio(); ok {
		ratio = fmt.Sprintf("%.1fx", r)
	}
	_, err := fmt.Fprintf(out, "winner: %s (%s)\n", res.Winner(), ratio)
	return err
}

func savePayloads(out io.Writer, dir string, res bench.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	base := filepath.Base(res.Name)
	copies := map[string][]byte{"object": res.Object.Payload}
	if !res.RelationalFailed() {
		copies["relational"] = res.Relational.Payload
	}

	for backend, payload := range copies {
		path := filepath.Join(dir, backend+"-"+base)
		if err := os.WriteFile(path, payload, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(out, "saved %s\n", path)
	}
	return nil
}
