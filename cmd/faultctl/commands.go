package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
	"github.com/kirillkom/plc-fault-explainer/internal/core/ports"
)

type services struct {
	Explainer ports.FaultExplainer
	Ingestor  ports.FileIngestor
	Index     ports.IndexMaintainer
	// Queued means uploads are handed to a worker instead of processed here.
	Queued bool
}

type loader func(ctx context.Context) (*services, func(), error)

type cli struct {
	load    loader
	svc     *services
	closeFn func()
}

// newRootCmd builds the command tree. Services are loaded on first use so help and
// completion work without backends; the returned func releases them.
func newRootCmd(load loader) (*cobra.Command, func()) {
	c := &cli{load: load}
	root := &cobra.Command{
		Use:          "faultctl",
		Short:        "PLC fault explainer operator tool",
		SilenceUsage: true,
	}
	root.AddCommand(
		c.queryCmd(),
		c.ingestCmd("ingest-logs", "Store and index PLC log exports (CSV or JSON)", domain.IngestLog),
		c.ingestCmd("ingest-manuals", "Store and index fault-code manuals (YAML)", domain.IngestManual),
		c.ingestKBCmd(),
		c.reindexCmd(),
		c.clearCmd(),
	)
	return root, c.close
}

func (c *cli) services(ctx context.Context) (*services, error) {
	if c.svc != nil {
		return c.svc, nil
	}
	svc, closeFn, err := c.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	c.svc, c.closeFn = svc, closeFn
	return svc, nil
}

func (c *cli) close() {
	if c.closeFn != nil {
		c.closeFn()
		c.closeFn = nil
	}
}

func (c *cli) queryCmd() *cobra.Command {
	var (
		topK   int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Explain a fault from the indexed evidence",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.services(cmd.Context())
			if err != nil {
				return err
			}
			result, err := svc.Explainer.Explain(cmd.Context(), strings.Join(args, " "), topK)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			printResult(out, result)
			return nil
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "evidence chunks to use (0 uses RAG_TOP_K)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func (c *cli) ingestCmd(use, short string, kind domain.IngestKind) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <file>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.services(cmd.Context())
			if err != nil {
				return err
			}
			var failed int
			for _, p := range args {
				if err := ingestFile(cmd, svc, kind, p); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", p, err)
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
}

func ingestFile(cmd *cobra.Command, svc *services, kind domain.IngestKind, p string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()

	ctx := cmd.Context()
	job, err := svc.Ingestor.Upload(ctx, kind, filepath.Base(p), f)
	if err != nil {
		return err
	}
	if svc.Queued {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: queued as job %s\n", job.Filename, job.ID)
		return nil
	}
	report, err := svc.Ingestor.ProcessStored(ctx, kind, job.Filename)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", job.Filename, report.Message)
	return nil
}

func (c *cli) ingestKBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest-kb <dir>",
		Short: "Index every supported document below a directory as one batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.services(cmd.Context())
			if err != nil {
				return err
			}
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			report, err := svc.Ingestor.ProcessDirectory(cmd.Context(), dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d skipped)\n", report.Message, report.Skipped)
			return nil
		},
	}
}

func (c *cli) reindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the sparse index from the document store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.services(cmd.Context())
			if err != nil {
				return err
			}
			count, err := svc.Index.Rebuild(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunks\n", count)
			return nil
		},
	}
}

func (c *cli) clearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored chunk and vector",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to clear without --yes")
			}
			svc, err := c.services(cmd.Context())
			if err != nil {
				return err
			}
			if err := svc.Index.ClearAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Index cleared")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

func printResult(w io.Writer, result *domain.QueryResult) {
	d := result.Structured
	fmt.Fprintf(w, "Summary:     %s\n", d.Summary)
	fmt.Fprintf(w, "Evidence:    %s\n", d.Evidence)
	fmt.Fprintf(w, "Root cause:  %s\n", d.RootCause)
	fmt.Fprintf(w, "Actions:     %s\n", d.Actions)
	fmt.Fprintf(w, "Confidence:  %s\n", d.Confidence)
	fmt.Fprintf(w, "\nretrieval=%s parse=%s sources=%d\n", result.RetrievalMode, result.ParseTier, len(result.Sources))
	for _, src := range result.Sources {
		fmt.Fprintf(w, "  #%d %.4f %s\n", src.Rank, src.Score, src.Metadata.Source())
	}
}
