package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/entrhq/pagetrail/pkg/capture"
	"github.com/entrhq/pagetrail/pkg/llm"
	"github.com/entrhq/pagetrail/pkg/timeline"
	"github.com/entrhq/pagetrail/pkg/types"
	"github.com/spf13/cobra"
)

var (
	ingestTitle string
	ingestURL   string
	ingestBody  string
	ingestFile  string

	jsonOutput bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Record one page visit",
	Long: `Record one page visit and run any promotions it triggers.

The record comes from --url/--title/--body, or as JSON from --file
("-" reads stdin) with the fields title, url, bodyText and timestamp.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rec, err := ingestRecord(cmd.InOrStdin())
		if err != nil {
			return err
		}
		return recordAndReport(cmd, rec)
	},
}

var captureCmd = &cobra.Command{
	Use:   "capture URL [FILE]",
	Short: "Record a page from its HTML",
	Long:  "Extract the title and visible text from an HTML document (FILE or stdin) and record it as a visit to URL.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = cmd.InOrStdin()
		if len(args) == 2 {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}
		rec, err := capture.FromHTML(args[0], r, time.Now())
		if err != nil {
			return fmt.Errorf("failed to read page: %w", err)
		}
		return recordAndReport(cmd, rec)
	},
}

var levelCmd = &cobra.Command{
	Use:   "level N",
	Short: "Print the entries of level N (0-3), newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := strconv.Atoi(args[0])
		if err != nil || !types.ValidLevel(level) {
			return fmt.Errorf("level must be 0-%d, got %q", types.NumLevels-1, args[0])
		}

		a, err := newApp(daemonCfg)
		if err != nil {
			return err
		}
		defer a.Close()

		nodes, err := a.engine.GetLevel(cmd.Context(), level)
		if err != nil {
			return err
		}
		newestFirst := make([]types.Node, 0, len(nodes))
		for i := len(nodes) - 1; i >= 0; i-- {
			newestFirst = append(newestFirst, nodes[i])
		}
		return printNodes(cmd, newestFirst)
	},
}

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "Print the flat page history, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(daemonCfg)
		if err != nil {
			return err
		}
		defer a.Close()

		pages, err := a.engine.Pages(cmd.Context())
		if err != nil {
			return err
		}
		return printNodes(cmd, pages)
	},
}

var pagesDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a page from the history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(daemonCfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.engine.DeletePage(cmd.Context(), args[0]); err != nil {
			return err
		}
		cmd.Printf("deleted %s\n", args[0])
		return nil
	},
}

var pagesSummarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Summarize the whole page history in one request",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(daemonCfg)
		if err != nil {
			return err
		}
		defer a.Close()

		pages, err := a.engine.GetLevel(cmd.Context(), 0)
		if err != nil {
			return err
		}
		return writeActivitySummary(cmd.Context(), cmd.OutOrStdout(), a.summarizer, pages)
	},
}

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Browse the levels in a terminal UI",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(daemonCfg)
		if err != nil {
			return err
		}
		defer a.Close()
		return timeline.Run(a.engine)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "Page title")
	ingestCmd.Flags().StringVar(&ingestURL, "url", "", "Page URL")
	ingestCmd.Flags().StringVar(&ingestBody, "body", "", "Page text")
	ingestCmd.Flags().StringVarP(&ingestFile, "file", "f", "", "JSON page record, - for stdin")

	for _, c := range []*cobra.Command{levelCmd, pagesCmd} {
		c.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON")
	}
	pagesCmd.AddCommand(pagesDeleteCmd, pagesSummarizeCmd)
}

// writeActivitySummary prints one summary of pages, oldest first.
func writeActivitySummary(ctx context.Context, w io.Writer, s llm.ActivitySummarizer, pages []types.Node) error {
	text, err := llm.SummarizeHistory(ctx, s, pages)
	if errors.Is(err, llm.ErrNoPages) {
		text = llm.NoPagesToSummarize
	} else if err != nil {
		return fmt.Errorf("failed to summarize pages: %w", err)
	}
	_, err = fmt.Fprintln(w, text)
	return err
}

// ingestRecord builds the record from --file or the field flags.
func ingestRecord(stdin io.Reader) (types.PageRecord, error) {
	var rec types.PageRecord
	if ingestFile != "" {
		r := stdin
		if ingestFile != "-" {
			f, err := os.Open(ingestFile)
			if err != nil {
				return rec, err
			}
			defer f.Close()
			r = f
		}
		if err := json.NewDecoder(r).Decode(&rec); err != nil {
			return rec, fmt.Errorf("invalid page record: %w", err)
		}
	} else {
		rec = types.PageRecord{Title: ingestTitle, URL: ingestURL, BodyText: ingestBody}
	}

	if rec.URL == "" {
		return rec, fmt.Errorf("a url is required")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	return rec, nil
}

// recordAndReport ingests through the engine and waits for promotions, so
// the command exits with the rollup settled.
func recordAndReport(cmd *cobra.Command, rec types.PageRecord) error {
	a, err := newApp(daemonCfg)
	if err != nil {
		return err
	}
	defer a.Close()

	leaf, err := a.engine.Ingest(cmd.Context(), rec)
	if err != nil {
		return err
	}
	if err := a.flush(cmd.Context()); err != nil {
		return err
	}
	cmd.Printf("recorded %s (%s)\n", leaf.ID, leaf.DisplayTitle())
	return nil
}

func printNodes(cmd *cobra.Command, nodes []types.Node) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(nodes)
	}
	if len(nodes) == 0 {
		fmt.Fprintln(out, "No entries yet.")
		return nil
	}
	for i, n := range nodes {
		if i > 0 {
			fmt.Fprintln(out, "----")
		}
		fmt.Fprintf(out, "[%s]\n%s", n.ID, timeline.Detail(n, 100))
	}
	return nil
}
