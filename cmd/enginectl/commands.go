package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ignite/newsletter-engine/internal/config"
	"github.com/ignite/newsletter-engine/internal/newsletter"
	"github.com/ignite/newsletter-engine/internal/snapshot"
)

var errNoSnapshot = errors.New("no snapshot found")

type rootOptions struct {
	configPath string
	dir        string
}

func (o *rootOptions) store(ctx context.Context) (snapshot.Store, error) {
	if o.dir != "" {
		return snapshot.NewLocalStore(o.dir)
	}
	cfg, err := config.LoadFromEnv(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return snapshot.New(ctx, cfg.Snapshot)
}

// engine restores a fresh engine from the selected store.
func (o *rootOptions) engine(ctx context.Context) (*newsletter.Engine, error) {
	store, err := o.store(ctx)
	if err != nil {
		return nil, err
	}
	eng := newsletter.NewEngine()
	found, err := eng.Load(ctx, store)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errNoSnapshot
	}
	return eng, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func snapshotCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Snapshot commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show when the snapshot was taken and what it holds",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.engine(cmd.Context())
			if err != nil {
				return err
			}
			snap := eng.Snapshot()
			counts := snap.Counts()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Format version: %d\n", snap.Version)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, k := range []string{"experiments", "assignments", "events", "campaigns", "engagements", "segments"} {
				fmt.Fprintf(tw, "%s\t%d\n", k, counts[k])
			}
			return tw.Flush()
		},
	})
	return cmd
}

func experimentCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "experiment",
		Aliases: []string{"exp"},
		Short:   "Experiment commands",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List experiments",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.engine(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tVARIANTS\tCREATED")
			for _, e := range eng.Experiments.List() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", e.ID, e.Name, e.Status, len(e.Variants), e.CreatedAt.Format(time.DateOnly))
			}
			return tw.Flush()
		},
	}

	analyze := &cobra.Command{
		Use:   "analyze [experiment-id]",
		Short: "Compute variant results and the winner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.engine(cmd.Context())
			if err != nil {
				return err
			}
			res, err := eng.Experiments.Analyze(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.AddCommand(list, analyze)
	return cmd
}

func campaignCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaign",
		Short: "Campaign analytics commands",
	}

	analyticsCmd := &cobra.Command{
		Use:   "analytics [campaign-id]",
		Short: "Show the funnel report of one campaign, or a summary of all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.engine(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 1 {
				a, err := eng.Analytics.Analytics(args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), a)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tRECIPIENTS\tOPEN\tCLICK\tSCORE")
			for _, a := range eng.Analytics.AllAnalytics() {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f%%\t%.1f%%\t%.2f\n",
					a.CampaignID, a.CampaignName, a.TotalRecipients, a.OpenRate*100, a.ClickRate*100, a.EngagementScore)
			}
			return tw.Flush()
		},
	}

	compare := &cobra.Command{
		Use:   "compare [campaign-id...]",
		Short: "Rank campaigns by engagement score",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.engine(cmd.Context())
			if err != nil {
				return err
			}
			cmp, err := eng.Analytics.Compare(args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cmp)
		},
	}

	cmd.AddCommand(analyticsCmd, compare)
	return cmd
}

func segmentCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "segment",
		Short: "Segment commands",
	}

	performance := &cobra.Command{
		Use:   "performance",
		Short: "Average campaign results per targeted segment",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.engine(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SEGMENT\tCAMPAIGNS\tOPEN\tCLICK\tCONVERSION\tSCORE")
			for _, p := range eng.Analytics.SegmentPerformance() {
				fmt.Fprintf(tw, "%s\t%d\t%.1f%%\t%.1f%%\t%.1f%%\t%.2f\n",
					p.SegmentID, p.TotalCampaigns, p.AvgOpenRate*100, p.AvgClickRate*100, p.AvgConversionRate*100, p.AvgEngagementScore)
			}
			return tw.Flush()
		},
	}

	recommend := &cobra.Command{
		Use:   "recommendations [segment-id]",
		Short: "Suggest improvements for a segment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.engine(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range eng.Analytics.Recommendations(args[0]) {
				fmt.Fprintf(cmd.OutOrStdout(), "- %s\n", r)
			}
			return nil
		},
	}

	cmd.AddCommand(performance, recommend)
	return cmd
}
