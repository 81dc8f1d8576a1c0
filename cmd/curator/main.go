package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"curator/internal/app"
	"curator/internal/config"
	"curator/internal/services"
)

var (
	userID    int64
	projectID int64
	dryRun    bool
)

var rootCmd = &cobra.Command{
	Use:   "curator",
	Short: "Task curation operations",
	Long:  `Curator runs the recurring curation passes that rank work and track workload capacity.`,
}

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Fan out the daily curation pass",
	Long: `Enqueues one curation unit per eligible user and checks auto-iterating
projects. --user-id narrows to one user (bypassing eligibility),
--project-id narrows to one project check, --dry-run reports intended
dispatch without enqueueing.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadConfig()

		core, err := app.NewCore(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer core.Close()

		opts := services.FanOutOptions{DryRun: dryRun}
		if cmd.Flags().Changed("user-id") {
			opts.UserID = &userID
		}
		if cmd.Flags().Changed("project-id") {
			opts.ProjectID = &projectID
		}

		ctx := context.Background()
		report, err := core.FanOut.Run(ctx, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if !dryRun {
			// synchronous mode: work the queue down before exiting
			if err := core.Queue.Drain(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}

		fmt.Printf("work date:        %s\n", report.WorkDate.Format("2006-01-02"))
		fmt.Printf("eligible users:   %d\n", report.EligibleUsers)
		fmt.Printf("curation units:   %d\n", report.EnqueuedUnits)
		fmt.Printf("iteration checks: %d\n", report.IterationChecks)
		if dryRun {
			fmt.Println("dry run: nothing was enqueued")
		}
		for _, note := range report.Notes {
			fmt.Printf("note: %s\n", note)
		}
	},
}

func init() {
	dailyCmd.Flags().Int64Var(&userID, "user-id", 0, "curate exactly one user")
	dailyCmd.Flags().Int64Var(&projectID, "project-id", 0, "check one project's iteration lifecycle")
	dailyCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report dispatch counts without enqueueing")
	rootCmd.AddCommand(dailyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
