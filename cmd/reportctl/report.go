package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/app"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/queue"
)

const localQueueWarning = "warning: REDIS_ADDR is not set, the reminder email and call are held in this process and are dropped when it exits (use --wait)"

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate reports against the configured stack",
}

var reportCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Run the report workflow once and print the download link",
	Long: `Create generates, renders and stores one report, then schedules its
reminder email and conditional call. With --wait the command keeps a worker
running until both notifications have had time to fire.`,
	RunE: runReportCreate,
}

func runReportCreate(cmd *cobra.Command, args []string) error {
	userID, _ := cmd.Flags().GetString("user")
	title, _ := cmd.Flags().GetString("title")
	wait, _ := cmd.Flags().GetBool("wait")

	ctx := cmd.Context()
	cfg := loadConfig()
	stack, err := app.New(ctx, cfg, newLogger())
	if err != nil {
		return err
	}
	defer stack.Close()

	result, err := stack.Workflow.CreateReport(ctx, userID, title)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "id: %s\ntitle: %s\ndownload_link: %s\n", result.ReportID, result.Title, result.DownloadLink)

	if !wait {
		if warning := notificationWarning(stack.Producer, wait); warning != "" {
			fmt.Fprintln(os.Stderr, warning)
		}
		return nil
	}
	window := cfg.CallDelay() + 5*time.Second
	fmt.Fprintf(os.Stderr, "Waiting %s for scheduled notifications...\n", window)
	waitCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()
	stack.Processor().Start(waitCtx)
	return nil
}

// notificationWarning is non-empty when scheduled tasks only live in memory
// and the command is about to exit without running them.
func notificationWarning(producer queue.Producer, wait bool) string {
	if wait {
		return ""
	}
	if _, local := producer.(*queue.LocalQueue); !local {
		return ""
	}
	return localQueueWarning
}

func init() {
	reportCreateCmd.Flags().String("user", "", "user id owning the report")
	reportCreateCmd.Flags().String("title", "", "report title")
	reportCreateCmd.Flags().Bool("wait", false, "run the worker until scheduled notifications are due")
	_ = reportCreateCmd.MarkFlagRequired("user")
	_ = reportCreateCmd.MarkFlagRequired("title")

	reportCmd.AddCommand(reportCreateCmd)
	rootCmd.AddCommand(reportCmd)
}
