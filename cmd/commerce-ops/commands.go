package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/chatbot"
	"bitbucket.org/mmdatafocus/commerce_backend/config"
	"bitbucket.org/mmdatafocus/commerce_backend/models"
	"bitbucket.org/mmdatafocus/commerce_backend/models/reports"
	"bitbucket.org/mmdatafocus/commerce_backend/utils"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

func connect() error {
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		return errors.New("database not initialized; set DB_* env vars")
	}
	return nil
}

// opsContext acts for storeId as the system user.
func opsContext(storeId string) context.Context {
	ctx := utils.SystemContext(context.Background(), storeId)
	ctx = utils.SetUserIdInContext(ctx, 0)
	return utils.SetUserNameInContext(ctx, "Ops")
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run AutoMigrate for every table",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := connect(); err != nil {
				return err
			}
			if err := models.AutoMigrateAll(config.GetDB()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			cmd.Println("migrations applied")
			return nil
		},
	}
}

func newOutboxCmd() *cobra.Command {
	outboxCmd := &cobra.Command{
		Use:   "outbox",
		Short: "Outbox recovery commands",
	}

	revert := &cobra.Command{
		Use:   "revert-dead",
		Short: "Send every DEAD outbox row of a store back for another try",
		RunE: func(cmd *cobra.Command, args []string) error {
			storeId, _ := cmd.Flags().GetString("store")
			if err := connect(); err != nil {
				return err
			}
			n, err := models.RevertDeadOutbox(opsContext(storeId), storeId)
			if err != nil {
				return err
			}
			cmd.Printf("revived %d outbox rows for store %s\n", n, storeId)
			return nil
		},
	}
	revert.Flags().String("store", "", "store id (required)")
	_ = revert.MarkFlagRequired("store")

	replay := &cobra.Command{
		Use:   "replay",
		Short: "Replay one outbox row",
		RunE: func(cmd *cobra.Command, args []string) error {
			storeId, _ := cmd.Flags().GetString("store")
			recordId, _ := cmd.Flags().GetInt("id")
			if err := connect(); err != nil {
				return err
			}
			rec, err := models.ReplayOutboxRecord(opsContext(storeId), storeId, recordId)
			if err != nil {
				return err
			}
			cmd.Printf("record %d: publish=%s processing=%s\n", rec.ID, rec.PublishStatus, rec.ProcessingStatus)
			return nil
		},
	}
	replay.Flags().String("store", "", "store id (required)")
	replay.Flags().Int("id", 0, "outbox record id (required)")
	_ = replay.MarkFlagRequired("store")
	_ = replay.MarkFlagRequired("id")

	outboxCmd.AddCommand(revert, replay)
	return outboxCmd
}

func newReportCmd() *cobra.Command {
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Export reports to xlsx",
	}
	reportCmd.PersistentFlags().String("store", "", "store id (required)")
	reportCmd.PersistentFlags().String("out", "", "output file (required)")
	_ = reportCmd.MarkPersistentFlagRequired("store")
	_ = reportCmd.MarkPersistentFlagRequired("out")

	payout := &cobra.Command{
		Use:   "payout",
		Short: "Export one payout statement",
		RunE: func(cmd *cobra.Command, args []string) error {
			storeId, _ := cmd.Flags().GetString("store")
			out, _ := cmd.Flags().GetString("out")
			id, _ := cmd.Flags().GetInt("id")
			if err := connect(); err != nil {
				return err
			}
			f, err := reports.ExportPayoutStatement(opsContext(storeId), id)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := f.SaveAs(out); err != nil {
				return err
			}
			cmd.Printf("wrote %s\n", out)
			return nil
		},
	}
	payout.Flags().Int("id", 0, "payout id (required)")
	_ = payout.MarkFlagRequired("id")

	deliveries := &cobra.Command{
		Use:   "deliveries",
		Short: "Export driver delivery performance for a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			storeId, _ := cmd.Flags().GetString("store")
			out, _ := cmd.Flags().GetString("out")
			from, to, err := dateRange(cmd)
			if err != nil {
				return err
			}
			if err := connect(); err != nil {
				return err
			}
			report, err := reports.GetDeliveryPerformanceReport(opsContext(storeId), from, to)
			if err != nil {
				return err
			}
			f, err := reports.ExportDeliveryPerformance(report)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := f.SaveAs(out); err != nil {
				return err
			}
			cmd.Printf("wrote %s\n", out)
			return nil
		},
	}
	deliveries.Flags().String("from", "", "first day, YYYY-MM-DD (default 30 days ago)")
	deliveries.Flags().String("to", "", "last day, YYYY-MM-DD (default today)")

	reportCmd.AddCommand(payout, deliveries)
	return reportCmd
}

func dateRange(cmd *cobra.Command) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	to := now
	from := now.AddDate(0, 0, -30)
	if v, _ := cmd.Flags().GetString("from"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return from, to, fmt.Errorf("--from: %w", err)
		}
		from = t
	}
	if v, _ := cmd.Flags().GetString("to"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return from, to, fmt.Errorf("--to: %w", err)
		}
		to = t.Add(24*time.Hour - time.Nanosecond)
	}
	if to.Before(from) {
		return from, to, errors.New("--to is before --from")
	}
	return from, to, nil
}

func newIntentsCmd() *cobra.Command {
	intentsCmd := &cobra.Command{
		Use:   "intents",
		Short: "Chat intent rule tools",
	}
	check := &cobra.Command{
		Use:   "check <rules-file|-> <message...>",
		Short: "Classify a message with a rules file and print the result",
		Long:  "Classify a message with a rules file and print the result as YAML. Pass - to use the built-in rules.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if path == "-" {
				path = ""
			}
			rules, err := chatbot.LoadRules(path)
			if err != nil {
				return err
			}
			bot, err := chatbot.NewBot(rules)
			if err != nil {
				return err
			}
			res := bot.Classify(strings.Join(args[1:], " "))
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(res)
		},
	}
	intentsCmd.AddCommand(check)
	return intentsCmd
}
