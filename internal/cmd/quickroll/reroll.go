package quickroll

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	rollapi "github.com/louisbranch/quickroll/internal/services/roll/api/grpc/roll"
	"github.com/louisbranch/quickroll/internal/services/roll/audit"
	"github.com/louisbranch/quickroll/internal/services/roll/storage"
)

func auditCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "audit <message-id>",
		Short: "Print the reroll audit records of a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, client *rollapi.Client) error {
				resp, err := client.ListAuditRecords(ctx, args[0])
				if err != nil {
					return err
				}
				if len(resp.Records) == 0 {
					fmt.Fprintf(opts.stdout, "no rerolls recorded for %s\n", args[0])
					return nil
				}
				for i, rec := range resp.Records {
					if i > 0 {
						fmt.Fprintln(opts.stdout)
					}
					fmt.Fprintf(opts.stdout, "%s by %s at %s\n", rec.ID, orDash(rec.Author), rec.CreatedAt.Format("2006-01-02 15:04:05"))
					if err := audit.WriteTable(opts.stdout, auditFromWire(rec)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func rerollCmd(opts *rootOptions) *cobra.Command {
	var (
		dice []string
		keep string
	)
	cmd := &cobra.Command{
		Use:   "reroll <message-id> --die roll:term:die [--die ...]",
		Short: "Reroll selected damage dice and print the audit record",
		Long: `Rerolls the selected damage dice of a message. Each --die names a die
as roll:term:die, counted among damage rolls, their die terms and the
term's results. --keep better keeps the higher of the old and new value.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, client *rollapi.Client) error {
				resp, err := client.Reroll(ctx, rollapi.RerollRequest{
					MessageID: args[0],
					Dice:      dice,
					Keep:      strings.TrimSpace(keep),
				})
				if err != nil {
					return err
				}
				for _, dropped := range resp.Dropped {
					fmt.Fprintf(opts.stderr, "skipped %s: %s\n", dropped.Ref, dropped.Reason)
				}
				if resp.Notice != "" {
					fmt.Fprintln(opts.stdout, resp.Notice)
				}
				if resp.Audit != nil {
					return audit.WriteTable(opts.stdout, auditFromWire(*resp.Audit))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&dice, "die", nil, "die to reroll as roll:term:die (repeatable)")
	cmd.Flags().StringVar(&keep, "keep", "new", "keep policy: new or better")
	return cmd
}

func auditFromWire(rec rollapi.AuditRecord) storage.AuditRecord {
	return storage.AuditRecord{
		ID:         rec.ID,
		MessageID:  rec.MessageID,
		Author:     rec.Author,
		KeepPolicy: rec.KeepPolicy,
		Rows:       rec.Rows,
		TotalDelta: rec.TotalDelta,
		CreatedAt:  rec.CreatedAt,
	}
}
