package quickroll

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	rollapi "github.com/louisbranch/quickroll/internal/services/roll/api/grpc/roll"
)

func retroCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:       "retro <message-id> advantage|disadvantage|critical",
		Short:     "Apply a retroactive advantage, disadvantage or critical hit",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"advantage", "disadvantage", "critical"},
		RunE: func(cmd *cobra.Command, args []string) error {
			messageID, kind := args[0], args[1]
			return opts.call(cmd, func(ctx context.Context, client *rollapi.Client) error {
				var out rollapi.OutcomeResponse
				var err error
				switch kind {
				case "advantage", "disadvantage":
					err = client.Call(ctx, rollapi.MethodRetroMultiRoll, rollapi.RetroMultiRollRequest{
						MessageID: messageID,
						Mode:      kind,
						Confirmed: yes,
					}, &out)
				case "critical":
					err = client.Call(ctx, rollapi.MethodRetroCritical, rollapi.MessageRequest{
						MessageID: messageID,
						Confirmed: yes,
					}, &out)
				default:
					return fmt.Errorf("unknown retro change %q", kind)
				}
				if err != nil {
					return err
				}
				return writeOutcome(opts.stdout, out)
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the change without a prompt")
	return cmd
}
