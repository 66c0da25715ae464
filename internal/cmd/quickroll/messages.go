package quickroll

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	rollapi "github.com/louisbranch/quickroll/internal/services/roll/api/grpc/roll"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/message"
)

func importCmd(opts *rootOptions) *cobra.Command {
	var process bool
	cmd := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Store messages from a JSON file and run the pipeline on them",
		Long: `Reads one message or an array of messages in the service JSON form,
stores each of them and, unless --process=false, runs the pipeline as the
calling user.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msgs, err := readMessages(args[0])
			if err != nil {
				return err
			}
			return opts.call(cmd, func(ctx context.Context, client *rollapi.Client) error {
				for _, msg := range msgs {
					created, err := client.CreateMessage(ctx, rollapi.CreateMessageRequest{Message: msg})
					if err != nil {
						return fmt.Errorf("import %s: %w", msg.ID, err)
					}
					line := created.Message.ID
					if process {
						out, err := client.ProcessMessage(ctx, created.Message.ID)
						if err != nil {
							return fmt.Errorf("process %s: %w", created.Message.ID, err)
						}
						if out.MergedInto != "" {
							line += " merged into " + out.MergedInto
						} else {
							line += " " + string(out.View.Phase)
						}
					}
					fmt.Fprintln(opts.stdout, line)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&process, "process", true, "run the pipeline after storing each message")
	return cmd
}

func readMessages(path string) ([]message.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var msgs []message.Message
		if err := json.Unmarshal(data, &msgs); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return msgs, nil
	}
	var msg message.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return []message.Message{msg}, nil
}

func showCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <message-id>",
		Short: "Print a message, its rolls and the controls offered to the caller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, client *rollapi.Client) error {
				out, err := client.GetMessage(ctx, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(opts.stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(out)
				}
				return writeOutcome(opts.stdout, out)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw response")
	return cmd
}

func writeOutcome(w io.Writer, out rollapi.OutcomeResponse) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	msg := out.Message
	fmt.Fprintf(tw, "ID\t%s\n", msg.ID)
	fmt.Fprintf(tw, "Type\t%s\n", orDash(string(out.View.RollType)))
	fmt.Fprintf(tw, "Phase\t%s\n", out.View.Phase)
	if msg.Flavor != "" {
		fmt.Fprintf(tw, "Flavor\t%s\n", msg.Flavor)
	}
	fmt.Fprintf(tw, "Version\t%d\n", msg.Version)
	for i, roll := range msg.Rolls {
		fmt.Fprintf(tw, "Roll %d\t%s\t%s = %d\t%s\n", i, rollLabel(roll), roll.Formula(), roll.Total, dieValues(roll))
	}
	if len(out.View.Sections) > 0 {
		sections := make([]string, len(out.View.Sections))
		for i, s := range out.View.Sections {
			sections[i] = string(s)
		}
		fmt.Fprintf(tw, "Sections\t%s\n", strings.Join(sections, ", "))
	}
	var controls []string
	if out.Controls.RetroMultiRoll {
		controls = append(controls, "retro-multiroll")
	}
	if out.Controls.RetroCritical {
		controls = append(controls, "retro-critical")
	}
	if out.Controls.Reroll {
		controls = append(controls, "reroll")
	}
	fmt.Fprintf(tw, "Controls\t%s\n", orDash(strings.Join(controls, ", ")))
	return tw.Flush()
}

func rollLabel(roll message.Roll) string {
	label := string(roll.Kind)
	if roll.DamageType != "" {
		label += " " + roll.DamageType
	}
	if roll.Critical {
		label += " crit"
	}
	if roll.AdvantageMode != message.ModeNormal {
		label += " " + roll.AdvantageMode.String()
	}
	return label
}

// dieValues lists die outcomes; inactive ones are bracketed and rerolled
// ones carry a trailing "r".
func dieValues(roll message.Roll) string {
	var parts []string
	for _, term := range roll.Terms {
		if term.Kind != message.TermDie {
			continue
		}
		for _, res := range term.Results {
			v := strconv.Itoa(res.Value)
			if res.WasRerolled {
				v += "r"
			}
			if !res.Active {
				v = "(" + v + ")"
			}
			parts = append(parts, v)
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
