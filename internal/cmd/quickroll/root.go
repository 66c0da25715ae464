// Package quickroll builds the quickroll command line: the server command and
// thin gRPC clients for inspecting and rerolling messages.
package quickroll

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"

	entrypoint "github.com/louisbranch/quickroll/internal/platform/cmd"
	platformgrpc "github.com/louisbranch/quickroll/internal/platform/grpc"
	"github.com/louisbranch/quickroll/internal/platform/logging"
	"github.com/louisbranch/quickroll/internal/platform/timeouts"
	rollapi "github.com/louisbranch/quickroll/internal/services/roll/api/grpc/roll"
)

// ClientConfig holds the settings shared by client commands.
type ClientConfig struct {
	Addr   string `env:"QUICKROLL_ADDR" envDefault:"127.0.0.1:8095"`
	UserID string `env:"QUICKROLL_USER_ID"`
	Locale string `env:"QUICKROLL_LOCALE" envDefault:"en-US"`
	GM     bool   `env:"QUICKROLL_GM"`
}

type rootOptions struct {
	client  ClientConfig
	timeout time.Duration
	stdout  io.Writer
	stderr  io.Writer
}

// NewRootCommand returns the quickroll command tree writing to stdout and stderr.
func NewRootCommand(stdout, stderr io.Writer) (*cobra.Command, error) {
	opts := &rootOptions{stdout: stdout, stderr: stderr}
	if err := entrypoint.ParseConfig(&opts.client); err != nil {
		return nil, err
	}

	root := &cobra.Command{
		Use:           "quickroll",
		Short:         "Roll message pipeline service and tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.client.Addr, "addr", opts.client.Addr, "roll service address")
	flags.StringVar(&opts.client.UserID, "user", opts.client.UserID, "user id sent with requests")
	flags.StringVar(&opts.client.Locale, "locale", opts.client.Locale, "preferred locale for notices and errors")
	flags.BoolVar(&opts.client.GM, "gm", opts.client.GM, "call as a game master")
	flags.DurationVar(&opts.timeout, "timeout", timeouts.GRPCRequest, "per request timeout")

	root.AddCommand(
		serveCmd(opts),
		importCmd(opts),
		showCmd(opts),
		auditCmd(opts),
		rerollCmd(opts),
		retroCmd(opts),
	)
	return root, nil
}

// Execute runs the command tree with args.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root, err := NewRootCommand(stdout, stderr)
	if err != nil {
		return err
	}
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// connect dials the roll service and waits for it to report healthy.
func (o *rootOptions) connect(ctx context.Context) (*rollapi.Client, func(), error) {
	logger, err := logging.New(logging.Config{Level: "warn", Format: "text"}, o.stderr, entrypoint.ServiceRoll, false)
	if err != nil {
		return nil, nil, err
	}
	conn, err := platformgrpc.Dial(ctx, platformgrpc.DialConfig{
		Addr:    o.client.Addr,
		Service: rollapi.ServiceName,
		Timeout: timeouts.GRPCDial,
		Logger:  logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", o.client.Addr, err)
	}
	return rollapi.NewClient(conn), func() { _ = conn.Close() }, nil
}

// call runs fn against a connected client with the caller identity attached.
func (o *rootOptions) call(cmd *cobra.Command, fn func(context.Context, *rollapi.Client) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	client, closeConn, err := o.connect(ctx)
	if err != nil {
		return err
	}
	defer closeConn()

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	ctx = platformgrpc.WithOutgoingIdentity(ctx, o.client.UserID, o.client.Locale)
	ctx = platformgrpc.WithOutgoingGM(ctx, o.client.GM)
	return describe(fn(ctx, client))
}

// describe prefers the localized message of a service error.
func describe(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, detail := range st.Details() {
		if localized, ok := detail.(*errdetails.LocalizedMessage); ok && localized.GetMessage() != "" {
			return &ServiceError{Code: st.Code().String(), Message: localized.GetMessage(), err: err}
		}
	}
	return err
}

// ServiceError is a roll service failure with its user-facing message.
type ServiceError struct {
	Code    string
	Message string
	err     error
}

func (e *ServiceError) Error() string { return e.Message }

func (e *ServiceError) Unwrap() error { return e.err }

