// Package server wires the roll runtime and gRPC lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"github.com/louisbranch/quickroll/internal/core/dice"
	platformgrpc "github.com/louisbranch/quickroll/internal/platform/grpc"
	"github.com/louisbranch/quickroll/internal/platform/logging"
	"github.com/louisbranch/quickroll/internal/random"
	rollapi "github.com/louisbranch/quickroll/internal/services/roll/api/grpc/roll"
	"github.com/louisbranch/quickroll/internal/services/roll/commands"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/message"
	rollsqlite "github.com/louisbranch/quickroll/internal/services/roll/storage/sqlite"
)

// Config holds the roll server settings.
type Config struct {
	Addr     string `env:"QUICKROLL_ADDR" envDefault:"127.0.0.1:8095"`
	DBPath   string `env:"QUICKROLL_DB_PATH"`
	DiceSeed int64  `env:"QUICKROLL_DICE_SEED"`

	AlwaysMultiRoll  bool          `env:"QUICKROLL_ALWAYS_MULTIROLL"`
	ConfirmRetroAdv  bool          `env:"QUICKROLL_CONFIRM_RETRO_ADV" envDefault:"true"`
	ConfirmRetroCrit bool          `env:"QUICKROLL_CONFIRM_RETRO_CRIT" envDefault:"true"`
	Vanilla          bool          `env:"QUICKROLL_VANILLA" envDefault:"true"`
	AnimationTimeout time.Duration `env:"QUICKROLL_ANIMATION_TIMEOUT" envDefault:"10s"`
}

// Policy returns the command policy described by cfg.
func (c Config) Policy() commands.Policy {
	return commands.Policy{
		AlwaysMultiRoll:  c.AlwaysMultiRoll,
		ConfirmRetroAdv:  c.ConfirmRetroAdv,
		ConfirmRetroCrit: c.ConfirmRetroCrit,
		Vanilla:          c.Vanilla,
		AnimationTimeout: c.AnimationTimeout,
	}
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("QUICKROLL_ADDR is required")
	}
	if c.AnimationTimeout <= 0 {
		return fmt.Errorf("QUICKROLL_ANIMATION_TIMEOUT must be positive, got %s", c.AnimationTimeout)
	}
	return nil
}

// Server hosts the roll gRPC API and storage lifecycle.
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
	store      *rollsqlite.Store
	logger     *slog.Logger
}

// New creates a configured roll server listening on cfg.Addr.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "quickroll.db")
	}

	roller, err := dice.NewSeededRoller(random.Fixed(cfg.DiceSeed))
	if err != nil {
		return nil, err
	}
	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}
	store, err := OpenStore(cfg.DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	cmds := commands.NewService(commands.Deps{
		Store:   store,
		Roller:  roller,
		Actions: hostActions{},
		Logger:  logger,
	}, cfg.Policy())

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(platformgrpc.IdentityUnaryInterceptor()),
	)
	rollapi.RegisterRollServiceServer(grpcServer, rollapi.NewService(cmds, logger))
	healthServer := platformgrpc.RegisterHealth(grpcServer, rollapi.ServiceName)

	return &Server{
		listener:   listener,
		grpcServer: grpcServer,
		health:     healthServer,
		store:      store,
		logger:     logger,
	}, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a roll server until context cancellation.
func Run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	server, err := New(cfg, logger)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the gRPC server until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	s.logger.InfoContext(ctx, "roll server listening", "addr", s.listener.Addr().String())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		if s.health != nil {
			s.health.Shutdown()
		}
		s.grpcServer.GracefulStop()
		err := <-serveErr
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}
}

// Close releases roll server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("close roll store", "error", err)
		}
	}
}

// OpenStore opens the SQLite store at path, creating its directory.
func OpenStore(path string) (*rollsqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := rollsqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roll sqlite store: %w", err)
	}
	return store, nil
}

// hostActions serves a deployment where the host runs activity actions
// itself and delivers each sub-roll through CreateMessage and
// ProcessMessage. A batch needs nothing server side, but a single action
// such as manual damage cannot be triggered from here.
type hostActions struct{}

func (hostActions) RunActivityActions(context.Context, message.Message) error { return nil }

func (hostActions) RunActivityAction(_ context.Context, _ message.Message, rollType message.RollType) error {
	return fmt.Errorf("%w: %s action runs on the host", commands.ErrCollaboratorUnavailable, rollType)
}
