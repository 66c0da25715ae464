// Package roll exposes the roll commands over gRPC.
package roll

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/louisbranch/quickroll/internal/platform/errors"
	"github.com/louisbranch/quickroll/internal/platform/errors/i18n"
	"github.com/louisbranch/quickroll/internal/platform/grpc/pagination"
	"github.com/louisbranch/quickroll/internal/platform/logging"
	"github.com/louisbranch/quickroll/internal/platform/requestctx"
	"github.com/louisbranch/quickroll/internal/services/roll/commands"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/damage"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/message"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/reroll"
)

const (
	defaultListMessagesPageSize = 20
	maxListMessagesPageSize     = 100
)

// Service implements RollServiceServer on top of the roll commands.
type Service struct {
	commands *commands.Service
	logger   *slog.Logger
}

// NewService creates a roll service backed by cmds.
func NewService(cmds *commands.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{commands: cmds, logger: logger}
}

// CreateMessage stores a message delivered by the host.
func (s *Service) CreateMessage(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var req CreateMessageRequest
	if err := Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	msg, err := s.commands.CreateMessage(ctx, req.Message)
	if err != nil {
		return nil, s.statusFor(ctx, err)
	}
	return s.reply(MessageResponse{Message: msg})
}

// GetMessage returns one message with its presentation.
func (s *Service) GetMessage(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := s.messageRequest(in)
	if err != nil {
		return nil, err
	}
	out, err := s.commands.GetMessage(ctx, req.MessageID)
	if err != nil {
		return nil, s.statusFor(ctx, err)
	}
	return s.reply(outcomeToWire(out))
}

// ListMessages returns a page of stored messages.
func (s *Service) ListMessages(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var req ListMessagesRequest
	if err := Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	cursor, err := pagination.DecodeCursor(strings.TrimSpace(req.PageToken))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	pageSize := pagination.ClampPageSize(req.PageSize, pagination.PageSizeConfig{
		Default: defaultListMessagesPageSize,
		Max:     maxListMessagesPageSize,
	})
	page, err := s.commands.ListMessages(ctx, pageSize, cursor)
	if err != nil {
		return nil, s.statusFor(ctx, err)
	}
	resp := ListMessagesResponse{
		Messages:      page.Messages,
		NextPageToken: pagination.EncodeCursor(page.NextPageToken),
	}
	if resp.Messages == nil {
		resp.Messages = []message.Message{}
	}
	return s.reply(resp)
}

// ProcessMessage runs the roll pipeline for one delivery of a message.
func (s *Service) ProcessMessage(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := s.messageRequest(in)
	if err != nil {
		return nil, err
	}
	out, err := s.commands.Process(ctx, req.MessageID)
	if err != nil {
		return nil, s.statusFor(ctx, err)
	}
	return s.reply(outcomeToWire(out))
}

// Classify returns the roll type of a message.
func (s *Service) Classify(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := s.messageRequest(in)
	if err != nil {
		return nil, err
	}
	rollType, err := s.commands.Classify(ctx, req.MessageID)
	if err != nil {
		return nil, s.statusFor(ctx, err)
	}
	return s.reply(ClassifyResponse{RollType: rollType})
}

// RollDamage handles the manual damage button of an activity message.
func (s *Service) RollDamage(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := s.messageRequest(in)
	if err != nil {
		return nil, err
	}
	out, err := s.commands.RollDamage(ctx, req.MessageID)
	if err != nil {
		return nil, s.statusFor(ctx, err)
	}
	return s.reply(outcomeToWire(out))
}

// RetroMultiRoll applies a retroactive advantage or disadvantage.
func (s *Service) RetroMultiRoll(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var req RetroMultiRollRequest
	if err := Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if strings.TrimSpace(req.MessageID) == "" {
		return nil, status.Error(codes.InvalidArgument, "message id is required")
	}
	ctx = commands.WithConfirmation(ctx, req.Confirmed)
	out, err := s.commands.RetroMultiRoll(ctx, req.MessageID, parseMode(req.Mode))
	if err != nil {
		return nil, s.statusFor(ctx, err)
	}
	return s.reply(outcomeToWire(out))
}

// RetroCritical promotes the damage of a message to a critical hit.
func (s *Service) RetroCritical(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := s.messageRequest(in)
	if err != nil {
		return nil, err
	}
	ctx = commands.WithConfirmation(ctx, req.Confirmed)
	out, err := s.commands.RetroCritical(ctx, req.MessageID)
	if err != nil {
		return nil, s.statusFor(ctx, err)
	}
	return s.reply(outcomeToWire(out))
}

// Reroll rerolls the selected damage dice of a message.
func (s *Service) Reroll(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var req RerollRequest
	if err := Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if strings.TrimSpace(req.MessageID) == "" {
		return nil, status.Error(codes.InvalidArgument, "message id is required")
	}
	policy, err := reroll.ParsePolicy(req.Keep)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	selection := make(reroll.Selection, 0, len(req.Dice))
	for _, raw := range req.Dice {
		ref, err := reroll.ParseRef(raw)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		selection = append(selection, ref)
	}

	out, err := s.commands.Reroll(ctx, req.MessageID, selection, policy)
	if err != nil {
		return nil, s.statusFor(ctx, err)
	}
	resp := RerollResponse{
		OutcomeResponse: outcomeToWire(out.Outcome),
		Changes:         out.Changes,
		Dropped:         out.Dropped,
		Notice:          out.Notice,
	}
	if out.Audit != nil {
		rec := auditToWire(*out.Audit)
		resp.Audit = &rec
	}
	return s.reply(resp)
}

// RerollCandidates lists the dice a user may select for a reroll.
func (s *Service) RerollCandidates(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := s.messageRequest(in)
	if err != nil {
		return nil, err
	}
	groups, err := s.commands.RerollCandidates(ctx, req.MessageID)
	if err != nil {
		return nil, s.statusFor(ctx, err)
	}
	return s.reply(CandidatesResponse{Groups: groups})
}

// ListAuditRecords returns the reroll audit trail of a message.
func (s *Service) ListAuditRecords(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := s.messageRequest(in)
	if err != nil {
		return nil, err
	}
	records, err := s.commands.ListAuditRecords(ctx, req.MessageID)
	if err != nil {
		return nil, s.statusFor(ctx, err)
	}
	resp := AuditRecordsResponse{Records: make([]AuditRecord, 0, len(records))}
	for _, rec := range records {
		resp.Records = append(resp.Records, auditToWire(rec))
	}
	return s.reply(resp)
}

// ApplyDamage applies the damage of a message to targets.
func (s *Service) ApplyDamage(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var req ApplyDamageRequest
	if err := Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if strings.TrimSpace(req.MessageID) == "" {
		return nil, status.Error(codes.InvalidArgument, "message id is required")
	}
	request := damage.Request{Targets: req.Targets, Multiplier: 1, Part: damage.AllParts, TempHP: req.TempHP}
	if req.Multiplier != nil {
		request.Multiplier = *req.Multiplier
	}
	if req.Part != nil {
		request.Part = *req.Part
	}

	out, err := s.commands.ApplyDamage(ctx, req.MessageID, request)
	if err != nil {
		return nil, s.statusFor(ctx, err)
	}
	resp := ApplyDamageResponse{
		Damages: out.Damages,
		Applied: out.Report.Applied,
		Notice:  out.Notice,
	}
	if resp.Applied == nil {
		resp.Applied = []string{}
	}
	if len(out.Report.Failed) > 0 {
		resp.Failed = make(map[string]string, len(out.Report.Failed))
		for target, failure := range out.Report.Failed {
			resp.Failed[target] = failure.Error()
		}
	}
	return s.reply(resp)
}

// BreakConcentration ends concentration for the speaker of a check.
func (s *Service) BreakConcentration(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := s.messageRequest(in)
	if err != nil {
		return nil, err
	}
	if err := s.commands.BreakConcentration(ctx, req.MessageID); err != nil {
		return nil, s.statusFor(ctx, err)
	}
	return s.reply(Empty{})
}

// FinishAnimation reports that the dice animation of a message ended.
func (s *Service) FinishAnimation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := s.messageRequest(in)
	if err != nil {
		return nil, err
	}
	msg, err := s.commands.FinishAnimation(ctx, req.MessageID)
	if err != nil {
		return nil, s.statusFor(ctx, err)
	}
	return s.reply(MessageResponse{Message: msg})
}

func (s *Service) ready() error {
	if s == nil || s.commands == nil {
		return status.Error(codes.Internal, "roll commands are not configured")
	}
	return nil
}

func (s *Service) messageRequest(in *structpb.Struct) (MessageRequest, error) {
	if err := s.ready(); err != nil {
		return MessageRequest{}, err
	}
	var req MessageRequest
	if err := Decode(in, &req); err != nil {
		return MessageRequest{}, status.Error(codes.InvalidArgument, err.Error())
	}
	req.MessageID = strings.TrimSpace(req.MessageID)
	if req.MessageID == "" {
		return MessageRequest{}, status.Error(codes.InvalidArgument, "message id is required")
	}
	return req, nil
}

func (s *Service) reply(v any) (*structpb.Struct, error) {
	out, err := Encode(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// statusFor converts a command failure into a gRPC status carrying the
// domain code and a message localized for the caller.
func (s *Service) statusFor(ctx context.Context, err error) error {
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) {
		s.logger.ErrorContext(ctx, "roll command failed", "error", err)
		return status.Errorf(codes.Internal, "roll command: %v", err)
	}
	if domainErr.Code.GRPCCode() == codes.Internal {
		s.logger.ErrorContext(ctx, "roll command failed", "code", domainErr.Code, "error", err)
	}
	catalog := i18n.GetCatalog(requestctx.LocaleFromContext(ctx))
	return domainErr.ToGRPCStatus(catalog.Locale(), catalog.Format(string(domainErr.Code), domainErr.Metadata))
}

func parseMode(raw string) message.AdvantageMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "advantage", "adv":
		return message.ModeAdvantage
	case "disadvantage", "dis":
		return message.ModeDisadvantage
	default:
		return message.ModeNormal
	}
}
