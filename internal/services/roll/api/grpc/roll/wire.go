package roll

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/louisbranch/quickroll/internal/services/roll/commands"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/damage"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/lifecycle"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/message"
	"github.com/louisbranch/quickroll/internal/services/roll/domain/reroll"
	"github.com/louisbranch/quickroll/internal/services/roll/storage"
)

// MessageRequest addresses one message.
type MessageRequest struct {
	MessageID string `json:"message_id"`
	// Confirmed answers any confirmation prompt the command raises.
	Confirmed bool `json:"confirmed,omitempty"`
}

// CreateMessageRequest carries a message delivered by the host.
type CreateMessageRequest struct {
	Message message.Message `json:"message"`
}

// MessageResponse carries one message.
type MessageResponse struct {
	Message message.Message `json:"message"`
}

// ListMessagesRequest pages through stored messages.
type ListMessagesRequest struct {
	PageSize  int32  `json:"page_size,omitempty"`
	PageToken string `json:"page_token,omitempty"`
}

// ListMessagesResponse is one page of messages.
type ListMessagesResponse struct {
	Messages      []message.Message `json:"messages"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

// OutcomeResponse is a message with its presentation for the caller.
type OutcomeResponse struct {
	Message    message.Message    `json:"message"`
	View       lifecycle.View     `json:"view"`
	Controls   lifecycle.Controls `json:"controls"`
	MergedInto string             `json:"merged_into,omitempty"`
}

// ClassifyResponse carries a roll type.
type ClassifyResponse struct {
	RollType message.RollType `json:"roll_type"`
}

// RetroMultiRollRequest asks for a retroactive advantage or disadvantage.
type RetroMultiRollRequest struct {
	MessageID string `json:"message_id"`
	Mode      string `json:"mode"`
	Confirmed bool   `json:"confirmed,omitempty"`
}

// RerollRequest selects dice as "roll:term:die" refs.
type RerollRequest struct {
	MessageID string   `json:"message_id"`
	Dice      []string `json:"dice"`
	Keep      string   `json:"keep,omitempty"`
}

// RerollResponse reports a completed reroll.
type RerollResponse struct {
	OutcomeResponse
	Changes []reroll.Change  `json:"changes"`
	Dropped []reroll.Dropped `json:"dropped,omitempty"`
	Audit   *AuditRecord     `json:"audit,omitempty"`
	Notice  string           `json:"notice,omitempty"`
}

// CandidatesResponse lists rerollable dice.
type CandidatesResponse struct {
	Groups []reroll.CandidateGroup `json:"groups"`
}

// AuditRecord is the wire form of a reroll audit record.
type AuditRecord struct {
	ID         string             `json:"id"`
	MessageID  string             `json:"message_id"`
	Author     string             `json:"author"`
	KeepPolicy message.KeepPolicy `json:"keep_policy"`
	Rows       []storage.AuditRow `json:"rows"`
	TotalDelta int                `json:"total_delta"`
	CreatedAt  time.Time          `json:"created_at"`
}

// AuditRecordsResponse lists the audit records of a message.
type AuditRecordsResponse struct {
	Records []AuditRecord `json:"records"`
}

// ApplyDamageRequest describes an apply button press. A missing multiplier
// means 1 and a missing part means every damage roll.
type ApplyDamageRequest struct {
	MessageID  string   `json:"message_id"`
	Targets    []string `json:"targets"`
	Multiplier *float64 `json:"multiplier,omitempty"`
	Part       *int     `json:"part,omitempty"`
	TempHP     bool     `json:"temp_hp,omitempty"`
}

// ApplyDamageResponse reports per-target results.
type ApplyDamageResponse struct {
	Damages []damage.Damage   `json:"damages"`
	Applied []string          `json:"applied"`
	Failed  map[string]string `json:"failed,omitempty"`
	Notice  string            `json:"notice,omitempty"`
}

// Empty is the response of commands without a result.
type Empty struct{}

func outcomeToWire(out commands.Outcome) OutcomeResponse {
	return OutcomeResponse{
		Message:    out.Message,
		View:       out.View,
		Controls:   out.Controls,
		MergedInto: out.MergedInto,
	}
}

func auditToWire(rec storage.AuditRecord) AuditRecord {
	return AuditRecord{
		ID:         rec.ID,
		MessageID:  rec.MessageID,
		Author:     rec.Author,
		KeepPolicy: rec.KeepPolicy,
		Rows:       rec.Rows,
		TotalDelta: rec.TotalDelta,
		CreatedAt:  rec.CreatedAt,
	}
}

// Decode reads a Struct payload into target.
func Decode(in *structpb.Struct, target any) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// Encode writes v into a Struct payload.
func Encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return out, nil
}
