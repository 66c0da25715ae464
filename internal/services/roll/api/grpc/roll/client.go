package roll

import (
	"context"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the roll service with typed request and response values.
type Client struct {
	cc gogrpc.ClientConnInterface
}

// NewClient creates a roll service client on cc.
func NewClient(cc gogrpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call encodes req, invokes method and decodes the reply into resp.
func (c *Client) Call(ctx context.Context, method string, req, resp any, opts ...gogrpc.CallOption) error {
	in, err := Encode(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	return Decode(out, resp)
}

// CreateMessage stores msg.
func (c *Client) CreateMessage(ctx context.Context, req CreateMessageRequest) (MessageResponse, error) {
	var resp MessageResponse
	err := c.Call(ctx, MethodCreateMessage, req, &resp)
	return resp, err
}

// GetMessage fetches one message.
func (c *Client) GetMessage(ctx context.Context, messageID string) (OutcomeResponse, error) {
	var resp OutcomeResponse
	err := c.Call(ctx, MethodGetMessage, MessageRequest{MessageID: messageID}, &resp)
	return resp, err
}

// ProcessMessage runs the pipeline for one message.
func (c *Client) ProcessMessage(ctx context.Context, messageID string) (OutcomeResponse, error) {
	var resp OutcomeResponse
	err := c.Call(ctx, MethodProcessMessage, MessageRequest{MessageID: messageID}, &resp)
	return resp, err
}

// Reroll rerolls the selected dice.
func (c *Client) Reroll(ctx context.Context, req RerollRequest) (RerollResponse, error) {
	var resp RerollResponse
	err := c.Call(ctx, MethodReroll, req, &resp)
	return resp, err
}

// ListAuditRecords lists the audit trail of a message.
func (c *Client) ListAuditRecords(ctx context.Context, messageID string) (AuditRecordsResponse, error) {
	var resp AuditRecordsResponse
	err := c.Call(ctx, MethodListAuditRecords, MessageRequest{MessageID: messageID}, &resp)
	return resp, err
}
