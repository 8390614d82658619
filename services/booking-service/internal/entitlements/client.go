package entitlements

import (
	"context"
	"fmt"
	"time"

	"github.com/expertmarket/bookingengine/libs/grpcx"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client checks entitlements against the remote entitlement service.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient dials addr lazily. timeout bounds each check made without a deadline.
func NewClient(addr string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	conn, err := grpcx.NewClient(addr, grpcx.DialOptions{CallTimeout: timeout})
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) CanUse(ctx context.Context, providerID string, feature string) (bool, error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldProviderID: structpb.NewStringValue(providerID),
		fieldFeature:    structpb.NewStringValue(feature),
	}}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, canUseMethod, req, out); err != nil {
		return false, fmt.Errorf("entitlements CanUse: %w", err)
	}
	allowed, ok := out.GetFields()[fieldAllowed]
	if !ok {
		return false, fmt.Errorf("entitlements CanUse: response missing %q", fieldAllowed)
	}
	return allowed.GetBoolValue(), nil
}
