package telegram

import (
	"context"
	"time"

	"github.com/gotd/td/tgerr"
)

// maxFloodWait is the longest server-imposed pause a call sleeps through.
// Longer waits fail the call.
const maxFloodWait = 5 * time.Minute

// withFloodWait runs call, sleeping through FLOOD_WAIT answers and
// repeating the same request until it succeeds or fails otherwise.
func (c *Client) withFloodWait(ctx context.Context, method string, call func() error) error {
	for {
		err := call()
		if err == nil {
			return nil
		}
		d, ok := tgerr.AsFloodWait(err)
		if !ok || d > maxFloodWait {
			return err
		}
		c.logger.Warn("flood wait", "method", method, "wait", d)
		if retry, err := tgerr.FloodWait(ctx, err, c.floodWait...); !retry {
			return err
		}
	}
}
