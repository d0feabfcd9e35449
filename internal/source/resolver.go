package source

import (
	"context"
	"errors"

	"github.com/user/whoisscan/internal/model"
)

// ErrNoSender is returned for archive messages whose author was not exported,
// typically deleted accounts.
var ErrNoSender = errors.New("message has no sender name")

// ArchiveResolver names senders by the display string stored in the export.
// Exports carry no usable handle, so no profile link is produced.
type ArchiveResolver struct{}

func (ArchiveResolver) Resolve(ctx context.Context, msg model.Message) (model.Identity, error) {
	if msg.Sender.Name == "" {
		return model.Identity{}, ErrNoSender
	}
	return model.Identity{DisplayName: msg.Sender.Name}, nil
}
