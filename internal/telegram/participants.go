package telegram

import (
	"context"
	"fmt"

	"github.com/gotd/td/tg"

	"github.com/user/whoisscan/internal/model"
)

const participantsPageSize = 200

// Participants lists the members of chatID. For large channels the server
// caps how many members it reveals.
func (c *Client) Participants(ctx context.Context, chatID int64) ([]model.Sender, error) {
	chat, err := c.resolveChat(ctx, chatID)
	if err != nil {
		return nil, err
	}

	if chat.kind == peerChat {
		var full *tg.MessagesChatFull
		err := c.withFloodWait(ctx, "messages.getFullChat", func() (err error) {
			full, err = c.api.MessagesGetFullChat(ctx, chat.id)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("get full chat: %w", err)
		}
		c.peers.addUsers(full.Users)
		return convertUsers(full.Users), nil
	}

	var members []model.Sender
	channel := &tg.InputChannel{ChannelID: chat.id, AccessHash: chat.accessHash}
	for offset := 0; ; {
		var res tg.ChannelsChannelParticipantsClass
		err := c.withFloodWait(ctx, "channels.getParticipants", func() (err error) {
			res, err = c.api.ChannelsGetParticipants(ctx, &tg.ChannelsGetParticipantsRequest{
				Channel: channel,
				Filter:  &tg.ChannelParticipantsRecent{},
				Offset:  offset,
				Limit:   participantsPageSize,
			})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("get participants: %w", err)
		}
		page, ok := res.(*tg.ChannelsChannelParticipants)
		if !ok {
			break
		}
		c.peers.addUsers(page.Users)
		members = append(members, convertUsers(page.Users)...)

		offset += len(page.Participants)
		if len(page.Participants) == 0 || offset >= page.Count {
			break
		}
	}
	c.logger.Info("participants loaded", "chat_id", chatID, "count", len(members))
	return members, nil
}

func convertUsers(users []tg.UserClass) []model.Sender {
	out := make([]model.Sender, 0, len(users))
	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			out = append(out, convertUser(user))
		}
	}
	return out
}

func convertUser(u *tg.User) model.Sender {
	s := model.Sender{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
		Bot:       u.Bot,
	}
	if s.Username == "" {
		for _, un := range u.Usernames {
			if un.Active {
				s.Username = un.Username
				break
			}
		}
	}
	return s
}
