package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/gotd/td/tg"

	"github.com/user/whoisscan/internal/model"
)

// Resolver looks up the authors of messages in one chat.
type Resolver struct {
	client *Client
	chatID int64
}

// Resolver returns a sender resolver bound to chatID.
func (c *Client) Resolver(chatID int64) *Resolver {
	return &Resolver{client: c, chatID: chatID}
}

func (r *Resolver) Resolve(ctx context.Context, msg model.Message) (model.Identity, error) {
	switch msg.Sender.Kind {
	case model.SenderUser:
		u, err := r.user(ctx, msg)
		if err != nil {
			return model.Identity{}, err
		}
		return model.IdentityOf(convertUser(u)), nil
	case model.SenderChannel, model.SenderChat:
		kind := peerChat
		if msg.Sender.Kind == model.SenderChannel {
			kind = peerChannel
		}
		ci, ok := r.client.peers.chat(kind, msg.Sender.ID)
		if !ok {
			return model.Identity{}, fmt.Errorf("unknown %s %d", msg.Sender.Kind, msg.Sender.ID)
		}
		id := model.Identity{DisplayName: ci.title}
		if ci.username != "" {
			id.ProfileLink = "https://t.me/" + ci.username
		}
		return id, nil
	}
	return model.Identity{}, errors.New("message has no sender")
}

func (r *Resolver) user(ctx context.Context, msg model.Message) (*tg.User, error) {
	if u, ok := r.client.peers.user(msg.Sender.ID); ok {
		return u, nil
	}

	chat, err := r.client.resolveChat(ctx, r.chatID)
	if err != nil {
		return nil, err
	}
	var users []tg.UserClass
	err = r.client.withFloodWait(ctx, "users.getUsers", func() (err error) {
		users, err = r.client.api.UsersGetUsers(ctx, []tg.InputUserClass{
			&tg.InputUserFromMessage{Peer: chat.inputPeer(), MsgID: int(msg.ID), UserID: msg.Sender.ID},
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", msg.Sender.ID, err)
	}
	r.client.peers.addUsers(users)

	if u, ok := r.client.peers.user(msg.Sender.ID); ok {
		return u, nil
	}
	return nil, fmt.Errorf("user %d not returned", msg.Sender.ID)
}
