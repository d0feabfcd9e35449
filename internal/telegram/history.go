package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/gotd/td/tg"

	"github.com/user/whoisscan/internal/model"
)

// History returns up to limit messages of chatID older than offsetID,
// newest first. Service and empty messages are kept with an empty body so
// the page length reflects what the server returned.
func (c *Client) History(ctx context.Context, chatID int64, offsetID int64, limit int) ([]model.Message, error) {
	chat, err := c.resolveChat(ctx, chatID)
	if err != nil {
		return nil, err
	}

	var res tg.MessagesMessagesClass
	err = c.withFloodWait(ctx, "messages.getHistory", func() (err error) {
		res, err = c.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:     chat.inputPeer(),
			OffsetID: int(offsetID),
			Limit:    limit,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}

	var (
		messages []tg.MessageClass
		users    []tg.UserClass
		chats    []tg.ChatClass
	)
	switch r := res.(type) {
	case *tg.MessagesMessages:
		messages, users, chats = r.Messages, r.Users, r.Chats
	case *tg.MessagesMessagesSlice:
		messages, users, chats = r.Messages, r.Users, r.Chats
	case *tg.MessagesChannelMessages:
		messages, users, chats = r.Messages, r.Users, r.Chats
	case *tg.MessagesMessagesNotModified:
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected history response %T", res)
	}
	c.peers.addUsers(users)
	c.peers.addChats(chats)

	out := make([]model.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, convertMessage(m))
	}
	return out, nil
}

func convertMessage(m tg.MessageClass) model.Message {
	switch msg := m.(type) {
	case *tg.Message:
		out := model.NewMessage(int64(msg.ID), []model.Segment{model.PlainText(msg.Message)})
		out.Origin = model.OriginLive
		out.Timestamp = unixTimestamp(msg.Date)
		if from, ok := msg.GetFromID(); ok {
			out.Sender = senderRef(from)
		} else {
			out.Sender = senderRef(msg.PeerID)
		}
		return out
	case *tg.MessageService:
		out := model.Message{ID: int64(msg.ID), Origin: model.OriginLive, Timestamp: unixTimestamp(msg.Date)}
		if from, ok := msg.GetFromID(); ok {
			out.Sender = senderRef(from)
		}
		return out
	default:
		return model.Message{ID: int64(m.GetID()), Origin: model.OriginLive}
	}
}

func unixTimestamp(date int) string {
	return time.Unix(int64(date), 0).UTC().Format(time.RFC3339)
}

func senderRef(p tg.PeerClass) model.SenderRef {
	switch peer := p.(type) {
	case *tg.PeerUser:
		return model.SenderRef{Kind: model.SenderUser, ID: peer.UserID}
	case *tg.PeerChannel:
		return model.SenderRef{Kind: model.SenderChannel, ID: peer.ChannelID}
	case *tg.PeerChat:
		return model.SenderRef{Kind: model.SenderChat, ID: peer.ChatID}
	}
	return model.SenderRef{}
}
