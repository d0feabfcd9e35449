package telegram

import (
	"context"
	"fmt"
	"sync"

	"github.com/gotd/td/telegram/query/dialogs"
	"github.com/gotd/td/tg"
)

// Bot API style chat IDs: channels and supergroups are -100<id>, basic
// groups are -<id>.
const channelIDOffset = 1_000_000_000_000

const dialogPageSize = 100

type peerKind int

const (
	peerChat peerKind = iota
	peerChannel
)

type chatInfo struct {
	kind       peerKind
	id         int64
	accessHash int64
	title      string
	username   string
}

func (ci chatInfo) inputPeer() tg.InputPeerClass {
	if ci.kind == peerChannel {
		return &tg.InputPeerChannel{ChannelID: ci.id, AccessHash: ci.accessHash}
	}
	return &tg.InputPeerChat{ChatID: ci.id}
}

// splitChatID maps a configured chat ID to its peer kind and raw ID.
func splitChatID(chatID int64) (peerKind, int64, error) {
	switch {
	case chatID < -channelIDOffset:
		return peerChannel, -chatID - channelIDOffset, nil
	case chatID < 0:
		return peerChat, -chatID, nil
	default:
		return 0, 0, fmt.Errorf("chat id %d is not a group or channel", chatID)
	}
}

// peerCache remembers the chats and users seen in API responses.
type peerCache struct {
	mu       sync.RWMutex
	channels map[int64]chatInfo
	chats    map[int64]chatInfo
	users    map[int64]*tg.User
}

func newPeerCache() *peerCache {
	return &peerCache{
		channels: make(map[int64]chatInfo),
		chats:    make(map[int64]chatInfo),
		users:    make(map[int64]*tg.User),
	}
}

func (p *peerCache) addChats(chats []tg.ChatClass) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range chats {
		switch c := ch.(type) {
		case *tg.Chat:
			p.chats[c.ID] = chatInfo{kind: peerChat, id: c.ID, title: c.Title}
		case *tg.Channel:
			p.channels[c.ID] = chatInfo{kind: peerChannel, id: c.ID, accessHash: c.AccessHash, title: c.Title, username: c.Username}
		case *tg.ChannelForbidden:
			p.channels[c.ID] = chatInfo{kind: peerChannel, id: c.ID, accessHash: c.AccessHash, title: c.Title}
		}
	}
}

func (p *peerCache) addUsers(users []tg.UserClass) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			p.users[user.ID] = user
		}
	}
}

func (p *peerCache) chat(kind peerKind, id int64) (chatInfo, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if kind == peerChannel {
		ci, ok := p.channels[id]
		return ci, ok
	}
	ci, ok := p.chats[id]
	return ci, ok
}

func (p *peerCache) user(id int64) (*tg.User, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	u, ok := p.users[id]
	return u, ok
}

// resolveChat finds the access data for chatID, paging through the
// account's dialogs until the chat shows up.
func (c *Client) resolveChat(ctx context.Context, chatID int64) (chatInfo, error) {
	kind, id, err := splitChatID(chatID)
	if err != nil {
		return chatInfo{}, err
	}
	if ci, ok := c.peers.chat(kind, id); ok {
		return ci, nil
	}

	query := dialogs.QueryFunc(func(ctx context.Context, req dialogs.Request) (tg.MessagesDialogsClass, error) {
		var res tg.MessagesDialogsClass
		err := c.withFloodWait(ctx, "messages.getDialogs", func() (err error) {
			res, err = c.api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
				OffsetDate: req.OffsetDate,
				OffsetID:   req.OffsetID,
				OffsetPeer: req.OffsetPeer,
				Limit:      req.Limit,
			})
			return err
		})
		if err != nil {
			return nil, err
		}
		switch d := res.(type) {
		case *tg.MessagesDialogs:
			c.peers.addChats(d.Chats)
			c.peers.addUsers(d.Users)
		case *tg.MessagesDialogsSlice:
			c.peers.addChats(d.Chats)
			c.peers.addUsers(d.Users)
		}
		return res, nil
	})

	iter := dialogs.NewIterator(query, dialogPageSize)
	for iter.Next(ctx) {
		if ci, ok := c.peers.chat(kind, id); ok {
			return ci, nil
		}
	}
	if err := iter.Err(); err != nil {
		return chatInfo{}, fmt.Errorf("get dialogs: %w", err)
	}
	if ci, ok := c.peers.chat(kind, id); ok {
		return ci, nil
	}
	return chatInfo{}, fmt.Errorf("chat %d not found among dialogs", chatID)
}
