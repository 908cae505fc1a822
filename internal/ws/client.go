package ws

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/base43/calicanto/internal/chat"
	"github.com/base43/calicanto/internal/models"
)

// Client is one open connection for one authenticated user.
type Client struct {
	user   *models.User
	conn   *websocket.Conn
	hub    *Hub
	send   chan interface{}
	groups []string
}

// run performs the open sequence and then pumps inbound events until the
// transport closes.
func (c *Client) run() {
	c.open()
	c.readPump()
}

// open subscribes the connection to every active channel plus the
// presence group and sends the private initial snapshot.
func (c *Client) open() {
	channels, err := chat.ListActive(c.hub.db)
	if err != nil {
		log.Printf("Failed to list channels for user %d: %v", c.user.ID, err)
	}
	for _, ch := range channels {
		group := channelGroup(ch.ID)
		c.groups = append(c.groups, group)
		c.hub.Join(group, c)
	}
	c.hub.Join(presenceGroup, c)

	snapshot, err := chat.UnreadSnapshot(c.hub.db, c.user.ID)
	if err != nil {
		log.Printf("Failed to build channel snapshot for user %d: %v", c.user.ID, err)
		snapshot = []chat.ChannelUnread{}
	}

	c.queue(&InitialDataEvent{
		Type:        "initial_data",
		Channels:    snapshot,
		OnlineUsers: c.hub.OnlineUsers(),
		CurrentUser: summarize(c.user),
	})
}

// queue hands an event to the write pump without blocking.
func (c *Client) queue(event interface{}) {
	select {
	case c.send <- event:
	default:
		log.Printf("Send channel full for user %d, dropping event", c.user.ID)
	}
}

func (c *Client) sendError(message string) {
	c.queue(&ErrorEvent{Type: "error", Message: message})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var event map[string]interface{}
		if err := json.Unmarshal(data, &event); err != nil {
			c.sendError("Invalid JSON")
			continue
		}

		eventType, ok := event["type"].(string)
		if !ok {
			c.sendError("Missing event type")
			continue
		}

		switch eventType {
		case "send_message":
			c.handleSendMessage(event)
		case "mark_as_read":
			c.handleMarkAsRead(event)
		case "typing":
			c.handleTyping(event)
		case "delete_message":
			c.handleDeleteMessage(event)
		default:
			c.sendError("Unknown event type")
		}
	}
}

func (c *Client) handleSendMessage(event map[string]interface{}) {
	channelID, ok := event["channel_id"].(float64)
	if !ok {
		c.sendError(__("channel and content or file required"))
		return
	}

	content, _ := event["content"].(string)

	var file *chat.FilePayload
	if raw, ok := event["file"].(map[string]interface{}); ok {
		name, _ := raw["name"].(string)
		data, _ := raw["content"].(string)
		file = &chat.FilePayload{Name: name, Content: data}
	}

	msg, err := c.hub.pipeline.Send(c.user.ID, chat.SendRequest{
		ChannelID: int(channelID),
		Content:   content,
		File:      file,
	})
	if err != nil {
		if chat.IsValidationError(err) {
			c.sendError(__(err.Error()))
		} else {
			log.Printf("Failed to create message for user %d: %v", c.user.ID, err)
			c.sendError(__("failed to create message"))
		}
		return
	}

	author := summarize(c.user)
	c.hub.Broadcast(channelGroup(msg.ChannelID), &NewMessageEvent{
		Type:    "new_message",
		Message: messagePayload(msg, &author),
	})

	if c.hub.notifier != nil {
		var channelName string
		c.hub.db.QueryRow("SELECT name FROM channels WHERE id = ?", msg.ChannelID).Scan(&channelName)
		go c.hub.notifier.NotifyChannelMessage(msg.ChannelID, c.user.ID, c.user.Name(), channelName, c.hub.OnlineUserIDs())
	}
}

func (c *Client) handleMarkAsRead(event map[string]interface{}) {
	channelID, ok := event["channel_id"].(float64)
	if !ok {
		c.sendError(__("invalid channel id"))
		return
	}

	if err := chat.MarkRead(c.hub.db, c.user.ID, int(channelID)); err != nil {
		log.Printf("Failed to mark channel %d read for user %d: %v", int(channelID), c.user.ID, err)
		c.sendError(__("failed to mark as read"))
		return
	}

	c.queue(&MarkedAsReadEvent{Type: "marked_as_read", ChannelID: int(channelID)})
}

func (c *Client) handleTyping(event map[string]interface{}) {
	channelID, ok := event["channel_id"].(float64)
	if !ok {
		c.sendError(__("invalid channel id"))
		return
	}

	isTyping, _ := event["is_typing"].(bool)

	// The typing user never sees their own indicator.
	c.hub.BroadcastExcept(channelGroup(int(channelID)), &UserTypingEvent{
		Type:      "user_typing",
		UserID:    c.user.ID,
		UserName:  c.user.Name(),
		ChannelID: int(channelID),
		IsTyping:  isTyping,
	}, c)
}

func (c *Client) handleDeleteMessage(event map[string]interface{}) {
	messageID, ok := event["message_id"].(float64)
	if !ok {
		c.sendError(__("invalid message id"))
		return
	}

	msg, err := c.hub.pipeline.SoftDelete(c.user.ID, int(messageID))
	if err != nil {
		// Deleting someone else's message or a missing one is a silent no-op.
		return
	}

	c.hub.Broadcast(channelGroup(msg.ChannelID), &MessageDeletedEvent{
		Type:      "message_deleted",
		MessageID: msg.ID,
		ChannelID: msg.ChannelID,
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}

			data, _ := json.Marshal(message)
			w.Write(data)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
