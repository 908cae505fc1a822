package push

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// Notifier sends Web Push notifications to subscribed users.
type Notifier struct {
	db              *sql.DB
	vapidPublicKey  string
	vapidPrivateKey string
}

// Subscription represents a stored Web Push subscription.
type Subscription struct {
	Endpoint  string `json:"endpoint"`
	KeyP256dh string `json:"p256dh"`
	KeyAuth   string `json:"auth"`
}

// NewNotifier creates a push Notifier. Returns nil if VAPID keys are empty.
func NewNotifier(db *sql.DB, vapidPublicKey, vapidPrivateKey string) *Notifier {
	if vapidPublicKey == "" || vapidPrivateKey == "" {
		return nil
	}
	return &Notifier{
		db:              db,
		vapidPublicKey:  vapidPublicKey,
		vapidPrivateKey: vapidPrivateKey,
	}
}

// VAPIDPublicKey returns the public VAPID key for the frontend.
func (n *Notifier) VAPIDPublicKey() string {
	return n.vapidPublicKey
}

// payload is the JSON structure sent inside the push notification.
type payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// NotifyChannelMessage notifies subscribed users about a new channel
// message. Users with an open connection already saw it; the sender never
// gets one.
func (n *Notifier) NotifyChannelMessage(channelID, senderID int, senderName, channelName string, onlineUserIDs []int) {
	if n == nil {
		return
	}

	online := make(map[int]bool, len(onlineUserIDs))
	for _, id := range onlineUserIDs {
		online[id] = true
	}

	rows, err := n.db.Query(
		"SELECT user_id, endpoint, p256dh, auth FROM push_subscriptions WHERE user_id != ? AND revoked_at IS NULL",
		senderID,
	)
	if err != nil {
		log.Printf("push: failed to query subscriptions for channel %d: %v", channelID, err)
		return
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		var userID int
		var sub Subscription
		if err := rows.Scan(&userID, &sub.Endpoint, &sub.KeyP256dh, &sub.KeyAuth); err != nil {
			continue
		}
		if online[userID] {
			continue
		}
		subs = append(subs, sub)
	}
	rows.Close()

	if len(subs) == 0 {
		return
	}

	title := "Nuevo mensaje"
	if strings.TrimSpace(channelName) != "" {
		title = fmt.Sprintf("Nuevo mensaje en #%s", channelName)
	}
	p := payload{
		Title: title,
		Body:  fmt.Sprintf("Nuevo mensaje de %s", senderName),
		URL:   "/chat",
	}
	data, _ := json.Marshal(p)

	log.Printf("push: sending notification to %d subscription(s) for channel %d", len(subs), channelID)
	for _, sub := range subs {
		go n.sendToSubscription(sub, data)
	}
}

func (n *Notifier) sendToSubscription(sub Subscription, data []byte) {
	s := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.KeyP256dh,
			Auth:   sub.KeyAuth,
		},
	}

	resp, err := webpush.SendNotification(data, s, &webpush.Options{
		VAPIDPublicKey:  n.vapidPublicKey,
		VAPIDPrivateKey: n.vapidPrivateKey,
		Subscriber:      "mailto:push@calicanto.local",
		TTL:             86400,
	})
	if err != nil {
		log.Printf("push: failed to send to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// 410 Gone or 404 means the subscription is expired
	if resp.StatusCode == 410 || resp.StatusCode == 404 {
		n.db.Exec("DELETE FROM push_subscriptions WHERE endpoint = ?", sub.Endpoint)
		log.Printf("push: removed expired subscription %s (status %d)", sub.Endpoint, resp.StatusCode)
	}
}
