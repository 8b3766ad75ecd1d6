package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"

	"fantasy-tournament-system/utils"
)

// NotificationService pushes user-facing notifications to the external
// notification gateway. Delivery is best-effort: sends run in a goroutine and
// failures are logged, never propagated, so scoring and finalization are not
// coupled to the gateway's availability.
type NotificationService struct {
	Enabled bool
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewNotificationService() *NotificationService {
	baseURL := os.Getenv("NOTIFICATION_SERVICE_URL")
	return &NotificationService{
		Enabled: baseURL != "",
		BaseURL: baseURL,
		Token:   os.Getenv("FANTASY_SERVICE_TOKEN"),
		Client:  utils.HTTPClient,
	}
}

type notificationPayload struct {
	UserID string `json:"user_id,omitempty"`
	Type   string `json:"type"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// NotifyUser sends one notification to a single user.
func (n *NotificationService) NotifyUser(userID, notificationType, title, body string) {
	n.dispatch("/api/v1/notifications/send", notificationPayload{
		UserID: userID,
		Type:   notificationType,
		Title:  title,
		Body:   body,
	})
}

// NotifyAll broadcasts a notification to every active user.
func (n *NotificationService) NotifyAll(notificationType, title, body string) {
	n.dispatch("/api/v1/notifications/broadcast", notificationPayload{
		Type:  notificationType,
		Title: title,
		Body:  body,
	})
}

func (n *NotificationService) dispatch(path string, payload notificationPayload) {
	if !n.Enabled {
		log.Printf("Notifications disabled. Skipping: %s", payload.Title)
		return
	}

	go func() {
		body, err := json.Marshal(payload)
		if err != nil {
			log.Printf("❌ Failed to encode notification '%s': %v", payload.Title, err)
			return
		}

		req, err := http.NewRequest("POST", fmt.Sprintf("%s%s", n.BaseURL, path), bytes.NewReader(body))
		if err != nil {
			log.Printf("❌ Failed to build notification request: %v", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Service-Token", n.Token)

		resp, err := n.Client.Do(req)
		if err != nil {
			log.Printf("⚠️ Failed to send notification '%s': %v", payload.Title, err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			log.Printf("⚠️ Notification gateway returned status %d for '%s'", resp.StatusCode, payload.Title)
			return
		}
		log.Printf("📣 Sent notification: %s", payload.Title)
	}()
}
