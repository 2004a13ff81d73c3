package notify

import (
	"fmt"
	"log"
	"net/smtp"

	"github.com/agrovest/backend/internal/config"
	"github.com/agrovest/backend/internal/domain"
)

// NewNotifier returns the appropriate Notifier based on config. If no SMTP
// host is configured, returns a log-only notifier for development.
func NewNotifier(cfg config.SMTPConfig) domain.Notifier {
	if cfg.Host == "" {
		log.Println("[Notify] Using log notifier (no SMTP configured)")
		return &LogNotifier{}
	}
	log.Printf("[Notify] Using SMTP notifier (%s:%s)", cfg.Host, cfg.Port)
	return &SMTPNotifier{cfg: cfg}
}

// LogNotifier writes notifications to the process log
type LogNotifier struct{}

func (n *LogNotifier) Send(to, subject, body string) {
	log.Printf("[Notify] to=%s subject=%q", to, subject)
}

// SMTPNotifier delivers mail over plain SMTP. Send is fire-and-forget: it
// returns immediately and delivery failures are only logged.
type SMTPNotifier struct {
	cfg config.SMTPConfig
}

func (n *SMTPNotifier) Send(to, subject, body string) {
	go func() {
		msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
			n.cfg.From, to, subject, body)
		addr := n.cfg.Host + ":" + n.cfg.Port
		if err := smtp.SendMail(addr, nil, n.cfg.From, []string{to}, []byte(msg)); err != nil {
			log.Printf("[Notify] Failed to send to %s: %v", to, err)
		}
	}()
}
