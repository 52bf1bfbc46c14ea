package mailer

import (
	"fmt"

	"ai-support-be/internal/pkg/logger"

	"gopkg.in/gomail.v2"
)

// EscalationNotice is the plain-text notice sent to the agent a ticket was assigned to.
type EscalationNotice struct {
	AgentName  string
	AgentEmail string
	TicketID   string
	Subject    string
	Reason     string
}

type IEmailService interface {
	SendEscalationNotice(notice EscalationNotice) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	senderName  string
	logger      logger.ILogger
}

func NewEmailService(host string, port int, username, password, senderEmail, senderName string, log logger.ILogger) IEmailService {
	return &emailService{
		dialer:      gomail.NewDialer(host, port, username, password),
		senderEmail: senderEmail,
		senderName:  senderName,
		logger:      log,
	}
}

func (s *emailService) SendEscalationNotice(n EscalationNotice) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.senderEmail, s.senderName)
	m.SetAddressHeader("To", n.AgentEmail, n.AgentName)
	m.SetHeader("Subject", fmt.Sprintf("[Escalated] %s", n.Subject))
	m.SetBody("text/plain", fmt.Sprintf(
		"Hi %s,\n\nTicket %s was escalated to you.\n\nSubject: %s\nReason: %s\n",
		n.AgentName, n.TicketID, n.Subject, n.Reason,
	))

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Error("MAILER", "Failed to send escalation notice", map[string]interface{}{
			"ticket_id": n.TicketID,
			"to":        n.AgentEmail,
			"error":     err.Error(),
		})
		return err
	}

	s.logger.Info("MAILER", "Escalation notice sent", map[string]interface{}{
		"ticket_id": n.TicketID,
		"to":        n.AgentEmail,
	})
	return nil
}

// NopEmailService is used when SMTP is not configured.
type NopEmailService struct{}

func (NopEmailService) SendEscalationNotice(EscalationNotice) error { return nil }
