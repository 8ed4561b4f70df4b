// Package notification provides the email delivery node processor. Delivery
// goes through a Mailer so real transports and the in-memory mock share the
// same contract.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aubira/flowd/pkg/models"
	"github.com/aubira/flowd/pkg/processors"
)

var typeTags = []string{"email", "notification", "send-email"}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const defaultFrom = "noreply@flowd.dev"

// Message is a prepared outbound email.
type Message struct {
	To           string         `json:"to"`
	From         string         `json:"from"`
	Subject      string         `json:"subject"`
	Body         string         `json:"body"`
	HTML         string         `json:"html"`
	CC           string         `json:"cc,omitempty"`
	BCC          string         `json:"bcc,omitempty"`
	Priority     string         `json:"priority"`
	Template     string         `json:"template,omitempty"`
	TemplateData map[string]any `json:"template_data,omitempty"`
}

// Delivery reports the outcome of a send.
type Delivery struct {
	MessageID string
	Provider  string
	SentAt    time.Time
}

// Mailer sends a prepared message.
type Mailer interface {
	Send(ctx context.Context, msg *Message) (*Delivery, error)
}

// MockMailer records messages instead of delivering them.
type MockMailer struct {
	Sent []*Message
}

func NewMockMailer() *MockMailer {
	return &MockMailer{}
}

func (m *MockMailer) Send(_ context.Context, msg *Message) (*Delivery, error) {
	m.Sent = append(m.Sent, msg)

	return &Delivery{
		MessageID: "mock_" + uuid.NewString(),
		Provider:  "mock",
		SentAt:    time.Now().UTC(),
	}, nil
}

type Processor struct {
	mailer Mailer
	logger *slog.Logger
}

func New(mailer Mailer, logger *slog.Logger) *Processor {
	return &Processor{
		mailer: mailer,
		logger: logger.With("processor", "notification"),
	}
}

// Types lists the node type tags this processor handles.
func Types() []string {
	return append([]string(nil), typeTags...)
}

func (p *Processor) CanProcess(nodeType string) bool {
	for _, tag := range typeTags {
		if tag == nodeType {
			return true
		}
	}

	return false
}

func (p *Processor) RequiredInputs(_ *models.Node) []string {
	return []string{"to", "subject", "body"}
}

func (p *Processor) ValidateInputs(node *models.Node, inputs map[string]any) error {
	for _, key := range p.RequiredInputs(node) {
		value, ok := inputs[key].(string)
		if !ok || value == "" {
			return fmt.Errorf("missing required input %q for node %s", key, node.ID)
		}
	}

	to, _ := inputs["to"].(string)
	if !emailPattern.MatchString(to) {
		return fmt.Errorf("invalid email address: %s", to)
	}

	return nil
}

func (p *Processor) Process(ctx context.Context, node *models.Node, inputs map[string]any, execCtx *models.ExecutionContext) *models.NodeExecutionResult {
	started := time.Now()

	p.logger.InfoContext(ctx, "Processing notification node",
		"node_id", node.ID, "to", inputs["to"], "execution_id", execCtx.ExecutionID)

	if err := p.ValidateInputs(node, inputs); err != nil {
		return processors.FailedResult(node, inputs, err, started)
	}

	msg := p.prepareMessage(node, inputs)

	delivery, err := p.mailer.Send(ctx, msg)
	if err != nil {
		p.logger.ErrorContext(ctx, "Notification node failed",
			"node_id", node.ID, "error", err, "execution_id", execCtx.ExecutionID)

		result := processors.FailedResult(node, inputs, err, started)
		result.Outputs = map[string]any{"email_sent": false, "error": err.Error()}

		return result
	}

	outputs := make(map[string]any, len(inputs)+6)
	for k, v := range inputs {
		outputs[k] = v
	}

	outputs["email_sent"] = true
	outputs["message_id"] = delivery.MessageID
	outputs["to"] = msg.To
	outputs["subject"] = msg.Subject
	outputs["sent_at"] = delivery.SentAt.Format(time.RFC3339)
	outputs["provider"] = delivery.Provider

	p.logger.InfoContext(ctx, "Notification node completed",
		"node_id", node.ID, "message_id", delivery.MessageID)

	return processors.CompletedResult(node, inputs, outputs, started)
}

func (p *Processor) prepareMessage(node *models.Node, inputs map[string]any) *Message {
	body, _ := inputs["body"].(string)

	msg := &Message{
		To:       stringInput(inputs, "to"),
		From:     firstNonEmpty(stringInput(inputs, "from"), configString(node, "from"), defaultFrom),
		Subject:  stringInput(inputs, "subject"),
		Body:     body,
		HTML:     firstNonEmpty(stringInput(inputs, "html"), toHTML(body)),
		CC:       firstNonEmpty(stringInput(inputs, "cc"), configString(node, "cc")),
		BCC:      firstNonEmpty(stringInput(inputs, "bcc"), configString(node, "bcc")),
		Priority: firstNonEmpty(stringInput(inputs, "priority"), configString(node, "priority"), "normal"),
		Template: configString(node, "template"),
	}

	if data, ok := inputs["template_data"].(map[string]any); ok {
		msg.TemplateData = data
	}

	return msg
}

// toHTML wraps plain text in paragraph tags, turning blank lines into
// paragraph breaks and single newlines into line breaks.
func toHTML(text string) string {
	if text == "" {
		return ""
	}

	html := strings.ReplaceAll(text, "\n\n", "</p><p>")
	html = strings.ReplaceAll(html, "\n", "<br>")

	return "<p>" + html + "</p>"
}

func stringInput(inputs map[string]any, key string) string {
	value, _ := inputs[key].(string)

	return value
}

func configString(node *models.Node, key string) string {
	value, _ := processors.ConfigString(node, key)

	return value
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
