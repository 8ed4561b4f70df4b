package notification

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aubira/flowd/pkg/models"
)

type failingMailer struct{}

func (failingMailer) Send(context.Context, *Message) (*Delivery, error) {
	return nil, errors.New("smtp unavailable")
}

func newExecContext() *models.ExecutionContext {
	return &models.ExecutionContext{
		ExecutionID: "exec-1",
		WorkflowID:  "wf-1",
		UserID:      "user-1",
		Variables:   map[string]any{},
		NodeResults: map[string]*models.NodeExecutionResult{},
		StartedAt:   time.Now(),
	}
}

func TestCanProcess(t *testing.T) {
	p := New(NewMockMailer(), slog.Default())

	for _, tag := range []string{"email", "notification", "send-email"} {
		assert.True(t, p.CanProcess(tag), tag)
	}

	assert.False(t, p.CanProcess("http"))
}

func TestSendNotification(t *testing.T) {
	mailer := NewMockMailer()
	p := New(mailer, slog.Default())

	node := &models.Node{ID: "mail-1", Type: "email", Config: map[string]any{}}

	inputs := map[string]any{
		"to":      "user@example.com",
		"subject": "Build finished",
		"body":    "All green.\n\nDetails attached.",
	}

	result := p.Process(context.Background(), node, inputs, newExecContext())

	require.Equal(t, models.NodeStatusCompleted, result.Status, result.Error)
	assert.Equal(t, true, result.Outputs["email_sent"])
	assert.Equal(t, "mock", result.Outputs["provider"])
	assert.NotEmpty(t, result.Outputs["message_id"])
	assert.Equal(t, "user@example.com", result.Outputs["to"])

	require.Len(t, mailer.Sent, 1)
	sent := mailer.Sent[0]
	assert.Equal(t, "noreply@flowd.dev", sent.From)
	assert.Equal(t, "normal", sent.Priority)
	assert.Equal(t, "<p>All green.</p><p>Details attached.</p>", sent.HTML)
}

func TestConfigDefaultsApply(t *testing.T) {
	mailer := NewMockMailer()
	p := New(mailer, slog.Default())

	node := &models.Node{
		ID:   "mail-1",
		Type: "notification",
		Config: map[string]any{
			"from":     "alerts@example.com",
			"cc":       "ops@example.com",
			"priority": "high",
		},
	}

	inputs := map[string]any{
		"to":      "user@example.com",
		"subject": "Disk alert",
		"body":    "90% full",
	}

	result := p.Process(context.Background(), node, inputs, newExecContext())

	require.Equal(t, models.NodeStatusCompleted, result.Status, result.Error)
	require.Len(t, mailer.Sent, 1)
	assert.Equal(t, "alerts@example.com", mailer.Sent[0].From)
	assert.Equal(t, "ops@example.com", mailer.Sent[0].CC)
	assert.Equal(t, "high", mailer.Sent[0].Priority)
}

func TestInvalidEmailAddress(t *testing.T) {
	p := New(NewMockMailer(), slog.Default())

	node := &models.Node{ID: "mail-1", Type: "email", Config: map[string]any{}}

	for _, address := range []string{"not-an-email", "user@", "user @example.com", "user@example"} {
		result := p.Process(context.Background(), node, map[string]any{
			"to":      address,
			"subject": "x",
			"body":    "y",
		}, newExecContext())

		require.Equal(t, models.NodeStatusFailed, result.Status, address)
		assert.Contains(t, result.Error, "invalid email address")
	}
}

func TestMissingRequiredInputs(t *testing.T) {
	p := New(NewMockMailer(), slog.Default())

	node := &models.Node{ID: "mail-1", Type: "email", Config: map[string]any{}}

	result := p.Process(context.Background(), node, map[string]any{
		"to":      "user@example.com",
		"subject": "no body",
	}, newExecContext())

	require.Equal(t, models.NodeStatusFailed, result.Status)
	assert.Contains(t, result.Error, `missing required input "body"`)
}

func TestMailerFailure(t *testing.T) {
	p := New(failingMailer{}, slog.Default())

	node := &models.Node{ID: "mail-1", Type: "email", Config: map[string]any{}}

	result := p.Process(context.Background(), node, map[string]any{
		"to":      "user@example.com",
		"subject": "x",
		"body":    "y",
	}, newExecContext())

	require.Equal(t, models.NodeStatusFailed, result.Status)
	assert.Equal(t, "smtp unavailable", result.Error)
	assert.Equal(t, false, result.Outputs["email_sent"])
}
