package emailsvc

import (
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trezcool/canteen/core"
	logsvc "github.com/trezcool/canteen/services/logger"
)

func newTestConfig() *core.Config {
	return &core.Config{
		AppName:          "Canteen",
		Debug:            true,
		TestMode:         true,
		DefaultFromEmail: mail.Address{Name: "Canteen", Address: "noreply@canteen.test"},
	}
}

func TestNewService(t *testing.T) {
	conf := newTestConfig()
	logger := logsvc.NewRollbarLogger(zap.NewNop(), conf)

	_, ok := NewService(conf, logger).(*consoleService)
	assert.True(t, ok, "debug should print emails")

	conf.Debug = false
	_, ok = NewService(conf, logger).(*consoleService)
	assert.True(t, ok, "no sendgrid key should print emails")

	conf.SendgridApiKey = "SG.key"
	_, ok = NewService(conf, logger).(*sendgridService)
	assert.True(t, ok)
}

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	conf := newTestConfig()
	svc := NewConsoleServiceMock(conf, logsvc.NewRollbarLogger(zap.NewNop(), conf))

	withAttachment := &core.EmailMessage{
		To:      []mail.Address{{Name: "Principal", Address: "principal@canteen.test"}},
		Subject: "report",
		BodyStr: "see attached",
	}
	require.NoError(t, withAttachment.Attach(strings.NewReader("%PDF-1.3"), "report.pdf"))

	svc.SendMessages(
		withAttachment,
		&core.EmailMessage{Subject: "nobody", BodyStr: "hello"},
		&core.EmailMessage{To: withAttachment.To, Subject: "empty"},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "see attached", sent[0].TextContent)
	require.Len(t, sent[0].Attachments, 1)
	assert.Equal(t, "application/pdf", sent[0].Attachments[0].ContentType)
}

func Test_consoleService_format(t *testing.T) {
	conf := newTestConfig()
	svc := NewConsoleServiceMock(conf, logsvc.NewRollbarLogger(zap.NewNop(), conf))

	msg := core.EmailMessage{
		To:          []mail.Address{{Address: "a@canteen.test"}, {Name: "B", Address: "b@canteen.test"}},
		Subject:     "hi",
		TextContent: "plain",
		HTMLContent: "<p>html</p>",
	}
	body, err := svc.format(msg)
	require.NoError(t, err)
	assert.Contains(t, body, "From: \"Canteen\" <noreply@canteen.test>\r\n")
	assert.Contains(t, body, "Subject: [Canteen] hi\r\n")
	assert.Contains(t, body, "To: <a@canteen.test>, \"B\" <b@canteen.test>\r\n")
	assert.Contains(t, body, "Content-Type: multipart/alternative")
	assert.Contains(t, body, "plain\r\n")
	assert.Contains(t, body, "<p>html</p>\r\n")
	assert.NotContains(t, body, "multipart/mixed")

	require.NoError(t, msg.Attach(strings.NewReader("a,b\n"), "export.csv", "text/csv"))
	body, err = svc.format(msg)
	require.NoError(t, err)
	assert.Contains(t, body, "Content-Type: multipart/mixed")
	assert.Contains(t, body, "attachment; filename=export.csv")
}
