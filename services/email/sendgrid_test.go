package emailsvc

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/inspectorat/core"
	logsvc "github.com/trezcool/inspectorat/services/logger"
)

func TestSendgridService_prepare(t *testing.T) {
	svc := NewSendgridService(core.NewTestConfig(), logsvc.NewNopLogger())

	tests := []struct {
		name      string
		msg       core.EmailMessage
		wantTypes []string
	}{
		{
			name: "text only",
			msg: core.EmailMessage{
				To:          []mail.Address{{Name: "Inspecteur", Address: "insp@test.cd"}},
				Subject:     "Nouveau formulaire",
				TextContent: "bonjour",
			},
			wantTypes: []string{"text/plain"},
		},
		{
			name: "text and html with copies",
			msg: core.EmailMessage{
				To:          []mail.Address{{Address: "insp@test.cd"}},
				Cc:          []mail.Address{{Address: "chef@test.cd"}},
				Bcc:         []mail.Address{{Address: "archive@test.cd"}},
				Subject:     "Nouveau formulaire",
				TextContent: "bonjour",
				HTMLContent: "<p>bonjour</p>",
			},
			wantTypes: []string{"text/plain", "text/html"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := svc.prepare(tt.msg)

			assert.Equal(t, "noreply@localhost", m.From.Address)
			require.Len(t, m.Personalizations, 1)
			p := m.Personalizations[0]
			assert.Equal(t, "[Inspectorat] Nouveau formulaire", p.Subject)
			assert.Len(t, p.To, len(tt.msg.To))
			assert.Len(t, p.CC, len(tt.msg.Cc))
			assert.Len(t, p.BCC, len(tt.msg.Bcc))

			types := make([]string, len(m.Content))
			for i, c := range m.Content {
				types[i] = c.Type
			}
			assert.Equal(t, tt.wantTypes, types)
			assert.Empty(t, m.Attachments)
		})
	}
}
