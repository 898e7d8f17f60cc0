package mailbox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(strings.TrimLeft(s, "\n"), "\n", "\r\n"))
}

func TestParseMultipart(t *testing.T) {
	raw := crlf(`
From: Morning Brew <crew@morningbrew.com>
To: me@example.com
Subject: =?UTF-8?B?TWFya2V0cyDwn5OI?=
Date: Tue, 4 Mar 2025 09:15:00 -0500
Message-ID: <abc123@morningbrew.com>
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="XYZ"

--XYZ
Content-Type: text/plain; charset="utf-8"

Stocks climbed.
--XYZ
Content-Type: text/html; charset="utf-8"

<p>Stocks <b>climbed</b>.</p>
--XYZ
Content-Type: text/plain; charset="utf-8"
Content-Disposition: attachment; filename="notes.txt"

attachment text
--XYZ--
`)

	msg, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "Markets 📈", msg.Subject)
	assert.Equal(t, "crew@morningbrew.com", msg.From)
	assert.Equal(t, "Tue, 4 Mar 2025 09:15:00 -0500", msg.Date)
	assert.Equal(t, "<abc123@morningbrew.com>", msg.MessageID)
	assert.Equal(t, "Stocks climbed.", strings.TrimSpace(msg.Text))
	assert.Equal(t, "Stocks climbed.", strings.TrimSpace(msg.Body()))
}

func TestParseHTMLOnly(t *testing.T) {
	raw := crlf(`
From: news@techcrunch.com
Subject: Daily
Content-Type: text/html; charset="utf-8"

<html><head><style>p{}</style></head><body><p>First</p><p>Second</p><script>x()</script></body></html>
`)

	msg, err := Parse(raw)
	require.NoError(t, err)

	assert.Empty(t, msg.Text)
	assert.Empty(t, msg.MessageID)
	body := msg.Body()
	assert.Contains(t, body, "First")
	assert.Contains(t, body, "Second")
	assert.NotContains(t, body, "FirstSecond")
	assert.NotContains(t, body, "x()")
}

func TestParseSinglePartPlain(t *testing.T) {
	raw := crlf(`
From: "Sports Letter" <editors@thesportsletter.com>
Subject: Scores
Message-ID: <s1@x>
Content-Type: text/plain; charset=iso-8859-1
Content-Transfer-Encoding: quoted-printable

Caf=E9 league results
`)

	msg, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "editors@thesportsletter.com", msg.From)
	assert.Equal(t, "Café league results", strings.TrimSpace(msg.Body()))
}

func TestParseUnparsableFromKeepsRaw(t *testing.T) {
	raw := crlf(`
From: not really an address
Subject: x

body
`)
	msg, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "not really an address", msg.From)
}
