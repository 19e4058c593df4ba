// Copyright (C) 2020  Lukas Dietrich <lukas@lukasdietrich.com>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package delivery

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"math/big"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/lukasdietrich/briefsend/internal/message"
	"github.com/lukasdietrich/briefsend/internal/models"
)

func TestCourierOptionsFromViper(t *testing.T) {
	viper.Set("mail.server", "relay.example.net")
	viper.Set("mail.port", 465)
	viper.Set("mail.use_ssl", true)
	viper.Set("mail.username", "user")
	viper.Set("mail.password", "secret")

	options := CourierOptionsFromViper()

	assert.Equal(t, CourierOptions{
		Host:        "relay.example.net",
		Port:        465,
		StartTLS:    true,
		ImplicitTLS: true,
		Username:    "user",
		Password:    "secret",
		Helo:        "localhost",
	}, options)
	assert.Equal(t, "relay.example.net:465", options.address())

	viper.Set("mail.use_ssl", false)
	viper.Set("mail.username", "")
	viper.Set("mail.password", "")
}

// fakeRelay is a minimal smtp server, that records the commands it receives.
type fakeRelay struct {
	listener    net.Listener
	tlsConfig   *tls.Config
	implicitTLS bool
	extensions  []string
	username    string
	password    string
	rejectRcpt  string
	rejectData  bool

	mu       sync.Mutex
	commands []string
	data     string
	secure   bool
}

func newFakeRelay(t *testing.T, configure func(*fakeRelay)) *fakeRelay {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	relay := fakeRelay{
		listener:   listener,
		extensions: []string{"8BITMIME", "AUTH PLAIN"},
		username:   "user",
		password:   "secret",
	}

	if configure != nil {
		configure(&relay)
	}

	if relay.implicitTLS {
		relay.listener = tls.NewListener(listener, relay.tlsConfig)
	}

	t.Cleanup(func() {
		relay.listener.Close()
	})

	go relay.serve()
	return &relay
}

func (r *fakeRelay) port() int {
	return r.listener.Addr().(*net.TCPAddr).Port
}

func (r *fakeRelay) serve() {
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			return
		}

		go r.handle(conn)
	}
}

func (r *fakeRelay) record(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.HasPrefix(strings.ToUpper(line), "AUTH ") {
		fields := strings.Fields(line)
		line = strings.Join(fields[:2], " ")
	}

	r.commands = append(r.commands, line)
}

func (r *fakeRelay) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.commands...)
}

func (r *fakeRelay) received() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.data, r.secure
}

func (r *fakeRelay) handle(conn net.Conn) {
	defer conn.Close()

	text := textproto.NewConn(conn)
	secure := r.implicitTLS

	text.PrintfLine("220 fake.relay ESMTP")

	for {
		line, err := text.ReadLine()
		if err != nil {
			return
		}

		r.record(line)
		verb, arg, _ := strings.Cut(line, " ")

		switch strings.ToUpper(verb) {
		case "EHLO":
			lines := []string{"fake.relay greets " + arg}
			if r.tlsConfig != nil && !secure {
				lines = append(lines, "STARTTLS")
			}

			lines = append(lines, r.extensions...)

			for i, ext := range lines {
				sep := "-"
				if i == len(lines)-1 {
					sep = " "
				}

				text.PrintfLine("250%s%s", sep, ext)
			}

		case "STARTTLS":
			text.PrintfLine("220 2.0.0 Ready to start TLS")

			tlsConn := tls.Server(conn, r.tlsConfig)
			if err := tlsConn.Handshake(); err != nil {
				return
			}

			text = textproto.NewConn(tlsConn)
			secure = true

			r.mu.Lock()
			r.secure = true
			r.mu.Unlock()

		case "AUTH":
			mechanism, initial, _ := strings.Cut(arg, " ")
			if !strings.EqualFold(mechanism, "PLAIN") {
				text.PrintfLine("504 5.5.4 Unrecognized authentication type")
				continue
			}

			if initial == "" {
				text.PrintfLine("334 ")
				initial, _ = text.ReadLine()
			}

			decoded, _ := base64.StdEncoding.DecodeString(initial)
			if string(decoded) == "\x00"+r.username+"\x00"+r.password {
				text.PrintfLine("235 2.7.0 Authentication successful")
			} else {
				text.PrintfLine("535 5.7.8 Authentication credentials invalid")
			}

		case "MAIL":
			text.PrintfLine("250 2.1.0 Ok")

		case "RCPT":
			if r.rejectRcpt != "" && strings.Contains(arg, r.rejectRcpt) {
				text.PrintfLine("550 5.1.1 Recipient address rejected")
			} else {
				text.PrintfLine("250 2.1.5 Ok")
			}

		case "DATA":
			text.PrintfLine("354 End data with <CR><LF>.<CR><LF>")

			data, err := text.ReadDotBytes()
			if err != nil {
				return
			}

			r.mu.Lock()
			r.data = string(data)
			r.mu.Unlock()

			if r.rejectData {
				text.PrintfLine("554 5.7.1 Message rejected as spam")
			} else {
				text.PrintfLine("250 2.0.0 Ok: queued")
			}

		case "RSET", "NOOP":
			text.PrintfLine("250 2.0.0 Ok")

		case "QUIT":
			text.PrintfLine("221 2.0.0 Bye")
			return

		default:
			text.PrintfLine("502 5.5.2 Command not recognized")
		}
	}
}

func selfSignedConfig(t *testing.T) *tls.Config {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "fake.relay"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)

	return &tls.Config{
		Certificates: []tls.Certificate{{
			Certificate: [][]byte{der},
			PrivateKey:  key,
		}},
	}
}

func TestCourierTestSuite(t *testing.T) {
	suite.Run(t, new(CourierTestSuite))
}

type CourierTestSuite struct {
	suite.Suite

	options   CourierOptions
	tlsConfig *tls.Config
	message   *message.Message
}

const courierTestContent = "Subject: hello\r\n\r\nhello\r\n.leading dot\r\n"

func (s *CourierTestSuite) SetupTest() {
	s.options = CourierOptions{
		Host: "127.0.0.1",
		Helo: "courier.test",
	}

	s.tlsConfig = &tls.Config{InsecureSkipVerify: true}

	from, err := models.NewContact("news@example.com", "Example News")
	s.Require().NoError(err)

	recipients, err := models.ParseContacts([]string{
		"Jane <jane@example.org>",
		"bob@example.org",
	})
	s.Require().NoError(err)

	s.message = message.NewMessage("1234@example.com", from, recipients, &fakeEntry{data: courierTestContent})
}

func (s *CourierTestSuite) send(relay *fakeRelay) error {
	s.options.Port = relay.port()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return NewCourier(s.options, s.tlsConfig).Send(ctx, s.message)
}

func (s *CourierTestSuite) TestSendPlain() {
	relay := newFakeRelay(s.T(), nil)

	s.Require().NoError(s.send(relay))

	s.Assert().Equal([]string{
		"EHLO courier.test",
		"MAIL FROM:<news@example.com>",
		"RCPT TO:<jane@example.org>",
		"RCPT TO:<bob@example.org>",
		"DATA",
		"QUIT",
	}, relay.recorded())

	data, secure := relay.received()
	s.Assert().Equal(strings.ReplaceAll(courierTestContent, "\r\n", "\n"), data)
	s.Assert().False(secure)
}

func (s *CourierTestSuite) TestSendAuthenticated() {
	relay := newFakeRelay(s.T(), nil)

	s.options.Username = "user"
	s.options.Password = "secret"

	s.Require().NoError(s.send(relay))
	s.Assert().Contains(relay.recorded(), "AUTH PLAIN")
}

func (s *CourierTestSuite) TestSendWrongPassword() {
	relay := newFakeRelay(s.T(), nil)

	s.options.Username = "user"
	s.options.Password = "wrong"

	err := s.send(relay)
	s.Assert().ErrorIs(err, ErrAuthFailed)
	s.Assert().NotContains(relay.recorded(), "MAIL FROM:<news@example.com>")
}

func (s *CourierTestSuite) TestSendAuthNotAdvertised() {
	relay := newFakeRelay(s.T(), func(r *fakeRelay) {
		r.extensions = []string{"8BITMIME"}
	})

	s.options.Username = "user"
	s.options.Password = "secret"

	s.Assert().ErrorIs(s.send(relay), ErrAuthFailed)
}

func (s *CourierTestSuite) TestSendStartTLS() {
	relay := newFakeRelay(s.T(), func(r *fakeRelay) {
		r.tlsConfig = selfSignedConfig(s.T())
	})

	s.options.StartTLS = true
	s.options.Username = "user"
	s.options.Password = "secret"

	s.Require().NoError(s.send(relay))

	_, secure := relay.received()
	s.Assert().True(secure)

	commands := relay.recorded()
	s.Require().GreaterOrEqual(len(commands), 3)
	s.Assert().Equal([]string{"EHLO courier.test", "STARTTLS", "EHLO courier.test"}, commands[:3])
}

func (s *CourierTestSuite) TestSendStartTLSUnavailable() {
	relay := newFakeRelay(s.T(), nil)

	s.options.StartTLS = true

	s.Assert().ErrorIs(s.send(relay), ErrTLSUnavailable)
	s.Assert().Equal([]string{"EHLO courier.test"}, relay.recorded())
}

func (s *CourierTestSuite) TestSendImplicitTLS() {
	relay := newFakeRelay(s.T(), func(r *fakeRelay) {
		r.tlsConfig = selfSignedConfig(s.T())
		r.implicitTLS = true
	})

	s.options.ImplicitTLS = true
	s.options.StartTLS = true

	s.Require().NoError(s.send(relay))
	s.Assert().NotContains(relay.recorded(), "STARTTLS")

	data, _ := relay.received()
	s.Assert().NotEmpty(data)
}

func (s *CourierTestSuite) TestSendRecipientRejected() {
	relay := newFakeRelay(s.T(), func(r *fakeRelay) {
		r.rejectRcpt = "bob@"
	})

	err := s.send(relay)
	s.Require().ErrorIs(err, ErrRejected)

	var rejected *RejectedError
	s.Require().ErrorAs(err, &rejected)
	s.Assert().Equal("RCPT", rejected.Stage)
	s.Assert().Equal("bob@example.org", rejected.Recipient)
	s.Assert().Equal(550, rejected.Code)
	s.Assert().Equal("5.1.1", rejected.EnhancedCode)
	s.Assert().False(rejected.Temporary())

	s.Assert().NotContains(relay.recorded(), "DATA")
}

func (s *CourierTestSuite) TestSendDataRejected() {
	relay := newFakeRelay(s.T(), func(r *fakeRelay) {
		r.rejectData = true
	})

	var rejected *RejectedError
	s.Require().ErrorAs(s.send(relay), &rejected)
	s.Assert().Equal("DATA", rejected.Stage)
	s.Assert().Equal(554, rejected.Code)
}

func (s *CourierTestSuite) TestSendInternationalDomain() {
	relay := newFakeRelay(s.T(), nil)

	recipient, err := models.NewContact("jane@bücher.example", "")
	s.Require().NoError(err)

	s.message.Recipients = []models.Contact{recipient}

	s.Require().NoError(s.send(relay))
	s.Assert().Contains(relay.recorded(), "RCPT TO:<jane@xn--bcher-kva.example>")
}

func (s *CourierTestSuite) TestSendConnectionRefused() {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)

	s.options.Port = listener.Addr().(*net.TCPAddr).Port
	s.Require().NoError(listener.Close())

	err = NewCourier(s.options, s.tlsConfig).Send(context.Background(), s.message)
	s.Assert().ErrorIs(err, ErrConnectionFailed)
}
