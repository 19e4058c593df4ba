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
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/briefsend/internal/log"
	"github.com/lukasdietrich/briefsend/internal/message"
	"github.com/lukasdietrich/briefsend/internal/models"
)

func init() {
	viper.SetDefault("mail.server", "localhost")
	viper.SetDefault("mail.port", 587)
	viper.SetDefault("mail.use_tls", true)
	viper.SetDefault("mail.use_ssl", false)
	viper.SetDefault("mail.username", "")
	viper.SetDefault("mail.password", "")
	viper.SetDefault("mail.helo", "localhost")
}

// CourierOptions are the credentials and connection parameters of the smtp relay.
type CourierOptions struct {
	Host string
	Port int
	// StartTLS requires the relay to advertise and accept STARTTLS.
	StartTLS bool
	// ImplicitTLS connects with tls right away. It takes precedence over StartTLS.
	ImplicitTLS bool
	Username    string
	Password    string
	Helo        string
}

// CourierOptionsFromViper reads the CourierOptions from the global configuration.
func CourierOptionsFromViper() CourierOptions {
	return CourierOptions{
		Host:        viper.GetString("mail.server"),
		Port:        viper.GetInt("mail.port"),
		StartTLS:    viper.GetBool("mail.use_tls"),
		ImplicitTLS: viper.GetBool("mail.use_ssl"),
		Username:    viper.GetString("mail.username"),
		Password:    viper.GetString("mail.password"),
		Helo:        viper.GetString("mail.helo"),
	}
}

func (o CourierOptions) address() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// Courier transmits rendered messages to the configured relay. Every call to Send opens its own
// session.
type Courier struct {
	options   CourierOptions
	tlsConfig *tls.Config
	dialer    net.Dialer
}

// NewCourier creates a new courier for delivery through the relay.
func NewCourier(options CourierOptions, tlsConfig *tls.Config) *Courier {
	if tlsConfig == nil {
		tlsConfig = &tls.Config{ServerName: options.Host}
	}

	return &Courier{
		options:   options,
		tlsConfig: tlsConfig,
	}
}

// Send transmits msg to all of its recipients. The first rejection aborts the session.
func (c *Courier) Send(ctx context.Context, msg *message.Message) error {
	log.InfoContext(ctx).
		Str("relay", c.options.address()).
		Int("recipients", len(msg.Recipients)).
		Int64("size", msg.Size()).
		Msg("sending message")

	client, stop, err := c.dial(ctx)
	if err != nil {
		return err
	}

	defer stop()
	defer client.Close()

	if err := c.initClient(ctx, client); err != nil {
		return err
	}

	if err := c.authenticate(ctx, client); err != nil {
		return err
	}

	if err := c.copyEnvelope(client, msg); err != nil {
		return err
	}

	if err := c.copyData(client, msg); err != nil {
		return err
	}

	if err := client.Quit(); err != nil {
		log.DebugContext(ctx).Err(err).Msg("could not quit session cleanly")
	}

	log.InfoContext(ctx).Msg("message accepted by relay")
	return nil
}

// dial connects to the relay and aborts the connection, once ctx is done.
func (c *Courier) dial(ctx context.Context) (*smtp.Client, func() bool, error) {
	addr := c.options.address()

	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, addr, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
		}
	}

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})

	if c.options.ImplicitTLS {
		tlsConn := tls.Client(conn, c.tlsConfig.Clone())

		if err := tlsConn.HandshakeContext(ctx); err != nil {
			stop()
			conn.Close()
			return nil, nil, fmt.Errorf("%w: tls handshake with %s: %w", ErrConnectionFailed, addr, err)
		}

		conn = tlsConn
	}

	log.DebugContext(ctx).
		Str("relay", addr).
		Bool("implicitTLS", c.options.ImplicitTLS).
		Msg("connected to relay")

	return smtp.NewClient(conn), stop, nil
}

// initClient says hello to the server and upgrades to tls, if required.
func (c *Courier) initClient(ctx context.Context, client *smtp.Client) error {
	if err := client.Hello(c.options.Helo); err != nil {
		return sessionError("EHLO", "", err)
	}

	if c.options.ImplicitTLS || !c.options.StartTLS {
		return nil
	}

	if ok, _ := client.Extension("STARTTLS"); !ok {
		return fmt.Errorf("%w: %s", ErrTLSUnavailable, c.options.Host)
	}

	if err := client.StartTLS(c.tlsConfig.Clone()); err != nil {
		return fmt.Errorf("%w: starttls: %w", ErrConnectionFailed, err)
	}

	log.DebugContext(ctx).Msg("upgraded session to tls")
	return nil
}

// authenticate uses AUTH PLAIN, if a username is configured.
func (c *Courier) authenticate(ctx context.Context, client *smtp.Client) error {
	if c.options.Username == "" {
		return nil
	}

	if ok, _ := client.Extension("AUTH"); !ok {
		return fmt.Errorf("%w: relay does not advertise AUTH", ErrAuthFailed)
	}

	auth := sasl.NewPlainClient("", c.options.Username, c.options.Password)

	if err := client.Auth(auth); err != nil {
		var smtpErr *smtp.SMTPError
		if errors.As(err, &smtpErr) {
			return fmt.Errorf("%w: %w", ErrAuthFailed, err)
		}

		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	log.DebugContext(ctx).
		Str("username", c.options.Username).
		Msg("authenticated")

	return nil
}

// copyEnvelope sends the return- and forward-paths of the message.
func (c *Courier) copyEnvelope(client *smtp.Client, msg *message.Message) error {
	from, err := envelopeAddress(msg.From)
	if err != nil {
		return err
	}

	if err := client.Mail(from, nil); err != nil {
		return sessionError("MAIL", "", err)
	}

	for _, recipient := range msg.Recipients {
		to, err := envelopeAddress(recipient)
		if err != nil {
			return err
		}

		if err := client.Rcpt(to, nil); err != nil {
			return sessionError("RCPT", to, err)
		}
	}

	return nil
}

// copyData writes the message content.
func (c *Courier) copyData(client *smtp.Client, msg *message.Message) error {
	w, err := client.Data()
	if err != nil {
		return sessionError("DATA", "", err)
	}

	r, err := msg.Reader()
	if err != nil {
		w.Close()
		return err
	}

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	if err := w.Close(); err != nil {
		return sessionError("DATA", "", err)
	}

	return nil
}

// envelopeAddress uses the ascii form of the domain, because the relay is not required to support
// SMTPUTF8.
func envelopeAddress(contact models.Contact) (string, error) {
	addr := contact.Address()

	domain, err := addr.ASCIIDomain()
	if err != nil {
		return "", fmt.Errorf("%w: %q", models.ErrInvalidAddressFormat, addr)
	}

	return addr.LocalPart() + "@" + domain, nil
}

// sessionError turns smtp replies into a *RejectedError. Anything else is a broken connection.
func sessionError(stage, recipient string, err error) error {
	var smtpErr *smtp.SMTPError
	if !errors.As(err, &smtpErr) {
		return fmt.Errorf("%w: %s: %w", ErrConnectionFailed, stage, err)
	}

	rejected := RejectedError{
		Stage:     stage,
		Recipient: recipient,
		Code:      smtpErr.Code,
		Message:   smtpErr.Message,
	}

	if smtpErr.EnhancedCode != smtp.NoEnhancedCode && smtpErr.EnhancedCode != (smtp.EnhancedCode{}) {
		code := smtpErr.EnhancedCode
		rejected.EnhancedCode = fmt.Sprintf("%d.%d.%d", code[0], code[1], code[2])
	}

	return &rejected
}
