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
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/lukasdietrich/briefsend/internal/dnsauth"
	"github.com/lukasdietrich/briefsend/internal/log"
	"github.com/lukasdietrich/briefsend/internal/message"
	"github.com/lukasdietrich/briefsend/internal/models"
)

// ValidationMode decides what happens to a send, if the sender domain is not authorized.
type ValidationMode string

const (
	// ModeEnforce refuses to send.
	ModeEnforce ValidationMode = "enforce"
	// ModeWarn logs the failed checks and sends anyway.
	ModeWarn ValidationMode = "warn"
	// ModeOff does not look up any records.
	ModeOff ValidationMode = "off"
)

// ParseValidationMode parses a mode case-insensitively. An empty string means ModeEnforce.
func ParseValidationMode(raw string) (ValidationMode, error) {
	switch mode := ValidationMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case "":
		return ModeEnforce, nil
	case ModeEnforce, ModeWarn, ModeOff:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, raw)
	}
}

func init() {
	viper.SetDefault("mail.sender", "")
	viper.SetDefault("mail.sender_name", "")
	viper.SetDefault("mail.dkim_selector", "")
	viper.SetDefault("validation.mode", string(ModeEnforce))
}

// Validator checks the records of a sender domain.
type Validator interface {
	Validate(ctx context.Context, domain, selector string) (*dnsauth.Report, error)
}

// Composer renders drafts into transmittable messages.
type Composer interface {
	Build(ctx context.Context, draft *message.Draft) (*message.Message, error)
}

// Transport transmits rendered messages.
type Transport interface {
	Send(ctx context.Context, msg *message.Message) error
}

// MailmanOptions hold the sender identity, that every message is sent as.
type MailmanOptions struct {
	Sender   models.Contact
	Selector string
	Mode     ValidationMode
}

// MailmanOptionsFromViper reads the MailmanOptions from the global configuration.
func MailmanOptionsFromViper() (MailmanOptions, error) {
	sender, err := models.NewContact(viper.GetString("mail.sender"), viper.GetString("mail.sender_name"))
	if err != nil {
		return MailmanOptions{}, fmt.Errorf("invalid sender (mail.sender): %w", err)
	}

	mode, err := ParseValidationMode(viper.GetString("validation.mode"))
	if err != nil {
		return MailmanOptions{}, err
	}

	return MailmanOptions{
		Sender:   sender,
		Selector: viper.GetString("mail.dkim_selector"),
		Mode:     mode,
	}, nil
}

// Request is a single message to send. The sender is always the configured identity.
type Request struct {
	message.Draft
	// SkipValidation bypasses the sender domain validation for this request only.
	SkipValidation bool
}

// Receipt describes a message accepted by the relay.
type Receipt struct {
	MessageID  string
	Recipients []models.Contact
	// Report is nil, if validation was skipped.
	Report *dnsauth.Report
}

// Mailman sends messages as the configured sender identity, after making sure the sender domain
// authorizes the relay.
type Mailman struct {
	options   MailmanOptions
	validator Validator
	composer  Composer
	transport Transport
}

// NewMailman creates a new mailman.
func NewMailman(
	options MailmanOptions,
	validator Validator,
	composer Composer,
	transport Transport,
) *Mailman {
	return &Mailman{
		options:   options,
		validator: validator,
		composer:  composer,
		transport: transport,
	}
}

// Sender returns the identity messages are sent as.
func (m *Mailman) Sender() models.Contact {
	return m.options.Sender
}

// Check validates the sender domain regardless of the configured mode.
func (m *Mailman) Check(ctx context.Context) (*dnsauth.Report, error) {
	domain, err := m.options.Sender.Address().ASCIIDomain()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidAddressFormat, err)
	}

	return m.validator.Validate(ctx, domain, m.options.Selector)
}

// Send validates the sender domain according to the mode, renders and transmits the message. A
// failed validation in ModeEnforce returns a *ValidationError before the relay is contacted.
func (m *Mailman) Send(ctx context.Context, request *Request) (*Receipt, error) {
	report, err := m.preflight(ctx, request.SkipValidation)
	if err != nil {
		return nil, err
	}

	draft := request.Draft
	draft.From = m.options.Sender

	msg, err := m.composer.Build(ctx, &draft)
	if err != nil {
		return nil, err
	}

	ctx = log.WithMessage(ctx, msg.ID)
	defer m.release(ctx, msg)

	if err := m.transport.Send(ctx, msg); err != nil {
		return nil, err
	}

	return &Receipt{
		MessageID:  msg.ID,
		Recipients: msg.Recipients,
		Report:     report,
	}, nil
}

func (m *Mailman) preflight(ctx context.Context, skip bool) (*dnsauth.Report, error) {
	if skip || m.options.Mode == ModeOff {
		log.WarnContext(ctx).
			Str("sender", m.options.Sender.String()).
			Bool("skipped", skip).
			Str("mode", string(m.options.Mode)).
			Msg("sender domain validation bypassed")

		return nil, nil
	}

	report, err := m.Check(ctx)
	if err != nil {
		return nil, err
	}

	if report.Authorized() {
		return report, nil
	}

	if m.options.Mode == ModeWarn {
		log.WarnContext(ctx).
			Str("domain", report.Domain).
			Strs("failed", report.Failures()).
			Msg("sender domain is not authorized, sending anyway")

		return report, nil
	}

	return nil, &ValidationError{Report: report}
}

func (m *Mailman) release(ctx context.Context, msg *message.Message) {
	if err := msg.Release(ctx); err != nil {
		log.WarnContext(ctx).Err(err).Msg("could not release rendered message")
	}
}
