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

package log

import (
	"context"

	"github.com/rs/zerolog"
)

type fieldOrigin struct{}
type fieldCommand struct{}
type fieldDomain struct{}
type fieldMessage struct{}

// WithOrigin adds the origin of processing to the context.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, fieldOrigin{}, origin)
}

// WithCommand adds the command name to the context.
func WithCommand(ctx context.Context, command string) context.Context {
	return context.WithValue(ctx, fieldCommand{}, command)
}

// WithDomain adds the sender domain under validation to the context.
func WithDomain(ctx context.Context, domain string) context.Context {
	return context.WithValue(ctx, fieldDomain{}, domain)
}

// WithMessage adds the message id of the mail being sent to the context.
func WithMessage(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, fieldMessage{}, messageID)
}

// appendContextFields adds defined fields in the context to the log event.
func appendContextFields(ctx context.Context, event *zerolog.Event) *zerolog.Event {
	if origin, ok := ctx.Value(fieldOrigin{}).(string); ok {
		event.Str("origin", origin)
	}

	if command, ok := ctx.Value(fieldCommand{}).(string); ok {
		event.Str("command", command)
	}

	if domain, ok := ctx.Value(fieldDomain{}).(string); ok {
		event.Str("domain", domain)
	}

	if message, ok := ctx.Value(fieldMessage{}).(string); ok {
		event.Str("messageId", message)
	}

	return event
}
