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

	"github.com/stretchr/testify/mock"

	"github.com/lukasdietrich/briefsend/internal/dnsauth"
	"github.com/lukasdietrich/briefsend/internal/message"
)

type MockValidator struct {
	mock.Mock
}

func (m *MockValidator) Validate(ctx context.Context, domain, selector string) (*dnsauth.Report, error) {
	args := m.Called(ctx, domain, selector)
	report, _ := args.Get(0).(*dnsauth.Report)
	return report, args.Error(1)
}

type MockComposer struct {
	mock.Mock
}

func (m *MockComposer) Build(ctx context.Context, draft *message.Draft) (*message.Message, error) {
	args := m.Called(ctx, draft)
	msg, _ := args.Get(0).(*message.Message)
	return msg, args.Error(1)
}

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Send(ctx context.Context, msg *message.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
