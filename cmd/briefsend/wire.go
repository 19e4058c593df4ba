// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/lukasdietrich/briefsend/internal/certs"
	"github.com/lukasdietrich/briefsend/internal/crypto"
	"github.com/lukasdietrich/briefsend/internal/delivery"
	"github.com/lukasdietrich/briefsend/internal/dns"
	"github.com/lukasdietrich/briefsend/internal/dnsauth"
	"github.com/lukasdietrich/briefsend/internal/message"
	"github.com/lukasdietrich/briefsend/internal/storage"
)

var wireSet = wire.NewSet(
	wire.Struct(new(sendCommand), "*"),
	wire.Struct(new(checkCommand), "*"),
	wire.Struct(new(shellCommand), "*"),

	crypto.WireSet,
	storage.WireSet,
	certs.WireSet,
	dns.WireSet,
	dnsauth.WireSet,
	message.WireSet,
	delivery.WireSet,
)

func newSendCommand() (*sendCommand, error) {
	panic(wire.Build(wireSet))
}

func newCheckCommand() (*checkCommand, error) {
	panic(wire.Build(wireSet))
}

func newShellCommand() (*shellCommand, error) {
	panic(wire.Build(wireSet))
}
