package delivery

import (
	"github.com/google/wire"

	"github.com/lukasdietrich/briefsend/internal/dnsauth"
	"github.com/lukasdietrich/briefsend/internal/message"
)

// WireSet provides the Courier and the Mailman.
var WireSet = wire.NewSet(
	CourierOptionsFromViper,
	NewCourier,
	MailmanOptionsFromViper,
	NewMailman,
	wire.Bind(new(Validator), new(*dnsauth.Validator)),
	wire.Bind(new(Composer), new(*message.Builder)),
	wire.Bind(new(Transport), new(*Courier)),
)
