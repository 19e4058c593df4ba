package dns

import (
	"github.com/google/wire"
)

// WireSet provides a Resolver querying the configured nameservers.
var WireSet = wire.NewSet(
	ClientOptionsFromViper,
	NewClient,
	wire.Bind(new(Resolver), new(*Client)),
)
