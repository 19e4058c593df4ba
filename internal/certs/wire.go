package certs

import (
	"github.com/google/wire"
)

// WireSet provides the client tls config.
var WireSet = wire.NewSet(
	TLSOptionsFromViper,
	NewTLSConfig,
)
