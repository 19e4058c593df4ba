package dnsauth

import (
	"github.com/google/wire"
)

// WireSet provides the sender domain Validator.
var WireSet = wire.NewSet(
	ValidatorOptionsFromViper,
	NewValidator,
)
