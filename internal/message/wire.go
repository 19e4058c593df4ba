package message

import (
	"github.com/google/wire"
)

// WireSet provides the message Builder.
var WireSet = wire.NewSet(
	BuilderOptionsFromViper,
	NewBuilder,
)
