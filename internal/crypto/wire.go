package crypto

import (
	"github.com/google/wire"
)

// WireSet provides the random id generator.
var WireSet = wire.NewSet(NewIDGenerator)
