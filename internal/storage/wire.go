package storage

import (
	"github.com/google/wire"
)

// WireSet provides the filesystem and the message cache.
var WireSet = wire.NewSet(
	NewFilesystem,
	CacheOptionsFromViper,
	NewCache,
)
