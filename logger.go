package mergetree

import "github.com/foldedb/mergetree/internal/base"

// Logger exports the base.Logger type.
type Logger = base.Logger

// DefaultLogger exports the base.DefaultLogger type.
type DefaultLogger = base.DefaultLogger
