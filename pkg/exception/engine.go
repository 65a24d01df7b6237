package exception

import "errors"

// ErrEngineBuild is returned for configuration errors detected while assembling the engine.
var ErrEngineBuild = errors.New("engine: build error")
