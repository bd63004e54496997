package chainparams

import (
	"github.com/btcsuite/btclog"
	"github.com/kmels/bitcoincashj/build"
)

// Subsystem defines the logging code for this subsystem.
const Subsystem = "CPRM"

var log btclog.Logger

func init() {
	UseLogger(build.NewSubLogger(Subsystem))
}

// DisableLog disables all library log output.
func DisableLog() {
	log = btclog.Disabled
}

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger btclog.Logger) {
	log = logger
}
