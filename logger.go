// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gosocket

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// Logger is used for logging formatted messages. Any type satisfying this
// single-method contract — including the standard library's *log.Logger —
// can be installed with SetLogger.
type Logger interface {
	// Printf must have the same semantics as log.Printf.
	Printf(format string, args ...interface{})
}

// slogPrintf adapts an slog.Logger to the Printf-shaped Logger contract.
type slogPrintf struct {
	l *slog.Logger
}

func (s slogPrintf) Printf(format string, args ...interface{}) {
	if len(args) == 0 {
		s.l.Info(format)
		return
	}
	s.l.Info(fmt.Sprintf(format, args...))
}

var defaultLogger Logger = slogPrintf{
	l: slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: "15:04:05.000",
	})),
}

// SetLogger installs a process-wide logger override, mirroring the
// teacher's Options.Logger mechanism: every endpoint without its own
// WithLogger logs through it, and the shared reactor picks it up the next
// time such an endpoint is Init'd.
func SetLogger(l Logger) {
	if l == nil {
		return
	}
	defaultLogger = l
}
