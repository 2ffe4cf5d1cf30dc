// Copyright 2019 Andy Pan. All rights reserved.
// Copyright 2018 Joshua J Baker. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package gosocket

import "errors"

// Setup-time sentinel errors. These never cross the public API boundary as
// panics — every public operation instead returns a boolean, logging the
// underlying error through the Logger façade.
var (
	ErrAlreadyInitialized = errors.New("gosocket: endpoint already initialized")
	ErrNotInitialized     = errors.New("gosocket: endpoint not initialized")
	ErrAlreadyRunning     = errors.New("gosocket: endpoint already running")
	ErrNotRunning         = errors.New("gosocket: endpoint not running")
	ErrUnknownSession     = errors.New("gosocket: unknown session fd")
	ErrUnsupportedNetwork = errors.New("gosocket: unsupported network scheme")
	ErrPathTooLong        = errors.New("gosocket: unix socket path exceeds platform limit")
)
