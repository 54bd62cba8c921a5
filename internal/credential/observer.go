// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package credential

import "time"

// Operation labels reported to the Observer.
const (
	OpRegister       = "register"
	OpLogin          = "login"
	OpChangePassword = "change_password"
	OpResolveSession = "resolve_session"
	OpLogout         = "logout"
)

// Observer receives operation outcomes and hash timings, typically to feed
// metrics. Implementations must be safe for concurrent use.
type Observer interface {
	ObserveOperation(operation, outcome string)
	ObserveHash(operation string, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string)   {}
func (nopObserver) ObserveHash(string, time.Duration) {}
