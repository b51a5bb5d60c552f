// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import (
	"fmt"
	"sync"

	"github.com/relabs-tech/fake_location/internal/mockgps"
)

// The process holds at most one provider registration, whichever gate
// type made it.
var (
	claimMu    sync.Mutex
	claimOwner any
)

func acquireClaim(owner any) error {
	claimMu.Lock()
	defer claimMu.Unlock()
	if claimOwner != nil && claimOwner != owner {
		return fmt.Errorf("%w: another provider is registered in this process", mockgps.ErrRegistrationDenied)
	}
	claimOwner = owner
	return nil
}

func releaseClaim(owner any) {
	claimMu.Lock()
	defer claimMu.Unlock()
	if claimOwner == owner {
		claimOwner = nil
	}
}
