package comms

import (
	"errors"
	"sync"
)

// ErrInUse is returned when exclusive control is already held.
var ErrInUse = errors.New("controller currently in use")

// xMutex is a non-blocking mutex: Lock fails instead of waiting.
type xMutex struct {
	lck   sync.Mutex
	inuse bool
}

func (xm *xMutex) Lock() error {
	xm.lck.Lock()
	defer xm.lck.Unlock()
	if xm.inuse {
		return ErrInUse
	}
	xm.inuse = true
	return nil
}

func (xm *xMutex) Unlock() {
	xm.lck.Lock()
	defer xm.lck.Unlock()
	xm.inuse = false
}
