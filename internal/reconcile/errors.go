package reconcile

import "errors"

var ErrInjected = errors.New("injected apply failure")
