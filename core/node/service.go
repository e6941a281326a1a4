package node

import (
	"github.com/cathedral-fabric/fabric/core/eventlog"
	"github.com/cathedral-fabric/fabric/core/store"
)

// storeService adapts *store.Store to the Service interface so it can
// be registered, started, stopped, and health-checked uniformly with
// every other component the Coordinator wires together.
type storeService struct {
	*store.Store
}

func (storeService) Start() {}

func (s storeService) Stop() error {
	return s.Close()
}

func (storeService) Status() error {
	return nil
}

// logService adapts *eventlog.Log to the Service interface.
type logService struct {
	*eventlog.Log
}

func (logService) Start() {}

func (s logService) Stop() error {
	return s.Close()
}

func (s logService) Status() error {
	return s.Validate()
}
