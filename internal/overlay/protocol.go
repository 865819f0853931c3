package overlay

import "sync"

var (
	protocolMu sync.Mutex
	protocols  = make(map[string]error)
)

// RegisterProtocol installs a custom tile-loading protocol exactly once
// per process. Every map-initialization path may call it; only the
// first call for a given name runs install, and later calls observe the
// first call's result.
func RegisterProtocol(name string, install func() error) error {
	protocolMu.Lock()
	defer protocolMu.Unlock()

	if err, done := protocols[name]; done {
		return err
	}
	err := install()
	protocols[name] = err
	return err
}
