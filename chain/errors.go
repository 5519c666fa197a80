package chain

import (
	"fmt"

	"github.com/satlend/hub/huberr"
)

// huberrWrap classifies a backend I/O failure as KindBackendUnavailable, so
// callers see it as retriable. The watcher's failover does not inspect the
// kind: it moves to the next configured backend URL on any error.
func huberrWrap(backend string, err error) error {
	return huberr.New(huberr.KindBackendUnavailable, "chain."+backend, fmt.Errorf("%w", err))
}
