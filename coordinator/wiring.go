package coordinator

import (
	"github.com/satlend/hub/chain"
	"github.com/satlend/hub/liquidation"
)

var (
	_ chain.StatusUpdater         = (*Coordinator)(nil)
	_ liquidation.ContractUpdater = (*Coordinator)(nil)
)
