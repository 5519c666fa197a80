package main

import (
	"encoding/json"
	"log/slog"

	"github.com/satlend/hub/contract"
)

// multiEmitter fans one event out to several sinks.
type multiEmitter []contract.Emitter

func (m multiEmitter) Emit(ev contract.Event) {
	for _, e := range m {
		e.Emit(ev)
	}
}

// auditEmitter appends every domain event to the local rotating audit log,
// so dispute arbitration and liquidation reviews have a trail independent
// of the database.
type auditEmitter struct {
	log *slog.Logger
}

func (a auditEmitter) Emit(ev contract.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		a.log.Error("audit: encode event", "type", ev.EventType(), "error", err)
		return
	}
	a.log.Info(ev.EventType(), "event", json.RawMessage(payload))
}
