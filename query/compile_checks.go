package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-carriers/core"
)

var (
	_ gocmd.Querier[BatchStatusMessage, core.Batch]                    = (*BatchStatusQuery)(nil)
	_ gocmd.Querier[ListBatchesMessage, []core.Batch]                  = (*ListBatchesQuery)(nil)
	_ gocmd.Querier[ShipmentJournalMessage, []core.JournalEntry]       = (*ShipmentJournalQuery)(nil)
	_ gocmd.Querier[DeliveryStatusMessage, core.JournalEntry]          = (*DeliveryStatusQuery)(nil)
	_ gocmd.Querier[ListCarrierProfilesMessage, []core.CarrierProfile] = (*ListCarrierProfilesQuery)(nil)
	_ gocmd.Querier[ListActivityMessage, core.ActivityPage]            = (*ListActivityQuery)(nil)
)
