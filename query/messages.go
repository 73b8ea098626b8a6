package query

import (
	"strings"

	"github.com/goliatone/go-carriers/core"
)

const (
	TypeBatchStatus         = "carriers.query.batch.status"
	TypeListBatches         = "carriers.query.batch.list"
	TypeShipmentJournal     = "carriers.query.journal.by_batch"
	TypeDeliveryStatus      = "carriers.query.journal.delivery_status"
	TypeListCarrierProfiles = "carriers.query.profiles.list"
	TypeListActivity        = "carriers.query.activity.list"
)

type BatchStatusMessage struct {
	BatchID string
}

func (BatchStatusMessage) Type() string { return TypeBatchStatus }

func (m BatchStatusMessage) Validate() error {
	if strings.TrimSpace(m.BatchID) == "" {
		return queryValidationError("batch_id", "batch id is required")
	}
	return nil
}

type ListBatchesMessage struct {
	CarrierID string
	Limit     int
}

func (ListBatchesMessage) Type() string { return TypeListBatches }

func (m ListBatchesMessage) Validate() error {
	if strings.TrimSpace(m.CarrierID) == "" {
		return queryValidationError("carrier_id", "carrier id is required")
	}
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	return nil
}

type ShipmentJournalMessage struct {
	BatchID string
}

func (ShipmentJournalMessage) Type() string { return TypeShipmentJournal }

func (m ShipmentJournalMessage) Validate() error {
	if strings.TrimSpace(m.BatchID) == "" {
		return queryValidationError("batch_id", "batch id is required")
	}
	return nil
}

type DeliveryStatusMessage struct {
	CarrierID  string
	ShipmentID string
}

func (DeliveryStatusMessage) Type() string { return TypeDeliveryStatus }

func (m DeliveryStatusMessage) Validate() error {
	if strings.TrimSpace(m.CarrierID) == "" {
		return queryValidationError("carrier_id", "carrier id is required")
	}
	if strings.TrimSpace(m.ShipmentID) == "" {
		return queryValidationError("shipment_id", "shipment id is required")
	}
	return nil
}

type ListCarrierProfilesMessage struct{}

func (ListCarrierProfilesMessage) Type() string { return TypeListCarrierProfiles }

func (ListCarrierProfilesMessage) Validate() error { return nil }

type ListActivityMessage struct {
	Filter core.ActivityFilter
}

func (ListActivityMessage) Type() string { return TypeListActivity }

func (m ListActivityMessage) Validate() error {
	if m.Filter.Page < 0 {
		return queryValidationError("page", "page must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return queryValidationError("per_page", "per_page must be >= 0")
	}
	return nil
}
