package command

import (
	"strconv"
	"strings"

	"github.com/goliatone/go-carriers/core"
)

const (
	TypeDownloadBatch       = "carriers.command.batch.download"
	TypeAcknowledgeShipment = "carriers.command.shipment.acknowledge"
	TypeInvalidateToken     = "carriers.command.token.invalidate"
	TypeRecordActivity      = "carriers.command.activity.record"
)

type DownloadBatchMessage struct {
	Request core.DownloadBatchRequest
}

func (DownloadBatchMessage) Type() string { return TypeDownloadBatch }

func (m DownloadBatchMessage) Validate() error {
	if strings.TrimSpace(m.Request.CarrierID) == "" {
		return commandValidationError("carrier_id", "carrier id is required")
	}
	for i, shipment := range m.Request.Shipments {
		if strings.TrimSpace(shipment.ID) == "" {
			return commandValidationError("shipments", "shipment #"+strconv.Itoa(i)+" is missing an id")
		}
	}
	return nil
}

type AcknowledgeShipmentMessage struct {
	CarrierID  string
	ShipmentID string
}

func (AcknowledgeShipmentMessage) Type() string { return TypeAcknowledgeShipment }

func (m AcknowledgeShipmentMessage) Validate() error {
	if strings.TrimSpace(m.CarrierID) == "" {
		return commandValidationError("carrier_id", "carrier id is required")
	}
	if strings.TrimSpace(m.ShipmentID) == "" {
		return commandValidationError("shipment_id", "shipment id is required")
	}
	return nil
}

type InvalidateTokenMessage struct {
	CarrierID string
}

func (InvalidateTokenMessage) Type() string { return TypeInvalidateToken }

func (m InvalidateTokenMessage) Validate() error {
	if strings.TrimSpace(m.CarrierID) == "" {
		return commandValidationError("carrier_id", "carrier id is required")
	}
	return nil
}

type RecordActivityMessage struct {
	Entry core.ActivityEntry
}

func (RecordActivityMessage) Type() string { return TypeRecordActivity }

func (m RecordActivityMessage) Validate() error {
	if strings.TrimSpace(m.Entry.CarrierID) == "" {
		return commandValidationError("carrier_id", "carrier id is required")
	}
	if strings.TrimSpace(m.Entry.Action) == "" {
		return commandValidationError("action", "action is required")
	}
	return nil
}
