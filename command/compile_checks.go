package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[DownloadBatchMessage]       = (*DownloadBatchCommand)(nil)
	_ gocmd.Commander[AcknowledgeShipmentMessage] = (*AcknowledgeShipmentCommand)(nil)
	_ gocmd.Commander[InvalidateTokenMessage]     = (*InvalidateTokenCommand)(nil)
	_ gocmd.Commander[RecordActivityMessage]      = (*RecordActivityCommand)(nil)
)
