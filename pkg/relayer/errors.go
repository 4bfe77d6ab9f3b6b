package relayer

import "errors"

var (
	// ErrReceiptNotFound is returned by Destination.GetReceipt while a
	// transaction is not yet mined.
	ErrReceiptNotFound = errors.New("receipt not found")
	// ErrConfirmationTimeout is returned when a submitted transaction was not
	// mined within the configured number of receipt polls. The transfer may
	// still land; the next scan re-checks the destination first.
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	// ErrAlreadyProcessed is returned by a Destination when the nonce was
	// already applied. The relayer treats it as success.
	ErrAlreadyProcessed = errors.New("transfer already processed")
	// ErrRejected marks a destination rejection that retrying cannot fix, such
	// as a missing operator role.
	ErrRejected = errors.New("transfer rejected")
	// ErrTransferReverted is returned when the inbound transaction was mined
	// but failed.
	ErrTransferReverted = errors.New("transfer reverted")
)
