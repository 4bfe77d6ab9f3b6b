package dao

import "time"

// TransferDao is a data access object that maps directly to the 'transfers' table in PostgreSQL.
type TransferDao struct {
	tableName         struct{}   `bun:"table:transfers,alias:t"` // nolint
	ID                string     `json:"id" bun:",pk,type:varchar(160)"`
	Route             string     `json:"route" bun:",notnull,type:varchar(100)"`
	Status            string     `json:"status" bun:",notnull,type:varchar(20)"`
	SourceChain       string     `json:"source_chain" bun:",notnull,type:varchar(64)"`
	DestinationChain  string     `json:"destination_chain" bun:",notnull,type:varchar(64)"`
	SourceTxHash      string     `json:"source_tx_hash" bun:",notnull,type:varchar(66)"`
	DestinationTxHash *string    `json:"destination_tx_hash,omitempty" bun:"destination_tx_hash,type:varchar(66)"`
	Sender            string     `json:"sender" bun:",notnull,type:varchar(42)"`
	Recipient         string     `json:"recipient" bun:",notnull,type:varchar(42)"`
	Amount            string     `json:"amount" bun:",notnull,type:numeric(78,0)"`
	Nonce             int64      `json:"nonce" bun:",notnull"`
	SourceBlockNumber int64      `json:"source_block_number" bun:",notnull"`
	CreatedAt         time.Time  `json:"created_at" bun:",notnull,nullzero,default:current_timestamp"`
	UpdatedAt         time.Time  `json:"updated_at" bun:",notnull,nullzero,default:current_timestamp"`
	CompletedAt       *time.Time `json:"completed_at,omitempty" bun:"completed_at"`
	ErrorMessage      *string    `json:"error_message,omitempty" bun:"error_message,type:text"`
	RetryCount        int        `json:"retry_count" bun:",notnull,default:0"`
}
