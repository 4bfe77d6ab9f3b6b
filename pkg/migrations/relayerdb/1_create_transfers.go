package relayerdb

import (
	"context"
	"log"

	"github.com/chainsafe/token-bridge/pkg/db/dao"
	mghelper "github.com/chainsafe/token-bridge/pkg/pgutil/migrations"

	"github.com/uptrace/bun"
)

var transferIndexes = []string{"status", "route", "source_tx_hash"}

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating transfers table...")
		if err := mghelper.CreateSchema(ctx, db, &dao.TransferDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &dao.TransferDao{}, transferIndexes...)
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping transfers table...")
		if err := mghelper.DropModelIndexes(ctx, db, &dao.TransferDao{}, transferIndexes...); err != nil {
			return err
		}
		return mghelper.DropTables(ctx, db, &dao.TransferDao{})
	})
}
