// Command hub-audit exports the archived collateral transaction history to
// a columnar parquet file for offline reconciliation and compliance review.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/satlend/hub/config"
	"github.com/satlend/hub/storage/postgres"
)

type parquetRow struct {
	ContractID    string `parquet:"name=contract_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Txid          string `parquet:"name=txid, type=BYTE_ARRAY, convertedtype=UTF8"`
	DepositedSats int64  `parquet:"name=deposited_sats, type=INT64"`
	SpentSats     int64  `parquet:"name=spent_sats, type=INT64"`
	BlockHeight   int64  `parquet:"name=block_height, type=INT64"`
	BlockTime     string `parquet:"name=block_time, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func main() {
	configPath := flag.String("config", "hubd.toml", "path to the shared hub config")
	outPath := flag.String("out", "collateral-audit.parquet", "output parquet path")
	startStr := flag.String("start", "", "window start, RFC3339 (default: 24h ago)")
	endStr := flag.String("end", "", "window end, RFC3339 (default: now)")
	flag.Parse()

	if err := run(*configPath, *outPath, *startStr, *endStr); err != nil {
		fmt.Fprintf(os.Stderr, "hub-audit: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, outPath, startStr, endStr string) error {
	end := time.Now()
	start := end.Add(-24 * time.Hour)
	var err error
	if startStr != "" {
		if start, err = time.Parse(time.RFC3339, startStr); err != nil {
			return fmt.Errorf("parse -start: %w", err)
		}
	}
	if endStr != "" {
		if end, err = time.Parse(time.RFC3339, endStr); err != nil {
			return fmt.Errorf("parse -end: %w", err)
		}
	}
	if !start.Before(end) {
		return fmt.Errorf("window start %s is not before end %s", start, end)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := postgres.Connect(cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}

	records, err := postgres.NewCollateralTxStore(db).ListBetween(context.Background(), start, end)
	if err != nil {
		return fmt.Errorf("list collateral transactions: %w", err)
	}

	if err := writeParquet(outPath, records); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d rows, %s .. %s)\n", outPath, len(records), start.Format(time.RFC3339), end.Format(time.RFC3339))
	return nil
}

func writeParquet(path string, records []postgres.CollateralTxRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("parquet schema: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, rec := range records {
		blockTime := ""
		if rec.BlockTime > 0 {
			blockTime = time.Unix(rec.BlockTime, 0).UTC().Format(time.RFC3339)
		}
		row := &parquetRow{
			ContractID:    rec.ContractID.String(),
			Txid:          rec.Txid,
			DepositedSats: rec.DepositedSats,
			SpentSats:     rec.SpentSats,
			BlockHeight:   rec.BlockHeight,
			BlockTime:     blockTime,
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			file.Close()
			return fmt.Errorf("parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("parquet flush: %w", err)
	}
	return file.Close()
}
