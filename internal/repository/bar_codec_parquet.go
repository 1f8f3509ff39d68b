package repository

import (
	"github.com/parquet-go/parquet-go"

	"PriceCast/internal/domain/models"
)

// parquetCodec stores bars with the schema derived from models.Bar tags.
type parquetCodec struct{}

func (parquetCodec) Extension() string { return "parquet" }

func (parquetCodec) Write(path string, bars []models.Bar) error {
	return parquet.WriteFile(path, bars)
}

func (parquetCodec) Read(path string) ([]models.Bar, error) {
	bars, err := parquet.ReadFile[models.Bar](path)
	if err != nil {
		return nil, err
	}
	for i := range bars {
		bars[i].Time = bars[i].Time.UTC()
	}
	return bars, nil
}
