package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
)

// readParquetTable materializes a whole parquet file. The FishBase exports
// are a few MB each, so full tables are fine. Callers must Release.
func readParquetTable(path string) (arrow.Table, error) {
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}
	defer func() {
		_ = rdr.Close()
	}()

	arrowRdr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{BatchSize: 64 << 10}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("arrow reader %s: %w", path, err)
	}
	tbl, err := arrowRdr.ReadTable(context.Background())
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	return tbl, nil
}

func tableColumn(tbl arrow.Table, name string) (*arrow.Column, error) {
	indices := tbl.Schema().FieldIndices(name)
	if len(indices) == 0 {
		return nil, fmt.Errorf("column %q not found", name)
	}
	return tbl.Column(indices[0]), nil
}

// stringColumn flattens a column to strings, "" for nulls. Numeric columns
// are formatted; FishBase is loose about dtypes across snapshot versions.
func stringColumn(tbl arrow.Table, name string) ([]string, error) {
	col, err := tableColumn(tbl, name)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, tbl.NumRows())
	for _, chunk := range col.Data().Chunks() {
		for i := 0; i < chunk.Len(); i++ {
			if chunk.IsNull(i) {
				out = append(out, "")
				continue
			}
			switch arr := chunk.(type) {
			case *array.String:
				out = append(out, arr.Value(i))
			case *array.LargeString:
				out = append(out, arr.Value(i))
			case *array.Int32:
				out = append(out, strconv.FormatInt(int64(arr.Value(i)), 10))
			case *array.Int64:
				out = append(out, strconv.FormatInt(arr.Value(i), 10))
			case *array.Float64:
				out = append(out, strconv.FormatFloat(arr.Value(i), 'f', -1, 64))
			default:
				return nil, fmt.Errorf("column %q: unsupported type %s", name, chunk.DataType())
			}
		}
	}
	return out, nil
}

// int64Column flattens a numeric column to int64, 0 for nulls.
func int64Column(tbl arrow.Table, name string) ([]int64, error) {
	col, err := tableColumn(tbl, name)
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, tbl.NumRows())
	for _, chunk := range col.Data().Chunks() {
		for i := 0; i < chunk.Len(); i++ {
			if chunk.IsNull(i) {
				out = append(out, 0)
				continue
			}
			switch arr := chunk.(type) {
			case *array.Int32:
				out = append(out, int64(arr.Value(i)))
			case *array.Int64:
				out = append(out, arr.Value(i))
			case *array.Float64:
				out = append(out, int64(arr.Value(i)))
			case *array.String:
				v, err := strconv.ParseInt(arr.Value(i), 10, 64)
				if err != nil {
					return nil, fmt.Errorf("column %q: non-numeric value %q", name, arr.Value(i))
				}
				out = append(out, v)
			default:
				return nil, fmt.Errorf("column %q: unsupported type %s", name, chunk.DataType())
			}
		}
	}
	return out, nil
}
