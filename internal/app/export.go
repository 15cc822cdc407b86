package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"pricewatch/internal/storage"
)

// Export renders a product's price history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.ProductID <= 0 {
		return errors.New("--product must be a positive id")
	}
	if opts.Days <= 0 {
		opts.Days = 30
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	product, err := store.GetProduct(ctx, opts.ProductID)
	if err != nil {
		return fmt.Errorf("load product %d: %w", opts.ProductID, err)
	}

	since := time.Now().UTC().AddDate(0, 0, -opts.Days)
	points, err := store.PriceTrends(ctx, opts.ProductID, since)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		a.Logger.Info().Int64("product_id", opts.ProductID).Msg("no price history in export window")
		return nil
	}

	downsampled := downsampleTrends(points, opts.MaxPoints)
	a.Logger.Info().
		Int("total", len(points)).
		Int("exported", len(downsampled)).
		Str("product", product.Name).
		Msg("exporting price history")

	if opts.CSVPath != "" {
		if err := writeTrendsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeTrendsPNG(opts.PNGPath, product.Name, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleTrends(points []storage.TrendPoint, max int) []storage.TrendPoint {
	if max <= 0 || len(points) <= max {
		return points
	}

	result := make([]storage.TrendPoint, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		result = append(result, points[idx])
	}
	return result
}

func writeTrendsCSV(path string, points []storage.TrendPoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"recorded_at", "amazon_price", "competitor_price"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, point := range points {
		record := []string{
			point.RecordedAt.Format(time.RFC3339),
			point.AmazonPrice.String(),
			point.CompetitorPrice.String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeTrendsPNG(path, productName string, points []storage.TrendPoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(points))
	own := make([]float64, len(points))
	competitor := make([]float64, len(points))

	for i, point := range points {
		x[i] = point.RecordedAt
		own[i] = point.AmazonPrice.InexactFloat64()
		competitor[i] = point.CompetitorPrice.InexactFloat64()
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Title:  productName,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Price (Rs.)",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Platform",
				XValues: x,
				YValues: own,
			},
			chart.TimeSeries{
				Name:    "Competitor",
				XValues: x,
				YValues: competitor,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
