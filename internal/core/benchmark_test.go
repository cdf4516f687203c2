package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
)

// ============================================================================
// Conversion Function Benchmarks
// ============================================================================

// BenchmarkNormalizeNumber covers the numeric cleanup every decimal column
// goes through during an import.
func BenchmarkNormalizeNumber(b *testing.B) {
	testCases := []any{
		"123",
		"-456.78",
		"₹1,234.56",
		"(123.45)",     // accounting negative
		"1,234,567.89", // thousands separators
		"  999.99  ",
		1500.5,
		"NILL",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			NormalizeNumber(tc)
		}
	}
}

func BenchmarkNormalizeNumber_Simple(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		NormalizeNumber("12345")
	}
}

// BenchmarkNormalizeDate mixes serial numbers with the accepted text layouts.
func BenchmarkNormalizeDate(b *testing.B) {
	testCases := []any{
		float64(45678),
		"15/03/2025",
		"5.3.25",
		"2025-03-15",
		"Mar 15, 2025",
		"soon",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			NormalizeDate(tc)
		}
	}
}

func BenchmarkNormalizeDate_Serial(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		NormalizeDate(float64(45731))
	}
}

func BenchmarkToPgNumeric(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ToPgNumeric("₹1,234.56")
	}
}

func BenchmarkToPgDate(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ToPgDate("15/03/2025")
	}
}

// ============================================================================
// Header Binding Benchmarks
// ============================================================================

func BenchmarkNormalizeHeader(b *testing.B) {
	headers := []string{"  Site Tag ", "LAN-IP", "ACTIVATED", "Tax %"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, h := range headers {
			normalizeHeader(h)
		}
	}
}

// BenchmarkBindHeaders resolves a header row where half the columns only
// match after normalization.
func BenchmarkBindHeaders(b *testing.B) {
	sites, _ := withTestSchemas(b)
	aliases := sites.Aliases()
	headers := []string{"site tag", "Name", "lan-ip", "Status", "CHARGE", "Setup", "Tax", "Activated", "expires", "Validity", "Notes"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		BindHeaders(headers, aliases)
	}
}

// BenchmarkBindHeaders_Wide binds a wide sheet with many unknown columns.
func BenchmarkBindHeaders_Wide(b *testing.B) {
	sites, _ := withTestSchemas(b)
	aliases := sites.Aliases()
	headers := make([]string, 100)
	for i := range headers {
		headers[i] = fmt.Sprintf("Column %d", i)
	}
	headers[42] = "Tag"
	headers[77] = "LAN-IP"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		BindHeaders(headers, aliases)
	}
}

// ============================================================================
// Reconcile Benchmarks
// ============================================================================

// BenchmarkReconcile imports a fresh batch of sites each iteration.
func BenchmarkReconcile(b *testing.B) {
	sites, _ := withTestSchemas(b)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	const batch = 500

	rows := make([]map[string]any, batch)
	for i := range rows {
		rows[i] = map[string]any{
			"tag":       fmt.Sprintf("T-%04d", i),
			"name":      "Site",
			"charge":    "1,200",
			"setup":     "300",
			"taxPct":    "18",
			"activated": "15/03/2025",
		}
	}
	recs := records(sites, rows...)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		store := newFakeStore("g1")
		if _, err := NewReconciler(sites, store, logger).Reconcile(ctx, recs, "g1"); err != nil {
			b.Fatal(err)
		}
	}
}

// ============================================================================
// Parallel Benchmarks
// ============================================================================

func BenchmarkNormalizeNumberParallel(b *testing.B) {
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			NormalizeNumber("₹1,234.56")
		}
	})
}

func BenchmarkNormalizeDateParallel(b *testing.B) {
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			NormalizeDate("15/03/2025")
		}
	})
}
