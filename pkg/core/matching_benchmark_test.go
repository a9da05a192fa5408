package core

import (
	"testing"

	"github.com/nikolaydubina/fpdecimal"
)

// seedAsks rests one sell order at each of levels prices from 100.0 up in 0.1 steps
func seedAsks(b *testing.B, ob *OrderBook, levels, perLevel int, nextID *uint64) {
	b.Helper()
	for i := 0; i < levels; i++ {
		price := fpdecimal.FromFloat(100.0 + float64(i)*0.1)
		for j := 0; j < perLevel; j++ {
			*nextID++
			qty := uint32(1 + (i+j)%5)
			if _, err := ob.Submit(NewLimitOrder(*nextID, int64(*nextID), "maker", Sell, price, qty)); err != nil {
				b.Fatal(err)
			}
		}
	}
}

// BenchmarkRestingInsert measures submissions that never cross
func BenchmarkRestingInsert(b *testing.B) {
	ob := NewOrderBook()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		price := fpdecimal.FromFloat(90.0 - float64(i%500)*0.1)
		_, _ = ob.Submit(NewLimitOrder(uint64(i+1), int64(i), "bidder", Buy, price, 1))
	}
}

// BenchmarkLimitOrderMatching matches against the top of a 100 level book
func BenchmarkLimitOrderMatching(b *testing.B) {
	ob := NewOrderBook()
	var nextID uint64
	seedAsks(b, ob, 100, 1, &nextID)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// Put back what the last iteration took so the book never drains
		nextID++
		_, _ = ob.Submit(NewLimitOrder(nextID, int64(nextID), "maker", Sell, fpdecimal.FromFloat(100.0), 2))

		nextID++
		_, _ = ob.Submit(NewLimitOrder(nextID, int64(nextID), "taker", Buy, fpdecimal.FromFloat(100.5), 2))
	}
}

// BenchmarkMultiLevelMatching sweeps several dense price levels per order
func BenchmarkMultiLevelMatching(b *testing.B) {
	ob := NewOrderBook()
	var nextID uint64

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		seedAsks(b, ob, 20, 5, &nextID)
		b.StartTimer()

		nextID++
		_, _ = ob.Submit(NewLimitOrder(nextID, int64(nextID), "taker", Buy, fpdecimal.FromFloat(102.0), 300))

		b.StopTimer()
		if id := nextID; ob.GetOrder(id) != nil {
			ob.Cancel(id)
		}
		b.StartTimer()
	}
}

// BenchmarkCancel measures cancelling from the middle of a deep level
func BenchmarkCancel(b *testing.B) {
	ob := NewOrderBook()
	price := fpdecimal.FromFloat(100.0)
	const depth = 10000

	for i := 1; i <= depth; i++ {
		_, _ = ob.Submit(NewLimitOrder(uint64(i), int64(i), "maker", Buy, price, 1))
	}
	nextID := uint64(depth)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := uint64(i%depth) + 1
		ob.Cancel(id)

		b.StopTimer()
		nextID++
		_, _ = ob.Submit(NewLimitOrder(id, int64(nextID), "maker", Buy, price, 1))
		b.StartTimer()
	}
}
