package main

import (
	"fmt"

	"github.com/erain9/matchbook/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
)

func main() {
	book := core.NewOrderBook()

	// Two resting sells at the same price, A first
	sellA := core.NewLimitOrder(1, 1, "A", core.Sell, fpdecimal.FromFloat(100.0), 2)
	sellB := core.NewLimitOrder(2, 2, "B", core.Sell, fpdecimal.FromFloat(100.0), 2)
	for _, o := range []*core.Order{sellA, sellB} {
		if _, err := book.Submit(o); err != nil {
			panic(err)
		}
		fmt.Printf("Resting sell order: %s\n", o)
	}

	// A crossing buy fills A completely before touching B
	buy := core.NewLimitOrder(3, 3, "C", core.Buy, fpdecimal.FromFloat(101.0), 3)
	trades, err := book.Submit(buy)
	if err != nil {
		panic(err)
	}

	fmt.Printf("\nProcessing buy order: %s\n", buy)
	for _, t := range trades {
		fmt.Printf("Trade executed: buyer=%s seller=%s qty=%d price=%s\n", t.Buyer(), t.Seller(), t.Quantity(), t.Price())
	}

	fmt.Printf("\nCancel B: %v\n", book.Cancel(2))
	fmt.Printf("Cancel B again: %v\n", book.Cancel(2))

	fmt.Println("\nSummary of orders:")
	for _, o := range []*core.Order{sellA, sellB, buy} {
		fmt.Printf("- %s: ID=%d, Price=%s, Quantity=%d/%d\n",
			o.Side(), o.ID(), o.Price(), o.Quantity(), o.OriginalQty())
	}
	fmt.Printf("\nBook:\n%s", book)
}
