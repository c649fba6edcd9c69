package search_test

import (
	"fmt"

	"github.com/jonwraymond/biasdaily/content"
	"github.com/jonwraymond/biasdaily/search"
)

func ExampleSearch() {
	biases := []content.Bias{
		{
			ID:       "bias-1",
			Title:    "Confirmation Bias",
			Category: content.CategoryDecision,
			Summary:  "tendency to search for information that confirms existing beliefs",
		},
		{
			ID:       "bias-2",
			Title:    "Anchoring Bias",
			Category: content.CategoryMemory,
			Summary:  "relying too heavily on the first piece of information",
		},
	}

	for _, r := range search.Search(biases, "existing beliefs") {
		fmt.Println(r.Bias.ID, r.MatchedFields)
	}
	// Output:
	// bias-1 [summary]
}

func ExampleSearch_emptyQuery() {
	biases := []content.Bias{
		{ID: "a", Title: "Halo Effect", Category: content.CategorySocial},
		{ID: "b", Title: "Framing Effect", Category: content.CategoryPerception},
	}

	for _, r := range search.Search(biases, "") {
		fmt.Printf("%s %.0f\n", r.Bias.ID, r.Score)
	}
	// Output:
	// a 1
	// b 1
}

func ExampleHighlight() {
	fmt.Println(search.Highlight("Confirmation Bias", "confirm"))
	fmt.Println(search.Highlight("Confirmation Bias", "anchoring"))
	// Output:
	// <mark>Confirm</mark>ation Bias
	// Confirmation Bias
}

func ExampleNewRanker() {
	r, err := search.NewRanker(search.Options{
		Marker: search.Marker{Open: "[", Close: "]"},
	})
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Println(r.Highlight("Sunk Cost Fallacy", "cost"))
	// Output:
	// Sunk [Cost] Fallacy
}
