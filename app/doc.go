// Package app is the facade that ties the bias catalog, search, daily
// selection and the progress store together.
//
// An [App] owns:
//
//   - a content.Catalog seeded with the embedded core dataset and the
//     learner's saved biases
//   - a search strategy (substring ranker or bleve full-text)
//   - a progress.Store for favorites, views, streaks and settings
//
// # Usage
//
//	a, err := app.New(ctx, app.Options{Mode: app.ModeRanker})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer a.Close()
//
//	results, err := a.Search(ctx, "anchor", 10)
//	daily, err := a.Today(ctx)
//	_, err = a.View(ctx, daily.Bias.ID)
//
// # Thread Safety
//
// App is safe for concurrent use. Catalog mutations and store updates
// are serialized by their owners.
package app
