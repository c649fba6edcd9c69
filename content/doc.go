// Package content defines cognitive-bias records and the catalog that
// holds them.
//
// A [Bias] is an immutable educational entry: a title, a [Category], a
// summary, an explanation of why the bias happens and a counter-strategy.
// Biases come from two sources:
//
//   - SourceCore: the bundled dataset returned by [LoadCore]
//   - SourceUser: entries authored by the learner and persisted elsewhere
//
// # Catalog
//
// [Catalog] merges both sources into one ordered collection. Core biases
// always come first, in dataset order, followed by user biases in the
// order they were added:
//
//	core, err := content.LoadCore()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cat, err := content.NewCatalog(core)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	all := cat.All()
//
// Core entries are read-only; [Catalog.PutUser] and [Catalog.DeleteUser]
// reject them with [ErrReadOnly].
//
// # Change Notifications
//
//	unsub := cat.OnChange(func(event content.ChangeEvent) {
//	    // react to user biases being added or removed
//	})
//	defer unsub()
//
// # Thread Safety
//
// Catalog is safe for concurrent use. Returned slices are copies.
package content
