// Package memo defines the Memo record persisted by the storage backends,
// the Store contract they implement, and the helpers the presentation
// surfaces use to search, sort and render memos.
package memo
