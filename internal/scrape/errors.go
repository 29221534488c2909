package scrape

import "fmt"

// FetchError reports a network failure or non-success HTTP status while
// reaching the source page. Fetch errors are transient and safe to retry.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetching %s: status %d", e.URL, e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports that the extracted sequences disagree in length,
// which signals upstream page-schema drift. Retrying will not help; the
// selectors need updating.
type ParseError struct {
	URL     string
	Times   int
	Titles  int
	Artists int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: misaligned sequences (times=%d titles=%d artists=%d)",
		e.URL, e.Times, e.Titles, e.Artists)
}
