// Package paginate splits a target record count into paged requests.
package paginate

// MaxPageSize is the largest page any of the upstream APIs accepts.
const MaxPageSize = 100

// Page is one planned request: a 1-based page number and the number of
// items to ask for.
type Page struct {
	Number int
	Size   int
}

// Plan returns the pages needed to fetch total items.
//
// A total of zero or less plans no requests. Totals above MaxPageSize are
// split into full pages followed by one page for the remainder; an exact
// multiple of MaxPageSize gets no trailing empty page.
func Plan(total int) []Page {
	if total <= 0 {
		return nil
	}
	if total <= MaxPageSize {
		return []Page{{Number: 1, Size: total}}
	}
	full := total / MaxPageSize
	pages := make([]Page, 0, full+1)
	for i := 1; i <= full; i++ {
		pages = append(pages, Page{Number: i, Size: MaxPageSize})
	}
	if rem := total % MaxPageSize; rem > 0 {
		pages = append(pages, Page{Number: full + 1, Size: rem})
	}
	return pages
}
