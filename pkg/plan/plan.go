// Package plan turns a tag classification and post count into a bounded
// sequence of API pages.
package plan

import "fmt"

const (
	// PageLimit is the largest page size the API accepts
	PageLimit = 320
	// GeneralPostCap bounds how many posts a general search retrieves
	GeneralPostCap = 1280
	// CharacterThreshold is the post count above which a character tag is
	// treated as general
	CharacterThreshold = 1500
)

// TagClass decides whether a search is capped
type TagClass int

const (
	ClassGeneral TagClass = iota
	ClassSpecial
)

func (c TagClass) String() string {
	switch c {
	case ClassGeneral:
		return "general"
	case ClassSpecial:
		return "special"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Page is one request in a plan
type Page struct {
	Number int // 1-based
	Size   int
}

// PagePlan lists the pages to request for one entry
type PagePlan struct {
	CappedCount int
	Pages       []Page
}

// Empty reports whether the plan requests nothing
func (p PagePlan) Empty() bool { return len(p.Pages) == 0 }

// For builds the plan for a tag search of the given class and post count.
// General searches are capped at GeneralPostCap.
func For(class TagClass, count int) PagePlan {
	if count < 0 {
		count = 0
	}
	if class == ClassGeneral && count > GeneralPostCap {
		count = GeneralPostCap
	}
	return paginate(count)
}

// ForCollection plans retrieval of every post in a pool or set
func ForCollection(n int) PagePlan {
	if n < 0 {
		n = 0
	}
	return paginate(n)
}

// Single is the plan for a lone post lookup
func Single() PagePlan {
	return PagePlan{CappedCount: 1, Pages: []Page{{Number: 1, Size: 1}}}
}

func paginate(capped int) PagePlan {
	plan := PagePlan{CappedCount: capped}
	if capped == 0 {
		return plan
	}
	pages := (capped + PageLimit - 1) / PageLimit
	plan.Pages = make([]Page, pages)
	for i := range plan.Pages {
		plan.Pages[i] = Page{Number: i + 1, Size: PageLimit}
	}
	plan.Pages[pages-1].Size = capped - PageLimit*(pages-1)
	return plan
}
