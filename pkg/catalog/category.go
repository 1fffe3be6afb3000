// Package catalog resolves tag entries to catalog metadata and decides
// whether their searches are capped.
package catalog

import (
	"fmt"

	"e621dl/pkg/plan"
)

// Category is the declared category of a catalog tag
type Category int

const (
	CategoryGeneral Category = iota
	CategoryArtist
	CategoryCharacter
	CategorySpecies
	CategoryCopyright
)

// API category codes
const (
	codeGeneral   = 0
	codeArtist    = 1
	codeCopyright = 3
	codeCharacter = 4
	codeSpecies   = 5
	codeInvalid   = 6
	codeMeta      = 7
	codeLore      = 8
)

// CategoryFromCode decodes an API category code. Invalid, meta and lore tags
// search like general tags.
func CategoryFromCode(code int) (Category, error) {
	switch code {
	case codeGeneral, codeInvalid, codeMeta, codeLore:
		return CategoryGeneral, nil
	case codeArtist:
		return CategoryArtist, nil
	case codeCopyright:
		return CategoryCopyright, nil
	case codeCharacter:
		return CategoryCharacter, nil
	case codeSpecies:
		return CategorySpecies, nil
	default:
		return 0, fmt.Errorf("unknown tag category code %d", code)
	}
}

func (c Category) String() string {
	switch c {
	case CategoryGeneral:
		return "general"
	case CategoryArtist:
		return "artist"
	case CategoryCharacter:
		return "character"
	case CategorySpecies:
		return "species"
	case CategoryCopyright:
		return "copyright"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// TagMetadata is a tag's catalog record at lookup time
type TagMetadata struct {
	Name      string
	Category  Category
	PostCount int
}

// Classify decides whether a tag's search is capped. Popular characters
// behave like general tags.
func Classify(meta TagMetadata) plan.TagClass {
	switch meta.Category {
	case CategoryGeneral, CategoryCopyright, CategorySpecies:
		return plan.ClassGeneral
	case CategoryArtist:
		return plan.ClassSpecial
	case CategoryCharacter:
		if meta.PostCount > plan.CharacterThreshold {
			return plan.ClassGeneral
		}
		return plan.ClassSpecial
	default:
		panic(fmt.Sprintf("catalog: unhandled category %v", meta.Category))
	}
}
