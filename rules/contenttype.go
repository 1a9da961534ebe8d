package rules

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

// ContentType is the content types enumeration.  The values are persisted in
// the binary filter cache and must not change.
type ContentType uint32

const (
	// TypeOther is any other request type.  $other
	TypeOther ContentType = 0x1
	// TypeScript is javascript and the like.  $script
	TypeScript ContentType = 0x2
	// TypeImage is any image.  $image
	TypeImage ContentType = 0x4
	// TypeStylesheet is css.  $stylesheet
	TypeStylesheet ContentType = 0x8
	// TypeSubdocument is an iframe.  $subdocument
	TypeSubdocument ContentType = 0x10
	// TypeDocument is the main frame.  $document
	TypeDocument ContentType = 0x20
	// TypeMedia is video or audio.  $media
	TypeMedia ContentType = 0x40
	// TypeFont is any custom font.  $font
	TypeFont ContentType = 0x80
	// TypePopup is a new window.  It is recognized but never produced by the
	// classifier.
	TypePopup ContentType = 0x100
	// TypeWebSocket is a websocket connection.  $websocket
	TypeWebSocket ContentType = 0x200
	// TypeXHR is ajax or fetch.  $xmlhttprequest
	TypeXHR ContentType = 0x400

	// TypeAll is the mask of every request content type.
	TypeAll ContentType = 0xffff
)

// Document-level allowlist types.  These never describe a request, only the
// allowlist rules that switch off some kind of filtering for a whole page.
const (
	// TypeGenericBlock disables block rules without domain restrictions.
	// $genericblock
	TypeGenericBlock ContentType = 1 << 28
	// TypeGenericHide disables generic element hiding rules.  $generichide
	TypeGenericHide ContentType = 1 << 29
	// TypeElementHide disables element hiding completely.  $elemhide
	TypeElementHide ContentType = 1 << 30
)

// typeSubresource is the mask of the types that describe loading a resource
// into a page rather than the page itself.
const typeSubresource = TypeOther | TypeScript | TypeImage | TypeStylesheet |
	TypeMedia | TypeFont | TypeWebSocket | TypeXHR

// typePage is the mask of the types that describe a whole page.
const typePage = TypeDocument | TypeGenericBlock | TypeGenericHide | TypeElementHide

// Count returns the count of the enabled flags.
func (t ContentType) Count() int {
	return bits.OnesCount32(uint32(t))
}

// typeNames is used for String.  Keep in the order of the values.
var typeNames = []struct {
	name string
	t    ContentType
}{
	{"other", TypeOther},
	{"script", TypeScript},
	{"image", TypeImage},
	{"stylesheet", TypeStylesheet},
	{"subdocument", TypeSubdocument},
	{"document", TypeDocument},
	{"media", TypeMedia},
	{"font", TypeFont},
	{"popup", TypePopup},
	{"websocket", TypeWebSocket},
	{"xmlhttprequest", TypeXHR},
	{"genericblock", TypeGenericBlock},
	{"generichide", TypeGenericHide},
	{"elemhide", TypeElementHide},
}

// String implements the [fmt.Stringer] interface for ContentType.
func (t ContentType) String() (s string) {
	if t == TypeAll {
		return "all"
	}

	var names []string
	for _, n := range typeNames {
		if t&n.t != 0 {
			names = append(names, n.name)
		}
	}

	if len(names) == 0 {
		return "none"
	}

	return strings.Join(names, "|")
}

// ParseContentType returns the single type with the name as used by
// [ContentType.String].
func ParseContentType(name string) (t ContentType, err error) {
	if name == "all" {
		return TypeAll, nil
	}

	for _, n := range typeNames {
		if n.name == name {
			return n.t, nil
		}
	}

	return 0, fmt.Errorf("content type: %w: %q", errors.ErrBadEnumValue, name)
}
