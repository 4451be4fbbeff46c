// Package extract pulls household records out of the consumer vendor's
// semi-structured response text.
//
// The vendor answer is treated as opaque text regardless of its declared
// content type. A record is a <Street>...</Street> block; inside it each
// field is the first <Tag>...</Tag> pair. Pairs are matched non-greedily,
// so a block ends at the first closing tag after its opening tag.
package extract

import "strings"

// Tag names used by the vendor response.
const (
	TagRecord    = "Street"
	TagGeography = "Geography"
	TagCount     = "Count"
	TagZip       = "Zip"
	TagName      = "Name"
	TagPhone     = "Phone"
	TagEmail     = "Email"
	TagResult    = "Result"
)

// FieldKind says whether a field was found and whether it could be read.
type FieldKind int

const (
	// Absent means the tag pair does not occur.
	Absent FieldKind = iota
	// Present means the tag pair occurs and its content was usable.
	Present
	// Malformed means the tag pair occurs but its content could not be read
	// as the expected type.
	Malformed
)

func (k FieldKind) String() string {
	switch k {
	case Absent:
		return "absent"
	case Present:
		return "present"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Field is the raw text of one tag pair.
type Field struct {
	Value string
	Kind  FieldKind
}

// Ptr returns the field value, or nil when the field is absent.
func (f Field) Ptr() *string {
	if f.Kind == Absent {
		return nil
	}
	v := f.Value
	return &v
}

// Block is the content of one record element.
type Block struct {
	Body string
	// Offset is the byte position of Body in the scanned text.
	Offset int
}

// Field returns the first tag pair named tag inside the block.
func (b Block) Field(tag string) Field {
	value, _, ok := findElement(b.Body, tag, 0)
	if !ok {
		return Field{Kind: Absent}
	}
	return Field{Value: value, Kind: Present}
}

// Blocks returns every record block in text, in order of appearance.
func Blocks(text string) []Block {
	return elements(text, TagRecord)
}

// Contains reports whether text holds a <tag>value</tag> pair.
func Contains(text, tag, value string) bool {
	return strings.Contains(text, openTag(tag)+value+closeTag(tag))
}

// TotalCount returns the first all-digit <Count> value anywhere in text, or
// "0" when there is none.
func TotalCount(text string) string {
	for _, el := range elements(text, TagCount) {
		if el.Body != "" && isDigits(el.Body) {
			return el.Body
		}
	}
	return "0"
}

func elements(text, tag string) []Block {
	var out []Block
	from := 0
	for {
		value, next, ok := findElement(text, tag, from)
		if !ok {
			return out
		}
		out = append(out, Block{Body: value, Offset: next - len(closeTag(tag)) - len(value)})
		from = next
	}
}

// findElement locates the first <tag>...</tag> pair at or after from. It
// returns the enclosed text and the index just past the closing tag.
func findElement(text, tag string, from int) (string, int, bool) {
	startTag, endTag := openTag(tag), closeTag(tag)
	start := strings.Index(text[from:], startTag)
	if start < 0 {
		return "", 0, false
	}
	bodyStart := from + start + len(startTag)
	end := strings.Index(text[bodyStart:], endTag)
	if end < 0 {
		return "", 0, false
	}
	bodyEnd := bodyStart + end
	return text[bodyStart:bodyEnd], bodyEnd + len(endTag), true
}

func openTag(tag string) string  { return "<" + tag + ">" }
func closeTag(tag string) string { return "</" + tag + ">" }

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
