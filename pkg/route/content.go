package route

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"
	"github.com/ohler55/ojg/oj"
)

// MIME types produced by content negotiation.
const (
	ContentTypeJSON  = "application/json"
	ContentTypeXML   = "application/xml"
	ContentTypeHTML  = "text/html"
	ContentTypePlain = "text/plain"
)

// Negotiate turns a response payload into body bytes and a content type.
//
// Maps are serialized to JSON. A string is first tried as a filesystem path:
// if the file is readable its raw bytes are returned with a MIME type derived
// from the extension. Otherwise the string itself is sniffed, in order, as
// JSON, HTML, then XML, falling back to text/plain. Any other payload type is
// rejected.
func Negotiate(payload any) ([]byte, string, error) {
	switch data := payload.(type) {
	case map[string]any:
		return negotiateJSON(data)
	case map[string]string:
		return negotiateJSON(data)
	case string:
		return negotiateText(data)
	case []byte:
		return negotiateText(string(data))
	default:
		return nil, "", fmt.Errorf("%w: payload must be a string or a map, got %T", ErrType, payload)
	}
}

func negotiateJSON(data any) ([]byte, string, error) {
	body, err := oj.Marshal(data, &oj.Options{Sort: true})
	if err != nil {
		return nil, "", fmt.Errorf("%w: payload is not serializable: %v", ErrType, err)
	}
	return body, ContentTypeJSON, nil
}

func negotiateText(data string) ([]byte, string, error) {
	// File contents win over content sniffing: a ".jpg" path must never be
	// JSON-sniffed. An unreadable path falls through to sniffing.
	if body, err := os.ReadFile(data); err == nil {
		return body, ContentTypeForFile(data), nil
	}

	switch {
	case isJSON(data):
		return []byte(data), ContentTypeJSON, nil
	case isHTML(data):
		return []byte(data), ContentTypeHTML, nil
	case isXML(data):
		return []byte(data), ContentTypeXML, nil
	default:
		return []byte(data), ContentTypePlain, nil
	}
}

// isJSON reports whether data parses as JSON.
func isJSON(data string) bool {
	_, err := oj.ParseString(data)
	return err == nil
}

// isHTML reports whether data looks like an HTML document. Deliberately lazy:
// only document prefixes count, so fragments still sniff as XML.
func isHTML(data string) bool {
	return strings.HasPrefix(data, "<!DOCTYPE html") || strings.HasPrefix(data, "<html")
}

// isXML reports whether data parses as well-formed XML with a root element.
func isXML(data string) bool {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(data); err != nil {
		return false
	}
	return doc.Root() != nil
}

func extensionOf(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
