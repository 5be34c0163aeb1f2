package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	switch node.Type {
	case html.TextNode:
		buffer.WriteString(node.Data)
		return
	case html.ElementNode:
		// script and style contents are never visible text
		if node.Data == "script" || node.Data == "style" {
			return
		}
		// block boundaries become spaces so adjacent words do not merge
		buffer.WriteByte(' ')
		defer buffer.WriteByte(' ')
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText removes non-printable runes, collapses whitespace and trims.
func CleanText(s string) string {
	s = removeNonPrintable(s)
	s = innerWhitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// SelectionText returns the cleaned visible text of every node in sel.
func SelectionText(sel *goquery.Selection) string {
	var buffer strings.Builder
	for _, n := range sel.Nodes {
		buffer.WriteString(GetText(n))
		buffer.WriteByte(' ')
	}
	return CleanText(buffer.String())
}

// FirstText returns the first non-empty text found by trying selectors in order
// within root.
func FirstText(root *goquery.Selection, selectors []string) string {
	for _, selector := range selectors {
		found := root.Find(selector)
		for i := range found.Nodes {
			text := SelectionText(found.Eq(i))
			if text != "" {
				return text
			}
		}
	}
	return ""
}

// FirstAttr returns the first non-empty value of any of attrs on the elements
// found by trying selectors in order within root.
func FirstAttr(root *goquery.Selection, selectors []string, attrs []string) string {
	for _, selector := range selectors {
		found := root.Find(selector)
		for i := range found.Nodes {
			el := found.Eq(i)
			for _, attr := range attrs {
				value, ok := el.Attr(attr)
				value = strings.TrimSpace(value)
				if ok && value != "" {
					return value
				}
			}
		}
	}
	return ""
}
