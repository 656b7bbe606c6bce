package fara

import (
	"bytes"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// NewDocument parses an HTML body.
func NewDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// ListingPath returns the relative href of the worksheet link on the entry page.
func ListingPath(doc *goquery.Document) (string, error) {
	href, ok := doc.Find(listingLinkSelector).First().Attr("href")
	if !ok || href == "" {
		return "", missing(listingLinkSelector + "[href]")
	}
	return href, nil
}

// WorksheetTokens are the hidden APEX session fields echoed back in the POST.
type WorksheetTokens struct {
	FlowID     string
	FlowStepID string
	Instance   string
}

// ParseWorksheetTokens reads the hidden flow, step and instance inputs.
func ParseWorksheetTokens(doc *goquery.Document) (WorksheetTokens, error) {
	var tokens WorksheetTokens
	fields := []struct {
		selector string
		dst      *string
	}{
		{flowIDSelector, &tokens.FlowID},
		{flowStepIDSelector, &tokens.FlowStepID},
		{instanceSelector, &tokens.Instance},
	}
	for _, f := range fields {
		value, ok := doc.Find(f.selector).First().Attr("value")
		if !ok {
			return WorksheetTokens{}, missing(f.selector + "[value]")
		}
		*f.dst = value
	}
	return tokens, nil
}

// ParseRowCount reads the total number of active foreign principals shown on
// the worksheet page.
func ParseRowCount(doc *goquery.Document) (int, error) {
	sel := doc.Find(rowCountSelector).First()
	text, ok := ownText(sel)
	if !ok {
		return 0, missing(rowCountSelector)
	}
	text = strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	n, err := strconv.Atoi(text)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRowCount, text)
	}
	return n, nil
}

// ParseRows turns the worksheet table into partial records, in row order.
// The header row is skipped. Rows that fail to parse are left out and
// reported together in the returned error as *RowError values.
func ParseRows(doc *goquery.Document, baseURL string) ([]PartialRecord, error) {
	rows := doc.Find(worksheetRowsSelector)
	if rows.Length() == 0 {
		return nil, missing(worksheetRowsSelector)
	}
	records := make([]PartialRecord, 0, rows.Length()-1)
	var errs []error
	rows.Slice(1, goquery.ToEnd).Each(func(i int, row *goquery.Selection) {
		rec, err := parseRow(row, baseURL)
		if err != nil {
			errs = append(errs, &RowError{Index: i, Err: err})
			return
		}
		records = append(records, rec)
	})
	return records, errors.Join(errs...)
}

func parseRow(row *goquery.Selection, baseURL string) (PartialRecord, error) {
	href, ok := cell(row, ColumnLink).Find("a").First().Attr("href")
	if !ok {
		return PartialRecord{}, missing(cellSelector(ColumnLink) + " a[href]")
	}
	address, ok := ownText(cell(row, ColumnAddress))
	if !ok {
		return PartialRecord{}, missing(cellSelector(ColumnAddress))
	}
	fpRegDate, err := dateCell(row, ColumnFPRegDate)
	if err != nil {
		return PartialRecord{}, err
	}
	regDate, err := dateCell(row, ColumnRegDate)
	if err != nil {
		return PartialRecord{}, err
	}
	return PartialRecord{
		URL:              JoinURL(baseURL, href),
		ForeignPrincipal: text(row, ColumnFPName),
		FPRegDate:        fpRegDate,
		Address:          strings.TrimSpace(address),
		State:            text(row, ColumnState),
		Country:          text(row, ColumnCountry),
		Registrant:       text(row, ColumnRegistrant),
		RegNum:           text(row, ColumnRegNumber),
		RegDate:          regDate,
	}, nil
}

// ParseExhibits lazily walks the exhibit table of a detail page, header
// excluded, yielding one Exhibit per row in table order. A row with a missing
// link or a malformed date yields a non-nil error.
func ParseExhibits(doc *goquery.Document) iter.Seq2[Exhibit, error] {
	rows := doc.Find(exhibitRowsSelector)
	return func(yield func(Exhibit, error) bool) {
		for i := 1; i < rows.Length(); i++ {
			row := rows.Eq(i)
			ex, err := parseExhibit(row)
			if err != nil {
				err = &RowError{Index: i - 1, Err: err}
			}
			if !yield(ex, err) {
				return
			}
		}
	}
}

// CollectExhibits drains ParseExhibits, stopping at the first bad row.
func CollectExhibits(doc *goquery.Document) ([]Exhibit, error) {
	exhibits := []Exhibit{}
	for ex, err := range ParseExhibits(doc) {
		if err != nil {
			return nil, err
		}
		exhibits = append(exhibits, ex)
	}
	return exhibits, nil
}

func parseExhibit(row *goquery.Selection) (Exhibit, error) {
	href, ok := row.Find(exhibitLinkSelector).First().Attr("href")
	if !ok {
		return Exhibit{}, missing(exhibitLinkSelector + "[href]")
	}
	raw, ok := ownText(row.Find(exhibitDateSelector).First())
	if !ok {
		return Exhibit{}, missing(exhibitDateSelector)
	}
	date, err := FormatDate(raw)
	if err != nil {
		return Exhibit{}, err
	}
	return Exhibit{URL: href, Date: date}, nil
}

// JoinURL prefixes a relative portal path with the service base URL.
func JoinURL(baseURL, path string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

func cellSelector(header string) string {
	return "td[headers=" + header + "]"
}

func cell(row *goquery.Selection, header string) *goquery.Selection {
	return row.Find(cellSelector(header)).First()
}

// text returns the cell's first direct text node, or "" when there is none.
func text(row *goquery.Selection, header string) string {
	s, _ := ownText(cell(row, header))
	return s
}

func dateCell(row *goquery.Selection, header string) (string, error) {
	raw, ok := ownText(cell(row, header))
	if !ok {
		return "", missing(cellSelector(header))
	}
	return FormatDate(raw)
}

// ownText returns the first text node directly under the first selected node.
// Descendant text (inside links or spans) is not considered.
func ownText(sel *goquery.Selection) (string, bool) {
	if sel.Length() == 0 {
		return "", false
	}
	for c := sel.Nodes[0].FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			return c.Data, true
		}
	}
	return "", false
}
