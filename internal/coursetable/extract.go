// Package coursetable turns the portal's course page into course records.
package coursetable

import (
	"fmt"
	"strings"

	"gradewatch/internal/components/telemetry"
	"gradewatch/internal/course"
	"gradewatch/internal/watcherr"
	"gradewatch/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const report_extract_table = "extract.table"

const DefaultTableSelector = "table#ctl00_MainContainer_gvRegisteredCourse"

type Extractor struct {
	// TableSelector picks the course table, defaults to DefaultTableSelector.
	TableSelector string

	tel telemetry.API
}

func NewExtractor(selector string, tel telemetry.API) Extractor {
	if selector == "" {
		selector = DefaultTableSelector
	}
	return Extractor{
		TableSelector: selector,
		tel:           telemetry.NewScopedAPI("coursetable", tel),
	}
}

func cellTexts(cells *goquery.Selection) []string {
	out := make([]string, 0, cells.Length())
	for _, n := range cells.Nodes {
		out = append(out, htmlutil.NodeText(n))
	}
	return out
}

// Extract reads every data row of the course table in document order.
// A page without the table or without a header row is an ErrExtraction.
func (e Extractor) Extract(page string) ([]course.Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, watcherr.Wrap(watcherr.ErrExtraction, "coursetable.extract", err)
	}

	selector := e.TableSelector
	if selector == "" {
		selector = DefaultTableSelector
	}
	table := doc.Find(selector).First()
	if table.Length() == 0 {
		err := watcherr.New(watcherr.ErrExtraction, "coursetable.extract", "no table matches %q", selector)
		e.report(err)
		return nil, err
	}

	// only the table's own rows, not those of tables nested in its cells
	rows := table.ChildrenFiltered("thead, tbody, tfoot").ChildrenFiltered("tr")
	headerIdx := -1
	var headers []string
	rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
		th := row.ChildrenFiltered("th")
		if th.Length() == 0 {
			return true
		}
		headerIdx = i
		headers = cellTexts(th)
		return false
	})
	if headerIdx < 0 {
		err := watcherr.New(watcherr.ErrExtraction, "coursetable.extract", "course table has no header row")
		e.report(err)
		return nil, err
	}

	records := []course.Record{}
	rows.Slice(headerIdx+1, rows.Length()).Each(func(i int, row *goquery.Selection) {
		// pager rows wrap their page links in a nested table
		if row.ChildrenFiltered("td").Find("table").Length() > 0 {
			return
		}
		cells := cellTexts(row.ChildrenFiltered("td"))
		if blank(cells) {
			return
		}
		columns := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(cells) {
				columns[h] = cells[i]
			} else {
				columns[h] = ""
			}
		}
		records = append(records, course.FromColumns(columns))
	})

	if e.tel != nil {
		e.tel.ReportCount(report_extract_table, int64(len(records)))
	}
	return records, nil
}

// blank is true for rows with no cells or only empty ones (spacer rows).
func blank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

func (e Extractor) report(err error) {
	if e.tel == nil {
		return
	}
	e.tel.ReportWarning(report_extract_table, fmt.Errorf("extract: %w", err))
}
