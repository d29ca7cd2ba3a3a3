package finviz

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sabq4org/so7ba.ai/internal/gateway"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

// Default screener filters (elite export view 111)
const (
	BullishFilters = "cap_midover,exch_nasd|nyse,sh_avgvol_o2000,sh_instown_o50,sh_opt_option," +
		"sh_price_20to300,sh_relvol_o1.5,ta_beta_1.2to,ta_change_u1,ta_sma20_pa,ta_volatility_wo3"
	BearishFilters = "cap_midover,exch_nasd|nyse,sh_avgvol_o2000,sh_instown_o50,sh_opt_option," +
		"sh_price_20to300,sh_relvol_o1.5,ta_beta_1.2to3,ta_change_d1,ta_rsi_to40,ta_sma20_pb," +
		"ta_sma50_pb,ta_volatility_wo3"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// Row one screener result
type Row struct {
	Ticker    string  `json:"ticker"`
	Price     float64 `json:"price"`
	ChangePct float64 `json:"change_pct"`
	Volume    int64   `json:"volume"`
}

// Client handles the Finviz screener export
// ⭐ SSOT: Finviz 스크리너 호출/파싱은 이 클라이언트에서만
type Client struct {
	gw     gateway.Querier
	logger *logger.Logger
}

// NewClient creates a new Finviz client
func NewClient(gw gateway.Querier, log *logger.Logger) *Client {
	return &Client{
		gw:     gw,
		logger: log.WithComponent("finviz"),
	}
}

// Screen runs the screener with the given filter expression, ordered by volume.
// CSV is expected; an HTML body (login page, screener view) is parsed as a table.
func (c *Client) Screen(ctx context.Context, filters string) ([]Row, error) {
	params := url.Values{}
	params.Set("v", "111")
	params.Set("f", filters)
	params.Set("ft", "4")
	params.Set("o", "volume")

	body, err := c.gw.QueryRaw(ctx, gateway.Finviz, "/export.ashx", params)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(bytes.TrimPrefix(body, utf8BOM))
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '<' {
		rows, err := parseHTML(trimmed)
		if err != nil || len(rows) == 0 {
			c.logger.WithFields(map[string]interface{}{
				"bytes": len(trimmed),
			}).Warn("Finviz returned HTML without a screener table")
			return nil, fmt.Errorf("%w: finviz: not CSV", gateway.ErrDataUnavailable)
		}
		c.logger.WithField("count", len(rows)).Debug("Parsed Finviz HTML table")
		return rows, nil
	}

	rows, err := parseCSV(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: finviz csv: %v", gateway.ErrDataUnavailable, err)
	}
	return rows, nil
}

// parseCSV reads an export with at least a Ticker column
func parseCSV(body []byte) ([]Row, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := indexColumns(header)
	if _, ok := cols["ticker"]; !ok {
		return nil, errors.New("no Ticker column")
	}

	var rows []Row
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		if row, ok := toRow(cols, rec); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// parseHTML finds the first table whose header row has a Ticker column
func parseHTML(body []byte) ([]Row, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var rows []Row
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		var cols map[string]int
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var cells []string
			tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, strings.TrimSpace(cell.Text()))
			})
			if len(cells) == 0 {
				return
			}
			if cols == nil {
				candidate := indexColumns(cells)
				if _, ok := candidate["ticker"]; ok {
					cols = candidate
				}
				return
			}
			if row, ok := toRow(cols, cells); ok {
				rows = append(rows, row)
			}
		})
		// stop at the first screener table
		return cols == nil
	})
	return rows, nil
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := cols[key]; !dup {
			cols[key] = i
		}
	}
	return cols
}

func toRow(cols map[string]int, rec []string) (Row, bool) {
	get := func(name string) string {
		if i, ok := cols[name]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	ticker := strings.ToUpper(get("ticker"))
	if ticker == "" {
		return Row{}, false
	}
	return Row{
		Ticker:    ticker,
		Price:     parseNumber(get("price")),
		ChangePct: parseNumber(get("change")),
		Volume:    int64(parseNumber(get("volume"))),
	}, true
}

// parseNumber strips thousands separators and percent signs; garbage is 0
func parseNumber(s string) float64 {
	s = strings.NewReplacer(",", "", "%", "").Replace(strings.TrimSpace(s))
	if s == "" || s == "-" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
