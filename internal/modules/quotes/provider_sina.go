package quotes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yhchan/stockledger/internal/domain"
)

// SinaProvider fetches quotes from the hq.sinajs.cn line-oriented feed.
// Response lines look like:
//
//	var hq_str_sh600000="浦发银行,10.20,10.10,10.30,...";
//
// where field 1 is today's open, 2 the previous close and 3 the current
// price.
type SinaProvider struct {
	baseURL string
	cli     *http.Client
}

// NewSinaProvider creates a provider against the given base URL.
func NewSinaProvider(baseURL string) *SinaProvider {
	return &SinaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		cli:     &http.Client{Timeout: 8 * time.Second},
	}
}

func (p *SinaProvider) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	symbol = strings.ToLower(strings.TrimSpace(symbol))
	if symbol == "" {
		return domain.Quote{}, fmt.Errorf("empty symbol")
	}

	url := fmt.Sprintf("%s/list=%s", p.baseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Quote{}, err
	}
	// The feed rejects requests without a same-site referer.
	req.Header.Set("Referer", "https://finance.sina.com.cn")

	resp, err := p.cli.Do(req)
	if err != nil {
		return domain.Quote{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Quote{}, fmt.Errorf("quote fetch: http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Quote{}, err
	}

	return parseSinaLine(symbol, string(body))
}

func parseSinaLine(symbol, line string) (domain.Quote, error) {
	first := strings.Index(line, `"`)
	last := strings.LastIndex(line, `"`)
	if first < 0 || last <= first {
		return domain.Quote{}, fmt.Errorf("malformed quote response for %s", symbol)
	}

	fields := strings.Split(line[first+1:last], ",")
	if len(fields) < 4 {
		return domain.Quote{}, fmt.Errorf("no quote data for %s", symbol)
	}

	prevClose, err := decimal.NewFromString(fields[2])
	if err != nil {
		return domain.Quote{}, fmt.Errorf("bad previous close for %s: %w", symbol, err)
	}
	price, err := decimal.NewFromString(fields[3])
	if err != nil {
		return domain.Quote{}, fmt.Errorf("bad price for %s: %w", symbol, err)
	}

	q := domain.Quote{
		Symbol:    symbol,
		Price:     price,
		PrevClose: prevClose,
		Change:    price.Sub(prevClose),
	}
	if prevClose.IsPositive() {
		q.ChangePercent = q.Change.Div(prevClose).Mul(decimal.NewFromInt(100))
	}
	return q, nil
}
