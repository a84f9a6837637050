package naver

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"

	"github.com/wonny/factorlab/pkg/httputil"
	"github.com/wonny/factorlab/pkg/logger"
)

const (
	DefaultBaseURL  = "https://finance.naver.com"
	DefaultChartURL = "https://fchart.stock.naver.com"

	// defaultMaxPages 일별 시세 페이지네이션 상한 (페이지당 6~10 거래일)
	defaultMaxPages = 60
)

// Client handles communication with Naver Finance
// ⭐ SSOT: Naver Finance 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	chartURL   string
	maxPages   int
}

// NewClient creates a new Naver Finance client.
// An empty baseURL falls back to DefaultBaseURL.
func NewClient(httpClient *httputil.Client, log *logger.Logger, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    strings.TrimRight(baseURL, "/"),
		chartURL:   DefaultChartURL,
		maxPages:   defaultMaxPages,
	}
}

// WithChartURL overrides the chart API host (tests)
func (c *Client) WithChartURL(u string) *Client {
	c.chartURL = strings.TrimRight(u, "/")
	return c
}

// WithMaxPages limits how many daily pages a series fetch walks back
func (c *Client) WithMaxPages(n int) *Client {
	if n > 0 {
		c.maxPages = n
	}
	return c
}

// fetchDocument fetches an HTML page and parses it with goquery.
// Naver Finance serves EUC-KR; the body is decoded to UTF-8 first.
func (c *Client) fetchDocument(ctx context.Context, path string, params url.Values) (*goquery.Document, error) {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL = fmt.Sprintf("%s?%s", fullURL, params.Encode())
	}

	body, err := c.httpClient.GetBody(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}

	doc, err := goquery.NewDocumentFromReader(decodeBody(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// decodeBody converts an EUC-KR page to UTF-8; UTF-8 pages pass through
func decodeBody(body []byte) *bytes.Reader {
	if isUTF8Page(body) {
		return bytes.NewReader(body)
	}
	decoded, _, err := transform.Bytes(korean.EUCKR.NewDecoder(), body)
	if err != nil {
		return bytes.NewReader(body)
	}
	return bytes.NewReader(decoded)
}

func isUTF8Page(body []byte) bool {
	head := body
	if len(head) > 1024 {
		head = head[:1024]
	}
	return !strings.Contains(strings.ToLower(string(head)), "euc-kr")
}
