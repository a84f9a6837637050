package dart

import (
	"crypto/tls"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/wonny/factorlab/pkg/logger"
)

// DefaultBaseURL is the OpenDART API root
const DefaultBaseURL = "https://opendart.fss.or.kr/api"

const (
	requestTimeout = 30 * time.Second
	listPageSize   = 100
)

// Client reads the disclosure list of the DART (전자공시) OpenAPI
// ⭐ SSOT: DART API 호출은 이 클라이언트에서만
type Client struct {
	hc      *http.Client
	log     *logger.Logger
	apiKey  string
	baseURL string
}

// NewClient uses DefaultBaseURL when baseURL is empty
func NewClient(apiKey, baseURL string, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		hc:      &http.Client{Transport: dartTransport(), Timeout: requestTimeout},
		log:     log,
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Configured reports whether an API key is set
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// dartTransport pins TLS 1.2 and re-enables the RSA key exchange suites the
// DART server still needs; Go no longer offers them by default.
func dartTransport() *http.Transport {
	suites := []uint16{
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
		// RSA KEX - DART 서버 필수
		tls.TLS_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_RSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_RSA_WITH_AES_128_CBC_SHA,
		tls.TLS_RSA_WITH_AES_256_CBC_SHA,
	}
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}

	return &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: dialer.DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion:   tls.VersionTLS12,
			MaxVersion:   tls.VersionTLS12,
			CipherSuites: suites,
		},
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        20,
		MaxConnsPerHost:     5,
		IdleConnTimeout:     90 * time.Second,
	}
}

// earningsKeywords 실적 관련 공시 제목 키워드
var earningsKeywords = []string{
	"사업보고서",
	"반기보고서",
	"분기보고서",
	"영업(잠정)실적",
	"연결재무제표기준영업(잠정)실적",
	"매출액또는손익구조",
}

// IsEarningsDisclosure reports whether a report title announces earnings.
// Amendments ([기재정정]) still count: they are filed on their own date.
func IsEarningsDisclosure(reportName string) bool {
	name := strings.ReplaceAll(reportName, " ", "")
	for _, kw := range earningsKeywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}
