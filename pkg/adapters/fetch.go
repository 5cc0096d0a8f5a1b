package adapters

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
)

// maxRedirects は参照画像の取得で追跡するリダイレクトの上限です。
const maxRedirects = 5

// RestyFetcher は resty クライアントで URL の本文を取得します。
type RestyFetcher struct {
	client *resty.Client
}

// NewRestyFetcher は RestyFetcher を生成します。
func NewRestyFetcher(client *resty.Client) *RestyFetcher {
	return &RestyFetcher{client: client}
}

// FetchBytes は GET で本文を取得します。2xx 以外はエラーです。
func (f *RestyFetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("GET %s に失敗しました: %w", url, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("GET %s が失敗ステータスを返しました: %d", url, resp.StatusCode())
	}
	return resp.Body(), nil
}

// newRestyClient は参照画像取得用の resty クライアントを生成します。
// checkURL はリダイレクト先ごとに、checkAddr は接続直前の解決済み IP に対して呼ばれます。
// checkAddr が nil の場合は接続時の検証を行いません。
func newRestyClient(timeout time.Duration, checkURL func(rawURL string) (bool, error), checkAddr func(net.IP) error) *resty.Client {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(1).
		SetRedirectPolicy(
			resty.FlexibleRedirectPolicy(maxRedirects),
			resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
				if safe, err := checkURL(req.URL.String()); !safe || err != nil {
					return fmt.Errorf("リダイレクト先 %s をブロックしました: %w", req.URL.Redacted(), err)
				}
				return nil
			}),
		)

	if checkAddr != nil {
		client.SetTransport(guardedTransport(checkAddr))
	}
	return client
}

// guardedTransport は接続先 IP を検証する Transport を返します。
// 名前解決と接続の間にアドレスが変わっても、実際に接続する IP で判定されます。
func guardedTransport(checkAddr func(net.IP) error) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control: func(network, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			ip := net.ParseIP(host)
			if ip == nil {
				return fmt.Errorf("接続先のアドレスを解釈できません: %s", address)
			}
			return checkAddr(ip)
		},
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	// プロキシを経由すると接続先の検証がプロキシに対して行われてしまう
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return transport
}

// NewDefaultFetcher は SSRF 対策を有効にした RestyFetcher を生成します。
func NewDefaultFetcher(timeout time.Duration) *RestyFetcher {
	return NewRestyFetcher(newRestyClient(timeout, isSafeURL, checkIP))
}
