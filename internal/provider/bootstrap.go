package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/fzdarsky/hiveauth/pkg/cognito"
)

// DefaultBootstrapURL is the SSO page that publishes the pool metadata.
const DefaultBootstrapURL = "https://sso.hivehome.com/"

var (
	poolIDPattern   = regexp.MustCompile(`HiveSSOPoolId["']?\s*[:=]\s*["']([^"']+)["']`)
	clientIDPattern = regexp.MustCompile(`HiveSSOPublicCognitoClientId["']?\s*[:=]\s*["']([^"']+)["']`)
)

// PoolInfo is the pool metadata needed before any SRP math can run.
type PoolInfo struct {
	PoolID   string
	ClientID string
	Region   string
}

// ResolvePool fetches the bootstrap page and extracts the pool ID and client
// ID from its inline scripts. The region is the pool ID's prefix.
func ResolvePool(ctx context.Context, hc *http.Client, url string) (*PoolInfo, error) {
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	if url == "" {
		url = DefaultBootstrapURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bootstrap page: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch bootstrap page: HTTP %d", resp.StatusCode)
	}

	scripts, err := inlineScripts(io.LimitReader(resp.Body, 4*maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse bootstrap page: %w", err)
	}

	return parsePoolInfo(scripts)
}

// inlineScripts returns the concatenated text of every <script> element.
func inlineScripts(r io.Reader) (string, error) {
	var b strings.Builder
	z := html.NewTokenizer(r)
	inScript := false

	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return b.String(), nil
			}
			return "", z.Err()
		case html.StartTagToken:
			name, _ := z.TagName()
			inScript = string(name) == "script"
		case html.EndTagToken:
			inScript = false
		case html.TextToken:
			if inScript {
				b.Write(z.Text())
				b.WriteByte('\n')
			}
		}
	}
}

func parsePoolInfo(scripts string) (*PoolInfo, error) {
	poolMatch := poolIDPattern.FindStringSubmatch(scripts)
	if poolMatch == nil {
		return nil, fmt.Errorf("bootstrap page does not publish HiveSSOPoolId")
	}
	clientMatch := clientIDPattern.FindStringSubmatch(scripts)
	if clientMatch == nil {
		return nil, fmt.Errorf("bootstrap page does not publish HiveSSOPublicCognitoClientId")
	}

	region, err := cognito.Region(poolMatch[1])
	if err != nil {
		return nil, err
	}

	return &PoolInfo{
		PoolID:   poolMatch[1],
		ClientID: clientMatch[1],
		Region:   region,
	}, nil
}
