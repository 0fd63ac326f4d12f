package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ryantate/typingpool-sub000/internal/shared"
	"golang.org/x/net/html"
)

// HTTPQuestionFetcher downloads question documents over HTTP.
type HTTPQuestionFetcher struct {
	client *http.Client
}

var _ QuestionFetcher = (*HTTPQuestionFetcher)(nil)

// NewHTTPQuestionFetcher creates a fetcher. A nil client defaults to [http.DefaultClient].
func NewHTTPQuestionFetcher(client *http.Client) *HTTPQuestionFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPQuestionFetcher{client: client}
}

// QuestionFields fetches the document at rawURL and returns its hidden inputs.
// A 404 or 410 is reported as [shared.ErrDocumentNotFound].
func (f *HTTPQuestionFetcher) QuestionFields(ctx context.Context, rawURL string) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", shared.ErrMalformedReference, rawURL, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", shared.ErrStorage, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, fmt.Errorf("%w: GET %s: status %d", shared.ErrDocumentNotFound, rawURL, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s: status %d", shared.ErrStorage, rawURL, resp.StatusCode)
	}

	return ParseQuestionFields(resp.Body)
}

// ParseQuestionFields returns name=value for every <input type="hidden"> in the document.
// Later inputs with the same name win.
func ParseQuestionFields(r io.Reader) (map[string]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse question: %w", err)
	}

	fields := make(map[string]string)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "input" {
			var typ, name, value string
			for _, attr := range n.Attr {
				switch attr.Key {
				case "type":
					typ = strings.ToLower(attr.Val)
				case "name":
					name = attr.Val
				case "value":
					value = attr.Val
				}
			}
			if typ == "hidden" && name != "" {
				fields[name] = value
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return fields, nil
}
