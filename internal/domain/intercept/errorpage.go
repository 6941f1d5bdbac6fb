package intercept

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/GriffinCanCode/sessionhub/internal/types"
)

const errorTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title></title></head>
<body class="error-page">
  <h1 id="title"></h1>
  <p id="message"></p>
  <div id="detail"></div>
  <p id="code"></p>
  <nav>
    <a id="retry" href="#">Try again</a>
    <a id="back" href="#">Go back</a>
    <a id="home" href="#">Home</a>
  </nav>
</body>
</html>`

var errorTitles = map[string]string{
	"network":  "Server not found",
	"security": "Secure connection failed",
	"content":  "Content could not be shown",
	"uri":      "Invalid address",
	"proxy":    "Proxy server refused the connection",
}

// ErrorPages renders the page shown when a load fails. Links on the page
// use the error bridge so the browser can act on them.
type ErrorPages struct {
	policy *bluemonday.Policy
}

// NewErrorPages creates a renderer that keeps only user-content-safe
// markup from engine-provided detail.
func NewErrorPages() *ErrorPages {
	return &ErrorPages{policy: bluemonday.UGCPolicy()}
}

// Render produces the error page HTML for a failed load of uri
func (p *ErrorPages) Render(uri string, werr types.WebRequestError) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(errorTemplate))
	if err != nil {
		return "", fmt.Errorf("parse error template: %w", err)
	}

	title, ok := errorTitles[werr.Category]
	if !ok {
		title = "Page could not be loaded"
	}

	doc.Find("head title").SetText(title)
	doc.Find("#title").SetText(title)
	doc.Find("#message").SetText("The page at " + uri + " could not be loaded.")
	doc.Find("#detail").SetHtml(p.policy.Sanitize(werr.Detail))
	if werr.Code != 0 {
		doc.Find("#code").SetText(fmt.Sprintf("Error code 0x%x", werr.Code))
	} else {
		doc.Find("#code").Remove()
	}
	doc.Find("#retry").SetAttr("href", BridgeURL(BridgeRetry, uri))
	doc.Find("#back").SetAttr("href", BridgeURL(BridgeBack, ""))
	doc.Find("#home").SetAttr("href", BridgeURL(BridgeHome, ""))

	return doc.Html()
}
