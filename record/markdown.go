package record

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// snapshotter turns captured page HTML into a readable markdown document.
// The HTML is untrusted page content, so it goes through a sanitizer before
// conversion.
type snapshotter struct {
	policy *bluemonday.Policy
	conv   *converter.Converter
}

func newSnapshotter() *snapshotter {
	return &snapshotter{
		policy: bluemonday.UGCPolicy(),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Render sanitizes and converts page HTML. Pages that yield nothing
// convertible fall back to a stub naming the page.
func (s *snapshotter) Render(html, pageURL, title string) string {
	if html != "" {
		clean := s.policy.Sanitize(html)
		md, err := s.conv.ConvertString(clean, converter.WithDomain(pageURL))
		if err == nil && strings.TrimSpace(md) != "" {
			return strings.TrimSpace(md) + "\n"
		}
	}
	heading := title
	if heading == "" {
		heading = pageURL
	}
	return "# " + heading + "\n\n" + pageURL + "\n"
}
