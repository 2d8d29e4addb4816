package render

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/pauamargant/leaseCare-lauzhack/internal/defense"
	"github.com/pauamargant/leaseCare-lauzhack/internal/prompt"
)

// ChromiumRenderer turns a finished pipeline run into a PDF the tenant can
// attach to a registered letter. Rendering goes through headless Chromium
// so GFM tables and print CSS come out right.
type ChromiumRenderer struct {
	chromePath string
	resolver   prompt.CitationResolver
}

type Option func(*ChromiumRenderer)

// WithCitationResolver adds a "Cited provisions" annex explaining each legal
// article the report cites.
func WithCitationResolver(r prompt.CitationResolver) Option {
	return func(cr *ChromiumRenderer) { cr.resolver = r }
}

func NewChromiumRenderer(opts ...Option) *ChromiumRenderer {
	r := &ChromiumRenderer{chromePath: detectChromePath()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *ChromiumRenderer) Render(ctx context.Context, res *defense.RunResult) ([]byte, error) {
	htmlDoc, err := buildHTML(ctx, res, r.resolver)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	}
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, append(chromedp.DefaultExecAllocatorOptions[:], opts...)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var pdf []byte
	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(htmlDoc))
	if err := chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			footer := `<div style="width:100%;text-align:center;font-size:9px;color:#666;padding-right:8px;">` +
				`Page <span class="pageNumber"></span> of <span class="totalPages"></span></div>`
			out, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithDisplayHeaderFooter(true).
				WithHeaderTemplate(`<div></div>`).
				WithFooterTemplate(footer).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithMarginTop(0.5).
				WithMarginBottom(0.75).
				WithMarginLeft(0.45).
				WithMarginRight(0.45).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = out
			return nil
		}),
	); err != nil {
		return nil, err
	}
	return pdf, nil
}

func buildHTML(ctx context.Context, res *defense.RunResult, resolver prompt.CitationResolver) (string, error) {
	var content strings.Builder
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(res.Report.Markdown), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	contentHTML := applyPrintLayoutHooks(content.String())

	return "<!doctype html><html><head><meta charset='utf-8'><title>Tenant Defense Report</title>" +
		"<style>" + reportCSS + "</style></head><body>" +
		"<div class='pdf-wrap'><section class='report-viewer'><div class='report-header'>" +
		"<div class='report-meta'>" + buildMetaHTML(res) + "</div>" +
		"<div class='report-badges'>" + buildBadgeHTML(res) + "</div>" +
		"</div><div class='report-html'>" + contentHTML + "</div>" +
		buildCitationAnnex(ctx, res.Report.Citations, resolver) +
		"</section></div></body></html>", nil
}

// buildCitationAnnex lists each cited article with its catalogue topic.
// Articles the resolver cannot place are listed bare rather than dropped.
func buildCitationAnnex(ctx context.Context, citations []string, resolver prompt.CitationResolver) string {
	if resolver == nil || len(citations) == 0 {
		return ""
	}
	var out strings.Builder
	out.WriteString("<div class='citation-annex'><h2>Cited provisions</h2><ul>")
	for _, c := range citations {
		out.WriteString("<li><strong>" + html.EscapeString(c) + "</strong>")
		if topic, err := resolver.Explain(ctx, c); err == nil && topic != "" {
			out.WriteString(": " + html.EscapeString(topic))
		}
		out.WriteString("</li>")
	}
	out.WriteString("</ul></div>")
	return out.String()
}

// applyPrintLayoutHooks keeps the legal sections scannable on paper: the
// legal assessment opens on a fresh page and citation markers stay bold.
func applyPrintLayoutHooks(contentHTML string) string {
	reLegal := regexp.MustCompile(`(?i)<h2([^>]*)>\s*Legal Assessment\s*</h2>`)
	return reLegal.ReplaceAllString(contentHTML, `<h2$1 data-page-break-before="true">Legal Assessment</h2>`)
}

func buildMetaHTML(res *defense.RunResult) string {
	var out strings.Builder
	if res.LeaseID != "" {
		out.WriteString("<div><strong>Lease:</strong> " + html.EscapeString(res.LeaseID) + "</div>")
	}
	if q := strings.TrimSpace(res.Context.UserQuery); q != "" {
		out.WriteString("<div><strong>Dispute:</strong> " + html.EscapeString(q) + "</div>")
	}
	if !res.Metadata.CompletedAt.IsZero() {
		date := res.Metadata.CompletedAt.In(time.Local).Format("January 2, 2006 at 15:04")
		out.WriteString("<div><strong>Date:</strong> " + html.EscapeString(date) + "</div>")
	}
	return out.String()
}

func buildBadgeHTML(res *defense.RunResult) string {
	var out strings.Builder
	if p := res.Evaluation.WinProbability; p != nil {
		out.WriteString(fmt.Sprintf("<span class='report-badge'>Win probability: %d%%</span>", *p))
	}
	if c := strings.TrimSpace(res.Evaluation.Confidence); c != "" {
		out.WriteString("<span class='report-badge'>Confidence: " + html.EscapeString(c) + "</span>")
	}
	if res.Metadata.Mode == defense.RunModeDegraded {
		out.WriteString("<span class='report-badge report-badge-warn'>Evaluation unavailable</span>")
	}
	return out.String()
}

func detectChromePath() string {
	candidates := []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
