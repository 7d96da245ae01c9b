// Package report renders a run as a single self-contained HTML page.
//
// The default template is embedded in the binary and may be replaced with a file
// via report.template_path. Captions and handles are escaped by html/template.
// Each post carries its URL and composed text in data attributes so the page's
// copy buttons can put either on the clipboard.
package report
