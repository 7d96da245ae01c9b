// Package browser fetches rendered Instagram pages through a Chromium-family
// browser controlled over the DevTools protocol.
//
// Connect first looks for a browser already listening on the configured
// remote-debugging port and attaches to it, so the user's logged-in profile is
// reused. When nothing answers and launching is enabled, a browser is started
// with that profile instead. Open navigates, dismisses cookie consent, scrolls
// profile grids and returns the page's HTML as a Page.
package browser
