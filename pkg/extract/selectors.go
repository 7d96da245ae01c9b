package extract

// Instagram markup hooks. Instagram changes its DOM often; keep every selector here.
const (
	// PostLinkSelector matches grid links to posts and reels on a profile page
	PostLinkSelector = "a[href*='/p/'], a[href*='/reel/']"

	// PostDateSelector matches the publish timestamp of an open post
	PostDateSelector = "time[datetime]"

	// LoginFieldSelector matches the inputs of the login form
	LoginFieldSelector = "input[name='username'], input[name='password']"

	// ReadySelector is awaited before a page is considered rendered
	ReadySelector = "main"

	// CaptionPath is the absolute DOM path of the caption on a post page. It is
	// brittle by nature and is tried before the heuristic selectors.
	CaptionPath = "/html/body/div[1]/div/div/div[2]/div/div/div[1]/div[1]/div[1]/section/main/div/div[1]/div/div[2]/div/div[2]/div/div[1]/div/div[2]/div/span/div/span"
)

// CaptionFallbacks are tried in order when CaptionPath finds nothing
var CaptionFallbacks = []string{
	"article section span[dir='auto']",
	"div[role='dialog'] article span[dir='auto']",
	"article h1, article h2",
}

// ConsentButtonLabels are the cookie-consent buttons dismissed on page load, in preference order
var ConsentButtonLabels = []string{
	"Only allow essential",
	"Allow all",
	"Accept all",
	"Accept",
}

// postPathMarkers identify post URLs
var postPathMarkers = []string{"/p/", "/reel/"}
