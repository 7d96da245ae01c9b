package report

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"time"

	errs "igmonitor/pkg/errors"
	"igmonitor/pkg/models"
)

//go:embed template.html
var defaultTemplate string

const (
	fileDateLayout      = "02-01-2006"
	generatedDateLayout = "02-01-2006 15:04:05"
)

// Options controls how a run is rendered
type Options struct {
	// Location is the timezone used for every displayed date
	Location *time.Location
	// TemplatePath overrides the embedded template when set
	TemplatePath string
	// GeneratedAt is shown in the summary; zero means the run's finish time
	GeneratedAt time.Time
}

// Entry is one post as the template sees it
type Entry struct {
	URL      string
	Account  string
	Caption  string
	Date     string
	Dated    bool
	FullText string
}

// Failure is one failed account as the template sees it
type Failure struct {
	Account string
	Message string
}

// Data is the template input
type Data struct {
	Title             string
	RunID             string
	Posts             []Entry
	TotalPosts        int
	AccountsAttempted int
	AccountsSucceeded int
	AccountsWithPosts int
	DateRange         string
	PostRange         string
	GeneratedOn       string
	MaxAgeDays        int
	Summary           string
	Failures          []Failure
	Cancelled         bool
}

// FileName returns the report file name for a run on t: DD-MM-YYYY.html
func FileName(t time.Time) string {
	return t.Format(fileDateLayout) + ".html"
}

// JSONFileName returns the sidecar file name for a run on t
func JSONFileName(t time.Time) string {
	return t.Format(fileDateLayout) + ".json"
}

// Parse loads the template at path, or the embedded one when path is empty
func Parse(path string) (*template.Template, error) {
	src := defaultTemplate
	name := "report"
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.New(errs.ErrorTypeRender, "read template", err)
		}
		src = string(b)
		name = path
	}

	tmpl, err := template.New(name).Parse(src)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeRender, "parse template", err)
	}
	return tmpl, nil
}

// Build converts a run into template data
func Build(result *models.RunResult, opts Options) Data {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	generated := opts.GeneratedAt
	if generated.IsZero() {
		generated = result.FinishedAt
	}
	if generated.IsZero() {
		generated = result.AsOf
	}

	d := Data{
		Title:             "Instagram report " + result.AsOf.In(loc).Format(fileDateLayout),
		RunID:             result.RunID,
		Posts:             make([]Entry, 0, len(result.Posts)),
		TotalPosts:        len(result.Posts),
		AccountsAttempted: result.AccountsAttempted,
		AccountsSucceeded: result.AccountsSucceeded,
		AccountsWithPosts: result.AccountsWithPosts(),
		DateRange: fmt.Sprintf("%s - %s",
			result.Cutoff.In(loc).Format(fileDateLayout),
			result.AsOf.In(loc).Format(fileDateLayout)),
		PostRange:   postRange(result, loc),
		GeneratedOn: generated.In(loc).Format(generatedDateLayout),
		MaxAgeDays:  result.MaxAgeDays,
		Summary:     result.Summary(),
		Cancelled:   result.Cancelled,
	}

	for _, p := range result.Posts {
		e := Entry{
			URL:     p.URL,
			Account: p.Account.String(),
			Caption: p.Caption,
			Date:    "undated",
		}
		if p.PublishedAt != nil {
			local := p.PublishedAt.In(loc)
			p.PublishedAt = &local
			e.Date = local.Format(models.DisplayDateLayout)
			e.Dated = true
		}
		e.FullText = p.FullText()
		d.Posts = append(d.Posts, e)
	}

	for _, f := range result.Failures {
		d.Failures = append(d.Failures, Failure{Account: f.Account.String(), Message: f.Message})
	}
	return d
}

// postRange formats the newest and oldest publish times in the report
func postRange(result *models.RunResult, loc *time.Location) string {
	if result.Newest == nil || result.Oldest == nil {
		return "no dated posts"
	}
	return result.Newest.In(loc).Format(models.DisplayDateLayout) + " / " +
		result.Oldest.In(loc).Format(models.DisplayDateLayout)
}

// Render produces the HTML report for result
func Render(result *models.RunResult, opts Options) ([]byte, error) {
	if result == nil {
		return nil, errs.New(errs.ErrorTypeRender, "render report", fmt.Errorf("nil run result"))
	}

	tmpl, err := Parse(opts.TemplatePath)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, Build(result, opts)); err != nil {
		return nil, errs.New(errs.ErrorTypeRender, "execute template", err)
	}
	return buf.Bytes(), nil
}

// RenderJSON produces the machine-readable sidecar for result
func RenderJSON(result *models.RunResult) ([]byte, error) {
	if result == nil {
		return nil, errs.New(errs.ErrorTypeRender, "render json", fmt.Errorf("nil run result"))
	}
	b, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, errs.New(errs.ErrorTypeRender, "render json", err)
	}
	return append(b, '\n'), nil
}
