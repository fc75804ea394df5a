package presenter

import (
	"embed"
	"html/template"
	"io"
	"xp-ledger/internal/domain"
	"xp-ledger/internal/ledger"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/ledger.html"))

type ConfigView struct {
	ID    string
	Key   string
	Price string
}

type Page struct {
	Config     ConfigView
	Status     string
	SnapshotID string
	Rows       []RowView
	Stats      StatsView
	CanPay     bool
}

// NewPage assembles the view model. res may be nil before the first build;
// err is the last pipeline error and only changes the status line, so a
// failed refresh still shows the previous table. An empty snapshotID
// disables Mark Paid.
func NewPage(cfg domain.Config, snapshotID string, res *ledger.Result, err error) Page {
	page := Page{
		Config: ConfigView{Key: cfg.Key},
		Status: StatusLine(res, err),
		Stats:  Summary(ledger.Stats{}),
	}
	if cfg.ID > 0 {
		page.Config.ID = cfg.ID.String()
	}
	if !cfg.Price.IsZero() {
		page.Config.Price = cfg.Price.String()
	}
	if res != nil {
		page.SnapshotID = snapshotID
		page.Rows = Rows(res.Rows)
		page.Stats = Summary(res.Stats)
		page.CanPay = res.Status == ledger.StatusOK && len(res.Rows) > 0 && snapshotID != ""
	}
	return page
}

func WritePage(w io.Writer, page Page) error {
	return pageTemplate.Execute(w, page)
}
