package page

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/chartembed/internal/charts"
	"github.com/ziadkadry99/chartembed/internal/dataverse"
	"github.com/ziadkadry99/chartembed/internal/dom"
	"github.com/ziadkadry99/chartembed/internal/importer"
	"github.com/ziadkadry99/chartembed/internal/superset"
	"github.com/ziadkadry99/chartembed/internal/tabular"
)

// errMissingFile is returned when a request names no Dataverse file.
var errMissingFile = errors.New("either siteUrl and fileid, or fileUrl, is required")

// resolveFileURL returns the data file URL named by the query. siteUrl with
// fileid takes precedence over fileUrl.
func (p *Page) resolveFileURL(q url.Values) (string, error) {
	siteURL, fileID, fileURL := q.Get("siteUrl"), q.Get("fileid"), q.Get("fileUrl")
	if siteURL != "" && fileID != "" {
		return DataFileURL(p.opts.MapSiteURL(siteURL), fileID), nil
	}
	if fileURL != "" {
		return fileURL, nil
	}
	return "", errMissingFile
}

// DataFileURL returns the Dataverse access URL for a data file on site.
func DataFileURL(site, fileID string) string {
	return strings.TrimRight(site, "/") + "/api/access/datafile/" + url.PathEscape(fileID)
}

// pageData is the chart page template input.
type pageData struct {
	Title        string
	FileURL      string
	DatasetID    int64
	Charts       []superset.Chart
	Selected     string
	FrameSrc     string
	EmbedText    string
	PanelDisplay string
	ButtonLabel  string
	Panel        string
	Button       string
	Frame        string
	EmbedID      string
	Selector     string
	SeparateText bool
	Escape       bool
}

func (p *Page) handlePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	fileURL, err := p.resolveFileURL(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	datasetID, err := p.lookup.Dataset(ctx, fileURL)
	if errors.Is(err, superset.ErrNotFound) {
		if p.opts.Importer == nil {
			http.Error(w, "no Superset dataset exists for "+fileURL, http.StatusNotFound)
			return
		}
		var done bool
		if datasetID, done = p.serveImport(w, r, fileURL); !done {
			return
		}
		err = nil
	}
	if err != nil {
		p.logger.Error("resolving dataset", "file_url", fileURL, "error", err)
		http.Error(w, "could not reach Superset", http.StatusBadGateway)
		return
	}

	list, err := p.lookup.Charts(ctx, datasetID)
	if err != nil && !errors.Is(err, charts.ErrNoCharts) {
		p.logger.Error("listing charts", "dataset_id", datasetID, "error", err)
		http.Error(w, "could not reach Superset", http.StatusBadGateway)
		return
	}

	data, err := p.initialState(fileURL, datasetID, list)
	if err != nil {
		p.logger.Error("computing initial page state", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	html := &bytes.Buffer{}
	if err := chartTemplate.Execute(html, data); err != nil {
		p.logger.Error("rendering chart page", "error", err)
		http.Error(w, "internal template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(html.Bytes())
}

// initialState runs the controller against an in-memory copy of the page
// so the first chart is shown before the browser controller has loaded.
func (p *Page) initialState(fileURL string, datasetID int64, list []superset.Chart) (pageData, error) {
	ids := p.opts.IDs
	data := pageData{
		Title:        superset.DatasetName(fileURL),
		FileURL:      fileURL,
		DatasetID:    datasetID,
		Charts:       list,
		Panel:        ids.Panel,
		Button:       ids.Button,
		Frame:        ids.Frame,
		EmbedID:      ids.EmbedText,
		Selector:     ids.Selector,
		SeparateText: ids.EmbedText != ids.Panel,
		Escape:       p.opts.Controller.Escape,
	}

	doc := dom.ChartPage(ids)
	if len(list) > 0 {
		sel, _ := doc.Get(ids.Selector)
		sel.SetValue(list[0].URL)
		data.Selected = list[0].URL
		if err := p.opts.Controller.SelectByID(doc, ids.Frame, ids.EmbedText, ids.Selector); err != nil {
			return pageData{}, err
		}
	}

	frame, _ := doc.Get(ids.Frame)
	text, _ := doc.Get(ids.EmbedText)
	panel, _ := doc.Get(ids.Panel)
	button, _ := doc.Get(ids.Button)
	data.FrameSrc = frame.Attribute("src")
	data.EmbedText = text.TextContent()
	data.PanelDisplay = panel.Display()
	data.ButtonLabel = button.TextContent()
	return data, nil
}

// importData is the import page template input.
type importData struct {
	Info    importer.Info
	Running bool
}

// serveImport renders the import page for a file without a dataset. It
// returns the dataset id and true once the file has been imported.
func (p *Page) serveImport(w http.ResponseWriter, r *http.Request, fileURL string) (int64, bool) {
	info, err := p.opts.Importer.Analyze(r.Context(), fileURL)
	switch {
	case errors.Is(err, dataverse.ErrFileNotFound):
		http.Error(w, "data file not found: "+fileURL, http.StatusNotFound)
		return 0, false
	case errors.Is(err, tabular.ErrUnsupported):
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
		return 0, false
	case errors.Is(err, tabular.ErrNoColumns):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return 0, false
	case err != nil:
		p.logger.Error("analyzing data file", "file_url", fileURL, "error", err)
		http.Error(w, "could not read data file", http.StatusBadGateway)
		return 0, false
	}
	if info.Status == importer.Complete {
		return info.DatasetID, true
	}

	html := &bytes.Buffer{}
	data := importData{Info: info, Running: info.Status == importer.InProgress}
	if err := importTemplate.Execute(html, data); err != nil {
		p.logger.Error("rendering import page", "error", err)
		http.Error(w, "internal template error", http.StatusInternalServerError)
		return 0, false
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(html.Bytes())
	return 0, false
}

func (p *Page) handleImport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	name := r.PostForm.Get("datasetName")
	if name == "" {
		http.Error(w, "datasetName is required", http.StatusBadRequest)
		return
	}
	info, ok := p.opts.Importer.Lookup(name)
	if !ok {
		http.Error(w, fmt.Sprintf("%s: %v", name, importer.ErrUnknownFile), http.StatusBadRequest)
		return
	}

	err := p.opts.Importer.Start(name)
	switch {
	case errors.Is(err, importer.ErrUnknownFile):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil && !errors.Is(err, importer.ErrInProgress) && !errors.Is(err, importer.ErrAlreadyImported):
		p.logger.Error("starting import", "dataset", name, "error", err)
		http.Error(w, "could not start import", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/dataverse-superset?fileUrl="+url.QueryEscape(info.FileURL), http.StatusSeeOther)
}

// embedResponse is the JSON response for the embed endpoint.
type embedResponse struct {
	Src    string `json:"src"`
	Markup string `json:"markup"`
}

func (p *Page) handleEmbed(w http.ResponseWriter, r *http.Request) {
	src := r.URL.Query().Get("src")
	if src == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "src is required"})
		return
	}
	writeJSON(w, http.StatusOK, embedResponse{
		Src:    src,
		Markup: p.opts.Controller.Markup(src),
	})
}

func (p *Page) handleCharts(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "datasetID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid dataset id %q", chi.URLParam(r, "datasetID"))})
		return
	}

	list, err := p.lookup.Charts(r.Context(), id)
	if errors.Is(err, charts.ErrNoCharts) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		p.logger.Error("listing charts", "dataset_id", id, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
