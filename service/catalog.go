package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Daniromero1410/Sistema-Positiva/model"
	"golang.org/x/sync/errgroup"
)

// Health checks that the backend answers.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.getJSON(ctx, "health", "/api/health", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	var out model.DashboardStats
	if err := c.getJSON(ctx, "dashboard stats", "/api/dashboard/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RecentRuns(ctx context.Context, limit int) ([]model.RecentRun, error) {
	if limit <= 0 {
		limit = 5
	}
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	var out []model.RecentRun
	if err := c.getJSON(ctx, "recent runs", "/api/dashboard/ejecuciones-recientes", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) MonthlyServices(ctx context.Context) ([]model.MonthlyServices, error) {
	var out []model.MonthlyServices
	if err := c.getJSON(ctx, "services per month", "/api/dashboard/servicios-por-mes", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ContractsByDepartment(ctx context.Context) ([]model.DepartmentContracts, error) {
	var out []model.DepartmentContracts
	if err := c.getJSON(ctx, "contracts per department", "/api/dashboard/contratos-por-departamento", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DashboardSummary fetches the four dashboard resources concurrently. The first
// failure cancels the others and is returned.
func (c *Client) DashboardSummary(ctx context.Context, recentLimit int) (*model.DashboardSummary, error) {
	var summary model.DashboardSummary
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		stats, err := c.DashboardStats(ctx)
		if err != nil {
			return err
		}
		summary.Stats = *stats
		return nil
	})
	g.Go(func() error {
		runs, err := c.RecentRuns(ctx, recentLimit)
		summary.EjecucionesRecientes = runs
		return err
	})
	g.Go(func() error {
		months, err := c.MonthlyServices(ctx)
		summary.ServiciosPorMes = months
		return err
	})
	g.Go(func() error {
		depts, err := c.ContractsByDepartment(ctx)
		summary.ContratosPorDepartamento = depts
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (c *Client) FTPStatus(ctx context.Context) (*model.FTPStatus, error) {
	var out model.FTPStatus
	if err := c.getJSON(ctx, "ftp status", "/api/ftp/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FTPBrowse(ctx context.Context, path string) (*model.FTPListing, error) {
	if path == "" {
		path = "/"
	}
	var out model.FTPListing
	if err := c.getJSON(ctx, "ftp browse", "/api/ftp/browse", url.Values{"path": {path}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FTPPreview(ctx context.Context, path, sheet string) (*model.FTPPreview, error) {
	q := url.Values{"path": {path}, "hoja": {sheet}}
	var out model.FTPPreview
	if err := c.getJSON(ctx, "ftp preview", "/api/ftp/preview", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FTPDownload(ctx context.Context, path string) (map[string]any, error) {
	var out map[string]any
	if err := c.postJSON(ctx, "ftp download", "/api/ftp/download", map[string]string{"path": path}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchQuery encodes params the way the consulta endpoint expects.
func SearchQuery(p model.SearchParams) url.Values {
	q := url.Values{"q": {p.Q}}
	if p.Departamento != "" {
		q.Set("departamento", p.Departamento)
	}
	if p.Ano > 0 {
		q.Set("ano", strconv.Itoa(p.Ano))
	}
	if p.Manual != "" {
		q.Set("manual", p.Manual)
	}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	return q
}

func (c *Client) Search(ctx context.Context, p model.SearchParams) (*model.SearchResult, error) {
	if len([]rune(p.Q)) < 2 {
		return nil, &model.ValidationError{Field: "q", Message: "search term needs at least 2 characters"}
	}
	var out model.SearchResult
	if err := c.getJSON(ctx, "search services", "/api/consulta/search", SearchQuery(p), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Suggestions(ctx context.Context, term string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	q := url.Values{"q": {term}, "limit": {strconv.Itoa(limit)}}
	var out []string
	if err := c.getJSON(ctx, "search suggestions", "/api/consulta/sugerencias", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ServiceDetail returns the backend's nested detail document as is.
func (c *Client) ServiceDetail(ctx context.Context, serviceID int) (map[string]any, error) {
	var out map[string]any
	if err := c.getJSON(ctx, "service detail", fmt.Sprintf("/api/consulta/detalle/%d", serviceID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SearchFilters(ctx context.Context) (*model.SearchFilters, error) {
	var out model.SearchFilters
	if err := c.getJSON(ctx, "search filters", "/api/consulta/filtros", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MapData(ctx context.Context, year int, department string) (*model.MapData, error) {
	q := url.Values{}
	if year > 0 {
		q.Set("ano", strconv.Itoa(year))
	}
	if department != "" {
		q.Set("departamento", department)
	}
	var out model.MapData
	if err := c.getJSON(ctx, "map data", "/api/mapa/datos", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) TopCities(ctx context.Context, limit int) ([]model.TopCity, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []model.TopCity
	if err := c.getJSON(ctx, "top cities", "/api/mapa/top-ciudades", url.Values{"limit": {strconv.Itoa(limit)}}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) MapDepartments(ctx context.Context) ([]model.DepartmentContracts, error) {
	var out []model.DepartmentContracts
	if err := c.getJSON(ctx, "map departments", "/api/mapa/departamentos", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) OutputFiles(ctx context.Context) ([]model.OutputFile, error) {
	var out []model.OutputFile
	if err := c.getJSON(ctx, "list outputs", "/api/archivos/list", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DownloadURL is the absolute backend URL of a run output. Browsers fetch it directly.
func (c *Client) DownloadURL(runID int, kind string) (string, error) {
	if !model.IsOutputKind(kind) {
		return "", &model.ValidationError{Field: "tipo", Message: fmt.Sprintf("unknown output kind %q", kind)}
	}
	return fmt.Sprintf("%s/api/archivos/download/%d/%s", c.baseURL, runID, kind), nil
}

// FileDownloadURL is the absolute backend URL of a file listed by /api/archivos/list.
// filename must be a bare name; the backend serves only its output directory.
func (c *Client) FileDownloadURL(filename string) (string, error) {
	if filename == "" || filename == "." || filename == ".." || strings.ContainsAny(filename, `/\`) {
		return "", &model.ValidationError{Field: "filename", Message: fmt.Sprintf("invalid file name %q", filename)}
	}
	return c.baseURL + "/api/archivos/download/file/" + url.PathEscape(filename), nil
}
