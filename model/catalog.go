package model

// Read-only shapes served by the backend for the peripheral pages. Field names
// follow the backend's JSON so that pass-through stays byte-compatible.

type LastRun struct {
	Fecha  *string `json:"fecha"`
	Estado *string `json:"estado"`
}

type DashboardStats struct {
	TotalContratos    int     `json:"total_contratos"`
	TotalServicios    int     `json:"total_servicios"`
	AlertasPendientes int     `json:"alertas_pendientes"`
	UltimaEjecucion   LastRun `json:"ultima_ejecucion"`
}

type RecentRun struct {
	ID        int    `json:"id"`
	Fecha     string `json:"fecha"`
	Estado    State  `json:"estado"`
	Contratos int    `json:"contratos"`
	Exitosos  int    `json:"exitosos"`
	Servicios int    `json:"servicios"`
	Alertas   int    `json:"alertas"`
}

type MonthlyServices struct {
	Mes       string `json:"mes"`
	Servicios int    `json:"servicios"`
}

type DepartmentContracts struct {
	Departamento string  `json:"departamento"`
	Contratos    int     `json:"contratos"`
	Color        string  `json:"color,omitempty"`
	Porcentaje   float64 `json:"porcentaje,omitempty"`
}

// DashboardSummary bundles everything the dashboard page renders.
type DashboardSummary struct {
	Stats                    DashboardStats        `json:"stats"`
	EjecucionesRecientes     []RecentRun           `json:"ejecuciones_recientes"`
	ServiciosPorMes          []MonthlyServices     `json:"servicios_por_mes"`
	ContratosPorDepartamento []DepartmentContracts `json:"contratos_por_departamento"`
}

type FTPStatus struct {
	Conectado    bool   `json:"conectado"`
	Host         string `json:"host"`
	UltimoAcceso string `json:"ultimo_acceso"`
}

type FTPEntry struct {
	Nombre            string `json:"nombre"`
	Tipo              string `json:"tipo,omitempty"`
	Tamano            string `json:"tamano,omitempty"`
	Fecha             string `json:"fecha,omitempty"`
	FechaModificacion string `json:"fecha_modificacion,omitempty"`
}

type FTPListing struct {
	RutaActual string     `json:"ruta_actual"`
	Carpetas   []FTPEntry `json:"carpetas"`
	Archivos   []FTPEntry `json:"archivos"`
}

type FTPPreview struct {
	Archivo    string           `json:"archivo"`
	Hojas      []string         `json:"hojas"`
	HojaActual string           `json:"hoja_actual"`
	TotalFilas int              `json:"total_filas"`
	Columnas   []string         `json:"columnas"`
	Datos      []map[string]any `json:"datos"`
}

type SearchParams struct {
	Q            string
	Departamento string
	Ano          int
	Manual       string
	Page         int
	Limit        int
}

type ServiceRow struct {
	ID           int     `json:"id"`
	Contrato     string  `json:"contrato"`
	Proveedor    string  `json:"proveedor"`
	Cups         string  `json:"cups"`
	Descripcion  string  `json:"descripcion"`
	Tarifa       float64 `json:"tarifa"`
	Manual       string  `json:"manual"`
	Departamento string  `json:"departamento"`
}

type SearchResult struct {
	Resultados   []ServiceRow `json:"resultados"`
	Total        int          `json:"total"`
	Pagina       int          `json:"pagina"`
	TotalPaginas int          `json:"total_paginas"`
}

type SearchFilters struct {
	Departamentos []string `json:"departamentos"`
	Manuales      []string `json:"manuales"`
	Anos          []int    `json:"anos"`
	Categorias    []string `json:"categorias"`
}

type MapPoint struct {
	Ciudad       string  `json:"ciudad"`
	Departamento string  `json:"departamento"`
	Contratos    int     `json:"contratos"`
	Alertas      int     `json:"alertas"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type MapData struct {
	TotalContratos int         `json:"total_contratos"`
	CiudadesUnicas int         `json:"ciudades_unicas"`
	Datos          []MapPoint  `json:"datos"`
	Centro         Coordinates `json:"centro"`
	Zoom           int         `json:"zoom"`
}

type TopCity struct {
	Posicion     int    `json:"posicion"`
	Ciudad       string `json:"ciudad"`
	Departamento string `json:"departamento"`
	Contratos    int    `json:"contratos"`
}

type OutputFile struct {
	Nombre string `json:"nombre"`
	Tamano string `json:"tamano"`
	Ruta   string `json:"ruta"`
}

// Output kinds served by the archivos download endpoint.
const (
	OutputMLLimpio    = "ml_limpio"
	OutputConsolidado = "consolidado"
	OutputAlertas     = "alertas"
	OutputResumen     = "resumen"
)

// IsOutputKind reports whether kind names a downloadable run output.
func IsOutputKind(kind string) bool {
	switch kind {
	case OutputMLLimpio, OutputConsolidado, OutputAlertas, OutputResumen:
		return true
	}
	return false
}
