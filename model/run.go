package model

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// Mode selects which contracts of the master file a run consolidates.
type Mode string

const (
	ModeFull     Mode = "completo"
	ModeByYear   Mode = "por_ano"
	ModeSpecific Mode = "especifico"
)

// State is the backend-owned lifecycle state of a run, as observed through polling.
type State string

const (
	StatePending             State = "PENDIENTE"
	StateRunning             State = "EN_PROCESO"
	StateCompleted           State = "COMPLETADO"
	StateCompletedWithAlerts State = "COMPLETADO_CON_ALERTAS"
	StateCancelled           State = "CANCELADO"
	StateFailed              State = "ERROR"
)

// IsTerminal reports whether no further transition can follow s.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateCompletedWithAlerts, StateCancelled, StateFailed:
		return true
	}
	return false
}

// IsActive reports whether a cancel request is still meaningful for s.
func (s State) IsActive() bool {
	return s == StatePending || s == StateRunning
}

// ConsolidationConfig is the body of a start request.
type ConsolidationConfig struct {
	Modo            Mode     `json:"modo"`
	Ano             *int     `json:"ano,omitempty"`
	Contratos       []string `json:"contratos,omitempty"`
	GuardarEnBD     bool     `json:"guardar_en_bd"`
	ExportarAlertas bool     `json:"exportar_alertas"`
}

// ValidationError reports a start config that violates the mode invariants.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid consolidation config: %s: %s", e.Field, e.Message)
}

// Validate checks the mode/year/contract invariants. It does not talk to the backend.
func (c ConsolidationConfig) Validate() error {
	switch c.Modo {
	case ModeFull:
	case ModeByYear:
		if c.Ano == nil {
			return &ValidationError{Field: "ano", Message: "required when modo is por_ano"}
		}
		if *c.Ano <= 0 {
			return &ValidationError{Field: "ano", Message: "must be a positive year"}
		}
	case ModeSpecific:
		if len(c.Contratos) == 0 {
			return &ValidationError{Field: "contratos", Message: "required when modo is especifico"}
		}
		for _, id := range c.Contratos {
			if strings.TrimSpace(id) == "" {
				return &ValidationError{Field: "contratos", Message: "contract ids must not be blank"}
			}
		}
	default:
		return &ValidationError{Field: "modo", Message: fmt.Sprintf("unknown mode %q", c.Modo)}
	}
	return nil
}

// Year returns a pointer suitable for ConsolidationConfig.Ano.
func Year(y int) *int {
	return &y
}

// MasterFile is a user-supplied spreadsheet listing the contracts to consolidate.
type MasterFile struct {
	Filename string
	Content  io.Reader
	Size     int64
}

// allowedMasterExt lists the spreadsheet formats the backend accepts.
var allowedMasterExt = map[string]bool{".xlsx": true, ".xls": true}

// ValidateMasterFilename rejects files the backend would refuse.
func ValidateMasterFilename(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedMasterExt[ext] {
		return &ValidationError{Field: "file", Message: "must be an Excel file (.xlsx or .xls)"}
	}
	return nil
}

// MasterSummary is the backend's quick read of an uploaded master file.
type MasterSummary struct {
	TotalContratos     int            `json:"total_contratos"`
	PorAno             map[string]int `json:"por_ano"`
	ColumnasDetectadas []string       `json:"columnas_detectadas"`
}

// MasterUpload acknowledges a stored master file.
type MasterUpload struct {
	Success bool          `json:"success"`
	Nombre  string        `json:"nombre"`
	Tamano  string        `json:"tamano"`
	Ruta    string        `json:"ruta"`
	Resumen MasterSummary `json:"resumen"`
}

// RunHandle identifies a started run.
type RunHandle struct {
	RunID     int       `json:"ejecucion_id"`
	Status    string    `json:"status,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"-"`
}

// RunProgress is one observation of a run.
type RunProgress struct {
	RunID              int     `json:"ejecucion_id"`
	State              State   `json:"estado"`
	Percent            float64 `json:"progreso"`
	CurrentContract    string  `json:"contrato_actual"`
	ContractsProcessed int     `json:"contratos_procesados"`
	TotalContracts     int     `json:"total_contratos"`
	ServicesExtracted  int     `json:"servicios_extraidos"`
	AlertsGenerated    int     `json:"alertas_generadas"`
}

// RunSummary totals a finished run.
type RunSummary struct {
	TotalContratos int `json:"total_contratos"`
	Exitosos       int `json:"exitosos"`
	Fallidos       int `json:"fallidos"`
	TotalServicios int `json:"total_servicios"`
	TotalAlertas   int `json:"total_alertas"`
}

// ResultFile is a spreadsheet produced by a run.
type ResultFile struct {
	Nombre      string `json:"nombre"`
	Descripcion string `json:"descripcion"`
	Tamano      string `json:"tamano"`
	Ruta        string `json:"ruta"`
	EsPrincipal bool   `json:"es_principal"`
}

// RunResults describes the outputs of a run.
type RunResults struct {
	RunID    int          `json:"ejecucion_id"`
	State    State        `json:"estado"`
	Resumen  RunSummary   `json:"resumen"`
	Archivos []ResultFile `json:"archivos"`
	Duracion string       `json:"duracion"`
}
