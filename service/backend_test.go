package service

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/Daniromero1410/Sistema-Positiva/config"
	"github.com/Daniromero1410/Sistema-Positiva/model"
)

// fakeBackend emulates the consolidation backend. Each run replays a scripted
// sequence of progress observations, repeating the last one once exhausted.
type fakeBackend struct {
	mu         sync.Mutex
	nextID     int
	scripts    map[int][]model.RunProgress
	polls      map[int]int
	cancelled  map[int]bool
	requests   []recordedRequest
	uploadFail int // answer this many uploads with 503 first
	startFail  int // answer this many starts with 502 first
	uploadCode int // fixed non-2xx code for uploads, 0 = accept
}

type recordedRequest struct {
	Method         string
	Path           string
	IdempotencyKey string
	RequestID      string
	ContentType    string
	Body           string
}

func newFakeBackend(t *testing.T) (*fakeBackend, *Client) {
	t.Helper()
	fb := &fakeBackend{
		nextID:    42,
		scripts:   make(map[int][]model.RunProgress),
		polls:     make(map[int]int),
		cancelled: make(map[int]bool),
	}
	srv := httptest.NewServer(http.HandlerFunc(fb.serve))
	t.Cleanup(srv.Close)

	client := NewClient(&config.APIConfig{BaseURL: srv.URL, TimeoutSeconds: 5})
	return fb, client
}

func (fb *fakeBackend) script(runID int, steps ...model.RunProgress) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.scripts[runID] = steps
}

func (fb *fakeBackend) recorded(pathPrefix string) []recordedRequest {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	var out []recordedRequest
	for _, r := range fb.requests {
		if strings.HasPrefix(r.Path, pathPrefix) {
			out = append(out, r)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (fb *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.requests = append(fb.requests, recordedRequest{
		Method:         r.Method,
		Path:           r.URL.Path,
		IdempotencyKey: r.Header.Get(IdempotencyHeader),
		RequestID:      r.Header.Get("X-Request-ID"),
		ContentType:    r.Header.Get("Content-Type"),
		Body:           string(body),
	})

	const base = "/api/consolidador/"
	switch {
	case r.URL.Path == base+"upload-maestra" && r.Method == http.MethodPost:
		if fb.uploadCode != 0 {
			writeJSON(w, fb.uploadCode, map[string]string{"detail": "Solo se permiten archivos Excel (.xlsx, .xls)"})
			return
		}
		if fb.uploadFail > 0 {
			fb.uploadFail--
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "storage unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, model.MasterUpload{
			Success: true,
			Nombre:  "maestra.xlsx",
			Tamano:  "1.2 MB",
			Ruta:    "/uploads/maestra.xlsx",
			Resumen: model.MasterSummary{TotalContratos: 3, PorAno: map[string]int{"2025": 3}},
		})

	case r.URL.Path == base+"iniciar" && r.Method == http.MethodPost:
		if fb.startFail > 0 {
			fb.startFail--
			writeJSON(w, http.StatusBadGateway, map[string]string{"detail": "engine busy"})
			return
		}
		var cfg model.ConsolidationConfig
		if err := json.Unmarshal(body, &cfg); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
			return
		}
		id := fb.nextID
		if cfg.Modo == model.ModeByYear {
			id = 7
		}
		fb.nextID++
		writeJSON(w, http.StatusOK, model.RunHandle{RunID: id, Status: "iniciado", Message: "Consolidación iniciada"})

	case strings.HasPrefix(r.URL.Path, base+"progreso/"):
		id, _ := strconv.Atoi(strings.TrimPrefix(r.URL.Path, base+"progreso/"))
		steps, ok := fb.scripts[id]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Ejecución no encontrada"})
			return
		}
		n := fb.polls[id]
		fb.polls[id] = n + 1
		if n >= len(steps) {
			n = len(steps) - 1
		}
		p := steps[n]
		if fb.cancelled[id] && !p.State.IsTerminal() {
			p.State = model.StateCancelled
		}
		p.RunID = id
		writeJSON(w, http.StatusOK, p)

	case strings.HasPrefix(r.URL.Path, base+"cancelar/") && r.Method == http.MethodPost:
		id, _ := strconv.Atoi(strings.TrimPrefix(r.URL.Path, base+"cancelar/"))
		steps, ok := fb.scripts[id]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Ejecución no encontrada"})
			return
		}
		// the state last reported to a poller
		n := fb.polls[id] - 1
		if n < 0 {
			n = 0
		}
		if n >= len(steps) {
			n = len(steps) - 1
		}
		if steps[n].State.IsTerminal() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "La ejecución no está en proceso"})
			return
		}
		fb.cancelled[id] = true
		writeJSON(w, http.StatusOK, map[string]string{"message": "Cancelación solicitada"})

	case strings.HasPrefix(r.URL.Path, base+"resultados/"):
		id, _ := strconv.Atoi(strings.TrimPrefix(r.URL.Path, base+"resultados/"))
		writeJSON(w, http.StatusOK, model.RunResults{
			RunID:    id,
			State:    model.StateCompleted,
			Resumen:  model.RunSummary{TotalContratos: 3, Exitosos: 3, TotalServicios: 120},
			Archivos: []model.ResultFile{{Nombre: "consolidado.xlsx", EsPrincipal: true}},
			Duracion: "2m 10s",
		})

	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": fmt.Sprintf("no route %s %s", r.Method, r.URL.Path)})
	}
}
