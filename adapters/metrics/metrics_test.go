package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/artpar/modelwire/adapters/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// sample returns the value of the counter or gauge named name whose labels
// include every pair in labels.
func sample(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	next:
		for _, m := range f.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	return 0
}

func TestNew(t *testing.T) {
	// Use a new registry to avoid conflicts with other tests
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	if m.RequestsTotal == nil {
		t.Error("RequestsTotal is nil")
	}
	if m.RequestDuration == nil {
		t.Error("RequestDuration is nil")
	}
	if m.ModelsLoaded == nil {
		t.Error("ModelsLoaded is nil")
	}
	if m.APIsMounted == nil {
		t.Error("APIsMounted is nil")
	}
}

func TestNew_PrivateRegistries(t *testing.T) {
	// Two collectors must not collide on registration.
	regA, regB := prometheus.NewRegistry(), prometheus.NewRegistry()
	a := metrics.NewWithRegistry(regA)
	b := metrics.NewWithRegistry(regB)
	a.ModelsLoaded.Set(2)
	b.ModelsLoaded.Set(5)

	if got := sample(t, regA, "modelwire_models_loaded", nil); got != 2 {
		t.Errorf("a.ModelsLoaded = %v, want 2", got)
	}
	_ = metrics.New()
	_ = metrics.New()
}

func TestInstrument(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	h := m.Instrument("employee", "GET /:id", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/employee/1", nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	}

	got := sample(t, reg, "modelwire_requests_total", map[string]string{"model": "employee", "status": "4xx"})
	if got != 3 {
		t.Errorf("requests_total = %v, want 3", got)
	}
	if got := sample(t, reg, "modelwire_requests_in_flight", nil); got != 0 {
		t.Errorf("requests_in_flight = %v, want 0", got)
	}
}

func TestInstrument_ImplicitOK(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	h := m.Instrument("user", "GET /", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got := sample(t, reg, "modelwire_requests_total", map[string]string{"status": "2xx"}); got != 1 {
		t.Errorf("requests_total = %v, want 1", got)
	}
}

func TestInstrument_NilCollector(t *testing.T) {
	var m *metrics.Collector
	called := false
	h := m.Instrument("x", "GET /", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("wrapped handler not called")
	}
}

func TestHandler(t *testing.T) {
	m := metrics.New()
	m.APIsMounted.Set(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "modelwire_apis_mounted 2") {
		t.Errorf("body missing apis_mounted gauge:\n%s", rec.Body.String())
	}
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{200: "2xx", 201: "2xx", 302: "3xx", 400: "4xx", 503: "5xx", 42: "42"}
	for in, want := range tests {
		if got := metrics.StatusClass(in); got != want {
			t.Errorf("StatusClass(%d) = %q, want %q", in, got, want)
		}
	}
}
