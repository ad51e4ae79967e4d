package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Eissayou/k4pcap/internal/generator"
	"github.com/Eissayou/k4pcap/internal/geoip"
	"github.com/Eissayou/k4pcap/internal/scenario"
	"github.com/Eissayou/k4pcap/pkg/packet"
	"github.com/Eissayou/k4pcap/pkg/pcapfile"
)

func newTestServer(geo Locator) *Server {
	gen := generator.New(generator.Options{
		Start:     1700000000,
		Endpoints: scenario.DefaultEndpoints(),
		Assembler: packet.DefaultAssembler,
	}, nil)
	return New(scenario.NewCatalog(), gen, geo, nil)
}

func TestListScenarios(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scenarios", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var infos []ScenarioInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Len(t, infos, 5)
	assert.Equal(t, ScenarioInfo{
		Name:        "basic_commands",
		Description: scenario.Builtins()[0].Description,
		Steps:       5,
		URL:         "/api/scenarios/basic_commands/pcap",
	}, infos[0])
}

func TestCapture(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scenarios/om_hardware/pcap", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.tcpdump.pcap", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "om_hardware.pcap")

	f, err := pcapfile.Read(rec.Body)
	require.NoError(t, err)
	require.Len(t, f.Records, 6)
	assert.Equal(t, uint32(1700000000), f.Records[0].Seconds)
}

func TestCaptureStartsAtRequestTime(t *testing.T) {
	now := time.Unix(1700000000, 0)
	gen := generator.New(generator.Options{
		Now: func() time.Time {
			now = now.Add(time.Hour)
			return now
		},
		Endpoints: scenario.DefaultEndpoints(),
		Assembler: packet.DefaultAssembler,
	}, nil)
	handler := New(scenario.NewCatalog(), gen, nil, nil).Handler()

	var firsts []uint32
	for range 2 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scenarios/if_status/pcap", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		f, err := pcapfile.Read(rec.Body)
		require.NoError(t, err)
		firsts = append(firsts, f.Records[0].Seconds)
	}
	assert.Equal(t, []uint32{1700003600, 1700007200}, firsts)
}

func TestCaptureUnknown(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scenarios/nope/pcap", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreflight(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/analyze", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func uploadRequest(t *testing.T, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "capture.pcap")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func renderCapture(t *testing.T, srv *Server, name string) []byte {
	t.Helper()
	sc, err := srv.catalog.Get(name)
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = srv.gen.Render(context.Background(), &buf, sc)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestAnalyze(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, uploadRequest(t, renderCapture(t, srv, "basic_commands")))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Summary.Records, 5)
	assert.Equal(t, "FA;", resp.Summary.Records[0].Payload)
	assert.True(t, resp.Summary.Records[0].IPChecksumValid)
	assert.Len(t, resp.Summary.Conversations, 2)
	assert.Empty(t, resp.Locations)
	assert.NotEmpty(t, resp.MapError)
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	srv := newTestServer(nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, uploadRequest(t, []byte("garbage garbage garbage garbage")))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyze", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyze", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type fakeLocator struct {
	calls []netip.Addr
}

func (f *fakeLocator) Lookup(addr netip.Addr) (*geoip.Location, error) {
	f.calls = append(f.calls, addr)
	return &geoip.Location{IP: addr.String(), City: "Mountain View", Country: "United States"}, nil
}

func TestAnalyzeLocatesPublicEndpoints(t *testing.T) {
	geo := &fakeLocator{}
	srv := newTestServer(geo)

	ep := scenario.DefaultEndpoints()
	ep.ServerIP = packet.MustParseIPv4("8.8.8.8")
	var buf bytes.Buffer
	gen := generator.New(generator.Options{Start: 10, Endpoints: ep, Assembler: packet.DefaultAssembler}, nil)
	_, err := gen.Render(context.Background(), &buf, scenario.Builtins()[0])
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, uploadRequest(t, buf.Bytes()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.MapError)
	require.Len(t, resp.Locations, 1)
	assert.Equal(t, "8.8.8.8", resp.Locations[0].IP)
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("8.8.8.8")}, geo.calls)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- newTestServer(nil).Run(ctx, "127.0.0.1:0") }()
	cancel()
	assert.NoError(t, <-done)
}

func TestRunReportsListenError(t *testing.T) {
	l := httptest.NewServer(http.NotFoundHandler())
	defer l.Close()

	err := newTestServer(nil).Run(context.Background(), l.Listener.Addr().String())
	assert.Error(t, err)
}
