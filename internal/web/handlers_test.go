package web

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/sheetclean/internal/config"
	"github.com/JonMunkholm/sheetclean/internal/metrics"
	"github.com/JonMunkholm/sheetclean/internal/session"
	"github.com/JonMunkholm/sheetclean/internal/sheet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{RequestTimeout: 5 * time.Second, ShutdownTimeout: time.Second},
		Upload:   config.UploadConfig{MaxFileSize: 1 << 20, MaxFiles: 3, MaxConcurrent: 2, MaxWaitTime: time.Second, DecodeWorkers: 2, UnreadablePolicy: "abort"},
		Session:  config.SessionConfig{TTL: time.Hour, CookieName: "sid"},
		Preview:  config.PreviewConfig{MergedRows: 10, CleanedRows: 20},
		Security: config.SecurityConfig{EnableCSP: true},
		Logging:  config.LoggingConfig{Level: "error", Format: "text"},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, opts ...Option) *Server {
	t.Helper()
	flow := session.NewWorkflow(
		session.NewStore(cfg.Session.TTL),
		sheet.Codec{},
		session.NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		nil,
		session.Options{
			Policy:             session.UnreadablePolicy(cfg.Upload.UnreadablePolicy),
			MaxFiles:           cfg.Upload.MaxFiles,
			DecodeWorkers:      cfg.Upload.DecodeWorkers,
			MergedPreviewRows:  cfg.Preview.MergedRows,
			CleanedPreviewRows: cfg.Preview.CleanedRows,
			Now:                func() time.Time { return time.Date(2024, 1, 31, 15, 45, 0, 0, time.Local) },
		},
	)
	s := NewServer(flow, cfg, opts...)
	t.Cleanup(func() { _ = s.Shutdown(t.Context()) })
	return s
}

// startClient serves s over HTTP and returns a client that keeps cookies.
func startClient(t *testing.T, s *Server) (*httptest.Server, *http.Client) {
	t.Helper()
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return ts, &http.Client{Jar: jar}
}

func workbook(t *testing.T, rows ...[]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	name := f.GetSheetName(0)
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(name, cell, &rows[i]))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

type upload struct {
	name string
	data []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...upload) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func fixtures(t *testing.T) (upload, upload) {
	jan := workbook(t,
		[]interface{}{"Name", "Phone"},
		[]interface{}{"Ann", "+1 (555) 123-4567"},
		[]interface{}{"Bob", 5551234},
	)
	feb := workbook(t,
		[]interface{}{"Phone", "Name", "City"},
		[]interface{}{"0044 20 7946 0958", " Cy ", "London"},
	)
	return upload{"jan.xlsx", jan}, upload{"feb.xlsx", feb}
}

func TestPages_FullFlow(t *testing.T) {
	ts, client := startClient(t, newTestServer(t, testConfig()))
	jan, feb := fixtures(t)

	resp, err := client.Get(ts.URL + "/")
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "1. Upload files")
	assert.NotContains(t, body, "2. Choose columns")

	u, _ := url.Parse(ts.URL)
	require.Len(t, client.Jar.Cookies(u), 1)

	buf, ctype := multipartBody(t, nil, jan, feb)
	resp, err = client.Post(ts.URL+"/upload", ctype, buf)
	require.NoError(t, err)
	body = readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Merged 3 rows from <code>jan.xlsx</code>, <code>feb.xlsx</code>")
	assert.Contains(t, body, `<option value="City">City</option>`)

	resp, err = client.PostForm(ts.URL+"/clean", url.Values{
		"name_column":    {"Name"},
		"contact_column": {"Phone"},
	})
	require.NoError(t, err)
	body = readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "3 rows: 2 with 10-digit contacts, 1 short, 0 empty.")
	assert.Contains(t, body, "<td>Cy</td><td>2079460958</td>")
	assert.Contains(t, body, "Download cleanedData_20240131_154500.xlsx")
	assert.Contains(t, body, `<option value="Phone" selected>`)

	resp, err = client.Get(ts.URL + "/download")
	require.NoError(t, err)
	data := readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, sheet.ContentType, resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="cleanedData_20240131_154500.xlsx"`, resp.Header.Get("Content-Disposition"))

	out, err := excelize.OpenReader(strings.NewReader(data))
	require.NoError(t, err)
	defer out.Close()
	rows, err := out.GetRows(sheet.SheetName)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Name", "Contacts"},
		{"Ann", "5551234567"},
		{"Bob", "5551234"},
		{"Cy", "2079460958"},
	}, rows)

	resp, err = client.PostForm(ts.URL+"/reset", nil)
	require.NoError(t, err)
	body = readBody(t, resp)
	assert.NotContains(t, body, "2. Choose columns")
}

func TestPages_Errors(t *testing.T) {
	jan, _ := fixtures(t)

	t.Run("no files", func(t *testing.T) {
		ts, client := startClient(t, newTestServer(t, testConfig()))
		buf, ctype := multipartBody(t, nil)
		resp, err := client.Post(ts.URL+"/upload", ctype, buf)
		require.NoError(t, err)
		body := readBody(t, resp)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body, "No spreadsheets were provided")
		assert.Contains(t, body, "(IN001)")
	})

	t.Run("unreadable file", func(t *testing.T) {
		ts, client := startClient(t, newTestServer(t, testConfig()))
		buf, ctype := multipartBody(t, nil, jan, upload{"notes.pdf", []byte("%PDF-1.4 not a sheet")})
		resp, err := client.Post(ts.URL+"/upload", ctype, buf)
		require.NoError(t, err)
		body := readBody(t, resp)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body, "role=\"alert\"")
		assert.NotContains(t, body, "2. Choose columns")
	})

	t.Run("too many files", func(t *testing.T) {
		ts, client := startClient(t, newTestServer(t, testConfig()))
		buf, ctype := multipartBody(t, nil, jan, jan, jan, jan)
		resp, err := client.Post(ts.URL+"/upload", ctype, buf)
		require.NoError(t, err)
		body := readBody(t, resp)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body, "(FILE004)")
	})

	t.Run("file too large", func(t *testing.T) {
		cfg := testConfig()
		cfg.Upload.MaxFileSize = 64
		ts, client := startClient(t, newTestServer(t, cfg))
		buf, ctype := multipartBody(t, nil, jan)
		resp, err := client.Post(ts.URL+"/upload", ctype, buf)
		require.NoError(t, err)
		body := readBody(t, resp)
		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
		assert.Contains(t, body, "(FILE001)")
	})

	t.Run("clean before upload", func(t *testing.T) {
		ts, client := startClient(t, newTestServer(t, testConfig()))
		resp, err := client.PostForm(ts.URL+"/clean", url.Values{"name_column": {"Name"}, "contact_column": {"Phone"}})
		require.NoError(t, err)
		body := readBody(t, resp)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Contains(t, body, "(UPL003)")
	})

	t.Run("unknown column keeps merged preview", func(t *testing.T) {
		ts, client := startClient(t, newTestServer(t, testConfig()))
		buf, ctype := multipartBody(t, nil, jan)
		resp, err := client.Post(ts.URL+"/upload", ctype, buf)
		require.NoError(t, err)
		readBody(t, resp)

		resp, err = client.PostForm(ts.URL+"/clean", url.Values{"name_column": {"Name"}, "contact_column": {"Mobile"}})
		require.NoError(t, err)
		body := readBody(t, resp)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Contains(t, body, "(IN002)")
		assert.Contains(t, body, "2. Choose columns")
	})

	t.Run("download before clean", func(t *testing.T) {
		ts, client := startClient(t, newTestServer(t, testConfig()))
		resp, err := client.Get(ts.URL + "/download")
		require.NoError(t, err)
		readBody(t, resp)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})
}

func TestPages_EscapesCellText(t *testing.T) {
	ts, client := startClient(t, newTestServer(t, testConfig()))
	data := workbook(t,
		[]interface{}{"<b>Name</b>", "Phone"},
		[]interface{}{`<script>alert("x")</script>`, "1"},
	)

	buf, ctype := multipartBody(t, nil, upload{"x.xlsx", data})
	resp, err := client.Post(ts.URL+"/upload", ctype, buf)
	require.NoError(t, err)
	body := readBody(t, resp)

	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;b&gt;Name&lt;/b&gt;")
}

func TestPages_ExpiredCookieStartsNewSession(t *testing.T) {
	s := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "8a0c6a52-1f47-4a8e-9d6e-3f0c2b7e9a11"})
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.NotEqual(t, "8a0c6a52-1f47-4a8e-9d6e-3f0c2b7e9a11", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
}

func TestAPI_Columns(t *testing.T) {
	s := newTestServer(t, testConfig())
	jan, feb := fixtures(t)

	buf, ctype := multipartBody(t, nil, jan, feb)
	req := httptest.NewRequest(http.MethodPost, "/api/columns", buf)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got columnsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{"Name", "Phone", "City"}, got.Columns)
	assert.Equal(t, 3, got.Rows)
	assert.Equal(t, []string{" Cy ", "0044 20 7946 0958", "London"}, got.Preview.Rows[2])
}

func TestAPI_Clean(t *testing.T) {
	s := newTestServer(t, testConfig())
	jan, feb := fixtures(t)

	buf, ctype := multipartBody(t, map[string]string{"name_column": "Name", "contact_column": "Phone"}, jan, feb)
	req := httptest.NewRequest(http.MethodPost, "/api/clean", buf)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, sheet.ContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="cleanedData_20240131_154500.xlsx"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "3", rec.Header().Get("X-Rows"))
	assert.Equal(t, "2", rec.Header().Get("X-Contacts-Full"))

	out, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer out.Close()
	rows, err := out.GetRows(sheet.SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestAPI_Errors(t *testing.T) {
	s := newTestServer(t, testConfig())
	jan, _ := fixtures(t)

	tests := []struct {
		name       string
		path       string
		fields     map[string]string
		files      []upload
		wantStatus int
		wantCode   string
	}{
		{"no files", "/api/columns", nil, nil, http.StatusBadRequest, "IN001"},
		{"unknown column", "/api/clean", map[string]string{"name_column": "Name", "contact_column": "Fax"}, []upload{jan}, http.StatusUnprocessableEntity, "IN002"},
		{"unsupported file", "/api/clean", map[string]string{"name_column": "Name", "contact_column": "Phone"}, []upload{{"a.xls", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}}}, http.StatusBadRequest, "FILE002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, ctype := multipartBody(t, tt.fields, tt.files...)
			req := httptest.NewRequest(http.MethodPost, tt.path, buf)
			req.Header.Set("Content-Type", ctype)
			rec := httptest.NewRecorder()
			s.Router().ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var got ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.wantCode, got.Code)
			assert.NotEmpty(t, got.Action)
		})
	}
}

func TestAPI_BadForm(t *testing.T) {
	s := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/columns", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "IN003")
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, 0, got.Sessions)
	assert.Equal(t, 2, got.Uploads.MaxConcurrent)
}

func TestSecurityHeaders(t *testing.T) {
	cfg := testConfig()
	s := newTestServer(t, cfg)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "script-src 'none'")

	cfg = testConfig()
	cfg.Security.EnableCSP = false
	s = newTestServer(t, cfg)
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, UploadLimit: 1}
	s := newTestServer(t, cfg)

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "192.0.2.10:4000"
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do().Code)
	assert.Equal(t, http.StatusOK, do().Code)

	rec := do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE001")

	other := httptest.NewRequest(http.MethodGet, "/health", nil)
	other.RemoteAddr = "192.0.2.11:4000"
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_WindowReset(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := &rateLimiter{visitors: make(map[string]*visitor), rate: 1, window: time.Minute, now: func() time.Time { return now }}

	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))

	now = now.Add(61 * time.Second)
	assert.True(t, rl.allow("a"))
}

func TestCORS(t *testing.T) {
	cfg := testConfig()
	cfg.Security.AllowedOrigins = []string{"https://app.example"}
	s := newTestServer(t, cfg)

	req := httptest.NewRequest(http.MethodOptions, "/api/clean", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/clean", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	reg := metrics.NewRegistry()
	m, err := metrics.New(reg, "sheetclean", "pipeline")
	require.NoError(t, err)
	s := newTestServer(t, testConfig(), WithMetrics(m, reg))

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `sheetclean_http_requests_total{code="200",method="get"} 1`)
}
