package extract

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rasnes/dhis2-duckdb-framework/config"
	"github.com/stretchr/testify/assert"
)

func setupTestServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Verify token is present
		if r.Header.Get("Authorization") != "ApiToken test_token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/organisationUnits.json":
			if r.URL.Query().Get("paging") != "false" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Write([]byte(`{"organisationUnits":[
				{"id":"CMR","name":"Cameroun","level":1,"path":"/CMR"},
				{"id":"REG1","name":"Centre","level":2,"path":"/CMR/REG1"},
				{"id":"FOSA1","name":"CSI Nkol","level":3,"path":"/CMR/REG1/FOSA1"}
			]}`))
		case "/api/dataElements.json":
			w.Write([]byte(`{"dataElements":[{"id":"DE1","name":"Cas confirmés"},{"id":"DE2","name":"Décès"}]}`))
		case "/api/categoryOptionCombos.json":
			w.Write([]byte(`{"categoryOptionCombos":[{"id":"COC1","name":"default"}]}`))
		case "/api/analytics/dataValueSet.json":
			dims := r.URL.Query()["dimension"]
			if len(dims) != 3 || dims[2] == "ou:INVALID" {
				w.WriteHeader(http.StatusConflict)
				w.Write([]byte(`{"message":"Dimension ou is present in query without any valid dimension options"}`))
				return
			}
			w.Write([]byte(`{"dataValues":[
				{"dataElement":"DE1","period":"202401","orgUnit":"FOSA1","categoryOptionCombo":"COC1","value":"12"},
				{"dataElement":"DE2","period":"202401","orgUnit":"FOSA1","categoryOptionCombo":"COC1","value":"1"}
			]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("Not found"))
		}
	}))
}

func setup() {
	os.Setenv("DHIS2_TOKEN", "test_token")
}

func teardown() {
	os.Unsetenv("DHIS2_TOKEN")
	os.Unsetenv("DHIS2_USERNAME")
	os.Unsetenv("DHIS2_PASSWORD")
}

func getTestConfig() *config.Config {
	return &config.Config{
		DHIS2: config.DHIS2Config{
			URL:     "https://dhis2.example.org/",
			Timeout: time.Minute,
		},
		Extract: config.ExtractConfig{
			Backoff: config.BackoffConfig{
				RetryWaitMin: 1 * time.Millisecond,
				RetryWaitMax: 2 * time.Millisecond,
				RetryMax:     1,
			},
		},
	}
}

func getTestLogger(buffer *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buffer, nil))
}

func setupTestClient(t *testing.T, server *httptest.Server) *DHIS2Client {
	setup()
	defer teardown()

	client, err := NewDHIS2Client(getTestConfig(), getTestLogger(&bytes.Buffer{}))
	assert.NoError(t, err)

	client.HTTPClient = retryablehttp.NewClient()
	client.HTTPClient.HTTPClient = server.Client()
	client.HTTPClient.RetryMax = 0
	client.HTTPClient.Logger = nil
	client.BaseURL = server.URL

	return client
}

func TestNewClient(t *testing.T) {
	setup()
	defer teardown()

	cfg := getTestConfig()
	client, err := NewDHIS2Client(cfg, getTestLogger(&bytes.Buffer{}))
	assert.NoError(t, err)
	assert.NotNil(t, client)
	assert.Equal(t, "test_token", client.token)
	assert.Equal(t, "https://dhis2.example.org", client.BaseURL)
	assert.Equal(t, 1, client.HTTPClient.RetryMax)
	assert.Equal(t, time.Minute, client.HTTPClient.HTTPClient.Timeout)
}

func TestNewClient_BasicAuth(t *testing.T) {
	defer teardown()
	os.Setenv("DHIS2_USERNAME", "admin")
	os.Setenv("DHIS2_PASSWORD", "district")

	client, err := NewDHIS2Client(getTestConfig(), getTestLogger(&bytes.Buffer{}))
	assert.NoError(t, err)
	assert.Empty(t, client.token)
	assert.Equal(t, "admin", client.username)
}

func TestNewClient_NoCredentials(t *testing.T) {
	teardown()

	client, err := NewDHIS2Client(getTestConfig(), getTestLogger(&bytes.Buffer{}))
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestNewClient_NoURL(t *testing.T) {
	setup()
	defer teardown()

	cfg := getTestConfig()
	cfg.DHIS2.URL = ""
	_, err := NewDHIS2Client(cfg, getTestLogger(&bytes.Buffer{}))
	assert.ErrorContains(t, err, "dhis2.url")
}

func TestClient_FetchData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "district" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("unauthorized"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("test content"))
	}))
	defer server.Close()

	client := setupTestClient(t, server)
	client.token = ""
	client.username = "admin"
	client.password = "district"

	body, err := client.FetchData(context.Background(), server.URL, "test description")
	assert.NoError(t, err)
	assert.Equal(t, []byte("test content"), body)

	client.password = "wrong"
	_, err = client.FetchData(context.Background(), server.URL, "test description")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "unauthorized")
}

func TestClient_Metadata(t *testing.T) {
	server := setupTestServer()
	defer server.Close()

	client := setupTestClient(t, server)
	ctx := context.Background()

	ous, err := client.OrganisationUnits(ctx)
	assert.NoError(t, err)
	assert.Len(t, ous, 3)
	assert.Equal(t, OrgUnit{ID: "FOSA1", Name: "CSI Nkol", Level: 3, Path: "/CMR/REG1/FOSA1"}, ous[2])

	des, err := client.DataElements(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []NamedItem{{ID: "DE1", Name: "Cas confirmés"}, {ID: "DE2", Name: "Décès"}}, des)

	cocs, err := client.CategoryOptionCombos(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []NamedItem{{ID: "COC1", Name: "default"}}, cocs)
}

func TestClient_Analytics(t *testing.T) {
	server := setupTestServer()
	defer server.Close()

	client := setupTestClient(t, server)

	tests := []struct {
		name        string
		req         AnalyticsRequest
		wantLen     int
		wantErr     bool
		errContains string
	}{
		{
			name: "org unit ids",
			req: AnalyticsRequest{
				DataElements: []string{"DE1", "DE2"},
				Periods:      []string{"202401"},
				OrgUnits:     []string{"FOSA1"},
			},
			wantLen: 2,
		},
		{
			name: "org unit levels",
			req: AnalyticsRequest{
				DataElements:  []string{"DE1"},
				Periods:       []string{"2024W1"},
				OrgUnitLevels: []int{5},
			},
			wantLen: 2,
		},
		{
			name: "server rejects request",
			req: AnalyticsRequest{
				DataElements: []string{"DE1"},
				Periods:      []string{"2024"},
				OrgUnits:     []string{"INVALID"},
			},
			wantErr:     true,
			errContains: "409",
		},
		{
			name: "no org units",
			req: AnalyticsRequest{
				DataElements: []string{"DE1"},
				Periods:      []string{"2024"},
			},
			wantErr:     true,
			errContains: "no org units",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := client.Analytics(context.Background(), tt.req)

			if tt.wantErr {
				assert.Error(t, err)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
				return
			}

			assert.NoError(t, err)
			assert.Len(t, values, tt.wantLen)
			assert.Equal(t, "12", values[0].Value)
		})
	}
}

func TestAnalyticsRequest_query(t *testing.T) {
	req := AnalyticsRequest{
		DataElements:  []string{"DE1", "DE2"},
		Periods:       []string{"202401", "202402"},
		OrgUnits:      []string{"OU1"},
		OrgUnitLevels: []int{4, 5},
	}

	query, err := req.query()
	assert.NoError(t, err)
	assert.Equal(t, []string{"dx:DE1;DE2", "pe:202401;202402", "ou:OU1;LEVEL-4;LEVEL-5"}, query["dimension"])
	assert.True(t, strings.HasPrefix(query.Encode(), "dimension=dx%3ADE1%3BDE2"))

	_, err = AnalyticsRequest{Periods: []string{"2024"}, OrgUnits: []string{"OU1"}}.query()
	assert.ErrorContains(t, err, "no data elements")

	_, err = AnalyticsRequest{DataElements: []string{"DE1"}, OrgUnits: []string{"OU1"}}.query()
	assert.ErrorContains(t, err, "no periods")
}
