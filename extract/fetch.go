package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	jsoniter "github.com/json-iterator/go"
	"github.com/rasnes/dhis2-duckdb-framework/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type DHIS2Client struct {
	HTTPClient  *retryablehttp.Client
	Logger      *slog.Logger
	BaseURL     string
	DHIS2Config *config.DHIS2Config
	token       string
	username    string
	password    string
}

// NewDHIS2Client reads credentials from the environment. A personal access
// token in DHIS2_TOKEN takes precedence over DHIS2_USERNAME/DHIS2_PASSWORD.
func NewDHIS2Client(config *config.Config, logger *slog.Logger) (*DHIS2Client, error) {
	if config.DHIS2.URL == "" {
		return nil, fmt.Errorf("dhis2.url is not configured")
	}

	client := &DHIS2Client{
		HTTPClient:  retryablehttp.NewClient(),
		Logger:      logger,
		BaseURL:     strings.TrimRight(config.DHIS2.URL, "/"),
		DHIS2Config: &config.DHIS2,
		token:       os.Getenv("DHIS2_TOKEN"),
		username:    os.Getenv("DHIS2_USERNAME"),
		password:    os.Getenv("DHIS2_PASSWORD"),
	}
	if client.token == "" && (client.username == "" || client.password == "") {
		return nil, fmt.Errorf("neither DHIS2_TOKEN nor DHIS2_USERNAME and DHIS2_PASSWORD env variables are set")
	}

	client.HTTPClient.RetryWaitMin = config.Extract.Backoff.RetryWaitMin
	client.HTTPClient.RetryWaitMax = config.Extract.Backoff.RetryWaitMax
	client.HTTPClient.RetryMax = config.Extract.Backoff.RetryMax
	client.HTTPClient.Logger = logger
	// Return the last response once retries are exhausted so that the status
	// and DHIS2 error message end up in the returned error.
	client.HTTPClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if config.DHIS2.Timeout > 0 {
		client.HTTPClient.HTTPClient.Timeout = config.DHIS2.Timeout
	}

	return client, nil
}

// OrganisationUnits fetches every org unit with its level and ancestor path.
func (c *DHIS2Client) OrganisationUnits(ctx context.Context) ([]OrgUnit, error) {
	var resp orgUnitsResponse
	if err := c.getJSON(ctx, "/api/organisationUnits.json", metadataQuery("id,name,level,path"), "organisation units", &resp); err != nil {
		return nil, err
	}
	return resp.OrganisationUnits, nil
}

func (c *DHIS2Client) DataElements(ctx context.Context) ([]NamedItem, error) {
	var resp dataElementsResponse
	if err := c.getJSON(ctx, "/api/dataElements.json", metadataQuery("id,name"), "data elements", &resp); err != nil {
		return nil, err
	}
	return resp.DataElements, nil
}

func (c *DHIS2Client) CategoryOptionCombos(ctx context.Context) ([]NamedItem, error) {
	var resp categoryOptionCombosResponse
	if err := c.getJSON(ctx, "/api/categoryOptionCombos.json", metadataQuery("id,name"), "category option combos", &resp); err != nil {
		return nil, err
	}
	return resp.CategoryOptionCombos, nil
}

// Analytics fetches raw data values for a single request. Callers are
// expected to batch large requests with SplitRequest first.
func (c *DHIS2Client) Analytics(ctx context.Context, req AnalyticsRequest) ([]DataValue, error) {
	query, err := req.query()
	if err != nil {
		return nil, err
	}

	var resp dataValueSetResponse
	desc := fmt.Sprintf("analytics (%d dx, %d pe, %d ou)", len(req.DataElements), len(req.Periods), len(req.OrgUnits)+len(req.OrgUnitLevels))
	if err := c.getJSON(ctx, "/api/analytics/dataValueSet.json", query, desc, &resp); err != nil {
		return nil, err
	}
	return resp.DataValues, nil
}

// FetchData handles the common logic of making the HTTP request and checking the response status
func (c *DHIS2Client) FetchData(ctx context.Context, url, description string) ([]byte, error) {
	body, resp, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("error fetching %s: %w", description, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s, status: %s, body: %s", description, resp.Status, string(body))
	}

	return body, nil
}

func (c *DHIS2Client) getJSON(ctx context.Context, path string, query url.Values, description string, target any) error {
	rawURL := c.BaseURL + path
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}

	body, err := c.FetchData(ctx, rawURL, description)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("error decoding %s: %w", description, err)
	}
	return nil
}

// get fetches the URL and returns the body and response
func (c *DHIS2Client) get(ctx context.Context, url string) (body []byte, resp *http.Response, err error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "ApiToken "+c.token)
	} else {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err = c.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	return body, resp, nil
}

func metadataQuery(fields string) url.Values {
	query := url.Values{}
	query.Set("paging", "false")
	query.Set("fields", fields)
	return query
}

// AnalyticsRequest selects data elements, periods and org units for the
// analytics dataValueSet endpoint. Org units can be given as ids, as levels,
// or both.
type AnalyticsRequest struct {
	DataElements  []string
	Periods       []string
	OrgUnits      []string
	OrgUnitLevels []int
}

func (r AnalyticsRequest) query() (url.Values, error) {
	if len(r.DataElements) == 0 {
		return nil, fmt.Errorf("analytics request has no data elements")
	}
	if len(r.Periods) == 0 {
		return nil, fmt.Errorf("analytics request has no periods")
	}

	ou := append([]string{}, r.OrgUnits...)
	for _, level := range r.OrgUnitLevels {
		ou = append(ou, "LEVEL-"+strconv.Itoa(level))
	}
	if len(ou) == 0 {
		return nil, fmt.Errorf("analytics request has no org units")
	}

	query := url.Values{}
	query.Add("dimension", "dx:"+strings.Join(r.DataElements, ";"))
	query.Add("dimension", "pe:"+strings.Join(r.Periods, ";"))
	query.Add("dimension", "ou:"+strings.Join(ou, ";"))
	return query, nil
}
