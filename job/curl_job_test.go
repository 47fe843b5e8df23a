package job_test

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goquartz/quartz/job"
)

const worldtimeapiURL = "https://worldtimeapi.org/api/timezone/utc"

type httpHandlerMock struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m httpHandlerMock) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

func httpHandlerWithStatus(statusCode int) job.HTTPHandler {
	return httpHandlerMock{
		doFunc: func(request *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: statusCode,
				Request:    request,
			}, nil
		},
	}
}

func TestCurlJob(t *testing.T) {
	request, err := http.NewRequest(http.MethodGet, worldtimeapiURL, nil)
	require.NoError(t, err)

	tests := []struct {
		name           string
		request        *http.Request
		opts           job.CurlJobOptions
		expectedStatus job.Status
	}{
		{
			name:           "HTTP 200 OK",
			request:        request,
			opts:           job.CurlJobOptions{HTTPClient: httpHandlerWithStatus(200)},
			expectedStatus: job.StatusOK,
		},
		{
			name:           "HTTP 500 Internal Server Error",
			request:        request,
			opts:           job.CurlJobOptions{HTTPClient: httpHandlerWithStatus(500)},
			expectedStatus: job.StatusFailure,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpJob := job.NewCurlJobWithOptions(tt.request, tt.opts)
			_ = httpJob.Execute(context.Background(), nil)
			assert.Equal(t, tt.expectedStatus, httpJob.JobStatus())
		})
	}
}

func TestCurlJobDescription(t *testing.T) {
	postRequest, err := http.NewRequest(
		http.MethodPost,
		worldtimeapiURL,
		strings.NewReader("{\"a\":1}"),
	)
	require.NoError(t, err)
	postRequest.Header = http.Header{
		"Content-Type": {"application/json"},
	}
	getRequest, err := http.NewRequest(
		http.MethodGet,
		worldtimeapiURL,
		nil,
	)
	require.NoError(t, err)

	tests := []struct {
		name                string
		request             *http.Request
		expectedDescription string
	}{
		{
			name:    "POST with headers and body",
			request: postRequest,
			expectedDescription: "CurlJob:\n" +
				fmt.Sprintf("POST %s HTTP/1.1\n", worldtimeapiURL) +
				"Content-Type: application/json\n" +
				"Content Length: 7",
		},
		{
			name:    "Get request",
			request: getRequest,
			expectedDescription: "CurlJob:\n" +
				fmt.Sprintf("GET %s HTTP/1.1", worldtimeapiURL),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := job.CurlJobOptions{HTTPClient: http.DefaultClient}
			httpJob := job.NewCurlJobWithOptions(tt.request, opts)
			assert.Equal(t, tt.expectedDescription, httpJob.Description())
		})
	}
}

func TestCurlJob_WithCallback(t *testing.T) {
	request, err := http.NewRequest(http.MethodGet, worldtimeapiURL, nil)
	require.NoError(t, err)

	resultChan := make(chan job.Status, 1)
	opts := job.CurlJobOptions{
		HTTPClient: httpHandlerWithStatus(200),
		Callback: func(_ context.Context, job *job.CurlJob) {
			resultChan <- job.JobStatus()
		},
	}
	curlJob := job.NewCurlJobWithOptions(request, opts)
	_ = curlJob.Execute(context.Background(), nil)

	assert.Equal(t, job.StatusOK, <-resultChan)
}

func TestCurlJob_DumpResponse(t *testing.T) {
	request, err := http.NewRequest(http.MethodGet, worldtimeapiURL, nil)
	require.NoError(t, err)

	curlJob := job.NewCurlJobWithOptions(request, job.CurlJobOptions{
		HTTPClient: httpHandlerWithStatus(200),
	})
	_, err = curlJob.DumpResponse(false)
	assert.Error(t, err) // not executed yet

	_ = curlJob.Execute(context.Background(), nil)
	dump, err := curlJob.DumpResponse(false)
	require.NoError(t, err)
	assert.Contains(t, string(dump), "200")
}
