package vertex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/xerrors"

	"github.com/silent-stones/vertex-universal-orchestrator/models"
)

// JobService is the narrow boundary to the remote training platform. The
// orchestrator only ever submits, polls and cancels through it.
type JobService interface {
	SubmitJob(ctx context.Context, parent string, payload models.CustomJobPayload) (string, error)
	GetJobStatus(ctx context.Context, resourceID string) (string, error)
	CancelJob(ctx context.Context, resourceID string) error
}

type restJobService struct {
	endpoint    string
	accessToken string
	client      *http.Client
}

// NewRestJobService returns a JobService talking to the regional platform
// endpoint with bearer-token auth.
func NewRestJobService(region, accessToken string) JobService {
	return &restJobService{
		endpoint:    fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1", region),
		accessToken: accessToken,
		client:      &http.Client{Timeout: 60 * time.Second},
	}
}

func (r *restJobService) SubmitJob(ctx context.Context, parent string, payload models.CustomJobPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", xerrors.Errorf("marshalling custom job payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/customJobs", r.endpoint, parent)
	respBody, err := r.doRequest(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", err
	}

	var created struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", xerrors.Errorf("decoding create response: %w", err)
	}
	if created.Name == "" {
		return "", xerrors.Errorf("create response carried no resource name")
	}
	return created.Name, nil
}

func (r *restJobService) GetJobStatus(ctx context.Context, resourceID string) (string, error) {
	url := fmt.Sprintf("%s/%s", r.endpoint, resourceID)
	respBody, err := r.doRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	var job struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(respBody, &job); err != nil {
		return "", xerrors.Errorf("decoding job status response: %w", err)
	}
	return job.State, nil
}

func (r *restJobService) CancelJob(ctx context.Context, resourceID string) error {
	url := fmt.Sprintf("%s/%s:cancel", r.endpoint, resourceID)
	_, err := r.doRequest(ctx, http.MethodPost, url, []byte("{}"))
	return err
}

func (r *restJobService) doRequest(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewBuffer(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, xerrors.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.accessToken)
	req.Header.Add("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, xerrors.Errorf("sending request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, xerrors.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, xerrors.Errorf("platform returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
