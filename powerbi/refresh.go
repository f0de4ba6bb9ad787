// ABOUTME: Dataset refresh schedule, refresh history and refresh trigger.
// ABOUTME: LastRefresh summarizes the newest history entry; LastRefreshAll does it for every dataset.

package powerbi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// StatusRefreshing is the RefreshInfo status of a refresh that has not ended.
const StatusRefreshing = "Dataset is being refreshed"

const refreshTimeLayout = "2006-01-02T15:04:05"

type Schedule struct {
	DatasetID    string   `json:"datasetID"`
	Enabled      bool     `json:"active"`
	Days         []string `json:"days"`
	Times        []string `json:"time"`
	TimeZone     string   `json:"timeZone"`
	NotifyOption string   `json:"notifyOption,omitempty"`
}

type scheduleResponse struct {
	Enabled         bool     `json:"enabled"`
	Days            []string `json:"days"`
	Times           []string `json:"times"`
	LocalTimeZoneID string   `json:"localTimeZoneId"`
	NotifyOption    string   `json:"notifyOption"`
}

// Refresh is one entry of a dataset's refresh history. EndTime is empty while
// the refresh is still running.
type Refresh struct {
	RequestID            string `json:"requestId"`
	ID                   int64  `json:"id"`
	RefreshType          string `json:"refreshType"`
	StartTime            string `json:"startTime"`
	EndTime              string `json:"endTime"`
	Status               string `json:"status"`
	ServiceExceptionJSON string `json:"serviceExceptionJson,omitempty"`
}

// RefreshInfo summarizes the latest refresh of a dataset. When InProgress is
// set only DatasetID and Status are filled.
type RefreshInfo struct {
	DatasetID  string `json:"dataset"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Span       string `json:"span"`
	Status     string `json:"status"`
	Type       string `json:"type"`
	InProgress bool   `json:"inProgress"`
}

type RefreshResult struct {
	DatasetID string
	Name      string
	Info      *RefreshInfo
	Err       error
}

type RefreshRequest struct {
	DatasetID string
	RequestID string
}

func (r *RefreshRequest) String() string {
	return fmt.Sprintf("Dataset %s refresh started.", r.DatasetID)
}

func (c *Client) RefreshSchedule(ctx context.Context, datasetID string) (*Schedule, error) {
	var res scheduleResponse
	if err := c.getJSON(ctx, "retrieve refresh schedule", c.groupPath("datasets", datasetID, "refreshSchedule"), &res); err != nil {
		return nil, err
	}

	return &Schedule{
		DatasetID:    datasetID,
		Enabled:      res.Enabled,
		Days:         res.Days,
		Times:        res.Times,
		TimeZone:     res.LocalTimeZoneID,
		NotifyOption: res.NotifyOption,
	}, nil
}

// RefreshHistory returns up to top entries, newest first.
func (c *Client) RefreshHistory(ctx context.Context, datasetID string, top int) ([]Refresh, error) {
	params := url.Values{"$top": []string{strconv.Itoa(top)}}
	path := c.groupPath("datasets", datasetID, "refreshes") + "?" + params.Encode()
	return getCollection[Refresh](ctx, c, "retrieve refresh info", path)
}

func (c *Client) LastRefresh(ctx context.Context, datasetID string) (*RefreshInfo, error) {
	history, err := c.RefreshHistory(ctx, datasetID, 1)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("dataset %s: %w", datasetID, ErrNoRefreshHistory)
	}
	return summarizeRefresh(datasetID, history[0])
}

// LastRefreshAll summarizes the latest refresh of every dataset in the
// workspace, in dataset name order. A failure for one dataset is recorded in
// its result and does not stop the others. progress may be nil.
func (c *Client) LastRefreshAll(ctx context.Context, progress func(done, total int)) ([]RefreshResult, error) {
	ids, err := c.DatasetIDs(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(ids))
	for name := range ids {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]RefreshResult, 0, len(names))
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		info, err := c.LastRefresh(ctx, ids[name])
		results = append(results, RefreshResult{
			DatasetID: ids[name],
			Name:      name,
			Info:      info,
			Err:       err,
		})

		if progress != nil {
			progress(i+1, len(names))
		}
	}

	return results, nil
}

// TriggerRefresh starts an asynchronous refresh. Completion shows up later in
// the refresh history.
func (c *Client) TriggerRefresh(ctx context.Context, datasetID string) (*RefreshRequest, error) {
	const op = "start dataset refresh"

	resp, body, err := c.do(ctx, http.MethodPost, c.groupPath("datasets", datasetID, "refreshes"), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode != http.StatusAccepted {
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}

	return &RefreshRequest{
		DatasetID: datasetID,
		RequestID: resp.Header.Get("RequestId"),
	}, nil
}

func summarizeRefresh(datasetID string, r Refresh) (*RefreshInfo, error) {
	if r.EndTime == "" {
		return &RefreshInfo{
			DatasetID:  datasetID,
			Status:     StatusRefreshing,
			InProgress: true,
		}, nil
	}

	span, err := elapsed(r.StartTime, r.EndTime)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", datasetID, err)
	}

	return &RefreshInfo{
		DatasetID: datasetID,
		Start:     r.StartTime,
		End:       r.EndTime,
		Span:      span,
		Status:    r.Status,
		Type:      r.RefreshType,
	}, nil
}

// elapsed returns end-start as HH:MM:SS. Fractional seconds are dropped from
// both timestamps before subtracting.
func elapsed(start, end string) (string, error) {
	s, err := parseRefreshTime(start)
	if err != nil {
		return "", fmt.Errorf("parsing start time: %w", err)
	}
	e, err := parseRefreshTime(end)
	if err != nil {
		return "", fmt.Errorf("parsing end time: %w", err)
	}
	return formatSpan(e.Sub(s)), nil
}

func parseRefreshTime(v string) (time.Time, error) {
	v, _, _ = strings.Cut(v, ".")
	v = strings.TrimSuffix(v, "Z")
	return time.Parse(refreshTimeLayout, v)
}

// formatSpan renders d as HH:MM:SS. A negative span (end before start)
// carries a single leading minus sign.
func formatSpan(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	total := int(d / time.Second)
	hours := total / 3600
	minutes := total % 3600 / 60
	seconds := total % 60
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, hours, minutes, seconds)
}
